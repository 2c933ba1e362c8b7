package ws

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lumivoice/voice-gateway/internal/agent"
	appconfig "github.com/lumivoice/voice-gateway/internal/config"
	"github.com/lumivoice/voice-gateway/internal/conversation"
	"github.com/lumivoice/voice-gateway/internal/session/fsm"
	"github.com/lumivoice/voice-gateway/internal/transport/codec"
	"github.com/lumivoice/voice-gateway/pkg/audio"
)

// Handler upgrades client connections and runs one session per socket.
type Handler struct {
	logger      *zap.Logger
	upgrader    websocket.Upgrader
	config      appconfig.Config
	engine      *agent.Engine
	store       *conversation.Store
	transcriber Transcriber
	synthesizer Synthesizer
	sessions    map[string]*session
	mu          sync.Mutex
}

type session struct {
	conn    *websocket.Conn
	sendMu  sync.Mutex
	logger  *zap.Logger
	handler *Handler

	clientID string
	machine  *fsm.Machine
	profile  appconfig.Profile

	// convMu guards conv and conversationID: the dispatch loop swaps them
	// while the turn goroutine reads and appends.
	convMu         sync.Mutex
	conversationID string
	conv           *conversation.Conversation

	micBuffer []float64
	listening bool

	turnMu     sync.Mutex
	turnCancel context.CancelFunc
	turnDone   chan struct{}
}

// NewHandler builds the client socket handler. transcriber and
// synthesizer may be nil; the matching features then report an error to
// the client instead of running.
func NewHandler(logger *zap.Logger, cfg appconfig.Config, engine *agent.Engine, store *conversation.Store, transcriber Transcriber, synthesizer Synthesizer) *Handler {
	return &Handler{
		logger:      logger,
		config:      cfg,
		engine:      engine,
		store:       store,
		transcriber: transcriber,
		synthesizer: synthesizer,
		sessions:    make(map[string]*session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handle upgrades the request and serves the session until the socket
// closes.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := &session{
		conn:     conn,
		logger:   h.logger,
		handler:  h,
		clientID: fmt.Sprintf("%d", time.Now().UnixNano()),
		machine:  fsm.New(),
		conv:     &conversation.Conversation{},
	}
	sess.machine.SetMode(h.config.Backend.ListenMode)
	if profile, err := appconfig.FindProfile(h.config.ProfilesDir, h.config.Profile); err == nil {
		sess.profile = profile
	}

	sess.logger.Info("ws session opened",
		zap.String("session_id", sess.clientID),
		zap.String("profile", sess.profile.Name),
		zap.Int("sample_rate", h.config.Audio.SampleRate),
	)

	h.registerSession(sess)
	sess.sendInit()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			sess.logger.Debug("ws connection closed", zap.Error(err))
			break
		}
		raw, err := codec.Decode(data)
		if err != nil {
			sess.sendError("invalid frame")
			continue
		}
		msg, err := parseIncoming(raw)
		if err != nil {
			sess.sendError("invalid json")
			continue
		}
		if msg.Type != "heartbeat" && msg.Type != "mic-audio-data" {
			sess.logger.Debug("ws incoming message",
				zap.String("session_id", sess.clientID),
				zap.String("type", msg.Type),
			)
		}
		sess.dispatchIncoming(ctx, msg)
	}

	sess.cancelTurn()
	sess.logger.Info("ws session closed", zap.String("session_id", sess.clientID))
	h.unregisterSession(sess.clientID)
}

func (h *Handler) registerSession(sess *session) {
	h.mu.Lock()
	h.sessions[sess.clientID] = sess
	h.mu.Unlock()
}

func (h *Handler) unregisterSession(clientID string) {
	h.mu.Lock()
	delete(h.sessions, clientID)
	h.mu.Unlock()
}

// SessionCount reports the number of live sessions.
func (h *Handler) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (s *session) sendInit() {
	s.sendJSON(map[string]any{
		"type":         "session-init",
		"client_uid":   s.clientID,
		"profile":      s.profile,
		"sample_rate":  s.handler.config.Audio.SampleRate,
		"listen_mode":  string(s.machine.Mode()),
		"server_state": string(s.machine.State()),
	})
	if s.profile.Greeting != "" {
		s.sendJSON(map[string]any{"type": "sentence", "text": s.profile.Greeting})
	}
}

// startTurn launches one user turn. A turn already in flight is
// cancelled first so the newest input wins.
func (s *session) startTurn(ctx context.Context, text string) {
	s.cancelTurn()

	turnCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.turnMu.Lock()
	s.turnCancel = cancel
	s.turnDone = done
	s.turnMu.Unlock()

	s.machine.OnTurnStart()
	go func() {
		defer close(done)
		s.runTurn(turnCtx, text)
	}()
}

// cancelTurn stops the active turn and waits for its goroutine to exit,
// so at most one turn ever touches the conversation state.
func (s *session) cancelTurn() {
	s.turnMu.Lock()
	cancel := s.turnCancel
	done := s.turnDone
	s.turnCancel = nil
	s.turnDone = nil
	s.turnMu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// activeConversation snapshots the conversation the turn runs against.
func (s *session) activeConversation() (*conversation.Conversation, string) {
	s.convMu.Lock()
	defer s.convMu.Unlock()
	return s.conv, s.conversationID
}

func (s *session) runTurn(ctx context.Context, text string) {
	s.sendJSON(map[string]any{"type": "control", "text": "conversation-chain-start"})

	conv, conversationID := s.activeConversation()
	stream := s.handler.engine.ProcessStream(ctx, conv, text)
	var reply string
	speaking := false
	completed := false

	for {
		chunk, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				s.logger.Debug("turn cancelled", zap.String("session_id", s.clientID))
			} else {
				s.logger.Warn("turn failed", zap.String("session_id", s.clientID), zap.Error(err))
				s.sendError(err.Error())
			}
			s.finishTurn(speaking)
			return
		}
		switch chunk.Type {
		case agent.ChunkSentence:
			reply += chunk.Text
			s.sendJSON(map[string]any{"type": "sentence", "text": chunk.Text})
			if !speaking {
				speaking = true
				s.machine.OnSpeakStart()
			}
			s.sendSentenceAudio(ctx, chunk.Text)
		case agent.ChunkToolExecuting:
			s.sendJSON(map[string]any{
				"type":      "tool-call-status",
				"tool_name": chunk.ToolName,
				"status":    "running",
				"timestamp": time.Now().Format(time.RFC3339),
			})
		case agent.ChunkComplete:
			completed = true
			s.sendJSON(map[string]any{"type": "complete"})
		}
	}

	if completed {
		s.recordTurn(conv, conversationID, text, reply)
	}
	s.finishTurn(speaking)
}

func (s *session) finishTurn(speaking bool) {
	if speaking {
		s.machine.OnSpeakStop()
	} else {
		s.machine.Force(fsm.StateIdle)
	}
	s.sendJSON(map[string]any{"type": "control", "text": "conversation-chain-end"})
}

func (s *session) sendSentenceAudio(ctx context.Context, text string) {
	if s.handler.synthesizer == nil || text == "" {
		return
	}
	pcm, sampleRate, err := s.handler.synthesizer.Synthesize(ctx, text)
	if err != nil {
		s.logger.Warn("synthesis failed", zap.String("session_id", s.clientID), zap.Error(err))
		return
	}
	if len(pcm) == 0 {
		return
	}
	s.sendJSON(map[string]any{
		"type":        "audio",
		"audio_wav":   base64.StdEncoding.EncodeToString(audio.EncodeWAV(pcm, sampleRate)),
		"sample_rate": sampleRate,
		"text":        text,
	})
}

// recordTurn appends the finished exchange to the conversation the turn
// ran against and, when it is a stored conversation, to disk. The append
// happens under convMu so a concurrent conversation swap never observes a
// half-written history.
func (s *session) recordTurn(conv *conversation.Conversation, conversationID, userText, reply string) {
	now := time.Now().Format(time.RFC3339)
	turns := []conversation.Turn{
		{Role: "user", Content: userText, Timestamp: now},
		{Role: "assistant", Content: reply, Timestamp: now},
	}
	s.convMu.Lock()
	conv.History = append(conv.History, turns...)
	s.convMu.Unlock()
	if conversationID == "" {
		return
	}
	if err := s.handler.store.Append(s.clientID, conversationID, turns...); err != nil {
		s.logger.Warn("conversation append failed",
			zap.String("session_id", s.clientID),
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
	}
}

func (s *session) handleMicAudio(samples []float64) {
	if len(samples) == 0 {
		return
	}
	if s.handler.transcriber == nil {
		s.sendError("transcription is not configured")
		return
	}
	if !s.listening {
		s.listening = true
		s.machine.OnListenStart()
	}
	s.micBuffer = append(s.micBuffer, samples...)
}

func (s *session) handleMicEnd(ctx context.Context) {
	if !s.listening {
		return
	}
	s.listening = false
	samples := s.micBuffer
	s.micBuffer = nil
	if len(samples) == 0 || s.handler.transcriber == nil {
		s.machine.Force(fsm.StateIdle)
		return
	}

	s.machine.OnAudioCommit()
	sampleRate := s.handler.config.Audio.SampleRate
	wav := audio.EncodeWAV(audio.Float64SliceToPCM16(samples), sampleRate)

	text, err := s.handler.transcriber.Transcribe(ctx, wav)
	if err != nil {
		s.logger.Warn("transcription failed", zap.String("session_id", s.clientID), zap.Error(err))
		s.sendError(err.Error())
		s.machine.Force(fsm.StateIdle)
		return
	}
	s.sendJSON(map[string]any{"type": "user-input-transcription", "text": text})
	if text == "" {
		s.machine.Force(fsm.StateIdle)
		return
	}
	s.startTurn(ctx, text)
}

func (s *session) handleConversationList() {
	list := s.handler.store.List(s.clientID)
	s.sendJSON(map[string]any{"type": "conversation-list", "conversations": list})
}

func (s *session) handleConversationCreate() {
	id, err := s.handler.store.Create(s.clientID)
	if err != nil {
		s.sendError(err.Error())
		return
	}
	s.convMu.Lock()
	s.conversationID = id
	s.conv = &conversation.Conversation{ID: id}
	s.convMu.Unlock()
	s.sendJSON(map[string]any{"type": "conversation-created", "conversation_id": id})
}

func (s *session) handleConversationSwitch(id string) {
	if id == "" {
		return
	}
	conv, err := s.handler.store.Load(s.clientID, id)
	if err != nil {
		s.sendError(err.Error())
		return
	}
	s.convMu.Lock()
	s.conversationID = id
	s.conv = conv
	s.convMu.Unlock()
	s.sendJSON(map[string]any{"type": "conversation-data", "conversation_id": id, "turns": conv.History})
}

func (s *session) handleConversationDelete(id string) {
	if id == "" {
		return
	}
	success := s.handler.store.Delete(s.clientID, id)
	s.sendJSON(map[string]any{"type": "conversation-deleted", "success": success, "conversation_id": id})
	s.convMu.Lock()
	if success && s.conversationID == id {
		s.conversationID = ""
		s.conv = &conversation.Conversation{}
	}
	s.convMu.Unlock()
}

func (s *session) handleProfileList() {
	profiles := appconfig.ScanProfiles(s.handler.config.ProfilesDir)
	s.sendJSON(map[string]any{"type": "profile-list", "profiles": profiles})
}

func (s *session) handleProfileSwitch(name string) {
	if name == "" {
		return
	}
	profile, err := appconfig.FindProfile(s.handler.config.ProfilesDir, name)
	if err != nil {
		s.sendError("unknown profile: " + name)
		return
	}
	s.profile = profile
	s.sendJSON(map[string]any{"type": "profile-switched", "profile": profile})
}

func (s *session) sendError(message string) {
	s.sendJSON(map[string]any{"type": "error", "message": message})
}

func (s *session) sendJSON(payload any) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := s.conn.WriteJSON(payload); err != nil {
		s.logger.Debug("ws send failed", zap.Error(err))
	}
}
