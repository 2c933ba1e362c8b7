package ws

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

type incomingHandler func(context.Context, incomingMessage)

func parseIncoming(raw json.RawMessage) (incomingMessage, error) {
	var msg incomingMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return incomingMessage{}, err
	}
	return msg, nil
}

func (s *session) dispatchIncoming(ctx context.Context, msg incomingMessage) {
	handlers := map[string]incomingHandler{
		"text-input":                 s.onTextInput,
		"interrupt-signal":           s.onInterruptSignal,
		"mic-audio-data":             s.onMicAudioData,
		"mic-audio-end":              s.onMicAudioEnd,
		"set-listen-mode":            s.onSetListenMode,
		"fetch-conversations":        s.onFetchConversations,
		"fetch-and-set-conversation": s.onFetchAndSetConversation,
		"create-new-conversation":    s.onCreateNewConversation,
		"delete-conversation":        s.onDeleteConversation,
		"fetch-profiles":             s.onFetchProfiles,
		"switch-profile":             s.onSwitchProfile,
		"audio-play-start":           s.onNoop,
		"heartbeat":                  s.onNoop,
	}

	if handler, ok := handlers[msg.Type]; ok {
		handler(ctx, msg)
		return
	}
	s.logger.Debug("ws unknown message type",
		zap.String("session_id", s.clientID),
		zap.String("type", msg.Type),
	)
}

func (s *session) onTextInput(ctx context.Context, msg incomingMessage) {
	if msg.Text == "" {
		return
	}
	s.startTurn(ctx, msg.Text)
}

func (s *session) onInterruptSignal(_ context.Context, _ incomingMessage) {
	s.cancelTurn()
	s.machine.OnInterrupt()
	s.sendJSON(map[string]any{"type": "interrupt-acknowledged"})
}

func (s *session) onMicAudioData(_ context.Context, msg incomingMessage) {
	s.handleMicAudio(msg.Audio)
}

func (s *session) onMicAudioEnd(ctx context.Context, _ incomingMessage) {
	s.handleMicEnd(ctx)
}

func (s *session) onSetListenMode(_ context.Context, msg incomingMessage) {
	s.machine.SetMode(msg.Mode)
	s.sendJSON(map[string]any{"type": "listen-mode", "mode": string(s.machine.Mode())})
}

func (s *session) onFetchConversations(_ context.Context, _ incomingMessage) {
	s.handleConversationList()
}

func (s *session) onFetchAndSetConversation(_ context.Context, msg incomingMessage) {
	s.handleConversationSwitch(msg.ConversationID)
}

func (s *session) onCreateNewConversation(_ context.Context, _ incomingMessage) {
	s.handleConversationCreate()
}

func (s *session) onDeleteConversation(_ context.Context, msg incomingMessage) {
	s.handleConversationDelete(msg.ConversationID)
}

func (s *session) onFetchProfiles(_ context.Context, _ incomingMessage) {
	s.handleProfileList()
}

func (s *session) onSwitchProfile(_ context.Context, msg incomingMessage) {
	s.handleProfileSwitch(msg.Profile)
}

func (s *session) onNoop(_ context.Context, _ incomingMessage) {}
