package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lumivoice/voice-gateway/internal/conversation"
	"github.com/lumivoice/voice-gateway/pkg/assistant"
)

// BackendGenerator relays turns to an upstream assistant backend over
// the reconnecting transport. Each turn retargets the transport's
// callback slot at its own event channel, so a stale turn stops
// receiving frames the moment a new one starts.
type BackendGenerator struct {
	client *assistant.Client
	logger *zap.Logger
}

type backendFrame struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewBackendGenerator wraps an already started transport client.
func NewBackendGenerator(client *assistant.Client, logger *zap.Logger) *BackendGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackendGenerator{client: client, logger: logger}
}

func (g *BackendGenerator) Generate(ctx context.Context, conv *conversation.Conversation, userMessage string) (<-chan Event, error) {
	if g.client.State() != assistant.StateOpen {
		return nil, errors.New("assistant backend is not connected")
	}

	// Delivery blocks when the buffer fills, so a slow turn consumer
	// backpressures the transport read loop instead of losing sentences.
	// Cancelling the turn releases any blocked delivery.
	frames := make(chan backendFrame, 16)
	deliver := func(frame backendFrame) {
		select {
		case frames <- frame:
		case <-ctx.Done():
		}
	}
	g.client.SetCallbacks(assistant.Callbacks{
		OnMessage: func(payload json.RawMessage) {
			var frame backendFrame
			if err := json.Unmarshal(payload, &frame); err != nil {
				g.logger.Warn("backend frame decode failed", zap.Error(err))
				return
			}
			deliver(frame)
		},
		OnClosed: func(err error) {
			deliver(backendFrame{Type: "closed", Message: fmt.Sprint(err)})
		},
		OnError: func(err error) {
			g.logger.Warn("assistant transport error", zap.Error(err))
		},
	})

	request := map[string]any{"type": "chat", "text": userMessage}
	if conv != nil && conv.ID != "" {
		request["conversation_id"] = conv.ID
	}
	g.client.Send(request)

	events := make(chan Event)
	go func() {
		defer close(events)
		for {
			var frame backendFrame
			select {
			case frame = <-frames:
			case <-ctx.Done():
				return
			}
			switch frame.Type {
			case "sentence":
				select {
				case events <- Event{Sentence: frame.Text}:
				case <-ctx.Done():
					return
				}
			case "complete":
				return
			case "error", "closed":
				message := frame.Message
				if message == "" {
					message = "backend turn failed"
				}
				select {
				case events <- Event{Err: errors.New(message)}:
				case <-ctx.Done():
				}
				return
			default:
				g.logger.Debug("backend frame ignored", zap.String("type", frame.Type))
			}
		}
	}()
	return events, nil
}
