package agent

import (
	"context"

	"github.com/lumivoice/voice-gateway/internal/conversation"
)

// EchoGenerator is a development stand-in for a real generation engine:
// it replies with a single sentence echoing the user message.
type EchoGenerator struct{}

func (EchoGenerator) Generate(ctx context.Context, _ *conversation.Conversation, userMessage string) (<-chan Event, error) {
	events := make(chan Event, 1)
	go func() {
		defer close(events)
		select {
		case events <- Event{Sentence: "You said: " + userMessage}:
		case <-ctx.Done():
		}
	}()
	return events, nil
}
