package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/lumivoice/voice-gateway/internal/conversation"
)

// Engine couples a generator with a tool executor and produces chunk
// streams for user turns.
type Engine struct {
	generator Generator
	tools     ToolExecutor
	logger    *zap.Logger
}

// NewEngine builds an engine. A nil logger is replaced with a no-op one.
func NewEngine(generator Generator, tools ToolExecutor, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		generator: generator,
		tools:     tools,
		logger:    logger,
	}
}

// ProcessStream begins one turn. The returned stream is lazy: generation
// starts on the first Next call. Each stream is one-shot and
// single-consumer; cancel ctx to stop production.
func (e *Engine) ProcessStream(ctx context.Context, conv *conversation.Conversation, userMessage string) *Stream {
	convID := ""
	if conv != nil {
		convID = conv.ID
	}
	e.logger.Debug("agent stream requested",
		zap.String("conversation_id", convID),
		zap.Int("message_chars", len(userMessage)),
	)
	return &Stream{
		ctx:     ctx,
		engine:  e,
		conv:    conv,
		message: userMessage,
	}
}
