package agent

import (
	"context"

	"github.com/lumivoice/voice-gateway/internal/conversation"
)

// ChunkType discriminates the chunk variants.
type ChunkType string

const (
	// ChunkSentence carries one sentence of agent output.
	ChunkSentence ChunkType = "sentence"
	// ChunkToolExecuting marks that a named tool is running.
	ChunkToolExecuting ChunkType = "tool_executing"
	// ChunkComplete terminates a successful stream. Nothing follows it.
	ChunkComplete ChunkType = "complete"
)

// Chunk is one unit of agent output.
type Chunk struct {
	Type     ChunkType
	Text     string
	ToolName string
}

// ToolResult is the outcome of a tool execution, delivered back to the
// generator so it can resume.
type ToolResult struct {
	Output string
	Err    error
}

// ToolCall is a generator's request to run a named tool. Result must be
// ready to receive exactly one ToolResult; generation pauses until the
// engine replies.
type ToolCall struct {
	Name      string
	Arguments map[string]any
	Result    chan<- ToolResult
}

// Event is one generation step: a sentence, a tool call, or a failure.
// Closing the event channel without an Err event ends the turn
// successfully.
type Event struct {
	Sentence string
	Tool     *ToolCall
	Err      error
}

// Generator is the external generation engine. It produces the reply for
// one user turn as a stream of events and must honor ctx cancellation.
type Generator interface {
	Generate(ctx context.Context, conv *conversation.Conversation, userMessage string) (<-chan Event, error)
}

// ToolExecutor runs a named tool on behalf of the generator.
type ToolExecutor interface {
	Execute(ctx context.Context, call ToolCall) (string, error)
}
