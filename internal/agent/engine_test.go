package agent

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/lumivoice/voice-gateway/internal/conversation"
)

// scriptedGenerator replays a fixed event script. Tool-call entries get a
// fresh result channel and the goroutine waits for the engine's reply
// before continuing, like a real generation engine would.
type scriptedGenerator struct {
	script []Event

	mu      sync.Mutex
	results []ToolResult
}

func (g *scriptedGenerator) Generate(ctx context.Context, _ *conversation.Conversation, _ string) (<-chan Event, error) {
	events := make(chan Event)
	go func() {
		defer close(events)
		for _, event := range g.script {
			if event.Tool != nil {
				results := make(chan ToolResult, 1)
				call := *event.Tool
				call.Result = results
				select {
				case events <- Event{Tool: &call}:
				case <-ctx.Done():
					return
				}
				select {
				case result := <-results:
					g.mu.Lock()
					g.results = append(g.results, result)
					g.mu.Unlock()
					if result.Err != nil {
						return
					}
				case <-ctx.Done():
					return
				}
				continue
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

func (g *scriptedGenerator) toolResults() []ToolResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]ToolResult(nil), g.results...)
}

func collectChunks(t *testing.T, stream *Stream) []Chunk {
	t.Helper()
	var chunks []Chunk
	for {
		chunk, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return chunks
		}
		if err != nil {
			t.Fatalf("Next returned error: %v", err)
		}
		chunks = append(chunks, chunk)
	}
}

func TestProcessStreamSimpleReply(t *testing.T) {
	generator := &scriptedGenerator{script: []Event{
		{Sentence: "Hi there."},
	}}
	engine := NewEngine(generator, NewRegistryExecutor(), nil)
	conv := &conversation.Conversation{ID: "conv-1"}

	stream := engine.ProcessStream(context.Background(), conv, "Hello")
	chunks := collectChunks(t, stream)

	if len(chunks) != 2 {
		t.Fatalf("chunks=%d, want 2", len(chunks))
	}
	if chunks[0].Type != ChunkSentence || chunks[0].Text != "Hi there." {
		t.Fatalf("chunk 0=%+v, want sentence %q", chunks[0], "Hi there.")
	}
	if chunks[1].Type != ChunkComplete {
		t.Fatalf("chunk 1=%+v, want complete", chunks[1])
	}
}

func TestProcessStreamWithTool(t *testing.T) {
	generator := &scriptedGenerator{script: []Event{
		{Sentence: "Let me check."},
		{Tool: &ToolCall{Name: "weather", Arguments: map[string]any{"city": "Oslo"}}},
		{Sentence: "It's sunny."},
	}}
	tools := NewRegistryExecutor()
	tools.Register("weather", func(_ context.Context, args map[string]any) (string, error) {
		if args["city"] != "Oslo" {
			t.Fatalf("tool args=%v, want city Oslo", args)
		}
		return "sunny", nil
	})
	engine := NewEngine(generator, tools, nil)

	stream := engine.ProcessStream(context.Background(), &conversation.Conversation{ID: "conv-2"}, "What's the weather?")
	chunks := collectChunks(t, stream)

	want := []Chunk{
		{Type: ChunkSentence, Text: "Let me check."},
		{Type: ChunkToolExecuting, ToolName: "weather"},
		{Type: ChunkSentence, Text: "It's sunny."},
		{Type: ChunkComplete},
	}
	if len(chunks) != len(want) {
		t.Fatalf("chunks=%d, want %d", len(chunks), len(want))
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Fatalf("chunk %d=%+v, want %+v", i, chunks[i], want[i])
		}
	}

	results := generator.toolResults()
	if len(results) != 1 || results[0].Output != "sunny" || results[0].Err != nil {
		t.Fatalf("tool results=%+v, want one sunny result", results)
	}
}

func TestProcessStreamGenerationFailure(t *testing.T) {
	genErr := errors.New("model unavailable")
	generator := &scriptedGenerator{script: []Event{
		{Sentence: "One moment."},
		{Err: genErr},
	}}
	engine := NewEngine(generator, NewRegistryExecutor(), nil)

	stream := engine.ProcessStream(context.Background(), nil, "Hello")

	chunk, err := stream.Next()
	if err != nil {
		t.Fatalf("first Next returned error: %v", err)
	}
	if chunk.Type != ChunkSentence {
		t.Fatalf("chunk=%+v, want sentence", chunk)
	}

	if _, err := stream.Next(); !errors.Is(err, genErr) {
		t.Fatalf("Next error=%v, want wrapped %v", err, genErr)
	}
	// The failure is terminal and sticky; no Complete ever follows.
	if _, err := stream.Next(); !errors.Is(err, genErr) {
		t.Fatalf("Next after failure error=%v, want %v", err, genErr)
	}
}

func TestProcessStreamToolFailure(t *testing.T) {
	generator := &scriptedGenerator{script: []Event{
		{Tool: &ToolCall{Name: "weather"}},
		{Sentence: "never reached"},
	}}
	toolErr := errors.New("backend timeout")
	tools := NewRegistryExecutor()
	tools.Register("weather", func(context.Context, map[string]any) (string, error) {
		return "", toolErr
	})
	engine := NewEngine(generator, tools, nil)

	stream := engine.ProcessStream(context.Background(), nil, "What's the weather?")

	chunk, err := stream.Next()
	if err != nil {
		t.Fatalf("first Next returned error: %v", err)
	}
	if chunk.Type != ChunkToolExecuting || chunk.ToolName != "weather" {
		t.Fatalf("chunk=%+v, want tool_executing weather", chunk)
	}

	if _, err := stream.Next(); !errors.Is(err, toolErr) {
		t.Fatalf("Next error=%v, want wrapped %v", err, toolErr)
	}
}

func TestProcessStreamUnknownTool(t *testing.T) {
	generator := &scriptedGenerator{script: []Event{
		{Tool: &ToolCall{Name: "nonexistent"}},
	}}
	engine := NewEngine(generator, NewRegistryExecutor(), nil)

	stream := engine.ProcessStream(context.Background(), nil, "Hello")

	if _, err := stream.Next(); err != nil {
		t.Fatalf("first Next returned error: %v", err)
	}
	if _, err := stream.Next(); err == nil {
		t.Fatal("Next error=nil for unknown tool, want non-nil")
	}
}

func TestProcessStreamCancellation(t *testing.T) {
	generator := &scriptedGenerator{script: []Event{
		{Sentence: "First."},
		{Sentence: "Second."},
		{Sentence: "Third."},
	}}
	engine := NewEngine(generator, NewRegistryExecutor(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	stream := engine.ProcessStream(ctx, nil, "Hello")

	if _, err := stream.Next(); err != nil {
		t.Fatalf("first Next returned error: %v", err)
	}

	cancel()

	if _, err := stream.Next(); !errors.Is(err, context.Canceled) {
		t.Fatalf("Next after cancel error=%v, want context.Canceled", err)
	}
	// Cancelled streams never emit Complete.
	if _, err := stream.Next(); !errors.Is(err, context.Canceled) {
		t.Fatalf("Next after cancel error=%v, want context.Canceled", err)
	}
}

func TestEchoGenerator(t *testing.T) {
	engine := NewEngine(EchoGenerator{}, NewRegistryExecutor(), nil)

	stream := engine.ProcessStream(context.Background(), nil, "ping")
	chunks := collectChunks(t, stream)

	if len(chunks) != 2 {
		t.Fatalf("chunks=%d, want 2", len(chunks))
	}
	if chunks[0].Text != "You said: ping" {
		t.Fatalf("chunk 0 text=%q", chunks[0].Text)
	}
	if chunks[1].Type != ChunkComplete {
		t.Fatalf("chunk 1=%+v, want complete", chunks[1])
	}
}
