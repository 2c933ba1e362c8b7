package agent

import (
	"context"
	"fmt"
	"io"

	"github.com/lumivoice/voice-gateway/internal/conversation"
)

// Stream is the pull-based chunk sequence for one user turn. It is not
// safe for concurrent use; a single consumer calls Next until it returns
// an error.
//
// Next returns io.EOF after the Complete chunk. Any other error is
// terminal: the turn failed (or was cancelled) and no Complete was or
// will be emitted.
type Stream struct {
	ctx     context.Context
	engine  *Engine
	conv    *conversation.Conversation
	message string

	events  <-chan Event
	started bool
	done    bool
	err     error
	pending *ToolCall
}

// Next returns the next chunk. The cancellation signal is observed at
// every suspension point: before yielding each chunk and on both sides of
// a tool execution.
func (s *Stream) Next() (Chunk, error) {
	if s.done {
		if s.err != nil {
			return Chunk{}, s.err
		}
		return Chunk{}, io.EOF
	}
	if err := s.ctx.Err(); err != nil {
		return Chunk{}, s.fail(err)
	}

	if !s.started {
		events, err := s.engine.generator.Generate(s.ctx, s.conv, s.message)
		if err != nil {
			return Chunk{}, s.fail(fmt.Errorf("start generation: %w", err))
		}
		s.events = events
		s.started = true
	}

	if s.pending != nil {
		if err := s.runPendingTool(); err != nil {
			return Chunk{}, err
		}
	}

	select {
	case <-s.ctx.Done():
		return Chunk{}, s.fail(s.ctx.Err())
	case event, ok := <-s.events:
		if !ok {
			// The generator also closes its channel when it stops on
			// cancellation, so cancellation wins over Complete here.
			if err := s.ctx.Err(); err != nil {
				return Chunk{}, s.fail(err)
			}
			// Successful end of generation: Complete is the last chunk.
			s.done = true
			return Chunk{Type: ChunkComplete}, nil
		}
		switch {
		case event.Err != nil:
			return Chunk{}, s.fail(fmt.Errorf("generation failed: %w", event.Err))
		case event.Tool != nil:
			// Yield the tool marker first; the tool itself runs on the
			// next pull, between chunks.
			s.pending = event.Tool
			return Chunk{Type: ChunkToolExecuting, ToolName: event.Tool.Name}, nil
		default:
			return Chunk{Type: ChunkSentence, Text: event.Sentence}, nil
		}
	}
}

// runPendingTool executes the stashed tool call and replies to the
// generator. A non-nil return is a terminal stream error.
func (s *Stream) runPendingTool() error {
	call := s.pending
	s.pending = nil

	output, err := s.engine.tools.Execute(s.ctx, *call)
	if call.Result != nil {
		select {
		case call.Result <- ToolResult{Output: output, Err: err}:
		case <-s.ctx.Done():
			return s.fail(s.ctx.Err())
		}
	}
	if err != nil {
		return s.fail(fmt.Errorf("tool %s: %w", call.Name, err))
	}
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		return s.fail(ctxErr)
	}
	return nil
}

func (s *Stream) fail(err error) error {
	s.done = true
	s.err = err
	return err
}
