package agent

import (
	"context"
	"fmt"
	"sync"
)

// ToolFunc implements one named tool.
type ToolFunc func(ctx context.Context, args map[string]any) (string, error)

// RegistryExecutor is a ToolExecutor backed by a name-to-func registry.
type RegistryExecutor struct {
	mu    sync.RWMutex
	tools map[string]ToolFunc
}

// NewRegistryExecutor returns an empty registry.
func NewRegistryExecutor() *RegistryExecutor {
	return &RegistryExecutor{tools: make(map[string]ToolFunc)}
}

// Register adds or replaces a tool.
func (r *RegistryExecutor) Register(name string, fn ToolFunc) {
	r.mu.Lock()
	r.tools[name] = fn
	r.mu.Unlock()
}

// Names returns the registered tool names.
func (r *RegistryExecutor) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Execute runs the named tool.
func (r *RegistryExecutor) Execute(ctx context.Context, call ToolCall) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.RLock()
	fn, ok := r.tools[call.Name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown tool %q", call.Name)
	}
	return fn(ctx, call.Arguments)
}
