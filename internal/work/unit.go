package work

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Handler executes one work unit. The params blob is whatever the caller bound
// at populate time; its schema is private to the handler.
type Handler func(ctx context.Context, params json.RawMessage) error

// Unit is a serializable work descriptor: an operation tag plus its bound
// parameters. The tracker never interprets the params, it only redelivers them.
type Unit struct {
	Kind   string          `json:"kind"`
	Params json.RawMessage `json:"params,omitempty"`
}

func (u Unit) Validate() error {
	if strings.TrimSpace(u.Kind) == "" {
		return fmt.Errorf("work unit kind is required")
	}
	return nil
}

// Registry maps work-unit kinds to their handlers. Registration happens at
// process start; resolution happens on every task execution.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[string]Handler{}}
}

func (r *Registry) Register(kind string, handler Handler) error {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return fmt.Errorf("work unit kind is required")
	}
	if handler == nil {
		return fmt.Errorf("handler is required for kind %q", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[kind]; exists {
		return fmt.Errorf("work unit kind %q already registered", kind)
	}
	r.handlers[kind] = handler
	return nil
}

func (r *Registry) Resolve(kind string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[strings.TrimSpace(kind)]
	if !ok {
		return nil, fmt.Errorf("unknown work unit kind %q", kind)
	}
	return handler, nil
}

func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.handlers))
	for kind := range r.handlers {
		kinds = append(kinds, kind)
	}
	return kinds
}
