package tool

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrMissingName   = errors.New("tool: missing name in definition")
	ErrDuplicate     = errors.New("tool: already registered")
	ErrNilHandler    = errors.New("tool: handler must not be nil")
	ErrNotRegistered = errors.New("tool: not registered")
)

// Handler executes a tool call with already-parsed arguments.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Registration pairs a tool definition with its handler.
type Registration struct {
	Definition Tool
	Handler    Handler
}

// Registry maps unique tool names to their definition and handler.
type Registry struct {
	mu    sync.Mutex
	tools map[string]Registration
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: map[string]Registration{}}
}

func (r *Registry) Add(def Tool, h Handler) error {
	if def.Name == "" {
		return ErrMissingName
	}
	if h == nil {
		return fmt.Errorf("%w: %q", ErrNilHandler, def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[def.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicate, def.Name)
	}
	r.tools[def.Name] = Registration{Definition: def, Handler: h}
	r.order = append(r.order, def.Name)
	return nil
}

func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	delete(r.tools, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *Registry) Get(name string) (Registration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.tools[name]
	return reg, ok
}

// List returns the registered definitions in registration order, each
// tagged type "function" for the session tool list.
func (r *Registry) List() []Tool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		def := r.tools[name].Definition
		def.Type = "function"
		out = append(out, def)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tools)
}

func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = map[string]Registration{}
	r.order = nil
}
