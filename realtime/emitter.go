package realtime

import (
	"context"
	"sync"
)

// Handler receives one dispatched event.
type Handler func(event any)

type registeredHandler struct {
	fn    Handler
	async bool
}

// emitter is a named-listener registry. For a single event, listeners
// registered for the specific name run in registration order, then
// wildcard ("*") listeners in registration order. Async listeners are
// scheduled on their own goroutine and never block dispatch.
type emitter struct {
	mu       sync.Mutex
	handlers map[string][]registeredHandler
	waiters  map[string][]chan any
	closed   bool
}

func newEmitter() *emitter {
	return &emitter{
		handlers: map[string][]registeredHandler{},
		waiters:  map[string][]chan any{},
	}
}

// On registers a synchronous listener for eventName ("*" for all events).
func (e *emitter) On(eventName string, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[eventName] = append(e.handlers[eventName], registeredHandler{fn: h})
}

// OnAsync registers a listener invoked on its own goroutine per event.
// Spawned goroutines are not tracked or joined on shutdown; two events
// may observe their async listeners complete out of order even though
// state mutations happened in arrival order.
func (e *emitter) OnAsync(eventName string, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[eventName] = append(e.handlers[eventName], registeredHandler{fn: h, async: true})
}

func (e *emitter) clearHandlers() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = map[string][]registeredHandler{}
}

// dispatch delivers evt to eventName listeners, then wildcard listeners,
// then any one-shot waiters for eventName.
func (e *emitter) dispatch(eventName string, evt any) {
	e.mu.Lock()
	hs := make([]registeredHandler, 0, len(e.handlers[eventName])+len(e.handlers["*"]))
	hs = append(hs, e.handlers[eventName]...)
	hs = append(hs, e.handlers["*"]...)
	ws := e.waiters[eventName]
	delete(e.waiters, eventName)
	e.mu.Unlock()

	for _, h := range hs {
		if h.async {
			go h.fn(evt)
		} else {
			h.fn(evt)
		}
	}
	for _, w := range ws {
		w <- evt
		close(w)
	}
}

// WaitForNext blocks until the next occurrence of eventName, ctx expiry,
// or emitter shutdown. Shutdown fails the wait with ErrConnectionClosed.
func (e *emitter) WaitForNext(ctx context.Context, eventName string) (any, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrConnectionClosed
	}
	ch := make(chan any, 1)
	e.waiters[eventName] = append(e.waiters[eventName], ch)
	e.mu.Unlock()

	select {
	case evt, ok := <-ch:
		if !ok {
			return nil, ErrConnectionClosed
		}
		return evt, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// shutdown fails all pending waiters and rejects future ones until reopen.
func (e *emitter) shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	for name, ws := range e.waiters {
		for _, w := range ws {
			close(w)
		}
		delete(e.waiters, name)
	}
}

func (e *emitter) reopen() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = false
}
