package store

import (
	"context"
	"sync"
)

// MemorySessionRepository implements SessionRepository in process memory.
// Suitable for tests and single-instance deployments without persistence
// requirements.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string][]Message
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: map[string][]Message{}}
}

func (r *MemorySessionRepository) Save(ctx context.Context, sessionID string, history []Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = append([]Message(nil), history...)
	return nil
}

func (r *MemorySessionRepository) Load(ctx context.Context, sessionID string) ([]Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	history, ok := r.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return append([]Message(nil), history...), nil
}

func (r *MemorySessionRepository) Delete(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	return nil
}
