package capture

import (
	"context"
	"sync"

	"github.com/strata-gfx/strata/pkg/observability"
)

// MemoryStore is an in-memory session store for tests and short-lived
// tools.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		observability.Capture().OnLoad(ctx, "memory", false)
		return nil, nil
	}
	if sess.IsExpired() {
		observability.Capture().OnLoad(ctx, "memory", false)
		return nil, ErrExpired
	}
	observability.Capture().OnLoad(ctx, "memory", true)
	cp := *sess
	return &cp, nil
}

func (s *MemoryStore) Set(ctx context.Context, sess *Session) error {
	s.mu.Lock()
	cp := *sess
	s.sessions[sess.ID] = &cp
	s.mu.Unlock()
	observability.Capture().OnSave(ctx, "memory", len(sess.Transactions))
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.sessions))
	for id, sess := range s.sessions {
		if !sess.IsExpired() {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *MemoryStore) Cleanup(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if sess.IsExpired() {
			delete(s.sessions, id)
		}
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
