package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps sessions in a map. Used in tests and as a fallback when
// running without a database.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]*Session

	// SaveHook, when set, runs before each save and may veto it. Tests use it
	// to simulate persistence failures.
	SaveHook func(s *Session) error
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]*Session)}
}

// Get returns a copy of the stored session or a fresh default one.
func (m *MemoryStore) Get(ctx context.Context, userID, chatID int64) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		return s.Clone(), nil
	}
	return New(userID, chatID), nil
}

// Save stores a copy of the session.
func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveHook != nil {
		if err := m.SaveHook(s); err != nil {
			return err
		}
	}
	stored := s.Clone()
	stored.UpdatedAt = time.Now()
	m.sessions[s.UserID] = stored
	return nil
}

// ListActive returns copies of all active sessions ordered by user id.
func (m *MemoryStore) ListActive(ctx context.Context) ([]*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s.Active {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
