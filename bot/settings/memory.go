package settings

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps settings in a map, for tests and database-less runs.
type MemoryStore struct {
	mu      sync.Mutex
	records map[int64]*Settings
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[int64]*Settings)}
}

func (m *MemoryStore) Get(ctx context.Context, userID int64) (*Settings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.records[userID]; ok {
		cp := *s
		return &cp, nil
	}
	return &Settings{UserID: userID}, nil
}

func (m *MemoryStore) Save(ctx context.Context, s *Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	cp.UpdatedAt = time.Now()
	m.records[s.UserID] = &cp
	return nil
}

func (m *MemoryStore) ListByNotifyTime(ctx context.Context, hhmm string) ([]*Settings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Settings
	for _, s := range m.records {
		if s.NotifyTime == hhmm {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
