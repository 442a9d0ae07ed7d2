package habits

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps habits in maps, for tests and database-less runs.
type MemoryStore struct {
	mu     sync.Mutex
	habits map[string]*Habit
	// done maps habit id to the set of completed days ("2006-01-02").
	done map[string]map[string]bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		habits: make(map[string]*Habit),
		done:   make(map[string]map[string]bool),
	}
}

func (m *MemoryStore) Create(ctx context.Context, h *Habit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	cp := *h
	cp.CreatedAt = time.Now()
	m.habits[h.ID] = &cp
	return nil
}

func (m *MemoryStore) List(ctx context.Context, userID int64) ([]*Habit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Habit
	for _, h := range m.habits {
		if h.UserID == userID {
			cp := *h
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) Get(ctx context.Context, userID int64, habitID string) (*Habit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.habits[habitID]
	if !ok || h.UserID != userID {
		return nil, ErrNotFound
	}
	cp := *h
	return &cp, nil
}

func (m *MemoryStore) Delete(ctx context.Context, userID int64, habitID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.habits[habitID]
	if !ok || h.UserID != userID {
		return ErrNotFound
	}
	delete(m.habits, habitID)
	delete(m.done, habitID)
	return nil
}

func (m *MemoryStore) MarkDone(ctx context.Context, userID int64, habitID string, day time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.habits[habitID]
	if !ok || h.UserID != userID {
		return ErrNotFound
	}
	days := m.done[habitID]
	if days == nil {
		days = make(map[string]bool)
		m.done[habitID] = days
	}
	days[day.Format("2006-01-02")] = true
	return nil
}

func (m *MemoryStore) DoneToday(ctx context.Context, userID int64, day time.Time) (map[string]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := day.Format("2006-01-02")
	out := make(map[string]bool)
	for id, h := range m.habits {
		if h.UserID == userID && m.done[id][key] {
			out[id] = true
		}
	}
	return out, nil
}
