// Package habits tracks user habits and their daily completions.
package habits

import (
	"context"
	"time"
)

// Habit is one tracked habit.
type Habit struct {
	ID          string
	UserID      int64
	Name        string
	Description string
	CreatedAt   time.Time
}

// Store persists habits and completion marks.
type Store interface {
	Create(ctx context.Context, h *Habit) error
	// List returns the user's habits in creation order.
	List(ctx context.Context, userID int64) ([]*Habit, error)
	// Get returns a habit by id scoped to the user, or ErrNotFound.
	Get(ctx context.Context, userID int64, habitID string) (*Habit, error)
	Delete(ctx context.Context, userID int64, habitID string) error
	// MarkDone records a completion for the given day; repeating the mark for
	// the same day is a no-op.
	MarkDone(ctx context.Context, userID int64, habitID string, day time.Time) error
	// DoneToday reports which of the user's habits are completed on the given day.
	DoneToday(ctx context.Context, userID int64, day time.Time) (map[string]bool, error)
}
