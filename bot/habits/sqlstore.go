package habits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a habit id does not exist for the user.
var ErrNotFound = errors.New("habits: not found")

// SQLStore persists habits in the habits and habit_completions tables.
type SQLStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

type habitRow struct {
	ID          string         `db:"id"`
	UserID      int64          `db:"user_id"`
	Name        string         `db:"name"`
	Description sql.NullString `db:"description"`
	CreatedAt   time.Time      `db:"created_at"`
}

func (r habitRow) toHabit() *Habit {
	return &Habit{
		ID:          r.ID,
		UserID:      r.UserID,
		Name:        r.Name,
		Description: r.Description.String,
		CreatedAt:   r.CreatedAt,
	}
}

// Create inserts a habit, assigning an id when the caller left it empty.
func (st *SQLStore) Create(ctx context.Context, h *Habit) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	_, err := st.db.ExecContext(ctx, `
		INSERT INTO habits (id, user_id, name, description, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NOW())`,
		h.ID, h.UserID, h.Name, h.Description)
	if err != nil {
		return fmt.Errorf("habits: create for user %d: %w", h.UserID, err)
	}
	return nil
}

// List returns the user's habits in creation order.
func (st *SQLStore) List(ctx context.Context, userID int64) ([]*Habit, error) {
	var rows []habitRow
	err := st.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, name, description, created_at
		FROM habits WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("habits: list for user %d: %w", userID, err)
	}
	out := make([]*Habit, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toHabit())
	}
	return out, nil
}

// Get returns a habit by id scoped to the user.
func (st *SQLStore) Get(ctx context.Context, userID int64, habitID string) (*Habit, error) {
	var row habitRow
	err := st.db.GetContext(ctx, &row, `
		SELECT id, user_id, name, description, created_at
		FROM habits WHERE user_id = $1 AND id = $2`, userID, habitID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("habits: get %s for user %d: %w", habitID, userID, err)
	}
	return row.toHabit(), nil
}

// Delete removes a habit and its completions.
func (st *SQLStore) Delete(ctx context.Context, userID int64, habitID string) error {
	res, err := st.db.ExecContext(ctx, `
		DELETE FROM habits WHERE user_id = $1 AND id = $2`, userID, habitID)
	if err != nil {
		return fmt.Errorf("habits: delete %s for user %d: %w", habitID, userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkDone records a completion for the given day, idempotently.
func (st *SQLStore) MarkDone(ctx context.Context, userID int64, habitID string, day time.Time) error {
	if _, err := st.Get(ctx, userID, habitID); err != nil {
		return err
	}
	_, err := st.db.ExecContext(ctx, `
		INSERT INTO habit_completions (habit_id, done_on)
		VALUES ($1, $2)
		ON CONFLICT (habit_id, done_on) DO NOTHING`,
		habitID, day.Format("2006-01-02"))
	if err != nil {
		return fmt.Errorf("habits: mark %s done for user %d: %w", habitID, userID, err)
	}
	return nil
}

// DoneToday reports which of the user's habits are completed on the given day.
func (st *SQLStore) DoneToday(ctx context.Context, userID int64, day time.Time) (map[string]bool, error) {
	var ids []string
	err := st.db.SelectContext(ctx, &ids, `
		SELECT c.habit_id FROM habit_completions c
		JOIN habits h ON h.id = c.habit_id
		WHERE h.user_id = $1 AND c.done_on = $2`,
		userID, day.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("habits: done today for user %d: %w", userID, err)
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
