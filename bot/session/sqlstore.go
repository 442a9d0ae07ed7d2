package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"teobot/bot/fsm"
)

// SQLStore persists sessions in the sessions table, one row per user.
type SQLStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

type sessionRow struct {
	UserID        int64         `db:"user_id"`
	ChatID        int64         `db:"chat_id"`
	LiveMessageID sql.NullInt64 `db:"live_message_id"`
	State         string        `db:"state"`
	StateData     []byte        `db:"state_data"`
	Active        bool          `db:"active"`
	UpdatedAt     time.Time     `db:"updated_at"`
}

func (r sessionRow) toSession() (*Session, error) {
	s := &Session{
		UserID:    r.UserID,
		ChatID:    r.ChatID,
		State:     fsm.State(r.State),
		Data:      fsm.Data{},
		Active:    r.Active,
		UpdatedAt: r.UpdatedAt,
	}
	if r.LiveMessageID.Valid {
		id := int(r.LiveMessageID.Int64)
		s.LiveMessageID = &id
	}
	if len(r.StateData) > 0 {
		if err := json.Unmarshal(r.StateData, &s.Data); err != nil {
			return nil, fmt.Errorf("session: decode state_data for user %d: %w", r.UserID, err)
		}
	}
	return s, nil
}

// Get returns the stored session or a fresh default one when the user has no row yet.
func (st *SQLStore) Get(ctx context.Context, userID, chatID int64) (*Session, error) {
	var row sessionRow
	err := st.db.GetContext(ctx, &row, `
		SELECT user_id, chat_id, live_message_id, state, state_data, active, updated_at
		FROM sessions WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return New(userID, chatID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: get user %d: %w", userID, err)
	}
	return row.toSession()
}

// Save upserts the session row. The write is the durability point of the
// reconciliation loop, so any error is surfaced unwrapped-able to the caller.
func (st *SQLStore) Save(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s.Data)
	if err != nil {
		return fmt.Errorf("session: encode state_data for user %d: %w", s.UserID, err)
	}
	var liveID sql.NullInt64
	if s.LiveMessageID != nil {
		liveID = sql.NullInt64{Int64: int64(*s.LiveMessageID), Valid: true}
	}
	_, err = st.db.ExecContext(ctx, `
		INSERT INTO sessions (user_id, chat_id, live_message_id, state, state_data, active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			chat_id = EXCLUDED.chat_id,
			live_message_id = EXCLUDED.live_message_id,
			state = EXCLUDED.state,
			state_data = EXCLUDED.state_data,
			active = EXCLUDED.active,
			updated_at = NOW()`,
		s.UserID, s.ChatID, liveID, string(s.State), data, s.Active)
	if err != nil {
		return fmt.Errorf("session: save user %d: %w", s.UserID, err)
	}
	return nil
}

// ListActive returns every active session.
func (st *SQLStore) ListActive(ctx context.Context) ([]*Session, error) {
	var rows []sessionRow
	err := st.db.SelectContext(ctx, &rows, `
		SELECT user_id, chat_id, live_message_id, state, state_data, active, updated_at
		FROM sessions WHERE active ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("session: list active: %w", err)
	}
	out := make([]*Session, 0, len(rows))
	for _, r := range rows {
		s, err := r.toSession()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
