package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SQLStore persists settings in the user_settings table.
type SQLStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

type settingsRow struct {
	UserID     int64          `db:"user_id"`
	City       sql.NullString `db:"city"`
	NotifyTime sql.NullString `db:"notify_time"`
	SheetURL   sql.NullString `db:"sheet_url"`
	UpdatedAt  sql.NullTime   `db:"updated_at"`
}

func (r settingsRow) toSettings() *Settings {
	s := &Settings{
		UserID:     r.UserID,
		City:       r.City.String,
		NotifyTime: r.NotifyTime.String,
		SheetURL:   r.SheetURL.String,
	}
	if r.UpdatedAt.Valid {
		s.UpdatedAt = r.UpdatedAt.Time
	}
	return s
}

// Get returns the stored settings or an empty record when the user has none.
func (st *SQLStore) Get(ctx context.Context, userID int64) (*Settings, error) {
	var row settingsRow
	err := st.db.GetContext(ctx, &row, `
		SELECT user_id, city, notify_time, sheet_url, updated_at
		FROM user_settings WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return &Settings{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("settings: get user %d: %w", userID, err)
	}
	return row.toSettings(), nil
}

// Save upserts the settings row.
func (st *SQLStore) Save(ctx context.Context, s *Settings) error {
	_, err := st.db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, city, notify_time, sheet_url, updated_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			city = EXCLUDED.city,
			notify_time = EXCLUDED.notify_time,
			sheet_url = EXCLUDED.sheet_url,
			updated_at = NOW()`,
		s.UserID, s.City, s.NotifyTime, s.SheetURL)
	if err != nil {
		return fmt.Errorf("settings: save user %d: %w", s.UserID, err)
	}
	return nil
}

// ListByNotifyTime returns settings of users subscribed to the given minute.
func (st *SQLStore) ListByNotifyTime(ctx context.Context, hhmm string) ([]*Settings, error) {
	var rows []settingsRow
	err := st.db.SelectContext(ctx, &rows, `
		SELECT user_id, city, notify_time, sheet_url, updated_at
		FROM user_settings WHERE notify_time = $1 ORDER BY user_id`, hhmm)
	if err != nil {
		return nil, fmt.Errorf("settings: list by notify time %q: %w", hhmm, err)
	}
	out := make([]*Settings, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toSettings())
	}
	return out, nil
}
