// Package settings stores per-user preferences: home city for weather,
// daily notification time and the finance sheet link.
package settings

import (
	"context"
	"time"
)

// Settings is the per-user preference record. Empty strings mean unset.
type Settings struct {
	UserID int64
	City   string
	// NotifyTime is the daily reminder time in "HH:MM" 24h form, or empty
	// when reminders are off.
	NotifyTime string
	SheetURL   string
	UpdatedAt  time.Time
}

// Store persists user settings.
type Store interface {
	// Get returns the stored settings or an empty record when absent.
	Get(ctx context.Context, userID int64) (*Settings, error)
	Save(ctx context.Context, s *Settings) error
	// ListByNotifyTime returns settings of users whose reminder fires at the
	// given "HH:MM" time.
	ListByNotifyTime(ctx context.Context, hhmm string) ([]*Settings, error)
}
