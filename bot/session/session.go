// Package session holds the durable per-user conversation record: which bot
// message is currently live, what state the dialog is in, and the data carried
// between transitions.
package session

import (
	"context"
	"time"

	"teobot/bot/fsm"
)

// Session is the per-user conversation record. A session is created lazily on
// the first inbound event and never deleted afterwards, only mutated.
type Session struct {
	UserID int64
	ChatID int64
	// LiveMessageID identifies the single live bot message, or nil when no
	// message has been posted yet (or the previous one became unreachable).
	LiveMessageID *int
	State         fsm.State
	Data          fsm.Data
	// Active is cleared when the chat becomes permanently unreachable; a
	// fresh inbound event re-activates the session.
	Active    bool
	UpdatedAt time.Time
}

// New returns a fresh default session for a user that has no record yet.
func New(userID, chatID int64) *Session {
	return &Session{
		UserID: userID,
		ChatID: chatID,
		State:  fsm.StateIdle,
		Data:   fsm.Data{},
		Active: true,
	}
}

// Clone returns a deep copy so callers can mutate without aliasing the stored record.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.LiveMessageID != nil {
		id := *s.LiveMessageID
		out.LiveMessageID = &id
	}
	out.Data = s.Data.Clone()
	return &out
}

// Store persists sessions, one record per user, last-write-wins.
// Implementations provide no locking; callers serialize access per user.
type Store interface {
	// Get returns the stored session or a fresh default one when absent.
	Get(ctx context.Context, userID, chatID int64) (*Session, error)
	// Save upserts the session record durably.
	Save(ctx context.Context, s *Session) error
	// ListActive returns all active sessions, used by the notifier.
	ListActive(ctx context.Context) ([]*Session, error)
}
