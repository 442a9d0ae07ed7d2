// Package notify replaces the live message with the daily reminder screen for
// users whose configured time has come.
package notify

import (
	"context"
	"log/slog"
	"time"

	"teobot/bot/fsm"
	"teobot/bot/guard"
	"teobot/bot/provider"
	"teobot/bot/session"
	"teobot/bot/settings"
	"teobot/core/logger"
)

const component = "notify"

// Presenter is the guard surface the scheduler needs. Present locks per user
// itself, so reminders interleave safely with interactive events.
type Presenter interface {
	Present(ctx context.Context, userID, chatID int64, req guard.Request) error
}

// Scheduler fires reminders once per configured minute.
type Scheduler struct {
	sessions session.Store
	settings settings.Store
	provider provider.Provider
	guard    Presenter
	tick     time.Duration

	now func() time.Time
}

// New builds a scheduler ticking at the given interval.
func New(sessions session.Store, st settings.Store, p provider.Provider, g Presenter, tick time.Duration) *Scheduler {
	if tick <= 0 {
		tick = time.Minute
	}
	return &Scheduler{
		sessions: sessions,
		settings: st,
		provider: p,
		guard:    g,
		tick:     tick,
		now:      time.Now,
	}
}

// Run loops until the context is done. Each minute fires at most once.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	var lastFired string
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			hhmm := s.now().Format("15:04")
			if hhmm == lastFired {
				continue
			}
			lastFired = hhmm
			s.fire(ctx, hhmm)
		}
	}
}

// fire presents the reminder screen to every matching active session.
func (s *Scheduler) fire(ctx context.Context, hhmm string) {
	active, err := s.sessions.ListActive(ctx)
	if err != nil {
		logger.Error(ctx, component, "list", slog.Any("err", err))
		return
	}

	fired := 0
	for _, sess := range active {
		st, err := s.settings.Get(ctx, sess.UserID)
		if err != nil {
			logger.Warn(ctx, component, "settings.load",
				slog.Int64("user_id", sess.UserID), slog.Any("err", err))
			continue
		}
		if st.NotifyTime != hhmm {
			continue
		}

		data := fsm.Data{fsm.DataFeature: "habits"}
		content, err := s.provider.RenderState(ctx, sess.UserID, fsm.StateMenu, data)
		if err != nil {
			logger.Error(ctx, component, "render",
				slog.Int64("user_id", sess.UserID), slog.Any("err", err))
			continue
		}
		err = s.guard.Present(ctx, sess.UserID, sess.ChatID, guard.Request{
			State:   fsm.StateMenu,
			Data:    data,
			Content: content,
		})
		if err != nil {
			logger.Warn(ctx, component, "present",
				slog.Int64("user_id", sess.UserID),
				slog.String("notify_time", hhmm),
				slog.Any("err", err))
			continue
		}
		fired++
	}
	if fired > 0 {
		logger.Info(ctx, component, "fire",
			slog.String("notify_time", hhmm), slog.Int("attempts", fired))
	}
}
