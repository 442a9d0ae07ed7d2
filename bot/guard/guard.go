// Package guard maintains the one-live-message invariant: every user has at
// most one bot message, edited in place, with the session record updated
// before the per-user lock is released.
package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"teobot/bot/fsm"
	"teobot/bot/gateway"
	"teobot/bot/session"
	"teobot/core/logger"
)

const component = "guard"

// ErrSessionDesync means a new message reached the chat but the session write
// failed, so the stored live message id no longer matches reality. The next
// presentation self-heals by falling back to send, leaving an orphan message.
var ErrSessionDesync = errors.New("guard: session write failed after send")

// Request is one desired presentation: the state to record and the content to show.
type Request struct {
	State   fsm.State
	Data    fsm.Data
	Content gateway.Content
}

// Options tune the reconciliation loop.
type Options struct {
	// Retries bounds attempts for rate-limited and transient failures.
	Retries int
	// Backoff is the initial retry delay, doubled per attempt unless the
	// transport suggested its own wait.
	Backoff time.Duration
	// SweepWorkers and SweepQueue size the async delete pool.
	SweepWorkers int
	SweepQueue   int
}

func (o *Options) normalize() {
	if o.Retries <= 0 {
		o.Retries = 3
	}
	if o.Backoff <= 0 {
		o.Backoff = 500 * time.Millisecond
	}
	if o.SweepWorkers <= 0 {
		o.SweepWorkers = 2
	}
	if o.SweepQueue <= 0 {
		o.SweepQueue = 128
	}
}

// Guard serializes presentation per user and reconciles the live message.
type Guard struct {
	store   session.Store
	gw      gateway.Gateway
	locks   *userLocks
	sweeper *sweeper
	opts    Options

	// sleep is swapped in tests to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a guard. Call Start before use and Stop on shutdown to manage
// the sweep workers.
func New(store session.Store, gw gateway.Gateway, opts Options) *Guard {
	opts.normalize()
	g := &Guard{
		store: store,
		gw:    gw,
		locks: newUserLocks(),
		opts:  opts,
		sleep: sleepCtx,
	}
	g.sweeper = newSweeper(gw, opts.SweepWorkers, opts.SweepQueue)
	return g
}

// Start launches the sweep workers.
func (g *Guard) Start(ctx context.Context) {
	g.sweeper.start(ctx)
}

// Stop drains and stops the sweep workers.
func (g *Guard) Stop() {
	g.sweeper.stop()
}

// Acquire takes the user's serialization unit and returns its release func.
// The router holds it across a whole inbound event so session observation,
// transition and presentation happen atomically per user.
func (g *Guard) Acquire(userID int64) func() {
	return g.locks.acquire(userID)
}

// Present reconciles the live message under the user's lock.
func (g *Guard) Present(ctx context.Context, userID, chatID int64, req Request) error {
	release := g.locks.acquire(userID)
	defer release()
	return g.PresentHeld(ctx, userID, chatID, req)
}

// PresentHeld is Present for callers already holding the user's unit.
//
// The ladder: edit the live message when one exists, treat not-modified as
// success, retry rate-limited and transient failures a bounded number of
// times, and persist the resulting session before returning. Any edit failure
// short of an unreachable chat falls back to sending a replacement message;
// only a failed send surfaces to the caller.
func (g *Guard) PresentHeld(ctx context.Context, userID, chatID int64, req Request) error {
	start := time.Now()
	sess, err := g.store.Get(ctx, userID, chatID)
	if err != nil {
		return fmt.Errorf("guard: load session: %w", err)
	}
	// An explicit presentation means the user is reachable again.
	sess.Active = true
	sess.ChatID = chatID

	sent := false
	needSend := sess.LiveMessageID == nil

	if sess.LiveMessageID != nil {
		err = g.withRetry(ctx, "present.edit", func() error {
			return g.gw.Edit(ctx, chatID, *sess.LiveMessageID, req.Content)
		})
		switch kind := gateway.KindOf(err); {
		case err == nil:
		case kind == gateway.KindNotModified:
			logger.Debug(ctx, component, "present.edit",
				slog.String("status", "skip"), slog.Int("msg_id", *sess.LiveMessageID))
			err = nil
		case kind == gateway.KindUnreachable:
			return g.markUnreachable(ctx, sess, err)
		default:
			// Gone, refusing edits, or still failing after the retry budget:
			// the old message is a lost cause, replace it.
			logger.Info(ctx, component, "present.fallback",
				slog.Int("msg_id", *sess.LiveMessageID), slog.String("err_kind", string(kind)))
			sess.LiveMessageID = nil
			needSend = true
			err = nil
		}
	}

	if needSend {
		var msgID int
		err = g.withRetry(ctx, "present.send", func() error {
			id, serr := g.gw.Send(ctx, chatID, req.Content)
			if serr != nil {
				return serr
			}
			msgID = id
			return nil
		})
		if err != nil {
			if gateway.KindOf(err) == gateway.KindUnreachable {
				return g.markUnreachable(ctx, sess, err)
			}
			return fmt.Errorf("guard: send live message: %w", err)
		}
		sess.LiveMessageID = &msgID
		sent = true
	}

	sess.State = req.State
	sess.Data = req.Data.Clone()
	if err := g.saveWithRetry(ctx, sess); err != nil {
		if sent {
			// The chat now shows a message the store does not know about.
			logger.Error(ctx, component, "present.desync",
				slog.Int("live_msg_id", *sess.LiveMessageID), slog.Any("err", err))
			return fmt.Errorf("%w: %w", ErrSessionDesync, err)
		}
		return fmt.Errorf("guard: save session: %w", err)
	}

	logger.Info(ctx, component, "present",
		slog.String("state", string(sess.State)),
		slog.Int("live_msg_id", *sess.LiveMessageID),
		slog.Bool("sent", sent),
		slog.Duration("duration_ms", logger.Took(start)))
	return nil
}

// Sweep schedules a best-effort delete of a user-authored message. Failures
// are logged and swallowed; there are no retries.
func (g *Guard) Sweep(ctx context.Context, userID, chatID int64, messageID int) {
	g.SweepHeld(ctx, userID, chatID, messageID)
}

// SweepHeld is Sweep for callers already holding the user's unit. The delete
// itself runs async, so holding the lock only orders the enqueue.
func (g *Guard) SweepHeld(ctx context.Context, userID, chatID int64, messageID int) {
	g.sweeper.enqueue(ctx, chatID, messageID)
}

// markUnreachable records that the chat is gone and reports the failure.
func (g *Guard) markUnreachable(ctx context.Context, sess *session.Session, cause error) error {
	sess.Active = false
	logger.Warn(ctx, component, "present.unreachable", slog.Any("err", cause))
	if err := g.saveWithRetry(ctx, sess); err != nil {
		logger.Error(ctx, component, "present.unreachable.save", slog.Any("err", err))
	}
	return fmt.Errorf("guard: chat unreachable: %w", cause)
}

// withRetry runs op, retrying rate-limited and transient failures with
// doubling backoff, honoring transport-suggested waits.
func (g *Guard) withRetry(ctx context.Context, event string, op func() error) error {
	wait := g.opts.Backoff
	for attempt := 1; ; attempt++ {
		err := op()
		kind := gateway.KindOf(err)
		if err == nil || !kind.Retryable() || attempt >= g.opts.Retries {
			return err
		}
		delay := wait
		var ge *gateway.Error
		if errors.As(err, &ge) && ge.RetryAfter > 0 {
			delay = ge.RetryAfter
		}
		logger.Warn(ctx, component, event,
			slog.String("status", "retry"),
			slog.Int("attempt", attempt),
			slog.Duration("backoff_ms", delay),
			slog.String("err_kind", string(kind)))
		if serr := g.sleep(ctx, delay); serr != nil {
			return err
		}
		wait *= 2
	}
}

// saveWithRetry persists the session, retrying briefly since this write is
// the durability point of the whole interaction.
func (g *Guard) saveWithRetry(ctx context.Context, sess *session.Session) error {
	var err error
	for attempt := 1; attempt <= g.opts.Retries; attempt++ {
		if err = g.store.Save(ctx, sess); err == nil {
			return nil
		}
		if attempt < g.opts.Retries {
			logger.Warn(ctx, component, "session.save",
				slog.String("status", "retry"),
				slog.Int("attempt", attempt),
				slog.Any("err", err))
			if serr := g.sleep(ctx, g.opts.Backoff); serr != nil {
				return err
			}
		}
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
