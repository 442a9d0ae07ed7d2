package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teobot/bot/guard"
	"teobot/bot/habits"
	"teobot/bot/provider"
	"teobot/bot/session"
	"teobot/bot/settings"
)

type recordingPresenter struct {
	calls []int64
	errs  map[int64]error
}

func (r *recordingPresenter) Present(ctx context.Context, userID, chatID int64, req guard.Request) error {
	if err := r.errs[userID]; err != nil {
		return err
	}
	r.calls = append(r.calls, userID)
	return nil
}

func setup(t *testing.T) (*Scheduler, *session.MemoryStore, *settings.MemoryStore, *recordingPresenter) {
	t.Helper()
	sessions := session.NewMemoryStore()
	st := settings.NewMemoryStore()
	reg := provider.NewRegistry(st, habits.NewMemoryStore())
	pres := &recordingPresenter{errs: map[int64]error{}}
	return New(sessions, st, reg, pres, time.Minute), sessions, st, pres
}

func TestFireMatchingUsersOnly(t *testing.T) {
	ctx := context.Background()
	sched, sessions, st, pres := setup(t)

	require.NoError(t, sessions.Save(ctx, session.New(1, 10)))
	require.NoError(t, sessions.Save(ctx, session.New(2, 20)))
	require.NoError(t, sessions.Save(ctx, session.New(3, 30)))

	require.NoError(t, st.Save(ctx, &settings.Settings{UserID: 1, NotifyTime: "08:30"}))
	require.NoError(t, st.Save(ctx, &settings.Settings{UserID: 2, NotifyTime: "09:00"}))
	// user 3 has no reminder configured

	sched.fire(ctx, "08:30")
	assert.Equal(t, []int64{1}, pres.calls)
}

func TestFireSkipsInactiveSessions(t *testing.T) {
	ctx := context.Background()
	sched, sessions, st, pres := setup(t)

	dead := session.New(1, 10)
	dead.Active = false
	require.NoError(t, sessions.Save(ctx, dead))
	require.NoError(t, st.Save(ctx, &settings.Settings{UserID: 1, NotifyTime: "08:30"}))

	sched.fire(ctx, "08:30")
	assert.Empty(t, pres.calls)
}

func TestFireSurvivesPresentFailure(t *testing.T) {
	ctx := context.Background()
	sched, sessions, st, pres := setup(t)

	require.NoError(t, sessions.Save(ctx, session.New(1, 10)))
	require.NoError(t, sessions.Save(ctx, session.New(2, 20)))
	require.NoError(t, st.Save(ctx, &settings.Settings{UserID: 1, NotifyTime: "08:30"}))
	require.NoError(t, st.Save(ctx, &settings.Settings{UserID: 2, NotifyTime: "08:30"}))
	pres.errs[1] = context.DeadlineExceeded

	sched.fire(ctx, "08:30")
	assert.Equal(t, []int64{2}, pres.calls, "failure for one user does not block others")
}

func TestRunFiresOncePerMinute(t *testing.T) {
	sched, sessions, st, pres := setup(t)
	ctx := context.Background()

	require.NoError(t, sessions.Save(ctx, session.New(1, 10)))
	require.NoError(t, st.Save(ctx, &settings.Settings{UserID: 1, NotifyTime: "08:30"}))

	sched.tick = 5 * time.Millisecond
	sched.now = func() time.Time {
		return time.Date(2026, 8, 31, 8, 30, 0, 0, time.UTC)
	}

	runCtx, cancel := context.WithTimeout(ctx, 40*time.Millisecond)
	defer cancel()
	err := sched.Run(runCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, []int64{1}, pres.calls, "several ticks within one minute fire once")
}
