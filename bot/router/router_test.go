package router

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"teobot/bot/fsm"
	"teobot/bot/gateway"
	"teobot/bot/guard"
	"teobot/bot/habits"
	"teobot/bot/provider"
	"teobot/bot/session"
	"teobot/bot/settings"
)

// fakePresenter stands in for the guard: it records calls and persists the
// requested state so follow-up events observe it.
type fakePresenter struct {
	store    session.Store
	presents []guard.Request
	swept    []int
	acquired int
}

func (f *fakePresenter) Acquire(userID int64) func() {
	f.acquired++
	return func() {}
}

func (f *fakePresenter) PresentHeld(ctx context.Context, userID, chatID int64, req guard.Request) error {
	f.presents = append(f.presents, req)
	sess, err := f.store.Get(ctx, userID, chatID)
	if err != nil {
		return err
	}
	id := 900
	sess.LiveMessageID = &id
	sess.State = req.State
	sess.Data = req.Data.Clone()
	return f.store.Save(ctx, sess)
}

func (f *fakePresenter) SweepHeld(ctx context.Context, userID, chatID int64, messageID int) {
	f.swept = append(f.swept, messageID)
}

type fixture struct {
	router    *Router
	presenter *fakePresenter
	sessions  *session.MemoryStore
	settings  *settings.MemoryStore
	habits    *habits.MemoryStore
}

func newFixture() *fixture {
	sessions := session.NewMemoryStore()
	st := settings.NewMemoryStore()
	hb := habits.NewMemoryStore()
	pres := &fakePresenter{store: sessions}
	reg := provider.NewRegistry(st, hb)
	return &fixture{
		router:    New(sessions, pres, reg, time.Second),
		presenter: pres,
		sessions:  sessions,
		settings:  st,
		habits:    hb,
	}
}

func (fx *fixture) lastPresent(t *testing.T) guard.Request {
	t.Helper()
	require.NotEmpty(t, fx.presenter.presents)
	return fx.presenter.presents[len(fx.presenter.presents)-1]
}

func TestCommandPresentsMenuAndSweeps(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()

	err := fx.router.process(ctx, 7, 70, 41, fsm.Event{Type: fsm.EventCommand, Value: "start"})
	require.NoError(t, err)

	require.Len(t, fx.presenter.presents, 1)
	assert.Equal(t, fsm.StateMenu, fx.lastPresent(t).State)
	assert.NotEmpty(t, fx.lastPresent(t).Content.Text)
	assert.Equal(t, []int{41}, fx.presenter.swept)
}

func TestTextNoiseReRendersCurrentState(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()

	require.NoError(t, fx.router.process(ctx, 7, 70, 41, fsm.Event{Type: fsm.EventCommand, Value: "menu"}))
	require.NoError(t, fx.router.process(ctx, 7, 70, 42, fsm.Event{Type: fsm.EventText, Value: "hello there"}))

	require.Len(t, fx.presenter.presents, 2, "noise still produces exactly one presentation")
	assert.Equal(t, fsm.StateMenu, fx.lastPresent(t).State)
	assert.Equal(t, []int{41, 42}, fx.presenter.swept, "noise is swept like any user message")
}

func TestCallbackNotSwept(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()

	require.NoError(t, fx.router.process(ctx, 7, 70, 0, fsm.Event{Type: fsm.EventCallback, Value: "weather"}))
	assert.Empty(t, fx.presenter.swept)
	assert.Equal(t, fsm.StateMenu, fx.lastPresent(t).State)
	assert.Equal(t, "weather", fx.lastPresent(t).Data[fsm.DataFeature])
}

func TestAwaitingInputFlow(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()

	require.NoError(t, fx.router.process(ctx, 7, 70, 0, fsm.Event{Type: fsm.EventCallback, Value: "ask_city"}))
	assert.Equal(t, fsm.Awaiting(fsm.SubtypeCity), fx.lastPresent(t).State)

	require.NoError(t, fx.router.process(ctx, 7, 70, 43, fsm.Event{Type: fsm.EventText, Value: "Lisbon"}))
	last := fx.lastPresent(t)
	assert.Equal(t, fsm.StateMenu, last.State)
	assert.Equal(t, "Lisbon", last.Data[fsm.DataCity])

	saved, err := fx.settings.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Lisbon", saved.City)
}

func TestInvalidInputStaysInPrompt(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()

	require.NoError(t, fx.router.process(ctx, 7, 70, 0, fsm.Event{Type: fsm.EventCallback, Value: "ask_time"}))
	require.NoError(t, fx.router.process(ctx, 7, 70, 44, fsm.Event{Type: fsm.EventText, Value: "whenever"}))

	last := fx.lastPresent(t)
	assert.Equal(t, fsm.Awaiting(fsm.SubtypeTime), last.State)
	assert.NotEmpty(t, last.Data[fsm.DataError])
	assert.Contains(t, last.Content.Text, "⚠️")
}

func TestActionCallbackMarksHabitDone(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()
	h := &habits.Habit{UserID: 7, Name: "run"}
	require.NoError(t, fx.habits.Create(ctx, h))

	require.NoError(t, fx.router.process(ctx, 7, 70, 0, fsm.Event{Type: fsm.EventCallback, Value: "habit_done", Payload: h.ID}))

	last := fx.lastPresent(t)
	assert.Equal(t, fsm.StateMenu, last.State)
	assert.Equal(t, "habits", last.Data[fsm.DataFeature])
	assert.Contains(t, last.Content.Text, "✅")

	done, err := fx.habits.DoneToday(ctx, 7, time.Now())
	require.NoError(t, err)
	assert.True(t, done[h.ID])
}

func TestEveryEventAcquiresTheUnit(t *testing.T) {
	ctx := context.Background()
	fx := newFixture()

	require.NoError(t, fx.router.process(ctx, 7, 70, 1, fsm.Event{Type: fsm.EventCommand, Value: "menu"}))
	require.NoError(t, fx.router.process(ctx, 7, 70, 0, fsm.Event{Type: fsm.EventCallback, Value: "help"}))
	require.NoError(t, fx.router.process(ctx, 7, 70, 2, fsm.Event{Type: fsm.EventText, Value: "noise"}))

	assert.Equal(t, 3, fx.presenter.acquired)
	assert.Len(t, fx.presenter.presents, 3)
}

// timeoutProvider simulates provider work that outlives its deadline while in
// the processing state.
type timeoutProvider struct {
	*provider.Registry
}

func (p timeoutProvider) RenderState(ctx context.Context, userID int64, state fsm.State, data fsm.Data) (gateway.Content, error) {
	if state == fsm.StateProcessing {
		return gateway.Content{}, context.DeadlineExceeded
	}
	return p.Registry.RenderState(ctx, userID, state, data)
}

func TestProviderDeadlineInProcessingBecomesErrorScreen(t *testing.T) {
	ctx := context.Background()
	sessions := session.NewMemoryStore()
	pres := &fakePresenter{store: sessions}
	reg := provider.NewRegistry(settings.NewMemoryStore(), habits.NewMemoryStore())
	r := New(sessions, pres, timeoutProvider{reg}, 10*time.Millisecond)

	require.NoError(t, r.process(ctx, 7, 70, 0, fsm.Event{Type: fsm.EventCallback, Value: "process"}))

	require.Len(t, pres.presents, 1, "timeout still yields exactly one presentation")
	last := pres.presents[0]
	assert.Equal(t, fsm.StateError, last.State)
	assert.NotEmpty(t, last.Data[fsm.DataError])
	assert.Contains(t, last.Content.Text, "Error")
}

func TestParseCallback(t *testing.T) {
	key, payload := parseCallback(&tele.Callback{Data: "\fhabit_done|h-1"})
	assert.Equal(t, "habit_done", key)
	assert.Equal(t, "h-1", payload)

	key, payload = parseCallback(&tele.Callback{Data: "\fback"})
	assert.Equal(t, "back", key)
	assert.Empty(t, payload)

	key, payload = parseCallback(&tele.Callback{Unique: "weather", Data: ""})
	assert.Equal(t, "weather", key)
	assert.Empty(t, payload)

	key, payload = parseCallback(nil)
	assert.Empty(t, key)
	assert.Empty(t, payload)
}

func TestRoutesCoverCommandsAndFallbacks(t *testing.T) {
	fx := newFixture()
	routes := fx.router.Routes()

	endpoints := make(map[any]bool, len(routes))
	for _, r := range routes {
		endpoints[r.Endpoint] = true
		require.NotNil(t, r.Handler)
	}
	for _, ep := range []any{tele.OnText, tele.OnCallback, "/start", "/menu", "/habits", "/settings", "/help", "/cancel"} {
		assert.True(t, endpoints[ep], "missing route %v", ep)
	}
}
