package guard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teobot/bot/fsm"
	"teobot/bot/gateway"
	"teobot/bot/session"
)

type editCall struct {
	chatID    int64
	messageID int
	text      string
}

type fakeGateway struct {
	mu      sync.Mutex
	nextID  int
	sends   []int64
	edits   []editCall
	deletes []int

	sendErrs   []error
	editErrs   []error
	deleteErrs []error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{nextID: 100}
}

func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (f *fakeGateway) Send(ctx context.Context, chatID int64, content gateway.Content) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := pop(&f.sendErrs); err != nil {
		return 0, gateway.Classify(err)
	}
	f.nextID++
	f.sends = append(f.sends, chatID)
	return f.nextID, nil
}

func (f *fakeGateway) Edit(ctx context.Context, chatID int64, messageID int, content gateway.Content) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := pop(&f.editErrs); err != nil {
		return gateway.Classify(err)
	}
	f.edits = append(f.edits, editCall{chatID: chatID, messageID: messageID, text: content.Text})
	return nil
}

func (f *fakeGateway) Delete(ctx context.Context, chatID int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := pop(&f.deleteErrs); err != nil {
		return gateway.Classify(err)
	}
	f.deletes = append(f.deletes, messageID)
	return nil
}

func (f *fakeGateway) counts() (sends, edits, deletes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends), len(f.edits), len(f.deletes)
}

func newTestGuard(store session.Store, gw gateway.Gateway) (*Guard, *[]time.Duration) {
	g := New(store, gw, Options{Retries: 3, Backoff: 10 * time.Millisecond})
	slept := &[]time.Duration{}
	g.sleep = func(ctx context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return g, slept
}

func menuRequest(text string) Request {
	return Request{
		State:   fsm.StateMenu,
		Data:    fsm.Data{},
		Content: gateway.Content{Text: text},
	}
}

func TestFirstPresentSendsAndPersists(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	gw := newFakeGateway()
	g, _ := newTestGuard(store, gw)

	require.NoError(t, g.Present(ctx, 7, 70, menuRequest("menu")))

	sends, edits, _ := gw.counts()
	assert.Equal(t, 1, sends)
	assert.Equal(t, 0, edits)

	sess, err := store.Get(ctx, 7, 70)
	require.NoError(t, err)
	require.NotNil(t, sess.LiveMessageID)
	assert.Equal(t, 101, *sess.LiveMessageID)
	assert.Equal(t, fsm.StateMenu, sess.State)
}

func TestSecondPresentEditsInPlace(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	gw := newFakeGateway()
	g, _ := newTestGuard(store, gw)

	require.NoError(t, g.Present(ctx, 7, 70, menuRequest("one")))
	require.NoError(t, g.Present(ctx, 7, 70, menuRequest("two")))

	sends, edits, _ := gw.counts()
	assert.Equal(t, 1, sends)
	assert.Equal(t, 1, edits)
	assert.Equal(t, 101, gw.edits[0].messageID)

	sess, _ := store.Get(ctx, 7, 70)
	assert.Equal(t, 101, *sess.LiveMessageID)
}

func TestNotModifiedIsSuccess(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	gw := newFakeGateway()
	g, slept := newTestGuard(store, gw)

	require.NoError(t, g.Present(ctx, 7, 70, menuRequest("same")))
	gw.editErrs = []error{&gateway.Error{Kind: gateway.KindNotModified}}

	require.NoError(t, g.Present(ctx, 7, 70, menuRequest("same")))

	sends, _, _ := gw.counts()
	assert.Equal(t, 1, sends, "no fallback send on not-modified")
	assert.Empty(t, *slept, "no retries on not-modified")
}

func TestNotFoundFallsBackToSingleSend(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	gw := newFakeGateway()
	g, _ := newTestGuard(store, gw)

	require.NoError(t, g.Present(ctx, 7, 70, menuRequest("one")))
	gw.editErrs = []error{&gateway.Error{Kind: gateway.KindNotFound}}

	require.NoError(t, g.Present(ctx, 7, 70, menuRequest("two")))

	sends, edits, _ := gw.counts()
	assert.Equal(t, 2, sends)
	assert.Equal(t, 0, edits)

	sess, _ := store.Get(ctx, 7, 70)
	assert.Equal(t, 102, *sess.LiveMessageID)
}

func TestRateLimitedRetriesThenSucceeds(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	gw := newFakeGateway()
	g, slept := newTestGuard(store, gw)

	require.NoError(t, g.Present(ctx, 7, 70, menuRequest("one")))
	gw.editErrs = []error{
		&gateway.Error{Kind: gateway.KindRateLimited, RetryAfter: 2 * time.Second},
		&gateway.Error{Kind: gateway.KindTransient},
	}

	require.NoError(t, g.Present(ctx, 7, 70, menuRequest("two")))

	sends, edits, _ := gw.counts()
	assert.Equal(t, 1, sends)
	assert.Equal(t, 1, edits)
	require.Len(t, *slept, 2)
	assert.Equal(t, 2*time.Second, (*slept)[0], "honors transport-suggested wait")
	assert.Equal(t, 20*time.Millisecond, (*slept)[1], "doubled base backoff")
}

func TestTransientEditExhaustionFallsBackToSend(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	gw := newFakeGateway()
	g, slept := newTestGuard(store, gw)

	require.NoError(t, g.Present(ctx, 7, 70, menuRequest("one")))
	gw.editErrs = []error{
		&gateway.Error{Kind: gateway.KindTransient},
		&gateway.Error{Kind: gateway.KindTransient},
		&gateway.Error{Kind: gateway.KindTransient},
	}

	require.NoError(t, g.Present(ctx, 7, 70, Request{State: fsm.StateError, Data: fsm.Data{}, Content: gateway.Content{Text: "x"}}))
	assert.Len(t, *slept, 2, "two waits between three edit attempts")

	sends, _, _ := gw.counts()
	assert.Equal(t, 2, sends, "exhausted edit replaced by a fresh message")

	sess, _ := store.Get(ctx, 7, 70)
	assert.Equal(t, fsm.StateError, sess.State)
	assert.Equal(t, 102, *sess.LiveMessageID)
}

func TestPermanentEditFailureFallsBackToSend(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	gw := newFakeGateway()
	g, slept := newTestGuard(store, gw)

	require.NoError(t, g.Present(ctx, 7, 70, menuRequest("one")))
	gw.editErrs = []error{&gateway.Error{Kind: gateway.KindPermanent}}

	require.NoError(t, g.Present(ctx, 7, 70, menuRequest("two")))
	assert.Empty(t, *slept, "permanent failures are not retried")

	sends, _, _ := gw.counts()
	assert.Equal(t, 2, sends)

	sess, _ := store.Get(ctx, 7, 70)
	assert.Equal(t, 102, *sess.LiveMessageID)
}

func TestTransientSendExhaustionSurfacesError(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	gw := newFakeGateway()
	g, _ := newTestGuard(store, gw)

	gw.sendErrs = []error{
		&gateway.Error{Kind: gateway.KindTransient},
		&gateway.Error{Kind: gateway.KindTransient},
		&gateway.Error{Kind: gateway.KindTransient},
	}
	err := g.Present(ctx, 7, 70, menuRequest("one"))
	require.Error(t, err)
	assert.Equal(t, gateway.KindTransient, gateway.KindOf(err))

	sess, _ := store.Get(ctx, 7, 70)
	assert.Nil(t, sess.LiveMessageID)
	assert.Equal(t, fsm.StateIdle, sess.State, "failed creation leaves the session untouched")
}

func TestUnreachableMarksInactiveAndReactivates(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	gw := newFakeGateway()
	g, _ := newTestGuard(store, gw)

	require.NoError(t, g.Present(ctx, 7, 70, menuRequest("one")))
	gw.editErrs = []error{&gateway.Error{Kind: gateway.KindUnreachable}}

	err := g.Present(ctx, 7, 70, menuRequest("two"))
	require.Error(t, err)
	assert.Equal(t, gateway.KindUnreachable, gateway.KindOf(err))

	sess, _ := store.Get(ctx, 7, 70)
	assert.False(t, sess.Active)

	// Next inbound presentation brings the session back.
	gw.editErrs = []error{&gateway.Error{Kind: gateway.KindNotFound}}
	require.NoError(t, g.Present(ctx, 7, 70, menuRequest("three")))
	sess, _ = store.Get(ctx, 7, 70)
	assert.True(t, sess.Active)
}

func TestPersistFailureAfterSendIsDesync(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	gw := newFakeGateway()
	g, _ := newTestGuard(store, gw)

	boom := errors.New("db down")
	saves := 0
	store.SaveHook = func(*session.Session) error {
		saves++
		return boom
	}

	err := g.Present(ctx, 7, 70, menuRequest("one"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionDesync)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, saves, "save retried before giving up")

	sends, _, _ := gw.counts()
	assert.Equal(t, 1, sends, "message already reached the chat")
}

func TestPersistFailureWithoutSendIsPlainError(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	gw := newFakeGateway()
	g, _ := newTestGuard(store, gw)

	require.NoError(t, g.Present(ctx, 7, 70, menuRequest("one")))
	store.SaveHook = func(*session.Session) error { return errors.New("db down") }

	err := g.Present(ctx, 7, 70, menuRequest("two"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionDesync)
}

func TestConcurrentPresentsCreateOneMessage(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	gw := newFakeGateway()
	g, _ := newTestGuard(store, gw)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, g.Present(ctx, 7, 70, menuRequest("hello")))
		}()
	}
	wg.Wait()

	sends, edits, _ := gw.counts()
	assert.Equal(t, 1, sends, "only the first presentation may create")
	assert.Equal(t, 7, edits)
	assert.Equal(t, 0, g.locks.size(), "lock entries released")
}

func TestSweepDeletesBestEffort(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	gw := newFakeGateway()
	g := New(store, gw, Options{SweepWorkers: 1})
	g.Start(ctx)

	gw.deleteErrs = []error{&gateway.Error{Kind: gateway.KindForbidden}}
	g.Sweep(ctx, 7, 70, 501)
	g.Sweep(ctx, 7, 70, 502)
	g.Stop()

	_, _, deletes := gw.counts()
	assert.Equal(t, 1, deletes, "failed delete swallowed, not retried")
	assert.Equal(t, 502, gw.deletes[0])
}

func TestAcquireSerializesHeldCalls(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	gw := newFakeGateway()
	g, _ := newTestGuard(store, gw)

	release := g.Acquire(7)
	done := make(chan struct{})
	go func() {
		defer close(done)
		require.NoError(t, g.Present(ctx, 7, 70, menuRequest("second")))
	}()

	select {
	case <-done:
		t.Fatal("present ran while the unit was held")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, g.PresentHeld(ctx, 7, 70, menuRequest("first")))
	release()
	<-done

	require.Len(t, gw.edits, 1)
	assert.Equal(t, "second", gw.edits[0].text)
}
