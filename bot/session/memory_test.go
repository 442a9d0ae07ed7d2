package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teobot/bot/fsm"
)

func TestGetReturnsFreshDefault(t *testing.T) {
	st := NewMemoryStore()
	s, err := st.Get(context.Background(), 7, 70)
	require.NoError(t, err)

	assert.Equal(t, int64(7), s.UserID)
	assert.Equal(t, int64(70), s.ChatID)
	assert.Equal(t, fsm.StateIdle, s.State)
	assert.Nil(t, s.LiveMessageID)
	assert.True(t, s.Active)
	assert.NotNil(t, s.Data)
}

func TestSaveThenGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	id := 1234
	s := New(7, 70)
	s.State = fsm.Awaiting(fsm.SubtypeCity)
	s.Data[fsm.DataFeature] = "weather"
	s.LiveMessageID = &id
	require.NoError(t, st.Save(ctx, s))

	got, err := st.Get(ctx, 7, 70)
	require.NoError(t, err)
	assert.Equal(t, fsm.Awaiting(fsm.SubtypeCity), got.State)
	assert.Equal(t, "weather", got.Data[fsm.DataFeature])
	require.NotNil(t, got.LiveMessageID)
	assert.Equal(t, 1234, *got.LiveMessageID)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestGetReturnsIndependentCopies(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	require.NoError(t, st.Save(ctx, New(7, 70)))

	a, err := st.Get(ctx, 7, 70)
	require.NoError(t, err)
	a.State = fsm.StateError
	a.Data["poison"] = "yes"

	b, err := st.Get(ctx, 7, 70)
	require.NoError(t, err)
	assert.Equal(t, fsm.StateIdle, b.State)
	assert.NotContains(t, b.Data, "poison")
}

func TestSaveHookVetoesWrite(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	boom := errors.New("disk on fire")
	st.SaveHook = func(*Session) error { return boom }

	s := New(7, 70)
	s.State = fsm.StateMenu
	assert.ErrorIs(t, st.Save(ctx, s), boom)

	got, err := st.Get(ctx, 7, 70)
	require.NoError(t, err)
	assert.Equal(t, fsm.StateIdle, got.State)
}

func TestListActiveSkipsInactive(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	require.NoError(t, st.Save(ctx, New(1, 10)))
	dead := New(2, 20)
	dead.Active = false
	require.NoError(t, st.Save(ctx, dead))
	require.NoError(t, st.Save(ctx, New(3, 30)))

	got, err := st.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].UserID)
	assert.Equal(t, int64(3), got[1].UserID)
}
