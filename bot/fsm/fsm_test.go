package fsm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noValidate(sub Subtype, text string) (State, Data, error) {
	return StateMenu, Data{string(sub): text}, nil
}

func TestAwaitingRoundTrip(t *testing.T) {
	s := Awaiting(SubtypeCity)
	assert.Equal(t, State("awaiting_input:city"), s)

	sub, ok := AwaitingSubtype(s)
	require.True(t, ok)
	assert.Equal(t, SubtypeCity, sub)

	_, ok = AwaitingSubtype(StateMenu)
	assert.False(t, ok)
}

func TestKnownStates(t *testing.T) {
	assert.True(t, Known(StateIdle))
	assert.True(t, Known(Awaiting(SubtypeHabitName)))
	assert.False(t, Known(State("awaiting_input:zodiac")))
	assert.False(t, Known(State("limbo")))
}

func TestCommandOpensMenuFromAnywhere(t *testing.T) {
	for _, from := range []State{StateIdle, StateMenu, Awaiting(SubtypeTime), StateProcessing, StateError} {
		res, err := Apply(from, Data{}, Event{Type: EventCommand, Value: "menu"}, noValidate)
		require.NoError(t, err, "from %s", from)
		assert.Equal(t, StateMenu, res.State)
	}
}

func TestCommandPreselectsFeature(t *testing.T) {
	res, err := Apply(StateIdle, Data{}, Event{Type: EventCommand, Value: "habits"}, noValidate)
	require.NoError(t, err)
	assert.Equal(t, StateMenu, res.State)
	assert.Equal(t, "habits", res.Data[DataFeature])
}

func TestUnknownCommandRejected(t *testing.T) {
	_, err := Apply(StateMenu, Data{}, Event{Type: EventCommand, Value: "frobnicate"}, noValidate)
	assert.ErrorIs(t, err, ErrRejected)
}

func TestCancelReturnsToMenu(t *testing.T) {
	res, err := Apply(Awaiting(SubtypeCity), Data{DataFeature: "weather"}, Event{Type: EventCommand, Value: "cancel"}, noValidate)
	require.NoError(t, err)
	assert.Equal(t, StateMenu, res.State)
	assert.NotContains(t, res.Data, DataFeature)
}

func TestCallbackEntersAwaiting(t *testing.T) {
	res, err := Apply(StateMenu, Data{}, Event{Type: EventCallback, Value: "ask_habit_desc", Payload: "h-42"}, noValidate)
	require.NoError(t, err)
	assert.Equal(t, Awaiting(SubtypeHabitDescription), res.State)
	assert.Equal(t, "h-42", res.Data[DataHabitID])
}

func TestCallbackNavigatesFeature(t *testing.T) {
	res, err := Apply(StateIdle, Data{}, Event{Type: EventCallback, Value: "weather"}, noValidate)
	require.NoError(t, err)
	assert.Equal(t, StateMenu, res.State)
	assert.Equal(t, "weather", res.Data[DataFeature])
}

func TestCallbackPayloadStoredAsSelection(t *testing.T) {
	res, err := Apply(StateMenu, Data{DataFeature: "news"}, Event{Type: EventCallback, Value: "news", Payload: "sports"}, noValidate)
	require.NoError(t, err)
	assert.Equal(t, StateMenu, res.State)
	assert.Equal(t, "news", res.Data[DataFeature])
	assert.Equal(t, "sports", res.Data[DataSelection])

	// Switching features discards the stale selection.
	res, err = Apply(StateMenu, res.Data, Event{Type: EventCallback, Value: "weather"}, noValidate)
	require.NoError(t, err)
	assert.NotContains(t, res.Data, DataSelection)
}

func TestTextOutsideAwaitingRejected(t *testing.T) {
	for _, from := range []State{StateIdle, StateMenu, StateProcessing, StateError} {
		_, err := Apply(from, Data{}, Event{Type: EventText, Value: "hello"}, noValidate)
		assert.ErrorIs(t, err, ErrRejected, "from %s", from)
	}
}

func TestTextValidationSuccess(t *testing.T) {
	res, err := Apply(Awaiting(SubtypeCity), Data{}, Event{Type: EventText, Value: "Lisbon"}, noValidate)
	require.NoError(t, err)
	assert.Equal(t, StateMenu, res.State)
	assert.Equal(t, "Lisbon", res.Data["city"])
}

func TestTextValidationFailureStaysPut(t *testing.T) {
	failing := func(sub Subtype, text string) (State, Data, error) {
		return "", nil, errors.New("that is not a time")
	}
	res, err := Apply(Awaiting(SubtypeTime), Data{DataFeature: "settings"}, Event{Type: EventText, Value: "soon"}, failing)
	require.NoError(t, err)
	assert.Equal(t, Awaiting(SubtypeTime), res.State)
	assert.Equal(t, "that is not a time", res.Data[DataError])
	assert.Equal(t, "settings", res.Data[DataFeature])
}

func TestTimeoutOnlyFromProcessing(t *testing.T) {
	res, err := Apply(StateProcessing, Data{}, Event{Type: EventTimeout}, noValidate)
	require.NoError(t, err)
	assert.Equal(t, StateError, res.State)
	assert.NotEmpty(t, res.Data[DataError])

	_, err = Apply(StateMenu, Data{}, Event{Type: EventTimeout}, noValidate)
	assert.ErrorIs(t, err, ErrRejected)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	in := Data{DataError: "stale", DataFeature: "weather"}
	res, err := Apply(StateMenu, in, Event{Type: EventCallback, Value: "back"}, noValidate)
	require.NoError(t, err)

	assert.Equal(t, "stale", in[DataError])
	assert.Equal(t, "weather", in[DataFeature])
	assert.NotContains(t, res.Data, DataError)
}
