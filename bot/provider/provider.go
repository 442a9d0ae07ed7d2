// Package provider renders dialog states into message content and validates
// free-form input for the awaiting states.
package provider

import (
	"context"
	"fmt"
	"time"

	"teobot/bot/fsm"
	"teobot/bot/gateway"
	"teobot/bot/habits"
	"teobot/bot/settings"
)

// Provider turns states into renderable content and checks awaited input.
type Provider interface {
	// RenderState renders the screen for a state. It must succeed for every
	// known state so the transcript always has something to show.
	RenderState(ctx context.Context, userID int64, state fsm.State, data fsm.Data) (gateway.Content, error)
	// ValidateInput checks text for an awaiting subtype, persists accepted
	// values and returns the follow-up state with data updates. User mistakes
	// come back as *ValidationError.
	ValidateInput(ctx context.Context, userID int64, sub fsm.Subtype, text string, data fsm.Data) (fsm.State, fsm.Data, error)
}

// ValidationError is a user mistake to show in the prompt, not a failure.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Registry is the composite provider: it dispatches rendering by the feature
// recorded in the session data and validation by subtype.
type Registry struct {
	settings settings.Store
	habits   habits.Store
	now      func() time.Time
}

var _ Provider = (*Registry)(nil)

// NewRegistry builds the provider over its feature stores.
func NewRegistry(st settings.Store, hb habits.Store) *Registry {
	return &Registry{settings: st, habits: hb, now: time.Now}
}

// RenderState renders the screen for a state.
func (r *Registry) RenderState(ctx context.Context, userID int64, state fsm.State, data fsm.Data) (gateway.Content, error) {
	if sub, ok := fsm.AwaitingSubtype(state); ok {
		if _, known := promptTexts[sub]; !known {
			// A persisted session can carry a subtype this build no longer has.
			return renderError(fsm.Data{fsm.DataError: "this conversation step no longer exists, start over from the menu"}), nil
		}
		return renderPrompt(sub, data), nil
	}
	switch state {
	case fsm.StateProcessing:
		return renderProcessing(), nil
	case fsm.StateError:
		return renderError(data), nil
	case fsm.StateIdle:
		return renderWelcome(), nil
	case fsm.StateMenu:
		return r.renderFeature(ctx, userID, data)
	}
	// Unknown stored state, likely from an older build. Fall back to the menu.
	return renderMenu(), nil
}

func (r *Registry) renderFeature(ctx context.Context, userID int64, data fsm.Data) (gateway.Content, error) {
	switch data[fsm.DataFeature] {
	case "weather":
		return r.renderWeather(ctx, userID)
	case "news":
		return renderNews(data), nil
	case "finance":
		return r.renderFinance(ctx, userID)
	case "habits":
		return r.renderHabits(ctx, userID)
	case "settings":
		return r.renderSettings(ctx, userID)
	case "help":
		return renderHelp(), nil
	default:
		return renderMenu(), nil
	}
}

// ValidateInput checks text for an awaiting subtype and persists accepted values.
func (r *Registry) ValidateInput(ctx context.Context, userID int64, sub fsm.Subtype, text string, data fsm.Data) (fsm.State, fsm.Data, error) {
	switch sub {
	case fsm.SubtypeCity:
		return r.validateCity(ctx, userID, text)
	case fsm.SubtypeTime:
		return r.validateTime(ctx, userID, text)
	case fsm.SubtypeSheetURL:
		return r.validateSheetURL(ctx, userID, text)
	case fsm.SubtypeHabitName:
		return validateHabitName(text)
	case fsm.SubtypeHabitDescription:
		return r.validateHabitDescription(ctx, userID, text, data)
	}
	return "", nil, fmt.Errorf("provider: no validator for subtype %q", sub)
}

// Act performs the side effect of an action callback and returns the
// navigation event to apply instead. ok is false when key is not an action.
func (r *Registry) Act(ctx context.Context, userID int64, key, payload string) (fsm.Event, bool, error) {
	switch key {
	case "habit_done":
		err := r.habits.MarkDone(ctx, userID, payload, r.now())
		return fsm.Event{Type: fsm.EventCallback, Value: "habits"}, true, err
	case "habit_del":
		err := r.habits.Delete(ctx, userID, payload)
		return fsm.Event{Type: fsm.EventCallback, Value: "habits"}, true, err
	case "notify_off":
		err := r.clearNotifyTime(ctx, userID)
		return fsm.Event{Type: fsm.EventCallback, Value: "settings"}, true, err
	}
	return fsm.Event{}, false, nil
}
