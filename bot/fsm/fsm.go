// Package fsm defines the dialog state machine: states, inbound events and the
// pure transition function that maps one to the next.
package fsm

import (
	"errors"
	"strings"
)

// State names a dialog position. Awaiting states carry a subtype suffix and
// are built with Awaiting().
type State string

const (
	StateIdle       State = "idle"
	StateMenu       State = "menu"
	StateProcessing State = "processing"
	StateError      State = "error"

	awaitingPrefix = "awaiting_input:"
)

// Subtype names the kind of free-form text an awaiting state expects.
type Subtype string

const (
	SubtypeCity             Subtype = "city"
	SubtypeTime             Subtype = "time"
	SubtypeHabitName        Subtype = "habit_name"
	SubtypeHabitDescription Subtype = "habit_description"
	SubtypeSheetURL         Subtype = "sheet_url"
)

// Awaiting builds the awaiting-input state for a subtype.
func Awaiting(sub Subtype) State {
	return State(awaitingPrefix + string(sub))
}

// AwaitingSubtype extracts the subtype from an awaiting state.
// ok is false when the state is not an awaiting state.
func AwaitingSubtype(s State) (Subtype, bool) {
	raw, found := strings.CutPrefix(string(s), awaitingPrefix)
	if !found {
		return "", false
	}
	return Subtype(raw), true
}

// Known reports whether s is a state this machine can be in. Unknown states
// can appear when a stored session predates a code change.
func Known(s State) bool {
	switch s {
	case StateIdle, StateMenu, StateProcessing, StateError:
		return true
	}
	sub, ok := AwaitingSubtype(s)
	if !ok {
		return false
	}
	switch sub {
	case SubtypeCity, SubtypeTime, SubtypeHabitName, SubtypeHabitDescription, SubtypeSheetURL:
		return true
	}
	return false
}

// Data carries string key-values between transitions. It is persisted with the
// session, so values must stay JSON-friendly strings.
type Data map[string]string

// Clone returns an independent copy.
func (d Data) Clone() Data {
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Well-known data keys.
const (
	DataError     = "error"
	DataFeature   = "feature"
	DataSelection = "selection"
	DataHabitID   = "habit_id"
	DataHabitName = "habit_name"
	DataCity      = "city"
	DataTime      = "time"
	DataSheetURL  = "sheet_url"
)

// EventType distinguishes the inbound event sources.
type EventType string

const (
	EventCommand  EventType = "command"
	EventCallback EventType = "callback"
	EventText     EventType = "text"
	EventTimeout  EventType = "timeout"
)

// Event is one inbound occurrence to run through the machine.
type Event struct {
	Type EventType
	// Value holds the command name (without slash), callback key, or raw text.
	Value string
	// Payload carries the callback payload part, when present.
	Payload string
}

// ErrRejected marks an event the machine refuses in the current state.
// The caller re-renders the current state unchanged.
var ErrRejected = errors.New("fsm: event rejected in current state")

// Validator checks free-form text for an awaiting subtype. On success it
// returns the follow-up state and data updates to merge; on failure it returns
// a user-facing error whose text is stored under DataError without leaving the
// awaiting state.
type Validator func(sub Subtype, text string) (State, Data, error)

// Result is the outcome of one transition.
type Result struct {
	State State
	Data  Data
}

// commandTargets maps bot commands to the state they open regardless of the
// current state. /cancel is handled separately.
var commandTargets = map[string]State{
	"start":    StateMenu,
	"menu":     StateMenu,
	"help":     StateMenu,
	"habits":   StateMenu,
	"settings": StateMenu,
}

// commandFeatures maps commands to the feature screen they preselect.
var commandFeatures = map[string]string{
	"habits":   "habits",
	"settings": "settings",
	"help":     "help",
}

// callbackTargets maps callback keys to awaiting states. Keys not listed here
// are feature navigation handled generically.
var callbackTargets = map[string]Subtype{
	"ask_city":       SubtypeCity,
	"ask_time":       SubtypeTime,
	"ask_habit_name": SubtypeHabitName,
	"ask_habit_desc": SubtypeHabitDescription,
	"ask_sheet_url":  SubtypeSheetURL,
}

// Apply is the pure transition function. It never mutates its inputs and is
// total: every (state, event) pair yields either a Result or ErrRejected.
func Apply(state State, data Data, ev Event, validate Validator) (Result, error) {
	next := data.Clone()
	delete(next, DataError)

	switch ev.Type {
	case EventCommand:
		if ev.Value == "cancel" {
			delete(next, DataFeature)
			return Result{State: StateMenu, Data: next}, nil
		}
		target, ok := commandTargets[ev.Value]
		if !ok {
			return Result{}, ErrRejected
		}
		if feat, ok := commandFeatures[ev.Value]; ok {
			next[DataFeature] = feat
		} else {
			delete(next, DataFeature)
		}
		return Result{State: target, Data: next}, nil

	case EventCallback:
		// Callbacks carry their origin screen; a tap on a stale keyboard in
		// idle still navigates, since the live message showed that keyboard.
		if sub, ok := callbackTargets[ev.Value]; ok {
			if ev.Payload != "" {
				next[DataHabitID] = ev.Payload
			}
			return Result{State: Awaiting(sub), Data: next}, nil
		}
		switch ev.Value {
		case "back", "cancel":
			delete(next, DataFeature)
			delete(next, DataHabitID)
			delete(next, DataSelection)
			return Result{State: StateMenu, Data: next}, nil
		case "process":
			return Result{State: StateProcessing, Data: next}, nil
		default:
			if next[DataFeature] != ev.Value {
				delete(next, DataSelection)
			}
			next[DataFeature] = ev.Value
			if ev.Payload != "" {
				next[DataSelection] = ev.Payload
			}
			return Result{State: StateMenu, Data: next}, nil
		}

	case EventText:
		sub, ok := AwaitingSubtype(state)
		if !ok {
			// Free-form text outside an awaiting state is noise.
			return Result{}, ErrRejected
		}
		target, updates, err := validate(sub, ev.Value)
		if err != nil {
			next[DataError] = err.Error()
			return Result{State: state, Data: next}, nil
		}
		for k, v := range updates {
			next[k] = v
		}
		return Result{State: target, Data: next}, nil

	case EventTimeout:
		if state != StateProcessing {
			return Result{}, ErrRejected
		}
		next[DataError] = "operation timed out"
		return Result{State: StateError, Data: next}, nil
	}

	return Result{}, ErrRejected
}
