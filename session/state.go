package session

import (
	"time"

	"murmur/textdiff"
)

type State int

const (
	Idle State = iota
	AwaitingModel
	HoldRecording
	ToggleRecording
	NotesRecording
)

var stateNames = [...]string{
	Idle:            "idle",
	AwaitingModel:   "awaiting_model",
	HoldRecording:   "hold",
	ToggleRecording: "toggle",
	NotesRecording:  "notes",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Recording reports whether the worker is capturing for this state.
func (s State) Recording() bool {
	return s == HoldRecording || s == ToggleRecording || s == NotesRecording
}

// Trigger is the hotkey gesture that asked for a recording.
type Trigger int

const (
	TriggerHold Trigger = iota
	TriggerToggle
	TriggerNotes
)

func (t Trigger) String() string {
	switch t {
	case TriggerHold:
		return "hold"
	case TriggerToggle:
		return "toggle"
	case TriggerNotes:
		return "notes"
	}
	return "unknown"
}

func (t Trigger) target() State {
	switch t {
	case TriggerHold:
		return HoldRecording
	case TriggerNotes:
		return NotesRecording
	default:
		return ToggleRecording
	}
}

// PendingAction is a trigger deferred until the worker reports READY.
type PendingAction struct {
	Trigger     Trigger
	HoldKeys    string
	RequestedAt time.Time
}

// Session is the controller-owned state of the current (or most recent)
// recording. Only the event loop touches it.
type Session struct {
	State   State
	Pending *PendingAction

	// Mode is the recording state this session was started in. It survives
	// the transition back to Idle so a trailing final is routed correctly.
	Mode    State
	ID      string
	Started time.Time

	// awaitingFinal is set when recording stops on a live worker; the next
	// final still belongs to this session.
	awaitingFinal bool
	text          *textdiff.Session
}

func (s *Session) acceptsFinal() bool {
	return s.State.Recording() || (s.State == Idle && s.awaitingFinal)
}

func (s *Session) acceptsPartial() bool {
	return s.acceptsFinal() && s.Mode != NotesRecording
}

// Snapshot is a copy of the controller state for observers.
type Snapshot struct {
	State        State
	Mode         State
	SessionID    string
	Pending      *PendingAction
	Ready        bool
	TimerArmed   bool
	Transforming int
	Cursor       string
}

// Settled reports an idle controller with no transform in flight.
func (s Snapshot) Settled() bool {
	return s.State == Idle && s.Transforming == 0
}
