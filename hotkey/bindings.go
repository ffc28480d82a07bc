package hotkey

import (
	"context"
	"errors"
)

// Receiver is told about hotkey gestures.
type Receiver interface {
	HoldPressed()
	HoldReleased()
	ToggleTriggered()
	NotesTriggered()
}

// Bindings groups the three engine hotkeys. Nil entries are unbound.
type Bindings struct {
	Hold   Hotkey
	Toggle Hotkey
	Notes  Hotkey
}

func (b Bindings) all() []Hotkey {
	var out []Hotkey
	for _, h := range []Hotkey{b.Hold, b.Toggle, b.Notes} {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

// Register registers every bound hotkey. On failure the ones already
// registered are unregistered again.
func (b Bindings) Register() error {
	var done []Hotkey
	for _, h := range b.all() {
		if err := h.Register(); err != nil {
			for _, d := range done {
				d.Unregister()
			}
			return err
		}
		done = append(done, h)
	}
	if len(done) == 0 {
		return errors.New("hotkey: no hotkeys bound")
	}
	return nil
}

func (b Bindings) Unregister() {
	for _, h := range b.all() {
		h.Unregister()
	}
}

func keydown(h Hotkey) <-chan struct{} {
	if h == nil {
		return nil
	}
	return h.Keydown()
}

func keyup(h Hotkey) <-chan struct{} {
	if h == nil {
		return nil
	}
	return h.Keyup()
}

// Forward delivers gestures to r until ctx is done. Toggle and notes fire
// on press; their releases are drained.
func (b Bindings) Forward(ctx context.Context, r Receiver) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-keydown(b.Hold):
			r.HoldPressed()
		case <-keyup(b.Hold):
			r.HoldReleased()
		case <-keydown(b.Toggle):
			r.ToggleTriggered()
		case <-keyup(b.Toggle):
		case <-keydown(b.Notes):
			r.NotesTriggered()
		case <-keyup(b.Notes):
		}
	}
}
