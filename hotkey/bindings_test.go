package hotkey

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu     sync.Mutex
	events []string
	got    chan struct{}
}

func newRecorder() *recorder { return &recorder{got: make(chan struct{}, 16)} }

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	r.got <- struct{}{}
}

func (r *recorder) HoldPressed()     { r.add("hold_down") }
func (r *recorder) HoldReleased()    { r.add("hold_up") }
func (r *recorder) ToggleTriggered() { r.add("toggle") }
func (r *recorder) NotesTriggered()  { r.add("notes") }

func (r *recorder) wait(t *testing.T, n int) []string {
	t.Helper()
	for range n {
		select {
		case <-r.got:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for gesture")
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestForward(t *testing.T) {
	hold, toggle, notes := NewFake(), NewFake(), NewFake()
	b := Bindings{Hold: hold, Toggle: toggle, Notes: notes}
	if err := b.Register(); err != nil {
		t.Fatal(err)
	}
	defer b.Unregister()

	r := newRecorder()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Forward(ctx, r)

	hold.SimKeydown()
	r.wait(t, 1)
	hold.SimKeyup()
	r.wait(t, 1)
	toggle.SimTap()
	r.wait(t, 1)
	notes.SimTap()
	got := r.wait(t, 1)

	want := []string{"hold_down", "hold_up", "toggle", "notes"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestForwardUnboundEntries(t *testing.T) {
	toggle := NewFake()
	b := Bindings{Toggle: toggle}
	r := newRecorder()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Forward(ctx, r)

	toggle.SimTap()
	if got := r.wait(t, 1); !reflect.DeepEqual(got, []string{"toggle"}) {
		t.Errorf("events = %v", got)
	}
}

type failingHotkey struct {
	*FakeHotkey
}

func (f *failingHotkey) Register() error { return errors.New("grab failed") }

type trackingHotkey struct {
	*FakeHotkey
	unregistered bool
}

func (f *trackingHotkey) Unregister() { f.unregistered = true }

func TestRegisterRollsBack(t *testing.T) {
	first := &trackingHotkey{FakeHotkey: NewFake()}
	b := Bindings{Hold: first, Toggle: &failingHotkey{FakeHotkey: NewFake()}}
	if err := b.Register(); err == nil {
		t.Fatal("expected error")
	}
	if !first.unregistered {
		t.Error("registered hotkey not rolled back")
	}
	if err := (Bindings{}).Register(); err == nil {
		t.Error("expected error for empty bindings")
	}
}
