//go:build linux

package hotkey

import (
	"encoding/binary"
	"os"
	"testing"
	"time"
)

func TestEvdevKeyCodes(t *testing.T) {
	tests := map[string]uint16{
		"q": 16, "p": 25, "a": 30, "l": 38, "z": 44, "m": 50,
		"1": 2, "9": 10, "0": 11,
		"space": 57, "enter": 28, "f1": 59, "f10": 68, "f11": 87, "f12": 88,
	}
	for key, want := range tests {
		if got := keyCodes[key]; got != want {
			t.Errorf("keyCodes[%q] = %d, want %d", key, got, want)
		}
	}
	for c := 'a'; c <= 'z'; c++ {
		if keyCodes[string(c)] == 0 {
			t.Errorf("no code for %q", c)
		}
	}
}

func TestModsHeld(t *testing.T) {
	h := New(MustParseCombo("Ctrl+Shift+Space")).(*linuxHotkey)
	tests := []struct {
		held map[uint16]bool
		want bool
	}{
		{map[uint16]bool{29: true, 42: true}, true},
		{map[uint16]bool{97: true, 54: true}, true},
		{map[uint16]bool{29: true, 42: true, 56: true}, true},
		{map[uint16]bool{29: true}, false},
		{map[uint16]bool{}, false},
	}
	for _, tt := range tests {
		if got := h.modsHeld(tt.held); got != tt.want {
			t.Errorf("modsHeld(%v) = %v, want %v", tt.held, got, tt.want)
		}
	}
}

func TestRegisterUnknownKey(t *testing.T) {
	if err := New(Combo{Key: "menu"}).Register(); err == nil {
		t.Error("expected error for a key without an evdev code")
	}
}

func inputEvent(code uint16, value int32) []byte {
	b := make([]byte, inputEventSize)
	binary.LittleEndian.PutUint16(b[16:], evKey)
	binary.LittleEndian.PutUint16(b[18:], code)
	binary.LittleEndian.PutUint32(b[20:], uint32(value))
	return b
}

func TestReadEventsKeepsEveryRelease(t *testing.T) {
	h := New(MustParseCombo("Ctrl+Space")).(*linuxHotkey)
	h.stop = make(chan struct{})
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	var events []byte
	events = append(events, inputEvent(29, keyPress)...)
	for range 2 {
		events = append(events, inputEvent(57, keyPress)...)
		events = append(events, inputEvent(57, keyRelease)...)
	}
	if _, err := w.Write(events); err != nil {
		t.Fatal(err)
	}
	w.Close()

	done := make(chan struct{})
	go func() {
		h.readEvents(r)
		close(done)
	}()

	// Nothing is drained until all events have been read, so a dropping
	// send would lose the second cycle.
	time.Sleep(50 * time.Millisecond)
	for i, ch := range []<-chan struct{}{h.Keydown(), h.Keyup(), h.Keydown(), h.Keyup()} {
		select {
		case <-ch:
		case <-time.After(5 * time.Second):
			t.Fatalf("gesture %d never delivered", i)
		}
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reader did not return at end of input")
	}
}

func TestUnregisterUnblocksReader(t *testing.T) {
	h := New(MustParseCombo("Space")).(*linuxHotkey)
	h.stop = make(chan struct{})
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()
	if _, err := w.Write(inputEvent(57, keyPress)); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		h.readEvents(r)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	h.Unregister()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reader still blocked after Unregister")
	}
}
