package clipboard

import (
	"sync"
	"testing"
	"time"
)

type memClipboard struct {
	mu     sync.Mutex
	text   string
	writes []string
}

func (m *memClipboard) read() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text, nil
}

func (m *memClipboard) write(s string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = s
	m.writes = append(m.writes, s)
	return nil
}

func (m *memClipboard) get() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}

func newTestRestorer(m *memClipboard, delay time.Duration) *Restorer {
	r := NewRestorer(delay)
	r.read, r.write = m.read, m.write
	return r
}

func TestRestorerRestoresAfterQuiet(t *testing.T) {
	m := &memClipboard{text: "user data"}
	r := newTestRestorer(m, 30*time.Millisecond)

	for _, chunk := range []string{"Hello", " there", "!"} {
		r.Save()
		m.write(chunk)
		r.Schedule()
		time.Sleep(5 * time.Millisecond)
	}
	if got := m.get(); got != "!" {
		t.Fatalf("clipboard restored too early: %q", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for m.get() != "user data" {
		if time.Now().After(deadline) {
			t.Fatalf("clipboard = %q, want restore", m.get())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRestorerFlushAndCancel(t *testing.T) {
	m := &memClipboard{text: "original"}
	r := newTestRestorer(m, time.Hour)

	r.Save()
	m.write("pasted")
	r.Schedule()
	r.Flush()
	if got := m.get(); got != "original" {
		t.Errorf("after Flush clipboard = %q", got)
	}
	r.Flush()
	if n := len(m.writes); n != 2 {
		t.Errorf("second Flush wrote again (%d writes)", n)
	}

	r.Save()
	m.write("keep me")
	r.Schedule()
	r.Cancel()
	r.Flush()
	if got := m.get(); got != "keep me" {
		t.Errorf("after Cancel clipboard = %q", got)
	}
}

func TestScheduleWithoutSaveIsNoop(t *testing.T) {
	m := &memClipboard{text: "x"}
	r := newTestRestorer(m, time.Millisecond)
	r.Schedule()
	time.Sleep(20 * time.Millisecond)
	if len(m.writes) != 0 {
		t.Errorf("unexpected writes %q", m.writes)
	}
}

func TestTypeable(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"hello world", true},
		{"Abc 123", true},
		{"", true},
		{"café", false},
		{"日本", false},
	}
	for _, tt := range tests {
		if got := Typeable(tt.text); got != tt.want {
			t.Errorf("Typeable(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
