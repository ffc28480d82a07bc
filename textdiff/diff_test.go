package textdiff

import (
	"testing"
	"unicode/utf8"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name       string
		prev       string
		incoming   string
		partial    bool
		wantDelta  string
		wantCursor string
	}{
		{"growing partial", "hello", "hello world", true, " world", "hello world"},
		{"first partial", "", "Hello", true, "Hello", "Hello"},
		{"identical", "Hello", "Hello", true, "", "Hello"},
		{"shrinking partial", "hello there", "hello", true, "", "hello"},
		{"revised tail", "hello there", "hello their", true, "ir", "hello their"},
		{"revised word keeps prefix", "I want to go", "I wanted to go", true, "ed to go", "I wanted to go"},
		{"partial unrelated", "hello there", "goodbye", true, "goodbye", "goodbye"},
		{"partial leading space boundary", " foo", "bar", true, "bar", "bar"},
		{"final extends", "Hello there", "Hello there!", false, "!", "Hello there!"},
		{"final unrelated", "abc", "xyz", false, "xyz", "xyz"},
		{"final with empty prev", "", "Done.", false, "Done.", "Done."},
		{"multibyte divergence", "café", "cafè", true, "è", "cafè"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta, cursor := Diff(tt.prev, tt.incoming, tt.partial)
			if delta != tt.wantDelta || cursor != tt.wantCursor {
				t.Errorf("Diff(%q, %q, %v) = (%q, %q), want (%q, %q)",
					tt.prev, tt.incoming, tt.partial, delta, cursor, tt.wantDelta, tt.wantCursor)
			}
		})
	}
}

func TestDiffNeverSplitsRunes(t *testing.T) {
	// "é" and "è" share their first UTF-8 byte.
	inputs := []string{"", "é", "è", "café", "cafè", "naïve", "日本語", "日本", "日曜"}
	for _, prev := range inputs {
		for _, in := range inputs {
			for _, partial := range []bool{true, false} {
				delta, _ := Diff(prev, in, partial)
				if !utf8.ValidString(delta) {
					t.Errorf("Diff(%q, %q, %v) produced invalid UTF-8 delta %q", prev, in, partial, delta)
				}
			}
		}
	}
}

func TestSessionReconstructsFinal(t *testing.T) {
	tests := []struct {
		name     string
		partials []string
		final    string
	}{
		{"growing", []string{"Hello", "Hello there"}, "Hello there!"},
		{"no partials", nil, "Just a final."},
		{"final matches last partial", []string{"ok", "ok then"}, "ok then"},
		{"many small steps", []string{"w", "wh", "wha", "what", "what is", "what is it"}, "what is it?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Session
			for _, p := range tt.partials {
				s.Partial(p)
			}
			s.Reconcile(tt.final)
			if got := s.Emitted(); got != tt.final {
				t.Errorf("emitted %q, want %q", got, tt.final)
			}
		})
	}
}

func TestSessionHelloThereScenario(t *testing.T) {
	var s Session
	var deltas []string
	deltas = append(deltas, s.Partial("Hello"))
	deltas = append(deltas, s.Partial("Hello there"))
	deltas = append(deltas, s.Reconcile("Hello there!"))

	want := []string{"Hello", " there", "!"}
	for i := range want {
		if deltas[i] != want[i] {
			t.Errorf("delta %d = %q, want %q", i, deltas[i], want[i])
		}
	}
	if s.Cursor() != "" {
		t.Errorf("cursor after reconcile = %q, want empty", s.Cursor())
	}
}

func TestSessionReset(t *testing.T) {
	var s Session
	s.Partial("left over")
	s.Reset()
	if s.Cursor() != "" || s.Emitted() != "" {
		t.Errorf("after Reset: cursor %q emitted %q", s.Cursor(), s.Emitted())
	}
	if got := s.Partial("fresh"); got != "fresh" {
		t.Errorf("first partial after reset = %q", got)
	}
}
