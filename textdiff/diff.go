// Package textdiff computes the incremental text to emit as a live
// transcript grows, given what has already been emitted.
package textdiff

import (
	"strings"
	"unicode/utf8"
)

// Diff returns the text to emit for incoming given the previously emitted
// cursor prev, and the cursor to keep afterwards.
//
// Rules, in order:
//  1. incoming extends prev: emit the extension.
//  2. prev is non-empty and shares a prefix with incoming: emit incoming past
//     the longest common prefix.
//  3. partial with nothing shared: if prev up to its last space prefixes
//     incoming, emit everything after that shared word; otherwise start over
//     and emit all of incoming.
//  4. final with nothing shared: emit all of incoming.
//
// Text already emitted is never retracted, so delta may be empty when
// incoming shrinks (a revised partial shorter than the last one).
func Diff(prev, incoming string, partial bool) (delta, cursor string) {
	if strings.HasPrefix(incoming, prev) {
		return incoming[len(prev):], incoming
	}

	if prev != "" {
		if k := commonPrefix(prev, incoming); k > 0 {
			return incoming[k:], incoming
		}
	}

	if partial {
		if i := strings.LastIndexByte(prev, ' '); i >= 0 && strings.HasPrefix(incoming, prev[:i]) {
			return incoming[i:], incoming
		}
		// Nothing shared: the cursor restarts from incoming.
		return incoming, incoming
	}

	return incoming, incoming
}

// commonPrefix returns the byte length of the longest common prefix of a and
// b, backed off to a rune boundary so the remainder of b is valid UTF-8.
func commonPrefix(a, b string) int {
	n := min(len(a), len(b))
	k := 0
	for k < n && a[k] == b[k] {
		k++
	}
	for k > 0 && k < len(b) && !utf8.RuneStart(b[k]) {
		k--
	}
	return k
}

// Session accumulates the cursor for one recording session. The zero value
// is an empty session.
type Session struct {
	cursor  string
	emitted strings.Builder
}

// Partial returns the delta to emit for a live partial transcript.
func (s *Session) Partial(text string) string {
	return s.apply(text, true)
}

// Reconcile returns the trailing delta for a final transcript and clears the
// cursor so the next utterance starts fresh.
func (s *Session) Reconcile(text string) string {
	delta := s.apply(text, false)
	s.cursor = ""
	return delta
}

func (s *Session) apply(text string, partial bool) string {
	delta, cursor := Diff(s.cursor, text, partial)
	s.cursor = cursor
	s.emitted.WriteString(delta)
	return delta
}

// Cursor is the text most recently accounted as delivered.
func (s *Session) Cursor() string { return s.cursor }

// Emitted is the concatenation of every delta returned so far.
func (s *Session) Emitted() string { return s.emitted.String() }

// Reset discards all state at the start of a new session.
func (s *Session) Reset() {
	s.cursor = ""
	s.emitted.Reset()
}
