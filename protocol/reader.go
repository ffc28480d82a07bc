// Package protocol implements the line protocol spoken by the speech worker:
// framing of its stdout byte stream, classification of inbound lines and
// encoding of outbound commands.
package protocol

import (
	"bytes"
	"strings"
)

// Reader frames an arbitrary chunked byte stream into protocol lines.
// The zero value is ready to use. A Reader is not safe for concurrent use.
type Reader struct {
	// KeepEmpty delivers blank lines as "" instead of dropping them. Replies
	// from request/response helpers use an empty line to signal failure.
	KeepEmpty bool

	pending []byte
}

// Feed appends chunk to the pending fragment and returns every complete line
// it now contains, with trailing "\r" and surrounding whitespace removed.
// Empty lines are dropped unless KeepEmpty is set. The trailing partial
// line is kept for the next call.
func (r *Reader) Feed(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	r.pending = append(r.pending, chunk...)

	var lines []string
	for {
		i := bytes.IndexByte(r.pending, '\n')
		if i < 0 {
			break
		}
		if line := trimLine(r.pending[:i]); line != "" || r.KeepEmpty {
			lines = append(lines, line)
		}
		r.pending = r.pending[i+1:]
	}

	// Drop the backing array once it dwarfs the fragment.
	if len(r.pending) == 0 {
		r.pending = nil
	} else if cap(r.pending) > 4*len(r.pending)+4096 {
		r.pending = append([]byte(nil), r.pending...)
	}
	return lines
}

// Flush returns the pending fragment as a line (or "" if it is blank) and
// resets the reader. Call it when the stream ends without a final newline.
func (r *Reader) Flush() string {
	line := trimLine(r.pending)
	r.pending = nil
	return line
}

// Pending reports the number of buffered bytes not yet terminated by "\n".
func (r *Reader) Pending() int {
	return len(r.pending)
}

func trimLine(b []byte) string {
	b = bytes.TrimSuffix(b, []byte{'\r'})
	return strings.TrimSpace(string(b))
}
