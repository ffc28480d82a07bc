package sink

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"murmur/clipboard"
)

// Paste copies text to the clipboard and sends the paste chord. The user's
// clipboard is restored after a quiet period.
type Paste struct {
	restore   *clipboard.Restorer
	available func() bool
	copy      func(string) error
	paste     func() error
}

func NewPaste(restoreAfter time.Duration) *Paste {
	return &Paste{
		restore: clipboard.NewRestorer(restoreAfter),
		available: func() bool {
			return clipboard.Available() && clipboard.Init() == nil
		},
		copy:  clipboard.Copy,
		paste: clipboard.Paste,
	}
}

func (p *Paste) Name() string { return "paste" }

func (p *Paste) Available(string) bool { return p.available() }

func (p *Paste) Deliver(text string) error {
	p.restore.Save()
	defer p.restore.Schedule()
	if err := p.copy(text); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	if err := p.paste(); err != nil {
		return fmt.Errorf("paste keystroke: %w", err)
	}
	return nil
}

// CancelRestore leaves the last pasted text on the clipboard.
func (p *Paste) CancelRestore() { p.restore.Cancel() }

// Close restores a pending clipboard immediately.
func (p *Paste) Close() error {
	p.restore.Flush()
	return nil
}

// Command types text with an external tool such as xdotool or wtype.
type Command struct {
	name string
	path string
	args func(text string) []string
}

// NewTypeTool picks wtype on Wayland and xdotool on X11. The result is
// unavailable when neither is installed.
func NewTypeTool() *Command {
	if runtime.GOOS != "linux" {
		return &Command{name: "type_tool"}
	}
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		if p, err := exec.LookPath("wtype"); err == nil {
			return &Command{name: "wtype", path: p, args: func(t string) []string { return []string{"--", t} }}
		}
	}
	if p, err := exec.LookPath("xdotool"); err == nil {
		return &Command{name: "xdotool", path: p, args: func(t string) []string {
			return []string{"type", "--clearmodifiers", "--delay", "0", "--", t}
		}}
	}
	return &Command{name: "type_tool"}
}

func (c *Command) Name() string { return c.name }

func (c *Command) Available(string) bool { return c.path != "" }

func (c *Command) Deliver(text string) error {
	out, err := exec.Command(c.path, c.args(text)...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", c.name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

const DefaultTypistRunes = 64

// Typist types short strings one key at a time.
type Typist struct {
	MaxRunes int
	Delay    time.Duration

	typeable func(string) bool
	typeRune func(rune) error
}

func NewTypist(maxRunes int, delay time.Duration) *Typist {
	if maxRunes <= 0 {
		maxRunes = DefaultTypistRunes
	}
	return &Typist{
		MaxRunes: maxRunes,
		Delay:    delay,
		typeable: func(text string) bool {
			return clipboard.Typeable(text) && clipboard.Init() == nil
		},
		typeRune: clipboard.TypeRune,
	}
}

func (t *Typist) Name() string { return "typist" }

func (t *Typist) Available(text string) bool {
	return utf8.RuneCountInString(text) <= t.MaxRunes && t.typeable(text)
}

func (t *Typist) Deliver(text string) error {
	for i, r := range text {
		if i > 0 && t.Delay > 0 {
			time.Sleep(t.Delay)
		}
		if err := t.typeRune(r); err != nil {
			return err
		}
	}
	return nil
}

// ClipboardOnly leaves text on the clipboard for a manual paste. Undelivered
// deltas accumulate so the clipboard holds everything the user is missing.
type ClipboardOnly struct {
	available func() bool
	copy      func(string) error

	mu      sync.Mutex
	pending strings.Builder
}

func NewClipboardOnly() *ClipboardOnly {
	return &ClipboardOnly{available: clipboard.Available, copy: clipboard.Copy}
}

func (c *ClipboardOnly) Name() string { return "clipboard_only" }

func (c *ClipboardOnly) Available(string) bool { return c.available() }

func (c *ClipboardOnly) Deliver(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending.WriteString(text)
	return c.copy(c.pending.String())
}

func (c *ClipboardOnly) Reset() {
	c.mu.Lock()
	c.pending.Reset()
	c.mu.Unlock()
}

// Writer writes each delivery as a quoted line, for headless runs.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	prefix string
}

func NewWriter(w io.Writer, prefix string) *Writer {
	return &Writer{w: w, prefix: prefix}
}

func (w *Writer) Name() string { return "writer" }

func (w *Writer) Available(string) bool { return true }

func (w *Writer) Deliver(text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := fmt.Fprintln(w.w, w.prefix+strconv.Quote(text))
	return err
}

// Build returns strategies by name in order. Unknown names are an error.
func Build(names []string, restoreAfter time.Duration, typistRunes int) ([]Strategy, error) {
	var out []Strategy
	for _, n := range names {
		switch n {
		case "paste":
			out = append(out, NewPaste(restoreAfter))
		case "type_tool":
			out = append(out, NewTypeTool())
		case "typist":
			out = append(out, NewTypist(typistRunes, 2*time.Millisecond))
		case "clipboard_only":
			out = append(out, NewClipboardOnly())
		default:
			return nil, fmt.Errorf("unknown sink strategy %q", n)
		}
	}
	return out, nil
}
