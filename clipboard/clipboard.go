// Package clipboard reads and writes the system clipboard and synthesizes
// paste and typing keystrokes for the focused window.
package clipboard

import (
	"errors"

	cb "github.com/atotto/clipboard"
)

var ErrUnsupported = errors.New("clipboard: no clipboard utility available")

// Available reports whether a clipboard backend was found.
func Available() bool { return !cb.Unsupported }

func Read() (string, error) {
	if cb.Unsupported {
		return "", ErrUnsupported
	}
	return cb.ReadAll()
}

func Copy(text string) error {
	if cb.Unsupported {
		return ErrUnsupported
	}
	return cb.WriteAll(text)
}

// Typeable reports whether TypeRune can produce every rune of text.
func Typeable(text string) bool {
	for _, r := range text {
		if _, _, ok := keyFor(r); !ok {
			return false
		}
	}
	return true
}
