//go:build !linux

package clipboard

import (
	"fmt"
	"sync"

	"github.com/micmonay/keybd_event"
)

var (
	kbMu   sync.Mutex
	kb     keybd_event.KeyBonding
	kbOnce sync.Once
	kbErr  error
)

func Init() error {
	kbOnce.Do(func() {
		kb, kbErr = keybd_event.NewKeyBonding()
	})
	return kbErr
}

func launch(vk int, shift, paste bool) error {
	if err := Init(); err != nil {
		return err
	}
	kbMu.Lock()
	defer kbMu.Unlock()
	kb.Clear()
	kb.SetKeys(vk)
	kb.HasSHIFT(shift)
	if paste {
		pasteModifier(&kb)
	}
	return kb.Launching()
}

// Paste sends the platform paste chord.
func Paste() error {
	return launch(keybd_event.VK_V, false, true)
}

// TypeRune types one character.
func TypeRune(r rune) error {
	vk, shift, ok := keyFor(r)
	if !ok {
		return fmt.Errorf("clipboard: no key for %q", r)
	}
	return launch(int(vk), shift, false)
}

var (
	letterKeys = [26]int{
		keybd_event.VK_A, keybd_event.VK_B, keybd_event.VK_C, keybd_event.VK_D,
		keybd_event.VK_E, keybd_event.VK_F, keybd_event.VK_G, keybd_event.VK_H,
		keybd_event.VK_I, keybd_event.VK_J, keybd_event.VK_K, keybd_event.VK_L,
		keybd_event.VK_M, keybd_event.VK_N, keybd_event.VK_O, keybd_event.VK_P,
		keybd_event.VK_Q, keybd_event.VK_R, keybd_event.VK_S, keybd_event.VK_T,
		keybd_event.VK_U, keybd_event.VK_V, keybd_event.VK_W, keybd_event.VK_X,
		keybd_event.VK_Y, keybd_event.VK_Z,
	}
	digitKeys = [10]int{
		keybd_event.VK_0, keybd_event.VK_1, keybd_event.VK_2, keybd_event.VK_3,
		keybd_event.VK_4, keybd_event.VK_5, keybd_event.VK_6, keybd_event.VK_7,
		keybd_event.VK_8, keybd_event.VK_9,
	}
)

// keyFor covers letters, digits and space; anything else goes through the
// paste path.
func keyFor(r rune) (code uint16, shift bool, ok bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return uint16(letterKeys[r-'a']), false, true
	case r >= 'A' && r <= 'Z':
		return uint16(letterKeys[r-'A']), true, true
	case r >= '0' && r <= '9':
		return uint16(digitKeys[r-'0']), false, true
	case r == ' ':
		return uint16(keybd_event.VK_SPACE), false, true
	}
	return 0, false, false
}

// Verify checks that the keyboard event binding is initialized.
func Verify() (string, error) {
	if err := Init(); err != nil {
		return "", err
	}
	return "keyboard event binding OK (" + pasteChord + ")", nil
}
