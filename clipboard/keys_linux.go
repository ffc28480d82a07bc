//go:build linux

package clipboard

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"
)

// ioctl constants from linux/uinput.h
const (
	uiSetEvbit  = 0x40045564 // UI_SET_EVBIT
	uiSetKeybit = 0x40045565 // UI_SET_KEYBIT
	uiDevCreate = 0x5501     // UI_DEV_CREATE
)

const (
	evSyn = 0x00
	evKey = 0x01

	busUSB     = 0x03
	deviceName = "murmur-keys"

	keyLeftCtrl  = 29
	keyLeftShift = 42
	keyV         = 47
)

type inputEvent struct {
	Time  syscall.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type uinputUserDev struct {
	Name         [80]byte
	ID           inputID
	FfEffectsMax uint32
	Absmax       [64]int32
	Absmin       [64]int32
	Absfuzz      [64]int32
	Absflat      [64]int32
}

// keyboard is a virtual uinput keyboard. Writes are serialized so chords
// from concurrent callers never interleave.
type keyboard struct {
	mu sync.Mutex
	f  *os.File
}

var (
	kbd     keyboard
	kbdOnce sync.Once
	kbdErr  error
)

func ioctl(f *os.File, req, arg uintptr) error {
	if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), req, arg); errno != 0 {
		return errno
	}
	return nil
}

func openUinput() (*os.File, error) {
	path := "/dev/uinput"
	if _, err := os.Stat(path); err != nil {
		path = "/dev/input/uinput"
		if _, err := os.Stat(path); err != nil {
			return nil, errors.New("uinput device not found, try: sudo modprobe uinput")
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|syscall.O_NONBLOCK, os.ModeDevice)
	if err != nil {
		return nil, err
	}
	if err := ioctl(f, uiSetEvbit, evKey); err != nil {
		f.Close()
		return nil, fmt.Errorf("UI_SET_EVBIT key: %w", err)
	}
	if err := ioctl(f, uiSetEvbit, evSyn); err != nil {
		f.Close()
		return nil, fmt.Errorf("UI_SET_EVBIT syn: %w", err)
	}
	// All standard keys, so udev classifies the device as a keyboard.
	for code := uintptr(0); code < 256; code++ {
		if err := ioctl(f, uiSetKeybit, code); err != nil {
			f.Close()
			return nil, fmt.Errorf("UI_SET_KEYBIT %d: %w", code, err)
		}
	}
	dev := uinputUserDev{ID: inputID{Bustype: busUSB, Vendor: 0x1234, Product: 0x5679, Version: 1}}
	copy(dev.Name[:], deviceName)
	if err := binary.Write(f, binary.LittleEndian, &dev); err != nil {
		f.Close()
		return nil, err
	}
	if err := ioctl(f, uiDevCreate, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("UI_DEV_CREATE: %w", err)
	}
	return f, nil
}

// Init creates the virtual keyboard. It is safe to call repeatedly; the
// first result is cached.
func Init() error {
	kbdOnce.Do(func() {
		kbd.f, kbdErr = openUinput()
		if kbdErr == nil {
			// Give the compositor time to pick up the new device.
			time.Sleep(200 * time.Millisecond)
		}
	})
	return kbdErr
}

func (k *keyboard) write(code uint16, value int32) error {
	ev := inputEvent{Type: evKey, Code: code, Value: value}
	if err := binary.Write(k.f, binary.LittleEndian, &ev); err != nil {
		return err
	}
	return binary.Write(k.f, binary.LittleEndian, &inputEvent{Type: evSyn})
}

// chord presses mods in order, taps key and releases in reverse.
func (k *keyboard) chord(key uint16, mods ...uint16) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, m := range mods {
		if err := k.write(m, 1); err != nil {
			return err
		}
	}
	if len(mods) > 0 {
		// Let the compositor register modifier state.
		time.Sleep(5 * time.Millisecond)
	}
	if err := k.write(key, 1); err != nil {
		return err
	}
	if err := k.write(key, 0); err != nil {
		return err
	}
	for i := len(mods) - 1; i >= 0; i-- {
		if err := k.write(mods[i], 0); err != nil {
			return err
		}
	}
	return nil
}

// Paste sends Ctrl+V.
func Paste() error {
	if err := Init(); err != nil {
		return err
	}
	return kbd.chord(keyV, keyLeftCtrl)
}

// TypeRune types one character. Runes outside the US layout return an error.
func TypeRune(r rune) error {
	code, shift, ok := keyFor(r)
	if !ok {
		return fmt.Errorf("clipboard: no key for %q", r)
	}
	if err := Init(); err != nil {
		return err
	}
	if shift {
		return kbd.chord(code, keyLeftShift)
	}
	return kbd.chord(code)
}

// evdev codes for a..z and 0..9.
var (
	letterKeys = [26]uint16{
		30, 48, 46, 32, 18, 33, 34, 35, 23, 36,
		37, 38, 50, 49, 24, 25, 16, 19, 31, 20,
		22, 47, 17, 45, 21, 44,
	}
	digitKeys = [10]uint16{11, 2, 3, 4, 5, 6, 7, 8, 9, 10}
)

type usKey struct {
	code  uint16
	shift bool
}

var punctKeys = map[rune]usKey{
	'.': {52, false}, ',': {51, false}, '/': {53, false},
	';': {39, false}, '\'': {40, false}, '[': {26, false},
	']': {27, false}, '-': {12, false}, '=': {13, false},
	'\\': {43, false}, '`': {41, false},
	'!': {2, true}, '@': {3, true}, '#': {4, true},
	'$': {5, true}, '%': {6, true}, '^': {7, true},
	'&': {8, true}, '*': {9, true}, '(': {10, true},
	')': {11, true}, '_': {12, true}, '+': {13, true},
	'{': {26, true}, '}': {27, true}, '|': {43, true},
	':': {39, true}, '"': {40, true}, '<': {51, true},
	'>': {52, true}, '?': {53, true}, '~': {41, true},
	' ': {57, false}, '\n': {28, false}, '\t': {15, false},
}

func keyFor(r rune) (code uint16, shift bool, ok bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return letterKeys[r-'a'], false, true
	case r >= 'A' && r <= 'Z':
		return letterKeys[r-'A'], true, true
	case r >= '0' && r <= '9':
		return digitKeys[r-'0'], false, true
	}
	k, ok := punctKeys[r]
	return k.code, k.shift, ok
}

// Verify sends Ctrl+V through the virtual keyboard and reads it back from
// the kernel input layer.
func Verify() (string, error) {
	if err := Init(); err != nil {
		return "", fmt.Errorf("uinput init: %w", err)
	}

	evdevPath, err := findDevice(deviceName)
	if err != nil {
		return "", err
	}
	evdev, err := os.Open(evdevPath)
	if err != nil {
		return "", fmt.Errorf("cannot open %s: %w", evdevPath, err)
	}
	defer evdev.Close()

	if err := Paste(); err != nil {
		return "", fmt.Errorf("paste send: %w", err)
	}

	type result struct {
		ctrl, v bool
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		buf := make([]byte, 24*32)
		var r result
		n, err := evdev.Read(buf)
		if err != nil {
			r.err = err
			ch <- r
			return
		}
		for i := 0; i+24 <= n; i += 24 {
			if binary.LittleEndian.Uint16(buf[i+16:]) != evKey {
				continue
			}
			switch binary.LittleEndian.Uint16(buf[i+18:]) {
			case keyLeftCtrl:
				r.ctrl = true
			case keyV:
				r.v = true
			}
		}
		ch <- r
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return "", fmt.Errorf("reading events: %w", r.err)
		}
		if !r.ctrl || !r.v {
			return "", fmt.Errorf("missing events (ctrl=%v, v=%v)", r.ctrl, r.v)
		}
		return "Ctrl+V keystroke verified via " + evdevPath, nil
	case <-time.After(500 * time.Millisecond):
		return "", errors.New("timed out waiting for keystroke events")
	}
}

func findDevice(name string) (string, error) {
	entries, err := os.ReadDir("/sys/class/input")
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		data, err := os.ReadFile(filepath.Join("/sys/class/input", e.Name(), "device", "name"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(data)) == name {
			return filepath.Join("/dev/input", e.Name()), nil
		}
	}
	return "", fmt.Errorf("%s evdev device not found", name)
}
