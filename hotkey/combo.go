package hotkey

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidCombo = errors.New("hotkey: invalid combo")

type Modifier uint8

const (
	ModCtrl Modifier = 1 << iota
	ModShift
	ModAlt
	ModSuper
)

var modifierAliases = map[string]Modifier{
	"commandorcontrol": ModCtrl,
	"cmdorctrl":        ModCtrl,
	"cmd":              ModCtrl,
	"command":          ModCtrl,
	"ctrl":             ModCtrl,
	"control":          ModCtrl,
	"shift":            ModShift,
	"alt":              ModAlt,
	"option":           ModAlt,
	"super":            ModSuper,
	"win":              ModSuper,
	"windows":          ModSuper,
	"meta":             ModSuper,
}

var keyAliases = map[string]string{
	"return": "enter",
	"escape": "esc",
}

// Combo is a parsed accelerator such as "CommandOrControl+Shift+Space".
type Combo struct {
	Mods Modifier
	// Key is the lower-case key name: a-z, 0-9, space, tab, enter, esc or
	// f1-f12.
	Key string
}

func validKey(k string) bool {
	switch {
	case len(k) == 1 && (k[0] >= 'a' && k[0] <= 'z' || k[0] >= '0' && k[0] <= '9'):
		return true
	case k == "space", k == "tab", k == "enter", k == "esc":
		return true
	case len(k) >= 2 && k[0] == 'f':
		n, err := strconv.Atoi(k[1:])
		return err == nil && n >= 1 && n <= 12 && strconv.Itoa(n) == k[1:]
	}
	return false
}

// ParseCombo parses an Electron-style accelerator. Exactly one non-modifier
// key is required.
func ParseCombo(s string) (Combo, error) {
	var c Combo
	for _, part := range strings.Split(s, "+") {
		p := strings.ToLower(strings.TrimSpace(part))
		if p == "" {
			return Combo{}, fmt.Errorf("%w %q: empty part", ErrInvalidCombo, s)
		}
		if m, ok := modifierAliases[p]; ok {
			c.Mods |= m
			continue
		}
		if a, ok := keyAliases[p]; ok {
			p = a
		}
		if !validKey(p) {
			return Combo{}, fmt.Errorf("%w %q: unknown key %q", ErrInvalidCombo, s, part)
		}
		if c.Key != "" {
			return Combo{}, fmt.Errorf("%w %q: more than one key", ErrInvalidCombo, s)
		}
		c.Key = p
	}
	if c.Key == "" {
		return Combo{}, fmt.Errorf("%w %q: no key", ErrInvalidCombo, s)
	}
	return c, nil
}

// MustParseCombo is ParseCombo for compile-time constants.
func MustParseCombo(s string) Combo {
	c, err := ParseCombo(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Combo) String() string {
	var parts []string
	for _, m := range []struct {
		mod  Modifier
		name string
	}{{ModCtrl, "Ctrl"}, {ModShift, "Shift"}, {ModAlt, "Alt"}, {ModSuper, "Super"}} {
		if c.Mods&m.mod != 0 {
			parts = append(parts, m.name)
		}
	}
	switch {
	case c.Key == "":
	case len(c.Key) == 1, validKey(c.Key) && c.Key[0] == 'f':
		parts = append(parts, strings.ToUpper(c.Key))
	default:
		parts = append(parts, strings.ToUpper(c.Key[:1])+c.Key[1:])
	}
	return strings.Join(parts, "+")
}
