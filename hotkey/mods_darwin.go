package hotkey

import "golang.design/x/hotkey"

const platformName = "Carbon event hotkeys"

// ModCtrl is the platform primary modifier (Cmd); ModSuper is the physical
// Control key.
func platformMods(m Modifier) []hotkey.Modifier {
	var out []hotkey.Modifier
	if m&ModCtrl != 0 {
		out = append(out, hotkey.ModCmd)
	}
	if m&ModShift != 0 {
		out = append(out, hotkey.ModShift)
	}
	if m&ModAlt != 0 {
		out = append(out, hotkey.ModOption)
	}
	if m&ModSuper != 0 {
		out = append(out, hotkey.ModCtrl)
	}
	return out
}
