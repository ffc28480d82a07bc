package hotkey

import (
	"errors"
	"testing"
)

func TestParseCombo(t *testing.T) {
	tests := []struct {
		in   string
		want Combo
		str  string
	}{
		{"CommandOrControl+Shift+Space", Combo{ModCtrl | ModShift, "space"}, "Ctrl+Shift+Space"},
		{"cmdorctrl+alt+k", Combo{ModCtrl | ModAlt, "k"}, "Ctrl+Alt+K"},
		{"Option + Super + F5", Combo{ModAlt | ModSuper, "f5"}, "Alt+Super+F5"},
		{"win+Return", Combo{ModSuper, "enter"}, "Super+Enter"},
		{"meta+escape", Combo{ModSuper, "esc"}, "Super+Esc"},
		{"Control+Command+1", Combo{ModCtrl, "1"}, "Ctrl+1"},
		{"F12", Combo{0, "f12"}, "F12"},
		{"shift+f", Combo{ModShift, "f"}, "Shift+F"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCombo(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("ParseCombo = %+v, want %+v", got, tt.want)
			}
			if s := got.String(); s != tt.str {
				t.Errorf("String() = %q, want %q", s, tt.str)
			}
			again, err := ParseCombo(got.String())
			if err != nil || again != got {
				t.Errorf("String() does not round trip: %+v, %v", again, err)
			}
		})
	}
}

func TestParseComboErrors(t *testing.T) {
	for _, in := range []string{"", "Ctrl+Shift", "Ctrl++Space", "Ctrl+A+B", "Ctrl+F13", "Ctrl+F01", "Hyper+Space", "Ctrl+é"} {
		if _, err := ParseCombo(in); !errors.Is(err, ErrInvalidCombo) {
			t.Errorf("ParseCombo(%q) err = %v, want ErrInvalidCombo", in, err)
		}
	}
}
