package protocol

import (
	"strconv"
	"strings"
)

// Mode is the recording mode argument of SET_MODE.
type Mode string

const (
	ModeHold   Mode = "HOLD"
	ModeToggle Mode = "TOGGLE"
)

// Command is one outbound worker command.
type Command struct {
	Name string
	Arg  string
}

// String renders the command without its terminating newline. Newlines in
// the argument are folded to spaces so a command is always one line.
func (c Command) String() string {
	if c.Arg == "" {
		return c.Name
	}
	arg := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(c.Arg)
	return c.Name + " " + arg
}

func SetMode(m Mode) Command { return Command{Name: "SET_MODE", Arg: string(m)} }

func SetHoldKeys(combo string) Command { return Command{Name: "SET_HOLD_KEYS", Arg: combo} }

func Start() Command { return Command{Name: "START"} }

func Stop() Command { return Command{Name: "STOP"} }

func SetContinuousDictation(on bool) Command {
	return Command{Name: "SET_CONTINUOUS_DICTATION", Arg: strconv.FormatBool(on)}
}

func SetLowLatency(on bool) Command {
	return Command{Name: "SET_LOW_LATENCY", Arg: strconv.FormatBool(on)}
}

func SetNoiseReduction(on bool) Command {
	return Command{Name: "SET_NOISE_REDUCTION", Arg: strconv.FormatBool(on)}
}
