package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"murmur/beep"
	"murmur/config"
	"murmur/hotkey"
	"murmur/log"
	"murmur/session"
	"murmur/sink"
	"murmur/transform"
	"murmur/worker"
)

// lineOut serializes whole lines from several goroutines.
type lineOut struct {
	mu sync.Mutex
	w  io.Writer
}

func (o *lineOut) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.w.Write(p)
}

func (o *lineOut) printf(format string, args ...any) {
	fmt.Fprintf(o, format+"\n", args...)
}

// scriptUI reports session notifications as stdout lines.
type scriptUI struct{ out *lineOut }

func (u scriptUI) RecordingStarted(s session.State) { u.out.printf("STARTED %s", s) }
func (u scriptUI) RecordingStopped(s session.State) { u.out.printf("STOPPED %s", s) }
func (u scriptUI) Partial(string)                   {}
func (u scriptUI) Final(text string)                { u.out.printf("FINAL %s", strconv.Quote(text)) }
func (u scriptUI) Notice(n session.Notice)          { u.out.printf("NOTICE %s", n.Kind) }
func (u scriptUI) Defocus()                         {}

type scriptNotes struct{ out *lineOut }

func (n scriptNotes) Append(text string) error {
	n.out.printf("NOTE %s", strconv.Quote(text))
	return log.NoteText(text)
}

// countingReceiver counts gestures that reached the controller so the
// script can wait for them before feeding worker lines.
type countingReceiver struct {
	hotkey.Receiver
	n atomic.Int64
}

func (r *countingReceiver) HoldPressed()     { r.Receiver.HoldPressed(); r.n.Add(1) }
func (r *countingReceiver) HoldReleased()    { r.Receiver.HoldReleased(); r.n.Add(1) }
func (r *countingReceiver) ToggleTriggered() { r.Receiver.ToggleTriggered(); r.n.Add(1) }
func (r *countingReceiver) NotesTriggered()  { r.Receiver.NotesTriggered(); r.n.Add(1) }

// runTestMode drives a controller from stdin with fake hotkeys and a fake
// worker. It returns the process exit code.
func runTestMode(ctx context.Context, store *config.Store, in io.Reader, stdout io.Writer) int {
	beep.Disable()
	out := &lineOut{w: stdout}
	cfg := store.Config()

	w := worker.NewFake()
	d := sink.New(sink.NewWriter(out, "EMIT "))
	ctrl := session.New(session.Deps{
		Worker:      w,
		Sink:        d,
		Transformer: transform.NewPipeline(transform.NewRules(cfg.Dictation.Language)),
		Settings:    store,
		UI:          scriptUI{out},
		History:     historyLog{},
		Notes:       scriptNotes{out},
	}, session.WithFailSafe(cfg.Dictation.FailSafe))
	w.Attach(ctrl)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go ctrl.Run(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case cmd := <-w.Commands():
				out.printf("CMD %s", cmd)
			}
		}
	}()

	hold, toggle, notes := hotkey.NewFake(), hotkey.NewFake(), hotkey.NewFake()
	keys := hotkey.Bindings{Hold: hold, Toggle: toggle, Notes: notes}
	recv := &countingReceiver{Receiver: ctrl}
	go keys.Forward(ctx, recv)
	gesture := func(sim func()) {
		want := recv.n.Load() + 1
		sim()
		for recv.n.Load() < want {
			time.Sleep(time.Millisecond)
		}
		// Snapshot queues behind the gesture, so it has been handled on return.
		ctrl.Snapshot()
	}

	defer d.Close()
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		verb, arg, _ := strings.Cut(line, " ")
		switch verb {
		case "":
		case "HOLD_DOWN":
			gesture(hold.SimKeydown)
		case "HOLD_UP":
			gesture(hold.SimKeyup)
		case "TOGGLE":
			gesture(toggle.SimTap)
		case "NOTES":
			gesture(notes.SimTap)
		case "WORKER":
			w.Emit(arg)
		case "WORKER_EXIT":
			w.Exit(worker.ErrUnexpectedExit)
		case "SLEEP":
			ms, err := strconv.Atoi(arg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "bad SLEEP %q\n", arg)
				continue
			}
			time.Sleep(time.Duration(ms) * time.Millisecond)
		case "WAIT_IDLE":
			waitIdle(ctrl, d)
		case "QUIT":
			waitIdle(ctrl, d)
			return 0
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q\n", verb)
		}
	}
	waitIdle(ctrl, d)
	return 0
}

// waitIdle blocks until the controller is idle with no transforms or sink
// deliveries outstanding.
func waitIdle(ctrl *session.Controller, d *sink.Dispatcher) {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if ctrl.Snapshot().Settled() && d.Pending() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	fmt.Fprintln(os.Stderr, "WAIT_IDLE timed out")
}
