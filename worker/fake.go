package worker

import (
	"sync"

	"murmur/protocol"
)

// Fake stands in for the speech worker. It records commands and lets the
// caller inject stdout bytes, which are framed and classified like the real
// worker's output.
type Fake struct {
	mu       sync.Mutex
	handler  EventHandler
	reader   protocol.Reader
	sent     []protocol.Command
	commands chan protocol.Command
}

func NewFake() *Fake {
	return &Fake{commands: make(chan protocol.Command, 64)}
}

func (f *Fake) Attach(h EventHandler) {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
}

func (f *Fake) Send(cmd protocol.Command) {
	f.mu.Lock()
	f.sent = append(f.sent, cmd)
	f.mu.Unlock()
	select {
	case f.commands <- cmd:
	default:
	}
}

// Commands receives every sent command, dropping them if nobody reads.
func (f *Fake) Commands() <-chan protocol.Command { return f.commands }

// Sent returns a copy of all commands sent so far.
func (f *Fake) Sent() []protocol.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Command(nil), f.sent...)
}

// Feed injects a raw stdout chunk.
func (f *Fake) Feed(chunk string) {
	f.mu.Lock()
	lines := f.reader.Feed([]byte(chunk))
	h := f.handler
	f.mu.Unlock()
	for _, line := range lines {
		h.HandleEvent(protocol.Classify(line))
	}
}

// Emit injects one complete line.
func (f *Fake) Emit(line string) { f.Feed(line + "\n") }

// Exit simulates the worker process dying.
func (f *Fake) Exit(err error) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	h.WorkerExited(err)
}
