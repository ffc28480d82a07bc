package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"murmur/log"
	"murmur/protocol"
)

// EventHandler receives the speech worker's classified output. Calls come
// from the worker's reader goroutine.
type EventHandler interface {
	HandleEvent(ev protocol.Event)
	WorkerExited(err error)
}

type SpeechConfig struct {
	Process Config
	// MaxRestarts is how many consecutive unexpected exits are followed by a
	// restart. The count resets whenever the worker reports READY.
	MaxRestarts  int
	RestartDelay time.Duration
}

// Speech supervises the speech-recognition worker.
type Speech struct {
	cfg     SpeechConfig
	handler EventHandler

	mu       sync.Mutex
	ctx      context.Context
	proc     *Process
	restarts int
	stopped  bool
}

func NewSpeech(cfg SpeechConfig, h EventHandler) *Speech {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = time.Second
	}
	return &Speech{cfg: cfg, handler: h}
}

// Attach sets the handler. It must be called before Start.
func (s *Speech) Attach(h EventHandler) { s.handler = h }

// Start launches the worker. It is restarted on unexpected exit until ctx is
// done or Stop is called.
func (s *Speech) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
	return s.spawnLocked()
}

func (s *Speech) spawnLocked() error {
	proc, err := Start(s.ctx, "speech", s.cfg.Process, s.onLine, s.onExit)
	if err != nil {
		return err
	}
	s.proc = proc
	return nil
}

func (s *Speech) onLine(line string) {
	ev := protocol.Classify(line)
	if ev.Type == protocol.TypeLifecycle && ev.Kind == protocol.LifecycleReady {
		s.mu.Lock()
		s.restarts = 0
		s.mu.Unlock()
	}
	s.handler.HandleEvent(ev)
}

func (s *Speech) onExit(err error) {
	if err == nil {
		return
	}

	s.mu.Lock()
	s.proc = nil
	if s.stopped || s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	restart := s.restarts < s.cfg.MaxRestarts
	delay := s.cfg.RestartDelay << s.restarts
	if restart {
		s.restarts++
	}
	s.mu.Unlock()

	s.handler.WorkerExited(err)
	if !restart {
		log.Error("speech worker: restart limit reached")
		return
	}

	log.Warnf("speech worker: restarting in %s", delay)
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.stopped || s.ctx.Err() != nil || s.proc != nil {
			s.mu.Unlock()
			return
		}
		err := s.spawnLocked()
		s.mu.Unlock()
		if err != nil {
			// A failed spawn counts as another exit.
			log.Errorf("speech worker: restart failed: %v", err)
			s.onExit(fmt.Errorf("%w: restart: %v", ErrUnexpectedExit, err))
		}
	})
}

// Send queues cmd for the worker. Delivery is fire-and-forget.
func (s *Speech) Send(cmd protocol.Command) {
	s.mu.Lock()
	p := s.proc
	s.mu.Unlock()
	if p == nil {
		log.Warnf("speech worker: %s dropped: %v", cmd, ErrStopped)
		return
	}
	p.Send(cmd.String())
}

// Stop ends the worker and disables restarts.
func (s *Speech) Stop() error {
	s.mu.Lock()
	s.stopped = true
	p := s.proc
	s.mu.Unlock()
	if p == nil {
		return nil
	}
	return p.Stop()
}
