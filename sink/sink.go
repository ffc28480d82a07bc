// Package sink delivers text to the foreground application through an
// ordered list of strategies, falling through to the next when one is
// unavailable or fails.
package sink

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"murmur/log"
)

var ErrUnavailable = errors.New("sink: no delivery strategy available")

// Strategy is one delivery mechanism.
type Strategy interface {
	Name() string
	// Available reports whether the strategy can deliver text right now.
	Available(text string) bool
	Deliver(text string) error
}

// resetter is implemented by strategies that hold state which a successful
// delivery by an earlier strategy invalidates.
type resetter interface {
	Reset()
}

const queueSize = 256

// Dispatcher delivers emitted text in order on its own goroutine.
type Dispatcher struct {
	strategies []Strategy
	queue      chan string
	done       chan struct{}

	mu      sync.RWMutex
	closed  bool
	pending atomic.Int64

	onResult func(text string, err error)
}

func New(strategies ...Strategy) *Dispatcher {
	d := &Dispatcher{
		strategies: strategies,
		queue:      make(chan string, queueSize),
		done:       make(chan struct{}),
	}
	go d.run()
	return d
}

// OnResult registers a callback invoked after each delivery attempt. It must
// be set before the first Emit.
func (d *Dispatcher) OnResult(fn func(text string, err error)) { d.onResult = fn }

// Emit schedules text for delivery. It returns false if the dispatcher is
// closed or its queue is full.
func (d *Dispatcher) Emit(text string) bool {
	if text == "" {
		return true
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	d.pending.Add(1)
	select {
	case d.queue <- text:
		return true
	default:
		d.pending.Add(-1)
		log.Warnf("sink queue full, dropping %d bytes", len(text))
		return false
	}
}

// Pending reports how many emitted texts are queued or being delivered.
func (d *Dispatcher) Pending() int { return int(d.pending.Load()) }

// Close stops accepting text, waits for queued text to be delivered and
// closes strategies that hold resources.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done

	var errs []error
	for _, s := range d.strategies {
		if c, ok := s.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for text := range d.queue {
		err := d.deliver(text)
		if d.onResult != nil {
			d.onResult(text, err)
		}
		d.pending.Add(-1)
	}
}

func (d *Dispatcher) deliver(text string) error {
	runes := utf8.RuneCountInString(text)
	for i, s := range d.strategies {
		if !s.Available(text) {
			continue
		}
		start := time.Now()
		err := s.Deliver(text)
		log.SinkDelivery(s.Name(), runes, time.Since(start), err)
		if err != nil {
			continue
		}
		for _, later := range d.strategies[i+1:] {
			if r, ok := later.(resetter); ok {
				r.Reset()
			}
		}
		return nil
	}
	log.Errorf("text sink: %d runes not delivered", runes)
	return ErrUnavailable
}
