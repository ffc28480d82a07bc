package clipboard

import (
	"sync"
	"time"

	"murmur/log"
)

const DefaultRestoreDelay = 600 * time.Millisecond

// Restorer puts the user's clipboard back once pasting has been quiet for
// the restore delay. A burst of pastes saves the original contents once.
type Restorer struct {
	delay time.Duration
	read  func() (string, error)
	write func(string) error

	mu      sync.Mutex
	saved   string
	pending bool
	gen     uint64
	timer   *time.Timer
}

func NewRestorer(delay time.Duration) *Restorer {
	if delay <= 0 {
		delay = DefaultRestoreDelay
	}
	return &Restorer{delay: delay, read: Read, write: Copy}
}

// Save records the current clipboard unless a restore is already pending,
// in which case the clipboard holds our own text.
func (r *Restorer) Save() {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Invalidate a timer that fires between now and the next Schedule.
	r.gen++
	if r.pending {
		return
	}
	text, err := r.read()
	if err != nil {
		log.Warnf("clipboard save failed: %v", err)
		return
	}
	r.saved = text
	r.pending = true
}

// Schedule (re)starts the quiet period after a paste.
func (r *Restorer) Schedule() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.pending {
		return
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.gen++
	gen := r.gen
	r.timer = time.AfterFunc(r.delay, func() { r.expire(gen) })
}

func (r *Restorer) expire(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen == r.gen {
		r.flushLocked()
	}
}

// Flush restores immediately if a restore is pending.
func (r *Restorer) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushLocked()
}

func (r *Restorer) flushLocked() {
	if !r.pending {
		return
	}
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.pending = false
	if err := r.write(r.saved); err != nil {
		log.Warnf("clipboard restore failed: %v", err)
	}
	r.saved = ""
}

// Cancel drops the pending restore, leaving the pasted text on the clipboard.
func (r *Restorer) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.pending = false
	r.saved = ""
}
