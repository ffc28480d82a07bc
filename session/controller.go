// Package session owns the recording state machine. A single goroutine owns
// all state; hotkey triggers, worker events, fail-safe expiries and
// transform results reach it as messages.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"murmur/log"
	"murmur/protocol"
	"murmur/textdiff"
	"murmur/transform"
)

const DefaultFailSafe = 30 * time.Second

// Deps are the controller's collaborators. Worker, Sink, Transformer and
// Settings are required; the rest default to no-ops.
type Deps struct {
	Worker      Worker
	Sink        Sink
	Transformer Transformer
	Settings    SettingsSource
	UI          UI
	History     History
	Notes       Notes
}

type Option func(*Controller)

// WithFailSafe sets how long a recording may run without a stop.
func WithFailSafe(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.failSafe = d
		}
	}
}

type Controller struct {
	worker   Worker
	sink     Sink
	xf       Transformer
	settings SettingsSource
	ui       UI
	history  History
	notes    Notes
	failSafe time.Duration

	events chan any
	done   chan struct{}

	// Owned by the loop goroutine.
	ctx          context.Context
	sess         Session
	ready        bool
	gen          uint64
	timer        *time.Timer
	lastJob      chan struct{}
	transforming int
}

type (
	triggerEvent struct {
		trigger Trigger
		release bool
	}
	workerEvent      struct{ ev protocol.Event }
	exitEvent        struct{ err error }
	timeoutEvent     struct{ gen uint64 }
	transformedEvent struct {
		session string
		text    string
		notes   bool
	}
	snapshotEvent struct{ reply chan Snapshot }
	prefsEvent    struct{}
)

func New(d Deps, opts ...Option) *Controller {
	c := &Controller{
		worker:   d.Worker,
		sink:     d.Sink,
		xf:       d.Transformer,
		settings: d.Settings,
		ui:       d.UI,
		history:  d.History,
		notes:    d.Notes,
		failSafe: DefaultFailSafe,
		events:   make(chan any, 64),
		done:     make(chan struct{}),
		sess:     Session{text: &textdiff.Session{}},
	}
	if c.ui == nil {
		c.ui = nopUI{}
	}
	if c.history == nil {
		c.history = nopStore{}
	}
	if c.notes == nil {
		c.notes = nopStore{}
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run processes events until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	c.ctx = ctx
	defer close(c.done)
	defer c.disarm()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

func (c *Controller) post(ev any) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Controller) HoldPressed() { c.post(triggerEvent{trigger: TriggerHold}) }
func (c *Controller) HoldReleased() { c.post(triggerEvent{trigger: TriggerHold, release: true}) }
func (c *Controller) ToggleTriggered() { c.post(triggerEvent{trigger: TriggerToggle}) }
func (c *Controller) NotesTriggered() { c.post(triggerEvent{trigger: TriggerNotes}) }

// HandleEvent accepts one classified worker line.
func (c *Controller) HandleEvent(ev protocol.Event) { c.post(workerEvent{ev}) }

// WorkerExited reports an unexpected worker exit.
func (c *Controller) WorkerExited(err error) { c.post(exitEvent{err}) }

// PreferencesChanged re-sends worker preferences after a settings change.
// Nothing is sent while the worker is not ready; Ready pushes them anyway.
func (c *Controller) PreferencesChanged() { c.post(prefsEvent{}) }

// Snapshot returns the current state. It returns the zero Snapshot once Run
// has exited.
func (c *Controller) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	c.post(snapshotEvent{reply})
	select {
	case s := <-reply:
		return s
	case <-c.done:
		return Snapshot{}
	}
}

func (c *Controller) handle(ev any) {
	switch ev := ev.(type) {
	case triggerEvent:
		if ev.release {
			c.onRelease()
		} else {
			c.onTrigger(ev.trigger)
		}
	case workerEvent:
		c.onWorker(ev.ev)
	case exitEvent:
		c.onWorkerLost(ev.err, false)
	case timeoutEvent:
		c.onTimeout(ev.gen)
	case transformedEvent:
		c.onTransformed(ev)
	case snapshotEvent:
		ev.reply <- c.snapshot()
	case prefsEvent:
		if c.ready {
			c.pushPreferences()
		}
	}
}

func (c *Controller) snapshot() Snapshot {
	s := Snapshot{
		State:        c.sess.State,
		Mode:         c.sess.Mode,
		SessionID:    c.sess.ID,
		Ready:        c.ready,
		TimerArmed:   c.timer != nil,
		Transforming: c.transforming,
		Cursor:       c.sess.text.Cursor(),
	}
	if p := c.sess.Pending; p != nil {
		cp := *p
		s.Pending = &cp
	}
	return s
}

func (c *Controller) setState(to State, cause string) {
	if c.sess.State == to {
		return
	}
	log.Transition(c.sess.State.String(), to.String(), cause)
	c.sess.State = to
}

func (c *Controller) onTrigger(t Trigger) {
	switch st := c.sess.State; {
	case st == Idle:
		if !c.ready {
			c.park(t)
			return
		}
		c.start(t.target(), c.settings.Settings().HoldKeys)
	case st == AwaitingModel:
		// Re-toggling before readiness undoes the request; a different
		// trigger replaces it.
		p := c.sess.Pending
		if t != TriggerHold && p != nil && p.Trigger == t {
			c.sess.Pending = nil
			c.setState(Idle, t.String()+"_cancelled")
			return
		}
		from := "none"
		if p != nil {
			from = p.Trigger.String()
		}
		log.Infof("pending %s replaced by %s", from, t)
		c.sess.Pending = &PendingAction{
			Trigger:     t,
			HoldKeys:    c.settings.Settings().HoldKeys,
			RequestedAt: time.Now(),
		}
	case st == t.target() && t != TriggerHold:
		c.stop(true, t.String())
	default:
		log.Infof("%s trigger ignored while %s", t, st)
	}
}

func (c *Controller) onRelease() {
	switch c.sess.State {
	case HoldRecording:
		c.stop(true, "hold_released")
	case AwaitingModel:
		if c.sess.Pending != nil && c.sess.Pending.Trigger == TriggerHold {
			c.sess.Pending = nil
			c.setState(Idle, "hold_cancelled")
		}
	}
}

// park defers t until the worker is ready.
func (c *Controller) park(t Trigger) {
	c.sess.Pending = &PendingAction{
		Trigger:     t,
		HoldKeys:    c.settings.Settings().HoldKeys,
		RequestedAt: time.Now(),
	}
	c.setState(AwaitingModel, t.String()+"_before_ready")
	c.ui.Notice(Notice{Kind: NoticeModelLoading, Text: "Speech model is loading; recording will start when it is ready"})
}

func (c *Controller) start(mode State, holdKeys string) {
	c.sess = Session{
		State:   c.sess.State,
		Mode:    mode,
		ID:      uuid.NewString(),
		Started: time.Now(),
		text:    &textdiff.Session{},
	}
	if mode == HoldRecording {
		c.worker.Send(protocol.SetMode(protocol.ModeHold))
		c.worker.Send(protocol.SetHoldKeys(holdKeys))
	} else {
		c.worker.Send(protocol.SetMode(protocol.ModeToggle))
	}
	c.worker.Send(protocol.Start())
	c.arm()
	c.setState(mode, "start")
	log.SessionStart(c.sess.ID, mode.String())
	if mode != NotesRecording {
		c.ui.RecordingStarted(mode)
	}
}

// stop ends the active recording. The session stays open for the trailing
// final when the worker is still alive.
func (c *Controller) stop(sendStop bool, reason string) {
	mode := c.sess.State
	if !mode.Recording() {
		return
	}
	c.disarm()
	if sendStop {
		c.worker.Send(protocol.Stop())
	}
	c.sess.awaitingFinal = true
	c.setState(Idle, reason)
	log.SessionEnd(c.sess.ID, mode.String(), reason, time.Since(c.sess.Started))
	if mode != NotesRecording {
		c.ui.RecordingStopped(mode)
	}
}

func (c *Controller) arm() {
	c.gen++
	gen := c.gen
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.failSafe, func() { c.post(timeoutEvent{gen}) })
}

func (c *Controller) disarm() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) onTimeout(gen uint64) {
	if gen != c.gen || !c.sess.State.Recording() {
		return
	}
	c.stop(true, "timeout")
	c.ui.Notice(Notice{Kind: NoticeTimeout, Text: "Recording stopped due to timeout"})
}

func (c *Controller) onWorker(ev protocol.Event) {
	switch ev.Type {
	case protocol.TypePartial:
		c.onPartial(ev.Text)
	case protocol.TypeFinal:
		c.onFinal(ev.Text)
	case protocol.TypeLifecycle:
		c.onLifecycle(ev)
	}
}

func (c *Controller) onLifecycle(ev protocol.Event) {
	switch ev.Kind {
	case protocol.LifecycleReady:
		c.onReady()
	case protocol.LifecycleModelNotReady:
		c.ready = false
		switch {
		case c.sess.State == AwaitingModel:
			c.sess.Pending = nil
			c.setState(Idle, "model_not_ready")
		case c.sess.State.Recording():
			c.stop(false, "model_not_ready")
			c.sess.awaitingFinal = false
		}
		c.ui.Notice(Notice{Kind: NoticeStillLoading, Text: "Speech model is still loading, try again in a moment"})
	case protocol.LifecycleError:
		c.onWorkerLost(nil, true)
	case protocol.LifecycleRelease:
		if c.sess.State == HoldRecording {
			c.stop(false, "worker_release")
		}
	default:
		log.Warnf("unknown worker event %q ignored", ev.Raw)
	}
}

func (c *Controller) onReady() {
	c.ready = true
	c.pushPreferences()
	c.ui.Notice(Notice{Kind: NoticeReady, Text: "Speech model ready"})

	if c.sess.State != AwaitingModel || c.sess.Pending == nil {
		return
	}
	p := *c.sess.Pending
	c.sess.Pending = nil
	c.setState(Idle, "ready")
	log.Infof("running %s deferred %s", p.Trigger, time.Since(p.RequestedAt).Round(time.Millisecond))
	c.start(p.Trigger.target(), p.HoldKeys)
}

func (c *Controller) pushPreferences() {
	s := c.settings.Settings()
	c.worker.Send(protocol.SetLowLatency(s.LowLatency))
	c.worker.Send(protocol.SetNoiseReduction(s.NoiseReduction))
	c.worker.Send(protocol.SetContinuousDictation(s.ContinuousDictation))
}

// onWorkerLost handles EVENT: ERROR (alive) and process exit (!alive).
func (c *Controller) onWorkerLost(err error, alive bool) {
	c.ready = false
	cause := "worker_exited"
	if alive {
		cause = "worker_error"
	}
	switch {
	case c.sess.State == AwaitingModel:
		c.sess.Pending = nil
		c.setState(Idle, cause)
	case c.sess.State.Recording():
		c.stop(alive, cause)
	}
	c.sess.awaitingFinal = false

	if alive {
		log.Error("speech worker reported an error")
		c.ui.Notice(Notice{Kind: NoticeWorkerError, Text: "Speech recognition error; recording stopped"})
		return
	}
	log.Errorf("speech worker exited: %v", err)
	c.ui.Notice(Notice{Kind: NoticeWorkerExited, Text: "Speech recognition process exited"})
}

func (c *Controller) onPartial(text string) {
	if !c.sess.acceptsPartial() {
		return
	}
	c.ui.Partial(text)
	c.emit(c.sess.text.Partial(text))
}

func (c *Controller) onFinal(text string) {
	if !c.sess.acceptsFinal() {
		log.Infof("final outside a session dropped (%d bytes)", len(text))
		return
	}
	s := c.settings.Settings()
	if c.sess.State.Recording() && s.ContinuousDictation {
		c.arm()
	}
	if c.sess.State == Idle {
		c.sess.awaitingFinal = false
	}

	req := transform.Request{Text: text, Style: s.Style, Category: s.Category}
	id, notes := c.sess.ID, c.sess.Mode == NotesRecording
	prev := c.lastJob
	done := make(chan struct{})
	c.lastJob = done
	c.transforming++
	ctx := c.ctx
	go func() {
		defer close(done)
		out := c.xf.Transform(ctx, req, s.LLMProcessing)
		if prev != nil {
			<-prev
		}
		c.post(transformedEvent{session: id, text: out, notes: notes})
	}()
}

func (c *Controller) onTransformed(ev transformedEvent) {
	c.transforming--
	if ev.session != c.sess.ID {
		log.Infof("transform result for stale session %s discarded", ev.session)
		return
	}
	c.ui.Final(ev.text)

	if ev.notes {
		c.sess.text.Reset()
		if err := c.notes.Append(ev.text); err != nil {
			log.Warnf("notes append failed: %v", err)
		}
		return
	}
	c.emit(c.sess.text.Reconcile(ev.text))
	if err := c.history.Record(ev.text); err != nil {
		log.Warnf("history record failed: %v", err)
	}
}

func (c *Controller) emit(delta string) {
	if delta == "" {
		return
	}
	c.ui.Defocus()
	if !c.sink.Emit(delta) {
		log.Warnf("text sink rejected %d bytes", len(delta))
	}
}
