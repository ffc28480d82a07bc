package session

import (
	"context"

	"murmur/protocol"
	"murmur/transform"
)

// Worker queues commands for the speech worker. Sends are fire-and-forget.
type Worker interface {
	Send(cmd protocol.Command)
}

// Sink delivers text to the foreground application. Emit reports whether the
// text was scheduled.
type Sink interface {
	Emit(text string) bool
}

// Transformer rewrites final transcripts. It never fails; secondary selects
// whether the slow stage may run.
type Transformer interface {
	Transform(ctx context.Context, req transform.Request, secondary bool) string
}

// Settings is the subset of user preferences read at each decision point.
type Settings struct {
	ContinuousDictation bool
	Style               transform.Style
	Category            transform.Category
	LLMProcessing       bool
	LowLatency          bool
	NoiseReduction      bool
	HoldKeys            string
}

type SettingsSource interface {
	Settings() Settings
}

// StaticSettings is a SettingsSource that never changes.
type StaticSettings Settings

func (s StaticSettings) Settings() Settings { return Settings(s) }

type NoticeKind int

const (
	NoticeModelLoading NoticeKind = iota
	NoticeStillLoading
	NoticeTimeout
	NoticeWorkerError
	NoticeWorkerExited
	NoticeReady
)

var noticeNames = [...]string{
	NoticeModelLoading: "model_loading",
	NoticeStillLoading: "still_loading",
	NoticeTimeout:      "timeout",
	NoticeWorkerError:  "worker_error",
	NoticeWorkerExited: "worker_exited",
	NoticeReady:        "ready",
}

func (k NoticeKind) String() string {
	if int(k) < len(noticeNames) {
		return noticeNames[k]
	}
	return "unknown"
}

// Notice is a user-visible status message.
type Notice struct {
	Kind NoticeKind
	Text string
}

// UI receives status and transcript notifications. Calls come from the
// controller goroutine and must not block for long.
type UI interface {
	RecordingStarted(mode State)
	RecordingStopped(mode State)
	Partial(text string)
	Final(text string)
	Notice(n Notice)
	// Defocus hands focus back to the target application before text is
	// emitted.
	Defocus()
}

// History stores delivered final transcripts.
type History interface {
	Record(text string) error
}

// Notes stores finals captured in notes mode.
type Notes interface {
	Append(text string) error
}

type nopUI struct{}

func (nopUI) RecordingStarted(State) {}
func (nopUI) RecordingStopped(State) {}
func (nopUI) Partial(string) {}
func (nopUI) Final(string) {}
func (nopUI) Notice(Notice) {}
func (nopUI) Defocus() {}

type nopStore struct{}

func (nopStore) Record(string) error { return nil }
func (nopStore) Append(string) error { return nil }
