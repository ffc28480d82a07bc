package main

import (
	"github.com/gen2brain/beeep"

	"murmur/beep"
	"murmur/log"
	"murmur/session"
)

// desktopUI fans session notifications out to the TUI, beeps and desktop
// notices.
type desktopUI struct {
	notify bool
}

func (u desktopUI) RecordingStarted(s session.State) {
	beep.Play(beep.Start)
	tuiSend(RecordingStartMsg{State: s})
}

func (u desktopUI) RecordingStopped(session.State) {
	beep.Play(beep.Stop)
	tuiSend(RecordingStopMsg{})
}

func (u desktopUI) Partial(text string) { tuiSend(PartialMsg{Text: text}) }

func (u desktopUI) Final(text string) { tuiSend(FinalMsg{Text: text}) }

func (u desktopUI) Notice(n session.Notice) {
	log.Infof("notice %s: %s", n.Kind, n.Text)
	tuiSend(NoticeMsg{Notice: n})
	switch n.Kind {
	case session.NoticeTimeout, session.NoticeWorkerError, session.NoticeWorkerExited, session.NoticeStillLoading:
		beep.Play(beep.Error)
	case session.NoticeReady:
		beep.Play(beep.Ready)
	}
	if !u.notify {
		return
	}
	if err := beeep.Notify("murmur", n.Text, ""); err != nil {
		log.Warnf("desktop notice: %v", err)
	}
}

// Defocus is a no-op: the terminal never holds focus over the target app.
func (u desktopUI) Defocus() {}

type historyLog struct{}

func (historyLog) Record(text string) error { return log.HistoryText(text) }

type notesLog struct{}

func (notesLog) Append(text string) error { return log.NoteText(text) }
