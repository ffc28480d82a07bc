package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"murmur/session"
)

// TUI message types
type RecordingStartMsg struct{ State session.State }
type RecordingStopMsg struct{}
type PartialMsg struct{ Text string }
type FinalMsg struct{ Text string }
type NoticeMsg struct{ Notice session.Notice }
type tickMsg time.Time

const maxFinals = 5

type tuiModel struct {
	state     session.State
	recording bool
	started   time.Time
	elapsed   time.Duration
	frame     int
	width     int
	partial   string
	finals    []string // newest last
	notice    session.Notice
	help      []string // "Ctrl+Shift+Space hold to talk"
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

var (
	recStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	notesStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	partialStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	finalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
)

func NewTUIProgram(help []string) *tea.Program {
	return tea.NewProgram(tuiModel{help: help}, tea.WithAltScreen())
}

// tuiSend delivers msg to the running TUI, if any.
func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case tickMsg:
		m.frame++
		if m.recording {
			m.elapsed = time.Time(msg).Sub(m.started)
		}
		return m, tuiTick()

	case RecordingStartMsg:
		m.state = msg.State
		m.recording = true
		m.started = time.Now()
		m.elapsed = 0
		m.partial = ""

	case RecordingStopMsg:
		m.state = session.Idle
		m.recording = false

	case PartialMsg:
		m.partial = msg.Text

	case FinalMsg:
		m.partial = ""
		m.finals = append(m.finals, msg.Text)
		if len(m.finals) > maxFinals {
			m.finals = m.finals[len(m.finals)-maxFinals:]
		}

	case NoticeMsg:
		m.notice = msg.Notice
	}
	return m, nil
}

func (m tuiModel) statusLine() string {
	if !m.recording {
		return idleStyle.Render("○ STANDBY")
	}
	dot := "●"
	if m.frame%10 >= 5 {
		dot = " "
	}
	label := fmt.Sprintf("%s REC %s %.1fs", dot, m.state, m.elapsed.Seconds())
	if m.state == session.NotesRecording {
		return notesStyle.Render(label)
	}
	return recStyle.Render(label)
}

func (m tuiModel) View() string {
	width := max(m.width-2, 20)

	var b strings.Builder
	b.WriteString(m.statusLine() + "\n")
	if m.notice.Text != "" {
		style := warnStyle
		if m.notice.Kind == session.NoticeReady {
			style = okStyle
		}
		b.WriteString(style.Render(m.notice.Text) + "\n")
	}
	b.WriteString("\n")

	if m.partial != "" {
		for _, line := range wrapText(m.partial, width) {
			b.WriteString(partialStyle.Render(line) + "\n")
		}
		b.WriteString("\n")
	}

	if len(m.finals) == 0 {
		b.WriteString(idleStyle.Render("No transcriptions yet") + "\n")
	} else {
		b.WriteString(titleStyle.Render("Recent") + "\n\n")
		for i := len(m.finals) - 1; i >= 0; i-- {
			for _, line := range wrapText(m.finals[i], width) {
				b.WriteString(finalStyle.Render(line) + "\n")
			}
		}
	}

	b.WriteString("\n")
	for _, h := range m.help {
		b.WriteString(helpStyle.Render(h) + "\n")
	}
	b.WriteString(helpStyle.Render("murmur " + version + "  (q to quit)"))
	return b.String()
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
