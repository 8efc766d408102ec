package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/buildlink-za/sitevoice/pkg/cli"
	"github.com/buildlink-za/sitevoice/pkg/live"
	"github.com/buildlink-za/sitevoice/pkg/tool"
)

type eventKind int

const (
	eventActivity eventKind = iota
	eventTranscript
	eventAlert
	eventError
)

// sessionEvent carries copilot callbacks into the bubbletea loop.
type sessionEvent struct {
	kind     eventKind
	activity live.Activity
	entry    live.Entry
	alert    tool.Alert
	err      error
}

// SessionEventMsg wraps session events for bubbletea.
type SessionEventMsg sessionEvent

// LogMsg wraps log lines for bubbletea.
type LogMsg string

// TickMsg is sent periodically to refresh the UI.
type TickMsg time.Time

// sessionModel is the TUI model for a live session.
type sessionModel struct {
	copilot     *live.Copilot
	contextName string
	events      chan sessionEvent
	logWriter   *cli.LogWriter

	startedAt time.Time

	transcript []string
	alerts     []string
	logContent []string

	videoOn  bool
	activity live.Activity
	lastErr  error

	styles cli.Styles
	width  int
	height int

	quitting bool
}

func newSessionModel(copilot *live.Copilot, contextName string, events chan sessionEvent, logWriter *cli.LogWriter) sessionModel {
	return sessionModel{
		copilot:     copilot,
		contextName: contextName,
		events:      events,
		logWriter:   logWriter,
		startedAt:   time.Now(),
		transcript:  []string{},
		alerts:      []string{},
		logContent:  []string{},
		activity:    live.ActivityListening,
		styles:      cli.NewStyles(cli.DefaultTheme),
	}
}

// Init starts the event and log listeners.
func (m sessionModel) Init() tea.Cmd {
	return tea.Batch(
		m.listenEvents(),
		m.listenLogs(),
		m.tick(),
	)
}

func (m sessionModel) listenEvents() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-m.events
		if !ok {
			return nil
		}
		return SessionEventMsg(event)
	}
}

func (m sessionModel) listenLogs() tea.Cmd {
	if m.logWriter == nil {
		return nil
	}
	return func() tea.Msg {
		line, ok := <-m.logWriter.Channel()
		if !ok {
			return nil
		}
		return LogMsg(line)
	}
}

func (m sessionModel) tick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Update handles messages.
func (m sessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyRunes:
			if len(msg.Runes) != 1 {
				break
			}
			switch msg.Runes[0] {
			case 'q':
				m.quitting = true
				return m, tea.Quit
			case 'v':
				on, err := m.copilot.ToggleVideo(context.Background())
				if err != nil {
					m.addAlert(fmt.Sprintf("video: %v", err))
					break
				}
				m.videoOn = on
				if on {
					m.addAlert("video on")
				} else {
					m.addAlert("video off")
				}
			case 'c':
				m.copilot.ClearTranscript()
				m.transcript = m.transcript[:0]
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case SessionEventMsg:
		m.handleEvent(sessionEvent(msg))
		cmds = append(cmds, m.listenEvents())

	case LogMsg:
		m.logContent = appendCapped(m.logContent, string(msg))
		cmds = append(cmds, m.listenLogs())

	case TickMsg:
		cmds = append(cmds, m.tick())
	}

	return m, tea.Batch(cmds...)
}

func appendCapped(lines []string, s string) []string {
	lines = append(lines, s)
	if len(lines) > 50 {
		lines = lines[len(lines)-50:]
	}
	return lines
}

func (m *sessionModel) addAlert(s string) {
	ts := time.Now().Format("15:04:05")
	m.alerts = appendCapped(m.alerts, fmt.Sprintf("[%s] %s", ts, s))
}

func (m *sessionModel) handleEvent(e sessionEvent) {
	switch e.kind {
	case eventActivity:
		m.activity = e.activity
	case eventTranscript:
		ts := e.entry.At.Time().Format("15:04:05")
		line := fmt.Sprintf("[%s] %s: %s", ts, e.entry.Speaker, e.entry.Text)
		m.transcript = appendCapped(m.transcript, line)
	case eventAlert:
		label := e.alert.Title
		if e.alert.Body != "" {
			label += ": " + e.alert.Body
		}
		m.addAlert(label)
	case eventError:
		m.lastErr = e.err
		m.addAlert(fmt.Sprintf("session ended: %v", e.err))
	}
}

// View renders the UI.
func (m sessionModel) View() string {
	if m.quitting {
		return "Session ended.\n"
	}

	status := strings.ToUpper(m.activity.String())
	if m.videoOn {
		status += " +VIDEO"
	}
	if m.lastErr != nil {
		status = "ERROR"
	}
	status += " " + cli.FormatDuration(int(time.Since(m.startedAt).Milliseconds()))

	frame := cli.Frame{
		Styles: m.styles,
		Title:  "SITEVOICE // " + m.contextName,
		Status: status,
		Sections: []cli.Section{
			{Label: "Transcript", Content: func() []string { return m.transcript }},
			{Label: "Alerts", Content: func() []string { return m.alerts }},
			{Label: "System Log", Content: func() []string { return m.logContent }},
		},
		Help: "q=quit  v=video  c=clear transcript",
	}

	return frame.Render(m.width, m.height)
}
