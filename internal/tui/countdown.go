package tui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/enough/enough/internal/usecase/engine"
)

// pollInterval is how often the countdown re-reads session state.
const pollInterval = time.Second

type pollTickMsg time.Time

func pollTickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return pollTickMsg(t)
	})
}

type statusMsg struct {
	rep engine.StatusReport
	err error
}

// StatusFunc reads the current session state. Satisfied by
// (*engine.Engine).Status.
type StatusFunc func(ctx context.Context) (engine.StatusReport, error)

// CountdownModel is the live `status --watch` view. It polls session
// state once a second and exits on its own once the session is gone.
type CountdownModel struct {
	status StatusFunc
	rep    engine.StatusReport
	err    string
	loaded bool
	width  int
}

func NewCountdown(status StatusFunc) CountdownModel {
	return CountdownModel{status: status}
}

func (m CountdownModel) Init() tea.Cmd {
	return m.load()
}

func (m CountdownModel) load() tea.Cmd {
	status := m.status
	return func() tea.Msg {
		rep, err := status(context.Background())
		return statusMsg{rep: rep, err: err}
	}
}

func (m CountdownModel) Update(msg tea.Msg) (CountdownModel, tea.Cmd) {
	switch msg := msg.(type) {
	case statusMsg:
		m.loaded = true
		if msg.err != nil {
			m.err = msg.err.Error()
			return m, pollTickCmd()
		}
		m.err = ""
		m.rep = msg.rep
		if m.rep.Status == engine.StatusNone {
			return m, tea.Quit
		}
		return m, pollTickCmd()

	case pollTickMsg:
		return m, m.load()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
	}
	return m, nil
}

// barWidth fits the progress bar to the terminal, with a sane default
// before the first WindowSizeMsg arrives.
func (m CountdownModel) barWidth() int {
	if m.width == 0 {
		return 40
	}
	w := m.width - 6
	if w < 10 {
		return 10
	}
	if w > 60 {
		return 60
	}
	return w
}

func (m CountdownModel) View() string {
	if !m.loaded {
		return " " + dimStyle.Render("reading session state...") + "\n"
	}
	if m.err != "" {
		return " " + expiredStyle.Render("error: ") + dimStyle.Render(m.err) + "\n"
	}

	var b strings.Builder
	b.WriteString("\n  " + titleStyle.Render("enough") + "  " +
		dimStyle.Render("profile "+m.rep.ProfileName) + "\n\n")

	switch m.rep.Status {
	case engine.StatusExpired:
		b.WriteString("  " + expiredStyle.Render("time is up") + "  " +
			dimStyle.Render("waiting for the watchdog to lift blocks") + "\n")
	default:
		b.WriteString("  " + valueStyle.Render(formatClock(m.rep.Remaining)) +
			dimStyle.Render(" remaining") + "\n\n")

		total := m.rep.ExpiresAt.Sub(m.rep.StartedAt)
		done := 0.0
		if total > 0 {
			done = 1 - float64(m.rep.Remaining)/float64(total)
		}
		b.WriteString("  " + progressBar(done, m.barWidth()) + "\n\n")

		if tl := targetsLine(m.rep); tl != "" {
			b.WriteString("  " + labelStyle.Render("blocking") + " " + dimStyle.Render(tl) + "\n")
		}
	}

	b.WriteString("\n  " + labelStyle.Render("q") + " " + dimStyle.Render("quit") + "\n")
	return b.String()
}

// RunCountdown runs the countdown until the session ends or the user
// quits.
func RunCountdown(status StatusFunc) error {
	_, err := tea.NewProgram(countdownProgram{CountdownModel: NewCountdown(status)}).Run()
	return err
}

// countdownProgram adapts CountdownModel's typed Update to tea.Model.
type countdownProgram struct {
	CountdownModel
}

func (p countdownProgram) Init() tea.Cmd {
	return p.CountdownModel.Init()
}

func (p countdownProgram) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	m, cmd := p.CountdownModel.Update(msg)
	return countdownProgram{CountdownModel: m}, cmd
}

func (p countdownProgram) View() string {
	return p.CountdownModel.View()
}
