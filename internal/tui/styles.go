// Package tui renders session state in the terminal: the one-shot
// status summary and the live countdown view.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/enough/enough/internal/usecase/engine"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ade80")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e4e4ec")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#505868"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f59e0b")).
			Bold(true)

	expiredStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#b45555")).
			Bold(true)

	barFilledStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ade80"))

	barEmptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1e1e2a"))
)

// formatClock renders a duration as h:mm:ss, dropping the hour part
// when zero.
func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// progressBar renders elapsed progress as a fixed-width bar.
func progressBar(done float64, width int) string {
	if done < 0 {
		done = 0
	}
	if done > 1 {
		done = 1
	}
	filled := int(done * float64(width))
	return barFilledStyle.Render(strings.Repeat("█", filled)) +
		barEmptyStyle.Render(strings.Repeat("░", width-filled))
}

func targetsLine(rep engine.StatusReport) string {
	parts := make([]string, 0, 2)
	if rep.Websites > 0 {
		parts = append(parts, fmt.Sprintf("%d websites", rep.Websites))
	}
	if rep.Applications > 0 {
		parts = append(parts, fmt.Sprintf("%d apps", rep.Applications))
	}
	return strings.Join(parts, ", ")
}

// RenderStatus is the plain, non-interactive status summary.
func RenderStatus(rep engine.StatusReport) string {
	var b strings.Builder
	switch rep.Status {
	case engine.StatusNone:
		b.WriteString(dimStyle.Render("no active session") + "\n")
		if rep.CorruptState {
			b.WriteString(warnStyle.Render("warning:") + " " +
				dimStyle.Render("session state file is unreadable; blocks may still be applied") + "\n")
		}
	case engine.StatusExpired:
		fmt.Fprintf(&b, "%s %s\n",
			expiredStyle.Render("expired"),
			dimStyle.Render("profile "+rep.ProfileName+", waiting for the watchdog to lift blocks"))
	case engine.StatusActive:
		fmt.Fprintf(&b, "%s  %s\n",
			titleStyle.Render(rep.ProfileName),
			valueStyle.Render(formatClock(rep.Remaining))+dimStyle.Render(" remaining"))
		fmt.Fprintf(&b, "%s %s\n",
			labelStyle.Render("until"),
			dimStyle.Render(rep.ExpiresAt.Local().Format("15:04:05")))
		if tl := targetsLine(rep); tl != "" {
			fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("blocking"), dimStyle.Render(tl))
		}
	}
	return b.String()
}
