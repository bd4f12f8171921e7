package ui

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// renderHeader renders the status line: current URL, store counters and the
// last action or error.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	sep := bg.Spaces(2)
	compact := m.width < LayoutCompactWidth
	snap := m.snapshot

	parts := []string{
		bg.Render("wayfinder", styles.Logo),
		bg.Render(truncateMiddle(snap.Router.CanonicalURL, 48), styles.Text.Bold(true)),
	}

	switch {
	case snap.IsOffline():
		parts = append(parts, bg.Render("OFFLINE", styles.DangerText))
	case snap.InFlight > 0:
		parts = append(parts, bg.Render("loading", styles.WarningText))
	case m.settling:
		parts = append(parts, bg.Render("settling", styles.InfoText))
	}

	if !compact {
		parts = append(parts,
			bg.Render("seq", styles.FaintText)+bg.Space()+bg.Render(strconv.FormatUint(snap.Seq, 10), styles.MutedText))
		if snap.LastAction != "" {
			parts = append(parts,
				bg.Render("last", styles.FaintText)+bg.Space()+bg.Render(snap.LastAction, styles.MutedText))
		}
		if m.config != nil {
			parts = append(parts, bg.Render(truncateMiddle(m.config.ServerURL, 32), styles.FaintText))
		}
	}

	if snap.LastError != nil {
		parts = append(parts, bg.Render(classifyError(snap.LastError), styles.DangerText))
	} else if m.status != "" {
		style := styles.SuccessText
		if m.statusErr {
			style = styles.DangerText
		}
		parts = append(parts, bg.Render(truncate(m.status, 40), style))
	}

	if !m.lastUpdated.IsZero() {
		parts = append(parts, bg.Render(m.lastUpdated.Format("15:04:05"), styles.FaintText))
	}

	return lipgloss.NewStyle().
		Background(lipgloss.Color(m.theme.Surface)).
		Foreground(lipgloss.Color(m.theme.Text)).
		Width(m.width).
		Render(bg.Join(parts, sep))
}

// classifyError shortens transport failures for the header.
func classifyError(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return "server unreachable"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	default:
		return truncate(err.Error(), 40)
	}
}

// renderCommandBar renders the key hints for the current view.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	type cmd struct{ key, desc string }
	commands := []cmd{
		{"o", "Push"},
		{"O", "Replace"},
		{"p", "Prefetch"},
		{"r", "Refresh"},
		{"b/f", "Back/Fwd"},
	}
	switch m.currentView {
	case ViewLogs:
		label := "Pause"
		if !m.follow {
			label = "Follow"
		}
		commands = append(commands, cmd{"Space", label})
	default:
		commands = append(commands, cmd{"j/k", "Scroll"})
	}
	commands = append(commands, cmd{"1-4", m.currentView.String()}, cmd{"?", "More"})

	colon := bg.Sep(":")
	segments := make([]string, 0, len(commands)+1)
	for _, c := range commands {
		segments = append(segments,
			bg.Render(c.key, styles.AccentText)+colon+bg.Render(c.desc, styles.MutedText))
	}
	segments = append(segments,
		bg.Render("T", styles.AccentText)+colon+bg.Render(m.theme.Name, styles.FaintText))

	return styles.Header.Width(m.width).Render(strings.Join(segments, bg.Spaces(2)))
}

// truncate truncates a string to max length with ellipsis.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// truncateMiddle keeps both ends of s, favoring the end.
func truncateMiddle(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	if max <= 5 {
		return s[:max]
	}
	endLen := (max - 3) * 2 / 3
	startLen := max - 3 - endLen
	return s[:startLen] + "..." + s[len(s)-endLen:]
}

func humanizeAge(d time.Duration) string {
	d = d.Truncate(time.Second)
	if d < time.Minute {
		return d.String()
	}
	return d.Truncate(time.Minute).String()
}
