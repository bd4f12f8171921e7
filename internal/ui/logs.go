package ui

import (
	"regexp"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/wayfinder/internal/logtail"
)

type logsMsg struct {
	lines []string
	err   error
}

// refreshLogsCmd reads and formats the tail of the client log.
func refreshLogsCmd(path string) tea.Cmd {
	if path == "" {
		return nil
	}
	return func() tea.Msg {
		lines, err := logtail.Read(path, LogTailLines)
		if err != nil {
			return logsMsg{err: err}
		}
		return logsMsg{lines: logtail.FormatLines(lines)}
	}
}

var (
	timeRe  = regexp.MustCompile(`^(\d{2}:\d{2}:\d{2}) `)
	levelRe = regexp.MustCompile(`^(DEBUG|INFO|WARN|ERROR)\b`)
)

// renderLogs colorizes the formatted log lines.
func (m Model) renderLogs() string {
	styles := m.theme.Styles()
	if m.logErr != nil {
		return styles.DangerText.Render("Cannot read log: " + m.logErr.Error())
	}
	if len(m.logs) == 0 {
		return styles.MutedText.Render("No log output yet")
	}
	out := make([]string, len(m.logs))
	for i, line := range m.logs {
		out[i] = colorizeLogLine(line, styles)
	}
	return strings.Join(out, "\n")
}

func colorizeLogLine(line string, styles Styles) string {
	var b strings.Builder
	rest := line
	if loc := timeRe.FindStringSubmatchIndex(rest); loc != nil {
		b.WriteString(styles.FaintText.Render(rest[loc[2]:loc[3]]))
		b.WriteString(" ")
		rest = rest[loc[1]:]
	}
	if loc := levelRe.FindStringSubmatchIndex(rest); loc != nil {
		level := rest[loc[2]:loc[3]]
		b.WriteString(levelStyle(level, styles).Bold(true).Render(level))
		rest = rest[loc[1]:]
	}
	b.WriteString(styles.Text.Render(rest))
	return b.String()
}

func levelStyle(level string, styles Styles) lipgloss.Style {
	switch level {
	case "INFO":
		return styles.SuccessText
	case "WARN":
		return styles.WarningText
	case "ERROR":
		return styles.DangerText
	case "DEBUG":
		return styles.InfoText
	default:
		return styles.Text
	}
}
