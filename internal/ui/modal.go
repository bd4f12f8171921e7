package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Modal is the interface for modal dialogs.
// The Update method returns the updated modal, a command, and a bool indicating if the modal should close.
type Modal interface {
	Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool)
	View(theme Theme, width, height int) string
}

// promptMode is what the URL prompt does with the entered href.
type promptMode int

const (
	promptPush promptMode = iota
	promptReplace
	promptPrefetch
)

func (p promptMode) String() string {
	switch p {
	case promptReplace:
		return "Replace"
	case promptPrefetch:
		return "Prefetch"
	default:
		return "Push"
	}
}

// promptSubmitMsg carries a confirmed href back to the model.
type promptSubmitMsg struct {
	mode promptMode
	href string
}

// urlPrompt asks for an href, absolute or relative to the current URL.
type urlPrompt struct {
	mode  promptMode
	input textinput.Model
}

func newURLPrompt(mode promptMode, current string) *urlPrompt {
	in := textinput.New()
	in.Prompt = "› "
	in.Placeholder = "/path?query"
	in.CharLimit = 2048
	in.SetValue(current)
	in.CursorEnd()
	in.Focus()
	return &urlPrompt{mode: mode, input: in}
}

func (p *urlPrompt) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(km, keys.Escape):
			return p, nil, true
		case key.Matches(km, keys.Confirm):
			href := strings.TrimSpace(p.input.Value())
			if href == "" {
				return p, nil, true
			}
			mode := p.mode
			return p, func() tea.Msg { return promptSubmitMsg{mode: mode, href: href} }, true
		}
	}
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return p, cmd, false
}

func (p *urlPrompt) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	boxWidth := min(max(width-10, 20), 72)

	var b strings.Builder
	b.WriteString(styles.AccentText.Bold(true).Render(p.mode.String() + " URL"))
	b.WriteString("\n\n")
	p.input.Width = boxWidth - 8
	b.WriteString(p.input.View())
	b.WriteString("\n\n")
	b.WriteString(styles.FaintText.Render("enter confirm · esc cancel"))

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(theme.BorderFocus)).
		Padding(1, 2).
		Width(boxWidth).
		Render(b.String())

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(theme.Background)),
	)
}
