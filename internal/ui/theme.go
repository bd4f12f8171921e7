package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines colors and styles for the UI.
type Theme struct {
	Name string

	Background  string // Outermost background
	Surface     string // Header and command bar
	BorderFocus string // Modal border

	Text    string
	Muted   string
	Faint   string
	Accent  string
	Success string
	Warning string
	Danger  string
	Info    string

	// StatusColors maps frame kinds, cache statuses and history markers
	// to badge colors.
	StatusColors map[string]string
}

// statusPalette assigns badge colors to the router outcomes. Ready cache
// nodes share the render color.
type statusPalette struct {
	render, suspend, patch, hard string
	fetching, lazy, prefetched   string
	external                     string
}

func (p statusPalette) colors() map[string]string {
	return map[string]string{
		"render":        p.render,
		"suspend":       p.suspend,
		"server-patch":  p.patch,
		"hard-navigate": p.hard,
		"ready":         p.render,
		"fetching":      p.fetching,
		"lazy":          p.lazy,
		"prefetched":    p.prefetched,
		"external":      p.external,
	}
}

// Styles returns Lipgloss styles for this theme.
func (t Theme) Styles() Styles {
	fg := func(color string) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
	}
	return Styles{
		Text:        fg(t.Text),
		MutedText:   fg(t.Muted),
		FaintText:   fg(t.Faint),
		AccentText:  fg(t.Accent),
		SuccessText: fg(t.Success).Bold(true),
		WarningText: fg(t.Warning),
		DangerText:  fg(t.Danger).Bold(true),
		InfoText:    fg(t.Info),

		Header: fg(t.Text).Background(lipgloss.Color(t.Surface)).Padding(0, 1),
		Logo:   fg(t.Warning).Bold(true),

		statusColors: t.StatusColors,
		background:   t.Background,
		muted:        t.Muted,
	}
}

// Styles contains pre-built Lipgloss styles for the theme.
type Styles struct {
	Text        lipgloss.Style
	MutedText   lipgloss.Style
	FaintText   lipgloss.Style
	AccentText  lipgloss.Style
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	DangerText  lipgloss.Style
	InfoText    lipgloss.Style

	Header lipgloss.Style
	Logo   lipgloss.Style

	statusColors map[string]string
	background   string
	muted        string
}

// StatusStyle returns a badge style for a frame kind or cache status.
func (s Styles) StatusStyle(status string) lipgloss.Style {
	color := s.statusColors[status]
	if color == "" {
		color = s.muted
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(s.background)).
		Background(lipgloss.Color(color)).
		Padding(0, 1)
}

// WithBackground returns a copy of Styles whose styles all paint bgColor,
// so text on the header bars never falls back to the terminal background.
func (s Styles) WithBackground(bgColor string) Styles {
	bg := lipgloss.Color(bgColor)
	out := s
	for _, st := range []*lipgloss.Style{
		&out.Text, &out.MutedText, &out.FaintText, &out.AccentText,
		&out.SuccessText, &out.WarningText, &out.DangerText, &out.InfoText,
		&out.Header, &out.Logo,
	} {
		*st = st.Background(bg)
	}
	return out
}

var themes = map[string]Theme{
	"Nightfox": nightfoxTheme(),
	"Kanagawa": kanagawaTheme(),
	"Slate":    slateTheme(),
}

var themeOrder = []string{"Nightfox", "Kanagawa", "Slate"}

// GetTheme returns a theme by name, falling back to Nightfox.
func GetTheme(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return themes["Nightfox"]
}

// NextTheme returns the next theme name in the cycle.
func NextTheme(current string) string {
	for i, name := range themeOrder {
		if name == current {
			return themeOrder[(i+1)%len(themeOrder)]
		}
	}
	return themeOrder[0]
}

// ThemeNames returns available theme names.
func ThemeNames() []string {
	return themeOrder
}

// https://github.com/EdenEast/nightfox.nvim
func nightfoxTheme() Theme {
	return Theme{
		Name:        "Nightfox",
		Background:  "#131a24", // bg0
		Surface:     "#192330", // bg1
		BorderFocus: "#719cd6", // blue

		Text:    "#cdcecf", // fg1
		Muted:   "#738091", // comment
		Faint:   "#71839b", // fg3
		Accent:  "#719cd6", // blue
		Success: "#81b29a", // green
		Warning: "#dbc074", // yellow
		Danger:  "#c94f6d", // red
		Info:    "#63cdcf", // cyan

		StatusColors: statusPalette{
			render:     "#81b29a",
			suspend:    "#9d79d6",
			patch:      "#f4a261",
			hard:       "#c94f6d",
			fetching:   "#719cd6",
			lazy:       "#738091",
			prefetched: "#63cdcf",
			external:   "#dbc074",
		}.colors(),
	}
}

// https://github.com/rebelot/kanagawa.nvim
func kanagawaTheme() Theme {
	return Theme{
		Name:        "Kanagawa",
		Background:  "#16161D", // sumiInk0
		Surface:     "#1F1F28", // sumiInk3
		BorderFocus: "#7E9CD8", // crystalBlue

		Text:    "#DCD7BA", // fujiWhite
		Muted:   "#C8C093", // oldWhite
		Faint:   "#727169", // fujiGray
		Accent:  "#7E9CD8", // crystalBlue
		Success: "#98BB6C", // springGreen
		Warning: "#E6C384", // carpYellow
		Danger:  "#E46876", // waveRed
		Info:    "#7FB4CA", // springBlue

		StatusColors: statusPalette{
			render:     "#98BB6C",
			suspend:    "#957FB8",
			patch:      "#FFA066",
			hard:       "#E46876",
			fetching:   "#7E9CD8",
			lazy:       "#727169",
			prefetched: "#7FB4CA",
			external:   "#E6C384",
		}.colors(),
	}
}

// Tailwind slate and sky: https://tailwindcss.com/docs/colors
func slateTheme() Theme {
	return Theme{
		Name:        "Slate",
		Background:  "#020617", // slate-950
		Surface:     "#0f172a", // slate-900
		BorderFocus: "#38bdf8", // sky-400

		Text:    "#f1f5f9", // slate-100
		Muted:   "#94a3b8", // slate-400
		Faint:   "#64748b", // slate-500
		Accent:  "#38bdf8", // sky-400
		Success: "#22c55e", // green-500
		Warning: "#f59e0b", // amber-500
		Danger:  "#ef4444", // red-500
		Info:    "#06b6d4", // cyan-500

		StatusColors: statusPalette{
			render:     "#16a34a",
			suspend:    "#06b6d4",
			patch:      "#f59e0b",
			hard:       "#dc2626",
			fetching:   "#0ea5e9",
			lazy:       "#64748b",
			prefetched: "#38bdf8",
			external:   "#fb923c",
		}.colors(),
	}
}
