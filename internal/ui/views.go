package ui

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/wayfinder/internal/cache"
	"github.com/five82/wayfinder/internal/flight"
	"github.com/five82/wayfinder/internal/layout"
	"github.com/five82/wayfinder/internal/router"
	"github.com/five82/wayfinder/internal/routerstate"
	"github.com/five82/wayfinder/internal/state"
)

// frameLine is one row of the page view.
type frameLine struct {
	depth  int
	label  string
	kind   string
	detail string
}

// frameLines flattens a resolved page depth first.
func frameLines(root layout.Frame) []frameLine {
	var lines []frameLine
	var walk func(f layout.Frame, depth int)
	walk = func(f layout.Frame, depth int) {
		lines = append(lines, frameLine{
			depth:  depth,
			label:  frameLabel(f, depth),
			kind:   f.Kind.String(),
			detail: describePayload(f.Payload),
		})
		for _, child := range f.Children {
			walk(child, depth+1)
		}
	}
	walk(root, 0)
	return lines
}

func frameLabel(f layout.Frame, depth int) string {
	if depth == 0 {
		return "<root>"
	}
	seg := f.Segment.String()
	if seg == "" {
		seg = `""`
	}
	return "@" + f.Slot + " " + seg
}

// describePayload summarizes a descriptor payload in one line.
func describePayload(p flight.Payload) string {
	if len(p) == 0 {
		return ""
	}
	d, err := flight.DecodeDescriptor(p)
	if err != nil {
		return fmt.Sprintf("(%d bytes)", len(p))
	}
	var parts []string
	add := func(name, value string) {
		if value != "" {
			parts = append(parts, name+"="+value)
		}
	}
	add("layout", d.Layout)
	add("template", d.Template)
	add("page", d.Page)
	add("loading", d.Loading)
	add("error", d.Error)
	if len(d.Params) > 0 {
		keys := make([]string, 0, len(d.Params))
		for k := range d.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+":"+d.Params[k])
		}
		add("params", strings.Join(pairs, ","))
	}
	add("search", d.Search)
	if len(d.Data) > 0 {
		add("data", compactJSON(d.Data))
	}
	return strings.Join(parts, " ")
}

func compactJSON(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	if obj, ok := v.(map[string]any); ok {
		if name, ok := obj["loader"].(string); ok {
			return name
		}
	}
	out, err := json.Marshal(v)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

// renderPage renders the frames of the resolved page plus any slot errors.
func (m Model) renderPage() string {
	styles := m.theme.Styles()
	var b strings.Builder

	if m.page.Root.Payload == nil && len(m.page.Root.Children) == 0 {
		b.WriteString(styles.MutedText.Render("Nothing rendered yet"))
		return b.String()
	}

	labelWidth := 0
	lines := frameLines(m.page.Root)
	for _, l := range lines {
		labelWidth = max(labelWidth, 2*l.depth+lipgloss.Width(l.label))
	}
	for _, l := range lines {
		indent := strings.Repeat("  ", l.depth)
		label := indent + l.label
		pad := strings.Repeat(" ", labelWidth-lipgloss.Width(label)+2)
		b.WriteString(styles.Text.Render(label))
		b.WriteString(pad)
		b.WriteString(styles.StatusStyle(l.kind).Render(l.kind))
		if l.detail != "" {
			b.WriteString(" ")
			b.WriteString(styles.MutedText.Render(truncate(l.detail, max(m.width-labelWidth-20, 20))))
		}
		b.WriteString("\n")
	}

	if m.page.HardNavigate != "" {
		b.WriteString("\n")
		b.WriteString(styles.WarningText.Render("Leaving app router: " + m.page.HardNavigate))
		b.WriteString("\n")
	}
	if len(m.page.Errors) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.DangerText.Render("Slot errors"))
		b.WriteString("\n")
		for _, err := range m.page.Errors {
			b.WriteString(styles.Text.Render("  " + err.Error()))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderTree shows the router tree next to the cache, followed by the
// prefetch cache.
func (m Model) renderTree() string {
	styles := m.theme.Styles()

	treeLines := routerstate.Outline(m.snapshot.Router.Tree)
	var cacheLines []string
	if m.store != nil {
		m.store.View(func(st router.State) {
			cacheLines = cache.Outline(st.Cache)
		})
	}

	tree := styles.AccentText.Bold(true).Render("Router tree") + "\n" + strings.Join(treeLines, "\n")
	cached := styles.AccentText.Bold(true).Render("Cache") + "\n" + m.colorizeCacheLines(cacheLines, styles)

	var top string
	if m.width >= LayoutSplitWidth {
		col := lipgloss.NewStyle().Width(m.width/2 - 2)
		top = lipgloss.JoinHorizontal(lipgloss.Top, col.Render(tree), col.Render(cached))
	} else {
		top = tree + "\n\n" + cached
	}

	var b strings.Builder
	b.WriteString(top)
	b.WriteString("\n\n")
	b.WriteString(styles.AccentText.Bold(true).Render("Prefetch cache"))
	b.WriteString("\n")
	entries := prefetchLines(m.snapshot.Router.PrefetchCache, time.Now())
	if len(entries) == 0 {
		b.WriteString(styles.MutedText.Render("empty"))
	}
	for _, line := range entries {
		b.WriteString(styles.Text.Render(line))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) colorizeCacheLines(lines []string, styles Styles) string {
	out := make([]string, len(lines))
	for i, line := range lines {
		idx := strings.LastIndex(line, " ")
		if idx < 0 {
			out[i] = line
			continue
		}
		status := line[idx+1:]
		out[i] = line[:idx+1] + styles.StatusStyle(status).Render(status)
	}
	return strings.Join(out, "\n")
}

// prefetchLines lists prefetch entries by href with their age.
func prefetchLines(entries router.PrefetchCache, now time.Time) []string {
	hrefs := make([]string, 0, len(entries))
	for href := range entries {
		hrefs = append(hrefs, href)
	}
	sort.Strings(hrefs)
	lines := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		e := entries[href]
		at := e.Path.String()
		if at == "" {
			at = "<root>"
		}
		lines = append(lines, fmt.Sprintf("%s  at %s  %s ago", href, at, humanizeAge(now.Sub(e.FetchedAt))))
	}
	return lines
}

// historyLines renders the history list, marking the current entry.
func historyLines(entries []state.Entry, index int) []string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		marker := "  "
		if i == index {
			marker = "▶ "
		}
		line := marker + e.URL
		if e.External {
			line += "  (external)"
		}
		lines[i] = line
	}
	return lines
}

func (m Model) renderHistory() string {
	styles := m.theme.Styles()
	lines := historyLines(m.history, m.historyIndex)
	if len(lines) == 0 {
		return styles.MutedText.Render("No history")
	}
	for i, line := range lines {
		switch {
		case i == m.historyIndex:
			lines[i] = styles.AccentText.Bold(true).Render(line)
		case m.history[i].External:
			lines[i] = styles.WarningText.Render(line)
		default:
			lines[i] = styles.Text.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}
