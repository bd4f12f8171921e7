package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/wayfinder/internal/config"
	"github.com/five82/wayfinder/internal/layout"
	"github.com/five82/wayfinder/internal/prefs"
	"github.com/five82/wayfinder/internal/state"
)

// Navigator is the router surface the UI drives.
type Navigator interface {
	Push(ctx context.Context, href string) error
	Replace(ctx context.Context, href string) error
	Prefetch(ctx context.Context, href string) error
	Refresh(ctx context.Context) error
	Back(ctx context.Context) error
	Forward(ctx context.Context) error
	Render() layout.Page
	Settle(ctx context.Context, page layout.Page) error
}

// View represents the current active view.
type View int

const (
	ViewPage View = iota
	ViewTree
	ViewHistory
	ViewLogs
	viewCount
)

func (v View) String() string {
	switch v {
	case ViewTree:
		return "Tree"
	case ViewHistory:
		return "History"
	case ViewLogs:
		return "Logs"
	default:
		return "Page"
	}
}

// Options configures the UI.
type Options struct {
	Context   context.Context
	Router    Navigator
	Store     *state.Store
	Config    *config.Config
	PollTick  time.Duration
	ThemeName string
	PrefsPath string
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	nav       Navigator
	store     *state.Store
	config    *config.Config
	prefsPath string
	pollTick  time.Duration
	keys      keyMap

	// UI state
	theme       Theme
	currentView View
	width       int
	height      int
	ready       bool
	viewport    viewport.Model
	showHelp    bool
	modal       Modal

	// Router state
	snapshot     state.Snapshot
	page         layout.Page
	history      []state.Entry
	historyIndex int
	lastUpdated  time.Time
	settling     bool
	settledSeq   uint64
	settledOnce  bool

	// Result of the last key-triggered action
	status    string
	statusErr bool

	// Logs
	logs   []string
	logErr error
	follow bool
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pollTick := opts.PollTick
	if pollTick == 0 {
		pollTick = DefaultUIInterval
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	return Model{
		ctx:         ctx,
		nav:         opts.Router,
		store:       opts.Store,
		config:      opts.Config,
		prefsPath:   prefsPath,
		pollTick:    pollTick,
		keys:        DefaultKeyMap(),
		theme:       GetTheme(opts.ThemeName),
		currentView: ViewPage,
		follow:      true,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tea.EnterAltScreen,
		tickCmd(m.pollTick),
	}
	if m.nav != nil {
		cmds = append(cmds, renderCmd(m.nav, m.store))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(m.width, m.contentHeight())
		}
		m.ready = true
		m.refreshContent()
		return m, nil

	case tickMsg:
		return m.handleTick()

	case renderMsg:
		m.snapshot = msg.snapshot
		m.page = msg.page
		m.history = msg.history
		m.historyIndex = msg.index
		m.lastUpdated = time.Now()
		m.refreshContent()
		if m.shouldSettle() {
			m.settling = true
			m.settledSeq = m.snapshot.Seq
			m.settledOnce = true
			return m, settleCmd(m.ctx, m.nav, m.page)
		}
		return m, nil

	case settledMsg:
		m.settling = false
		if msg.err != nil {
			m.status, m.statusErr = msg.err.Error(), true
		}
		return m, renderCmd(m.nav, m.store)

	case actionMsg:
		if msg.err != nil {
			m.status, m.statusErr = fmt.Sprintf("%s: %v", msg.label, msg.err), true
		} else {
			m.status, m.statusErr = msg.label, false
		}
		return m, renderCmd(m.nav, m.store)

	case promptSubmitMsg:
		return m, m.promptAction(msg)

	case logsMsg:
		m.logs, m.logErr = msg.lines, msg.err
		if m.currentView == ViewLogs {
			m.refreshContent()
		}
		return m, nil
	}

	if m.modal != nil {
		return m.updateModal(msg)
	}
	return m, nil
}

// shouldSettle reports whether the page has work Settle can advance. A page
// that was already settled at this sequence is only settled again while
// some of its fetches are still in flight.
func (m Model) shouldSettle() bool {
	if m.nav == nil || m.settling {
		return false
	}
	p := m.page
	if p.HardNavigate == "" && p.Patch == nil && len(p.Pending) == 0 {
		return false
	}
	if !m.settledOnce || m.snapshot.Seq != m.settledSeq {
		return true
	}
	for _, f := range p.Pending {
		if !f.Ready() {
			return true
		}
	}
	return false
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.modal != nil {
		return m.modal.View(m.theme, m.width, m.height)
	}
	return m.renderMain()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.modal != nil {
		return m.updateModal(msg)
	}

	k := m.keys
	switch {
	case key.Matches(msg, k.Quit):
		return m, tea.Quit
	case key.Matches(msg, k.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, k.CycleTheme):
		return m, m.cycleTheme()
	case key.Matches(msg, k.Tab):
		return m, m.setView((m.currentView + 1) % viewCount)
	case key.Matches(msg, k.ShiftTab):
		return m, m.setView((m.currentView + viewCount - 1) % viewCount)
	case key.Matches(msg, k.Escape):
		return m, m.setView(ViewPage)
	case key.Matches(msg, k.ViewPage):
		return m, m.setView(ViewPage)
	case key.Matches(msg, k.ViewTree):
		return m, m.setView(ViewTree)
	case key.Matches(msg, k.ViewHistory):
		return m, m.setView(ViewHistory)
	case key.Matches(msg, k.ViewLogs):
		return m, m.setView(ViewLogs)

	case key.Matches(msg, k.Push):
		m.modal = newURLPrompt(promptPush, m.snapshot.Router.CanonicalURL)
		return m, nil
	case key.Matches(msg, k.Replace):
		m.modal = newURLPrompt(promptReplace, m.snapshot.Router.CanonicalURL)
		return m, nil
	case key.Matches(msg, k.Prefetch):
		m.modal = newURLPrompt(promptPrefetch, "")
		return m, nil
	case key.Matches(msg, k.Refresh):
		return m, m.action("refresh", func(ctx context.Context) error { return m.nav.Refresh(ctx) })
	case key.Matches(msg, k.Back):
		return m, m.action("back", func(ctx context.Context) error { return m.nav.Back(ctx) })
	case key.Matches(msg, k.Forward):
		return m, m.action("forward", func(ctx context.Context) error { return m.nav.Forward(ctx) })

	case key.Matches(msg, k.ToggleFollow) && m.currentView == ViewLogs:
		m.follow = !m.follow
		if m.follow {
			m.viewport.GotoBottom()
		}
		return m, nil
	case key.Matches(msg, k.Top):
		m.viewport.GotoTop()
		return m, nil
	case key.Matches(msg, k.Bottom):
		m.viewport.GotoBottom()
		return m, nil
	case key.Matches(msg, k.HalfPageDown):
		m.viewport.HalfViewDown()
		return m, nil
	case key.Matches(msg, k.HalfPageUp):
		m.viewport.HalfViewUp()
		return m, nil
	case key.Matches(msg, k.Up):
		m.viewport.LineUp(1)
		return m, nil
	case key.Matches(msg, k.Down):
		m.viewport.LineDown(1)
		return m, nil
	}
	return m, nil
}

func (m Model) updateModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd, closed := m.modal.Update(msg, m.keys)
	if closed {
		m.modal = nil
	} else {
		m.modal = next
	}
	return m, cmd
}

func (m *Model) setView(v View) tea.Cmd {
	m.currentView = v
	m.refreshContent()
	if v == ViewLogs {
		return refreshLogsCmd(m.logPath())
	}
	return nil
}

func (m *Model) cycleTheme() tea.Cmd {
	name := NextTheme(m.theme.Name)
	m.theme = GetTheme(name)
	m.refreshContent()
	path := m.prefsPath
	return func() tea.Msg {
		p, err := prefs.Load(path)
		if err != nil {
			return actionMsg{label: "theme " + name, err: err}
		}
		p.Theme = name
		return actionMsg{label: "theme " + name, err: prefs.Save(path, p)}
	}
}

func (m Model) promptAction(msg promptSubmitMsg) tea.Cmd {
	href := msg.href
	switch msg.mode {
	case promptReplace:
		return m.action("replace "+href, func(ctx context.Context) error { return m.nav.Replace(ctx, href) })
	case promptPrefetch:
		return m.action("prefetch "+href, func(ctx context.Context) error { return m.nav.Prefetch(ctx, href) })
	default:
		return m.action("push "+href, func(ctx context.Context) error { return m.nav.Push(ctx, href) })
	}
}

// action runs fn off the update loop and reports its outcome.
func (m Model) action(label string, fn func(context.Context) error) tea.Cmd {
	if m.nav == nil {
		return nil
	}
	parent := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, ActionTimeout)
		defer cancel()
		return actionMsg{label: label, err: fn(ctx)}
	}
}

func (m Model) handleTick() (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{tickCmd(m.pollTick)}
	if m.nav != nil && !m.settling {
		cmds = append(cmds, renderCmd(m.nav, m.store))
	}
	if m.currentView == ViewLogs && m.follow {
		if cmd := refreshLogsCmd(m.logPath()); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return m, tea.Batch(cmds...)
}

func (m Model) logPath() string {
	if m.config == nil {
		return ""
	}
	return m.config.LogFile
}

func (m Model) contentHeight() int {
	return max(m.height-2, 1)
}

// refreshContent re-renders the active view into the viewport.
func (m *Model) refreshContent() {
	if !m.ready {
		return
	}
	m.viewport.Width = m.width
	m.viewport.Height = m.contentHeight()
	m.viewport.SetContent(m.renderContent())
	if m.currentView == ViewLogs && m.follow {
		m.viewport.GotoBottom()
	}
}

func (m Model) renderContent() string {
	switch m.currentView {
	case ViewTree:
		return m.renderTree()
	case ViewHistory:
		return m.renderHistory()
	case ViewLogs:
		return m.renderLogs()
	default:
		return m.renderPage()
	}
}

func (m Model) renderMain() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().
		Background(lipgloss.Color(m.theme.Background)).
		Width(m.width).
		Render(m.viewport.View()))
	return b.String()
}

// Messages

type tickMsg time.Time

type renderMsg struct {
	snapshot state.Snapshot
	page     layout.Page
	history  []state.Entry
	index    int
}

type settledMsg struct{ err error }

type actionMsg struct {
	label string
	err   error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// renderCmd resolves the page and captures the store alongside it.
func renderCmd(nav Navigator, store *state.Store) tea.Cmd {
	return func() tea.Msg {
		msg := renderMsg{page: nav.Render()}
		if store != nil {
			msg.snapshot = store.Snapshot()
			msg.history, msg.index = store.History()
		}
		return msg
	}
}

func settleCmd(ctx context.Context, nav Navigator, page layout.Page) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, ActionTimeout)
		defer cancel()
		return settledMsg{err: nav.Settle(ctx, page)}
	}
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}
