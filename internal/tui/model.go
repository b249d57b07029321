package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/outputctl/internal/confirm"
	"github.com/1broseidon/outputctl/internal/display"
	"github.com/1broseidon/outputctl/internal/drag"
	"github.com/1broseidon/outputctl/internal/monitor"
)

const (
	headerRows = 1
	noticeRows = 1
	scaleStep  = 0.25
	opTimeout  = 30 * time.Second
)

type (
	refreshedMsg struct{ err error }
	appliedMsg   struct {
		tx  confirm.Transaction
		err error
	}
	resolvedMsg struct {
		kept bool
		err  error
	}
	persistedMsg struct{ err error }
	tickMsg      time.Time
)

// model is the root bubbletea model: one canvas of monitor rectangles.
type model struct {
	ctx     context.Context
	session *display.Session
	confirm *confirm.Manager
	padding float64

	keys keyMap
	help help.Model

	selected int
	width    int
	height   int
	notice   string
	failed   bool

	// Confirmation dialog, set while an applied change is pending.
	dialog *huh.Form
	keep   *bool
	tx     *confirm.Transaction
}

func newModel(ctx context.Context, session *display.Session, mgr *confirm.Manager, padding float64) model {
	return model{
		ctx:     ctx,
		session: session,
		confirm: mgr,
		padding: padding,
		keys:    defaultKeyMap(),
		help:    help.New(),
	}
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	if !m.session.Status().Fetched {
		return m.refreshCmd()
	}
	return nil
}

func (m model) canvasRows() int {
	rows := m.height - headerRows - noticeRows - lipgloss.Height(m.help.View(m.keys))
	return max(rows, 1)
}

// project refreshes drawing geometry for the current window size.
func (m model) project() []monitor.Monitor {
	w, h := canvasSize(m.width, m.canvasRows())
	return m.session.Project(w, h, m.padding)
}

func (m model) current() (monitor.Monitor, bool) {
	snap := m.session.Snapshot()
	if m.selected < 0 || m.selected >= len(snap) {
		return monitor.Monitor{}, false
	}
	return snap[m.selected], true
}

func (m *model) report(err error, format string, args ...any) {
	if err != nil {
		m.notice = err.Error()
		m.failed = true
		return
	}
	m.notice = fmt.Sprintf(format, args...)
	m.failed = false
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case refreshedMsg:
		m.report(msg.err, "Loaded %d outputs", len(m.session.Snapshot()))
		m.clampSelection()
		return m, nil

	case persistedMsg:
		m.report(msg.err, "Configuration stored")
		return m, nil

	case appliedMsg:
		if msg.err != nil {
			m.report(msg.err, "")
			return m, nil
		}
		return m, m.openDialog(msg.tx)

	case resolvedMsg:
		m.closeDialog()
		if msg.kept {
			m.report(msg.err, "Configuration kept")
		} else {
			m.report(msg.err, "Configuration reverted")
		}
		m.clampSelection()
		return m, nil

	case tickMsg:
		if m.tx == nil {
			return m, nil
		}
		if tx, ok := m.confirm.Pending(); !ok || tx.ID != m.tx.ID {
			m.closeDialog()
			m.report(nil, "Not confirmed in time; configuration reverted")
			return m, nil
		}
		return m, tick()
	}

	if m.dialog != nil {
		return m.updateDialog(msg)
	}

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.handleMouse(msg)
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *model) clampSelection() {
	n := len(m.session.Snapshot())
	if m.selected >= n {
		m.selected = n - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m *model) handleMouse(msg tea.MouseMsg) {
	row := msg.Y - headerRows
	x, y := canvasPoint(msg.X, row)

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft || row < 0 || row >= m.canvasRows() {
			return
		}
		projected := m.project()
		ok, err := m.session.BeginDrag(x, y)
		if err != nil {
			m.report(err, "")
			return
		}
		if !ok {
			return
		}
		for i := range projected {
			if drag.Drawn(&projected[i]).Contains(x, y) {
				m.selected = i
				break
			}
		}
	case tea.MouseActionMotion:
		m.session.UpdateDrag(x, y)
	case tea.MouseActionRelease:
		m.session.UpdateDrag(x, y)
		switch out := m.session.EndDrag(); out {
		case drag.OutcomeIdle:
		case drag.OutcomeReverted:
			m.report(errors.New("move rejected: outputs would overlap or detach"), "")
		default:
			mon, _ := m.current()
			m.report(nil, "%s %s to %d,%d", mon.Name, out, mon.Offset.X, mon.Offset.Y)
		}
	}
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		return m, m.refreshCmd()
	case key.Matches(msg, m.keys.Apply):
		return m, m.applyCmd()
	case key.Matches(msg, m.keys.Persist):
		return m, m.persistCmd()
	case key.Matches(msg, m.keys.Discard):
		m.session.Discard()
		m.report(nil, "Edits discarded")
		return m, nil
	}

	n := len(m.session.Snapshot())
	if n > 0 {
		switch {
		case key.Matches(msg, m.keys.Next):
			m.selected = (m.selected + 1) % n
			return m, nil
		case key.Matches(msg, m.keys.Prev):
			m.selected = (m.selected - 1 + n) % n
			return m, nil
		}
	}

	cur, ok := m.current()
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Toggle):
		err := m.session.SetEnabled(cur.Name, !cur.Enabled)
		m.report(err, "%s %s", cur.Name, onOff(!cur.Enabled))
	case key.Matches(msg, m.keys.Rotate):
		next := cur.Transform.Next()
		err := m.session.SetTransform(cur.Name, next)
		m.report(err, "%s rotated to %s", cur.Name, next)
	case key.Matches(msg, m.keys.ScaleUp):
		m.setScale(cur, cur.Scale+scaleStep)
	case key.Matches(msg, m.keys.ScaleDown):
		m.setScale(cur, cur.Scale-scaleStep)
	case key.Matches(msg, m.keys.Primary):
		err := m.session.SetPrimary(cur.Name)
		m.report(err, "%s is now primary", cur.Name)
	case key.Matches(msg, m.keys.ModeNext):
		m.cycleMode(cur, 1)
	case key.Matches(msg, m.keys.ModePrev):
		m.cycleMode(cur, -1)
	}
	return m, nil
}

func (m *model) setScale(cur monitor.Monitor, target float64) {
	if target <= 0 {
		m.report(monitor.ErrInvalidScale, "")
		return
	}
	committed, err := m.session.SetScale(cur.Name, target)
	m.report(err, "%s scale %g", cur.Name, committed)
}

type modeChoice struct {
	size monitor.Size
	rate int
}

func modeChoices(m monitor.Monitor) []modeChoice {
	var out []modeChoice
	for _, mode := range m.AvailableModes {
		for _, rr := range mode.RefreshRates {
			out = append(out, modeChoice{size: mode.Size, rate: rr.Rate})
		}
	}
	return out
}

func (m *model) cycleMode(cur monitor.Monitor, dir int) {
	choices := modeChoices(cur)
	if len(choices) == 0 {
		m.report(display.ErrUnknownMode, "")
		return
	}
	idx := -1
	for i, c := range choices {
		if c.size == cur.Size && c.rate == cur.RefreshRate {
			idx = i
			break
		}
	}
	next := choices[((idx+dir)%len(choices)+len(choices))%len(choices)]
	err := m.session.SetMode(cur.Name, next.size, next.rate)
	m.report(err, "%s mode %s", cur.Name, monitor.SyntheticModeID(next.size, next.rate))
}

func onOff(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

func (m model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, opTimeout)
		defer cancel()
		return refreshedMsg{err: m.session.Refresh(ctx)}
	}
}

func (m model) applyCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, opTimeout)
		defer cancel()
		tx, err := m.confirm.Apply(ctx)
		return appliedMsg{tx: tx, err: err}
	}
}

func (m model) persistCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, opTimeout)
		defer cancel()
		return persistedMsg{err: m.session.Persist(ctx)}
	}
}

func (m model) resolveCmd(keep bool) tea.Cmd {
	id := m.tx.ID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, opTimeout)
		defer cancel()
		if keep {
			return resolvedMsg{kept: true, err: m.confirm.Confirm(ctx, id)}
		}
		return resolvedMsg{err: m.confirm.Revert(ctx, id)}
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}
