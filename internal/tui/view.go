package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("250")).
			Padding(0, 1)

	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Padding(0, 1)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Padding(0, 1)
	helpStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// View implements tea.Model.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	rows := m.canvasRows()

	var content string
	if m.dialog != nil {
		content = m.viewDialog(m.width, rows)
	} else {
		content = renderCanvas(m.project(), m.selected, m.width, rows)
	}

	notice := noticeStyle
	if m.failed {
		notice = errorStyle
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatusBar(),
		content,
		notice.Width(m.width).MaxHeight(1).Render(m.notice),
		helpStyle.Render(m.help.View(m.keys)),
	)
}

func (m model) renderStatusBar() string {
	st := m.session.Status()
	parts := []string{"outputctl", string(st.Kind)}
	switch {
	case !st.Fetched:
		parts = append(parts, "loading")
	case st.Dirty:
		parts = append(parts, lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Render("● unapplied edits"))
	default:
		parts = append(parts, lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("● applied"))
	}
	if cur, ok := m.current(); ok {
		parts = append(parts, "selected:"+cur.Name)
	}
	if st.LastError != "" {
		parts = append(parts, "last error: "+st.LastError)
	}
	return statusBarStyle.Width(m.width).MaxHeight(1).Render(strings.Join(parts, "  "))
}
