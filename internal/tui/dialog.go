package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/outputctl/internal/confirm"
)

var dialogStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("62")).
	Padding(1, 2)

// openDialog asks whether to keep tx. The manager reverts on its own at
// the deadline; the tick notices that and closes the dialog.
func (m *model) openDialog(tx confirm.Transaction) tea.Cmd {
	keep := new(bool)
	m.keep = keep
	m.tx = &tx
	m.dialog = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Keep this display configuration?").
				Affirmative("Keep").
				Negative("Revert").
				Value(keep),
		),
	).WithShowHelp(false).WithWidth(44)
	return tea.Batch(m.dialog.Init(), tick())
}

func (m *model) closeDialog() {
	m.dialog = nil
	m.keep = nil
	m.tx = nil
}

func (m model) updateDialog(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.dialog.State != huh.StateNormal {
		// Waiting for the confirm or revert to land.
		return m, nil
	}
	form, cmd := m.dialog.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.dialog = f
	}
	switch m.dialog.State {
	case huh.StateCompleted:
		return m, m.resolveCmd(*m.keep)
	case huh.StateAborted:
		return m, m.resolveCmd(false)
	}
	return m, cmd
}

func (m model) viewDialog(width, height int) string {
	remaining := time.Until(m.tx.Deadline).Round(time.Second)
	if remaining < 0 {
		remaining = 0
	}
	body := lipgloss.JoinVertical(lipgloss.Left,
		m.dialog.View(),
		lipgloss.NewStyle().Foreground(lipgloss.Color("241")).
			Render(fmt.Sprintf("Reverting in %s", remaining)),
	)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, dialogStyle.Render(body))
}
