// Package tui is the interactive arrangement canvas: outputs drawn as boxes
// that can be dragged with the mouse and edited with the keyboard.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/1broseidon/outputctl/internal/confirm"
	"github.com/1broseidon/outputctl/internal/display"
)

// Options configure Run.
type Options struct {
	Session *display.Session
	Confirm *confirm.Manager
	// Padding is the canvas margin in cells.
	Padding int
}

// Run starts the TUI and blocks until the user quits. A change still
// awaiting confirmation on exit is reverted.
func Run(ctx context.Context, opts Options) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("tui requires an interactive terminal (stdin/stdout must be TTYs)")
	}
	if opts.Session == nil || opts.Confirm == nil {
		return errors.New("tui: session and confirmation manager are required")
	}

	m := newModel(ctx, opts.Session, opts.Confirm, float64(opts.Padding))
	p := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err := p.Run()

	if tx, pending := opts.Confirm.Pending(); pending {
		revertCtx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if rerr := opts.Confirm.Revert(revertCtx, tx.ID); rerr != nil && !errors.Is(rerr, confirm.ErrNoPending) {
			return errors.Join(err, fmt.Errorf("revert unconfirmed change: %w", rerr))
		}
	}
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
