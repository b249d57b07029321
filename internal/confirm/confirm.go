// Package confirm applies a configuration tentatively and reverts it unless
// the user confirms within a timeout.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/1broseidon/outputctl/internal/monitor"
)

var (
	// ErrPending is returned by Apply while another change awaits an answer.
	ErrPending = errors.New("a change is already awaiting confirmation")
	// ErrNoPending is returned by Confirm and Revert when nothing is pending.
	ErrNoPending = errors.New("no change awaiting confirmation")
	// ErrStale is returned for an ID that is not the pending transaction.
	ErrStale = errors.New("confirmation does not match the pending change")
)

// DefaultTimeout is how long a tentative change lives without confirmation.
const DefaultTimeout = 15 * time.Second

// Target is the collection owner the manager drives.
type Target interface {
	// Applied returns the configuration currently live on the backend.
	Applied() []monitor.Monitor
	// Apply pushes the edited configuration.
	Apply(ctx context.Context) error
	// ApplyMonitors pushes a given configuration.
	ApplyMonitors(ctx context.Context, monitors []monitor.Monitor) error
	// Persist stores the live configuration.
	Persist(ctx context.Context) error
}

// Transaction identifies one tentative change.
type Transaction struct {
	ID       uuid.UUID `json:"id"`
	Deadline time.Time `json:"deadline"`
}

// Options configure a Manager.
type Options struct {
	Timeout          time.Duration
	PersistOnConfirm bool
	// OnExpire is called after a timed-out change has been reverted.
	OnExpire func(tx Transaction, err error)
}

type pending struct {
	tx       Transaction
	previous []monitor.Monitor
	timer    *time.Timer
}

// Manager runs the apply, confirm-or-revert workflow. Confirm, Revert and
// the timeout race under one mutex; whichever clears the pending
// transaction first wins and the others become no-ops.
type Manager struct {
	target  Target
	opts    Options
	logger  *slog.Logger
	applyMu sync.Mutex

	mu      sync.Mutex
	pending *pending
}

// NewManager returns a Manager for target.
func NewManager(target Target, opts Options, logger *slog.Logger) *Manager {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{target: target, opts: opts, logger: logger}
}

// Pending returns the transaction awaiting confirmation, if any.
func (m *Manager) Pending() (Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return Transaction{}, false
	}
	return m.pending.tx, true
}

// Apply applies the edited configuration and arms the revert timer.
func (m *Manager) Apply(ctx context.Context) (Transaction, error) {
	m.applyMu.Lock()
	defer m.applyMu.Unlock()

	if _, ok := m.Pending(); ok {
		return Transaction{}, ErrPending
	}

	previous := m.target.Applied()
	if err := m.target.Apply(ctx); err != nil {
		return Transaction{}, err
	}

	tx := Transaction{ID: uuid.New(), Deadline: time.Now().Add(m.opts.Timeout)}
	p := &pending{tx: tx, previous: previous}

	m.mu.Lock()
	m.pending = p
	p.timer = time.AfterFunc(m.opts.Timeout, func() { m.expire(tx.ID) })
	m.mu.Unlock()

	m.logger.Info("change applied, awaiting confirmation", "id", tx.ID, "timeout", m.opts.Timeout)
	return tx, nil
}

// take removes and returns the pending transaction if id matches it.
// uuid.Nil matches whatever is pending.
func (m *Manager) take(id uuid.UUID) (*pending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return nil, ErrNoPending
	}
	if id != uuid.Nil && id != m.pending.tx.ID {
		return nil, fmt.Errorf("%w: %s", ErrStale, id)
	}
	p := m.pending
	m.pending = nil
	if p.timer != nil {
		p.timer.Stop()
	}
	return p, nil
}

// Confirm keeps the pending change, persisting it when configured to.
func (m *Manager) Confirm(ctx context.Context, id uuid.UUID) error {
	p, err := m.take(id)
	if err != nil {
		return err
	}
	m.logger.Info("change confirmed", "id", p.tx.ID)
	if m.opts.PersistOnConfirm {
		if err := m.target.Persist(ctx); err != nil {
			return fmt.Errorf("persist confirmed change: %w", err)
		}
	}
	return nil
}

// Revert restores the configuration that was live before the pending
// change.
func (m *Manager) Revert(ctx context.Context, id uuid.UUID) error {
	p, err := m.take(id)
	if err != nil {
		return err
	}
	m.logger.Info("reverting change", "id", p.tx.ID)
	return m.target.ApplyMonitors(ctx, p.previous)
}

func (m *Manager) expire(id uuid.UUID) {
	p, err := m.take(id)
	if err != nil {
		// Confirmed or reverted first.
		return
	}
	m.logger.Warn("change not confirmed in time, reverting", "id", id)
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.Timeout)
	defer cancel()
	err = m.target.ApplyMonitors(ctx, p.previous)
	if err != nil {
		m.logger.Error("revert failed", "id", id, "error", err)
	}
	if m.opts.OnExpire != nil {
		m.opts.OnExpire(p.tx, err)
	}
}

// Close cancels the timer of a pending change without reverting it.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending != nil && m.pending.timer != nil {
		m.pending.timer.Stop()
	}
}
