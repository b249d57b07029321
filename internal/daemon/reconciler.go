package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/1broseidon/outputctl/internal/display"
	"github.com/1broseidon/outputctl/internal/monitor"
)

// Fetcher reads the live configuration. backend.Adapter satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context) ([]monitor.Monitor, error)
}

// ReconcilerConfig holds configuration for the reconciler.
type ReconcilerConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
	// Pending reports whether a change awaits confirmation. Drift is not
	// reconciled while one does.
	Pending func() bool
	// OnDrift is called after the session was refreshed because of drift.
	OnDrift func(changes []string)
}

// Reconciler periodically compares the live configuration with the
// session's and re-fetches when outputs were plugged, unplugged or
// reconfigured by something else.
type Reconciler struct {
	interval time.Duration
	fetcher  Fetcher
	session  *display.Session
	pending  func() bool
	onDrift  func([]string)
	logger   *slog.Logger

	mu       sync.Mutex
	deferred []string
}

// NewReconciler creates a new reconciler with the given configuration.
func NewReconciler(cfg ReconcilerConfig, fetcher Fetcher, session *display.Session) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pending := cfg.Pending
	if pending == nil {
		pending = func() bool { return false }
	}

	return &Reconciler{
		interval: interval,
		fetcher:  fetcher,
		session:  session,
		pending:  pending,
		onDrift:  cfg.OnDrift,
		logger:   logger,
	}
}

// Run starts the reconciliation loop. Blocks until context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			r.reconcile(ctx)
		}
	}
}

// Deferred returns the drift seen while edits or a pending change kept the
// reconciler from refreshing.
func (r *Reconciler) Deferred() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.deferred...)
}

// reconcile performs a single reconciliation pass and reports whether the
// session was refreshed.
func (r *Reconciler) reconcile(ctx context.Context) bool {
	// Recover from panics to prevent crashing the daemon
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error("reconciler panic recovered", "error", err)
		}
	}()

	status := r.session.Status()
	if status.Busy {
		return false
	}

	live, err := r.fetcher.Fetch(ctx)
	if err != nil {
		r.logger.Debug("reconciler: fetch failed", "error", err)
		return false
	}

	changes := Drift(r.session.Applied(), live)
	if len(changes) == 0 && status.Fetched {
		r.setDeferred(nil)
		return false
	}

	if status.Dirty || r.pending() {
		r.logger.Warn("reconciler: live configuration changed during edit, not refreshing", "changes", changes)
		r.setDeferred(changes)
		return false
	}

	if err := r.session.Refresh(ctx); err != nil {
		r.logger.Warn("reconciler: refresh failed", "error", err)
		return false
	}
	r.setDeferred(nil)
	r.logger.Info("reconciler: configuration changed", "changes", changes)
	if r.onDrift != nil {
		r.onDrift(changes)
	}
	return true
}

func (r *Reconciler) setDeferred(changes []string) {
	r.mu.Lock()
	r.deferred = changes
	r.mu.Unlock()
}

// ReconcileNow triggers an immediate reconciliation pass.
func (r *Reconciler) ReconcileNow(ctx context.Context) bool {
	return r.reconcile(ctx)
}
