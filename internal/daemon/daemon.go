// Package daemon runs the long-lived owner of the monitor collection: the
// display session, the confirmation manager, the IPC server and the
// hotplug reconciler.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/1broseidon/outputctl/internal/backend"
	"github.com/1broseidon/outputctl/internal/config"
	"github.com/1broseidon/outputctl/internal/confirm"
	"github.com/1broseidon/outputctl/internal/display"
	"github.com/1broseidon/outputctl/internal/ipc"
)

// Options configure a Daemon.
type Options struct {
	SocketPath string
	// PidPath is written with the process ID while running. Optional.
	PidPath string
	Adapter backend.Adapter
	Config  *config.Config
	Logger  *slog.Logger
	// LoadConfig re-reads the configuration for RELOAD and SIGHUP.
	LoadConfig func() (*config.Config, error)
}

// Daemon wires the session to its outer surfaces.
type Daemon struct {
	opts       Options
	logger     *slog.Logger
	session    *display.Session
	confirm    *confirm.Manager
	server     *ipc.Server
	reconciler *Reconciler

	mu  sync.Mutex
	cfg *config.Config
}

// New builds a daemon. Nothing runs until Run.
func New(opts Options) *Daemon {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	d := &Daemon{opts: opts, logger: logger, cfg: cfg}

	kind := opts.Adapter.Kind()
	d.session = display.NewSession(opts.Adapter, cfg.Rules(kind), logger.With("component", "session"))
	d.confirm = confirm.NewManager(d.session, confirm.Options{
		Timeout:          cfg.ConfirmTimeout(),
		PersistOnConfirm: cfg.PersistOnConfirm,
		OnExpire: func(tx confirm.Transaction, err error) {
			if err != nil {
				log.Printf("Change %s was not confirmed and could not be reverted: %v", tx.ID, err)
				return
			}
			log.Printf("Change %s was not confirmed and has been reverted", tx.ID)
		},
	}, logger.With("component", "confirm"))
	d.server = ipc.NewServer(opts.SocketPath, d.session, d.confirm, d.Reload)
	d.reconciler = NewReconciler(ReconcilerConfig{
		Interval: cfg.WatchInterval(),
		Logger:   logger.With("component", "reconciler"),
		Pending: func() bool {
			_, pending := d.confirm.Pending()
			return pending
		},
	}, opts.Adapter, d.session)
	return d
}

// Session returns the owned session.
func (d *Daemon) Session() *display.Session { return d.session }

// Confirm returns the confirmation manager.
func (d *Daemon) Confirm() *confirm.Manager { return d.confirm }

// Config returns the configuration in effect.
func (d *Daemon) Config() *config.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// Run serves until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.session.Refresh(ctx); err != nil {
		// The reconciler retries; clients see the error in GET_STATUS.
		log.Printf("Initial fetch failed: %v", err)
	} else {
		log.Printf("Found %d monitors on %s", len(d.session.Snapshot()), d.session.Kind())
	}

	if err := d.server.Start(); err != nil {
		return err
	}
	defer d.server.Stop()
	defer d.confirm.Close()

	if d.opts.PidPath != "" {
		if err := os.WriteFile(d.opts.PidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0600); err != nil {
			d.logger.Warn("failed to write pid file", "path", d.opts.PidPath, "error", err)
		} else {
			defer os.Remove(d.opts.PidPath)
		}
	}

	var wg sync.WaitGroup
	if d.Config().WatchIntervalSeconds > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.reconciler.Run(ctx)
		}()
	}

	<-ctx.Done()
	wg.Wait()
	log.Println("Shutting down outputctl daemon...")
	if tx, pending := d.confirm.Pending(); pending {
		// Leaving a tentative change in place would make it permanent.
		revertCtx, cancel := context.WithTimeout(context.Background(), d.Config().ConfirmTimeout())
		defer cancel()
		if err := d.confirm.Revert(revertCtx, tx.ID); err != nil && !errors.Is(err, confirm.ErrNoPending) {
			log.Printf("Failed to revert unconfirmed change on shutdown: %v", err)
		}
	}
	return nil
}

// Reload re-reads the configuration and applies what can change at
// runtime. Backend and confirmation settings need a restart.
func (d *Daemon) Reload(context.Context) error {
	if d.opts.LoadConfig == nil {
		return errors.New("no config loader")
	}
	cfg, err := d.opts.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	d.mu.Lock()
	old := d.cfg
	d.cfg = cfg
	d.mu.Unlock()

	d.session.SetRules(cfg.Rules(d.session.Kind()))
	if old.Backend != cfg.Backend || old.ConfirmTimeoutSeconds != cfg.ConfirmTimeoutSeconds ||
		old.PersistOnConfirm != cfg.PersistOnConfirm || old.WatchIntervalSeconds != cfg.WatchIntervalSeconds {
		d.logger.Warn("some settings take effect after a daemon restart",
			"backend", cfg.Backend,
			"confirm_timeout_seconds", cfg.ConfirmTimeoutSeconds,
			"watch_interval_seconds", cfg.WatchIntervalSeconds)
	}
	return nil
}
