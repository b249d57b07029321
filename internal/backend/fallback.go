package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/1broseidon/outputctl/internal/monitor"
)

// fallbackAdapter retries Apply on a lower-level protocol adapter of the same
// family when the primary fails. Fetch and Persist always use the primary.
type fallbackAdapter struct {
	primary  Adapter
	fallback Adapter
	logger   *slog.Logger
}

// WithFallback wraps primary so that a failed Apply is retried on fallback.
// A nil fallback returns primary unchanged.
func WithFallback(primary, fallback Adapter, logger *slog.Logger) Adapter {
	if fallback == nil {
		return primary
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &fallbackAdapter{primary: primary, fallback: fallback, logger: logger}
}

func (a *fallbackAdapter) Kind() Kind                 { return a.primary.Kind() }
func (a *fallbackAdapter) Features() monitor.Features { return a.primary.Features() }

func (a *fallbackAdapter) Fetch(ctx context.Context) ([]monitor.Monitor, error) {
	return a.primary.Fetch(ctx)
}

func (a *fallbackAdapter) Apply(ctx context.Context, monitors []monitor.Monitor) error {
	err := a.primary.Apply(ctx, monitors)
	if err == nil {
		return nil
	}
	a.logger.Warn("apply failed, retrying on protocol fallback", "kind", a.primary.Kind(), "error", err)

	if ferr := a.fallback.Apply(ctx, monitors); ferr != nil {
		if errors.Is(ferr, ErrUnsupported) {
			return err
		}
		return fmt.Errorf("%w (fallback: %v)", err, ferr)
	}
	return nil
}

func (a *fallbackAdapter) Persist(ctx context.Context, monitors []monitor.Monitor) error {
	return a.primary.Persist(ctx, monitors)
}
