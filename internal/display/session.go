// Package display owns the monitor collection of a running session and the
// edit operations on it.
package display

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/1broseidon/outputctl/internal/backend"
	"github.com/1broseidon/outputctl/internal/drag"
	"github.com/1broseidon/outputctl/internal/layout"
	"github.com/1broseidon/outputctl/internal/monitor"
	"github.com/1broseidon/outputctl/internal/scale"
)

var (
	// ErrBusy is returned while a fetch or apply is in flight.
	ErrBusy = errors.New("display session busy")
	// ErrUnknownMonitor is returned for a name that is not in the collection.
	ErrUnknownMonitor = errors.New("unknown monitor")
	// ErrUnknownMode is returned when a size is not offered by the monitor.
	ErrUnknownMode = errors.New("mode not available")
	// ErrLastMonitor is returned when disabling would leave nothing enabled.
	ErrLastMonitor = errors.New("cannot disable the last enabled monitor")
	// ErrNotFetched is returned before the first successful fetch.
	ErrNotFetched = errors.New("monitor configuration unknown")
)

// Session is the shared owner of the monitor collection. Every read-modify-
// write runs under one mutex; backend I/O runs with the mutex released and
// the busy flag set.
type Session struct {
	adapter backend.Adapter
	rules   backend.Rules
	logger  *slog.Logger

	mu       sync.Mutex
	busy     bool
	fetched  bool
	monitors []monitor.Monitor
	applied  []monitor.Monitor
	dirty    bool
	lastErr  error
	dragger  *drag.Dragger
}

// NewSession returns a session with no collection. Call Refresh to load it.
func NewSession(adapter backend.Adapter, rules backend.Rules, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{adapter: adapter, rules: rules, logger: logger}
}

// Kind returns the backend family.
func (s *Session) Kind() backend.Kind { return s.adapter.Kind() }

// Rules returns the layout rules in effect.
func (s *Session) Rules() backend.Rules {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rules
}

// SetRules replaces the layout rules, e.g. after a config reload. It is
// ignored while a drag is active.
func (s *Session) SetRules(r backend.Rules) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dragger != nil && s.dragger.Active() >= 0 {
		return
	}
	s.rules = r
	if s.fetched {
		s.dragger = drag.NewDragger(s.monitors, s.rules)
	}
}

// Busy reports whether a fetch or apply is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Status is a summary of the session state.
type Status struct {
	Kind      backend.Kind `json:"kind"`
	Fetched   bool         `json:"fetched"`
	Busy      bool         `json:"busy"`
	Dirty     bool         `json:"dirty"`
	Monitors  int          `json:"monitors"`
	LastError string       `json:"last_error,omitempty"`
}

// Status returns the current session summary.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Kind:     s.adapter.Kind(),
		Fetched:  s.fetched,
		Busy:     s.busy,
		Dirty:    s.dirty,
		Monitors: len(s.monitors),
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// Snapshot returns a deep copy of the collection.
func (s *Session) Snapshot() []monitor.Monitor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return monitor.Clone(s.monitors)
}

// Applied returns a deep copy of the collection as last fetched.
func (s *Session) Applied() []monitor.Monitor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return monitor.Clone(s.applied)
}

func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrBusy
	}
	if s.dragger != nil && s.dragger.Active() >= 0 {
		return ErrBusy
	}
	s.busy = true
	return nil
}

func (s *Session) end() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// replace installs a fresh collection. Caller holds mu.
func (s *Session) replace(monitors []monitor.Monitor) {
	s.monitors = monitors
	s.applied = monitor.Clone(monitors)
	s.fetched = true
	s.dirty = false
	s.lastErr = nil
	s.dragger = drag.NewDragger(s.monitors, s.rules)
}

// Refresh fetches the live configuration. On failure the previous
// collection is kept and the error is recorded.
func (s *Session) Refresh(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	monitors, err := s.adapter.Fetch(ctx)
	if err == nil {
		err = uniqueIDs(monitors)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = err
		s.logger.Warn("fetch failed, keeping previous configuration", "error", err)
		return err
	}
	s.replace(monitors)
	s.logger.Debug("configuration fetched", "monitors", len(monitors))
	return nil
}

// uniqueIDs rejects a fetch in which two monitors share an ID, since every
// edit locates its monitor by ID.
func uniqueIDs(monitors []monitor.Monitor) error {
	seen := make(map[uint32]string, len(monitors))
	for _, m := range monitors {
		if other, ok := seen[m.ID]; ok {
			return fmt.Errorf("%w: %s and %s share id %d", backend.ErrConversion, other, m.Name, m.ID)
		}
		seen[m.ID] = m.Name
	}
	return nil
}

func (s *Session) push(ctx context.Context, monitors []monitor.Monitor, persist bool) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	op := "apply"
	var err error
	if persist {
		op = "persist"
		err = s.adapter.Persist(ctx, monitors)
	} else {
		err = s.adapter.Apply(ctx, monitors)
	}
	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", op, err)
	}

	fresh, err := s.adapter.Fetch(ctx)
	if err == nil {
		err = uniqueIDs(fresh)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = err
		s.logger.Warn("re-fetch after "+op+" failed", "error", err)
		return fmt.Errorf("re-fetch after %s: %w", op, err)
	}
	s.replace(fresh)
	s.logger.Info("configuration "+op+" done", "monitors", len(fresh))
	return nil
}

// Apply pushes the edited collection to the backend and replaces the
// collection with a re-fetch.
func (s *Session) Apply(ctx context.Context) error {
	return s.push(ctx, s.Snapshot(), false)
}

// ApplyMonitors pushes the given collection, e.g. a previous configuration
// being restored.
func (s *Session) ApplyMonitors(ctx context.Context, monitors []monitor.Monitor) error {
	return s.push(ctx, monitors, false)
}

// Persist stores the edited collection so it survives a restart.
func (s *Session) Persist(ctx context.Context) error {
	return s.push(ctx, s.Snapshot(), true)
}

// edit runs fn on the named monitor under the lock.
func (s *Session) edit(name string, fn func(idx int) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy || (s.dragger != nil && s.dragger.Active() >= 0) {
		return ErrBusy
	}
	if !s.fetched {
		return ErrNotFetched
	}
	idx := monitor.FindByName(s.monitors, name)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownMonitor, name)
	}
	if err := fn(idx); err != nil {
		return err
	}
	s.dirty = true
	return nil
}

// SetEnabled turns a monitor on or off and rearranges the others.
func (s *Session) SetEnabled(name string, enabled bool) error {
	return s.edit(name, func(idx int) error {
		m := &s.monitors[idx]
		if m.Enabled == enabled {
			return nil
		}
		if !enabled {
			on := 0
			for i := range s.monitors {
				if s.monitors[i].Enabled {
					on++
				}
			}
			if on <= 1 {
				return ErrLastMonitor
			}
		}
		original := *m
		m.Enabled = enabled
		if !enabled {
			m.Primary = false
		}
		layout.Rearrange(original, s.monitors, s.rules)
		return nil
	})
}

// SetMode changes resolution and refresh rate.
func (s *Session) SetMode(name string, size monitor.Size, rate int) error {
	return s.edit(name, func(idx int) error {
		m := &s.monitors[idx]
		original := *m
		if !m.SelectMode(size, rate) {
			return fmt.Errorf("%w: %s on %s", ErrUnknownMode, size, name)
		}
		layout.Rearrange(original, s.monitors, s.rules)
		return nil
	})
}

// SetScale resolves target to a legal scale and returns the committed value.
// An illegal target leaves the monitor unchanged.
func (s *Session) SetScale(name string, target float64) (float64, error) {
	var committed float64
	err := s.edit(name, func(idx int) error {
		var err error
		committed, err = scale.Resolve(s.monitors, s.monitors[idx].ID, target, s.rules)
		if err != nil {
			s.logger.Warn("scale rejected", "monitor", name, "target", target, "error", err)
		}
		return err
	})
	return committed, err
}

// SetTransform rotates or mirrors a monitor.
func (s *Session) SetTransform(name string, t monitor.Transform) error {
	if !t.Valid() {
		return fmt.Errorf("invalid transform %d", int(t))
	}
	return s.edit(name, func(idx int) error {
		m := &s.monitors[idx]
		original := *m
		m.Transform = t
		layout.Rearrange(original, s.monitors, s.rules)
		return nil
	})
}

// SetPrimary makes name the only primary monitor.
func (s *Session) SetPrimary(name string) error {
	return s.edit(name, func(idx int) error {
		m := &s.monitors[idx]
		if !m.Features.Primary {
			return fmt.Errorf("%w: primary monitor", backend.ErrUnsupported)
		}
		if !m.Enabled {
			return fmt.Errorf("monitor %s is disabled", name)
		}
		for i := range s.monitors {
			s.monitors[i].Primary = i == idx
		}
		return nil
	})
}

// SetVRR toggles adaptive sync.
func (s *Session) SetVRR(name string, on bool) error {
	return s.edit(name, func(idx int) error {
		m := &s.monitors[idx]
		if !m.Features.VRR {
			return fmt.Errorf("%w: adaptive sync", backend.ErrUnsupported)
		}
		m.VRR = on
		return nil
	})
}

// Move drags a monitor by a logical delta with snapping.
func (s *Session) Move(name string, dx, dy int) (drag.Outcome, error) {
	var out drag.Outcome
	err := s.edit(name, func(idx int) error {
		out = drag.MoveBy(s.monitors, s.monitors[idx].ID, dx, dy, s.rules)
		if out == drag.OutcomeReverted {
			s.logger.Warn("move reverted", "monitor", name, "dx", dx, "dy", dy)
		}
		return nil
	})
	return out, err
}

// Project lays the collection out on a canvas and returns a copy with
// drawing geometry filled in.
func (s *Session) Project(canvasW, canvasH, padding float64) []monitor.Monitor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dragger == nil || s.dragger.Active() < 0 {
		drag.Project(s.monitors, canvasW, canvasH, padding)
	}
	return monitor.Clone(s.monitors)
}

// BeginDrag starts a pointer gesture at a canvas point. It is rejected
// while busy.
func (s *Session) BeginDrag(x, y float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false, ErrBusy
	}
	if s.dragger == nil {
		return false, ErrNotFetched
	}
	return s.dragger.Begin(x, y), nil
}

// UpdateDrag moves the active gesture.
func (s *Session) UpdateDrag(x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dragger != nil {
		s.dragger.Update(x, y)
	}
}

// EndDrag finishes the active gesture.
func (s *Session) EndDrag() drag.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dragger == nil {
		return drag.OutcomeIdle
	}
	out := s.dragger.End()
	if out == drag.OutcomeSnapped || out == drag.OutcomeMoved {
		s.dirty = true
	}
	return out
}

// CancelDrag abandons the active gesture.
func (s *Session) CancelDrag() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dragger != nil {
		s.dragger.Cancel()
	}
}

// Discard drops local edits and returns to the last fetched collection.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy || !s.fetched {
		return
	}
	s.replace(monitor.Clone(s.applied))
}
