package display

import (
	"errors"
	"fmt"

	"github.com/1broseidon/outputctl/internal/monitor"
)

// Change is a set of property edits for one monitor, as carried by the
// IPC and MCP surfaces. Unset fields are left alone.
type Change struct {
	Name      string   `json:"name"`
	Enabled   *bool    `json:"enabled,omitempty"`
	Width     int      `json:"width,omitempty"`
	Height    int      `json:"height,omitempty"`
	Refresh   int      `json:"refresh,omitempty"`
	Scale     *float64 `json:"scale,omitempty"`
	Transform string   `json:"transform,omitempty"`
	Primary   bool     `json:"primary,omitempty"`
	VRR       *bool    `json:"vrr,omitempty"`
}

// Empty reports whether c edits nothing.
func (c Change) Empty() bool {
	return c.Enabled == nil && c.Width == 0 && c.Height == 0 && c.Refresh == 0 &&
		c.Scale == nil && c.Transform == "" && !c.Primary && c.VRR == nil
}

// ChangeResult reports what a Change committed.
type ChangeResult struct {
	Monitor monitor.Monitor `json:"monitor"`
	// Scale is the legal scale actually committed when one was requested.
	Scale float64 `json:"scale,omitempty"`
}

// ApplyChange runs the edits of c in a fixed order: enable, mode,
// transform, scale, primary, VRR. It stops at the first failing edit;
// edits before it stay in place.
func (s *Session) ApplyChange(c Change) (ChangeResult, error) {
	var res ChangeResult
	if c.Name == "" {
		return res, errors.New("monitor name is required")
	}
	if c.Empty() {
		return res, errors.New("no changes requested")
	}

	var transform monitor.Transform
	if c.Transform != "" {
		t, err := monitor.ParseTransform(c.Transform)
		if err != nil {
			return res, err
		}
		transform = t
	}

	if c.Enabled != nil {
		if err := s.SetEnabled(c.Name, *c.Enabled); err != nil {
			return res, err
		}
	}
	if c.Width != 0 || c.Height != 0 || c.Refresh != 0 {
		cur, err := s.lookup(c.Name)
		if err != nil {
			return res, err
		}
		size := cur.Size
		if c.Width != 0 || c.Height != 0 {
			size = monitor.Size{Width: c.Width, Height: c.Height}
		}
		if err := s.SetMode(c.Name, size, c.Refresh); err != nil {
			return res, err
		}
	}
	if c.Transform != "" {
		if err := s.SetTransform(c.Name, transform); err != nil {
			return res, err
		}
	}
	if c.Scale != nil {
		committed, err := s.SetScale(c.Name, *c.Scale)
		if err != nil {
			return res, err
		}
		res.Scale = committed
	}
	if c.Primary {
		if err := s.SetPrimary(c.Name); err != nil {
			return res, err
		}
	}
	if c.VRR != nil {
		if err := s.SetVRR(c.Name, *c.VRR); err != nil {
			return res, err
		}
	}

	m, err := s.lookup(c.Name)
	if err != nil {
		return res, err
	}
	res.Monitor = m
	return res, nil
}

// Monitor returns a copy of the named monitor.
func (s *Session) Monitor(name string) (monitor.Monitor, error) {
	return s.lookup(name)
}

func (s *Session) lookup(name string) (monitor.Monitor, error) {
	list := s.Snapshot()
	idx := monitor.FindByName(list, name)
	if idx < 0 {
		if len(list) == 0 {
			return monitor.Monitor{}, ErrNotFetched
		}
		return monitor.Monitor{}, fmt.Errorf("%w: %s", ErrUnknownMonitor, name)
	}
	return list[idx], nil
}
