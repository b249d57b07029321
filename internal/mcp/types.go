package mcp

import (
	"time"

	"github.com/1broseidon/outputctl/internal/monitor"
)

// Empty is the input of tools that take no arguments.
type Empty struct{}

// StatusOutput is the output for the get_status tool.
type StatusOutput struct {
	Backend     string     `json:"backend"`
	Fetched     bool       `json:"fetched"`
	Dirty       bool       `json:"dirty" jsonschema:"True when there are edits that have not been applied"`
	Monitors    int        `json:"monitors"`
	LastError   string     `json:"last_error,omitempty"`
	PendingID   string     `json:"pending_id,omitempty" jsonschema:"ID of the applied change awaiting confirmation"`
	PendingTill *time.Time `json:"pending_until,omitempty" jsonschema:"When the pending change reverts unless confirmed"`
}

// ListMonitorsInput is the input for the list_monitors tool.
type ListMonitorsInput struct {
	Refresh bool `json:"refresh,omitempty" jsonschema:"Re-read the live configuration first, dropping unapplied edits"`
}

// MonitorInfo describes one monitor.
type MonitorInfo struct {
	Name      string   `json:"name"`
	Make      string   `json:"make,omitempty"`
	Model     string   `json:"model,omitempty"`
	Enabled   bool     `json:"enabled"`
	X         int      `json:"x"`
	Y         int      `json:"y"`
	Width     int      `json:"width" jsonschema:"Mode width in pixels"`
	Height    int      `json:"height" jsonschema:"Mode height in pixels"`
	Refresh   int      `json:"refresh" jsonschema:"Refresh rate in Hz"`
	Scale     float64  `json:"scale"`
	Transform string   `json:"transform"`
	Primary   bool     `json:"primary"`
	VRR       bool     `json:"vrr"`
	Modes     []string `json:"modes" jsonschema:"Available modes as WIDTHxHEIGHT@RATE"`
}

// ListMonitorsOutput is the output for the list_monitors tool.
type ListMonitorsOutput struct {
	Monitors []MonitorInfo `json:"monitors"`
}

// SetMonitorInput is the input for the set_monitor tool.
type SetMonitorInput struct {
	Name      string   `json:"name" jsonschema:"Output name, e.g. DP-1"`
	Enabled   *bool    `json:"enabled,omitempty" jsonschema:"Turn the output on or off"`
	Width     int      `json:"width,omitempty" jsonschema:"Mode width; requires height"`
	Height    int      `json:"height,omitempty" jsonschema:"Mode height; requires width"`
	Refresh   int      `json:"refresh,omitempty" jsonschema:"Refresh rate in Hz; the closest offered rate is used when absent"`
	Scale     *float64 `json:"scale,omitempty" jsonschema:"Requested scale; the nearest legal scale is committed"`
	Transform string   `json:"transform,omitempty" jsonschema:"normal, 90, 180, 270, flipped, flipped-90, flipped-180 or flipped-270"`
	Primary   bool     `json:"primary,omitempty" jsonschema:"Make this the primary output"`
	VRR       *bool    `json:"vrr,omitempty" jsonschema:"Adaptive sync on or off"`
}

// SetMonitorOutput is the output for the set_monitor tool.
type SetMonitorOutput struct {
	Monitor MonitorInfo `json:"monitor"`
	Scale   float64     `json:"committed_scale,omitempty"`
}

// MoveMonitorInput is the input for the move_monitor tool.
type MoveMonitorInput struct {
	Name string `json:"name" jsonschema:"Output name"`
	DX   int    `json:"dx" jsonschema:"Horizontal delta in logical pixels"`
	DY   int    `json:"dy" jsonschema:"Vertical delta in logical pixels"`
}

// MoveMonitorOutput is the output for the move_monitor tool.
type MoveMonitorOutput struct {
	Outcome  string        `json:"outcome" jsonschema:"snapped, moved or reverted"`
	Monitors []MonitorInfo `json:"monitors"`
}

// ApplyLayoutInput is the input for the apply_layout tool.
type ApplyLayoutInput struct {
	NoConfirm bool `json:"no_confirm,omitempty" jsonschema:"Apply without the automatic revert timer"`
}

// ApplyLayoutOutput is the output for the apply_layout tool.
type ApplyLayoutOutput struct {
	ID       string     `json:"id,omitempty" jsonschema:"Pass to confirm_layout or revert_layout"`
	Deadline *time.Time `json:"deadline,omitempty"`
}

// TransactionInput addresses the pending change.
type TransactionInput struct {
	ID string `json:"id,omitempty" jsonschema:"ID returned by apply_layout; empty means the pending change"`
}

// DoneOutput reports a completed action.
type DoneOutput struct {
	Done bool `json:"done"`
}

func toInfo(m monitor.Monitor) MonitorInfo {
	info := MonitorInfo{
		Name:      m.Name,
		Make:      m.Make,
		Model:     m.Model,
		Enabled:   m.Enabled,
		X:         m.Offset.X,
		Y:         m.Offset.Y,
		Width:     m.Size.Width,
		Height:    m.Size.Height,
		Refresh:   m.RefreshRate,
		Scale:     m.Scale,
		Transform: m.Transform.String(),
		Primary:   m.Primary,
		VRR:       m.VRR,
		Modes:     []string{},
	}
	for _, mode := range m.AvailableModes {
		for _, rr := range mode.RefreshRates {
			info.Modes = append(info.Modes, monitor.SyntheticModeID(mode.Size, rr.Rate))
		}
	}
	return info
}

func toInfos(list []monitor.Monitor) []MonitorInfo {
	out := make([]MonitorInfo, 0, len(list))
	for _, m := range list {
		out = append(out, toInfo(m))
	}
	return out
}
