// Package x11 configures outputs through the X RandR extension.
package x11

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/1broseidon/outputctl/internal/backend"
	"github.com/1broseidon/outputctl/internal/monitor"
)

// Features are the capabilities of RandR. It has no per-output scale.
var Features = monitor.Features{Primary: true, FixedScale: true}

// RandR rotation and reflection bits.
const (
	Rotate0   uint16 = 1
	Rotate90  uint16 = 2
	Rotate180 uint16 = 4
	Rotate270 uint16 = 8
	ReflectX  uint16 = 16
	ReflectY  uint16 = 32
)

// Output is one RandR output.
type Output struct {
	ID           uint32
	Name         string
	Connected    bool
	Crtc         uint32
	Crtcs        []uint32
	Modes        []uint32
	NumPreferred int
}

// Crtc is one RandR CRTC and its current configuration.
type Crtc struct {
	ID       uint32
	X        int
	Y        int
	Width    int
	Height   int
	Mode     uint32
	Rotation uint16
}

// Mode is one RandR mode with its refresh rate in Hz.
type Mode struct {
	ID      uint32
	Width   int
	Height  int
	Refresh float64
}

// Snapshot is the screen resources of the X server.
type Snapshot struct {
	Outputs []Output
	Crtcs   map[uint32]Crtc
	Modes   map[uint32]Mode
	Primary uint32
}

// CrtcConfig is one SetCrtcConfig call. A zero Mode disables the CRTC.
type CrtcConfig struct {
	Crtc     uint32
	X        int
	Y        int
	Mode     uint32
	Rotation uint16
	Outputs  []uint32
}

// Plan is the sequence that moves the server to a new layout: disable
// CRTCs that would not fit, resize the screen, configure CRTCs, set the
// primary output.
type Plan struct {
	Disable []uint32
	Width   int
	Height  int
	Crtcs   []CrtcConfig
	Primary uint32
}

// Server is the RandR surface the adapter needs.
type Server interface {
	Snapshot(ctx context.Context) (Snapshot, error)
	Configure(ctx context.Context, plan Plan) error
}

// Adapter implements backend.Adapter for X11.
type Adapter struct {
	server Server
	logger *slog.Logger
}

// New returns an Adapter that talks to server.
func New(server Server, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{server: server, logger: logger}
}

func (a *Adapter) Kind() backend.Kind         { return backend.KindX11 }
func (a *Adapter) Features() monitor.Features { return Features }

func (a *Adapter) Fetch(ctx context.Context) ([]monitor.Monitor, error) {
	snap, err := a.server.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrTransport, err)
	}
	monitors, err := Convert(snap)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("fetched monitors", "backend", backend.KindX11, "count", len(monitors))
	return monitors, nil
}

// FromRotation maps RandR rotation bits to a transform.
func FromRotation(rot uint16) monitor.Transform {
	var t monitor.Transform
	switch {
	case rot&Rotate90 != 0:
		t = monitor.Transform90
	case rot&Rotate180 != 0:
		t = monitor.Transform180
	case rot&Rotate270 != 0:
		t = monitor.Transform270
	}
	x, y := rot&ReflectX != 0, rot&ReflectY != 0
	if y {
		// Y reflection is X reflection plus a half turn.
		t = (t + 2) % 4
	}
	if x != y {
		t += monitor.TransformFlipped
	}
	return t
}

// ToRotation maps a transform to RandR rotation bits.
func ToRotation(t monitor.Transform) uint16 {
	rot := [4]uint16{Rotate0, Rotate90, Rotate180, Rotate270}[int(t)%4]
	if t.Flipped() {
		rot |= ReflectX
	}
	return rot
}

// Convert turns a snapshot into canonical monitors. Disconnected outputs and
// outputs without modes are skipped.
func Convert(snap Snapshot) ([]monitor.Monitor, error) {
	out := make([]monitor.Monitor, 0, len(snap.Outputs))
	for _, o := range snap.Outputs {
		if !o.Connected || len(o.Modes) == 0 {
			continue
		}
		m, err := convertOutput(snap, o)
		if err != nil {
			return nil, fmt.Errorf("%w: output %s: %w", backend.ErrConversion, o.Name, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func convertOutput(snap Snapshot, o Output) (monitor.Monitor, error) {
	entries := make([]monitor.ModeEntry, 0, len(o.Modes))
	for _, id := range o.Modes {
		mode, ok := snap.Modes[id]
		if !ok {
			continue
		}
		entries = append(entries, monitor.ModeEntry{
			ID:        strconv.FormatUint(uint64(id), 10),
			Size:      monitor.Size{Width: mode.Width, Height: mode.Height},
			RefreshHz: mode.Refresh,
		})
	}

	crtc, active := snap.Crtcs[o.Crtc]
	active = active && o.Crtc != 0 && crtc.Mode != 0

	var seed Mode
	if active {
		mode, ok := snap.Modes[crtc.Mode]
		if !ok {
			return monitor.Monitor{}, fmt.Errorf("current mode %d not listed", crtc.Mode)
		}
		seed = mode
	} else {
		// Preferred modes come first in the output's list.
		mode, ok := snap.Modes[o.Modes[0]]
		if !ok {
			return monitor.Monitor{}, fmt.Errorf("mode %d not listed", o.Modes[0])
		}
		seed = mode
	}

	m, err := monitor.New(o.ID, o.Name, monitor.Size{Width: seed.Width, Height: seed.Height}, 1)
	if err != nil {
		return monitor.Monitor{}, err
	}
	m.Enabled = active
	m.RefreshRate = monitor.RoundRefresh(seed.Refresh)
	m.Primary = o.ID == snap.Primary && active
	m.Features = Features
	m.UsesModeID = true
	m.AvailableModes = monitor.BuildModes(entries)
	m.Mode = strconv.FormatUint(uint64(seed.ID), 10)
	if id, ok := m.ModeIDFor(m.Size, m.RefreshRate); ok {
		m.Mode = id
	}
	if active {
		m.Offset = monitor.Offset{X: crtc.X, Y: crtc.Y}
		m.Transform = FromRotation(crtc.Rotation)
	}
	return m, nil
}

// BuildPlan computes the RandR calls that realize monitors on snap.
func BuildPlan(snap Snapshot, monitors []monitor.Monitor) (Plan, error) {
	var plan Plan
	outputs := make(map[string]Output, len(snap.Outputs))
	for _, o := range snap.Outputs {
		outputs[o.Name] = o
	}

	minX, minY := 0, 0
	first := true
	for _, m := range monitors {
		if !m.Enabled {
			continue
		}
		if first || m.Offset.X < minX {
			minX = m.Offset.X
		}
		if first || m.Offset.Y < minY {
			minY = m.Offset.Y
		}
		first = false
	}
	// The X screen origin is fixed at 0,0.
	minX, minY = min(minX, 0), min(minY, 0)

	used := make(map[uint32]bool)
	for _, m := range monitors {
		if m.Enabled {
			if o, ok := outputs[m.Name]; ok && o.Crtc != 0 {
				used[o.Crtc] = true
			}
		}
	}

	for _, m := range monitors {
		o, ok := outputs[m.Name]
		if !ok {
			return Plan{}, fmt.Errorf("%w: unknown output %s", backend.ErrConversion, m.Name)
		}
		if !m.Enabled {
			if o.Crtc != 0 {
				plan.Disable = append(plan.Disable, o.Crtc)
			}
			continue
		}
		if m.Scale != 1 {
			return Plan{}, fmt.Errorf("%w: output %s: scale %v", backend.ErrUnsupported, m.Name, m.Scale)
		}

		modeID := m.Mode
		if id, ok := m.ModeIDFor(m.Size, m.RefreshRate); ok {
			modeID = id
		}
		mode, err := strconv.ParseUint(modeID, 10, 32)
		if err != nil {
			return Plan{}, fmt.Errorf("%w: output %s: mode %q: %w", backend.ErrConversion, m.Name, modeID, err)
		}

		crtc := o.Crtc
		if crtc == 0 {
			for _, c := range o.Crtcs {
				if !used[c] {
					crtc = c
					used[c] = true
					break
				}
			}
		}
		if crtc == 0 {
			return Plan{}, fmt.Errorf("%w: output %s: no free CRTC", backend.ErrConversion, m.Name)
		}

		cfg := CrtcConfig{
			Crtc:     crtc,
			X:        m.Offset.X - minX,
			Y:        m.Offset.Y - minY,
			Mode:     uint32(mode),
			Rotation: ToRotation(m.Transform),
			Outputs:  []uint32{o.ID},
		}
		size := m.PostTransformSize()
		plan.Width = max(plan.Width, cfg.X+size.Width)
		plan.Height = max(plan.Height, cfg.Y+size.Height)
		plan.Crtcs = append(plan.Crtcs, cfg)
		if m.Primary && plan.Primary == 0 {
			plan.Primary = o.ID
		}
	}
	if len(plan.Crtcs) == 0 {
		return Plan{}, fmt.Errorf("%w: at least one output must stay enabled", backend.ErrConversion)
	}

	// CRTCs that stay on but sit outside the new screen must be turned off
	// before the resize.
	for _, cfg := range plan.Crtcs {
		cur, ok := snap.Crtcs[cfg.Crtc]
		if ok && cur.Mode != 0 && (cur.X+cur.Width > plan.Width || cur.Y+cur.Height > plan.Height) {
			plan.Disable = append(plan.Disable, cfg.Crtc)
		}
	}
	return plan, nil
}

func (a *Adapter) Apply(ctx context.Context, monitors []monitor.Monitor) error {
	snap, err := a.server.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", backend.ErrTransport, err)
	}
	plan, err := BuildPlan(snap, monitors)
	if err != nil {
		return err
	}
	if err := a.server.Configure(ctx, plan); err != nil {
		return fmt.Errorf("%w: %w", backend.ErrTransport, err)
	}
	a.logger.Debug("applied monitors", "backend", backend.KindX11, "screen", monitor.Size{Width: plan.Width, Height: plan.Height})
	return nil
}

// Persist is not offered; X servers keep no layout across sessions.
func (a *Adapter) Persist(context.Context, []monitor.Monitor) error {
	return fmt.Errorf("%w: x11 persist", backend.ErrUnsupported)
}
