// Package kde configures KDE Plasma outputs with kscreen-doctor.
package kde

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/1broseidon/outputctl/internal/backend"
	"github.com/1broseidon/outputctl/internal/monitor"
)

// DefaultCommand is the KScreen CLI.
const DefaultCommand = "kscreen-doctor"

// Features are the capabilities of KScreen.
var Features = monitor.Features{VRR: true, Primary: true, FractionalScaling: true, HDR: true}

// KScreen rotation flags.
const (
	RotationNone     = 1
	RotationLeft     = 2
	RotationInverted = 4
	RotationRight    = 8
)

// Document is the reply of `kscreen-doctor -j`.
type Document struct {
	Outputs []Output `json:"outputs"`
}

// Output is one KScreen output.
type Output struct {
	ID            uint32   `json:"id"`
	Name          string   `json:"name"`
	Enabled       bool     `json:"enabled"`
	Connected     bool     `json:"connected"`
	CurrentModeID string   `json:"currentModeId"`
	PreferredMode []string `json:"preferredModes,omitempty"`
	Modes         []Mode   `json:"modes"`
	Pos           Point    `json:"pos"`
	Rotation      int      `json:"rotation"`
	Scale         float64  `json:"scale"`
	Priority      int      `json:"priority"`
	VRRPolicy     int      `json:"vrrPolicy"`
}

// Mode is one KScreen mode.
type Mode struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	RefreshRate float64 `json:"refreshRate"`
	Size        Extent  `json:"size"`
}

// Point is a position.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Extent is a size.
type Extent struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Adapter implements backend.Adapter for KDE.
type Adapter struct {
	runner  backend.Runner
	command string
	logger  *slog.Logger
}

// New returns an Adapter. An empty command selects DefaultCommand.
func New(runner backend.Runner, command string, logger *slog.Logger) *Adapter {
	if runner == nil {
		runner = backend.ExecRunner{}
	}
	if command == "" {
		command = DefaultCommand
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{runner: runner, command: command, logger: logger}
}

func (a *Adapter) Kind() backend.Kind         { return backend.KindKDE }
func (a *Adapter) Features() monitor.Features { return Features }

func (a *Adapter) Fetch(ctx context.Context) ([]monitor.Monitor, error) {
	out, err := a.runner.Run(ctx, nil, a.command, "-j")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrTransport, err)
	}
	var doc Document
	if err := json.Unmarshal(out, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse %s output: %w", backend.ErrTransport, a.command, err)
	}
	monitors, err := Convert(doc)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("fetched outputs", "backend", backend.KindKDE, "count", len(monitors))
	return monitors, nil
}

// Convert turns a KScreen document into monitors. Disconnected outputs are
// skipped; an enabled output whose current mode is not among its modes
// fails the whole conversion.
func Convert(doc Document) ([]monitor.Monitor, error) {
	out := make([]monitor.Monitor, 0, len(doc.Outputs))
	for _, o := range doc.Outputs {
		if !o.Connected {
			continue
		}
		m, err := convertOutput(o)
		if err != nil {
			return nil, fmt.Errorf("%w: output %s: %w", backend.ErrConversion, o.Name, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func convertOutput(o Output) (monitor.Monitor, error) {
	entries := make([]monitor.ModeEntry, 0, len(o.Modes))
	var current, seed *Mode
	for i := range o.Modes {
		mode := &o.Modes[i]
		entries = append(entries, monitor.ModeEntry{
			ID:        mode.ID,
			Size:      monitor.Size{Width: mode.Size.Width, Height: mode.Size.Height},
			RefreshHz: mode.RefreshRate,
		})
		if mode.ID == o.CurrentModeID {
			current = mode
		}
	}

	seed = current
	if seed == nil {
		if o.Enabled {
			return monitor.Monitor{}, fmt.Errorf("current mode %q not found", o.CurrentModeID)
		}
		for i := range o.Modes {
			if len(o.PreferredMode) > 0 && o.Modes[i].ID == o.PreferredMode[0] {
				seed = &o.Modes[i]
				break
			}
		}
		if seed == nil && len(o.Modes) > 0 {
			seed = &o.Modes[0]
		}
		if seed == nil {
			return monitor.Monitor{}, fmt.Errorf("no modes")
		}
	}

	scale := o.Scale
	if scale <= 0 {
		scale = 1
	}
	size := monitor.Size{Width: seed.Size.Width, Height: seed.Size.Height}
	m, err := monitor.New(o.ID, o.Name, size, scale)
	if err != nil {
		return monitor.Monitor{}, err
	}
	m.Enabled = o.Enabled
	m.Offset = monitor.Offset{X: o.Pos.X, Y: o.Pos.Y}
	m.RefreshRate = monitor.RoundRefresh(seed.RefreshRate)
	m.Transform = fromRotation(o.Rotation)
	m.Primary = o.Enabled && o.Priority == 1
	m.VRR = o.VRRPolicy != 0
	m.Features = Features
	m.UsesModeID = true
	m.AvailableModes = monitor.BuildModes(entries)
	m.Mode = seed.ID
	if id, ok := m.ModeIDFor(size, m.RefreshRate); ok {
		m.Mode = id
	}
	return m, nil
}

func fromRotation(r int) monitor.Transform {
	switch r {
	case RotationLeft:
		return monitor.Transform90
	case RotationInverted:
		return monitor.Transform180
	case RotationRight:
		return monitor.Transform270
	default:
		return monitor.TransformNormal
	}
}

// rotationName is the kscreen-doctor spelling of a transform. KScreen has
// no mirroring, so flipped transforms keep only their rotation.
func rotationName(t monitor.Transform) string {
	switch t.Rotation() {
	case 90:
		return "left"
	case 180:
		return "inverted"
	case 270:
		return "right"
	default:
		return "normal"
	}
}

// Args builds the kscreen-doctor arguments for monitors. Enabled monitors
// get priorities with the primary first.
func Args(monitors []monitor.Monitor) []string {
	var args []string
	next := 2
	for _, m := range monitors {
		prefix := "output." + m.Name + "."
		if !m.Enabled {
			args = append(args, prefix+"disable")
			continue
		}
		priority := 1
		if !m.Primary {
			priority = next
			next++
		}
		policy := "never"
		if m.VRR {
			policy = "automatic"
		}
		args = append(args,
			prefix+"enable",
			prefix+"mode."+m.Mode,
			fmt.Sprintf("%sposition.%d,%d", prefix, m.Offset.X, m.Offset.Y),
			prefix+"scale."+strconv.FormatFloat(m.Scale, 'f', -1, 64),
			prefix+"rotation."+rotationName(m.Transform),
			prefix+"priority."+strconv.Itoa(priority),
			prefix+"vrrpolicy."+policy,
		)
	}
	return args
}

func (a *Adapter) Apply(ctx context.Context, monitors []monitor.Monitor) error {
	if len(monitors) == 0 {
		return nil
	}
	if _, err := a.runner.Run(ctx, nil, a.command, Args(monitors)...); err != nil {
		return fmt.Errorf("%w: %w", backend.ErrTransport, err)
	}
	return nil
}

// Persist applies through KScreen, which stores every configuration it
// applies.
func (a *Adapter) Persist(ctx context.Context, monitors []monitor.Monitor) error {
	return a.Apply(ctx, monitors)
}
