// Package wlr drives wlroots compositors through wlr-output-management,
// using wlr-randr as the protocol client.
package wlr

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/1broseidon/outputctl/internal/backend"
	"github.com/1broseidon/outputctl/internal/backend/wayland"
	"github.com/1broseidon/outputctl/internal/monitor"
)

// DefaultCommand is the protocol client used when none is configured.
const DefaultCommand = "wlr-randr"

// Features are the capabilities of wlr-output-management.
var Features = monitor.Features{VRR: true, FractionalScaling: true}

// Output is one entry of `wlr-randr --json`.
type Output struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Make         string   `json:"make"`
	Model        string   `json:"model"`
	Serial       string   `json:"serial"`
	Enabled      bool     `json:"enabled"`
	Modes        []Mode   `json:"modes"`
	Position     Position `json:"position"`
	Transform    string   `json:"transform"`
	Scale        float64  `json:"scale"`
	AdaptiveSync bool     `json:"adaptive_sync"`
}

// Mode is one mode of an Output. Refresh is in Hz.
type Mode struct {
	Width     int32   `json:"width"`
	Height    int32   `json:"height"`
	Refresh   float64 `json:"refresh"`
	Preferred bool    `json:"preferred"`
	Current   bool    `json:"current"`
}

// Position is the output's position in the layout.
type Position struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

// Adapter implements backend.Adapter for wlroots compositors.
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

func (a *Adapter) Kind() backend.Kind         { return backend.KindWlroots }
func (a *Adapter) Features() monitor.Features { return Features }

// Fetch queries the compositor and rebuilds the protocol event stream that
// produced the reply, so conversion goes through the same accumulator as a
// live protocol client.
func (a *Adapter) Fetch(ctx context.Context) ([]monitor.Monitor, error) {
	out, err := a.runner.Run(ctx, nil, a.command, "--json")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrTransport, err)
	}
	var outputs []Output
	if err := json.Unmarshal(out, &outputs); err != nil {
		return nil, fmt.Errorf("%w: parse %s output: %w", backend.ErrTransport, a.command, err)
	}

	acc := wayland.NewAccumulator(wayland.Options{Features: Features})
	monitors, err := wayland.Collect(ctx, wayland.SliceSource(Events(outputs)), acc)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("fetched outputs", "backend", backend.KindWlroots, "count", len(monitors))
	return monitors, nil
}

// Events translates wlr-randr outputs into the wlr-output-management event
// sequence a protocol client would have received.
func Events(outputs []Output) []wayland.Event {
	var events []wayland.Event
	modeID := uint32(0)
	for i, o := range outputs {
		head := uint32(i + 1)
		events = append(events,
			wayland.Event{Kind: wayland.EventHead, Head: head},
			wayland.Event{Kind: wayland.EventName, Text: o.Name},
			wayland.Event{Kind: wayland.EventDescription, Text: o.Description},
			wayland.Event{Kind: wayland.EventMake, Text: o.Make},
			wayland.Event{Kind: wayland.EventModel, Text: o.Model},
			wayland.Event{Kind: wayland.EventSerial, Text: o.Serial},
			wayland.Event{Kind: wayland.EventEnabled, Enabled: o.Enabled},
		)
		for _, m := range o.Modes {
			modeID++
			events = append(events,
				wayland.Event{Kind: wayland.EventMode, Mode: modeID},
				wayland.Event{Kind: wayland.EventModeSize, Mode: modeID, Width: m.Width, Height: m.Height},
				wayland.Event{Kind: wayland.EventModeRefresh, Mode: modeID, Refresh: int32(math.Round(m.Refresh * 1000))},
			)
			if m.Preferred {
				events = append(events, wayland.Event{Kind: wayland.EventModePreferred, Mode: modeID})
			}
			if m.Current && o.Enabled {
				events = append(events, wayland.Event{Kind: wayland.EventCurrentMode, Head: head, Mode: modeID})
			}
		}
		if o.Enabled {
			t, err := monitor.ParseTransform(o.Transform)
			if err != nil {
				t = monitor.TransformNormal
			}
			scale := o.Scale
			if scale <= 0 {
				scale = 1
			}
			var vrr int32
			if o.AdaptiveSync {
				vrr = 1
			}
			events = append(events,
				wayland.Event{Kind: wayland.EventPosition, Head: head, X: o.Position.X, Y: o.Position.Y},
				wayland.Event{Kind: wayland.EventTransform, Head: head, Value: int32(t)},
				wayland.Event{Kind: wayland.EventScale, Head: head, Scale: scale},
				wayland.Event{Kind: wayland.EventAdaptiveSync, Head: head, Value: vrr},
			)
		}
	}
	return append(events, wayland.Event{Kind: wayland.EventDone})
}

// Args builds the wlr-randr arguments that configure monitors.
func Args(monitors []monitor.Monitor) []string {
	var args []string
	for _, m := range monitors {
		args = append(args, "--output", m.Name)
		if !m.Enabled {
			args = append(args, "--off")
			continue
		}
		adaptive := "disabled"
		if m.VRR {
			adaptive = "enabled"
		}
		args = append(args,
			"--on",
			"--mode", fmt.Sprintf("%dx%d@%dHz", m.Size.Width, m.Size.Height, m.RefreshRate),
			"--pos", fmt.Sprintf("%d,%d", m.Offset.X, m.Offset.Y),
			"--scale", strconv.FormatFloat(m.Scale, 'f', -1, 64),
			"--transform", m.Transform.String(),
			"--adaptive-sync", adaptive,
		)
	}
	return args
}

// Apply configures all outputs in one wlr-randr invocation so the
// compositor sees a single atomic configuration.
func (a *Adapter) Apply(ctx context.Context, monitors []monitor.Monitor) error {
	if len(monitors) == 0 {
		return nil
	}
	if _, err := a.runner.Run(ctx, nil, a.command, Args(monitors)...); err != nil {
		return fmt.Errorf("%w: %w", backend.ErrTransport, err)
	}
	return nil
}

// Persist is not supported: wlr-output-management has no persistent store.
func (a *Adapter) Persist(ctx context.Context, monitors []monitor.Monitor) error {
	return fmt.Errorf("wlroots: %w", backend.ErrUnsupported)
}
