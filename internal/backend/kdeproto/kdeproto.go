// Package kdeproto talks kde-output-device-v2 / kde-output-management-v2
// through a small helper process. The helper prints device events as JSON
// lines and reads an output configuration as JSON on stdin.
package kdeproto

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/1broseidon/outputctl/internal/backend"
	"github.com/1broseidon/outputctl/internal/backend/wayland"
	"github.com/1broseidon/outputctl/internal/monitor"
)

// DefaultHelper is the helper binary used when none is configured.
const DefaultHelper = "outputctl-kde-helper"

// Features are the capabilities of the KDE output protocols.
var Features = monitor.Features{VRR: true, Primary: true, FractionalScaling: true, HDR: true}

// VRR policies of kde_output_device_v2.
const (
	VRRNever     uint32 = 0
	VRRAlways    uint32 = 1
	VRRAutomatic uint32 = 2
)

// Configuration is the document the helper applies atomically.
type Configuration struct {
	Outputs []OutputConfig `json:"outputs"`
}

// OutputConfig configures one output device.
type OutputConfig struct {
	Device    uint32  `json:"device"`
	Name      string  `json:"name"`
	Enabled   bool    `json:"enabled"`
	Mode      string  `json:"mode,omitempty"`
	X         int     `json:"x"`
	Y         int     `json:"y"`
	Scale     float64 `json:"scale"`
	Transform int     `json:"transform"`
	Priority  uint32  `json:"priority"`
	VRRPolicy uint32  `json:"vrr_policy"`
}

// Adapter implements backend.Adapter over the helper.
type Adapter struct {
	source wayland.Source
	runner backend.Runner
	helper string
	logger *slog.Logger
}

// New returns an Adapter that runs helper for both directions.
func New(runner backend.Runner, helper string, logger *slog.Logger) *Adapter {
	if helper == "" {
		helper = DefaultHelper
	}
	return NewWithSource(wayland.CommandSource{Name: helper, Args: []string{"dump"}}, runner, helper, logger)
}

// NewWithSource returns an Adapter reading device events from src.
func NewWithSource(src wayland.Source, runner backend.Runner, helper string, logger *slog.Logger) *Adapter {
	if runner == nil {
		runner = backend.ExecRunner{}
	}
	if helper == "" {
		helper = DefaultHelper
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{source: src, runner: runner, helper: helper, logger: logger}
}

func (a *Adapter) Kind() backend.Kind         { return backend.KindKDE }
func (a *Adapter) Features() monitor.Features { return Features }

// Fetch collects one batch of device events. Each device must send its own
// done event before the global done.
func (a *Adapter) Fetch(ctx context.Context) ([]monitor.Monitor, error) {
	acc := wayland.NewAccumulator(wayland.Options{
		Features:    Features,
		UsesModeID:  true,
		PerHeadDone: true,
	})
	monitors, err := wayland.Collect(ctx, a.source, acc)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("fetched output devices", "count", len(monitors))
	return monitors, nil
}

// BuildConfiguration converts monitors to the helper's document. The
// primary monitor gets priority 1 and the others follow in list order.
func BuildConfiguration(monitors []monitor.Monitor) Configuration {
	cfg := Configuration{Outputs: make([]OutputConfig, 0, len(monitors))}
	next := uint32(2)
	for _, m := range monitors {
		oc := OutputConfig{
			Device:    m.ID,
			Name:      m.Name,
			Enabled:   m.Enabled,
			Mode:      m.Mode,
			X:         m.Offset.X,
			Y:         m.Offset.Y,
			Scale:     m.Scale,
			Transform: int(m.Transform),
			VRRPolicy: VRRNever,
		}
		if m.VRR {
			oc.VRRPolicy = VRRAutomatic
		}
		if m.Enabled {
			if m.Primary {
				oc.Priority = 1
			} else {
				oc.Priority = next
				next++
			}
		}
		cfg.Outputs = append(cfg.Outputs, oc)
	}
	return cfg
}

// Apply sends the configuration to the helper.
func (a *Adapter) Apply(ctx context.Context, monitors []monitor.Monitor) error {
	payload, err := json.Marshal(BuildConfiguration(monitors))
	if err != nil {
		return fmt.Errorf("%w: %w", backend.ErrConversion, err)
	}
	if _, err := a.runner.Run(ctx, payload, a.helper, "apply"); err != nil {
		return fmt.Errorf("%w: %w", backend.ErrTransport, err)
	}
	return nil
}

// Persist is not supported; KScreen owns persistence on KDE.
func (a *Adapter) Persist(ctx context.Context, monitors []monitor.Monitor) error {
	return fmt.Errorf("kde output protocol: %w", backend.ErrUnsupported)
}
