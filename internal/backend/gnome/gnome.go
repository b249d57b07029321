// Package gnome configures monitors through Mutter's DisplayConfig D-Bus
// interface.
package gnome

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"

	"github.com/1broseidon/outputctl/internal/backend"
	"github.com/1broseidon/outputctl/internal/monitor"
)

// Features are the capabilities of Mutter. VRR is set per monitor from
// its properties.
var Features = monitor.Features{Primary: true, FractionalScaling: true, VRR: true}

// Mutter lists each variable-refresh mode next to its fixed twin, tagged
// with this value of the "refresh-rate-mode" mode property.
const refreshVariable = "variable"

// Layout modes reported in the "layout-mode" state property.
const (
	LayoutLogical  uint32 = 1
	LayoutPhysical uint32 = 2
)

var errNoCurrentMode = errors.New("no current mode")

// Adapter implements backend.Adapter for GNOME.
type Adapter struct {
	bus    DisplayConfig
	logger *slog.Logger
}

// New returns an Adapter that talks to bus.
func New(bus DisplayConfig, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{bus: bus, logger: logger}
}

func (a *Adapter) Kind() backend.Kind         { return backend.KindGNOME }
func (a *Adapter) Features() monitor.Features { return Features }

func (a *Adapter) Fetch(ctx context.Context) ([]monitor.Monitor, error) {
	st, err := a.bus.GetCurrentState(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: GetCurrentState: %w", backend.ErrTransport, err)
	}
	monitors, err := Convert(st)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("fetched monitors", "backend", backend.KindGNOME, "serial", st.Serial, "count", len(monitors), "layout_mode", LayoutMode(st))
	return monitors, nil
}

// LayoutMode returns the layout mode property, defaulting to logical.
func LayoutMode(st State) uint32 {
	if v, ok := st.Properties["layout-mode"]; ok {
		if mode, ok := v.Value().(uint32); ok {
			return mode
		}
	}
	return LayoutLogical
}

func boolProp(props map[string]dbus.Variant, key string) bool {
	v, ok := props[key]
	if !ok {
		return false
	}
	b, _ := v.Value().(bool)
	return b
}

func stringProp(props map[string]dbus.Variant, key string) string {
	v, ok := props[key]
	if !ok {
		return ""
	}
	s, _ := v.Value().(string)
	return s
}

// Convert turns a GetCurrentState reply into canonical monitors. Physical
// monitors are indexed in reply order. A monitor that is not part of any
// logical monitor is disabled; one that is must have a current mode.
func Convert(st State) ([]monitor.Monitor, error) {
	logicalOf := make(map[string]*LogicalMonitor)
	for i := range st.Logical {
		for _, spec := range st.Logical[i].Monitors {
			logicalOf[spec.Connector] = &st.Logical[i]
		}
	}

	out := make([]monitor.Monitor, 0, len(st.Monitors))
	for i, pm := range st.Monitors {
		m, err := convertMonitor(uint32(i), pm, logicalOf[pm.Spec.Connector])
		if err != nil {
			return nil, fmt.Errorf("%w: monitor %s: %w", backend.ErrConversion, pm.Spec.Connector, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func convertMonitor(id uint32, pm PhysicalMonitor, lm *LogicalMonitor) (monitor.Monitor, error) {
	var current, preferred *Mode
	hasVariable := false
	entries := make([]monitor.ModeEntry, 0, len(pm.Modes))
	for i := range pm.Modes {
		mode := &pm.Modes[i]
		if boolProp(mode.Properties, "is-current") {
			current = mode
		}
		if boolProp(mode.Properties, "is-preferred") && preferred == nil {
			preferred = mode
		}
		if isVariable(mode) {
			hasVariable = true
			continue
		}
		entries = append(entries, monitor.ModeEntry{
			ID:              mode.ID,
			Size:            monitor.Size{Width: int(mode.Width), Height: int(mode.Height)},
			RefreshHz:       mode.Refresh,
			SupportedScales: mode.SupportedScales,
		})
	}

	seed := current
	if lm == nil {
		if seed == nil {
			seed = preferred
		}
		if seed == nil && len(pm.Modes) > 0 {
			seed = &pm.Modes[0]
		}
	}
	if seed == nil {
		return monitor.Monitor{}, errNoCurrentMode
	}

	scale := 1.0
	if lm != nil && lm.Scale > 0 {
		scale = lm.Scale
	}
	m, err := monitor.New(id, pm.Spec.Connector, monitor.Size{Width: int(seed.Width), Height: int(seed.Height)}, scale)
	if err != nil {
		return monitor.Monitor{}, err
	}
	m.Make = pm.Spec.Vendor
	m.Model = pm.Spec.Product
	m.Serial = pm.Spec.Serial
	if name := stringProp(pm.Properties, "display-name"); name != "" && m.Model == "" {
		m.Model = name
	}
	m.RefreshRate = monitor.RoundRefresh(seed.Refresh)
	m.Features = Features
	m.Features.VRR = hasVariable || boolProp(pm.Properties, "is-vrr-allowed")
	m.VRR = m.Features.VRR && (isVariable(seed) || boolProp(pm.Properties, "vrr"))
	m.UsesModeID = true
	m.AvailableModes = monitor.BuildModes(entries)
	m.Mode = seed.ID
	if id, ok := m.ModeIDFor(m.Size, m.RefreshRate); ok {
		m.Mode = id
	}

	if lm != nil {
		m.Enabled = true
		m.Offset = monitor.Offset{X: int(lm.X), Y: int(lm.Y)}
		m.Primary = lm.Primary
		m.Transform = monitor.Transform(lm.Transform)
		if !m.Transform.Valid() {
			m.Transform = monitor.TransformNormal
		}
	}
	return m, nil
}

func isVariable(mode *Mode) bool {
	return stringProp(mode.Properties, "refresh-rate-mode") == refreshVariable
}

// variableModeFor returns the id of the variable-refresh twin of the given
// size and rate on connector, if Mutter lists one.
func variableModeFor(st State, connector string, size monitor.Size, rate int) (string, bool) {
	for _, pm := range st.Monitors {
		if pm.Spec.Connector != connector {
			continue
		}
		for i := range pm.Modes {
			mode := &pm.Modes[i]
			if isVariable(mode) && int(mode.Width) == size.Width && int(mode.Height) == size.Height &&
				monitor.RoundRefresh(mode.Refresh) == rate {
				return mode.ID, true
			}
		}
	}
	return "", false
}

// withVariableModes swaps in variable-refresh mode ids for monitors that
// want adaptive sync. Without a listed twin the fixed mode is kept.
func withVariableModes(logical []LogicalMonitorConfig, monitors []monitor.Monitor, st State) {
	for i := range logical {
		for j := range logical[i].Monitors {
			assign := &logical[i].Monitors[j]
			idx := monitor.FindByName(monitors, assign.Connector)
			if idx < 0 || !monitors[idx].VRR {
				continue
			}
			m := &monitors[idx]
			if id, ok := variableModeFor(st, m.Name, m.Size, m.RefreshRate); ok {
				assign.ModeID = id
			}
		}
	}
}

// LogicalConfig builds the ApplyMonitorsConfig argument: one logical monitor
// per enabled monitor. If none is marked primary the first enabled one is.
func LogicalConfig(monitors []monitor.Monitor) []LogicalMonitorConfig {
	out := make([]LogicalMonitorConfig, 0, len(monitors))
	hasPrimary := false
	for _, m := range monitors {
		if !m.Enabled {
			continue
		}
		mode := m.Mode
		if id, ok := m.ModeIDFor(m.Size, m.RefreshRate); ok {
			mode = id
		}
		out = append(out, LogicalMonitorConfig{
			X:         int32(m.Offset.X),
			Y:         int32(m.Offset.Y),
			Scale:     m.Scale,
			Transform: uint32(m.Transform),
			Primary:   m.Primary && !hasPrimary,
			Monitors: []MonitorAssignment{{
				Connector:  m.Name,
				ModeID:     mode,
				Properties: map[string]dbus.Variant{},
			}},
		})
		hasPrimary = hasPrimary || m.Primary
	}
	if !hasPrimary && len(out) > 0 {
		out[0].Primary = true
	}
	return out
}

func (a *Adapter) apply(ctx context.Context, monitors []monitor.Monitor, method uint32) error {
	// The serial must be current or Mutter rejects the call.
	st, err := a.bus.GetCurrentState(ctx)
	if err != nil {
		return fmt.Errorf("%w: GetCurrentState: %w", backend.ErrTransport, err)
	}
	logical := LogicalConfig(monitors)
	if len(logical) == 0 {
		return fmt.Errorf("%w: at least one monitor must stay enabled", backend.ErrConversion)
	}
	withVariableModes(logical, monitors, st)

	props := map[string]dbus.Variant{}
	if boolProp(st.Properties, "supports-changing-layout-mode") {
		props["layout-mode"] = dbus.MakeVariant(LayoutMode(st))
	}
	if err := a.bus.ApplyMonitorsConfig(ctx, st.Serial, method, logical, props); err != nil {
		return fmt.Errorf("%w: ApplyMonitorsConfig: %w", backend.ErrTransport, err)
	}
	a.logger.Debug("applied monitors", "backend", backend.KindGNOME, "serial", st.Serial, "method", method)
	return nil
}

// Apply configures the monitors until the session ends.
func (a *Adapter) Apply(ctx context.Context, monitors []monitor.Monitor) error {
	return a.apply(ctx, monitors, MethodTemporary)
}

// Persist configures the monitors and lets Mutter store them in
// monitors.xml.
func (a *Adapter) Persist(ctx context.Context, monitors []monitor.Monitor) error {
	return a.apply(ctx, monitors, MethodPersistent)
}
