// Package hyprland configures Hyprland monitors through hyprctl and a
// generated monitors.conf fragment.
package hyprland

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/1broseidon/outputctl/internal/backend"
	"github.com/1broseidon/outputctl/internal/monitor"
)

// DefaultCommand is the Hyprland control CLI.
const DefaultCommand = "hyprctl"

// Features are the capabilities of Hyprland. It has no primary monitor.
var Features = monitor.Features{VRR: true, FractionalScaling: true}

// Monitor matches one entry of `hyprctl -j monitors all`.
type Monitor struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Make           string   `json:"make"`
	Model          string   `json:"model"`
	Serial         string   `json:"serial"`
	Width          int      `json:"width"`
	Height         int      `json:"height"`
	RefreshRate    float64  `json:"refreshRate"`
	X              int      `json:"x"`
	Y              int      `json:"y"`
	Scale          float64  `json:"scale"`
	Transform      int      `json:"transform"`
	Vrr            bool     `json:"vrr"`
	Disabled       bool     `json:"disabled"`
	MirrorOf       string   `json:"mirrorOf"`
	AvailableModes []string `json:"availableModes"`
}

// Adapter implements backend.Adapter for Hyprland.
type Adapter struct {
	runner     backend.Runner
	command    string
	configPath string
	logger     *slog.Logger
}

// New returns an Adapter. configPath is where Persist writes the monitor
// fragment; empty selects DefaultConfigPath.
func New(runner backend.Runner, command, configPath string, logger *slog.Logger) *Adapter {
	if runner == nil {
		runner = backend.ExecRunner{}
	}
	if command == "" {
		command = DefaultCommand
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{runner: runner, command: command, configPath: configPath, logger: logger}
}

func (a *Adapter) Kind() backend.Kind         { return backend.KindHyprland }
func (a *Adapter) Features() monitor.Features { return Features }

func (a *Adapter) Fetch(ctx context.Context) ([]monitor.Monitor, error) {
	out, err := a.runner.Run(ctx, nil, a.command, "-j", "monitors", "all")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrTransport, err)
	}
	var raw []Monitor
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse %s output: %w", backend.ErrTransport, a.command, err)
	}
	monitors, err := Convert(raw)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("fetched monitors", "backend", backend.KindHyprland, "count", len(monitors))
	return monitors, nil
}

// ParseModeString parses "2560x1440@143.91Hz".
func ParseModeString(s string) (monitor.Size, float64, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "Hz")
	res, rate, ok := strings.Cut(s, "@")
	if !ok {
		return monitor.Size{}, 0, fmt.Errorf("mode %q: missing refresh rate", s)
	}
	ws, hs, ok := strings.Cut(res, "x")
	if !ok {
		return monitor.Size{}, 0, fmt.Errorf("mode %q: bad resolution", s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil {
		return monitor.Size{}, 0, fmt.Errorf("mode %q: %w", s, err)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return monitor.Size{}, 0, fmt.Errorf("mode %q: %w", s, err)
	}
	hz, err := strconv.ParseFloat(rate, 64)
	if err != nil {
		return monitor.Size{}, 0, fmt.Errorf("mode %q: %w", s, err)
	}
	return monitor.Size{Width: w, Height: h}, hz, nil
}

// Convert turns hyprctl monitors into canonical monitors. Hyprland has no
// mode identifiers, so modes are indexed in reply order.
func Convert(raw []Monitor) ([]monitor.Monitor, error) {
	ids := assignIDs(raw)
	out := make([]monitor.Monitor, 0, len(raw))
	for i, h := range raw {
		m, err := convertMonitor(h, ids[i])
		if err != nil {
			return nil, fmt.Errorf("%w: monitor %s: %w", backend.ErrConversion, h.Name, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// assignIDs keeps hyprctl ids where they are usable and unique. Disabled
// monitors report -1, so those and any repeats get ids above the largest
// kept one, handed out in name order.
func assignIDs(raw []Monitor) []uint32 {
	ids := make([]uint32, len(raw))
	used := make(map[int64]bool, len(raw))
	var next int64
	var missing []int
	for i, h := range raw {
		if h.ID < 0 || h.ID > math.MaxUint32 || used[h.ID] {
			missing = append(missing, i)
			continue
		}
		used[h.ID] = true
		ids[i] = uint32(h.ID)
		next = max(next, h.ID+1)
	}
	sort.SliceStable(missing, func(a, b int) bool {
		return raw[missing[a]].Name < raw[missing[b]].Name
	})
	for _, i := range missing {
		for used[next] {
			next++
		}
		used[next] = true
		ids[i] = uint32(next)
	}
	return ids
}

func convertMonitor(h Monitor, id uint32) (monitor.Monitor, error) {
	entries := make([]monitor.ModeEntry, 0, len(h.AvailableModes)+1)
	for i, s := range h.AvailableModes {
		size, hz, err := ParseModeString(s)
		if err != nil {
			return monitor.Monitor{}, err
		}
		entries = append(entries, monitor.ModeEntry{ID: strconv.Itoa(i), Size: size, RefreshHz: hz})
	}

	size := monitor.Size{Width: h.Width, Height: h.Height}
	hz := h.RefreshRate
	if size.Width <= 0 || size.Height <= 0 {
		if !h.Disabled || len(entries) == 0 {
			return monitor.Monitor{}, fmt.Errorf("no current mode")
		}
		size, hz = entries[0].Size, entries[0].RefreshHz
	}
	// Custom modes are not listed; keep the current one selectable.
	entries = append(entries, monitor.ModeEntry{ID: strconv.Itoa(len(entries)), Size: size, RefreshHz: hz})

	scale := h.Scale
	if scale <= 0 {
		scale = 1
	}
	m, err := monitor.New(id, h.Name, size, scale)
	if err != nil {
		return monitor.Monitor{}, err
	}
	m.Make = h.Make
	m.Model = h.Model
	m.Serial = h.Serial
	m.Enabled = !h.Disabled
	m.Offset = monitor.Offset{X: h.X, Y: h.Y}
	m.RefreshRate = monitor.RoundRefresh(hz)
	m.Transform = monitor.Transform(h.Transform)
	if !m.Transform.Valid() {
		m.Transform = monitor.TransformNormal
	}
	m.VRR = h.Vrr
	m.Features = Features
	m.AvailableModes = monitor.BuildModes(entries)
	m.Mode = monitor.SyntheticModeID(size, m.RefreshRate)
	return m, nil
}

// Apply sends one keyword per monitor in a single batch.
func (a *Adapter) Apply(ctx context.Context, monitors []monitor.Monitor) error {
	if len(monitors) == 0 {
		return nil
	}
	cmds := make([]string, 0, len(monitors))
	for _, m := range monitors {
		cmds = append(cmds, "keyword monitor "+FormatRule(RuleFor(m)))
	}
	out, err := a.runner.Run(ctx, nil, a.command, "--batch", strings.Join(cmds, " ; "))
	if err != nil {
		return fmt.Errorf("%w: %w", backend.ErrTransport, err)
	}
	// hyprctl exits 0 and reports per-command errors on stdout.
	reply := strings.ToLower(string(out))
	if strings.Contains(reply, "error") || strings.Contains(reply, "invalid") {
		return fmt.Errorf("%w: %s: %s", backend.ErrTransport, a.command, strings.TrimSpace(string(out)))
	}
	return nil
}

// Persist writes the monitor rules to the configuration fragment.
func (a *Adapter) Persist(ctx context.Context, monitors []monitor.Monitor) error {
	path := a.configPath
	if path == "" {
		var err error
		if path, err = DefaultConfigPath(); err != nil {
			return err
		}
	}
	if err := WriteConfig(path, monitors); err != nil {
		return err
	}
	a.logger.Info("wrote monitor configuration", "path", path, "count", len(monitors))
	return nil
}
