package backend

import (
	"context"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// Env is the subset of the process environment used for detection.
type Env struct {
	CurrentDesktop    string // XDG_CURRENT_DESKTOP
	SessionType       string // XDG_SESSION_TYPE
	HyprlandSignature string // HYPRLAND_INSTANCE_SIGNATURE
	WaylandDisplay    string // WAYLAND_DISPLAY
	X11Display        string // DISPLAY
}

// EnvFromLookup builds an Env from a getenv-style function.
func EnvFromLookup(getenv func(string) string) Env {
	return Env{
		CurrentDesktop:    getenv("XDG_CURRENT_DESKTOP"),
		SessionType:       getenv("XDG_SESSION_TYPE"),
		HyprlandSignature: getenv("HYPRLAND_INSTANCE_SIGNATURE"),
		WaylandDisplay:    getenv("WAYLAND_DISPLAY"),
		X11Display:        getenv("DISPLAY"),
	}
}

// ProcessLister returns the names of running processes.
type ProcessLister func(ctx context.Context) ([]string, error)

// RunningProcesses lists process names with gopsutil.
func RunningProcesses(ctx context.Context) ([]string, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// compositorProcesses maps well-known compositor process names to a Kind.
var compositorProcesses = []struct {
	name string
	kind Kind
}{
	{"Hyprland", KindHyprland},
	{"gnome-shell", KindGNOME},
	{"kwin_wayland", KindKDE},
	{"kwin_x11", KindKDE},
	{"sway", KindWlroots},
	{"river", KindWlroots},
	{"labwc", KindWlroots},
	{"wayfire", KindWlroots},
	{"niri", KindWlroots},
}

// Detect resolves the session's Kind from the environment. When the
// environment is ambiguous it scans running processes with procs (which may
// be nil).
func Detect(ctx context.Context, env Env, procs ProcessLister) Kind {
	if env.HyprlandSignature != "" {
		return KindHyprland
	}

	for _, desktop := range strings.Split(strings.ToLower(env.CurrentDesktop), ":") {
		switch strings.TrimSpace(desktop) {
		case "gnome", "ubuntu", "gnome-classic", "unity":
			return KindGNOME
		case "kde", "plasma":
			return KindKDE
		case "hyprland":
			return KindHyprland
		case "sway", "river", "labwc", "wayfire", "wlroots", "niri":
			return KindWlroots
		}
	}

	wayland := env.WaylandDisplay != "" || strings.EqualFold(env.SessionType, "wayland")

	if procs != nil {
		if names, err := procs(ctx); err == nil {
			for _, cp := range compositorProcesses {
				for _, name := range names {
					if name == cp.name {
						if cp.kind == KindKDE && !wayland && env.X11Display != "" {
							// kwin_x11 sessions are configured through RandR.
							return KindX11
						}
						return cp.kind
					}
				}
			}
		}
	}

	if wayland {
		return KindWlroots
	}
	if env.X11Display != "" {
		return KindX11
	}
	return KindUnknown
}
