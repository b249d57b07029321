package config

import (
	"fmt"
	"strings"
)

// Explain returns the effective value at the given YAML-like path and its source.
//
// Supported paths:
//
//	backend
//	log_level
//	snap_threshold
//	disallow_gaps
//	confirm_timeout_seconds
//	persist_on_confirm
//	watch_interval_seconds
//	canvas_padding
//	hyprland.command
//	hyprland.config_path
//	wlr.command
//	kde.command
//	kde_wayland.helper
func Explain(res *LoadResult, path string) (any, Source, error) {
	if res == nil || res.Config == nil {
		return nil, Source{}, fmt.Errorf("no config loaded")
	}
	if path == "" {
		return nil, Source{}, fmt.Errorf("path is empty")
	}

	value, err := lookupValue(res.Config, path)
	if err != nil {
		return nil, Source{}, err
	}
	if src, ok := res.Sources[path]; ok {
		return value, src, nil
	}
	return value, Source{Kind: SourceDefault, Name: "defaults"}, nil
}

func lookupValue(cfg *Config, path string) (any, error) {
	parts := strings.Split(path, ".")
	if len(parts) == 1 {
		switch parts[0] {
		case "backend":
			return cfg.Backend, nil
		case "log_level":
			return cfg.LogLevel, nil
		case "snap_threshold":
			return cfg.SnapThreshold, nil
		case "disallow_gaps":
			if cfg.DisallowGaps == nil {
				return "backend default", nil
			}
			return *cfg.DisallowGaps, nil
		case "confirm_timeout_seconds":
			return cfg.ConfirmTimeoutSeconds, nil
		case "persist_on_confirm":
			return cfg.PersistOnConfirm, nil
		case "watch_interval_seconds":
			return cfg.WatchIntervalSeconds, nil
		case "canvas_padding":
			return cfg.CanvasPadding, nil
		case "hyprland":
			return cfg.Hyprland, nil
		case "wlr":
			return cfg.Wlr, nil
		case "kde":
			return cfg.KDE, nil
		case "kde_wayland":
			return cfg.KDEWayland, nil
		}
		return nil, fmt.Errorf("unknown path: %s", path)
	}
	if len(parts) != 2 {
		return nil, fmt.Errorf("unknown path: %s", path)
	}
	switch parts[0] + "." + parts[1] {
	case "hyprland.command":
		return cfg.Hyprland.Command, nil
	case "hyprland.config_path":
		return cfg.Hyprland.ConfigPath, nil
	case "wlr.command":
		return cfg.Wlr.Command, nil
	case "kde.command":
		return cfg.KDE.Command, nil
	case "kde_wayland.helper":
		return cfg.KDEWayland.Helper, nil
	default:
		return nil, fmt.Errorf("unknown path: %s", path)
	}
}
