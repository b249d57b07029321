package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// IncludeList supports either:
//
//	include: "/path/to/file.yaml"
//
// or:
//
//	include:
//	  - "/path/to/file.yaml"
//	  - "/path/to/dir"
type IncludeList []string

func (l *IncludeList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		*l = nil
		return nil
	case yaml.ScalarNode:
		if value.Tag != "!!str" {
			return fmt.Errorf("include must be a string or list of strings")
		}
		*l = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode || item.Tag != "!!str" {
				return fmt.Errorf("include entries must be strings")
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("include must be a string or list of strings")
	}
}

type RawHyprland struct {
	Command    *string `yaml:"command"`
	ConfigPath *string `yaml:"config_path"`
}

type RawCommand struct {
	Command *string `yaml:"command"`
}

type RawHelper struct {
	Helper *string `yaml:"helper"`
}

type RawConfig struct {
	Include               IncludeList  `yaml:"include"`
	Backend               *string      `yaml:"backend"`
	LogLevel              *string      `yaml:"log_level"`
	SnapThreshold         *int         `yaml:"snap_threshold"`
	DisallowGaps          *bool        `yaml:"disallow_gaps"`
	ConfirmTimeoutSeconds *int         `yaml:"confirm_timeout_seconds"`
	PersistOnConfirm      *bool        `yaml:"persist_on_confirm"`
	WatchIntervalSeconds  *int         `yaml:"watch_interval_seconds"`
	CanvasPadding         *int         `yaml:"canvas_padding"`
	Hyprland              *RawHyprland `yaml:"hyprland"`
	Wlr                   *RawCommand  `yaml:"wlr"`
	KDE                   *RawCommand  `yaml:"kde"`
	KDEWayland            *RawHelper   `yaml:"kde_wayland"`
}

func pick[T any](base, overlay *T) *T {
	if overlay != nil {
		return overlay
	}
	return base
}

func (c RawConfig) merge(overlay RawConfig) RawConfig {
	out := c
	out.Backend = pick(c.Backend, overlay.Backend)
	out.LogLevel = pick(c.LogLevel, overlay.LogLevel)
	out.SnapThreshold = pick(c.SnapThreshold, overlay.SnapThreshold)
	out.DisallowGaps = pick(c.DisallowGaps, overlay.DisallowGaps)
	out.ConfirmTimeoutSeconds = pick(c.ConfirmTimeoutSeconds, overlay.ConfirmTimeoutSeconds)
	out.PersistOnConfirm = pick(c.PersistOnConfirm, overlay.PersistOnConfirm)
	out.WatchIntervalSeconds = pick(c.WatchIntervalSeconds, overlay.WatchIntervalSeconds)
	out.CanvasPadding = pick(c.CanvasPadding, overlay.CanvasPadding)

	if overlay.Hyprland != nil {
		base := RawHyprland{}
		if c.Hyprland != nil {
			base = *c.Hyprland
		}
		base.Command = pick(base.Command, overlay.Hyprland.Command)
		base.ConfigPath = pick(base.ConfigPath, overlay.Hyprland.ConfigPath)
		out.Hyprland = &base
	}
	out.Wlr = mergeRawCommand(c.Wlr, overlay.Wlr)
	out.KDE = mergeRawCommand(c.KDE, overlay.KDE)
	if overlay.KDEWayland != nil {
		base := RawHelper{}
		if c.KDEWayland != nil {
			base = *c.KDEWayland
		}
		base.Helper = pick(base.Helper, overlay.KDEWayland.Helper)
		out.KDEWayland = &base
	}
	return out
}

func mergeRawCommand(base, overlay *RawCommand) *RawCommand {
	if overlay == nil {
		return base
	}
	out := RawCommand{}
	if base != nil {
		out = *base
	}
	out.Command = pick(out.Command, overlay.Command)
	return &out
}
