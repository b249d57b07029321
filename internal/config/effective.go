package config

import (
	"fmt"
)

type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// BuildEffectiveConfig lays the raw (merged) file values over the defaults.
func BuildEffectiveConfig(raw RawConfig) (*Config, error) {
	cfg := DefaultConfig()

	setString(&cfg.Backend, raw.Backend)
	setString(&cfg.LogLevel, raw.LogLevel)
	setInt(&cfg.SnapThreshold, raw.SnapThreshold)
	if raw.DisallowGaps != nil {
		v := *raw.DisallowGaps
		cfg.DisallowGaps = &v
	}
	setInt(&cfg.ConfirmTimeoutSeconds, raw.ConfirmTimeoutSeconds)
	if raw.PersistOnConfirm != nil {
		cfg.PersistOnConfirm = *raw.PersistOnConfirm
	}
	setInt(&cfg.WatchIntervalSeconds, raw.WatchIntervalSeconds)
	setInt(&cfg.CanvasPadding, raw.CanvasPadding)

	if raw.Hyprland != nil {
		setString(&cfg.Hyprland.Command, raw.Hyprland.Command)
		setString(&cfg.Hyprland.ConfigPath, raw.Hyprland.ConfigPath)
	}
	if raw.Wlr != nil {
		setString(&cfg.Wlr.Command, raw.Wlr.Command)
	}
	if raw.KDE != nil {
		setString(&cfg.KDE.Command, raw.KDE.Command)
	}
	if raw.KDEWayland != nil {
		setString(&cfg.KDEWayland.Helper, raw.KDEWayland.Helper)
	}

	if cfg.Hyprland.ConfigPath != "" {
		path, err := expandHome(cfg.Hyprland.ConfigPath)
		if err != nil {
			return nil, &ValidationError{Path: "hyprland.config_path", Err: err}
		}
		cfg.Hyprland.ConfigPath = path
	}
	return cfg, nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}
