package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/outputctl/internal/backend"
)

// HyprlandConfig configures the Hyprland adapter.
type HyprlandConfig struct {
	Command    string `yaml:"command"`
	ConfigPath string `yaml:"config_path,omitempty"`
}

// CommandConfig names the binary a CLI-driven adapter runs.
type CommandConfig struct {
	Command string `yaml:"command"`
}

// HelperConfig names the KDE Wayland protocol helper.
type HelperConfig struct {
	Helper string `yaml:"helper"`
}

// Config holds the application configuration.
type Config struct {
	Backend               string         `yaml:"backend"`
	LogLevel              string         `yaml:"log_level"`
	SnapThreshold         int            `yaml:"snap_threshold"`
	DisallowGaps          *bool          `yaml:"disallow_gaps,omitempty"`
	ConfirmTimeoutSeconds int            `yaml:"confirm_timeout_seconds"`
	PersistOnConfirm      bool           `yaml:"persist_on_confirm"`
	WatchIntervalSeconds  int            `yaml:"watch_interval_seconds"`
	CanvasPadding         int            `yaml:"canvas_padding"`
	Hyprland              HyprlandConfig `yaml:"hyprland"`
	Wlr                   CommandConfig  `yaml:"wlr"`
	KDE                   CommandConfig  `yaml:"kde"`
	KDEWayland            HelperConfig   `yaml:"kde_wayland"`
}

func DefaultConfig() *Config {
	return &Config{
		Backend:               "auto",
		LogLevel:              "info",
		SnapThreshold:         backend.DefaultSnapThreshold,
		ConfirmTimeoutSeconds: 15,
		WatchIntervalSeconds:  2,
		CanvasPadding:         2,
		Hyprland:              HyprlandConfig{Command: "hyprctl"},
		Wlr:                   CommandConfig{Command: "wlr-randr"},
		KDE:                   CommandConfig{Command: "kscreen-doctor"},
		KDEWayland:            HelperConfig{Helper: "outputctl-kde-helper"},
	}
}

// Kind returns the configured backend, or KindUnknown for auto detection.
func (c *Config) Kind() (backend.Kind, error) {
	return backend.ParseKind(c.Backend)
}

// Rules returns the layout rules for kind with configured overrides applied.
func (c *Config) Rules(kind backend.Kind) backend.Rules {
	r := backend.RulesFor(kind)
	if c.SnapThreshold > 0 {
		r.SnapThreshold = c.SnapThreshold
	}
	if c.DisallowGaps != nil {
		r.DisallowGaps = *c.DisallowGaps
	}
	return r
}

// ConfirmTimeout is how long an applied change waits for confirmation.
func (c *Config) ConfirmTimeout() time.Duration {
	return time.Duration(c.ConfirmTimeoutSeconds) * time.Second
}

// WatchInterval is the hotplug polling period. Zero disables watching.
func (c *Config) WatchInterval() time.Duration {
	return time.Duration(c.WatchIntervalSeconds) * time.Second
}

// SlogLevel maps log_level to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Save writes the configuration to the standard location.
//
// Note: this marshals the effective config and will not preserve comments or
// include structure from the original YAML.
func (c *Config) Save() error {
	path, err := DefaultConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the configuration to path.
func (c *Config) SaveTo(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate performs strict validation of the effective configuration.
func (c *Config) Validate() error {
	if _, err := c.Kind(); err != nil {
		return &ValidationError{Path: "backend", Err: fmt.Errorf("backend must be one of: auto, gnome, kde, hyprland, wlroots, x11")}
	}
	if c.LogLevel != "debug" && c.LogLevel != "info" && c.LogLevel != "warning" && c.LogLevel != "error" {
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: debug, info, warning, error")}
	}
	if c.SnapThreshold < 0 {
		return &ValidationError{Path: "snap_threshold", Err: fmt.Errorf("snap_threshold must be >= 0")}
	}
	if c.ConfirmTimeoutSeconds < 1 {
		return &ValidationError{Path: "confirm_timeout_seconds", Err: fmt.Errorf("confirm_timeout_seconds must be >= 1")}
	}
	if c.WatchIntervalSeconds < 0 {
		return &ValidationError{Path: "watch_interval_seconds", Err: fmt.Errorf("watch_interval_seconds must be >= 0")}
	}
	if c.CanvasPadding < 0 {
		return &ValidationError{Path: "canvas_padding", Err: fmt.Errorf("canvas_padding must be >= 0")}
	}
	for path, cmd := range map[string]string{
		"hyprland.command":   c.Hyprland.Command,
		"wlr.command":        c.Wlr.Command,
		"kde.command":        c.KDE.Command,
		"kde_wayland.helper": c.KDEWayland.Helper,
	} {
		if strings.TrimSpace(cmd) == "" {
			return &ValidationError{Path: path, Err: fmt.Errorf("command must not be empty")}
		}
	}
	return nil
}
