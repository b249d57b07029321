// Package registry builds the backend adapter for a session.
package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/1broseidon/outputctl/internal/backend"
	"github.com/1broseidon/outputctl/internal/backend/gnome"
	"github.com/1broseidon/outputctl/internal/backend/hyprland"
	"github.com/1broseidon/outputctl/internal/backend/kde"
	"github.com/1broseidon/outputctl/internal/backend/kdeproto"
	"github.com/1broseidon/outputctl/internal/backend/wlr"
	"github.com/1broseidon/outputctl/internal/backend/x11"
)

// Options select commands and paths for the CLI-driven families. Zero values
// use each adapter's defaults.
type Options struct {
	Runner             backend.Runner
	Logger             *slog.Logger
	KDECommand         string
	KDEHelper          string
	HyprctlCommand     string
	HyprlandConfigPath string
	WlrCommand         string

	// LookPath decides whether a protocol fallback is installed.
	LookPath func(string) bool

	// Test seams for the families that hold a connection.
	GNOMEBus  gnome.DisplayConfig
	X11Server x11.Server
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Open returns the adapter for kind and a closer for any connection it
// holds. KindUnknown yields backend.ErrUnsupportedEnvironment.
func Open(ctx context.Context, kind backend.Kind, opts Options) (backend.Adapter, io.Closer, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runner := opts.Runner
	if runner == nil {
		runner = backend.ExecRunner{}
	}
	lookPath := opts.LookPath
	if lookPath == nil {
		lookPath = backend.LookPath
	}
	logger = logger.With("backend", kind)

	switch kind {
	case backend.KindGNOME:
		if opts.GNOMEBus != nil {
			return gnome.New(opts.GNOMEBus, logger), nopCloser{}, nil
		}
		bus, err := gnome.ConnectSession()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", backend.ErrTransport, err)
		}
		if !bus.Available(ctx) {
			logger.Warn("org.gnome.Mutter.DisplayConfig has no owner; is gnome-shell running?")
		}
		return gnome.New(bus, logger), bus, nil

	case backend.KindKDE:
		primary := kde.New(runner, opts.KDECommand, logger)
		helper := opts.KDEHelper
		if helper == "" {
			helper = kdeproto.DefaultHelper
		}
		var fallback backend.Adapter
		if lookPath(helper) {
			fallback = kdeproto.New(runner, helper, logger)
		}
		return backend.WithFallback(primary, fallback, logger), nopCloser{}, nil

	case backend.KindHyprland:
		primary := hyprland.New(runner, opts.HyprctlCommand, opts.HyprlandConfigPath, logger)
		command := opts.WlrCommand
		if command == "" {
			command = wlr.DefaultCommand
		}
		var fallback backend.Adapter
		if lookPath(command) {
			fallback = wlr.New(runner, command, logger)
		}
		return backend.WithFallback(primary, fallback, logger), nopCloser{}, nil

	case backend.KindWlroots:
		return wlr.New(runner, opts.WlrCommand, logger), nopCloser{}, nil

	case backend.KindX11:
		if opts.X11Server != nil {
			return x11.New(opts.X11Server, logger), nopCloser{}, nil
		}
		conn, err := x11.Connect()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", backend.ErrTransport, err)
		}
		return x11.New(conn, logger), closerFunc(func() error { conn.Close(); return nil }), nil
	}
	return nil, nil, backend.ErrUnsupportedEnvironment
}
