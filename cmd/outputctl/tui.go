package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/1broseidon/outputctl/internal/confirm"
	"github.com/1broseidon/outputctl/internal/display"
	"github.com/1broseidon/outputctl/internal/ipc"
	"github.com/1broseidon/outputctl/internal/runtimepath"
	"github.com/1broseidon/outputctl/internal/tui"
)

func runTUI(args []string) int {
	fs := flag.NewFlagSet("tui", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/outputctl/config.yaml)")

	if len(args) > 0 && (args[0] == "help" || args[0] == "-h" || args[0] == "--help") {
		fmt.Fprintln(os.Stderr, "Usage: outputctl tui [--path PATH]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Arrange outputs on a canvas. Drag boxes with the mouse to move them.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Keybindings:")
		fmt.Fprintln(os.Stderr, "  tab/shift+tab  Select output")
		fmt.Fprintln(os.Stderr, "  e              Enable or disable")
		fmt.Fprintln(os.Stderr, "  r              Rotate 90 degrees")
		fmt.Fprintln(os.Stderr, "  +/-            Scale up or down")
		fmt.Fprintln(os.Stderr, "  p              Make primary")
		fmt.Fprintln(os.Stderr, "  m/M            Next or previous mode")
		fmt.Fprintln(os.Stderr, "  a              Apply, then keep or revert")
		fmt.Fprintln(os.Stderr, "  s              Persist")
		fmt.Fprintln(os.Stderr, "  u              Reload live configuration")
		fmt.Fprintln(os.Stderr, "  d              Discard edits")
		fmt.Fprintln(os.Stderr, "  q, Ctrl+C      Quit")
		return 0
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := ipc.NewClient().Ping(ctx); err == nil {
		// Two owners would overwrite each other's edits.
		fmt.Fprintln(os.Stderr, "the outputctl daemon is running; stop it or use the CLI commands")
		return 1
	}

	res, err := loadConfig(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	cfg := res.Config
	// stderr belongs to the alternate screen while the canvas is up.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if logPath, err := runtimepath.TUILogPath(); err == nil {
		if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600); err == nil {
			defer f.Close()
			logger = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
		}
	}

	adapter, closer, err := openAdapter(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closer.Close()

	session := display.NewSession(adapter, cfg.Rules(adapter.Kind()), logger.With("component", "session"))
	mgr := confirm.NewManager(session, confirm.Options{
		Timeout:          cfg.ConfirmTimeout(),
		PersistOnConfirm: cfg.PersistOnConfirm,
	}, logger.With("component", "confirm"))
	defer mgr.Close()

	if err := tui.Run(ctx, tui.Options{Session: session, Confirm: mgr, Padding: cfg.CanvasPadding}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
