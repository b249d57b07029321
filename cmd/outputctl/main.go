package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/1broseidon/outputctl/internal/backend"
	"github.com/1broseidon/outputctl/internal/backend/registry"
	"github.com/1broseidon/outputctl/internal/config"
	"github.com/1broseidon/outputctl/internal/daemon"
	"github.com/1broseidon/outputctl/internal/runtimepath"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		os.Exit(runDaemon(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "list":
		os.Exit(runList(os.Args[2:]))
	case "set":
		os.Exit(runSet(os.Args[2:]))
	case "move":
		os.Exit(runMove(os.Args[2:]))
	case "apply":
		os.Exit(runApply(os.Args[2:]))
	case "confirm":
		os.Exit(runTransaction("confirm", os.Args[2:]))
	case "revert":
		os.Exit(runTransaction("revert", os.Args[2:]))
	case "persist", "discard", "refresh", "reload":
		os.Exit(runSimple(os.Args[1], os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "tui":
		os.Exit(runTUI(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: outputctl <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Start the outputctl daemon (foreground)")
	fmt.Fprintln(w, "  status              Show daemon and session status")
	fmt.Fprintln(w, "  list                List outputs with their modes")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  set <name>          Edit an output (mode, scale, rotation, ...)")
	fmt.Fprintln(w, "  move <name>         Move an output by a logical delta")
	fmt.Fprintln(w, "  apply               Apply edits, reverting unless confirmed")
	fmt.Fprintln(w, "  confirm             Keep the applied change")
	fmt.Fprintln(w, "  revert              Restore the configuration before apply")
	fmt.Fprintln(w, "  persist             Store the configuration across restarts")
	fmt.Fprintln(w, "  discard             Drop unapplied edits")
	fmt.Fprintln(w, "  refresh             Re-read the live configuration")
	fmt.Fprintln(w, "  reload              Ask the daemon to re-read its config file")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "  config explain      Explain a config value")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  tui                 Open the interactive arrangement canvas")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'outputctl <command> --help' for command-specific options.")
}

func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
}

// resolveKind returns the configured backend, detecting it when set to auto.
func resolveKind(ctx context.Context, cfg *config.Config) (backend.Kind, error) {
	kind, err := cfg.Kind()
	if err != nil {
		return backend.KindUnknown, err
	}
	if kind == backend.KindUnknown {
		kind = backend.Detect(ctx, backend.EnvFromLookup(os.Getenv), backend.RunningProcesses)
	}
	if kind == backend.KindUnknown {
		return kind, backend.ErrUnsupportedEnvironment
	}
	return kind, nil
}

func openAdapter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (backend.Adapter, io.Closer, error) {
	kind, err := resolveKind(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return registry.Open(ctx, kind, registry.Options{
		Logger:             logger,
		KDECommand:         cfg.KDE.Command,
		KDEHelper:          cfg.KDEWayland.Helper,
		HyprctlCommand:     cfg.Hyprland.Command,
		HyprlandConfigPath: cfg.Hyprland.ConfigPath,
		WlrCommand:         cfg.Wlr.Command,
	})
}

func runDaemon(args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: outputctl daemon [--path PATH]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Own the monitor session and serve the CLI, TUI and MCP clients.")
		fmt.Fprintln(os.Stderr, "SIGHUP re-reads the configuration.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
	}
	path := fs.String("path", "", "Config file path (default: ~/.config/outputctl/config.yaml)")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "daemon takes no arguments")
		fs.Usage()
		return 2
	}

	load := func() (*config.Config, error) {
		res, err := loadConfig(*path)
		if err != nil {
			return nil, err
		}
		return res.Config, nil
	}
	cfg, err := load()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return 1
	}
	logger := newLogger(cfg)
	log.Printf("Configuration loaded (backend: %s, snap threshold: %d)", cfg.Backend, cfg.SnapThreshold)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	adapter, closer, err := openAdapter(ctx, cfg, logger)
	if err != nil {
		if errors.Is(err, backend.ErrUnsupportedEnvironment) {
			log.Printf("No supported display backend found; set backend in the config or %s", config.EnvBackend)
		} else {
			log.Printf("Failed to connect to display: %v", err)
		}
		return 1
	}
	defer closer.Close()
	log.Printf("Using %s backend", adapter.Kind())

	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		log.Printf("Failed to resolve socket path: %v", err)
		return 1
	}
	pidPath, err := runtimepath.PidPath()
	if err != nil {
		log.Printf("Failed to resolve pid path: %v", err)
		return 1
	}

	d := daemon.New(daemon.Options{
		SocketPath: socketPath,
		PidPath:    pidPath,
		Adapter:    adapter,
		Config:     cfg,
		Logger:     logger,
		LoadConfig: load,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)
	go func() {
		for sig := range sigCh {
			switch sig {
			case syscall.SIGHUP:
				log.Println("Received SIGHUP, reloading config...")
				if err := d.Reload(ctx); err != nil {
					log.Printf("Config reload failed: %v", err)
					continue
				}
				log.Println("Config reloaded successfully")
			default:
				cancel()
				return
			}
		}
	}()

	log.Printf("outputctl daemon listening on %s", socketPath)
	if err := d.Run(ctx); err != nil {
		log.Printf("Daemon error: %v", err)
		return 1
	}
	return 0
}

func loadConfig(path string) (*config.LoadResult, error) {
	if path == "" {
		return config.LoadWithSources()
	}
	return config.LoadFromPath(path)
}
