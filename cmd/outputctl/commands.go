package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/1broseidon/outputctl/internal/display"
	"github.com/1broseidon/outputctl/internal/ipc"
	"github.com/1broseidon/outputctl/internal/monitor"
)

const commandTimeout = 40 * time.Second

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), commandTimeout)
}

// splitName lets the output name come before or after the flags.
func splitName(args []string) (string, []string) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return args[0], args[1:]
	}
	return "", args
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: outputctl status")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show daemon status via IPC.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "status takes no arguments")
		fs.Usage()
		return 2
	}

	ctx, cancel := commandContext()
	defer cancel()
	status, err := ipc.NewClient().GetStatus(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("daemon_running: %v\n", status.DaemonRunning)
	fmt.Printf("backend:        %s\n", status.Kind)
	fmt.Printf("monitors:       %d\n", status.Monitors)
	fmt.Printf("unapplied:      %v\n", status.Dirty)
	fmt.Printf("uptime_seconds: %d\n", status.UptimeSeconds)
	if status.Pending != nil {
		fmt.Printf("pending:        %s (reverts at %s)\n", status.Pending.ID, status.Pending.Deadline.Format(time.TimeOnly))
	}
	if status.LastError != "" {
		fmt.Printf("last_error:     %s\n", status.LastError)
	}
	return 0
}

func runList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: outputctl list [--json] [--refresh]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "List outputs, including edits that have not been applied.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
	}
	jsonOut := fs.Bool("json", false, "Output full monitor details as JSON")
	refresh := fs.Bool("refresh", false, "Re-read the live configuration first, dropping edits")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "list takes no arguments")
		fs.Usage()
		return 2
	}

	ctx, cancel := commandContext()
	defer cancel()
	client := ipc.NewClient()
	fetch := client.GetMonitors
	if *refresh {
		fetch = client.Refresh
	}
	data, err := fetch(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if *jsonOut {
		out, err := json.MarshalIndent(data.Monitors, "", "  ")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println(string(out))
		return 0
	}
	for _, m := range data.Monitors {
		fmt.Println(describeMonitor(m))
	}
	return 0
}

func describeMonitor(m monitor.Monitor) string {
	var sb strings.Builder
	sb.WriteString(m.Name)
	if m.Make != "" || m.Model != "" {
		fmt.Fprintf(&sb, " (%s)", strings.TrimSpace(m.Make+" "+m.Model))
	}
	if !m.Enabled {
		sb.WriteString(": disabled")
		return sb.String()
	}
	fmt.Fprintf(&sb, ": %dx%d@%d at %d,%d scale %g", m.Size.Width, m.Size.Height, m.RefreshRate, m.Offset.X, m.Offset.Y, m.Scale)
	if m.Transform != monitor.TransformNormal {
		fmt.Fprintf(&sb, " transform %s", m.Transform)
	}
	if m.Primary {
		sb.WriteString(" primary")
	}
	if m.VRR {
		sb.WriteString(" vrr")
	}
	var modes []string
	for _, mode := range m.AvailableModes {
		for _, rr := range mode.RefreshRates {
			modes = append(modes, monitor.SyntheticModeID(mode.Size, rr.Rate))
		}
	}
	if len(modes) > 0 {
		fmt.Fprintf(&sb, "\n  modes: %s", strings.Join(modes, " "))
	}
	return sb.String()
}

// parseMode accepts WIDTHxHEIGHT with an optional @RATE.
func parseMode(s string) (width, height, rate int, err error) {
	size, rateStr, hasRate := strings.Cut(s, "@")
	w, h, ok := strings.Cut(size, "x")
	if !ok {
		return 0, 0, 0, fmt.Errorf("invalid mode %q (want WIDTHxHEIGHT[@RATE])", s)
	}
	if width, err = strconv.Atoi(w); err != nil || width <= 0 {
		return 0, 0, 0, fmt.Errorf("invalid mode width %q", w)
	}
	if height, err = strconv.Atoi(h); err != nil || height <= 0 {
		return 0, 0, 0, fmt.Errorf("invalid mode height %q", h)
	}
	if hasRate {
		// Rates are often printed with decimals; round to whole hertz.
		r, perr := strconv.ParseFloat(rateStr, 64)
		if perr != nil || r <= 0 {
			return 0, 0, 0, fmt.Errorf("invalid refresh rate %q", rateStr)
		}
		rate = int(r + 0.5)
	}
	return width, height, rate, nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid value %q (want on or off)", s)
}

// buildChange turns set flags into a Change. Unset flags stay zero.
func buildChange(name string, enable, disable bool, mode string, refresh int, scale float64, transform string, primary bool, vrr string) (display.Change, error) {
	c := display.Change{Name: name, Refresh: refresh, Transform: transform, Primary: primary}
	if enable && disable {
		return c, fmt.Errorf("--enable and --disable are mutually exclusive")
	}
	if enable || disable {
		on := enable
		c.Enabled = &on
	}
	if mode != "" {
		w, h, r, err := parseMode(mode)
		if err != nil {
			return c, err
		}
		c.Width, c.Height = w, h
		if r > 0 {
			c.Refresh = r
		}
	}
	if scale < 0 {
		return c, monitor.ErrInvalidScale
	}
	if scale > 0 {
		c.Scale = &scale
	}
	if transform != "" {
		if _, err := monitor.ParseTransform(transform); err != nil {
			return c, err
		}
	}
	if vrr != "" {
		on, err := parseOnOff(vrr)
		if err != nil {
			return c, err
		}
		c.VRR = &on
	}
	if c.Empty() {
		return c, fmt.Errorf("nothing to change")
	}
	return c, nil
}

func runSet(args []string) int {
	fs := flag.NewFlagSet("set", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: outputctl set <name> [--enable|--disable] [--mode WxH[@R]] [--refresh R]")
		fmt.Fprintln(os.Stderr, "                     [--scale S] [--transform T] [--primary] [--vrr on|off]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Edit one output. Nothing changes on screen until 'outputctl apply'.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
	}
	enable := fs.Bool("enable", false, "Turn the output on")
	disable := fs.Bool("disable", false, "Turn the output off")
	mode := fs.String("mode", "", "Mode as WIDTHxHEIGHT[@RATE]")
	refresh := fs.Int("refresh", 0, "Refresh rate in Hz")
	scale := fs.Float64("scale", 0, "Scale; the nearest legal value is used")
	transform := fs.String("transform", "", "normal, 90, 180, 270, flipped, flipped-90, flipped-180, flipped-270")
	primary := fs.Bool("primary", false, "Make this the primary output")
	vrr := fs.String("vrr", "", "Adaptive sync: on or off")

	name, rest := splitName(args)
	if err := fs.Parse(rest); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if name == "" && fs.NArg() == 1 {
		name = fs.Arg(0)
	} else if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "set takes exactly one output name")
		fs.Usage()
		return 2
	}
	if name == "" {
		fmt.Fprintln(os.Stderr, "set requires <name>")
		fs.Usage()
		return 2
	}

	change, err := buildChange(name, *enable, *disable, *mode, *refresh, *scale, *transform, *primary, *vrr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx, cancel := commandContext()
	defer cancel()
	res, err := ipc.NewClient().SetMonitor(ctx, change)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println(describeMonitor(res.Monitor))
	if change.Scale != nil && res.Scale != *change.Scale {
		fmt.Printf("scale %g is not legal for this mode; using %g\n", *change.Scale, res.Scale)
	}
	return 0
}

func runMove(args []string) int {
	fs := flag.NewFlagSet("move", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: outputctl move <name> --dx N --dy N")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Move an output by a delta in logical pixels. It snaps to nearby edges;")
		fmt.Fprintln(os.Stderr, "moves that would overlap or detach outputs are rejected.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
	}
	dx := fs.Int("dx", 0, "Horizontal delta")
	dy := fs.Int("dy", 0, "Vertical delta")

	name, rest := splitName(args)
	if err := fs.Parse(rest); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if name == "" && fs.NArg() == 1 {
		name = fs.Arg(0)
	} else if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "move takes exactly one output name")
		fs.Usage()
		return 2
	}
	if name == "" {
		fmt.Fprintln(os.Stderr, "move requires <name>")
		fs.Usage()
		return 2
	}

	ctx, cancel := commandContext()
	defer cancel()
	data, err := ipc.NewClient().MoveMonitor(ctx, name, *dx, *dy)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("outcome: %s\n", data.Outcome)
	if idx := monitor.FindByName(data.Monitors, name); idx >= 0 {
		fmt.Println(describeMonitor(data.Monitors[idx]))
	}
	if data.Outcome == "reverted" {
		return 1
	}
	return 0
}

func runApply(args []string) int {
	fs := flag.NewFlagSet("apply", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: outputctl apply [--no-confirm]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Apply edits. The change reverts unless 'outputctl confirm' runs in time.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
	}
	noConfirm := fs.Bool("no-confirm", false, "Apply without the automatic revert")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "apply takes no arguments")
		fs.Usage()
		return 2
	}

	ctx, cancel := commandContext()
	defer cancel()
	data, err := ipc.NewClient().Apply(ctx, *noConfirm)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if data.Transaction == nil {
		fmt.Println("applied")
		return 0
	}
	left := time.Until(data.Transaction.Deadline).Round(time.Second)
	fmt.Printf("applied; run 'outputctl confirm' within %s to keep it\n", left)
	fmt.Printf("id: %s\n", data.Transaction.ID)
	return 0
}

func runTransaction(verb string, args []string) int {
	fs := flag.NewFlagSet(verb, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: outputctl %s [--id ID]\n", verb)
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintf(os.Stderr, "%s the change awaiting confirmation.\n", strings.ToUpper(verb[:1])+verb[1:])
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
	}
	id := fs.String("id", "", "Transaction ID printed by apply (default: whatever is pending)")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(os.Stderr, "%s takes no arguments\n", verb)
		fs.Usage()
		return 2
	}

	ctx, cancel := commandContext()
	defer cancel()
	client := ipc.NewClient()
	var err error
	if verb == "confirm" {
		err = client.Confirm(ctx, *id)
	} else {
		err = client.Revert(ctx, *id)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runSimple(cmd string, args []string) int {
	if len(args) > 0 {
		if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
			fmt.Fprintf(os.Stdout, "Usage: outputctl %s\n", cmd)
			return 0
		}
		fmt.Fprintf(os.Stderr, "%s takes no arguments\n", cmd)
		return 2
	}

	ctx, cancel := commandContext()
	defer cancel()
	client := ipc.NewClient()
	var err error
	switch cmd {
	case "persist":
		err = client.Persist(ctx)
	case "discard":
		err = client.Discard(ctx)
	case "refresh":
		_, err = client.Refresh(ctx)
	case "reload":
		err = client.Reload(ctx)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
