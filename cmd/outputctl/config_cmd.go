package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/outputctl/internal/config"
)

func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  outputctl config validate [--path PATH]")
	fmt.Fprintln(w, "  outputctl config print [--path PATH] [--defaults]")
	fmt.Fprintln(w, "  outputctl config explain [--path PATH] <key.path>")
}

func runConfig(args []string) int {
	if len(args) == 0 {
		printConfigUsage(os.Stderr)
		return 2
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "validate":
		return configValidate(rest)
	case "print":
		return configPrint(rest)
	case "explain":
		return configExplain(rest)
	case "help", "-h", "--help":
		printConfigUsage(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n\n", sub)
		printConfigUsage(os.Stderr)
		return 2
	}
}

// configFlags returns a flag set carrying the shared --path flag.
func configFlags(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet("config "+name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: $OUTPUTCTL_CONFIG or ~/.config/outputctl/config.yaml)")
	return fs, path
}

func configValidate(args []string) int {
	fs, path := configFlags("validate")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	res, err := loadConfig(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config invalid: %v\n", err)
		return 1
	}
	if len(res.Files) == 0 {
		fmt.Println("no config file found, using defaults")
	}
	for _, f := range res.Files {
		fmt.Printf("read %s\n", f)
	}
	fmt.Println("config is valid")
	return 0
}

func configPrint(args []string) int {
	fs, path := configFlags("print")
	defaults := fs.Bool("defaults", false, "Print the built-in defaults and ignore config files")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var cfg *config.Config
	if *defaults {
		cfg = config.DefaultConfig()
	} else {
		res, err := loadConfig(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		cfg = res.Config
	}
	return printYAML(cfg)
}

func configExplain(args []string) int {
	fs, path := configFlags("explain")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "explain takes exactly one key path, e.g. snap_threshold or hyprland.command")
		return 2
	}
	key := fs.Arg(0)

	res, err := loadConfig(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	value, src, err := config.Explain(res, key)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("%s (from %s):\n", key, formatSource(src))
	return printYAML(value)
}

func printYAML(v any) int {
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// formatSource renders where a config value came from, as file:PATH:LINE:COL,
// env:NAME or default.
func formatSource(src config.Source) string {
	switch src.Kind {
	case config.SourceFile:
		switch {
		case src.File == "":
			return "file"
		case src.Line > 0:
			return fmt.Sprintf("file:%s:%d:%d", src.File, src.Line, src.Column)
		}
		return "file:" + src.File
	case config.SourceEnv, config.SourceDefault:
		if src.Name != "" {
			return string(src.Kind) + ":" + src.Name
		}
		return string(src.Kind)
	}
	return string(src.Kind)
}
