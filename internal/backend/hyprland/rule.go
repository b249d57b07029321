package hyprland

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adrg/xdg"

	"github.com/1broseidon/outputctl/internal/monitor"
)

// Rule is one `monitor=` rule.
type Rule struct {
	Name      string
	Disabled  bool
	Size      monitor.Size
	Refresh   int
	Offset    monitor.Offset
	Scale     float64
	Transform monitor.Transform
	VRR       bool
}

// RuleFor returns the rule that reproduces m.
func RuleFor(m monitor.Monitor) Rule {
	return Rule{
		Name:      m.Name,
		Disabled:  !m.Enabled,
		Size:      m.Size,
		Refresh:   m.RefreshRate,
		Offset:    m.Offset,
		Scale:     m.Scale,
		Transform: m.Transform,
		VRR:       m.VRR,
	}
}

// FormatRule renders r in Hyprland's monitor rule syntax.
func FormatRule(r Rule) string {
	if r.Disabled {
		return r.Name + ",disable"
	}
	vrr := 0
	if r.VRR {
		vrr = 1
	}
	return fmt.Sprintf("%s,%dx%d@%d,%dx%d,%s,transform,%d,vrr,%d",
		r.Name,
		r.Size.Width, r.Size.Height, r.Refresh,
		r.Offset.X, r.Offset.Y,
		strconv.FormatFloat(r.Scale, 'f', -1, 64),
		int(r.Transform),
		vrr,
	)
}

// ParseRule reads a rule written by FormatRule. Unknown trailing options are
// ignored.
func ParseRule(s string) (Rule, error) {
	fields := strings.Split(strings.TrimSpace(s), ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	if len(fields) == 2 && fields[1] == "disable" {
		return Rule{Name: fields[0], Disabled: true}, nil
	}
	if len(fields) < 4 {
		return Rule{}, fmt.Errorf("rule %q: want at least 4 fields", s)
	}

	r := Rule{Name: fields[0]}
	size, hz, err := ParseModeString(fields[1])
	if err != nil {
		return Rule{}, fmt.Errorf("rule %q: %w", s, err)
	}
	r.Size = size
	r.Refresh = monitor.RoundRefresh(hz)

	xs, ys, ok := strings.Cut(fields[2], "x")
	if !ok {
		return Rule{}, fmt.Errorf("rule %q: bad position %q", s, fields[2])
	}
	if r.Offset.X, err = strconv.Atoi(xs); err != nil {
		return Rule{}, fmt.Errorf("rule %q: %w", s, err)
	}
	if r.Offset.Y, err = strconv.Atoi(ys); err != nil {
		return Rule{}, fmt.Errorf("rule %q: %w", s, err)
	}
	if r.Scale, err = strconv.ParseFloat(fields[3], 64); err != nil {
		return Rule{}, fmt.Errorf("rule %q: %w", s, err)
	}

	for i := 4; i+1 < len(fields); i += 2 {
		v, err := strconv.Atoi(fields[i+1])
		if err != nil {
			return Rule{}, fmt.Errorf("rule %q: option %s: %w", s, fields[i], err)
		}
		switch fields[i] {
		case "transform":
			r.Transform = monitor.Transform(v)
		case "vrr":
			r.VRR = v != 0
		}
	}
	return r, nil
}

const configHeader = "# Generated by outputctl. Changes are overwritten on the next persist.\n"

// DefaultConfigPath is $XDG_CONFIG_HOME/hypr/monitors.conf.
func DefaultConfigPath() (string, error) {
	return xdg.ConfigFile(filepath.Join("hypr", "monitors.conf"))
}

// WriteConfig atomically replaces path with one rule per monitor.
func WriteConfig(path string, monitors []monitor.Monitor) error {
	var buf bytes.Buffer
	buf.WriteString(configHeader)
	for _, m := range monitors {
		fmt.Fprintf(&buf, "monitor = %s\n", FormatRule(RuleFor(m)))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".monitors-*.conf")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadConfig parses the `monitor =` lines of a fragment.
func ReadConfig(r io.Reader) ([]Rule, error) {
	var rules []Rule
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		key, value, ok := strings.Cut(text, "=")
		if !ok || strings.TrimSpace(key) != "monitor" {
			continue
		}
		rule, err := ParseRule(value)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rules = append(rules, rule)
	}
	return rules, sc.Err()
}
