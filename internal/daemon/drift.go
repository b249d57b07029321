package daemon

import (
	"fmt"
	"sort"

	"github.com/1broseidon/outputctl/internal/monitor"
)

// Drift lists the differences between the configuration the session last
// saw and the live one. An empty result means nothing changed behind our
// back.
func Drift(known, live []monitor.Monitor) []string {
	var out []string
	byName := make(map[string]monitor.Monitor, len(known))
	for _, m := range known {
		byName[m.Name] = m
	}
	seen := make(map[string]bool, len(live))

	for _, m := range live {
		seen[m.Name] = true
		old, ok := byName[m.Name]
		if !ok {
			out = append(out, fmt.Sprintf("%s connected", m.Name))
			continue
		}
		if old.Enabled != m.Enabled {
			out = append(out, fmt.Sprintf("%s enabled %t -> %t", m.Name, old.Enabled, m.Enabled))
		}
		if old.Offset != m.Offset {
			out = append(out, fmt.Sprintf("%s moved %d,%d -> %d,%d", m.Name, old.Offset.X, old.Offset.Y, m.Offset.X, m.Offset.Y))
		}
		if old.Size != m.Size || old.RefreshRate != m.RefreshRate {
			out = append(out, fmt.Sprintf("%s mode %s@%d -> %s@%d", m.Name, old.Size, old.RefreshRate, m.Size, m.RefreshRate))
		}
		if old.Scale != m.Scale {
			out = append(out, fmt.Sprintf("%s scale %g -> %g", m.Name, old.Scale, m.Scale))
		}
		if old.Transform != m.Transform {
			out = append(out, fmt.Sprintf("%s transform %s -> %s", m.Name, old.Transform, m.Transform))
		}
	}
	for name := range byName {
		if !seen[name] {
			out = append(out, fmt.Sprintf("%s disconnected", name))
		}
	}
	sort.Strings(out)
	return out
}
