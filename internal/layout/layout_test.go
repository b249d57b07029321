package layout

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/1broseidon/outputctl/internal/backend"
	"github.com/1broseidon/outputctl/internal/monitor"
)

func mon(id uint32, x, y, w, h int) monitor.Monitor {
	return monitor.Monitor{
		ID:      id,
		Name:    "OUT-" + string(rune('A'+id)),
		Enabled: true,
		Offset:  monitor.Offset{X: x, Y: y},
		Size:    monitor.Size{Width: w, Height: h},
		Scale:   1,
	}
}

func offsets(all []monitor.Monitor) []monitor.Offset {
	out := make([]monitor.Offset, len(all))
	for i := range all {
		out[i] = all[i].Offset
	}
	return out
}

func assertNoOverlap(t *testing.T, all []monitor.Monitor, rules backend.Rules) {
	t.Helper()
	if pairs := Overlapping(all, rules); len(pairs) != 0 {
		t.Fatalf("overlapping monitors %v: %+v", pairs, offsets(all))
	}
}

func TestRearrange_ResizeShiftsRightNeighbour(t *testing.T) {
	rules := backend.RulesFor(backend.KindHyprland)
	all := []monitor.Monitor{mon(0, 0, 0, 1920, 1080), mon(1, 1920, 0, 1920, 1080)}

	original := all[0]
	all[0].Size = monitor.Size{Width: 2560, Height: 1440}
	Rearrange(original, all, rules)

	if all[1].Offset != (monitor.Offset{X: 2560, Y: 0}) {
		t.Fatalf("expected neighbour at (2560,0), got %+v", all[1].Offset)
	}
	assertNoOverlap(t, all, rules)
}

func TestRearrange_StackedNeighbourMovesDownOnly(t *testing.T) {
	rules := backend.RulesFor(backend.KindHyprland)
	all := []monitor.Monitor{mon(0, 0, 0, 1920, 1080), mon(1, 0, 1080, 1920, 1080)}

	original := all[0]
	all[0].Size = monitor.Size{Width: 2560, Height: 1440}
	Rearrange(original, all, rules)

	if all[1].Offset != (monitor.Offset{X: 0, Y: 1440}) {
		t.Fatalf("expected stacked neighbour at (0,1440), got %+v", all[1].Offset)
	}
}

func TestRearrange_RotationShrinksWidth(t *testing.T) {
	rules := backend.RulesFor(backend.KindHyprland)
	all := []monitor.Monitor{mon(0, 0, 0, 1920, 1080), mon(1, 1920, 0, 1920, 1080)}

	original := all[0]
	all[0].Transform = monitor.Transform90
	Rearrange(original, all, rules)

	if all[1].Offset.X != 1080 {
		t.Fatalf("expected neighbour x=1080 after rotation, got %d", all[1].Offset.X)
	}
	assertNoOverlap(t, all, rules)
}

func TestRearrange_ScaleChange(t *testing.T) {
	rules := backend.RulesFor(backend.KindHyprland)
	all := []monitor.Monitor{mon(0, 0, 0, 3840, 2160), mon(1, 1920, 0, 1920, 1080)}
	all[0].Scale = 2

	original := all[0]
	all[0].Scale = 1
	Rearrange(original, all, rules)

	if all[1].Offset.X != 3840 {
		t.Fatalf("expected neighbour x=3840, got %d", all[1].Offset.X)
	}
}

func TestRearrange_DisableClosesGap(t *testing.T) {
	rules := backend.RulesFor(backend.KindHyprland)
	all := []monitor.Monitor{
		mon(0, 0, 0, 1920, 1080),
		mon(1, 1920, 0, 1920, 1080),
		mon(2, 3840, 0, 1920, 1080),
	}

	original := all[1]
	all[1].Enabled = false
	Rearrange(original, all, rules)

	if all[2].Offset.X != 1920 {
		t.Fatalf("expected third monitor to close the gap at x=1920, got %d", all[2].Offset.X)
	}
	if all[0].Offset.X != 0 {
		t.Fatalf("left monitor must not move, got %d", all[0].Offset.X)
	}
}

func TestRearrange_ReenablePlacesAtFrontier(t *testing.T) {
	rules := backend.RulesFor(backend.KindHyprland)
	all := []monitor.Monitor{
		mon(0, 0, 0, 1920, 1080),
		mon(1, 1920, 0, 2560, 1440),
		mon(2, 0, 0, 1280, 1024),
	}
	all[2].Enabled = false

	original := all[2]
	all[2].Enabled = true
	Rearrange(original, all, rules)

	if all[2].Offset.X != 1920+2560 {
		t.Fatalf("expected re-enabled monitor at frontier 4480, got %d", all[2].Offset.X)
	}
	if all[0].Offset.X != 0 || all[1].Offset.X != 1920 {
		t.Fatalf("existing monitors moved: %+v", offsets(all))
	}
	assertNoOverlap(t, all, rules)
}

func TestRearrange_ResolvesOverlapAtFrontier(t *testing.T) {
	rules := backend.RulesFor(backend.KindHyprland)
	all := []monitor.Monitor{
		mon(0, 0, 0, 1920, 1080),
		mon(1, 1000, 0, 1920, 1080),
		mon(2, 0, 1080, 1920, 1080),
	}

	Rearrange(all[0], all, rules)

	if all[1].Offset.X != 2920 {
		t.Fatalf("expected overlapping monitor moved to frontier 2920, got %d", all[1].Offset.X)
	}
	if all[2].Offset != (monitor.Offset{X: 0, Y: 1080}) {
		t.Fatalf("non-overlapping monitor moved: %+v", all[2].Offset)
	}
	assertNoOverlap(t, all, rules)
}

func TestRearrange_NormalizesOrigin(t *testing.T) {
	rules := backend.RulesFor(backend.KindGNOME)
	all := []monitor.Monitor{mon(0, -1920, -200, 1920, 1080), mon(1, 0, 0, 1920, 1080)}

	Rearrange(all[1], all, rules)

	want := []monitor.Offset{{X: 0, Y: 0}, {X: 1920, Y: 200}}
	for i, w := range want {
		if all[i].Offset != w {
			t.Fatalf("monitor %d: expected %+v, got %+v", i, w, all[i].Offset)
		}
	}
}

func TestRearrange_Idempotent(t *testing.T) {
	cases := []struct {
		name  string
		kind  backend.Kind
		edit  func(m *monitor.Monitor)
		setup []monitor.Monitor
	}{
		{
			name:  "resize",
			kind:  backend.KindKDE,
			edit:  func(m *monitor.Monitor) { m.Size = monitor.Size{Width: 1280, Height: 720} },
			setup: []monitor.Monitor{mon(0, 0, 0, 1920, 1080), mon(1, 1920, 0, 1920, 1080)},
		},
		{
			name:  "disable",
			kind:  backend.KindGNOME,
			edit:  func(m *monitor.Monitor) { m.Enabled = false },
			setup: []monitor.Monitor{mon(0, 0, 0, 1920, 1080), mon(1, 1920, 0, 1920, 1080)},
		},
		{
			name:  "rotate",
			kind:  backend.KindWlroots,
			edit:  func(m *monitor.Monitor) { m.Transform = monitor.Transform270 },
			setup: []monitor.Monitor{mon(0, 0, 0, 2560, 1440), mon(1, 2560, 0, 1920, 1080)},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rules := backend.RulesFor(tc.kind)
			all := monitor.Clone(tc.setup)

			original := all[0]
			tc.edit(&all[0])
			Rearrange(original, all, rules)
			first := offsets(all)

			Rearrange(all[0], all, rules)
			second := offsets(all)

			for i := range first {
				if first[i] != second[i] {
					t.Fatalf("monitor %d moved on second pass: %+v -> %+v", i, first[i], second[i])
				}
			}
			assertNoOverlap(t, all, rules)
		})
	}
}

func TestRearrange_UnknownMonitorIsNoop(t *testing.T) {
	rules := backend.RulesFor(backend.KindHyprland)
	all := []monitor.Monitor{mon(0, 0, 0, 1920, 1080)}

	Rearrange(mon(9, 0, 0, 10, 10), all, rules)

	if all[0].Offset != (monitor.Offset{}) {
		t.Fatalf("unexpected move: %+v", all[0].Offset)
	}
}

func TestNormalize_IgnoresDisabled(t *testing.T) {
	rules := backend.RulesFor(backend.KindKDE)
	all := []monitor.Monitor{mon(0, 100, 50, 1920, 1080), mon(1, -5000, -5000, 1920, 1080)}
	all[1].Enabled = false

	Normalize(all, rules)

	if all[0].Offset != (monitor.Offset{}) {
		t.Fatalf("expected enabled monitor at origin, got %+v", all[0].Offset)
	}
}

// Random edits on a row of monitors, rearranged after each one the way the
// session does, never leave two occupied monitors overlapping.
func TestRearrange_EditSequences(t *testing.T) {
	sizes := []monitor.Size{
		{Width: 1920, Height: 1080},
		{Width: 2560, Height: 1440},
		{Width: 3840, Height: 2160},
		{Width: 1280, Height: 1024},
		{Width: 2256, Height: 1504},
	}
	scales := []float64{1, 1.25, 1.5, 2}
	kinds := []backend.Kind{backend.KindWlroots, backend.KindGNOME, backend.KindHyprland, backend.KindKDE}
	seeds := []int64{1, 7, 42, 1234, 99991}

	for _, kind := range kinds {
		for _, seed := range seeds {
			t.Run(fmt.Sprintf("%s/seed-%d", kind, seed), func(t *testing.T) {
				rules := backend.RulesFor(kind)
				rng := rand.New(rand.NewSource(seed))

				all := make([]monitor.Monitor, 4)
				x := 0
				for i := range all {
					s := sizes[rng.Intn(len(sizes))]
					all[i] = mon(uint32(i), x, 0, s.Width, s.Height)
					x += s.Width
				}
				assertNoOverlap(t, all, rules)

				for step := 0; step < 40; step++ {
					idx := rng.Intn(len(all))
					original := all[idx]
					m := &all[idx]

					var op string
					switch rng.Intn(4) {
					case 0:
						op = "toggle"
						if m.Enabled && enabledCount(all) == 1 {
							continue
						}
						m.Enabled = !m.Enabled
					case 1:
						op = "mode"
						m.Size = sizes[rng.Intn(len(sizes))]
					case 2:
						op = "rotate"
						m.Transform = monitor.Transform(rng.Intn(int(monitor.TransformFlipped270) + 1))
					default:
						op = "scale"
						m.Scale = scales[rng.Intn(len(scales))]
					}

					Rearrange(original, all, rules)
					if pairs := Overlapping(all, rules); len(pairs) != 0 {
						t.Fatalf("step %d (%s on %d): overlapping monitors %v: %+v", step, op, idx, pairs, offsets(all))
					}

					settled := offsets(all)
					Rearrange(all[idx], all, rules)
					for i, o := range offsets(all) {
						if o != settled[i] {
							t.Fatalf("step %d (%s on %d): monitor %d moved on second pass: %+v -> %+v", step, op, idx, i, settled[i], o)
						}
					}
				}
			})
		}
	}
}

func enabledCount(all []monitor.Monitor) int {
	n := 0
	for i := range all {
		if all[i].Enabled {
			n++
		}
	}
	return n
}
