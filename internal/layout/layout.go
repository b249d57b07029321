package layout

import (
	"github.com/1broseidon/outputctl/internal/backend"
	"github.com/1broseidon/outputctl/internal/monitor"
)

// occupied returns the logical footprint of m under rules. Monitors that do
// not occupy space have a zero footprint.
func occupied(m *monitor.Monitor, rules backend.Rules) monitor.Size {
	if !rules.Counts(m) {
		return monitor.Size{}
	}
	return m.PostScaledTransformSize()
}

// Frontier returns the furthest right edge of all monitors occupying space,
// skipping the monitor at index skip (use -1 to include every monitor).
func Frontier(all []monitor.Monitor, rules backend.Rules, skip int) int {
	furthest := 0
	seen := false
	for i := range all {
		if i == skip || !rules.Counts(&all[i]) {
			continue
		}
		right := all[i].Rect().Right()
		if !seen || right > furthest {
			furthest = right
			seen = true
		}
	}
	return furthest
}

// Rearrange repositions monitors after a geometry edit so that no two
// occupied rectangles overlap. original is a copy of the edited monitor
// taken before the edit; the edited monitor itself is looked up in all by ID.
//
// Monitors whose left edge is at or past the edited monitor's old right edge
// move horizontally by the change in its width; monitors whose top edge is at
// or past its old bottom edge move vertically by the change in its height.
// The comparison is against the old far edge, not the old left or top edge,
// so a neighbour stacked below keeps its X and one to the right keeps its Y.
// A monitor coming back from disabled is placed at the right-hand frontier.
// Any remaining overlap is resolved by moving the non-edited monitor of the
// pair to the frontier. Calling Rearrange again without an intervening edit
// moves nothing.
func Rearrange(original monitor.Monitor, all []monitor.Monitor, rules backend.Rules) {
	idx := monitor.FindByID(all, original.ID)
	if idx < 0 {
		return
	}
	edited := &all[idx]

	oldSize := occupied(&original, rules)
	newSize := occupied(edited, rules)
	diff := monitor.Size{
		Width:  newSize.Width - oldSize.Width,
		Height: newSize.Height - oldSize.Height,
	}

	reenabled := !original.Enabled && edited.Enabled && !rules.DisabledTakeSpace

	if !reenabled {
		oldRight := original.Offset.X + oldSize.Width
		oldBottom := original.Offset.Y + oldSize.Height
		for i := range all {
			if i == idx || !rules.Counts(&all[i]) {
				continue
			}
			if diff.Width != 0 && all[i].Offset.X >= oldRight {
				all[i].Offset.X += diff.Width
			}
			if diff.Height != 0 && all[i].Offset.Y >= oldBottom {
				all[i].Offset.Y += diff.Height
			}
		}
	}

	var furthest int
	if reenabled {
		furthest = Frontier(all, rules, idx)
		edited.Offset.X = furthest
		furthest += newSize.Width
	} else {
		furthest = Frontier(all, rules, -1)
	}

	resolveOverlaps(all, idx, furthest, rules)

	if rules.NormalizeOrigin {
		Normalize(all, rules)
	}
}

// resolveOverlaps walks occupied monitors in slice order and moves the
// non-edited member of every overlapping pair to the frontier.
func resolveOverlaps(all []monitor.Monitor, edited, furthest int, rules backend.Rules) {
	checked := make([]bool, len(all))
	for i := range all {
		if checked[i] || !rules.Counts(&all[i]) {
			continue
		}
		for j := range all {
			if j == i || !rules.Counts(&all[j]) {
				continue
			}
			// A monitor sitting exactly on the frontier is adjacent to the
			// rightmost edge, never overlapping it.
			if all[i].Offset.X == furthest || all[j].Offset.X == furthest {
				continue
			}
			if !all[i].Intersects(&all[j]) {
				continue
			}

			mover := j
			if j == edited {
				mover = i
			}
			all[mover].Offset.X = furthest
			furthest += all[mover].PostScaledTransformSize().Width
			checked[mover] = true
			if mover == i {
				break
			}
		}
		checked[i] = true
	}
}

// Normalize shifts every monitor so that the top-left corner of the occupied
// area sits at (0,0).
func Normalize(all []monitor.Monitor, rules backend.Rules) {
	minX, minY := 0, 0
	seen := false
	for i := range all {
		if !rules.Counts(&all[i]) {
			continue
		}
		if !seen || all[i].Offset.X < minX {
			minX = all[i].Offset.X
		}
		if !seen || all[i].Offset.Y < minY {
			minY = all[i].Offset.Y
		}
		seen = true
	}
	if !seen || (minX == 0 && minY == 0) {
		return
	}
	for i := range all {
		all[i].Offset.X -= minX
		all[i].Offset.Y -= minY
	}
}

// Overlapping returns the index pairs of occupied monitors whose rectangles
// intersect.
func Overlapping(all []monitor.Monitor, rules backend.Rules) [][2]int {
	var pairs [][2]int
	for i := range all {
		if !rules.Counts(&all[i]) {
			continue
		}
		for j := i + 1; j < len(all); j++ {
			if !rules.Counts(&all[j]) {
				continue
			}
			if all[i].Intersects(&all[j]) {
				pairs = append(pairs, [2]int{i, j})
			}
		}
	}
	return pairs
}
