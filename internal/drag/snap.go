package drag

import (
	"github.com/1broseidon/outputctl/internal/backend"
	"github.com/1broseidon/outputctl/internal/layout"
	"github.com/1broseidon/outputctl/internal/monitor"
)

// candidate is a snap target on one axis.
type candidate struct {
	pos      int
	dist     int
	opposing bool
	ok       bool
}

// better reports whether c beats cur. Opposing-side snaps (edge meets the
// facing edge) always beat same-side alignment; ties go to the shorter
// distance.
func (c candidate) better(cur candidate) bool {
	if !c.ok {
		return false
	}
	if !cur.ok {
		return true
	}
	if c.opposing != cur.opposing {
		return c.opposing
	}
	return c.dist < cur.dist
}

// axisSnap finds the snap for a segment [start, start+length) against the
// segment [oStart, oStart+oLength).
func axisSnap(start, length, oStart, oLength, threshold int) candidate {
	end := start + length
	oEnd := oStart + oLength

	// end meets oStart, start meets oEnd
	opp := nearest(
		candidate{pos: oStart - length, dist: abs(end - oStart), opposing: true},
		candidate{pos: oEnd, dist: abs(start - oEnd), opposing: true},
	)
	if opp.dist < threshold {
		opp.ok = true
		return opp
	}

	// end aligns with oEnd, start aligns with oStart
	same := nearest(
		candidate{pos: oEnd - length, dist: abs(end - oEnd)},
		candidate{pos: oStart, dist: abs(start - oStart)},
	)
	if same.dist < threshold {
		same.ok = true
		return same
	}
	return candidate{}
}

func nearest(a, b candidate) candidate {
	if b.dist < a.dist {
		return b
	}
	return a
}

// finish snaps, validates and commits the pending drag on monitors[idx].
func finish(monitors []monitor.Monitor, idx int, rules backend.Rules) Outcome {
	m := &monitors[idx]
	threshold := rules.SnapThreshold
	if threshold <= 0 {
		threshold = backend.DefaultSnapThreshold
	}

	size := m.PostScaledTransformSize()
	newX := m.Drag.OriginX + m.Drag.DragX
	newY := m.Drag.OriginY + m.Drag.DragY

	var snapX, snapY candidate
	for i := range monitors {
		if i == idx || !rules.Counts(&monitors[i]) {
			continue
		}
		r := monitors[i].Rect()
		if c := axisSnap(newX, size.Width, r.X, r.Width, threshold); c.better(snapX) {
			snapX = c
		}
		if c := axisSnap(newY, size.Height, r.Y, r.Height, threshold); c.better(snapY) {
			snapY = c
		}
	}
	if snapX.ok {
		newX = snapX.pos
	}
	if snapY.ok {
		newY = snapY.pos
	}

	proposed := monitor.Rect{X: newX, Y: newY, Width: size.Width, Height: size.Height}
	if collides(monitors, idx, proposed, rules) {
		return revert(m)
	}
	// Snapping on both axes can still leave only a corner in contact, which
	// compositors that forbid gaps reject as not adjacent. The gap check
	// therefore runs whatever snapped.
	if rules.DisallowGaps && !touchesAny(monitors, idx, proposed, rules) {
		return revert(m)
	}

	moved := newX != m.Offset.X || newY != m.Offset.Y
	m.Offset = monitor.Offset{X: newX, Y: newY}
	reset(m)
	if moved {
		m.Drag.Changed = true
	}
	if rules.NormalizeOrigin {
		layout.Normalize(monitors, rules)
	}

	if snapX.ok || snapY.ok {
		return OutcomeSnapped
	}
	return OutcomeMoved
}

func revert(m *monitor.Monitor) Outcome {
	m.Offset = monitor.Offset{X: m.Drag.OriginX, Y: m.Drag.OriginY}
	reset(m)
	return OutcomeReverted
}

// collides reports whether r overlaps any other occupied monitor. Shared
// edges are adjacency, not overlap.
func collides(monitors []monitor.Monitor, idx int, r monitor.Rect, rules backend.Rules) bool {
	if !rules.Counts(&monitors[idx]) {
		return false
	}
	for i := range monitors {
		if i == idx || !rules.Counts(&monitors[i]) {
			continue
		}
		if r.Intersects(monitors[i].Rect()) {
			return true
		}
	}
	return false
}

// touchesAny reports whether r shares an edge segment with some other
// occupied monitor. With no other occupied monitors there is nothing to gap
// against, so it reports true.
func touchesAny(monitors []monitor.Monitor, idx int, r monitor.Rect, rules backend.Rules) bool {
	others := 0
	for i := range monitors {
		if i == idx || !rules.Counts(&monitors[i]) {
			continue
		}
		others++
		o := monitors[i].Rect()
		// closed on both axes, but a bare corner does not count
		xClosed := r.X <= o.Right() && o.X <= r.Right()
		yClosed := r.Y <= o.Bottom() && o.Y <= r.Bottom()
		xOpen := r.X < o.Right() && o.X < r.Right()
		yOpen := r.Y < o.Bottom() && o.Y < r.Bottom()
		if xClosed && yClosed && (xOpen || yOpen) {
			return true
		}
	}
	return others == 0
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
