package drag

import (
	"math"

	"github.com/1broseidon/outputctl/internal/backend"
	"github.com/1broseidon/outputctl/internal/monitor"
)

// Outcome is the result of finishing a drag gesture.
type Outcome int

const (
	// OutcomeIdle means no gesture was active.
	OutcomeIdle Outcome = iota
	// OutcomeSnapped means the monitor moved and at least one edge snapped.
	OutcomeSnapped
	// OutcomeMoved means the monitor moved by the raw delta.
	OutcomeMoved
	// OutcomeReverted means the move was rejected and the offset restored.
	OutcomeReverted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIdle:
		return "idle"
	case OutcomeSnapped:
		return "snapped"
	case OutcomeMoved:
		return "moved"
	case OutcomeReverted:
		return "reverted"
	default:
		return "unknown"
	}
}

// Dragger runs pointer gestures over a monitor collection. The collection is
// shared with the caller; Dragger writes DragState and, on success, Offset.
type Dragger struct {
	monitors []monitor.Monitor
	rules    backend.Rules

	active         int
	startX, startY float64
}

// NewDragger returns an idle Dragger. Call Project on monitors first so that
// hit testing uses current drawing geometry.
func NewDragger(monitors []monitor.Monitor, rules backend.Rules) *Dragger {
	return &Dragger{monitors: monitors, rules: rules, active: -1}
}

// Active returns the index of the monitor being dragged, or -1.
func (d *Dragger) Active() int {
	return d.active
}

// Begin starts a gesture at the drawing-space point (x, y). It succeeds only
// when the point lies within exactly one occupied monitor and no other
// gesture is active.
func (d *Dragger) Begin(x, y float64) bool {
	if d.active >= 0 {
		return false
	}
	for i := range d.monitors {
		if d.monitors[i].Drag.DragActive {
			return false
		}
	}

	hit := -1
	for i := range d.monitors {
		m := &d.monitors[i]
		if !d.rules.Counts(m) {
			continue
		}
		if Drawn(m).Contains(x, y) {
			if hit >= 0 {
				return false
			}
			hit = i
		}
	}
	if hit < 0 {
		return false
	}

	m := &d.monitors[hit]
	m.Drag.Clicked = true
	m.Drag.DragActive = true
	m.Drag.OriginX = m.Offset.X
	m.Drag.OriginY = m.Offset.Y
	m.Drag.DragX = 0
	m.Drag.DragY = 0
	d.active = hit
	d.startX, d.startY = x, y
	return true
}

// Update records the pointer position. The delta from the start point is
// converted to logical units and held in DragX/DragY; Offset is unchanged.
func (d *Dragger) Update(x, y float64) {
	if d.active < 0 {
		return
	}
	m := &d.monitors[d.active]
	factor := m.Drag.Factor
	if factor <= 0 {
		factor = 1
	}
	m.Drag.DragX = int(math.Round((x - d.startX) * factor))
	m.Drag.DragY = int(math.Round((y - d.startY) * factor))
}

// End finishes the gesture: it snaps, validates and commits the move or
// reverts it.
func (d *Dragger) End() Outcome {
	if d.active < 0 {
		return OutcomeIdle
	}
	idx := d.active
	d.active = -1
	return finish(d.monitors, idx, d.rules)
}

// Cancel abandons the gesture without moving anything.
func (d *Dragger) Cancel() {
	if d.active < 0 {
		return
	}
	reset(&d.monitors[d.active])
	d.active = -1
}

// MoveBy drives a complete gesture on the monitor with the given ID from a
// logical delta.
func MoveBy(monitors []monitor.Monitor, id uint32, dx, dy int, rules backend.Rules) Outcome {
	idx := monitor.FindByID(monitors, id)
	if idx < 0 {
		return OutcomeIdle
	}
	for i := range monitors {
		if monitors[i].Drag.DragActive {
			return OutcomeIdle
		}
	}
	m := &monitors[idx]
	m.Drag.DragActive = true
	m.Drag.OriginX = m.Offset.X
	m.Drag.OriginY = m.Offset.Y
	m.Drag.DragX = dx
	m.Drag.DragY = dy
	return finish(monitors, idx, rules)
}

func reset(m *monitor.Monitor) {
	m.Drag.DragX = 0
	m.Drag.DragY = 0
	m.Drag.DragActive = false
	m.Drag.Clicked = false
}
