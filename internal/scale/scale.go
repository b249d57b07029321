package scale

import (
	"errors"
	"fmt"
	"math"

	"github.com/1broseidon/outputctl/internal/backend"
	"github.com/1broseidon/outputctl/internal/layout"
	"github.com/1broseidon/outputctl/internal/monitor"
)

// ErrNoLegalScale is returned when no scale near the request keeps the
// logical size integral.
var ErrNoLegalScale = errors.New("no legal scale near requested value")

// Units is the number of search steps per whole scale, the smallest step
// fractional-scale protocols negotiate.
const Units = 120

const (
	forwardSteps  = 6
	backwardSteps = 100
	epsilon       = 1e-9
)

// Direction is the direction of user intent.
type Direction int

const (
	Up   Direction = 1
	Down Direction = -1
)

// DirectionOf returns Up when target is above current, Down otherwise.
func DirectionOf(current, target float64) Direction {
	if target > current {
		return Up
	}
	return Down
}

// Legal reports whether s keeps the width or height of size integral.
// A scale of exactly 1 is always legal.
func Legal(size monitor.Size, s float64) bool {
	if s == 1 {
		return true
	}
	if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return false
	}
	return integral(float64(size.Width)/s) || integral(float64(size.Height)/s)
}

func integral(v float64) bool {
	return math.Abs(v-math.Round(v)) < 1e-6
}

// legalUnits is Legal for a scale of n/Units, computed without rounding error.
func legalUnits(size monitor.Size, n int) bool {
	if n <= 0 {
		return false
	}
	if n == Units {
		return true
	}
	return (size.Width*Units)%n == 0 || (size.Height*Units)%n == 0
}

// Search finds the legal scale nearest to target. It steps in 1/120 units
// up to 6 steps in dir, then up to 100 steps the other way. The second
// result is false when nothing legal was found.
func Search(size monitor.Size, target float64, dir Direction) (float64, bool) {
	if Legal(size, target) {
		return target, true
	}
	if dir != Up && dir != Down {
		dir = Up
	}

	start := int(math.Round(target * Units))
	for i := 0; i <= forwardSteps; i++ {
		n := start + i*int(dir)
		if legalUnits(size, n) {
			return float64(n) / Units, true
		}
	}
	for i := 1; i <= backwardSteps; i++ {
		n := start - i*int(dir)
		if legalUnits(size, n) {
			return float64(n) / Units, true
		}
	}
	return 0, false
}

// Nearest returns the element of list closest to target. list must not be
// empty.
func Nearest(list []float64, target float64) float64 {
	best := list[0]
	for _, v := range list[1:] {
		if math.Abs(v-target) < math.Abs(best-target) {
			best = v
		}
	}
	return best
}

// Pick chooses the scale m should use for a request, without committing it.
// Backends with a fixed scale accept only 1. Monitors with a discrete scale
// list get the nearest listed value, monitors on backends without fractional
// scaling get the nearest whole scale, and
// everything else goes through Search.
func Pick(m *monitor.Monitor, target float64) (float64, error) {
	if target <= 0 || math.IsNaN(target) || math.IsInf(target, 0) {
		return 0, fmt.Errorf("scale %v: %w", target, monitor.ErrInvalidScale)
	}
	if m.Features.FixedScale {
		if math.Abs(target-1) < epsilon {
			return 1, nil
		}
		return 0, fmt.Errorf("monitor %s, scale %.4g: backend only supports scale 1: %w", m.Name, target, ErrNoLegalScale)
	}
	if mode := m.CurrentMode(); mode != nil && len(mode.SupportedScales) > 0 {
		return Nearest(mode.SupportedScales, target), nil
	}
	if !m.Features.FractionalScaling {
		return math.Max(1, math.Round(target)), nil
	}

	prev := m.Drag.PrevScale
	if prev <= 0 {
		prev = m.Scale
	}
	s, ok := Search(m.Size, target, DirectionOf(prev, target))
	if !ok {
		return 0, fmt.Errorf("monitor %s at %s, scale %.4g: %w", m.Name, m.Size, target, ErrNoLegalScale)
	}
	return s, nil
}

// Resolve sets the scale of the monitor with the given ID to the legal value
// nearest target and rearranges the collection around its new footprint.
// On failure the scale is left at its last good value and nothing moves.
// It returns the committed scale.
func Resolve(all []monitor.Monitor, id uint32, target float64, rules backend.Rules) (float64, error) {
	idx := monitor.FindByID(all, id)
	if idx < 0 {
		return 0, fmt.Errorf("monitor %d not found", id)
	}
	m := &all[idx]
	if m.Drag.PrevScale <= 0 {
		m.Drag.PrevScale = m.Scale
	}

	s, err := Pick(m, target)
	if err != nil {
		m.Scale = m.Drag.PrevScale
		return m.Scale, err
	}
	if math.Abs(s-m.Drag.PrevScale) < epsilon && math.Abs(s-m.Scale) < epsilon {
		return s, nil
	}

	original := *m
	original.Scale = m.Drag.PrevScale

	m.Scale = s
	m.Drag.PrevScale = s
	layout.Rearrange(original, all, rules)
	return s, nil
}
