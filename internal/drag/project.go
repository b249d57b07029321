package drag

import (
	"math"

	"github.com/1broseidon/outputctl/internal/monitor"
)

// Project maps the logical arrangement onto a drawing canvas of the given
// size. It fills each monitor's DragState with its drawing-space width,
// height, the logical-units-per-drawing-unit factor and the border offsets
// that center the arrangement inside padding.
func Project(monitors []monitor.Monitor, canvasW, canvasH, padding float64) {
	if len(monitors) == 0 {
		return
	}

	minX, minY := math.MaxInt, math.MaxInt
	maxX, maxY := math.MinInt, math.MinInt
	for i := range monitors {
		r := monitors[i].Rect()
		minX = min(minX, r.X)
		minY = min(minY, r.Y)
		maxX = max(maxX, r.Right())
		maxY = max(maxY, r.Bottom())
	}

	spanW := float64(maxX - minX)
	spanH := float64(maxY - minY)
	availW := math.Max(canvasW-2*padding, 1)
	availH := math.Max(canvasH-2*padding, 1)

	factor := math.Max(spanW/availW, spanH/availH)
	if factor <= 0 {
		factor = 1
	}

	borderX := padding + (availW-spanW/factor)/2 - float64(minX)/factor
	borderY := padding + (availH-spanH/factor)/2 - float64(minY)/factor

	for i := range monitors {
		s := monitors[i].PostScaledTransformSize()
		d := &monitors[i].Drag
		d.Width = float64(s.Width) / factor
		d.Height = float64(s.Height) / factor
		d.Factor = factor
		d.BorderOffsetX = borderX
		d.BorderOffsetY = borderY
	}
}

// DrawRect is a monitor's rectangle in drawing units, including any pending
// drag delta.
type DrawRect struct {
	X, Y, Width, Height float64
}

// Contains reports whether (x, y) lies inside r using half-open bounds.
func (r DrawRect) Contains(x, y float64) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Drawn returns the drawing-space rectangle of m. Project must have run.
func Drawn(m *monitor.Monitor) DrawRect {
	d := m.Drag
	factor := d.Factor
	if factor <= 0 {
		factor = 1
	}
	return DrawRect{
		X:      d.BorderOffsetX + float64(m.Offset.X+d.DragX)/factor,
		Y:      d.BorderOffsetY + float64(m.Offset.Y+d.DragY)/factor,
		Width:  d.Width,
		Height: d.Height,
	}
}
