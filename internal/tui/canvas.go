package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/outputctl/internal/drag"
	"github.com/1broseidon/outputctl/internal/monitor"
)

// cellAspect is how many drawing units one terminal row spans. Cells are
// roughly twice as tall as they are wide.
const cellAspect = 2.0

var (
	monitorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")).
			Background(lipgloss.Color("236"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62"))

	draggingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("130"))

	disabledStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

type cell struct {
	r     rune
	owner int
}

// canvasSize returns the drawing-space size of a cols x rows area.
func canvasSize(cols, rows int) (float64, float64) {
	return float64(cols), float64(rows) * cellAspect
}

// canvasPoint maps a terminal cell to the drawing-space point at its center.
func canvasPoint(col, row int) (float64, float64) {
	return float64(col) + 0.5, (float64(row) + 0.5) * cellAspect
}

// renderCanvas draws projected monitors into a cols x rows block.
func renderCanvas(monitors []monitor.Monitor, selected, cols, rows int) string {
	if cols < 1 || rows < 1 {
		return ""
	}
	grid := make([][]cell, rows)
	for y := range grid {
		grid[y] = make([]cell, cols)
		for x := range grid[y] {
			grid[y][x] = cell{r: ' ', owner: -1}
		}
	}

	order := make([]int, 0, len(monitors))
	for i := range monitors {
		if i != selected && !monitors[i].Drag.DragActive {
			order = append(order, i)
		}
	}
	for i := range monitors {
		if i == selected || monitors[i].Drag.DragActive {
			order = append(order, i)
		}
	}
	for _, i := range order {
		drawMonitor(grid, &monitors[i], i)
	}

	lines := make([]string, rows)
	for y, row := range grid {
		var sb strings.Builder
		start := 0
		for x := 1; x <= len(row); x++ {
			if x < len(row) && row[x].owner == row[start].owner {
				continue
			}
			run := make([]rune, 0, x-start)
			for _, c := range row[start:x] {
				run = append(run, c.r)
			}
			sb.WriteString(styleFor(monitors, row[start].owner, selected).Render(string(run)))
			start = x
		}
		lines[y] = sb.String()
	}
	return strings.Join(lines, "\n")
}

func styleFor(monitors []monitor.Monitor, owner, selected int) lipgloss.Style {
	switch {
	case owner < 0:
		return lipgloss.NewStyle()
	case monitors[owner].Drag.DragActive:
		return draggingStyle
	case !monitors[owner].Enabled:
		return disabledStyle
	case owner == selected:
		return selectedStyle
	default:
		return monitorStyle
	}
}

func drawMonitor(grid [][]cell, m *monitor.Monitor, owner int) {
	rows, cols := len(grid), len(grid[0])
	r := drag.Drawn(m)
	x1 := clamp(int(math.Floor(r.X)), 0, cols-1)
	x2 := clamp(int(math.Floor(r.X+r.Width))-1, 0, cols-1)
	y1 := clamp(int(math.Floor(r.Y/cellAspect)), 0, rows-1)
	y2 := clamp(int(math.Floor((r.Y+r.Height)/cellAspect))-1, 0, rows-1)
	if x2 <= x1 || y2 <= y1 {
		return
	}

	h, v := '─', '│'
	corners := [4]rune{'┌', '┐', '└', '┘'}
	if !m.Enabled {
		h, v = '╌', '╎'
	}
	for y := y1; y <= y2; y++ {
		for x := x1; x <= x2; x++ {
			ch := ' '
			switch {
			case y == y1 && x == x1:
				ch = corners[0]
			case y == y1 && x == x2:
				ch = corners[1]
			case y == y2 && x == x1:
				ch = corners[2]
			case y == y2 && x == x2:
				ch = corners[3]
			case y == y1 || y == y2:
				ch = h
			case x == x1 || x == x2:
				ch = v
			}
			grid[y][x] = cell{r: ch, owner: owner}
		}
	}

	labels := monitorLabels(m)
	inner := x2 - x1 - 1
	top := y1 + 1 + max((y2-y1-1-len(labels))/2, 0)
	for i, label := range labels {
		y := top + i
		if y >= y2 {
			break
		}
		text := []rune(label)
		if len(text) > inner {
			text = text[:inner]
		}
		start := x1 + 1 + (inner-len(text))/2
		for j, ch := range text {
			grid[y][start+j] = cell{r: ch, owner: owner}
		}
	}
}

func monitorLabels(m *monitor.Monitor) []string {
	name := m.Name
	if m.Primary {
		name += " *"
	}
	if !m.Enabled {
		return []string{name, "off"}
	}
	labels := []string{name, fmt.Sprintf("%dx%d@%d", m.Size.Width, m.Size.Height, m.RefreshRate)}
	detail := fmt.Sprintf("%gx", m.Scale)
	if m.Transform != monitor.TransformNormal {
		detail += " " + m.Transform.String()
	}
	return append(labels, detail)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
