package monitor

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidScale is returned when a scale is zero or negative.
	ErrInvalidScale = errors.New("scale must be greater than zero")
	// ErrInvalidSize is returned when a width or height is zero or negative.
	ErrInvalidSize = errors.New("size components must be greater than zero")
)

// Offset is a position in the shared logical coordinate space.
type Offset struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Size is a width/height pair in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns Width*Height.
func (s Size) Area() int {
	return s.Width * s.Height
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Rect is an axis-aligned rectangle in logical coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Right returns the exclusive right edge.
func (r Rect) Right() int { return r.X + r.Width }

// Bottom returns the exclusive bottom edge.
func (r Rect) Bottom() int { return r.Y + r.Height }

// Intersects reports whether two rectangles overlap. Edges that only touch
// do not count.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.Right() && o.X < r.Right() && r.Y < o.Bottom() && o.Y < r.Bottom()
}

// Features are the capability flags of a backend family.
type Features struct {
	VRR               bool `json:"vrr"`
	Primary           bool `json:"primary"`
	FractionalScaling bool `json:"fractional_scaling"`
	HDR               bool `json:"hdr"`
	// FixedScale marks backends that only drive outputs at scale 1.
	FixedScale bool `json:"fixed_scale"`
}

// DragState is session-local interaction state. It never crosses a backend
// boundary.
type DragState struct {
	OriginX int
	OriginY int
	DragX   int
	DragY   int

	// Drawing-space geometry, filled in by drag.Project.
	Width         float64
	Height        float64
	Factor        float64
	BorderOffsetX float64
	BorderOffsetY float64

	Clicked           bool
	DragActive        bool
	Changed           bool
	ResolutionChanged bool

	PrevScale float64
}

// Monitor is one output and its current and available configuration.
type Monitor struct {
	ID     uint32 `json:"id"`
	Name   string `json:"name"`
	Make   string `json:"make,omitempty"`
	Model  string `json:"model,omitempty"`
	Serial string `json:"serial,omitempty"`

	Enabled     bool      `json:"enabled"`
	Offset      Offset    `json:"offset"`
	Size        Size      `json:"size"`
	RefreshRate int       `json:"refresh_rate"`
	Scale       float64   `json:"scale"`
	Transform   Transform `json:"transform"`
	VRR         bool      `json:"vrr"`
	Primary     bool      `json:"primary"`

	// Mode is either a backend mode ID or a synthesized identifier,
	// depending on UsesModeID.
	Mode           string          `json:"mode"`
	UsesModeID     bool            `json:"uses_mode_id"`
	AvailableModes []AvailableMode `json:"available_modes"`

	Features Features `json:"features"`

	Drag DragState `json:"-"`
}

// New validates geometry and returns a monitor with the given identity.
func New(id uint32, name string, size Size, scale float64) (Monitor, error) {
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return Monitor{}, fmt.Errorf("monitor %s: %w (got %v)", name, ErrInvalidScale, scale)
	}
	if size.Width <= 0 || size.Height <= 0 {
		return Monitor{}, fmt.Errorf("monitor %s: %w (got %s)", name, ErrInvalidSize, size)
	}
	return Monitor{
		ID:    id,
		Name:  name,
		Size:  size,
		Scale: scale,
		Drag:  DragState{PrevScale: scale},
	}, nil
}

// Validate checks the constructor constraints on an already populated monitor.
func (m *Monitor) Validate() error {
	if m.Scale <= 0 || math.IsNaN(m.Scale) || math.IsInf(m.Scale, 0) {
		return fmt.Errorf("monitor %s: %w (got %v)", m.Name, ErrInvalidScale, m.Scale)
	}
	if m.Size.Width <= 0 || m.Size.Height <= 0 {
		return fmt.Errorf("monitor %s: %w (got %s)", m.Name, ErrInvalidSize, m.Size)
	}
	return nil
}

// PostTransformSize returns Size with width and height swapped for 90/270
// degree rotations, mirrored or not.
func (m *Monitor) PostTransformSize() Size {
	if m.Transform.Rotated() {
		return Size{Width: m.Size.Height, Height: m.Size.Width}
	}
	return m.Size
}

// PostScaledTransformSize returns the logical footprint of the monitor: the
// post-transform size divided by Scale, rounded to whole units.
func (m *Monitor) PostScaledTransformSize() Size {
	s := m.PostTransformSize()
	scale := m.Scale
	if scale <= 0 {
		scale = 1
	}
	return Size{
		Width:  int(math.Round(float64(s.Width) / scale)),
		Height: int(math.Round(float64(s.Height) / scale)),
	}
}

// Rect returns the logical rectangle at the current offset.
func (m *Monitor) Rect() Rect {
	s := m.PostScaledTransformSize()
	return Rect{X: m.Offset.X, Y: m.Offset.Y, Width: s.Width, Height: s.Height}
}

// IntersectHorizontal reports whether [Offset.X, Offset.X+w) overlaps
// [otherX, otherX+otherW).
func (m *Monitor) IntersectHorizontal(otherX, otherW int) bool {
	w := m.PostScaledTransformSize().Width
	return m.Offset.X < otherX+otherW && otherX < m.Offset.X+w
}

// IntersectVertical reports whether [Offset.Y, Offset.Y+h) overlaps
// [otherY, otherY+otherH).
func (m *Monitor) IntersectVertical(otherY, otherH int) bool {
	h := m.PostScaledTransformSize().Height
	return m.Offset.Y < otherY+otherH && otherY < m.Offset.Y+h
}

// Intersects reports whether the two monitors overlap on both axes.
func (m *Monitor) Intersects(o *Monitor) bool {
	r := o.Rect()
	return m.IntersectHorizontal(r.X, r.Width) && m.IntersectVertical(r.Y, r.Height)
}

// CurrentMode returns the available mode matching Size, or nil.
func (m *Monitor) CurrentMode() *AvailableMode {
	for i := range m.AvailableModes {
		if m.AvailableModes[i].Size == m.Size {
			return &m.AvailableModes[i]
		}
	}
	return nil
}

// SelectMode switches to the given size and refresh rate. If the rate is not
// offered for that size, the highest offered rate is used. It reports
// whether the size exists in AvailableModes.
func (m *Monitor) SelectMode(size Size, rate int) bool {
	var mode *AvailableMode
	for i := range m.AvailableModes {
		if m.AvailableModes[i].Size == size {
			mode = &m.AvailableModes[i]
			break
		}
	}
	if mode == nil || len(mode.RefreshRates) == 0 {
		return false
	}

	chosen := mode.RefreshRates[0]
	for _, rr := range mode.RefreshRates {
		if rr.Rate == rate {
			chosen = rr
			break
		}
	}

	if m.Size != size {
		m.Drag.ResolutionChanged = true
	}
	m.Size = size
	m.RefreshRate = chosen.Rate
	if m.UsesModeID {
		m.Mode = chosen.ModeID
	} else {
		m.Mode = SyntheticModeID(size, chosen.Rate)
	}
	return true
}

// ModeIDFor returns the mode identifier for the current size and refresh
// rate as the backend expects it.
func (m *Monitor) ModeIDFor(size Size, rate int) (string, bool) {
	for _, mode := range m.AvailableModes {
		if mode.Size != size {
			continue
		}
		for _, rr := range mode.RefreshRates {
			if rr.Rate == rate {
				return rr.ModeID, true
			}
		}
	}
	return "", false
}

// Clone returns a deep copy of the list.
func Clone(list []Monitor) []Monitor {
	if list == nil {
		return nil
	}
	out := make([]Monitor, len(list))
	for i, m := range list {
		out[i] = m
		out[i].AvailableModes = cloneModes(m.AvailableModes)
	}
	return out
}

func cloneModes(modes []AvailableMode) []AvailableMode {
	if modes == nil {
		return nil
	}
	out := make([]AvailableMode, len(modes))
	for i, mode := range modes {
		out[i] = mode
		out[i].RefreshRates = append([]RefreshRate(nil), mode.RefreshRates...)
		out[i].SupportedScales = append([]float64(nil), mode.SupportedScales...)
	}
	return out
}

// FindByID returns the index of the monitor with the given ID, or -1.
func FindByID(list []Monitor, id uint32) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

// FindByName returns the index of the monitor with the given connector name,
// or -1.
func FindByName(list []Monitor, name string) int {
	for i := range list {
		if list[i].Name == name {
			return i
		}
	}
	return -1
}

// RoundRefresh converts a backend refresh rate in Hz to whole Hz.
func RoundRefresh(hz float64) int {
	return int(math.Round(hz))
}

// RoundMilliHz converts a refresh rate in mHz to whole Hz.
func RoundMilliHz(mhz int32) int {
	return int(math.Round(float64(mhz) / 1000.0))
}

// SyntheticModeID names a mode for backends without mode identifiers.
func SyntheticModeID(size Size, rate int) string {
	return fmt.Sprintf("%dx%d@%d", size.Width, size.Height, rate)
}
