package wayland

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/1broseidon/outputctl/internal/monitor"
)

var (
	// ErrIncomplete is returned when monitors are requested before the
	// stream signalled done, or a head never finished.
	ErrIncomplete = errors.New("event stream incomplete")
	// ErrNoCurrentMode is returned when an enabled head has no current mode.
	ErrNoCurrentMode = errors.New("enabled head has no current mode")
	// ErrProtocol is returned for events that reference unknown objects.
	ErrProtocol = errors.New("protocol violation")
)

// Options control how heads become monitors.
type Options struct {
	Features monitor.Features
	// UsesModeID keeps protocol mode IDs in Monitor.Mode instead of a
	// synthesized WxH@R name.
	UsesModeID bool
	// PerHeadDone requires EventHeadDone for every head before the batch
	// is accepted.
	PerHeadDone bool
}

type modeBuilder struct {
	id        uint32
	width     int32
	height    int32
	refresh   int32
	preferred bool
}

type headBuilder struct {
	id          uint32
	name        string
	description string
	make        string
	model       string
	serial      string

	enabled    bool
	enabledSet bool
	x, y       int32
	transform  int32
	scale      float64
	vrr        bool
	primary    bool

	modes       []uint32
	currentMode uint32
	hasCurrent  bool

	finished bool
}

// Accumulator builds monitors from an event stream. Heads live in an arena
// indexed in arrival order; head-scoped events apply to the current head
// unless they name one explicitly.
type Accumulator struct {
	opts Options

	heads   []*headBuilder
	byID    map[uint32]int
	modes   map[uint32]*modeBuilder
	current int

	done     bool
	finished bool
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator(opts Options) *Accumulator {
	return &Accumulator{
		opts:    opts,
		byID:    make(map[uint32]int),
		modes:   make(map[uint32]*modeBuilder),
		current: -1,
	}
}

// Done reports whether a complete batch has been received.
func (a *Accumulator) Done() bool {
	return a.done
}

// Finished reports whether the manager announced it is going away.
func (a *Accumulator) Finished() bool {
	return a.finished
}

// Feed applies one event.
func (a *Accumulator) Feed(ev Event) error {
	switch ev.Kind {
	case EventHead:
		if _, ok := a.byID[ev.Head]; ok {
			return fmt.Errorf("%w: duplicate head %d", ErrProtocol, ev.Head)
		}
		a.heads = append(a.heads, &headBuilder{id: ev.Head, scale: 1})
		a.current = len(a.heads) - 1
		a.byID[ev.Head] = a.current
		// A new head after done starts a fresh batch.
		a.done = false
		return nil
	case EventDone:
		a.done = true
		if !a.opts.PerHeadDone {
			for _, h := range a.heads {
				h.finished = true
			}
		}
		return nil
	case EventFinished:
		a.finished = true
		return nil
	case EventModeSize, EventModeRefresh, EventModePreferred:
		return a.feedMode(ev)
	}

	h, err := a.head(ev.Head)
	if err != nil {
		return fmt.Errorf("%s: %w", ev, err)
	}

	switch ev.Kind {
	case EventName:
		h.name = ev.Text
	case EventDescription:
		h.description = ev.Text
	case EventMake:
		h.make = ev.Text
	case EventModel:
		h.model = ev.Text
	case EventSerial:
		h.serial = ev.Text
	case EventEnabled:
		h.enabled = ev.Enabled
		h.enabledSet = true
	case EventPosition:
		h.x, h.y = ev.X, ev.Y
	case EventTransform:
		h.transform = ev.Value
	case EventScale:
		h.scale = ev.Scale
	case EventAdaptiveSync:
		h.vrr = ev.Value != 0
	case EventPrimary:
		h.primary = ev.Enabled
	case EventMode:
		if _, ok := a.modes[ev.Mode]; ok {
			return fmt.Errorf("%w: duplicate mode %d", ErrProtocol, ev.Mode)
		}
		a.modes[ev.Mode] = &modeBuilder{id: ev.Mode}
		h.modes = append(h.modes, ev.Mode)
	case EventCurrentMode:
		h.currentMode = ev.Mode
		h.hasCurrent = true
	case EventHeadDone:
		h.finished = true
	default:
		return fmt.Errorf("%w: unknown event %q", ErrProtocol, ev.Kind)
	}
	return nil
}

func (a *Accumulator) head(id uint32) (*headBuilder, error) {
	if id != 0 {
		idx, ok := a.byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: unknown head %d", ErrProtocol, id)
		}
		a.current = idx
	}
	if a.current < 0 {
		return nil, fmt.Errorf("%w: no current head", ErrProtocol)
	}
	return a.heads[a.current], nil
}

func (a *Accumulator) feedMode(ev Event) error {
	m, ok := a.modes[ev.Mode]
	if !ok {
		return fmt.Errorf("%w: unknown mode %d", ErrProtocol, ev.Mode)
	}
	switch ev.Kind {
	case EventModeSize:
		m.width, m.height = ev.Width, ev.Height
	case EventModeRefresh:
		m.refresh = ev.Refresh
	case EventModePreferred:
		m.preferred = true
	}
	return nil
}

// Monitors converts the accumulated heads. It fails as a whole if the batch
// is incomplete or any head cannot be converted.
func (a *Accumulator) Monitors() ([]monitor.Monitor, error) {
	if !a.done {
		return nil, ErrIncomplete
	}

	out := make([]monitor.Monitor, 0, len(a.heads))
	for _, h := range a.heads {
		if !h.finished {
			return nil, fmt.Errorf("head %d (%s): %w", h.id, h.name, ErrIncomplete)
		}
		m, err := a.convert(h)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (a *Accumulator) convert(h *headBuilder) (monitor.Monitor, error) {
	entries := make([]monitor.ModeEntry, 0, len(h.modes))
	var preferred, current *modeBuilder
	for _, id := range h.modes {
		mb := a.modes[id]
		if mb.width <= 0 || mb.height <= 0 {
			continue
		}
		entries = append(entries, monitor.ModeEntry{
			ID:        strconv.FormatUint(uint64(mb.id), 10),
			Size:      monitor.Size{Width: int(mb.width), Height: int(mb.height)},
			RefreshHz: float64(mb.refresh) / 1000.0,
		})
		if mb.preferred && preferred == nil {
			preferred = mb
		}
		if h.hasCurrent && mb.id == h.currentMode {
			current = mb
		}
	}

	enabled := h.enabled
	if !h.enabledSet {
		enabled = current != nil
	}

	seed := current
	if seed == nil {
		if enabled {
			return monitor.Monitor{}, fmt.Errorf("head %d (%s): %w", h.id, h.name, ErrNoCurrentMode)
		}
		seed = preferred
		if seed == nil && len(h.modes) > 0 {
			seed = a.modes[h.modes[0]]
		}
		if seed == nil || seed.width <= 0 {
			return monitor.Monitor{}, fmt.Errorf("head %d (%s): %w", h.id, h.name, ErrNoCurrentMode)
		}
	}

	name := h.name
	if name == "" {
		name = h.description
	}
	size := monitor.Size{Width: int(seed.width), Height: int(seed.height)}
	m, err := monitor.New(h.id, name, size, h.scale)
	if err != nil {
		return monitor.Monitor{}, err
	}
	m.Make = h.make
	m.Model = h.model
	m.Serial = h.serial
	m.Enabled = enabled
	m.Offset = monitor.Offset{X: int(h.x), Y: int(h.y)}
	m.RefreshRate = monitor.RoundMilliHz(seed.refresh)
	m.Transform = monitor.Transform(h.transform)
	if !m.Transform.Valid() {
		m.Transform = monitor.TransformNormal
	}
	m.Features = a.opts.Features
	m.VRR = h.vrr && a.opts.Features.VRR
	m.Primary = h.primary && a.opts.Features.Primary
	m.AvailableModes = monitor.BuildModes(entries)
	m.UsesModeID = a.opts.UsesModeID
	if m.UsesModeID {
		m.Mode = strconv.FormatUint(uint64(seed.id), 10)
		if id, ok := m.ModeIDFor(size, m.RefreshRate); ok {
			m.Mode = id
		}
	} else {
		m.Mode = monitor.SyntheticModeID(size, m.RefreshRate)
	}
	return m, nil
}

// Reset discards all state so the accumulator can take a fresh stream.
func (a *Accumulator) Reset() {
	a.heads = nil
	a.byID = make(map[uint32]int)
	a.modes = make(map[uint32]*modeBuilder)
	a.current = -1
	a.done = false
	a.finished = false
}
