package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/1broseidon/outputctl/internal/monitor"
)

var (
	// ErrTransport marks a fetch/apply that failed to reach the backend or
	// could not parse its reply. The caller must treat the collection as
	// unknown, never as "no monitors".
	ErrTransport = errors.New("backend transport failure")
	// ErrConversion marks a reply that parsed but could not be converted to
	// the canonical model. The whole fetch is discarded.
	ErrConversion = errors.New("backend conversion failure")
	// ErrUnsupported is returned by Apply or Persist on families that do
	// not implement that operation.
	ErrUnsupported = errors.New("operation not supported by backend")
	// ErrUnsupportedEnvironment means no adapter matches the session.
	ErrUnsupportedEnvironment = errors.New("unsupported display environment")
)

// Adapter converts between one display-server family and the canonical
// monitor model.
type Adapter interface {
	Kind() Kind
	Features() monitor.Features
	// Fetch queries the live configuration. On failure it returns a nil
	// slice and an error wrapping ErrTransport or ErrConversion.
	Fetch(ctx context.Context) ([]monitor.Monitor, error)
	// Apply pushes a configuration that lasts until the session ends.
	Apply(ctx context.Context, monitors []monitor.Monitor) error
	// Persist writes a configuration that survives a restart.
	Persist(ctx context.Context, monitors []monitor.Monitor) error
}

// Kind identifies a display-server family. It is resolved once at startup.
type Kind string

const (
	KindUnknown  Kind = ""
	KindGNOME    Kind = "gnome"
	KindKDE      Kind = "kde"
	KindHyprland Kind = "hyprland"
	KindWlroots  Kind = "wlroots"
	KindX11      Kind = "x11"
)

// ParseKind accepts the config spellings of a Kind. "auto" and "" map to
// KindUnknown.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "auto":
		return KindUnknown, nil
	case string(KindGNOME):
		return KindGNOME, nil
	case string(KindKDE), "plasma":
		return KindKDE, nil
	case string(KindHyprland):
		return KindHyprland, nil
	case string(KindWlroots), "wlr", "sway":
		return KindWlroots, nil
	case string(KindX11), "xorg":
		return KindX11, nil
	default:
		return KindUnknown, fmt.Errorf("unknown backend %q", s)
	}
}

// Rules are the layout constraints a family imposes.
type Rules struct {
	// DisabledTakeSpace makes disabled monitors count when computing the
	// frontier and overlaps.
	DisabledTakeSpace bool
	// NormalizeOrigin forbids negative coordinates: the top-left monitor is
	// always moved to (0,0).
	NormalizeOrigin bool
	// DisallowGaps rejects drags that leave a monitor touching nothing.
	DisallowGaps bool
	// SnapThreshold is the maximum edge distance that snaps during a drag.
	SnapThreshold int
}

// DefaultSnapThreshold is the snap distance in logical units.
const DefaultSnapThreshold = 150

// RulesFor returns the layout rules of a family.
func RulesFor(kind Kind) Rules {
	r := Rules{SnapThreshold: DefaultSnapThreshold}
	switch kind {
	case KindGNOME:
		r.NormalizeOrigin = true
		r.DisallowGaps = true
	case KindKDE, KindX11:
		r.NormalizeOrigin = true
	}
	return r
}

// Counts reports whether m occupies layout space under r.
func (r Rules) Counts(m *monitor.Monitor) bool {
	return m.Enabled || r.DisabledTakeSpace
}
