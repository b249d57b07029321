package wayland

import "fmt"

// EventKind names one output-management protocol event.
type EventKind string

const (
	// EventHead announces a new head (output device). Later head-scoped
	// events without a head ID apply to it.
	EventHead EventKind = "head"

	EventName         EventKind = "name"
	EventDescription  EventKind = "description"
	EventMake         EventKind = "make"
	EventModel        EventKind = "model"
	EventSerial       EventKind = "serial_number"
	EventEnabled      EventKind = "enabled"
	EventPosition     EventKind = "position"
	EventTransform    EventKind = "transform"
	EventScale        EventKind = "scale"
	EventAdaptiveSync EventKind = "adaptive_sync"
	EventPrimary      EventKind = "primary"

	// EventMode announces a mode of the current head.
	EventMode          EventKind = "mode"
	EventModeSize      EventKind = "mode_size"
	EventModeRefresh   EventKind = "mode_refresh"
	EventModePreferred EventKind = "mode_preferred"
	EventCurrentMode   EventKind = "current_mode"

	// EventHeadDone marks one head as complete. Protocols that send a
	// per-device done event use it; the others rely on EventDone.
	EventHeadDone EventKind = "head_done"
	// EventDone ends one atomic batch of state.
	EventDone EventKind = "done"
	// EventFinished means the manager went away; no more events follow.
	EventFinished EventKind = "finished"
)

// Event is one decoded protocol event. Only the fields relevant to Kind are
// set. Refresh is in mHz, Scale is the protocol's fixed-point value as a
// float.
type Event struct {
	Kind EventKind `json:"event"`

	Head uint32 `json:"head,omitempty"`
	Mode uint32 `json:"mode,omitempty"`

	Text    string  `json:"text,omitempty"`
	Enabled bool    `json:"enabled,omitempty"`
	X       int32   `json:"x,omitempty"`
	Y       int32   `json:"y,omitempty"`
	Width   int32   `json:"width,omitempty"`
	Height  int32   `json:"height,omitempty"`
	Refresh int32   `json:"refresh,omitempty"`
	Scale   float64 `json:"scale,omitempty"`
	// Value carries enum-style payloads: the transform or the adaptive sync
	// state.
	Value int32 `json:"value,omitempty"`
}

func (e Event) String() string {
	switch e.Kind {
	case EventMode, EventModeSize, EventModeRefresh, EventModePreferred, EventCurrentMode:
		return fmt.Sprintf("%s(head=%d mode=%d)", e.Kind, e.Head, e.Mode)
	default:
		return fmt.Sprintf("%s(head=%d)", e.Kind, e.Head)
	}
}
