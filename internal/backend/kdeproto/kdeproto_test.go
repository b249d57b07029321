package kdeproto

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/outputctl/internal/backend"
	"github.com/1broseidon/outputctl/internal/backend/wayland"
	"github.com/1broseidon/outputctl/internal/monitor"
)

type device struct {
	id      uint32
	name    string
	enabled bool
	x, y    int32
	scale   float64
	trans   int32
	prio    uint32
	vrr     uint32
	current uint32
	modes   []wayland.Event // mode_size events, Mode set
}

// fakeHelper is both the event source and the apply endpoint.
type fakeHelper struct {
	devices     []device
	skipDevDone bool
	applied     []Configuration
}

func (f *fakeHelper) Stream(ctx context.Context, emit func(wayland.Event) error) error {
	var events []wayland.Event
	for _, d := range f.devices {
		events = append(events,
			wayland.Event{Kind: wayland.EventHead, Head: d.id},
			wayland.Event{Kind: wayland.EventName, Text: d.name},
			wayland.Event{Kind: wayland.EventEnabled, Enabled: d.enabled},
		)
		for _, m := range d.modes {
			events = append(events,
				wayland.Event{Kind: wayland.EventMode, Mode: m.Mode},
				m,
				wayland.Event{Kind: wayland.EventModeRefresh, Mode: m.Mode, Refresh: m.Refresh},
			)
		}
		if d.enabled {
			events = append(events, wayland.Event{Kind: wayland.EventCurrentMode, Mode: d.current})
		}
		events = append(events,
			wayland.Event{Kind: wayland.EventPosition, X: d.x, Y: d.y},
			wayland.Event{Kind: wayland.EventScale, Scale: d.scale},
			wayland.Event{Kind: wayland.EventTransform, Value: d.trans},
			wayland.Event{Kind: wayland.EventPrimary, Enabled: d.prio == 1},
			wayland.Event{Kind: wayland.EventAdaptiveSync, Value: int32(d.vrr)},
		)
		if !f.skipDevDone {
			events = append(events, wayland.Event{Kind: wayland.EventHeadDone})
		}
	}
	events = append(events, wayland.Event{Kind: wayland.EventDone})
	return wayland.SliceSource(events).Stream(ctx, emit)
}

func (f *fakeHelper) Run(_ context.Context, stdin []byte, _ string, _ ...string) ([]byte, error) {
	var cfg Configuration
	if err := json.Unmarshal(stdin, &cfg); err != nil {
		return nil, err
	}
	f.applied = append(f.applied, cfg)
	for _, oc := range cfg.Outputs {
		for i := range f.devices {
			d := &f.devices[i]
			if d.id != oc.Device {
				continue
			}
			d.enabled = oc.Enabled
			d.x, d.y = int32(oc.X), int32(oc.Y)
			d.scale = oc.Scale
			d.trans = int32(oc.Transform)
			d.prio = oc.Priority
			d.vrr = oc.VRRPolicy
			for _, m := range d.modes {
				if oc.Mode == modeName(m.Mode) {
					d.current = m.Mode
				}
			}
		}
	}
	return nil, nil
}

func modeName(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}

func mode(id uint32, w, h, mhz int32) wayland.Event {
	return wayland.Event{Kind: wayland.EventModeSize, Mode: id, Width: w, Height: h, Refresh: mhz}
}

func newFake() *fakeHelper {
	return &fakeHelper{devices: []device{
		{
			id: 1, name: "eDP-1", enabled: true, scale: 1.5, prio: 1, current: 11,
			modes: []wayland.Event{mode(11, 2880, 1800, 120000), mode(12, 2880, 1800, 60000)},
		},
		{
			id: 2, name: "DP-2", enabled: true, x: 1920, scale: 1, prio: 2, vrr: VRRAutomatic, current: 21,
			modes: []wayland.Event{mode(21, 3440, 1440, 99982), mode(22, 2560, 1080, 60000)},
		},
	}}
}

func TestFetch_RequiresDeviceDone(t *testing.T) {
	fake := newFake()
	fake.skipDevDone = true

	monitors, err := NewWithSource(fake, fake, "", nil).Fetch(context.Background())
	require.ErrorIs(t, err, backend.ErrConversion)
	assert.Nil(t, monitors)
}

func TestFetch_ConvertsDevices(t *testing.T) {
	fake := newFake()
	monitors, err := NewWithSource(fake, fake, "", nil).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, monitors, 2)

	assert.True(t, monitors[0].Primary)
	assert.Equal(t, "11", monitors[0].Mode)
	assert.True(t, monitors[0].UsesModeID)
	assert.Equal(t, 100, monitors[1].RefreshRate)
	assert.True(t, monitors[1].VRR)
	assert.Equal(t, Features, monitors[1].Features)
}

func TestApplyFetchRoundTrip(t *testing.T) {
	fake := newFake()
	a := NewWithSource(fake, fake, "", nil)
	ctx := context.Background()

	monitors, err := a.Fetch(ctx)
	require.NoError(t, err)

	monitors[0].Primary = false
	monitors[1].Primary = true
	monitors[1].SelectMode(monitor.Size{Width: 2560, Height: 1080}, 60)
	monitors[0].Transform = monitor.Transform270
	monitors[1].Offset = monitor.Offset{X: 1200, Y: 0}

	require.NoError(t, a.Apply(ctx, monitors))
	require.Len(t, fake.applied, 1)
	assert.Equal(t, uint32(1), fake.applied[0].Outputs[1].Priority)

	again, err := a.Fetch(ctx)
	require.NoError(t, err)
	for i := range monitors {
		assert.Equal(t, monitors[i].Primary, again[i].Primary, "primary %d", i)
		assert.Equal(t, monitors[i].Mode, again[i].Mode, "mode %d", i)
		assert.Equal(t, monitors[i].Size, again[i].Size, "size %d", i)
		assert.Equal(t, monitors[i].Offset, again[i].Offset, "offset %d", i)
		assert.Equal(t, monitors[i].Transform, again[i].Transform, "transform %d", i)
		assert.InDelta(t, monitors[i].Scale, again[i].Scale, 1e-5)
	}
}

func TestBuildConfiguration_Priorities(t *testing.T) {
	ms := []monitor.Monitor{
		{ID: 1, Name: "A", Enabled: true},
		{ID: 2, Name: "B", Enabled: false},
		{ID: 3, Name: "C", Enabled: true, Primary: true},
		{ID: 4, Name: "D", Enabled: true, VRR: true},
	}
	cfg := BuildConfiguration(ms)
	prios := []uint32{cfg.Outputs[0].Priority, cfg.Outputs[1].Priority, cfg.Outputs[2].Priority, cfg.Outputs[3].Priority}
	assert.Equal(t, []uint32{2, 0, 1, 3}, prios)
	assert.Equal(t, VRRAutomatic, cfg.Outputs[3].VRRPolicy)
}
