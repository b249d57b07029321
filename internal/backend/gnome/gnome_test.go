package gnome

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/outputctl/internal/backend"
	"github.com/1broseidon/outputctl/internal/monitor"
)

// fakeMutter keeps a State and rewrites it on ApplyMonitorsConfig.
type fakeMutter struct {
	state   State
	fail    error
	methods []uint32
	props   map[string]dbus.Variant
}

func (f *fakeMutter) GetCurrentState(context.Context) (State, error) {
	if f.fail != nil {
		return State{}, f.fail
	}
	return f.state, nil
}

func (f *fakeMutter) ApplyMonitorsConfig(_ context.Context, serial, method uint32, logical []LogicalMonitorConfig, props map[string]dbus.Variant) error {
	if serial != f.state.Serial {
		return fmt.Errorf("stale serial %d", serial)
	}
	f.methods = append(f.methods, method)
	f.props = props

	f.state.Logical = nil
	for i := range f.state.Monitors {
		for j := range f.state.Monitors[i].Modes {
			f.state.Monitors[i].Modes[j].Properties["is-current"] = dbus.MakeVariant(false)
		}
	}
	for _, lc := range logical {
		lm := LogicalMonitor{X: lc.X, Y: lc.Y, Scale: lc.Scale, Transform: lc.Transform, Primary: lc.Primary}
		for _, a := range lc.Monitors {
			for i := range f.state.Monitors {
				pm := &f.state.Monitors[i]
				if pm.Spec.Connector != a.Connector {
					continue
				}
				lm.Monitors = append(lm.Monitors, pm.Spec)
				for j := range pm.Modes {
					if pm.Modes[j].ID == a.ModeID {
						pm.Modes[j].Properties["is-current"] = dbus.MakeVariant(true)
					}
				}
			}
		}
		f.state.Logical = append(f.state.Logical, lm)
	}
	f.state.Serial++
	return nil
}

func mode(id string, w, h int32, hz float64, current, preferred bool) Mode {
	return Mode{
		ID: id, Width: w, Height: h, Refresh: hz, PreferredScale: 1,
		SupportedScales: []float64{1, 1.25, 1.5, 1.75, 2},
		Properties: map[string]dbus.Variant{
			"is-current":   dbus.MakeVariant(current),
			"is-preferred": dbus.MakeVariant(preferred),
		},
	}
}

func sampleState() State {
	edp := MonitorSpec{Connector: "eDP-1", Vendor: "BOE", Product: "0x0bca", Serial: "0"}
	dp := MonitorSpec{Connector: "DP-2", Vendor: "DEL", Product: "DELL U2720Q", Serial: "ABC"}
	hdmi := MonitorSpec{Connector: "HDMI-1", Vendor: "SAM", Product: "LS27"}
	return State{
		Serial: 7,
		Monitors: []PhysicalMonitor{
			{Spec: edp, Modes: []Mode{
				mode("2256x1504@59.999", 2256, 1504, 59.999, true, true),
				mode("1920x1200@59.950", 1920, 1200, 59.95, false, false),
			}, Properties: map[string]dbus.Variant{"display-name": dbus.MakeVariant("Built-in display")}},
			{Spec: dp, Modes: []Mode{
				mode("3840x2160@59.997", 3840, 2160, 59.997, true, true),
				mode("3840x2160@29.981", 3840, 2160, 29.981, false, false),
			}, Properties: map[string]dbus.Variant{}},
			{Spec: hdmi, Modes: []Mode{
				mode("2560x1440@74.971", 2560, 1440, 74.971, false, false),
				mode("2560x1440@59.951", 2560, 1440, 59.951, false, true),
			}, Properties: map[string]dbus.Variant{}},
		},
		Logical: []LogicalMonitor{
			{X: 0, Y: 0, Scale: 1.5, Primary: true, Monitors: []MonitorSpec{edp}},
			{X: 1504, Y: 0, Scale: 2, Monitors: []MonitorSpec{dp}},
		},
		Properties: map[string]dbus.Variant{
			"layout-mode":                   dbus.MakeVariant(LayoutLogical),
			"supports-changing-layout-mode": dbus.MakeVariant(true),
		},
	}
}

func TestFetch_ConvertsState(t *testing.T) {
	monitors, err := New(&fakeMutter{state: sampleState()}, nil).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, monitors, 3)

	edp := monitors[0]
	assert.True(t, edp.Enabled)
	assert.True(t, edp.Primary)
	assert.True(t, edp.UsesModeID)
	assert.Equal(t, "2256x1504@59.999", edp.Mode)
	assert.Equal(t, 60, edp.RefreshRate)
	assert.Equal(t, monitor.Size{Width: 1504, Height: 1003}, edp.PostScaledTransformSize())
	assert.Equal(t, []float64{1, 1.25, 1.5, 1.75, 2}, edp.AvailableModes[0].SupportedScales)
	assert.Equal(t, "BOE", edp.Make)

	dp := monitors[1]
	assert.Equal(t, monitor.Offset{X: 1504, Y: 0}, dp.Offset)
	assert.False(t, dp.Primary)

	hdmi := monitors[2]
	assert.False(t, hdmi.Enabled)
	assert.Equal(t, "2560x1440@59.951", hdmi.Mode, "disabled monitors start from the preferred mode")
	assert.Equal(t, 60, hdmi.RefreshRate)
}

func TestFetch_MissingCurrentModeFailsWholeFetch(t *testing.T) {
	st := sampleState()
	st.Monitors[1].Modes[0].Properties["is-current"] = dbus.MakeVariant(false)

	monitors, err := New(&fakeMutter{state: st}, nil).Fetch(context.Background())
	require.ErrorIs(t, err, backend.ErrConversion)
	assert.ErrorIs(t, err, errNoCurrentMode)
	assert.Nil(t, monitors)
}

func TestFetch_TransportFailure(t *testing.T) {
	_, err := New(&fakeMutter{fail: errors.New("no reply")}, nil).Fetch(context.Background())
	require.ErrorIs(t, err, backend.ErrTransport)
}

func TestLogicalConfig_EnsuresOnePrimary(t *testing.T) {
	monitors, err := Convert(sampleState())
	require.NoError(t, err)

	monitors[0].Primary = false
	cfg := LogicalConfig(monitors)
	require.Len(t, cfg, 2, "disabled monitors are left out")
	assert.True(t, cfg[0].Primary)
	assert.False(t, cfg[1].Primary)

	monitors[0].Primary = true
	monitors[1].Primary = true
	cfg = LogicalConfig(monitors)
	assert.True(t, cfg[0].Primary)
	assert.False(t, cfg[1].Primary)
}

func TestApplyFetchRoundTrip(t *testing.T) {
	fake := &fakeMutter{state: sampleState()}
	a := New(fake, nil)
	ctx := context.Background()

	monitors, err := a.Fetch(ctx)
	require.NoError(t, err)

	monitors[2].Enabled = true
	monitors[2].Offset = monitor.Offset{X: 3424, Y: 0}
	require.True(t, monitors[2].SelectMode(monitor.Size{Width: 2560, Height: 1440}, 75))
	monitors[1].Transform = monitor.Transform90
	monitors[1].Scale = 1.25
	monitors[0].Primary = false
	monitors[1].Primary = true

	require.NoError(t, a.Apply(ctx, monitors))
	require.NoError(t, a.Persist(ctx, monitors))
	assert.Equal(t, []uint32{MethodTemporary, MethodPersistent}, fake.methods)
	assert.Equal(t, LayoutLogical, fake.props["layout-mode"].Value())

	again, err := a.Fetch(ctx)
	require.NoError(t, err)
	for i := range monitors {
		assert.Equal(t, monitors[i].Enabled, again[i].Enabled, monitors[i].Name)
		assert.Equal(t, monitors[i].Primary, again[i].Primary, monitors[i].Name)
		assert.Equal(t, monitors[i].Mode, again[i].Mode, monitors[i].Name)
		assert.Equal(t, monitors[i].Offset, again[i].Offset, monitors[i].Name)
		assert.Equal(t, monitors[i].Transform, again[i].Transform, monitors[i].Name)
		assert.InDelta(t, monitors[i].Scale, again[i].Scale, 1e-9, monitors[i].Name)
	}
}

func TestVariableRefreshModes(t *testing.T) {
	st := sampleState()
	vrr := mode("3840x2160@59.997+vrr", 3840, 2160, 59.997, false, false)
	vrr.Properties["refresh-rate-mode"] = dbus.MakeVariant("variable")
	st.Monitors[1].Modes = append(st.Monitors[1].Modes, vrr)
	fake := &fakeMutter{state: st}
	a := New(fake, nil)
	ctx := context.Background()

	monitors, err := a.Fetch(ctx)
	require.NoError(t, err)
	assert.False(t, monitors[0].Features.VRR, "eDP-1 lists no variable modes")
	dp := monitors[1]
	assert.True(t, dp.Features.VRR)
	assert.False(t, dp.VRR)
	assert.Equal(t, "3840x2160@59.997", dp.Mode)
	require.Len(t, dp.AvailableModes, 1)
	assert.Len(t, dp.AvailableModes[0].RefreshRates, 2, "variable twin is not a separate mode")

	monitors[1].VRR = true
	require.NoError(t, a.Apply(ctx, monitors))

	again, err := a.Fetch(ctx)
	require.NoError(t, err)
	assert.True(t, again[1].VRR)
	assert.Equal(t, "3840x2160@59.997", again[1].Mode)

	again[1].VRR = false
	require.NoError(t, a.Apply(ctx, again))
	last, err := a.Fetch(ctx)
	require.NoError(t, err)
	assert.False(t, last[1].VRR)
}

func TestApply_RefusesAllDisabled(t *testing.T) {
	fake := &fakeMutter{state: sampleState()}
	monitors, err := Convert(fake.state)
	require.NoError(t, err)
	for i := range monitors {
		monitors[i].Enabled = false
	}
	err = New(fake, nil).Apply(context.Background(), monitors)
	require.ErrorIs(t, err, backend.ErrConversion)
	assert.Empty(t, fake.methods)
}
