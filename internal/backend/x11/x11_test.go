package x11

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/outputctl/internal/backend"
	"github.com/1broseidon/outputctl/internal/monitor"
)

// fakeServer executes plans against an in-memory snapshot.
type fakeServer struct {
	snap  Snapshot
	plans []Plan
}

func (f *fakeServer) Snapshot(context.Context) (Snapshot, error) {
	return f.snap, nil
}

func (f *fakeServer) Configure(_ context.Context, plan Plan) error {
	f.plans = append(f.plans, plan)
	for _, id := range plan.Disable {
		f.setCrtc(CrtcConfig{Crtc: id})
	}
	for _, cfg := range plan.Crtcs {
		f.setCrtc(cfg)
	}
	if plan.Primary != 0 {
		f.snap.Primary = plan.Primary
	}
	return nil
}

func (f *fakeServer) setCrtc(cfg CrtcConfig) {
	for i := range f.snap.Outputs {
		if f.snap.Outputs[i].Crtc == cfg.Crtc {
			f.snap.Outputs[i].Crtc = 0
		}
	}
	c := Crtc{ID: cfg.Crtc, X: cfg.X, Y: cfg.Y, Mode: cfg.Mode, Rotation: cfg.Rotation}
	if mode, ok := f.snap.Modes[cfg.Mode]; ok {
		c.Width, c.Height = mode.Width, mode.Height
		if FromRotation(cfg.Rotation).Rotated() {
			c.Width, c.Height = c.Height, c.Width
		}
	}
	f.snap.Crtcs[cfg.Crtc] = c
	for _, id := range cfg.Outputs {
		for i := range f.snap.Outputs {
			if f.snap.Outputs[i].ID == id {
				f.snap.Outputs[i].Crtc = cfg.Crtc
			}
		}
	}
}

func sampleSnapshot() Snapshot {
	return Snapshot{
		Outputs: []Output{
			{ID: 0x41, Name: "DP-1", Connected: true, Crtc: 0x3f, Crtcs: []uint32{0x3f, 0x40}, Modes: []uint32{0x50, 0x51, 0x52}, NumPreferred: 1},
			{ID: 0x42, Name: "HDMI-1", Connected: true, Crtcs: []uint32{0x3f, 0x40}, Modes: []uint32{0x52, 0x53}, NumPreferred: 1},
			{ID: 0x43, Name: "VGA-1", Connected: false, Crtcs: []uint32{0x40}},
		},
		Crtcs: map[uint32]Crtc{
			0x3f: {ID: 0x3f, Width: 2560, Height: 1440, Mode: 0x50, Rotation: Rotate0},
			0x40: {ID: 0x40},
		},
		Modes: map[uint32]Mode{
			0x50: {ID: 0x50, Width: 2560, Height: 1440, Refresh: 143.912},
			0x51: {ID: 0x51, Width: 2560, Height: 1440, Refresh: 59.951},
			0x52: {ID: 0x52, Width: 1920, Height: 1080, Refresh: 60.0},
			0x53: {ID: 0x53, Width: 1920, Height: 1080, Refresh: 50.0},
		},
		Primary: 0x41,
	}
}

func TestFetch_ConvertsSnapshot(t *testing.T) {
	monitors, err := New(&fakeServer{snap: sampleSnapshot()}, nil).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, monitors, 2, "disconnected outputs are skipped")

	dp := monitors[0]
	assert.Equal(t, uint32(0x41), dp.ID)
	assert.True(t, dp.Enabled)
	assert.True(t, dp.Primary)
	assert.Equal(t, 144, dp.RefreshRate)
	assert.Equal(t, "80", dp.Mode)
	assert.Equal(t, 1.0, dp.Scale)

	hdmi := monitors[1]
	assert.False(t, hdmi.Enabled)
	assert.False(t, hdmi.Primary)
	assert.Equal(t, monitor.Size{Width: 1920, Height: 1080}, hdmi.Size)
}

func TestFetch_UnknownCurrentModeFails(t *testing.T) {
	snap := sampleSnapshot()
	snap.Crtcs[0x3f] = Crtc{ID: 0x3f, Width: 10, Height: 10, Mode: 0x99}

	monitors, err := New(&fakeServer{snap: snap}, nil).Fetch(context.Background())
	require.ErrorIs(t, err, backend.ErrConversion)
	assert.Nil(t, monitors)
}

func TestRotationMapping(t *testing.T) {
	for tr := monitor.TransformNormal; tr <= monitor.TransformFlipped270; tr++ {
		assert.Equal(t, tr, FromRotation(ToRotation(tr)), tr.String())
	}
	assert.Equal(t, monitor.TransformFlipped180, FromRotation(Rotate0|ReflectY))
	assert.Equal(t, monitor.Transform180, FromRotation(Rotate0|ReflectX|ReflectY))
}

func TestBuildPlan(t *testing.T) {
	snap := sampleSnapshot()
	monitors, err := Convert(snap)
	require.NoError(t, err)

	monitors[1].Enabled = true
	monitors[1].Offset = monitor.Offset{X: -1920, Y: 0}
	monitors[0].Transform = monitor.Transform90

	plan, err := BuildPlan(snap, monitors)
	require.NoError(t, err)
	require.Len(t, plan.Crtcs, 2)

	assert.Equal(t, CrtcConfig{Crtc: 0x3f, X: 1920, Y: 0, Mode: 0x50, Rotation: Rotate90, Outputs: []uint32{0x41}}, plan.Crtcs[0])
	assert.Equal(t, CrtcConfig{Crtc: 0x40, X: 0, Y: 0, Mode: 0x52, Rotation: Rotate0, Outputs: []uint32{0x42}}, plan.Crtcs[1])
	assert.Equal(t, 1920+1440, plan.Width)
	assert.Equal(t, 2560, plan.Height)
	assert.Equal(t, uint32(0x41), plan.Primary)
	assert.Empty(t, plan.Disable)
}

func TestBuildPlan_RejectsScale(t *testing.T) {
	snap := sampleSnapshot()
	monitors, err := Convert(snap)
	require.NoError(t, err)
	monitors[0].Scale = 2

	_, err = BuildPlan(snap, monitors)
	require.ErrorIs(t, err, backend.ErrUnsupported)
}

func TestBuildPlan_NoFreeCrtc(t *testing.T) {
	snap := sampleSnapshot()
	snap.Outputs[1].Crtcs = []uint32{0x3f}
	monitors, err := Convert(snap)
	require.NoError(t, err)
	monitors[1].Enabled = true

	_, err = BuildPlan(snap, monitors)
	require.ErrorIs(t, err, backend.ErrConversion)
}

func TestApplyFetchRoundTrip(t *testing.T) {
	fake := &fakeServer{snap: sampleSnapshot()}
	a := New(fake, nil)
	ctx := context.Background()

	monitors, err := a.Fetch(ctx)
	require.NoError(t, err)

	monitors[1].Enabled = true
	monitors[1].Primary = true
	monitors[0].Primary = false
	monitors[1].Offset = monitor.Offset{X: 2560, Y: 0}
	require.True(t, monitors[1].SelectMode(monitor.Size{Width: 1920, Height: 1080}, 50))
	require.True(t, monitors[0].SelectMode(monitor.Size{Width: 2560, Height: 1440}, 60))

	require.NoError(t, a.Apply(ctx, monitors))

	again, err := a.Fetch(ctx)
	require.NoError(t, err)
	for i := range monitors {
		assert.Equal(t, monitors[i].Enabled, again[i].Enabled, monitors[i].Name)
		assert.Equal(t, monitors[i].Primary, again[i].Primary, monitors[i].Name)
		assert.Equal(t, monitors[i].Mode, again[i].Mode, monitors[i].Name)
		assert.Equal(t, monitors[i].Offset, again[i].Offset, monitors[i].Name)
	}

	monitors = again
	monitors[0].Enabled = false
	require.NoError(t, a.Apply(ctx, monitors))
	last := fake.plans[len(fake.plans)-1]
	assert.Equal(t, []uint32{0x3f}, last.Disable[:1])
}

func TestPersistUnsupported(t *testing.T) {
	err := New(&fakeServer{snap: sampleSnapshot()}, nil).Persist(context.Background(), nil)
	require.ErrorIs(t, err, backend.ErrUnsupported)
}
