package display

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/outputctl/internal/backend"
	"github.com/1broseidon/outputctl/internal/backend/backendtest"
	"github.com/1broseidon/outputctl/internal/drag"
	"github.com/1broseidon/outputctl/internal/monitor"
)

var allFeatures = monitor.Features{VRR: true, Primary: true, FractionalScaling: true}

func newSession(t *testing.T, kind backend.Kind, feat monitor.Features) (*Session, *backendtest.Memory) {
	t.Helper()
	mem := backendtest.NewMemory(kind, backendtest.Pair(feat))
	s := NewSession(mem, backend.RulesFor(kind), nil)
	require.NoError(t, s.Refresh(context.Background()))
	return s, mem
}

func TestSession_EditsBeforeFetch(t *testing.T) {
	mem := backendtest.NewMemory(backend.KindWlroots, backendtest.Pair(allFeatures))
	s := NewSession(mem, backend.RulesFor(backend.KindWlroots), nil)
	require.ErrorIs(t, s.SetEnabled("DP-1", false), ErrNotFetched)
}

func TestSession_RefreshFailureKeepsCollection(t *testing.T) {
	s, mem := newSession(t, backend.KindWlroots, allFeatures)
	mem.FetchErr = backend.ErrTransport

	err := s.Refresh(context.Background())
	require.ErrorIs(t, err, backend.ErrTransport)
	assert.Len(t, s.Snapshot(), 2)
	assert.NotEmpty(t, s.Status().LastError)
}

func TestSession_SetModeRearranges(t *testing.T) {
	s, _ := newSession(t, backend.KindWlroots, allFeatures)

	require.NoError(t, s.SetMode("DP-1", monitor.Size{Width: 1280, Height: 720}, 60))
	snap := s.Snapshot()
	assert.Equal(t, monitor.Offset{X: 1280, Y: 0}, snap[1].Offset)
	assert.True(t, s.Status().Dirty)

	err := s.SetMode("DP-1", monitor.Size{Width: 800, Height: 600}, 60)
	require.ErrorIs(t, err, ErrUnknownMode)
}

func TestSession_SetScale(t *testing.T) {
	s, _ := newSession(t, backend.KindWlroots, allFeatures)

	got, err := s.SetScale("DP-1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)
	assert.Equal(t, monitor.Offset{X: 960, Y: 0}, s.Snapshot()[1].Offset)

	_, err = s.SetScale("DP-1", -1)
	require.Error(t, err)
	assert.Equal(t, 2.0, s.Snapshot()[0].Scale)
}

func TestSession_DuplicateIDsFailFetch(t *testing.T) {
	s, mem := newSession(t, backend.KindHyprland, allFeatures)
	live := mem.Live()
	live[1].ID = live[0].ID
	mem.SetLive(live)

	err := s.Refresh(context.Background())
	require.ErrorIs(t, err, backend.ErrConversion)
	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.NotEqual(t, snap[0].ID, snap[1].ID)
}

func TestSession_DisableLastMonitor(t *testing.T) {
	s, _ := newSession(t, backend.KindWlroots, allFeatures)

	require.NoError(t, s.SetEnabled("HDMI-A-1", false))
	require.ErrorIs(t, s.SetEnabled("DP-1", false), ErrLastMonitor)
	require.ErrorIs(t, s.SetEnabled("VGA-1", true), ErrUnknownMonitor)
}

func TestSession_PrimaryAndVRRNeedFeatures(t *testing.T) {
	s, _ := newSession(t, backend.KindHyprland, monitor.Features{VRR: true, FractionalScaling: true})
	require.ErrorIs(t, s.SetPrimary("DP-1"), backend.ErrUnsupported)
	require.NoError(t, s.SetVRR("DP-1", true))

	s, _ = newSession(t, backend.KindGNOME, monitor.Features{Primary: true, FractionalScaling: true})
	require.NoError(t, s.SetPrimary("HDMI-A-1"))
	snap := s.Snapshot()
	assert.False(t, snap[0].Primary)
	assert.True(t, snap[1].Primary)
	require.ErrorIs(t, s.SetVRR("DP-1", true), backend.ErrUnsupported)
}

func TestSession_TransformRearranges(t *testing.T) {
	s, _ := newSession(t, backend.KindWlroots, allFeatures)
	require.NoError(t, s.SetTransform("DP-1", monitor.Transform90))
	assert.Equal(t, monitor.Offset{X: 1080, Y: 0}, s.Snapshot()[1].Offset)
	require.Error(t, s.SetTransform("DP-1", monitor.Transform(9)))
}

func TestSession_Move(t *testing.T) {
	s, _ := newSession(t, backend.KindWlroots, allFeatures)

	out, err := s.Move("HDMI-A-1", 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, drag.OutcomeSnapped, out)
	assert.Equal(t, monitor.Offset{X: 1920, Y: 1080}, s.Snapshot()[1].Offset)
}

func TestSession_ApplyReplacesCollection(t *testing.T) {
	s, mem := newSession(t, backend.KindWlroots, allFeatures)
	ctx := context.Background()

	require.NoError(t, s.SetEnabled("HDMI-A-1", false))
	require.NoError(t, s.Apply(ctx))
	assert.False(t, mem.Live()[1].Enabled)
	assert.False(t, s.Status().Dirty)
	assert.False(t, s.Applied()[1].Enabled)

	require.NoError(t, s.Persist(ctx))
	assert.Len(t, mem.Persisted(), 2)
}

func TestSession_ApplyFailureKeepsEdits(t *testing.T) {
	s, mem := newSession(t, backend.KindWlroots, allFeatures)
	mem.ApplyErr = errors.New("compositor said no")

	require.NoError(t, s.SetVRR("DP-1", true))
	err := s.Apply(context.Background())
	require.Error(t, err)
	assert.True(t, s.Snapshot()[0].VRR)
	assert.True(t, s.Status().Dirty)
}

func TestSession_BusyRejectsEditsAndDrags(t *testing.T) {
	s, mem := newSession(t, backend.KindWlroots, allFeatures)

	var editErr, dragErr, refreshErr error
	mem.OnApply = func([]monitor.Monitor) {
		assert.True(t, s.Busy())
		editErr = s.SetVRR("DP-1", true)
		_, dragErr = s.BeginDrag(10, 10)
		refreshErr = s.Refresh(context.Background())
	}
	require.NoError(t, s.Apply(context.Background()))
	assert.ErrorIs(t, editErr, ErrBusy)
	assert.ErrorIs(t, dragErr, ErrBusy)
	assert.ErrorIs(t, refreshErr, ErrBusy)
	assert.False(t, s.Busy())
}

func TestSession_PointerDrag(t *testing.T) {
	s, _ := newSession(t, backend.KindWlroots, allFeatures)

	// 3840x1080 on a 3840x1080 canvas with no padding draws at factor 1.
	s.Project(3840, 1080, 0)
	ok, err := s.BeginDrag(2000, 100)
	require.NoError(t, err)
	require.True(t, ok)

	require.ErrorIs(t, s.SetVRR("DP-1", true), ErrBusy, "edits wait for the gesture")

	s.UpdateDrag(2000, 1200)
	assert.Equal(t, drag.OutcomeSnapped, s.EndDrag())
	assert.Equal(t, monitor.Offset{X: 1920, Y: 1080}, s.Snapshot()[1].Offset)
	assert.True(t, s.Status().Dirty)

	s.Discard()
	assert.Equal(t, monitor.Offset{X: 1920, Y: 0}, s.Snapshot()[1].Offset)
}
