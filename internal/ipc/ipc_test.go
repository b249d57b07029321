package ipc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/outputctl/internal/backend"
	"github.com/1broseidon/outputctl/internal/backend/backendtest"
	"github.com/1broseidon/outputctl/internal/confirm"
	"github.com/1broseidon/outputctl/internal/display"
	"github.com/1broseidon/outputctl/internal/monitor"
)

type fixture struct {
	client  *Client
	server  *Server
	session *display.Session
	mem     *backendtest.Memory
	reloads atomic.Int32
}

func start(t *testing.T) *fixture {
	t.Helper()
	// Unix socket paths are length limited; keep the directory short.
	dir, err := os.MkdirTemp("", "oc")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	sock := filepath.Join(dir, "s.sock")

	f := &fixture{}
	f.mem = backendtest.NewMemory(backend.KindWlroots, backendtest.Pair(monitor.Features{VRR: true, FractionalScaling: true}))
	f.session = display.NewSession(f.mem, backend.RulesFor(backend.KindWlroots), nil)
	require.NoError(t, f.session.Refresh(context.Background()))
	mgr := confirm.NewManager(f.session, confirm.Options{Timeout: time.Hour}, nil)
	t.Cleanup(mgr.Close)

	f.server = NewServer(sock, f.session, mgr, func(context.Context) error {
		f.reloads.Add(1)
		return nil
	})
	require.NoError(t, f.server.Start())
	t.Cleanup(f.server.Stop)

	info, err := os.Stat(sock)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	f.client = NewClientAt(sock)
	return f
}

func TestStatusAndMonitors(t *testing.T) {
	f := start(t)
	ctx := context.Background()

	status, err := f.client.GetStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.DaemonRunning)
	assert.Equal(t, backend.KindWlroots, status.Kind)
	assert.Equal(t, 2, status.Monitors)
	assert.Nil(t, status.Pending)

	data, err := f.client.GetMonitors(ctx)
	require.NoError(t, err)
	require.Len(t, data.Monitors, 2)
	assert.Equal(t, "HDMI-A-1", data.Monitors[1].Name)
	assert.NotEmpty(t, data.Monitors[1].AvailableModes)
}

func TestEditApplyConfirm(t *testing.T) {
	f := start(t)
	ctx := context.Background()

	off := false
	res, err := f.client.SetMonitor(ctx, display.Change{Name: "DP-1", Enabled: &off})
	require.NoError(t, err)
	assert.False(t, res.Monitor.Enabled)

	applied, err := f.client.Apply(ctx, false)
	require.NoError(t, err)
	require.NotNil(t, applied.Transaction)
	assert.False(t, f.mem.Live()[0].Enabled)

	status, err := f.client.GetStatus(ctx)
	require.NoError(t, err)
	require.NotNil(t, status.Pending)
	assert.Equal(t, applied.Transaction.ID, status.Pending.ID)

	require.NoError(t, f.client.Confirm(ctx, applied.Transaction.ID.String()))
	err = f.client.Confirm(ctx, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), confirm.ErrNoPending.Error())
}

func TestApplyRevert(t *testing.T) {
	f := start(t)
	ctx := context.Background()

	moved, err := f.client.MoveMonitor(ctx, "HDMI-A-1", 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, "snapped", moved.Outcome)

	_, err = f.client.Apply(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, monitor.Offset{X: 1920, Y: 1080}, f.mem.Live()[1].Offset)

	require.NoError(t, f.client.Revert(ctx, ""))
	assert.Equal(t, monitor.Offset{X: 1920, Y: 0}, f.mem.Live()[1].Offset)
}

func TestApplyWithoutConfirmAndPersist(t *testing.T) {
	f := start(t)
	ctx := context.Background()

	rate := 144
	_, err := f.client.SetMonitor(ctx, display.Change{Name: "HDMI-A-1", Refresh: rate})
	require.NoError(t, err)

	data, err := f.client.Apply(ctx, true)
	require.NoError(t, err)
	assert.Nil(t, data.Transaction)
	assert.Equal(t, rate, f.mem.Live()[1].RefreshRate)

	require.NoError(t, f.client.Persist(ctx))
	require.Len(t, f.mem.Persisted(), 2)
}

func TestErrorsAreReported(t *testing.T) {
	f := start(t)
	ctx := context.Background()

	_, err := f.client.SetMonitor(ctx, display.Change{Name: "DVI-0", Refresh: 60})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DVI-0")

	err = f.client.Confirm(ctx, "not-a-uuid")
	require.Error(t, err)

	resp := f.server.Handle(ctx, &Request{Command: "BOGUS"})
	assert.Equal(t, "ERROR", resp.Status)

	f.mem.FetchErr = errors.New("compositor gone")
	resp = f.server.Handle(ctx, &Request{Command: CommandRefresh})
	assert.Equal(t, "ERROR", resp.Status)
	assert.Contains(t, resp.Error, "compositor gone")
}

func TestReloadAndDiscard(t *testing.T) {
	f := start(t)
	ctx := context.Background()

	require.NoError(t, f.client.Reload(ctx))
	assert.Equal(t, int32(1), f.reloads.Load())

	_, err := f.client.MoveMonitor(ctx, "HDMI-A-1", 0, 1000)
	require.NoError(t, err)
	require.NoError(t, f.client.Discard(ctx))
	assert.Equal(t, monitor.Offset{X: 1920, Y: 0}, f.session.Snapshot()[1].Offset)
}

func TestClientWithoutDaemon(t *testing.T) {
	c := NewClientAt(filepath.Join(t.TempDir(), "missing.sock"))
	err := c.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is the daemon running")
}
