package wayland

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/outputctl/internal/backend"
	"github.com/1broseidon/outputctl/internal/monitor"
)

var wlrOpts = Options{Features: monitor.Features{VRR: true, FractionalScaling: true}}

func twoHeads() SliceSource {
	return SliceSource{
		{Kind: EventHead, Head: 1},
		{Kind: EventName, Text: "DP-1"},
		{Kind: EventMake, Text: "Dell"},
		{Kind: EventEnabled, Enabled: true},
		{Kind: EventMode, Mode: 10},
		{Kind: EventModeSize, Mode: 10, Width: 2560, Height: 1440},
		{Kind: EventModeRefresh, Mode: 10, Refresh: 143912},
		{Kind: EventMode, Mode: 11},
		{Kind: EventModeSize, Mode: 11, Width: 2560, Height: 1440},
		{Kind: EventModeRefresh, Mode: 11, Refresh: 59951},
		{Kind: EventMode, Mode: 12},
		{Kind: EventModeSize, Mode: 12, Width: 1920, Height: 1080},
		{Kind: EventModeRefresh, Mode: 12, Refresh: 60000},
		{Kind: EventCurrentMode, Mode: 10},
		{Kind: EventPosition, X: 0, Y: 0},
		{Kind: EventScale, Scale: 1.25},
		{Kind: EventAdaptiveSync, Value: 1},

		{Kind: EventHead, Head: 2},
		{Kind: EventName, Text: "HDMI-A-1"},
		{Kind: EventEnabled, Enabled: false},
		{Kind: EventMode, Mode: 20},
		{Kind: EventModeSize, Mode: 20, Width: 1920, Height: 1080},
		{Kind: EventModeRefresh, Mode: 20, Refresh: 60000},
		{Kind: EventModePreferred, Mode: 20},
		// Late event for the first head, addressed explicitly.
		{Kind: EventTransform, Head: 1, Value: 1},
		{Kind: EventDone},
	}
}

func TestCollect_BuildsMonitorsAfterDone(t *testing.T) {
	acc := NewAccumulator(wlrOpts)
	monitors, err := Collect(context.Background(), twoHeads(), acc)
	require.NoError(t, err)
	require.Len(t, monitors, 2)

	dp := monitors[0]
	assert.Equal(t, uint32(1), dp.ID)
	assert.Equal(t, "DP-1", dp.Name)
	assert.Equal(t, "Dell", dp.Make)
	assert.True(t, dp.Enabled)
	assert.Equal(t, monitor.Size{Width: 2560, Height: 1440}, dp.Size)
	assert.Equal(t, 144, dp.RefreshRate)
	assert.Equal(t, 1.25, dp.Scale)
	assert.Equal(t, monitor.Transform90, dp.Transform)
	assert.True(t, dp.VRR)
	assert.False(t, dp.Primary)
	assert.Equal(t, "2560x1440@144", dp.Mode)
	require.Len(t, dp.AvailableModes, 2)
	assert.Equal(t, []monitor.RefreshRate{{Rate: 144, ModeID: "10"}, {Rate: 60, ModeID: "11"}}, dp.AvailableModes[0].RefreshRates)

	hdmi := monitors[1]
	assert.False(t, hdmi.Enabled)
	assert.Equal(t, monitor.Size{Width: 1920, Height: 1080}, hdmi.Size)
}

func TestCollect_NoCurrentModeFailsWholeFetch(t *testing.T) {
	events := SliceSource{
		{Kind: EventHead, Head: 1},
		{Kind: EventName, Text: "DP-1"},
		{Kind: EventEnabled, Enabled: true},
		{Kind: EventMode, Mode: 10},
		{Kind: EventModeSize, Mode: 10, Width: 1920, Height: 1080},
		{Kind: EventModeRefresh, Mode: 10, Refresh: 60000},
		{Kind: EventCurrentMode, Mode: 10},

		{Kind: EventHead, Head: 2},
		{Kind: EventName, Text: "DP-2"},
		{Kind: EventEnabled, Enabled: true},
		{Kind: EventMode, Mode: 20},
		{Kind: EventModeSize, Mode: 20, Width: 1920, Height: 1080},
		{Kind: EventModeRefresh, Mode: 20, Refresh: 60000},
		{Kind: EventDone},
	}

	monitors, err := Collect(context.Background(), events, NewAccumulator(wlrOpts))
	require.ErrorIs(t, err, backend.ErrConversion)
	assert.ErrorIs(t, err, ErrNoCurrentMode)
	assert.Nil(t, monitors)
}

func TestCollect_InfersEnabledFromCurrentMode(t *testing.T) {
	events := SliceSource{
		{Kind: EventHead, Head: 3},
		{Kind: EventName, Text: "eDP-1"},
		{Kind: EventMode, Mode: 30},
		{Kind: EventModeSize, Mode: 30, Width: 2880, Height: 1800},
		{Kind: EventModeRefresh, Mode: 30, Refresh: 90000},
		{Kind: EventDone},
	}
	monitors, err := Collect(context.Background(), events, NewAccumulator(wlrOpts))
	require.NoError(t, err)
	require.Len(t, monitors, 1)
	assert.False(t, monitors[0].Enabled)
	assert.Equal(t, 90, monitors[0].RefreshRate)
}

func TestCollect_StreamWithoutDoneIsTransportFailure(t *testing.T) {
	events := SliceSource{
		{Kind: EventHead, Head: 1},
		{Kind: EventName, Text: "DP-1"},
	}
	_, err := Collect(context.Background(), events, NewAccumulator(wlrOpts))
	require.ErrorIs(t, err, backend.ErrTransport)
}

func TestCollect_PerHeadDone(t *testing.T) {
	opts := Options{Features: monitor.Features{Primary: true}, UsesModeID: true, PerHeadDone: true}
	base := []Event{
		{Kind: EventHead, Head: 1},
		{Kind: EventName, Text: "DP-1"},
		{Kind: EventEnabled, Enabled: true},
		{Kind: EventPrimary, Enabled: true},
		{Kind: EventMode, Mode: 7},
		{Kind: EventModeSize, Mode: 7, Width: 1920, Height: 1080},
		{Kind: EventModeRefresh, Mode: 7, Refresh: 60000},
		{Kind: EventCurrentMode, Mode: 7},
	}

	_, err := Collect(context.Background(), SliceSource(append(append([]Event{}, base...), Event{Kind: EventDone})), NewAccumulator(opts))
	require.ErrorIs(t, err, ErrIncomplete)

	complete := append(append([]Event{}, base...), Event{Kind: EventHeadDone}, Event{Kind: EventDone})
	monitors, err := Collect(context.Background(), SliceSource(complete), NewAccumulator(opts))
	require.NoError(t, err)
	require.Len(t, monitors, 1)
	assert.True(t, monitors[0].Primary)
	assert.Equal(t, "7", monitors[0].Mode)
	assert.True(t, monitors[0].UsesModeID)
}

func TestFeed_ProtocolViolations(t *testing.T) {
	acc := NewAccumulator(wlrOpts)
	require.ErrorIs(t, acc.Feed(Event{Kind: EventName, Text: "orphan"}), ErrProtocol)
	require.NoError(t, acc.Feed(Event{Kind: EventHead, Head: 1}))
	require.ErrorIs(t, acc.Feed(Event{Kind: EventHead, Head: 1}), ErrProtocol)
	require.ErrorIs(t, acc.Feed(Event{Kind: EventModeSize, Mode: 99}), ErrProtocol)
	require.ErrorIs(t, acc.Feed(Event{Kind: EventName, Head: 5}), ErrProtocol)
}

func TestCodec_RoundTripThroughReaderSource(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for _, ev := range twoHeads() {
		require.NoError(t, enc.Encode(ev))
	}
	// Trailing events after done are never read.
	buf.WriteString("\n{\"event\":\"head\",\"head\":9}\n")

	monitors, err := Collect(context.Background(), ReaderSource{R: &buf}, NewAccumulator(wlrOpts))
	require.NoError(t, err)
	assert.Len(t, monitors, 2)
}

func TestDecoder_RejectsMalformedLines(t *testing.T) {
	dec := NewDecoder(strings.NewReader("{\"event\":\"head\"}\nnot json\n"))
	_, err := dec.Decode()
	require.NoError(t, err)
	_, err = dec.Decode()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	_, err = Collect(context.Background(), ReaderSource{R: strings.NewReader("{}\n")}, NewAccumulator(wlrOpts))
	require.ErrorIs(t, err, backend.ErrTransport)
}
