package kde

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/outputctl/internal/backend"
	"github.com/1broseidon/outputctl/internal/monitor"
)

type fakeDoctor struct {
	doc  Document
	args []string
	fail error
}

func (f *fakeDoctor) output(name string) *Output {
	for i := range f.doc.Outputs {
		if f.doc.Outputs[i].Name == name {
			return &f.doc.Outputs[i]
		}
	}
	return nil
}

func (f *fakeDoctor) Run(_ context.Context, _ []byte, _ string, args ...string) ([]byte, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	if len(args) == 1 && args[0] == "-j" {
		return json.Marshal(f.doc)
	}
	f.args = args
	rotations := map[string]int{"normal": RotationNone, "left": RotationLeft, "inverted": RotationInverted, "right": RotationRight}
	policies := map[string]int{"never": 0, "always": 1, "automatic": 2}
	for _, arg := range args {
		parts := strings.SplitN(arg, ".", 4)
		if len(parts) < 3 || parts[0] != "output" {
			return nil, fmt.Errorf("bad argument %q", arg)
		}
		o := f.output(parts[1])
		if o == nil {
			return nil, fmt.Errorf("unknown output %q", parts[1])
		}
		value := ""
		if len(parts) == 4 {
			value = parts[3]
		}
		switch parts[2] {
		case "enable":
			o.Enabled = true
		case "disable":
			o.Enabled = false
		case "mode":
			o.CurrentModeID = value
		case "position":
			fmt.Sscanf(value, "%d,%d", &o.Pos.X, &o.Pos.Y)
		case "scale":
			// the scale value itself contains a dot
			o.Scale, _ = strconv.ParseFloat(strings.TrimPrefix(arg, "output."+o.Name+".scale."), 64)
		case "rotation":
			o.Rotation = rotations[value]
		case "priority":
			o.Priority, _ = strconv.Atoi(value)
		case "vrrpolicy":
			o.VRRPolicy = policies[value]
		default:
			return nil, fmt.Errorf("unknown setting %q", parts[2])
		}
	}
	return nil, nil
}

func sampleDoc() Document {
	return Document{Outputs: []Output{
		{
			ID: 1, Name: "eDP-1", Enabled: true, Connected: true, CurrentModeID: "2",
			Modes: []Mode{
				{ID: "1", RefreshRate: 60.001, Size: Extent{2560, 1600}},
				{ID: "2", RefreshRate: 165.0, Size: Extent{2560, 1600}},
				{ID: "3", RefreshRate: 59.94, Size: Extent{1920, 1200}},
			},
			Rotation: RotationNone, Scale: 1.25, Priority: 1, VRRPolicy: 2,
		},
		{
			ID: 2, Name: "DP-3", Enabled: false, Connected: true,
			PreferredMode: []string{"7"},
			Modes: []Mode{
				{ID: "6", RefreshRate: 30, Size: Extent{3840, 2160}},
				{ID: "7", RefreshRate: 60, Size: Extent{3840, 2160}},
			},
			Rotation: RotationNone, Scale: 2,
		},
		{ID: 3, Name: "HDMI-A-1", Connected: false},
	}}
}

func TestFetch_ConvertsDocument(t *testing.T) {
	monitors, err := New(&fakeDoctor{doc: sampleDoc()}, "", nil).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, monitors, 2, "disconnected outputs are skipped")

	edp := monitors[0]
	assert.Equal(t, 165, edp.RefreshRate)
	assert.Equal(t, "2", edp.Mode)
	assert.True(t, edp.Primary)
	assert.True(t, edp.VRR)
	assert.Equal(t, 1.25, edp.Scale)

	dp := monitors[1]
	assert.False(t, dp.Enabled)
	assert.False(t, dp.Primary)
	assert.Equal(t, monitor.Size{Width: 3840, Height: 2160}, dp.Size)
	assert.Equal(t, 60, dp.RefreshRate)
}

func TestFetch_MissingCurrentModeDiscardsAll(t *testing.T) {
	doc := sampleDoc()
	doc.Outputs[0].CurrentModeID = "99"

	monitors, err := New(&fakeDoctor{doc: doc}, "", nil).Fetch(context.Background())
	require.ErrorIs(t, err, backend.ErrConversion)
	assert.Nil(t, monitors)
}

func TestFetch_TransportFailure(t *testing.T) {
	_, err := New(&fakeDoctor{fail: errors.New("dbus down")}, "", nil).Fetch(context.Background())
	require.ErrorIs(t, err, backend.ErrTransport)
}

func TestRotationMapping(t *testing.T) {
	cases := map[int]monitor.Transform{
		RotationNone:     monitor.TransformNormal,
		RotationLeft:     monitor.Transform90,
		RotationInverted: monitor.Transform180,
		RotationRight:    monitor.Transform270,
	}
	for flag, want := range cases {
		assert.Equal(t, want, fromRotation(flag))
	}

	assert.Equal(t, "left", rotationName(monitor.Transform90))
	assert.Equal(t, "inverted", rotationName(monitor.TransformFlipped180), "mirroring is dropped")
	assert.Equal(t, "normal", rotationName(monitor.TransformFlipped))
}

func TestApplyFetchRoundTrip(t *testing.T) {
	fake := &fakeDoctor{doc: sampleDoc()}
	a := New(fake, "", nil)
	ctx := context.Background()

	monitors, err := a.Fetch(ctx)
	require.NoError(t, err)

	monitors[1].Enabled = true
	monitors[1].Offset = monitor.Offset{X: 2048, Y: 0}
	monitors[1].Primary = true
	monitors[0].Primary = false
	monitors[0].Transform = monitor.Transform270
	monitors[0].VRR = false
	require.True(t, monitors[0].SelectMode(monitor.Size{Width: 1920, Height: 1200}, 60))

	require.NoError(t, a.Persist(ctx, monitors))
	assert.Contains(t, fake.args, "output.DP-3.priority.1")

	again, err := a.Fetch(ctx)
	require.NoError(t, err)
	for i := range monitors {
		assert.Equal(t, monitors[i].Enabled, again[i].Enabled)
		assert.Equal(t, monitors[i].Primary, again[i].Primary)
		assert.Equal(t, monitors[i].Mode, again[i].Mode)
		assert.Equal(t, monitors[i].Offset, again[i].Offset)
		assert.Equal(t, monitors[i].Transform, again[i].Transform)
		assert.Equal(t, monitors[i].VRR, again[i].VRR)
		assert.InDelta(t, monitors[i].RefreshRate, again[i].RefreshRate, 1)
		assert.InDelta(t, monitors[i].Scale, again[i].Scale, 1e-5)
	}
}
