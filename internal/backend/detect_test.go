package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func procs(names ...string) ProcessLister {
	return func(context.Context) ([]string, error) { return names, nil }
}

func TestDetect(t *testing.T) {
	cases := []struct {
		name  string
		env   Env
		procs ProcessLister
		want  Kind
	}{
		{"hyprland signature wins", Env{HyprlandSignature: "abc", CurrentDesktop: "GNOME"}, nil, KindHyprland},
		{"ubuntu desktop", Env{CurrentDesktop: "ubuntu:GNOME", SessionType: "wayland"}, nil, KindGNOME},
		{"plasma", Env{CurrentDesktop: "KDE", WaylandDisplay: "wayland-0"}, nil, KindKDE},
		{"sway", Env{CurrentDesktop: "sway"}, nil, KindWlroots},
		{"process scan", Env{WaylandDisplay: "wayland-1"}, procs("bash", "river"), KindWlroots},
		{"kwin on x11", Env{X11Display: ":0"}, procs("kwin_x11"), KindX11},
		{"unknown wayland compositor", Env{WaylandDisplay: "wayland-0"}, procs("bash"), KindWlroots},
		{"plain x11", Env{X11Display: ":1"}, nil, KindX11},
		{"nothing", Env{}, procs(), KindUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Detect(context.Background(), tc.env, tc.procs))
		})
	}
}

func TestDetect_ProcessErrorFallsThrough(t *testing.T) {
	failing := func(context.Context) ([]string, error) { return nil, errors.New("no /proc") }
	assert.Equal(t, KindX11, Detect(context.Background(), Env{X11Display: ":0"}, failing))
}

func TestEnvFromLookup(t *testing.T) {
	vars := map[string]string{
		"XDG_CURRENT_DESKTOP": "Hyprland",
		"WAYLAND_DISPLAY":     "wayland-1",
	}
	env := EnvFromLookup(func(k string) string { return vars[k] })
	assert.Equal(t, "Hyprland", env.CurrentDesktop)
	assert.Equal(t, "wayland-1", env.WaylandDisplay)
	assert.Empty(t, env.X11Display)
}
