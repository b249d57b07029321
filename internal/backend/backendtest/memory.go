// Package backendtest provides an in-memory backend.Adapter for tests.
package backendtest

import (
	"context"
	"sync"

	"github.com/1broseidon/outputctl/internal/backend"
	"github.com/1broseidon/outputctl/internal/monitor"
)

// Memory stores whatever it is given. Errors set on it are returned by the
// matching operation.
type Memory struct {
	KindValue backend.Kind
	Feat      monitor.Features

	mu         sync.Mutex
	monitors   []monitor.Monitor
	persisted  []monitor.Monitor
	applies    int
	FetchErr   error
	ApplyErr   error
	PersistErr error
	// OnApply runs before Apply stores the collection.
	OnApply func([]monitor.Monitor)
}

// NewMemory returns an adapter whose live configuration is monitors.
func NewMemory(kind backend.Kind, monitors []monitor.Monitor) *Memory {
	feat := monitor.Features{}
	if len(monitors) > 0 {
		feat = monitors[0].Features
	}
	return &Memory{KindValue: kind, Feat: feat, monitors: monitor.Clone(monitors)}
}

func (m *Memory) Kind() backend.Kind         { return m.KindValue }
func (m *Memory) Features() monitor.Features { return m.Feat }

func (m *Memory) Fetch(context.Context) ([]monitor.Monitor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	out := monitor.Clone(m.monitors)
	for i := range out {
		out[i].Drag = monitor.DragState{PrevScale: out[i].Scale}
	}
	return out, nil
}

func (m *Memory) Apply(_ context.Context, monitors []monitor.Monitor) error {
	if m.OnApply != nil {
		m.OnApply(monitors)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ApplyErr != nil {
		return m.ApplyErr
	}
	m.applies++
	m.monitors = monitor.Clone(monitors)
	return nil
}

func (m *Memory) Persist(_ context.Context, monitors []monitor.Monitor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PersistErr != nil {
		return m.PersistErr
	}
	m.persisted = monitor.Clone(monitors)
	m.monitors = monitor.Clone(monitors)
	return nil
}

// Live returns the stored configuration.
func (m *Memory) Live() []monitor.Monitor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return monitor.Clone(m.monitors)
}

// SetLive replaces the live configuration, as a hotplug would.
func (m *Memory) SetLive(monitors []monitor.Monitor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.monitors = monitor.Clone(monitors)
}

// SetFetchErr sets FetchErr under the lock, for use while other goroutines
// fetch.
func (m *Memory) SetFetchErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FetchErr = err
}

// Persisted returns the last persisted configuration.
func (m *Memory) Persisted() []monitor.Monitor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return monitor.Clone(m.persisted)
}

// Applies counts successful Apply calls.
func (m *Memory) Applies() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applies
}

// Pair returns two enabled 1920x1080 monitors side by side with the given
// features, named DP-1 and HDMI-A-1.
func Pair(feat monitor.Features) []monitor.Monitor {
	entries := []monitor.ModeEntry{
		{ID: "0", Size: monitor.Size{Width: 1920, Height: 1080}, RefreshHz: 60},
		{ID: "1", Size: monitor.Size{Width: 1920, Height: 1080}, RefreshHz: 144},
		{ID: "2", Size: monitor.Size{Width: 1280, Height: 720}, RefreshHz: 60},
	}
	mk := func(id uint32, name string, x int) monitor.Monitor {
		m, _ := monitor.New(id, name, monitor.Size{Width: 1920, Height: 1080}, 1)
		m.Enabled = true
		m.Offset = monitor.Offset{X: x}
		m.RefreshRate = 60
		m.Features = feat
		m.AvailableModes = monitor.BuildModes(entries)
		m.Mode = monitor.SyntheticModeID(m.Size, 60)
		return m
	}
	return []monitor.Monitor{mk(0, "DP-1", 0), mk(1, "HDMI-A-1", 1920)}
}
