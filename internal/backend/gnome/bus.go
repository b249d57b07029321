package gnome

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	busName       = "org.gnome.Mutter.DisplayConfig"
	objectPath    = dbus.ObjectPath("/org/gnome/Mutter/DisplayConfig")
	interfaceName = "org.gnome.Mutter.DisplayConfig"
)

// ApplyMonitorsConfig methods.
const (
	MethodVerify     uint32 = 0
	MethodTemporary  uint32 = 1
	MethodPersistent uint32 = 2
)

// MonitorSpec identifies a physical monitor: (ssss).
type MonitorSpec struct {
	Connector string
	Vendor    string
	Product   string
	Serial    string
}

// Mode is one mode of a physical monitor: (siiddada{sv}).
type Mode struct {
	ID              string
	Width           int32
	Height          int32
	Refresh         float64
	PreferredScale  float64
	SupportedScales []float64
	Properties      map[string]dbus.Variant
}

// PhysicalMonitor is ((ssss)a(siiddada{sv})a{sv}).
type PhysicalMonitor struct {
	Spec       MonitorSpec
	Modes      []Mode
	Properties map[string]dbus.Variant
}

// LogicalMonitor is (iiduba(ssss)a{sv}).
type LogicalMonitor struct {
	X          int32
	Y          int32
	Scale      float64
	Transform  uint32
	Primary    bool
	Monitors   []MonitorSpec
	Properties map[string]dbus.Variant
}

// State is the reply of GetCurrentState.
type State struct {
	Serial     uint32
	Monitors   []PhysicalMonitor
	Logical    []LogicalMonitor
	Properties map[string]dbus.Variant
}

// MonitorAssignment is (ssa{sv}) in ApplyMonitorsConfig.
type MonitorAssignment struct {
	Connector  string
	ModeID     string
	Properties map[string]dbus.Variant
}

// LogicalMonitorConfig is (iiduba(ssa{sv})) in ApplyMonitorsConfig.
type LogicalMonitorConfig struct {
	X         int32
	Y         int32
	Scale     float64
	Transform uint32
	Primary   bool
	Monitors  []MonitorAssignment
}

// DisplayConfig is the subset of org.gnome.Mutter.DisplayConfig the adapter
// calls.
type DisplayConfig interface {
	GetCurrentState(ctx context.Context) (State, error)
	ApplyMonitorsConfig(ctx context.Context, serial, method uint32, logical []LogicalMonitorConfig, props map[string]dbus.Variant) error
}

// BusDisplayConfig calls Mutter over the session bus.
type BusDisplayConfig struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// ConnectSession opens a private session bus connection to Mutter.
func ConnectSession() (*BusDisplayConfig, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	return &BusDisplayConfig{conn: conn, obj: conn.Object(busName, objectPath)}, nil
}

// Available reports whether Mutter owns its DisplayConfig name.
func (b *BusDisplayConfig) Available(ctx context.Context) bool {
	var owned bool
	obj := b.conn.Object("org.freedesktop.DBus", "/org/freedesktop/DBus")
	if err := obj.CallWithContext(ctx, "org.freedesktop.DBus.NameHasOwner", 0, busName).Store(&owned); err != nil {
		return false
	}
	return owned
}

func (b *BusDisplayConfig) GetCurrentState(ctx context.Context) (State, error) {
	var st State
	call := b.obj.CallWithContext(ctx, interfaceName+".GetCurrentState", 0)
	if err := call.Store(&st.Serial, &st.Monitors, &st.Logical, &st.Properties); err != nil {
		return State{}, err
	}
	return st, nil
}

func (b *BusDisplayConfig) ApplyMonitorsConfig(ctx context.Context, serial, method uint32, logical []LogicalMonitorConfig, props map[string]dbus.Variant) error {
	if props == nil {
		props = map[string]dbus.Variant{}
	}
	return b.obj.CallWithContext(ctx, interfaceName+".ApplyMonitorsConfig", 0, serial, method, logical, props).Err
}

// Close releases the bus connection.
func (b *BusDisplayConfig) Close() error {
	return b.conn.Close()
}
