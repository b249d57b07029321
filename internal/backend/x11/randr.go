package x11

import (
	"context"
	"fmt"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
)

// Screens are sized at 96 DPI when resized.
const mmPerPixel = 25.4 / 96

// Conn is a RandR Server backed by an X connection.
type Conn struct {
	xu   *xgbutil.XUtil
	root xproto.Window
}

// Connect opens the display named by $DISPLAY and initializes RandR.
func Connect() (*Conn, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, err
	}
	if err := randr.Init(xu.Conn()); err != nil {
		xu.Conn().Close()
		return nil, fmt.Errorf("randr init failed: %w", err)
	}
	return &Conn{xu: xu, root: xu.RootWin()}, nil
}

// Close disconnects from the X server.
func (c *Conn) Close() {
	c.xu.Conn().Close()
}

func refreshOf(mi randr.ModeInfo) float64 {
	if mi.Htotal == 0 || mi.Vtotal == 0 {
		return 0
	}
	vtotal := float64(mi.Vtotal)
	if mi.ModeFlags&randr.ModeFlagDoubleScan != 0 {
		vtotal *= 2
	}
	if mi.ModeFlags&randr.ModeFlagInterlace != 0 {
		vtotal /= 2
	}
	return float64(mi.DotClock) / (float64(mi.Htotal) * vtotal)
}

func (c *Conn) resources() (*randr.GetScreenResourcesCurrentReply, error) {
	res, err := randr.GetScreenResourcesCurrent(c.xu.Conn(), c.root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}
	return res, nil
}

func (c *Conn) Snapshot(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	res, err := c.resources()
	if err != nil {
		return Snapshot{}, err
	}
	conn := c.xu.Conn()

	snap := Snapshot{
		Crtcs: make(map[uint32]Crtc, len(res.Crtcs)),
		Modes: make(map[uint32]Mode, len(res.Modes)),
	}
	for _, mi := range res.Modes {
		snap.Modes[mi.Id] = Mode{ID: mi.Id, Width: int(mi.Width), Height: int(mi.Height), Refresh: refreshOf(mi)}
	}
	for _, id := range res.Crtcs {
		info, err := randr.GetCrtcInfo(conn, id, res.ConfigTimestamp).Reply()
		if err != nil {
			return Snapshot{}, fmt.Errorf("crtc %d: %w", id, err)
		}
		snap.Crtcs[uint32(id)] = Crtc{
			ID:       uint32(id),
			X:        int(info.X),
			Y:        int(info.Y),
			Width:    int(info.Width),
			Height:   int(info.Height),
			Mode:     uint32(info.Mode),
			Rotation: info.Rotation,
		}
	}
	for _, id := range res.Outputs {
		info, err := randr.GetOutputInfo(conn, id, res.ConfigTimestamp).Reply()
		if err != nil {
			return Snapshot{}, fmt.Errorf("output %d: %w", id, err)
		}
		o := Output{
			ID:           uint32(id),
			Name:         string(info.Name),
			Connected:    info.Connection == randr.ConnectionConnected,
			Crtc:         uint32(info.Crtc),
			NumPreferred: int(info.NumPreferred),
		}
		for _, crtc := range info.Crtcs {
			o.Crtcs = append(o.Crtcs, uint32(crtc))
		}
		for _, mode := range info.Modes {
			o.Modes = append(o.Modes, uint32(mode))
		}
		snap.Outputs = append(snap.Outputs, o)
	}
	if primary, err := randr.GetOutputPrimary(conn, c.root).Reply(); err == nil {
		snap.Primary = uint32(primary.Output)
	}
	return snap, nil
}

func (c *Conn) setCrtc(res *randr.GetScreenResourcesCurrentReply, cfg CrtcConfig) error {
	outputs := make([]randr.Output, 0, len(cfg.Outputs))
	for _, o := range cfg.Outputs {
		outputs = append(outputs, randr.Output(o))
	}
	rotation := cfg.Rotation
	if cfg.Mode == 0 {
		rotation = Rotate0
	}
	reply, err := randr.SetCrtcConfig(c.xu.Conn(), randr.Crtc(cfg.Crtc), xproto.TimeCurrentTime, res.ConfigTimestamp,
		int16(cfg.X), int16(cfg.Y), randr.Mode(cfg.Mode), rotation, outputs).Reply()
	if err != nil {
		return fmt.Errorf("crtc %d: %w", cfg.Crtc, err)
	}
	if reply.Status != randr.SetConfigSuccess {
		return fmt.Errorf("crtc %d: SetCrtcConfig status %d", cfg.Crtc, reply.Status)
	}
	return nil
}

func (c *Conn) Configure(ctx context.Context, plan Plan) error {
	res, err := c.resources()
	if err != nil {
		return err
	}
	conn := c.xu.Conn()

	// Keep the server from processing other clients mid-change.
	xproto.GrabServer(conn)
	defer xproto.UngrabServer(conn)

	for _, crtc := range plan.Disable {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.setCrtc(res, CrtcConfig{Crtc: crtc}); err != nil {
			return err
		}
	}

	mmW := uint32(float64(plan.Width) * mmPerPixel)
	mmH := uint32(float64(plan.Height) * mmPerPixel)
	if err := randr.SetScreenSizeChecked(conn, c.root, uint16(plan.Width), uint16(plan.Height), mmW, mmH).Check(); err != nil {
		return fmt.Errorf("set screen size %dx%d: %w", plan.Width, plan.Height, err)
	}

	for _, cfg := range plan.Crtcs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.setCrtc(res, cfg); err != nil {
			return err
		}
	}

	if plan.Primary != 0 {
		if err := randr.SetOutputPrimaryChecked(conn, c.root, randr.Output(plan.Primary)).Check(); err != nil {
			return fmt.Errorf("set primary output: %w", err)
		}
	}
	return nil
}
