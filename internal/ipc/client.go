package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/1broseidon/outputctl/internal/display"
	"github.com/1broseidon/outputctl/internal/runtimepath"
)

// Client handles IPC communication with the daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a client for the default socket.
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; send surfaces connection errors.
		socketPath = ""
	}
	return NewClientAt(socketPath)
}

// NewClientAt creates a client for socketPath.
func NewClientAt(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    requestTimeout + 5*time.Second,
	}
}

// send sends a request and decodes the response data into out when non-nil.
func (c *Client) send(ctx context.Context, cmd CommandType, payload any, out any) error {
	req := &Request{Command: cmd}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		req.Payload = raw
	}

	dialer := net.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetDeadline(deadline)

	reqData, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	respData, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Status == "ERROR" {
		return fmt.Errorf("daemon error: %s", resp.Error)
	}
	if out != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, out); err != nil {
			return fmt.Errorf("failed to parse %s data: %w", cmd, err)
		}
	}
	return nil
}

// Reload asks the daemon to re-read its configuration.
func (c *Client) Reload(ctx context.Context) error {
	return c.send(ctx, CommandReload, nil, nil)
}

// GetStatus retrieves daemon status
func (c *Client) GetStatus(ctx context.Context) (*StatusData, error) {
	var status StatusData
	if err := c.send(ctx, CommandGetStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetMonitors retrieves the daemon's working collection, edits included.
func (c *Client) GetMonitors(ctx context.Context) (*MonitorsData, error) {
	var data MonitorsData
	if err := c.send(ctx, CommandGetMonitors, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Refresh re-fetches the live configuration, dropping edits.
func (c *Client) Refresh(ctx context.Context) (*MonitorsData, error) {
	var data MonitorsData
	if err := c.send(ctx, CommandRefresh, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// SetMonitor edits one monitor without applying.
func (c *Client) SetMonitor(ctx context.Context, change display.Change) (*display.ChangeResult, error) {
	var res display.ChangeResult
	if err := c.send(ctx, CommandSetMonitor, change, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// MoveMonitor drags one monitor by a logical delta.
func (c *Client) MoveMonitor(ctx context.Context, name string, dx, dy int) (*MoveData, error) {
	var data MoveData
	if err := c.send(ctx, CommandMoveMonitor, MovePayload{Name: name, DX: dx, DY: dy}, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Apply pushes the edits. Unless noConfirm is set, the change reverts when
// not confirmed in time.
func (c *Client) Apply(ctx context.Context, noConfirm bool) (*ApplyData, error) {
	var data ApplyData
	if err := c.send(ctx, CommandApply, ApplyPayload{NoConfirm: noConfirm}, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Confirm keeps the pending change. An empty id confirms whatever is
// pending.
func (c *Client) Confirm(ctx context.Context, id string) error {
	return c.send(ctx, CommandConfirm, TransactionPayload{ID: id}, nil)
}

// Revert restores the configuration from before the pending change.
func (c *Client) Revert(ctx context.Context, id string) error {
	return c.send(ctx, CommandRevert, TransactionPayload{ID: id}, nil)
}

// Persist stores the edited configuration.
func (c *Client) Persist(ctx context.Context) error {
	return c.send(ctx, CommandPersist, nil, nil)
}

// Discard drops local edits.
func (c *Client) Discard(ctx context.Context) error {
	return c.send(ctx, CommandDiscard, nil, nil)
}

// Ping checks if the daemon is responding
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.GetStatus(ctx)
	return err
}
