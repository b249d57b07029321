// Package mcp exposes the daemon's monitor session as MCP tools over stdio.
package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/outputctl/internal/display"
	"github.com/1broseidon/outputctl/internal/ipc"
)

const (
	ServerName    = "outputctl"
	ServerVersion = "0.1.0"
)

// Daemon is the subset of the IPC client the tools drive. *ipc.Client
// satisfies it.
type Daemon interface {
	GetStatus(ctx context.Context) (*ipc.StatusData, error)
	GetMonitors(ctx context.Context) (*ipc.MonitorsData, error)
	Refresh(ctx context.Context) (*ipc.MonitorsData, error)
	SetMonitor(ctx context.Context, change display.Change) (*display.ChangeResult, error)
	MoveMonitor(ctx context.Context, name string, dx, dy int) (*ipc.MoveData, error)
	Apply(ctx context.Context, noConfirm bool) (*ipc.ApplyData, error)
	Confirm(ctx context.Context, id string) error
	Revert(ctx context.Context, id string) error
	Persist(ctx context.Context) error
}

// Server is the MCP server for monitor arrangement.
type Server struct {
	mcpServer *mcpsdk.Server
	daemon    Daemon
}

// NewServer creates an MCP server that forwards to daemon.
func NewServer(daemon Daemon) *Server {
	s := &Server{daemon: daemon}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Connect serves one session over t. Used with in-memory transports.
func (s *Server) Connect(ctx context.Context, t mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	return s.mcpServer.Connect(ctx, t, nil)
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_status",
		Description: "Report the display backend, whether there are unapplied edits, and the change awaiting confirmation if any.",
	}, s.handleGetStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_monitors",
		Description: "List outputs with position, mode, scale, rotation and available modes. Reflects unapplied edits unless refresh is set.",
	}, s.handleListMonitors)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_monitor",
		Description: "Edit one output: enable or disable, mode, scale, transform, primary, adaptive sync. Other outputs are rearranged to stay adjacent. Nothing changes on screen until apply_layout.",
	}, s.handleSetMonitor)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "move_monitor",
		Description: "Move one output by a delta in logical pixels. The output snaps to the nearest edge of another; moves that would overlap or detach are reverted.",
	}, s.handleMoveMonitor)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "apply_layout",
		Description: "Apply the edited layout. Unless no_confirm is set the change reverts automatically if confirm_layout is not called before the deadline.",
	}, s.handleApplyLayout)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "confirm_layout",
		Description: "Keep the applied layout awaiting confirmation.",
	}, s.handleConfirmLayout)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "revert_layout",
		Description: "Restore the layout from before the pending apply.",
	}, s.handleRevertLayout)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "persist_layout",
		Description: "Store the edited layout so it survives a restart, where the backend supports it.",
	}, s.handlePersistLayout)
}
