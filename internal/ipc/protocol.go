package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/1broseidon/outputctl/internal/confirm"
	"github.com/1broseidon/outputctl/internal/display"
	"github.com/1broseidon/outputctl/internal/monitor"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandReload      CommandType = "RELOAD"
	CommandGetStatus   CommandType = "GET_STATUS"
	CommandGetMonitors CommandType = "GET_MONITORS"
	CommandRefresh     CommandType = "REFRESH"
	CommandSetMonitor  CommandType = "SET_MONITOR"
	CommandMoveMonitor CommandType = "MOVE_MONITOR"
	CommandApply       CommandType = "APPLY"
	CommandConfirm     CommandType = "CONFIRM"
	CommandRevert      CommandType = "REVERT"
	CommandPersist     CommandType = "PERSIST"
	CommandDiscard     CommandType = "DISCARD"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	display.Status
	Pending       *confirm.Transaction `json:"pending,omitempty"`
	UptimeSeconds int64                `json:"uptime_seconds"`
	DaemonRunning bool                 `json:"daemon_running"`
}

// MonitorsData represents the data returned by GET_MONITORS
type MonitorsData struct {
	Monitors []monitor.Monitor `json:"monitors"`
}

// MovePayload is the payload of MOVE_MONITOR.
type MovePayload struct {
	Name string `json:"name"`
	DX   int    `json:"dx"`
	DY   int    `json:"dy"`
}

// MoveData is the result of MOVE_MONITOR.
type MoveData struct {
	Outcome  string            `json:"outcome"`
	Monitors []monitor.Monitor `json:"monitors"`
}

// ApplyPayload is the payload of APPLY. With NoConfirm set the change is
// applied without a revert timer.
type ApplyPayload struct {
	NoConfirm bool `json:"no_confirm,omitempty"`
}

// ApplyData is the result of APPLY.
type ApplyData struct {
	Transaction *confirm.Transaction `json:"transaction,omitempty"`
}

// TransactionPayload addresses a pending change. An empty ID means
// whatever is pending.
type TransactionPayload struct {
	ID string `json:"id,omitempty"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
