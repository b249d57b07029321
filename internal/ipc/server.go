package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/1broseidon/outputctl/internal/confirm"
	"github.com/1broseidon/outputctl/internal/display"
)

const (
	// readTimeout bounds how long a client may take to send its request line.
	readTimeout = 5 * time.Second
	// requestTimeout bounds backend I/O done on behalf of one request.
	requestTimeout = 30 * time.Second
)

// Server answers newline-delimited JSON requests on a unix socket, one
// request per connection.
type Server struct {
	socketPath string
	session    *display.Session
	confirm    *confirm.Manager
	reload     func(ctx context.Context) error
	started    time.Time

	ln      net.Listener
	closing atomic.Bool
	conns   sync.WaitGroup
}

// NewServer wires a server to the session it edits. reload backs the RELOAD
// command and may be nil.
func NewServer(socketPath string, session *display.Session, mgr *confirm.Manager, reload func(ctx context.Context) error) *Server {
	return &Server{
		socketPath: socketPath,
		session:    session,
		confirm:    mgr,
		reload:     reload,
		started:    time.Now(),
	}
}

// Start binds the socket, readable by the owner only, and serves it in the
// background until Stop.
func (s *Server) Start() error {
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove stale socket %s: %w", s.socketPath, err)
	}
	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		ln.Close()
		return fmt.Errorf("restrict socket %s: %w", s.socketPath, err)
	}
	s.ln = ln
	log.Printf("IPC server listening on %s", s.socketPath)

	s.conns.Add(1)
	go s.serve()
	return nil
}

func (s *Server) serve() {
	defer s.conns.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.closing.Load() {
				return
			}
			log.Printf("IPC accept: %v", err)
			continue
		}
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.serveConn(conn)
		}()
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		log.Printf("IPC read: %v", err)
		return
	}

	var resp *Response
	if req, err := ParseRequest(line); err != nil {
		resp = NewErrorResponse(fmt.Sprintf("Invalid request: %v", err))
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		resp = s.Handle(ctx, req)
	}
	s.reply(conn, resp)
}

func (s *Server) reply(conn net.Conn, resp *Response) {
	data, err := resp.Marshal()
	if err != nil {
		log.Printf("IPC encode response: %v", err)
		return
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		log.Printf("IPC write: %v", err)
	}
}

// Handle processes an IPC command and returns a response.
func (s *Server) Handle(ctx context.Context, req *Request) *Response {
	switch req.Command {
	case CommandReload:
		return s.handleReload(ctx)
	case CommandGetStatus:
		return s.handleGetStatus()
	case CommandGetMonitors:
		return ok(MonitorsData{Monitors: s.session.Snapshot()})
	case CommandRefresh:
		if err := s.session.Refresh(ctx); err != nil {
			return NewErrorResponse(fmt.Sprintf("Failed to refresh: %v", err))
		}
		return ok(MonitorsData{Monitors: s.session.Snapshot()})
	case CommandSetMonitor:
		return s.handleSetMonitor(req.Payload)
	case CommandMoveMonitor:
		return s.handleMoveMonitor(req.Payload)
	case CommandApply:
		return s.handleApply(ctx, req.Payload)
	case CommandConfirm, CommandRevert:
		return s.handleTransaction(ctx, req.Command, req.Payload)
	case CommandPersist:
		if err := s.session.Persist(ctx); err != nil {
			return NewErrorResponse(fmt.Sprintf("Failed to persist: %v", err))
		}
		return ok(nil)
	case CommandDiscard:
		s.session.Discard()
		return ok(MonitorsData{Monitors: s.session.Snapshot()})
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

func ok(data any) *Response {
	resp, err := NewOKResponse(data)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

func (s *Server) handleReload(ctx context.Context) *Response {
	log.Println("IPC: Received RELOAD command")
	if s.reload == nil {
		return NewErrorResponse("reload is not supported")
	}
	if err := s.reload(ctx); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to reload config: %v", err))
	}
	log.Println("IPC: Config reloaded successfully")
	return ok(nil)
}

func (s *Server) handleGetStatus() *Response {
	status := StatusData{
		Status:        s.session.Status(),
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		DaemonRunning: true,
	}
	if tx, pending := s.confirm.Pending(); pending {
		status.Pending = &tx
	}
	return ok(status)
}

func (s *Server) handleSetMonitor(payload json.RawMessage) *Response {
	var change display.Change
	if err := json.Unmarshal(payload, &change); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid set payload: %v", err))
	}
	res, err := s.session.ApplyChange(change)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to change %s: %v", change.Name, err))
	}
	return ok(res)
}

func (s *Server) handleMoveMonitor(payload json.RawMessage) *Response {
	var req MovePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid move payload: %v", err))
	}
	if req.Name == "" {
		return NewErrorResponse("name is required")
	}
	out, err := s.session.Move(req.Name, req.DX, req.DY)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to move %s: %v", req.Name, err))
	}
	return ok(MoveData{Outcome: out.String(), Monitors: s.session.Snapshot()})
}

func (s *Server) handleApply(ctx context.Context, payload json.RawMessage) *Response {
	var req ApplyPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid apply payload: %v", err))
		}
	}
	if req.NoConfirm {
		if _, pending := s.confirm.Pending(); pending {
			return NewErrorResponse(confirm.ErrPending.Error())
		}
		if err := s.session.Apply(ctx); err != nil {
			return NewErrorResponse(fmt.Sprintf("Failed to apply: %v", err))
		}
		return ok(ApplyData{})
	}
	tx, err := s.confirm.Apply(ctx)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to apply: %v", err))
	}
	return ok(ApplyData{Transaction: &tx})
}

func (s *Server) handleTransaction(ctx context.Context, cmd CommandType, payload json.RawMessage) *Response {
	var req TransactionPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid payload: %v", err))
		}
	}
	id := uuid.Nil
	if req.ID != "" {
		parsed, err := uuid.Parse(req.ID)
		if err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid transaction id: %v", err))
		}
		id = parsed
	}

	verb := "confirm"
	var err error
	if cmd == CommandConfirm {
		err = s.confirm.Confirm(ctx, id)
	} else {
		verb = "revert"
		err = s.confirm.Revert(ctx, id)
	}
	if err != nil {
		if errors.Is(err, confirm.ErrNoPending) || errors.Is(err, confirm.ErrStale) {
			return NewErrorResponse(err.Error())
		}
		return NewErrorResponse(fmt.Sprintf("Failed to %s: %v", verb, err))
	}
	return ok(MonitorsData{Monitors: s.session.Snapshot()})
}

// Stop closes the listener, waits for in-flight requests and removes the
// socket file.
func (s *Server) Stop() {
	s.closing.Store(true)
	if s.ln != nil {
		s.ln.Close()
		s.conns.Wait()
	}
	os.Remove(s.socketPath)
}
