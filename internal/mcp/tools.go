package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/outputctl/internal/display"
)

func (s *Server) handleGetStatus(ctx context.Context, _ *mcpsdk.CallToolRequest, _ Empty) (*mcpsdk.CallToolResult, StatusOutput, error) {
	st, err := s.daemon.GetStatus(ctx)
	if err != nil {
		return nil, StatusOutput{}, err
	}
	out := StatusOutput{
		Backend:   string(st.Kind),
		Fetched:   st.Fetched,
		Dirty:     st.Dirty,
		Monitors:  st.Monitors,
		LastError: st.LastError,
	}
	if st.Pending != nil {
		out.PendingID = st.Pending.ID.String()
		deadline := st.Pending.Deadline
		out.PendingTill = &deadline
	}
	return nil, out, nil
}

func (s *Server) handleListMonitors(ctx context.Context, _ *mcpsdk.CallToolRequest, args ListMonitorsInput) (*mcpsdk.CallToolResult, ListMonitorsOutput, error) {
	fetch := s.daemon.GetMonitors
	if args.Refresh {
		fetch = s.daemon.Refresh
	}
	data, err := fetch(ctx)
	if err != nil {
		return nil, ListMonitorsOutput{}, err
	}
	return nil, ListMonitorsOutput{Monitors: toInfos(data.Monitors)}, nil
}

func (s *Server) handleSetMonitor(ctx context.Context, _ *mcpsdk.CallToolRequest, args SetMonitorInput) (*mcpsdk.CallToolResult, SetMonitorOutput, error) {
	if (args.Width == 0) != (args.Height == 0) {
		return nil, SetMonitorOutput{}, fmt.Errorf("width and height must be given together")
	}
	res, err := s.daemon.SetMonitor(ctx, display.Change{
		Name:      args.Name,
		Enabled:   args.Enabled,
		Width:     args.Width,
		Height:    args.Height,
		Refresh:   args.Refresh,
		Scale:     args.Scale,
		Transform: args.Transform,
		Primary:   args.Primary,
		VRR:       args.VRR,
	})
	if err != nil {
		return nil, SetMonitorOutput{}, err
	}
	return nil, SetMonitorOutput{Monitor: toInfo(res.Monitor), Scale: res.Scale}, nil
}

func (s *Server) handleMoveMonitor(ctx context.Context, _ *mcpsdk.CallToolRequest, args MoveMonitorInput) (*mcpsdk.CallToolResult, MoveMonitorOutput, error) {
	data, err := s.daemon.MoveMonitor(ctx, args.Name, args.DX, args.DY)
	if err != nil {
		return nil, MoveMonitorOutput{}, err
	}
	return nil, MoveMonitorOutput{Outcome: data.Outcome, Monitors: toInfos(data.Monitors)}, nil
}

func (s *Server) handleApplyLayout(ctx context.Context, _ *mcpsdk.CallToolRequest, args ApplyLayoutInput) (*mcpsdk.CallToolResult, ApplyLayoutOutput, error) {
	data, err := s.daemon.Apply(ctx, args.NoConfirm)
	if err != nil {
		return nil, ApplyLayoutOutput{}, err
	}
	var out ApplyLayoutOutput
	if data.Transaction != nil {
		out.ID = data.Transaction.ID.String()
		deadline := data.Transaction.Deadline
		out.Deadline = &deadline
	}
	return nil, out, nil
}

func (s *Server) handleConfirmLayout(ctx context.Context, _ *mcpsdk.CallToolRequest, args TransactionInput) (*mcpsdk.CallToolResult, DoneOutput, error) {
	if err := s.daemon.Confirm(ctx, args.ID); err != nil {
		return nil, DoneOutput{}, err
	}
	return nil, DoneOutput{Done: true}, nil
}

func (s *Server) handleRevertLayout(ctx context.Context, _ *mcpsdk.CallToolRequest, args TransactionInput) (*mcpsdk.CallToolResult, DoneOutput, error) {
	if err := s.daemon.Revert(ctx, args.ID); err != nil {
		return nil, DoneOutput{}, err
	}
	return nil, DoneOutput{Done: true}, nil
}

func (s *Server) handlePersistLayout(ctx context.Context, _ *mcpsdk.CallToolRequest, _ Empty) (*mcpsdk.CallToolResult, DoneOutput, error) {
	if err := s.daemon.Persist(ctx); err != nil {
		return nil, DoneOutput{}, err
	}
	return nil, DoneOutput{Done: true}, nil
}
