package wayland

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/1broseidon/outputctl/internal/backend"
	"github.com/1broseidon/outputctl/internal/monitor"
)

// Source yields protocol events until one batch is complete or the context
// ends. emit returning an error stops the stream.
type Source interface {
	Stream(ctx context.Context, emit func(Event) error) error
}

// SliceSource replays a fixed list of events.
type SliceSource []Event

func (s SliceSource) Stream(ctx context.Context, emit func(Event) error) error {
	for _, ev := range s {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(ev); err != nil {
			return err
		}
	}
	return nil
}

// ReaderSource decodes JSON-lines events from R.
type ReaderSource struct {
	R io.Reader
}

func (s ReaderSource) Stream(ctx context.Context, emit func(Event) error) error {
	dec := NewDecoder(s.R)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := emit(ev); err != nil {
			return err
		}
	}
}

// CommandSource runs a helper process that prints JSON-lines events on
// stdout. The process is killed once the stream stops.
type CommandSource struct {
	Name string
	Args []string
}

func (s CommandSource) Stream(ctx context.Context, emit func(Event) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.Name, s.Args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%s: %w", s.Name, err)
	}

	streamErr := ReaderSource{R: stdout}.Stream(ctx, emit)
	cancel()
	waitErr := cmd.Wait()

	if streamErr != nil && !errors.Is(streamErr, errStop) {
		return streamErr
	}
	if streamErr == nil && waitErr != nil && ctx.Err() == nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", s.Name, waitErr, msg)
		}
		return fmt.Errorf("%s: %w", s.Name, waitErr)
	}
	return nil
}

// errStop ends a stream once the accumulator holds a complete batch.
var errStop = errors.New("batch complete")

// Collect feeds src into acc until a batch completes and returns the
// converted monitors. Transport problems wrap backend.ErrTransport and
// conversion problems wrap backend.ErrConversion; either way the result is
// nil.
func Collect(ctx context.Context, src Source, acc *Accumulator) ([]monitor.Monitor, error) {
	err := src.Stream(ctx, func(ev Event) error {
		if err := acc.Feed(ev); err != nil {
			return err
		}
		if acc.Done() || acc.Finished() {
			return errStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		if errors.Is(err, ErrProtocol) {
			return nil, fmt.Errorf("%w: %w", backend.ErrConversion, err)
		}
		return nil, fmt.Errorf("%w: %w", backend.ErrTransport, err)
	}
	if !acc.Done() {
		return nil, fmt.Errorf("%w: %w", backend.ErrTransport, ErrIncomplete)
	}

	monitors, err := acc.Monitors()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrConversion, err)
	}
	return monitors, nil
}
