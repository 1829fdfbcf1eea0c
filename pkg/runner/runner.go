// Package runner hosts a session interactively: it drives the engine loop,
// surfaces turns through an IOHandler, reads human input at the gate, and
// persists state after every advance for durable execution.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/batonlabs/baton"
	"github.com/batonlabs/baton/pkg/domain"
	"github.com/batonlabs/baton/pkg/ports"
)

// Runner handles the execution loop using provided IO. It allows easy
// testing and integration with different frontends (CLI, TUI, etc).
type Runner struct {
	// Handler is the IO strategy. If nil, a TextHandler is built from the
	// Input/Output fields.
	Handler IOHandler

	// Logger is used for internal debug logging. If nil, logs are dropped.
	Logger *slog.Logger

	// Store is the persistence adapter for durable execution.
	// If nil, sessions are ephemeral.
	Store ports.StateStore

	Input    io.Reader
	Output   io.Writer
	Headless bool
	Renderer ContentRenderer
}

// NewRunner creates a Runner with default Stdin/Stdout.
func NewRunner() *Runner {
	return &Runner{
		Input:  os.Stdin,
		Output: os.Stdout,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Run executes the session until termination or EOF on input.
// If initialState is nil, a new session is started under sessionID.
func (r *Runner) Run(orch *baton.Orchestrator, initialState *domain.State, sessionID string) error {
	handler := r.resolveHandler()
	if r.Logger == nil {
		r.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	signals := NewSignalManager()
	defer signals.Stop()

	state := initialState
	if state == nil {
		var err error
		state, err = orch.Start(signals.Context(), sessionID, nil)
		if err != nil {
			return fmt.Errorf("failed to start session: %w", err)
		}
	}
	if sessionID == "" {
		sessionID = state.SessionID
	}

	printed := len(state.Turns)

	for {
		ctx := signals.Context()

		nextState, next, err := orch.Step(ctx, state)
		if nextState != nil {
			state = nextState
		}
		if flushErr := r.flush(ctx, handler, state, &printed); flushErr != nil {
			return flushErr
		}
		if saveErr := r.saveState(context.Background(), sessionID, state); saveErr != nil {
			return fmt.Errorf("critical persistence error: %w", saveErr)
		}
		if err != nil {
			return fmt.Errorf("routing error: %w", err)
		}

		switch next.Kind {
		case domain.StepTerminated:
			if !r.Headless {
				fmt.Fprintf(r.writer(), "session terminated (%s)\n", state.Reason)
			}
			return nil

		case domain.StepAwaitInput:
			input, err := handler.Input(ctx)
			if err != nil {
				signals.CheckRace()
				if ctx.Err() != nil {
					r.Logger.Debug("input interrupted", "session_id", sessionID, "err", ctx.Err())
					return nil
				}
				if err == io.EOF {
					return nil
				}
				return fmt.Errorf("input error: %w", err)
			}
			if input == "exit" || input == "quit" {
				return nil
			}

			nextState, _, err = orch.SubmitInput(ctx, state, input)
			if nextState != nil {
				state = nextState
			}
			if flushErr := r.flush(ctx, handler, state, &printed); flushErr != nil {
				return flushErr
			}
			if saveErr := r.saveState(context.Background(), sessionID, state); saveErr != nil {
				return fmt.Errorf("critical persistence error: %w", saveErr)
			}
			if err != nil {
				return fmt.Errorf("routing error: %w", err)
			}
		}
	}
}

// flush presents turns recorded since the last flush.
func (r *Runner) flush(ctx context.Context, handler IOHandler, state *domain.State, printed *int) error {
	if *printed >= len(state.Turns) {
		return nil
	}
	if err := handler.Output(ctx, state.Turns[*printed:]); err != nil {
		return fmt.Errorf("output error: %w", err)
	}
	*printed = len(state.Turns)
	return nil
}

func (r *Runner) saveState(ctx context.Context, sessionID string, state *domain.State) error {
	if r.Store == nil || sessionID == "" {
		return nil
	}
	if err := r.Store.Save(ctx, sessionID, state); err != nil {
		return err
	}
	r.Logger.Debug("state saved", "session_id", sessionID, "current", state.Current)
	return nil
}

func (r *Runner) resolveHandler() IOHandler {
	if r.Handler != nil {
		return r.Handler
	}
	th := NewTextHandler(r.Input, r.Output)
	th.Renderer = r.Renderer
	r.Handler = th
	return th
}

func (r *Runner) writer() io.Writer {
	if r.Output != nil {
		return r.Output
	}
	return os.Stdout
}
