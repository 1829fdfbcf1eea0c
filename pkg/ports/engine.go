package ports

import (
	"context"

	"github.com/batonlabs/baton/pkg/domain"
)

// Dispatcher is the stateless routing core. Adapters (HTTP, MCP, runner)
// manage state externally and feed it through these three operations.
type Dispatcher interface {
	// Start validates the full configuration and creates the initial state.
	// Unknown hand-off targets, malformed conditions and an unregistered
	// initial participant surface here as *domain.ConfigError, never mid-run.
	Start(ctx context.Context, sessionID string, initialContext map[string]any) (*domain.State, error)

	// Step advances the session by one turn: the current participant produces
	// output, tool calls are folded in, and the hand-off decision is made.
	// The returned NextStep is one of invoke / await_input / terminated.
	Step(ctx context.Context, state *domain.State) (*domain.State, domain.NextStep, error)

	// SubmitInput resolves the human-input gate. Empty input is the skip
	// signal: the human participant's auto-reply responder acts instead.
	SubmitInput(ctx context.Context, state *domain.State, input string) (*domain.State, domain.NextStep, error)
}
