package ports

import (
	"context"

	"github.com/batonlabs/baton/pkg/domain"
)

// Responder produces a participant's output given the transcript and shared
// context. Implementations are typically LLM-backed; the router only
// interprets the structured directive, never the text.
type Responder interface {
	Respond(ctx context.Context, state *domain.State) (domain.Output, error)
}

// ResponderFunc adapts a function to the Responder interface.
type ResponderFunc func(ctx context.Context, state *domain.State) (domain.Output, error)

func (f ResponderFunc) Respond(ctx context.Context, state *domain.State) (domain.Output, error) {
	return f(ctx, state)
}

// Selector is the orchestration-manager seam consulted when a fallback
// policy defers routing. Implementations must be deterministic given the
// same transcript and context, and must return either a registered
// participant or a terminate target.
type Selector interface {
	SelectNext(ctx context.Context, state *domain.State) (domain.Target, error)
}

// SelectorFunc adapts a function to the Selector interface.
type SelectorFunc func(ctx context.Context, state *domain.State) (domain.Target, error)

func (f SelectorFunc) SelectNext(ctx context.Context, state *domain.State) (domain.Target, error) {
	return f(ctx, state)
}

// TerminationEvaluator inspects the latest output and decides whether the
// session ends. Must be side-effect free. A nil evaluator never terminates.
type TerminationEvaluator func(state *domain.State, output domain.Output) bool

// PredicateEvaluator resolves named predicate conditions in hand-off rules.
// The name is opaque to the core; hosts register whatever logic they need.
type PredicateEvaluator interface {
	Evaluate(ctx context.Context, name string, state *domain.State, output domain.Output) (bool, error)
}

// ToolExecutor runs external side-effects requested by a participant.
// Results are folded into the acting turn's output before hand-off
// evaluation; the router never advances past a pending call.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args map[string]any) (any, error)
}
