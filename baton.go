package baton

import (
	"context"
	"io"
	"log/slog"

	"github.com/batonlabs/baton/internal/runtime"
	"github.com/batonlabs/baton/pkg/config"
	"github.com/batonlabs/baton/pkg/domain"
	"github.com/batonlabs/baton/pkg/ports"
)

// Config carries the routing configuration for an Orchestrator.
type Config struct {
	// Roster is the set of addressable participants.
	Roster *domain.Roster
	// Table maps participants to their hand-off rules and fallback policies.
	Table domain.RuleTable
	// Responders produce output for agent participants, keyed by name.
	Responders map[string]ports.Responder
	// Initial is the participant that acts first.
	Initial string
}

// Orchestrator is the high-level entry point for the baton library.
// It wraps the internal dispatcher and provides a simplified API for hosts.
type Orchestrator struct {
	dispatcher *runtime.Dispatcher

	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	runtimeOpts []runtime.Option
}

// Option defines a functional option for configuring the Orchestrator.
type Option func(*Orchestrator)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(o *Orchestrator) {
		o.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithSelector sets the orchestration manager consulted when routing
// delegates the hand-off decision.
func WithSelector(s ports.Selector) Option {
	return func(o *Orchestrator) {
		o.runtimeOpts = append(o.runtimeOpts, runtime.WithSelector(s))
	}
}

// WithTerminationEvaluator sets an external termination predicate checked
// after every turn. Without one, sessions only terminate through routing.
func WithTerminationEvaluator(t ports.TerminationEvaluator) Option {
	return func(o *Orchestrator) {
		o.runtimeOpts = append(o.runtimeOpts, runtime.WithTerminationEvaluator(t))
	}
}

// WithPredicateEvaluator sets the resolver for named predicate conditions.
func WithPredicateEvaluator(p ports.PredicateEvaluator) Option {
	return func(o *Orchestrator) {
		o.runtimeOpts = append(o.runtimeOpts, runtime.WithPredicateEvaluator(p))
	}
}

// WithToolExecutor sets the executor for participant tool calls.
func WithToolExecutor(t ports.ToolExecutor) Option {
	return func(o *Orchestrator) {
		o.runtimeOpts = append(o.runtimeOpts, runtime.WithToolExecutor(t))
	}
}

// WithMaxTurns caps the transcript length. Zero means unlimited.
func WithMaxTurns(n int) Option {
	return func(o *Orchestrator) {
		o.runtimeOpts = append(o.runtimeOpts, runtime.WithMaxTurns(n))
	}
}

// WithInitialContext sets keys seeded into every new session's shared
// context. Per-session initial context overrides them key by key.
func WithInitialContext(seed map[string]any) Option {
	return func(o *Orchestrator) {
		o.runtimeOpts = append(o.runtimeOpts, runtime.WithInitialContext(seed))
	}
}

// New initializes an Orchestrator. The whole routing configuration is
// validated here: unknown targets, missing seams and malformed condition
// expressions surface now, never mid-session.
func New(cfg Config, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{}
	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	runtimeOpts := []runtime.Option{
		runtime.WithLifecycleHooks(o.hooks),
		runtime.WithLogger(o.logger),
	}
	runtimeOpts = append(runtimeOpts, o.runtimeOpts...)

	dispatcher, err := runtime.New(runtime.Config{
		Roster:     cfg.Roster,
		Table:      cfg.Table,
		Responders: cfg.Responders,
		Initial:    cfg.Initial,
	}, runtimeOpts...)
	if err != nil {
		return nil, err
	}
	o.dispatcher = dispatcher

	return o, nil
}

// NewFromComponents builds an Orchestrator from flock-file components.
// Responders assembled by the host (for participants without a script) are
// merged over the scripted ones.
func NewFromComponents(components *config.Components, extraResponders map[string]ports.Responder, opts ...Option) (*Orchestrator, error) {
	responders := make(map[string]ports.Responder, len(components.Responders)+len(extraResponders))
	for name, r := range components.Responders {
		responders[name] = r
	}
	for name, r := range extraResponders {
		responders[name] = r
	}

	if components.Selector != nil {
		opts = append(opts, WithSelector(components.Selector))
	}
	if components.MaxTurns > 0 {
		opts = append(opts, WithMaxTurns(components.MaxTurns))
	}
	if len(components.Context) > 0 {
		opts = append(opts, WithInitialContext(components.Context))
	}

	return New(Config{
		Roster:     components.Roster,
		Table:      components.Table,
		Responders: responders,
		Initial:    components.Initial,
	}, opts...)
}

// Start creates the initial state for a session. An empty sessionID gets a
// generated one.
func (o *Orchestrator) Start(ctx context.Context, sessionID string, initialContext map[string]any) (*domain.State, error) {
	return o.dispatcher.Start(ctx, sessionID, initialContext)
}

// Step advances the session by one turn and returns the new state plus the
// routing verdict: invoke the named participant, await human input, or
// terminated.
func (o *Orchestrator) Step(ctx context.Context, state *domain.State) (*domain.State, domain.NextStep, error) {
	return o.dispatcher.Step(ctx, state)
}

// SubmitInput resolves the human-input gate with the given text. Empty
// input is the skip signal.
func (o *Orchestrator) SubmitInput(ctx context.Context, state *domain.State, input string) (*domain.State, domain.NextStep, error) {
	return o.dispatcher.SubmitInput(ctx, state, input)
}

// Run drives the session until it terminates or gates on human input.
// It is a convenience for hosts that do not need per-step control.
func (o *Orchestrator) Run(ctx context.Context, state *domain.State) (*domain.State, domain.NextStep, error) {
	for {
		next, step, err := o.dispatcher.Step(ctx, state)
		if err != nil {
			return next, step, err
		}
		if step.Kind != domain.StepInvoke {
			return next, step, nil
		}
		state = next
	}
}
