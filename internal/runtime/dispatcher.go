// Package runtime implements the turn dispatcher: the control loop that,
// after each participant turn, evaluates hand-off rules and fallback
// policies to decide who acts next.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/batonlabs/baton/internal/logging"
	"github.com/batonlabs/baton/pkg/domain"
	"github.com/batonlabs/baton/pkg/ports"
)

// Config carries the per-session routing configuration.
type Config struct {
	// Roster is the set of addressable participants.
	Roster *domain.Roster
	// Table maps participants to their hand-off rules and fallback policies.
	Table domain.RuleTable
	// Responders produce output for agent participants, keyed by name.
	// A human participant may register one as its auto-reply seam.
	Responders map[string]ports.Responder
	// Initial is the participant that acts first.
	Initial string
}

// Dispatcher is the stateless routing core. It holds configuration only;
// session state travels through the Step/SubmitInput arguments, so one
// dispatcher serves many concurrent sessions.
type Dispatcher struct {
	roster     *domain.Roster
	table      domain.RuleTable
	responders map[string]ports.Responder
	initial    string

	selector   ports.Selector
	terminator ports.TerminationEvaluator
	predicates ports.PredicateEvaluator
	tools      ports.ToolExecutor

	programs map[string]exprProgram
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	maxTurns int
	seed     map[string]any
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets a structured logger for dispatch events.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(d *Dispatcher) { d.hooks = hooks }
}

// WithSelector sets the orchestration-manager seam.
func WithSelector(s ports.Selector) Option {
	return func(d *Dispatcher) { d.selector = s }
}

// WithTerminationEvaluator sets the external termination predicate.
// If none is supplied the session never terminates automatically.
func WithTerminationEvaluator(t ports.TerminationEvaluator) Option {
	return func(d *Dispatcher) { d.terminator = t }
}

// WithPredicateEvaluator sets the resolver for named predicate conditions.
func WithPredicateEvaluator(p ports.PredicateEvaluator) Option {
	return func(d *Dispatcher) { d.predicates = p }
}

// WithToolExecutor sets the executor for participant tool calls.
func WithToolExecutor(t ports.ToolExecutor) Option {
	return func(d *Dispatcher) { d.tools = t }
}

// WithMaxTurns caps the transcript length; reaching the cap terminates the
// session before the next turn is produced. Zero means unlimited.
func WithMaxTurns(n int) Option {
	return func(d *Dispatcher) { d.maxTurns = n }
}

// WithInitialContext sets keys seeded into every new session's shared
// context. Per-session initial context overrides them key by key.
func WithInitialContext(seed map[string]any) Option {
	return func(d *Dispatcher) { d.seed = seed }
}

// New builds a dispatcher and validates the whole routing configuration.
// Unknown targets, missing seams and malformed condition expressions are
// rejected here so sessions can never fail on them mid-run.
func New(cfg Config, opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		roster:     cfg.Roster,
		table:      cfg.Table,
		responders: cfg.Responders,
		initial:    cfg.Initial,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.responders == nil {
		d.responders = map[string]ports.Responder{}
	}

	if err := d.validate(); err != nil {
		return nil, err
	}

	programs, err := compileTable(d.table)
	if err != nil {
		return nil, err
	}
	d.programs = programs

	return d, nil
}

// Start creates the initial state for a session. An empty sessionID gets a
// generated UUID.
func (d *Dispatcher) Start(ctx context.Context, sessionID string, initialContext map[string]any) (*domain.State, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	state := domain.NewState(sessionID, d.initial)
	for k, v := range d.seed {
		state.Set(k, v)
	}
	for k, v := range initialContext {
		state.Set(k, v)
	}
	state.Status = domain.StatusRunning

	d.logger.Info("session started",
		"session_id", sessionID,
		"initial", d.initial,
		"participants", d.roster.Len(),
	)
	return state, nil
}

// Step advances the session by one turn. Stepping a terminated session is a
// no-op returning the terminated verdict.
func (d *Dispatcher) Step(ctx context.Context, state *domain.State) (*domain.State, domain.NextStep, error) {
	if state == nil {
		return nil, domain.NextStep{}, fmt.Errorf("nil state")
	}
	if state.Terminated() {
		return state, domain.NextStep{Kind: domain.StepTerminated}, nil
	}

	// Cancellation is checked before each advance and records no further turns.
	if err := ctx.Err(); err != nil {
		next := d.terminate(ctx, state.Clone(), domain.ReasonCanceled)
		return next, domain.NextStep{Kind: domain.StepTerminated}, nil
	}
	if d.maxTurns > 0 && len(state.Turns) >= d.maxTurns {
		next := d.terminate(ctx, state.Clone(), domain.ReasonMaxTurns)
		return next, domain.NextStep{Kind: domain.StepTerminated}, nil
	}

	current, ok := d.roster.Get(state.Current)
	if !ok {
		return d.fail(ctx, state.Clone(), &domain.ConfigError{
			Detail: fmt.Sprintf("current participant %q is not registered", state.Current),
		})
	}

	// Human proxies act through the input gate, never through Step.
	if current.Role == domain.RoleHuman {
		next := state.Clone()
		next.Status = domain.StatusAwaitingInput
		d.emitGate(ctx, next, current.Name)
		return next, domain.NextStep{Kind: domain.StepAwaitInput, Participant: current.Name}, nil
	}
	if state.Status == domain.StatusAwaitingInput {
		return state, domain.NextStep{Kind: domain.StepAwaitInput, Participant: state.Current}, nil
	}

	responder, ok := d.responders[current.Name]
	if !ok {
		return d.fail(ctx, state.Clone(), &domain.ConfigError{
			Participant: current.Name,
			Detail:      "no responder registered",
		})
	}

	output, err := responder.Respond(ctx, state)
	if err != nil {
		// External call failures become routable error payloads; the rule
		// table decides what happens next (§ error taxonomy).
		d.logger.Warn("responder failed, recording error turn",
			"session_id", state.SessionID,
			"participant", current.Name,
			"err", err,
		)
		output = domain.Output{Err: err.Error()}
	}

	output = d.foldToolCalls(ctx, state, current, output)

	return d.routeAfterOutput(ctx, state, current.Name, output)
}

// SubmitInput resolves the human-input gate with the given text.
// Empty input is the skip signal: the human participant's registered
// responder (auto-reply) acts instead, or an empty turn is recorded.
func (d *Dispatcher) SubmitInput(ctx context.Context, state *domain.State, input string) (*domain.State, domain.NextStep, error) {
	if state == nil {
		return nil, domain.NextStep{}, fmt.Errorf("nil state")
	}
	if state.Terminated() {
		return state, domain.NextStep{Kind: domain.StepTerminated}, domain.ErrSessionTerminated
	}
	if state.Status != domain.StatusAwaitingInput {
		return state, domain.NextStep{}, domain.ErrNotAwaitingInput
	}

	var output domain.Output
	if input == "" {
		if responder, ok := d.responders[state.Current]; ok {
			var err error
			output, err = responder.Respond(ctx, state)
			if err != nil {
				output = domain.Output{Err: err.Error()}
			}
		}
	} else {
		output = domain.Output{Text: input}
	}

	return d.routeAfterOutput(ctx, state, state.Current, output)
}

// routeAfterOutput appends the turn and makes the hand-off decision:
// termination evaluator, then directive, then rules in declaration order,
// then fallback, then manager delegation.
func (d *Dispatcher) routeAfterOutput(ctx context.Context, prev *domain.State, actor string, output domain.Output) (*domain.State, domain.NextStep, error) {
	next := prev.Clone()
	next.Status = domain.StatusRunning

	if output.Directive != nil {
		for k, v := range output.Directive.SetContext {
			next.Set(k, v)
		}
	}

	turn := next.AppendTurn(actor, output)
	d.emitTurn(ctx, next, turn)

	if d.terminator != nil && d.terminator(next, output) {
		return d.terminate(ctx, next, domain.ReasonEvaluator), domain.NextStep{Kind: domain.StepTerminated}, nil
	}

	if output.Directive != nil {
		if output.Directive.Terminate {
			return d.terminate(ctx, next, domain.ReasonDirective), domain.NextStep{Kind: domain.StepTerminated}, nil
		}
		if name := output.Directive.Next; name != "" {
			if !d.roster.Has(name) {
				return d.fail(ctx, next, &domain.ConfigError{
					Participant: actor,
					Detail:      fmt.Sprintf("directive targets unknown participant %q", name),
					Err:         domain.ErrUnknownTarget,
				})
			}
			return d.applyTarget(ctx, next, actor, domain.ToParticipant(name), domain.ViaDirective)
		}
	}

	policy := d.table[actor]
	for i, rule := range policy.Rules {
		if d.match(ctx, actor, i, rule.When, next, output) {
			return d.applyTarget(ctx, next, actor, rule.To, domain.ViaRule)
		}
	}

	if policy.Fallback != nil {
		return d.applyTarget(ctx, next, actor, *policy.Fallback, domain.ViaFallback)
	}

	return d.fail(ctx, next, fmt.Errorf("participant %q: %w", actor, domain.ErrNoFallback))
}

// applyTarget transfers control to the resolved target. Manager targets
// delegate to the Selector; its verdict is validated against the roster.
func (d *Dispatcher) applyTarget(ctx context.Context, next *domain.State, from string, target domain.Target, via domain.HandoffVia) (*domain.State, domain.NextStep, error) {
	switch target.Kind {
	case domain.TargetTerminate:
		return d.terminate(ctx, next, domain.ReasonHandoffTerminate), domain.NextStep{Kind: domain.StepTerminated}, nil

	case domain.TargetParticipant:
		return d.handoffTo(ctx, next, from, target.Name, via)

	case domain.TargetHuman:
		human, ok := d.roster.Human()
		if !ok {
			return d.fail(ctx, next, &domain.ConfigError{
				Participant: from,
				Detail:      "human target but no human proxy registered",
			})
		}
		return d.handoffTo(ctx, next, from, human.Name, via)

	case domain.TargetManager:
		selected, err := d.selector.SelectNext(ctx, next)
		if err != nil {
			return d.fail(ctx, next, fmt.Errorf("manager selection: %w", err))
		}
		switch selected.Kind {
		case domain.TargetTerminate:
			return d.terminate(ctx, next, domain.ReasonHandoffTerminate), domain.NextStep{Kind: domain.StepTerminated}, nil
		case domain.TargetParticipant:
			if !d.roster.Has(selected.Name) {
				return d.fail(ctx, next, fmt.Errorf("manager selected %q: %w", selected.Name, domain.ErrNoSelection))
			}
			return d.handoffTo(ctx, next, from, selected.Name, domain.ViaManager)
		default:
			return d.fail(ctx, next, fmt.Errorf("manager selected %s: %w", selected, domain.ErrNoSelection))
		}
	}

	return d.fail(ctx, next, &domain.ConfigError{
		Participant: from,
		Detail:      fmt.Sprintf("unknown target kind %q", target.Kind),
	})
}

func (d *Dispatcher) handoffTo(ctx context.Context, next *domain.State, from, to string, via domain.HandoffVia) (*domain.State, domain.NextStep, error) {
	next.Current = to
	d.emitHandoff(ctx, next, from, to, via)
	d.logger.Debug("hand-off",
		"session_id", next.SessionID,
		"from", from,
		"to", to,
		"via", string(via),
	)

	if p, _ := d.roster.Get(to); p.Role == domain.RoleHuman {
		next.Status = domain.StatusAwaitingInput
		d.emitGate(ctx, next, to)
		return next, domain.NextStep{Kind: domain.StepAwaitInput, Participant: to}, nil
	}
	return next, domain.NextStep{Kind: domain.StepInvoke, Participant: to}, nil
}

// foldToolCalls executes requested side-effects and folds results into the
// output. The dispatcher never advances to routing with a pending call.
func (d *Dispatcher) foldToolCalls(ctx context.Context, state *domain.State, actor domain.Participant, output domain.Output) domain.Output {
	if len(output.ToolCalls) == 0 {
		return output
	}

	results := make([]domain.ToolResult, 0, len(output.ToolCalls))
	for _, call := range output.ToolCalls {
		res := domain.ToolResult{ID: call.ID, Name: call.Name}
		switch {
		case !actor.Can(domain.CapRequestTool):
			res.IsError = true
			res.Error = fmt.Sprintf("participant %q cannot request tools", actor.Name)
		case d.tools == nil:
			res.IsError = true
			res.Error = "no tool executor configured"
		default:
			value, err := d.tools.Execute(ctx, call.Name, call.Args)
			if err != nil {
				res.IsError = true
				res.Error = err.Error()
			} else {
				res.Result = value
			}
		}
		if res.IsError {
			d.logger.Warn("tool call failed",
				"session_id", state.SessionID,
				"tool", call.Name,
				"err", res.Error,
			)
		}
		results = append(results, res)
	}
	output.ToolResults = results
	return output
}

// terminate moves the state into the absorbing status.
func (d *Dispatcher) terminate(ctx context.Context, state *domain.State, reason string) *domain.State {
	if state.Terminated() {
		return state
	}
	state.Status = domain.StatusTerminated
	if state.Reason == "" {
		state.Reason = reason
	}
	d.logger.Info("session terminated",
		"session_id", state.SessionID,
		"reason", state.Reason,
		"turns", len(state.Turns),
	)
	d.emitTerminate(ctx, state)
	return state
}

// fail terminates the session with the error attached as the reason and
// propagates the error. Fatal errors are never silently recovered.
func (d *Dispatcher) fail(ctx context.Context, state *domain.State, err error) (*domain.State, domain.NextStep, error) {
	state.Reason = err.Error()
	state = d.terminate(ctx, state, state.Reason)
	return state, domain.NextStep{Kind: domain.StepTerminated}, err
}

func (d *Dispatcher) emitTurn(ctx context.Context, state *domain.State, turn domain.Turn) {
	if d.hooks.OnTurn == nil {
		return
	}
	d.hooks.OnTurn(ctx, &domain.TurnEvent{
		EventBase:   eventBase(domain.EventTurnRecorded, state.SessionID),
		Index:       turn.Index,
		Participant: turn.Participant,
		IsError:     turn.Output.IsError(),
	})
}

func (d *Dispatcher) emitHandoff(ctx context.Context, state *domain.State, from, to string, via domain.HandoffVia) {
	if d.hooks.OnHandoff == nil {
		return
	}
	d.hooks.OnHandoff(ctx, &domain.HandoffEvent{
		EventBase: eventBase(domain.EventHandoff, state.SessionID),
		From:      from,
		To:        to,
		Via:       via,
	})
}

func (d *Dispatcher) emitGate(ctx context.Context, state *domain.State, participant string) {
	if d.hooks.OnGate == nil {
		return
	}
	d.hooks.OnGate(ctx, &domain.GateEvent{
		EventBase:   eventBase(domain.EventInputGate, state.SessionID),
		Participant: participant,
	})
}

func (d *Dispatcher) emitTerminate(ctx context.Context, state *domain.State) {
	if d.hooks.OnTerminate == nil {
		return
	}
	d.hooks.OnTerminate(ctx, &domain.TerminationEvent{
		EventBase: eventBase(domain.EventTerminated, state.SessionID),
		Reason:    state.Reason,
		Turns:     len(state.Turns),
	})
}

func eventBase(t domain.EventType, sessionID string) domain.EventBase {
	return domain.EventBase{
		Timestamp: time.Now().UTC(),
		Type:      t,
		SessionID: sessionID,
	}
}
