package runtime_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/batonlabs/baton/internal/runtime"
	"github.com/batonlabs/baton/pkg/domain"
	"github.com/batonlabs/baton/pkg/ports"
)

func mustRoster(t *testing.T, participants ...domain.Participant) *domain.Roster {
	t.Helper()
	roster, err := domain.NewRoster(participants...)
	require.NoError(t, err)
	return roster
}

func agent(name string) domain.Participant {
	return domain.Participant{Name: name, Role: domain.RoleAgent}
}

func say(text string) ports.Responder {
	return ports.ResponderFunc(func(ctx context.Context, state *domain.State) (domain.Output, error) {
		return domain.Output{Text: text}, nil
	})
}

// drive steps the session until it terminates or gates, with a safety cap.
func drive(t *testing.T, d *runtime.Dispatcher, state *domain.State) (*domain.State, domain.NextStep) {
	t.Helper()
	var next domain.NextStep
	var err error
	for i := 0; i < 50; i++ {
		state, next, err = d.Step(context.Background(), state)
		require.NoError(t, err)
		if next.Kind != domain.StepInvoke {
			return state, next
		}
	}
	t.Fatal("session did not settle within 50 steps")
	return nil, domain.NextStep{}
}

func participants(turns []domain.Turn) []string {
	names := make([]string, len(turns))
	for i, turn := range turns {
		names[i] = turn.Participant
	}
	return names
}

func TestDispatcher_HandoffScenario(t *testing.T) {
	// A (rule: output contains "DONE" -> B), B (fallback: terminate).
	terminate := domain.Terminate()
	d, err := runtime.New(runtime.Config{
		Roster:  mustRoster(t, agent("A"), agent("B")),
		Initial: "A",
		Table: domain.RuleTable{
			"A": {Rules: []domain.Rule{{When: domain.Condition{Tag: "DONE"}, To: domain.ToParticipant("B")}}},
			"B": {Fallback: &terminate},
		},
		Responders: map[string]ports.Responder{
			"A": say("work DONE"),
			"B": say("wrapping up"),
		},
	})
	require.NoError(t, err)

	state, err := d.Start(context.Background(), "s1", nil)
	require.NoError(t, err)
	require.Equal(t, domain.StatusRunning, state.Status)

	state, next := drive(t, d, state)
	assert.Equal(t, domain.StepTerminated, next.Kind)
	assert.Equal(t, domain.StatusTerminated, state.Status)
	assert.Equal(t, []string{"A", "B"}, participants(state.Turns))
	assert.Equal(t, domain.ReasonHandoffTerminate, state.Reason)
}

func TestDispatcher_TurnIndicesContiguous(t *testing.T) {
	terminate := domain.Terminate()
	toB := domain.ToParticipant("B")
	toC := domain.ToParticipant("C")
	d, err := runtime.New(runtime.Config{
		Roster:  mustRoster(t, agent("A"), agent("B"), agent("C")),
		Initial: "A",
		Table: domain.RuleTable{
			"A": {Fallback: &toB},
			"B": {Fallback: &toC},
			"C": {Fallback: &terminate},
		},
		Responders: map[string]ports.Responder{
			"A": say("one"), "B": say("two"), "C": say("three"),
		},
	})
	require.NoError(t, err)

	state, err := d.Start(context.Background(), "", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, state.SessionID, "empty session ID should be generated")

	state, _ = drive(t, d, state)
	require.Len(t, state.Turns, 3)
	for i, turn := range state.Turns {
		assert.Equal(t, i, turn.Index, "turn indices must be contiguous from 0")
	}
}

func TestDispatcher_FallbackWithEmptyRuleTable(t *testing.T) {
	// A participant with no rules and a defined fallback always routes there.
	toB := domain.ToParticipant("B")
	terminate := domain.Terminate()
	d, err := runtime.New(runtime.Config{
		Roster:  mustRoster(t, agent("A"), agent("B")),
		Initial: "A",
		Table: domain.RuleTable{
			"A": {Fallback: &toB},
			"B": {Fallback: &terminate},
		},
		Responders: map[string]ports.Responder{"A": say("anything at all"), "B": say("done")},
	})
	require.NoError(t, err)

	state, err := d.Start(context.Background(), "s1", nil)
	require.NoError(t, err)

	state, next, err := d.Step(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, domain.StepInvoke, next.Kind)
	assert.Equal(t, "B", next.Participant)
	assert.Equal(t, "B", state.Current)
}

func TestDispatcher_RuleOrderDeterministic(t *testing.T) {
	// Two rules match the same output; the earlier-declared one wins.
	terminate := domain.Terminate()
	d, err := runtime.New(runtime.Config{
		Roster:  mustRoster(t, agent("A"), agent("B"), agent("C")),
		Initial: "A",
		Table: domain.RuleTable{
			"A": {Rules: []domain.Rule{
				{When: domain.Condition{Tag: "ship"}, To: domain.ToParticipant("B")},
				{When: domain.Condition{Tag: "shipment"}, To: domain.ToParticipant("C")},
			}},
			"B": {Fallback: &terminate},
			"C": {Fallback: &terminate},
		},
		Responders: map[string]ports.Responder{
			"A": say("the shipment left the dock"),
			"B": say("b"), "C": say("c"),
		},
	})
	require.NoError(t, err)

	state, err := d.Start(context.Background(), "s1", nil)
	require.NoError(t, err)

	_, next, err := d.Step(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, "B", next.Participant, "first declared matching rule must win")
}

func TestDispatcher_ContextVisibleNextTurnOnly(t *testing.T) {
	// A writes key "x" via directive in turn 0; B must see it in turn 1,
	// while A itself must not have seen it during turn 0.
	var seenByA, seenByB bool
	terminate := domain.Terminate()
	toB := domain.ToParticipant("B")
	d, err := runtime.New(runtime.Config{
		Roster:  mustRoster(t, agent("A"), agent("B")),
		Initial: "A",
		Table: domain.RuleTable{
			"A": {Fallback: &toB},
			"B": {Fallback: &terminate},
		},
		Responders: map[string]ports.Responder{
			"A": ports.ResponderFunc(func(ctx context.Context, state *domain.State) (domain.Output, error) {
				_, seenByA = state.Get("x")
				return domain.Output{
					Text:      "writing",
					Directive: &domain.Directive{SetContext: map[string]any{"x": "set-by-A"}},
				}, nil
			}),
			"B": ports.ResponderFunc(func(ctx context.Context, state *domain.State) (domain.Output, error) {
				_, seenByB = state.Get("x")
				return domain.Output{Text: "reading"}, nil
			}),
		},
	})
	require.NoError(t, err)

	state, err := d.Start(context.Background(), "s1", nil)
	require.NoError(t, err)
	_, okBefore := state.Get("x")
	assert.False(t, okBefore, "key must be absent before turn 0")

	state, _ = drive(t, d, state)
	assert.False(t, seenByA, "writer must not see its own write during its turn")
	assert.True(t, seenByB, "write in turn N must be visible to turn N+1")
	v, ok := state.Get("x")
	require.True(t, ok)
	assert.Equal(t, "set-by-A", v)
}

func TestDispatcher_TerminationEvaluatorWinsOverRules(t *testing.T) {
	toB := domain.ToParticipant("B")
	d, err := runtime.New(runtime.Config{
		Roster:  mustRoster(t, agent("A"), agent("B")),
		Initial: "A",
		Table: domain.RuleTable{
			// Rule would match, but the evaluator fires first.
			"A": {Rules: []domain.Rule{{When: domain.Condition{Tag: "go"}, To: domain.ToParticipant("B")}}, Fallback: &toB},
		},
		Responders: map[string]ports.Responder{"A": say("go go go"), "B": say("b")},
	}, runtime.WithTerminationEvaluator(func(state *domain.State, output domain.Output) bool {
		return true
	}))
	require.NoError(t, err)

	state, err := d.Start(context.Background(), "s1", nil)
	require.NoError(t, err)

	state, next, err := d.Step(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, domain.StepTerminated, next.Kind)
	assert.Equal(t, domain.ReasonEvaluator, state.Reason)
	assert.Len(t, state.Turns, 1, "the triggering turn is recorded, nothing after")
}

func TestDispatcher_ManagerSequenceScenario(t *testing.T) {
	// Manager fallback selecting C, then D, then terminate.
	toManager := domain.ToManager()
	picks := []domain.Target{
		domain.ToParticipant("C"),
		domain.ToParticipant("D"),
		domain.Terminate(),
	}
	i := 0
	selector := ports.SelectorFunc(func(ctx context.Context, state *domain.State) (domain.Target, error) {
		pick := picks[i%len(picks)]
		i++
		return pick, nil
	})

	d, err := runtime.New(runtime.Config{
		Roster:  mustRoster(t, agent("A"), agent("C"), agent("D")),
		Initial: "A",
		Table: domain.RuleTable{
			"A": {Fallback: &toManager},
			"C": {Fallback: &toManager},
			"D": {Fallback: &toManager},
		},
		Responders: map[string]ports.Responder{
			"A": say("no rules match this"),
			"C": say("c speaking"),
			"D": say("d speaking"),
		},
	}, runtime.WithSelector(selector))
	require.NoError(t, err)

	state, err := d.Start(context.Background(), "s1", nil)
	require.NoError(t, err)

	state, next := drive(t, d, state)
	assert.Equal(t, domain.StepTerminated, next.Kind)
	assert.Equal(t, []string{"A", "C", "D"}, participants(state.Turns))
	assert.Equal(t, domain.ReasonHandoffTerminate, state.Reason)
}

func TestDispatcher_UnknownTargetFailsAtStart(t *testing.T) {
	_, err := runtime.New(runtime.Config{
		Roster:  mustRoster(t, agent("A")),
		Initial: "A",
		Table: domain.RuleTable{
			"A": {Rules: []domain.Rule{{When: domain.Condition{Tag: "x"}, To: domain.ToParticipant("ghost")}}},
		},
		Responders: map[string]ports.Responder{"A": say("a")},
	})
	require.Error(t, err)
	var cfgErr *domain.ConfigError
	assert.ErrorAs(t, err, &cfgErr, "unknown hand-off target must be a configuration error at start")
	assert.Contains(t, err.Error(), "ghost")
}

func TestDispatcher_ManagerInvalidSelectionFatal(t *testing.T) {
	toManager := domain.ToManager()
	selector := ports.SelectorFunc(func(ctx context.Context, state *domain.State) (domain.Target, error) {
		return domain.ToParticipant("nobody"), nil
	})
	d, err := runtime.New(runtime.Config{
		Roster:     mustRoster(t, agent("A")),
		Initial:    "A",
		Table:      domain.RuleTable{"A": {Fallback: &toManager}},
		Responders: map[string]ports.Responder{"A": say("a")},
	}, runtime.WithSelector(selector))
	require.NoError(t, err)

	state, err := d.Start(context.Background(), "s1", nil)
	require.NoError(t, err)

	state, next, err := d.Step(context.Background(), state)
	assert.ErrorIs(t, err, domain.ErrNoSelection)
	assert.Equal(t, domain.StepTerminated, next.Kind)
	assert.Equal(t, domain.StatusTerminated, state.Status)
	assert.Contains(t, state.Reason, "nobody")
}

func TestDispatcher_NoFallbackFatal(t *testing.T) {
	d, err := runtime.New(runtime.Config{
		Roster:     mustRoster(t, agent("A")),
		Initial:    "A",
		Table:      domain.RuleTable{"A": {Rules: []domain.Rule{{When: domain.Condition{Tag: "never"}, To: domain.Terminate()}}}},
		Responders: map[string]ports.Responder{"A": say("nothing matches")},
	})
	require.NoError(t, err)

	state, err := d.Start(context.Background(), "s1", nil)
	require.NoError(t, err)

	state, _, err = d.Step(context.Background(), state)
	assert.ErrorIs(t, err, domain.ErrNoFallback)
	assert.Equal(t, domain.StatusTerminated, state.Status)
}

func TestDispatcher_CancellationRecordsNoTurns(t *testing.T) {
	toSelf := domain.ToParticipant("A")
	d, err := runtime.New(runtime.Config{
		Roster:     mustRoster(t, agent("A")),
		Initial:    "A",
		Table:      domain.RuleTable{"A": {Fallback: &toSelf}},
		Responders: map[string]ports.Responder{"A": say("loop")},
	})
	require.NoError(t, err)

	state, err := d.Start(context.Background(), "s1", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	state, _, err = d.Step(ctx, state)
	require.NoError(t, err)
	require.Len(t, state.Turns, 1)

	cancel()
	state, next, err := d.Step(ctx, state)
	require.NoError(t, err)
	assert.Equal(t, domain.StepTerminated, next.Kind)
	assert.Equal(t, domain.ReasonCanceled, state.Reason)
	assert.Len(t, state.Turns, 1, "cancellation must record no further turns")
}

func TestDispatcher_MaxTurnsCutoff(t *testing.T) {
	toSelf := domain.ToParticipant("A")
	d, err := runtime.New(runtime.Config{
		Roster:     mustRoster(t, agent("A")),
		Initial:    "A",
		Table:      domain.RuleTable{"A": {Fallback: &toSelf}},
		Responders: map[string]ports.Responder{"A": say("again")},
	}, runtime.WithMaxTurns(3))
	require.NoError(t, err)

	state, err := d.Start(context.Background(), "s1", nil)
	require.NoError(t, err)

	state, next := drive(t, d, state)
	assert.Equal(t, domain.StepTerminated, next.Kind)
	assert.Equal(t, domain.ReasonMaxTurns, state.Reason)
	assert.Len(t, state.Turns, 3)
}

func TestDispatcher_StepAfterTerminatedIsAbsorbing(t *testing.T) {
	terminate := domain.Terminate()
	d, err := runtime.New(runtime.Config{
		Roster:     mustRoster(t, agent("A")),
		Initial:    "A",
		Table:      domain.RuleTable{"A": {Fallback: &terminate}},
		Responders: map[string]ports.Responder{"A": say("bye")},
	})
	require.NoError(t, err)

	state, err := d.Start(context.Background(), "s1", nil)
	require.NoError(t, err)
	state, _ = drive(t, d, state)
	require.Equal(t, domain.StatusTerminated, state.Status)

	again, next, err := d.Step(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, domain.StepTerminated, next.Kind)
	assert.Len(t, again.Turns, 1)

	_, _, err = d.SubmitInput(context.Background(), state, "hello?")
	assert.ErrorIs(t, err, domain.ErrSessionTerminated)
}

func TestDispatcher_HumanGate(t *testing.T) {
	toHuman := domain.ToHuman()
	terminate := domain.Terminate()
	toReview := domain.ToParticipant("reviewer")
	d, err := runtime.New(runtime.Config{
		Roster: mustRoster(t,
			agent("drafter"),
			agent("reviewer"),
			domain.Participant{Name: "operator", Role: domain.RoleHuman},
		),
		Initial: "drafter",
		Table: domain.RuleTable{
			"drafter":  {Fallback: &toHuman},
			"operator": {Fallback: &toReview},
			"reviewer": {Fallback: &terminate},
		},
		Responders: map[string]ports.Responder{
			"drafter":  say("draft ready"),
			"reviewer": say("approved"),
		},
	})
	require.NoError(t, err)

	state, err := d.Start(context.Background(), "s1", nil)
	require.NoError(t, err)

	state, next, err := d.Step(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, domain.StepAwaitInput, next.Kind)
	assert.Equal(t, "operator", next.Participant)
	assert.Equal(t, domain.StatusAwaitingInput, state.Status)

	// Stepping while gated stays gated; no turns are produced.
	repeat, next, err := d.Step(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, domain.StepAwaitInput, next.Kind)
	assert.Len(t, repeat.Turns, len(state.Turns))

	// Input out of gate order is rejected once terminated/running elsewhere.
	state, next, err = d.SubmitInput(context.Background(), state, "looks good, send to review")
	require.NoError(t, err)
	assert.Equal(t, domain.StepInvoke, next.Kind)
	assert.Equal(t, "reviewer", next.Participant)
	require.Len(t, state.Turns, 2)
	assert.Equal(t, "operator", state.Turns[1].Participant)
	assert.Equal(t, "looks good, send to review", state.Turns[1].Output.Text)

	state, final := drive(t, d, state)
	assert.Equal(t, domain.StepTerminated, final.Kind)
	assert.Equal(t, []string{"drafter", "operator", "reviewer"}, participants(state.Turns))
}

func TestDispatcher_HumanSkipSignalUsesAutoReply(t *testing.T) {
	toHuman := domain.ToHuman()
	terminate := domain.Terminate()
	d, err := runtime.New(runtime.Config{
		Roster: mustRoster(t,
			agent("drafter"),
			domain.Participant{Name: "operator", Role: domain.RoleHuman},
		),
		Initial: "drafter",
		Table: domain.RuleTable{
			"drafter":  {Fallback: &toHuman},
			"operator": {Fallback: &terminate},
		},
		Responders: map[string]ports.Responder{
			"drafter": say("draft ready"),
			// Auto-reply seam for the human proxy.
			"operator": say("auto-approved"),
		},
	})
	require.NoError(t, err)

	state, err := d.Start(context.Background(), "s1", nil)
	require.NoError(t, err)
	state, _, err = d.Step(context.Background(), state)
	require.NoError(t, err)

	state, _, err = d.SubmitInput(context.Background(), state, "")
	require.NoError(t, err)
	require.Len(t, state.Turns, 2)
	assert.Equal(t, "auto-approved", state.Turns[1].Output.Text)
}

func TestDispatcher_SubmitInputOutsideGate(t *testing.T) {
	toSelf := domain.ToParticipant("A")
	d, err := runtime.New(runtime.Config{
		Roster:     mustRoster(t, agent("A")),
		Initial:    "A",
		Table:      domain.RuleTable{"A": {Fallback: &toSelf}},
		Responders: map[string]ports.Responder{"A": say("a")},
	})
	require.NoError(t, err)

	state, err := d.Start(context.Background(), "s1", nil)
	require.NoError(t, err)

	_, _, err = d.SubmitInput(context.Background(), state, "unsolicited")
	assert.ErrorIs(t, err, domain.ErrNotAwaitingInput)
}

func TestDispatcher_ResponderFailureIsRoutable(t *testing.T) {
	// An external call failure becomes an error-payload turn; the fallback
	// decides what happens next instead of the session aborting.
	toRecovery := domain.ToParticipant("recovery")
	terminate := domain.Terminate()
	d, err := runtime.New(runtime.Config{
		Roster:  mustRoster(t, agent("flaky"), agent("recovery")),
		Initial: "flaky",
		Table: domain.RuleTable{
			"flaky":    {Fallback: &toRecovery},
			"recovery": {Fallback: &terminate},
		},
		Responders: map[string]ports.Responder{
			"flaky": ports.ResponderFunc(func(ctx context.Context, state *domain.State) (domain.Output, error) {
				return domain.Output{}, errors.New("upstream model unavailable")
			}),
			"recovery": say("took over"),
		},
	})
	require.NoError(t, err)

	state, err := d.Start(context.Background(), "s1", nil)
	require.NoError(t, err)

	state, next, err := d.Step(context.Background(), state)
	require.NoError(t, err, "responder failure must not abort the session")
	assert.Equal(t, domain.StepInvoke, next.Kind)
	assert.Equal(t, "recovery", next.Participant)
	require.Len(t, state.Turns, 1)
	assert.True(t, state.Turns[0].Output.IsError())
	assert.Contains(t, state.Turns[0].Output.Err, "upstream model unavailable")
}

func TestDispatcher_DirectivePrecedence(t *testing.T) {
	// An explicit directive overrides a matching rule.
	terminate := domain.Terminate()
	d, err := runtime.New(runtime.Config{
		Roster:  mustRoster(t, agent("A"), agent("B"), agent("C")),
		Initial: "A",
		Table: domain.RuleTable{
			"A": {Rules: []domain.Rule{{When: domain.Condition{Tag: "route"}, To: domain.ToParticipant("B")}}},
			"B": {Fallback: &terminate},
			"C": {Fallback: &terminate},
		},
		Responders: map[string]ports.Responder{
			"A": ports.ResponderFunc(func(ctx context.Context, state *domain.State) (domain.Output, error) {
				return domain.Output{Text: "route this", Directive: &domain.Directive{Next: "C"}}, nil
			}),
			"B": say("b"), "C": say("c"),
		},
	})
	require.NoError(t, err)

	state, err := d.Start(context.Background(), "s1", nil)
	require.NoError(t, err)

	_, next, err := d.Step(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, "C", next.Participant, "directive must take precedence over rules")
}

func TestDispatcher_DirectiveUnknownTargetFatal(t *testing.T) {
	toSelf := domain.ToParticipant("A")
	d, err := runtime.New(runtime.Config{
		Roster:  mustRoster(t, agent("A")),
		Initial: "A",
		Table:   domain.RuleTable{"A": {Fallback: &toSelf}},
		Responders: map[string]ports.Responder{
			"A": ports.ResponderFunc(func(ctx context.Context, state *domain.State) (domain.Output, error) {
				return domain.Output{Directive: &domain.Directive{Next: "phantom"}}, nil
			}),
		},
	})
	require.NoError(t, err)

	state, err := d.Start(context.Background(), "s1", nil)
	require.NoError(t, err)

	state, next, err := d.Step(context.Background(), state)
	require.Error(t, err)
	var cfgErr *domain.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
	assert.ErrorIs(t, err, domain.ErrUnknownTarget)
	assert.Equal(t, domain.StepTerminated, next.Kind)
	assert.Equal(t, domain.StatusTerminated, state.Status)
}

func TestDispatcher_DirectiveTerminate(t *testing.T) {
	toSelf := domain.ToParticipant("A")
	d, err := runtime.New(runtime.Config{
		Roster:  mustRoster(t, agent("A")),
		Initial: "A",
		Table:   domain.RuleTable{"A": {Fallback: &toSelf}},
		Responders: map[string]ports.Responder{
			"A": ports.ResponderFunc(func(ctx context.Context, state *domain.State) (domain.Output, error) {
				return domain.Output{Text: "all done", Directive: &domain.Directive{Terminate: true}}, nil
			}),
		},
	})
	require.NoError(t, err)

	state, err := d.Start(context.Background(), "s1", nil)
	require.NoError(t, err)

	state, next, err := d.Step(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, domain.StepTerminated, next.Kind)
	assert.Equal(t, domain.ReasonDirective, state.Reason)
}

type mapExecutor map[string]func(ctx context.Context, args map[string]any) (any, error)

func (m mapExecutor) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	fn, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return fn(ctx, args)
}

func TestDispatcher_ToolResultsFoldedBeforeRouting(t *testing.T) {
	terminate := domain.Terminate()
	d, err := runtime.New(runtime.Config{
		Roster:  mustRoster(t, agent("A")),
		Initial: "A",
		Table:   domain.RuleTable{"A": {Fallback: &terminate}},
		Responders: map[string]ports.Responder{
			"A": ports.ResponderFunc(func(ctx context.Context, state *domain.State) (domain.Output, error) {
				return domain.Output{
					Text: "checking inventory",
					ToolCalls: []domain.ToolCall{
						{ID: "t1", Name: "lookup", Args: map[string]any{"sku": "855"}},
						{ID: "t2", Name: "missing"},
					},
				}, nil
			}),
		},
	}, runtime.WithToolExecutor(mapExecutor{
		"lookup": func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"stock": 12}, nil
		},
	}))
	require.NoError(t, err)

	state, err := d.Start(context.Background(), "s1", nil)
	require.NoError(t, err)

	state, _, err = d.Step(context.Background(), state)
	require.NoError(t, err)
	require.Len(t, state.Turns, 1)

	results := state.Turns[0].Output.ToolResults
	require.Len(t, results, 2)
	assert.Equal(t, "t1", results[0].ID)
	assert.False(t, results[0].IsError)
	assert.True(t, results[1].IsError)
	assert.Contains(t, results[1].Error, "tool not found")
}

func TestDispatcher_HooksFire(t *testing.T) {
	var turns, handoffs, terminations int
	terminate := domain.Terminate()
	toB := domain.ToParticipant("B")
	d, err := runtime.New(runtime.Config{
		Roster:  mustRoster(t, agent("A"), agent("B")),
		Initial: "A",
		Table: domain.RuleTable{
			"A": {Fallback: &toB},
			"B": {Fallback: &terminate},
		},
		Responders: map[string]ports.Responder{"A": say("a"), "B": say("b")},
	}, runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnTurn:      func(ctx context.Context, e *domain.TurnEvent) { turns++ },
		OnHandoff:   func(ctx context.Context, e *domain.HandoffEvent) { handoffs++ },
		OnTerminate: func(ctx context.Context, e *domain.TerminationEvent) { terminations++ },
	}))
	require.NoError(t, err)

	state, err := d.Start(context.Background(), "s1", nil)
	require.NoError(t, err)
	drive(t, d, state)

	assert.Equal(t, 2, turns)
	assert.Equal(t, 1, handoffs)
	assert.Equal(t, 1, terminations)
}

func TestDispatcher_InitialContextSeeded(t *testing.T) {
	terminate := domain.Terminate()
	d, err := runtime.New(runtime.Config{
		Roster:     mustRoster(t, agent("A")),
		Initial:    "A",
		Table:      domain.RuleTable{"A": {Fallback: &terminate}},
		Responders: map[string]ports.Responder{"A": say("a")},
	})
	require.NoError(t, err)

	state, err := d.Start(context.Background(), "s1", map[string]any{"customer": "ada"})
	require.NoError(t, err)
	v, ok := state.Get("customer")
	require.True(t, ok)
	assert.Equal(t, "ada", v)
}

func TestDispatcher_ConfiguredSeedContext(t *testing.T) {
	terminate := domain.Terminate()
	d, err := runtime.New(runtime.Config{
		Roster:     mustRoster(t, agent("A")),
		Initial:    "A",
		Table:      domain.RuleTable{"A": {Fallback: &terminate}},
		Responders: map[string]ports.Responder{"A": say("a")},
	}, runtime.WithInitialContext(map[string]any{"tenant": "acme", "region": "eu"}))
	require.NoError(t, err)

	// The configured seed lands in every new session.
	state, err := d.Start(context.Background(), "s1", nil)
	require.NoError(t, err)
	tenant, ok := state.Get("tenant")
	require.True(t, ok)
	assert.Equal(t, "acme", tenant)

	// Per-session context overrides the seed key by key.
	state, err = d.Start(context.Background(), "s2", map[string]any{"region": "us"})
	require.NoError(t, err)
	region, _ := state.Get("region")
	assert.Equal(t, "us", region)
	tenant, _ = state.Get("tenant")
	assert.Equal(t, "acme", tenant)
}
