package runner_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/batonlabs/baton"
	"github.com/batonlabs/baton/pkg/adapters/memory"
	"github.com/batonlabs/baton/pkg/adapters/script"
	"github.com/batonlabs/baton/pkg/domain"
	"github.com/batonlabs/baton/pkg/ports"
	"github.com/batonlabs/baton/pkg/runner"
)

func newOrchestrator(t *testing.T) *baton.Orchestrator {
	t.Helper()
	roster, err := domain.NewRoster(
		domain.Participant{Name: "drafter", Role: domain.RoleAgent},
		domain.Participant{Name: "operator", Role: domain.RoleHuman},
		domain.Participant{Name: "publisher", Role: domain.RoleAgent},
	)
	require.NoError(t, err)

	toHuman := domain.ToHuman()
	toPublisher := domain.ToParticipant("publisher")
	terminate := domain.Terminate()
	orch, err := baton.New(baton.Config{
		Roster:  roster,
		Initial: "drafter",
		Table: domain.RuleTable{
			"drafter":   {Fallback: &toHuman},
			"operator":  {Fallback: &toPublisher},
			"publisher": {Fallback: &terminate},
		},
		Responders: map[string]ports.Responder{
			"drafter":   script.New(script.Line{Text: "draft ready"}),
			"publisher": script.New(script.Line{Text: "published"}),
		},
	})
	require.NoError(t, err)
	return orch
}

func TestRunner_InteractiveSession(t *testing.T) {
	orch := newOrchestrator(t)
	store := memory.NewStore()

	out := &bytes.Buffer{}
	r := &runner.Runner{
		Input:  strings.NewReader("looks good\n"),
		Output: out,
		Store:  store,
	}

	require.NoError(t, r.Run(orch, nil, "run-1"))

	output := out.String()
	assert.Contains(t, output, "[drafter] draft ready")
	assert.Contains(t, output, "[operator] looks good")
	assert.Contains(t, output, "[publisher] published")
	assert.Contains(t, output, "session terminated")

	// State persisted after the final advance.
	state, err := store.Load(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTerminated, state.Status)
	assert.Len(t, state.Turns, 3)
}

func TestRunner_QuitAtGate(t *testing.T) {
	orch := newOrchestrator(t)

	out := &bytes.Buffer{}
	r := &runner.Runner{
		Input:  strings.NewReader("quit\n"),
		Output: out,
	}

	require.NoError(t, r.Run(orch, nil, "run-2"))
	assert.Contains(t, out.String(), "[drafter] draft ready")
	assert.NotContains(t, out.String(), "published")
}

func TestRunner_EOFEndsSession(t *testing.T) {
	orch := newOrchestrator(t)

	out := &bytes.Buffer{}
	r := &runner.Runner{
		Input:  strings.NewReader(""),
		Output: out,
	}

	require.NoError(t, r.Run(orch, nil, "run-3"))
	assert.Contains(t, out.String(), "[drafter] draft ready")
}

func TestRunner_ResumesExistingState(t *testing.T) {
	orch := newOrchestrator(t)
	ctx := context.Background()

	// Advance to the gate outside the runner, then hand the state over.
	state, err := orch.Start(ctx, "run-4", nil)
	require.NoError(t, err)
	state, next, err := orch.Step(ctx, state)
	require.NoError(t, err)
	require.Equal(t, domain.StepAwaitInput, next.Kind)

	out := &bytes.Buffer{}
	r := &runner.Runner{
		Input:  strings.NewReader("approved\n"),
		Output: out,
	}

	require.NoError(t, r.Run(orch, state, "run-4"))
	output := out.String()
	// The pre-gate turn was already surfaced elsewhere; only new turns print.
	assert.NotContains(t, output, "[drafter]")
	assert.Contains(t, output, "[operator] approved")
	assert.Contains(t, output, "[publisher] published")
}

func TestRunner_SanitizesInteractiveInput(t *testing.T) {
	orch := newOrchestrator(t)
	store := memory.NewStore()

	out := &bytes.Buffer{}
	r := &runner.Runner{
		Input:  strings.NewReader("ship \x1b[31mit\x07\n"),
		Output: out,
		Store:  store,
	}

	require.NoError(t, r.Run(orch, nil, "run-5"))

	// Control characters are stripped before the input reaches the session.
	state, err := store.Load(context.Background(), "run-5")
	require.NoError(t, err)
	require.Len(t, state.Turns, 3)
	assert.Equal(t, "ship [31mit", state.Turns[1].Output.Text)
}

func TestTextHandler_RetriesRejectedInput(t *testing.T) {
	t.Setenv(runner.EnvMaxInputSize, "10")

	out := &bytes.Buffer{}
	h := runner.NewTextHandler(strings.NewReader("far too long for the limit\nok\n"), out)

	text, err := h.Input(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Contains(t, out.String(), "try again")
}
