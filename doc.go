/*
Package baton is a conversation-routing engine for multi-agent swarms.

It decides who speaks next. After every participant turn, the engine
evaluates that participant's hand-off rules against the turn output and the
shared context, falling back to a declared policy or an orchestration
manager when no rule matches. Humans join the conversation through an
explicit input gate, and the whole session state is a plain value that can
be persisted and resumed anywhere.

# Concept

A swarm is a roster of participants plus a rule table. The engine itself is
stateless: session state travels through the Step and SubmitInput calls, so
one engine serves any number of concurrent sessions and the host decides
where state lives (in memory, Redis, or behind an HTTP API).

# Key Features

  - Deterministic routing: rules match in declaration order; given the same
    output and context the hand-off is always reproducible.
  - Hexagonal architecture: participant drivers, storage, tools and the
    manager strategy are all ports the host implements or picks off the shelf.
  - Durable sessions: state round-trips through JSON, enabling stop-and-resume
    across processes and replicas.
  - Fail-fast configuration: unknown targets and malformed rule expressions
    are rejected when the orchestrator is built, never mid-session.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/batonlabs/baton"
		"github.com/batonlabs/baton/pkg/domain"
	)

	func main() {
		roster, err := domain.NewRoster(
			domain.Participant{Name: "triage", Role: domain.RoleAgent},
			domain.Participant{Name: "billing", Role: domain.RoleAgent},
		)
		if err != nil {
			log.Fatal(err)
		}

		terminate := domain.Terminate()
		orch, err := baton.New(baton.Config{
			Roster:  roster,
			Initial: "triage",
			Table: domain.RuleTable{
				"triage": {Rules: []domain.Rule{
					{When: domain.Condition{Tag: "BILLING"}, To: domain.ToParticipant("billing")},
				}, Fallback: &terminate},
				"billing": {Fallback: &terminate},
			},
			Responders: myResponders(), // one driver per agent
		})
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		state, err := orch.Start(ctx, "session-123", nil)
		if err != nil {
			log.Fatal(err)
		}

		state, next, err := orch.Run(ctx, state)
		if err != nil {
			log.Fatal(err)
		}
		log.Println("session settled:", next.Kind, state.Reason)
	}
*/
package baton
