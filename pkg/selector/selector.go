// Package selector provides ready-made orchestration-manager strategies.
// A selector is consulted when routing delegates the hand-off decision
// instead of resolving it from the rule table.
package selector

import (
	"context"
	"sync"

	"github.com/batonlabs/baton/pkg/domain"
	"github.com/batonlabs/baton/pkg/ports"
)

// Static always selects the same target.
func Static(target domain.Target) ports.Selector {
	return ports.SelectorFunc(func(ctx context.Context, state *domain.State) (domain.Target, error) {
		return target, nil
	})
}

// Sequence yields the given targets in order, one per consultation, and
// terminates the session once they are exhausted. Useful for scripted
// orchestration and tests.
func Sequence(targets ...domain.Target) ports.Selector {
	var mu sync.Mutex
	i := 0
	return ports.SelectorFunc(func(ctx context.Context, state *domain.State) (domain.Target, error) {
		mu.Lock()
		defer mu.Unlock()
		if i >= len(targets) {
			return domain.Terminate(), nil
		}
		target := targets[i]
		i++
		return target, nil
	})
}

// RoundRobin cycles through the given participant names. The pick is derived
// from the session state, not from selector memory: the participant after
// the current one in ring order acts next, so concurrent sessions sharing
// one selector stay independent and replays stay deterministic.
func RoundRobin(names ...string) ports.Selector {
	return ports.SelectorFunc(func(ctx context.Context, state *domain.State) (domain.Target, error) {
		if len(names) == 0 {
			return domain.Target{}, domain.ErrNoSelection
		}
		for i, name := range names {
			if name == state.Current {
				return domain.ToParticipant(names[(i+1)%len(names)]), nil
			}
		}
		return domain.ToParticipant(names[0]), nil
	})
}
