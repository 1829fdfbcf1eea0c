// Package middleware wraps StateStore adapters with cross-cutting
// persistence behavior: encryption at rest and context redaction.
package middleware

import "github.com/batonlabs/baton/pkg/ports"

// Middleware allows wrapping a StateStore to add behavior.
type Middleware func(ports.StateStore) ports.StateStore

// Chain applies middlewares to a store, outermost first.
func Chain(store ports.StateStore, middlewares ...Middleware) ports.StateStore {
	for i := len(middlewares) - 1; i >= 0; i-- {
		store = middlewares[i](store)
	}
	return store
}
