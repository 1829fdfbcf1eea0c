// Package domain contains the pure data model of the Baton router:
// participants, hand-off rules, turns, session state and the error taxonomy.
// It has no dependencies on adapters or the runtime and is safe to embed in
// host applications.
package domain
