// Package ports defines the interfaces between the Baton core and its
// collaborators: participant drivers, orchestration-manager selectors,
// termination evaluators, tool executors and persistence stores.
// Adapters implement these; the runtime consumes them.
package ports
