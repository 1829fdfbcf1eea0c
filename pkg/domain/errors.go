package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrUnknownTarget is returned when a hand-off resolves to a participant
// that is not registered. Fatal: directives and rules must target the roster.
var ErrUnknownTarget = errors.New("hand-off target not registered")

// ErrNoFallback is returned when no rule matches and the participant has no
// fallback policy. Fatal: the session terminates with this reason.
var ErrNoFallback = errors.New("no fallback policy defined")

// ErrNoSelection is returned when the orchestration manager picks a
// participant that is not registered. Fatal, never retried.
var ErrNoSelection = errors.New("selector returned unregistered participant")

// ErrSessionTerminated is returned when an operation targets a session that
// already reached its absorbing state.
var ErrSessionTerminated = errors.New("session already terminated")

// ErrNotAwaitingInput is returned when human input arrives outside the gate.
var ErrNotAwaitingInput = errors.New("session is not awaiting human input")

// ConfigError marks a malformed rule table, an unknown hand-off target or a
// broken condition expression. Surfaced at session start, never mid-run.
type ConfigError struct {
	Participant string
	Detail      string
	Err         error
}

func (e *ConfigError) Error() string {
	msg := "invalid configuration"
	if e.Participant != "" {
		msg = fmt.Sprintf("invalid configuration for participant %q", e.Participant)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }
