package domain

import "time"

// Status defines the session-level state machine.
// Terminated is absorbing.
type Status string

const (
	StatusInit          Status = "init"
	StatusRunning       Status = "running"
	StatusAwaitingInput Status = "awaiting_input"
	StatusTerminated    Status = "terminated"
)

// Well-known termination reasons recorded in State.Reason.
const (
	ReasonHandoffTerminate = "handoff_terminate"
	ReasonDirective        = "directive_terminate"
	ReasonEvaluator        = "termination_evaluator"
	ReasonMaxTurns         = "max_turns_exceeded"
	ReasonCanceled         = "canceled"
)

// State is the current snapshot of a session: transcript, shared context
// store and routing position. One participant is current at any time.
type State struct {
	// SessionID identifies the session across persistence and transports.
	SessionID string `json:"session_id"`

	// Current is the participant that acts next (or is being awaited).
	Current string `json:"current"`

	// Status indicates whether the session is running, gated on human input,
	// or terminated.
	Status Status `json:"status"`

	// Turns is the append-only transcript.
	Turns []Turn `json:"turns"`

	// Context is the shared mutable store visible to all participants.
	// Writes land between turns; turns are strictly sequential, so no
	// arbitration is needed within a session.
	Context map[string]any `json:"context"`

	// Reason records why the session terminated (empty while alive).
	Reason string `json:"reason,omitempty"`
}

// NewState creates a clean session positioned at the initial participant.
func NewState(sessionID, initial string) *State {
	return &State{
		SessionID: sessionID,
		Current:   initial,
		Status:    StatusInit,
		Context:   make(map[string]any),
	}
}

// Get reads a key from the shared context store.
func (s *State) Get(key string) (any, bool) {
	v, ok := s.Context[key]
	return v, ok
}

// Set writes a key into the shared context store. Last write wins.
func (s *State) Set(key string, value any) {
	if s.Context == nil {
		s.Context = make(map[string]any)
	}
	s.Context[key] = value
}

// LastTurn returns the most recent transcript entry, or nil for a fresh
// session.
func (s *State) LastTurn() *Turn {
	if len(s.Turns) == 0 {
		return nil
	}
	return &s.Turns[len(s.Turns)-1]
}

// Terminated reports whether the session reached its absorbing state.
func (s *State) Terminated() bool { return s.Status == StatusTerminated }

// Clone returns a copy safe for mutation: the context map is deep-copied and
// the transcript slice re-sliced so appends do not alias the source.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	next := *s
	next.Context = make(map[string]any, len(s.Context))
	for k, v := range s.Context {
		next.Context[k] = v
	}
	next.Turns = make([]Turn, len(s.Turns))
	copy(next.Turns, s.Turns)
	return &next
}

// AppendTurn records an output for the given participant, assigning the next
// contiguous index.
func (s *State) AppendTurn(participant string, output Output) Turn {
	turn := Turn{
		Index:       len(s.Turns),
		Participant: participant,
		Output:      output,
		At:          time.Now().UTC(),
	}
	s.Turns = append(s.Turns, turn)
	return turn
}

// StepKind is the dispatcher verdict after a turn.
type StepKind string

const (
	// StepInvoke means the named participant should produce the next turn.
	StepInvoke StepKind = "invoke"
	// StepAwaitInput means the session is gated on human input.
	StepAwaitInput StepKind = "await_input"
	// StepTerminated means the session reached its absorbing state.
	StepTerminated StepKind = "terminated"
)

// NextStep is the outcome of a dispatcher advance.
type NextStep struct {
	Kind        StepKind `json:"kind"`
	Participant string   `json:"participant,omitempty"`
}
