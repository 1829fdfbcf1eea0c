package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventTurnRecorded EventType = "turn_recorded"
	EventHandoff      EventType = "handoff"
	EventInputGate    EventType = "input_gate"
	EventTerminated   EventType = "terminated"
)

// HandoffVia records which mechanism selected the next participant.
type HandoffVia string

const (
	ViaDirective HandoffVia = "directive"
	ViaRule      HandoffVia = "rule"
	ViaFallback  HandoffVia = "fallback"
	ViaManager   HandoffVia = "manager"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// TurnEvent is emitted after a turn is appended to the transcript.
type TurnEvent struct {
	EventBase
	Index       int    `json:"index"`
	Participant string `json:"participant"`
	IsError     bool   `json:"is_error,omitempty"`
}

// HandoffEvent is emitted when control transfers between participants.
type HandoffEvent struct {
	EventBase
	From string     `json:"from"`
	To   string     `json:"to"`
	Via  HandoffVia `json:"via"`
}

// GateEvent is emitted when the session suspends on the human-input gate.
type GateEvent struct {
	EventBase
	Participant string `json:"participant"`
}

// TerminationEvent is emitted once when a session reaches its absorbing state.
type TerminationEvent struct {
	EventBase
	Reason string `json:"reason"`
	Turns  int    `json:"turns"`
}

// LifecycleHooks defines callbacks for dispatcher observability.
// All hooks are optional and must not mutate the session.
type LifecycleHooks struct {
	OnTurn      func(context.Context, *TurnEvent)
	OnHandoff   func(context.Context, *HandoffEvent)
	OnGate      func(context.Context, *GateEvent)
	OnTerminate func(context.Context, *TerminationEvent)
}
