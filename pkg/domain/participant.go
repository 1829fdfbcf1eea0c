package domain

import "fmt"

// Role determines how the dispatcher treats a participant.
type Role string

const (
	// RoleAgent is a regular participant whose output comes from a Responder.
	RoleAgent Role = "agent"
	// RoleHuman is a human proxy; its turns arrive through the input gate.
	RoleHuman Role = "human"
	// RoleManager is the orchestration manager consulted by fallback policies.
	RoleManager Role = "manager"
)

// Capability describes what a participant is allowed to do during a session.
type Capability string

const (
	CapRespond     Capability = "respond"
	CapRequestTool Capability = "request_tool"
	CapHumanInput  Capability = "human_input"
)

// Participant is an addressable member of a session.
// Identity is immutable for the session lifetime.
type Participant struct {
	Name         string       `json:"name" yaml:"name" mapstructure:"name"`
	Role         Role         `json:"role" yaml:"role" mapstructure:"role"`
	Capabilities []Capability `json:"capabilities,omitempty" yaml:"capabilities,omitempty" mapstructure:"capabilities"`
}

// Can reports whether the participant holds the given capability.
// An empty capability set grants the defaults for the role.
func (p Participant) Can(c Capability) bool {
	if len(p.Capabilities) == 0 {
		switch c {
		case CapRespond:
			return p.Role == RoleAgent || p.Role == RoleManager
		case CapHumanInput:
			return p.Role == RoleHuman
		case CapRequestTool:
			return p.Role == RoleAgent
		}
		return false
	}
	for _, have := range p.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// Roster holds the set of addressable participants for a session.
// Registration order is preserved for deterministic iteration.
type Roster struct {
	order  []string
	byName map[string]Participant
}

// NewRoster builds a roster from the given participants.
// Names must be unique and non-empty.
func NewRoster(participants ...Participant) (*Roster, error) {
	r := &Roster{byName: make(map[string]Participant, len(participants))}
	for _, p := range participants {
		if p.Name == "" {
			return nil, &ConfigError{Detail: "participant with empty name"}
		}
		if _, dup := r.byName[p.Name]; dup {
			return nil, &ConfigError{Participant: p.Name, Detail: "duplicate participant name"}
		}
		if p.Role == "" {
			p.Role = RoleAgent
		}
		r.byName[p.Name] = p
		r.order = append(r.order, p.Name)
	}
	return r, nil
}

// Get returns the participant by name.
func (r *Roster) Get(name string) (Participant, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// Has reports whether a participant is registered.
func (r *Roster) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Names returns participant names in registration order.
func (r *Roster) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Human returns the first registered human proxy, if any.
// Used to resolve TargetHuman hand-offs that do not name a participant.
func (r *Roster) Human() (Participant, bool) {
	for _, name := range r.order {
		if p := r.byName[name]; p.Role == RoleHuman {
			return p, true
		}
	}
	return Participant{}, false
}

// Len returns the number of registered participants.
func (r *Roster) Len() int { return len(r.order) }

func (r *Roster) String() string {
	return fmt.Sprintf("Roster(%d participants)", len(r.order))
}
