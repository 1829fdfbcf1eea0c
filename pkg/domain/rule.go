package domain

import "fmt"

// TargetKind discriminates hand-off destinations.
type TargetKind string

const (
	// TargetParticipant routes to a specific named participant.
	TargetParticipant TargetKind = "participant"
	// TargetHuman reverts control to the human proxy.
	TargetHuman TargetKind = "human"
	// TargetManager defers the decision to the orchestration manager.
	TargetManager TargetKind = "manager"
	// TargetTerminate ends the session.
	TargetTerminate TargetKind = "terminate"
)

// Target is the destination of a hand-off rule or fallback policy.
// Name is only set for TargetParticipant.
type Target struct {
	Kind TargetKind `json:"kind" yaml:"kind" mapstructure:"kind"`
	Name string     `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
}

// ToParticipant builds a participant target.
func ToParticipant(name string) Target { return Target{Kind: TargetParticipant, Name: name} }

// ToHuman builds a human-revert target.
func ToHuman() Target { return Target{Kind: TargetHuman} }

// ToManager builds a manager-deferral target.
func ToManager() Target { return Target{Kind: TargetManager} }

// Terminate builds a terminal target.
func Terminate() Target { return Target{Kind: TargetTerminate} }

func (t Target) String() string {
	if t.Kind == TargetParticipant {
		return fmt.Sprintf("participant(%s)", t.Name)
	}
	return string(t.Kind)
}

// Condition is the trigger of a hand-off rule. Exactly one field is set:
//
//   - Tag: static substring trigger matched against the latest output text.
//   - Expr: CEL expression over `output` (string) and `context` (map).
//   - Predicate: name of an externally supplied predicate, resolved through
//     the injected PredicateEvaluator.
type Condition struct {
	Tag       string `json:"tag,omitempty" yaml:"tag,omitempty" mapstructure:"tag"`
	Expr      string `json:"expr,omitempty" yaml:"expr,omitempty" mapstructure:"expr"`
	Predicate string `json:"predicate,omitempty" yaml:"predicate,omitempty" mapstructure:"predicate"`
}

// IsZero reports whether no trigger is configured.
func (c Condition) IsZero() bool {
	return c.Tag == "" && c.Expr == "" && c.Predicate == ""
}

// Rule maps a condition to a hand-off target.
// Rules belong to exactly one participant and evaluate in declaration order.
type Rule struct {
	When Condition `json:"when" yaml:"when" mapstructure:"when"`
	To   Target    `json:"to" yaml:"to" mapstructure:"to"`
}

// Policy is the routing configuration of a single participant: an ordered
// rule list plus the after-work fallback applied when no rule matches.
// A nil Fallback with a non-matching rule table is a fatal routing error.
type Policy struct {
	Rules    []Rule  `json:"rules,omitempty" yaml:"rules,omitempty" mapstructure:"rules"`
	Fallback *Target `json:"fallback,omitempty" yaml:"fallback,omitempty" mapstructure:"fallback"`
}

// RuleTable maps participant names to their routing policies.
// Participants without an entry rely entirely on directives or terminate.
type RuleTable map[string]Policy
