// Package config loads flock files: declarative YAML descriptions of a
// swarm (participants, hand-off rules, fallbacks, scripted drivers and the
// manager strategy) that assemble into a runnable routing configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/batonlabs/baton/pkg/adapters/script"
	"github.com/batonlabs/baton/pkg/domain"
)

// File is the root of a flock file. It uses "mapstructure" tags so the same
// DTO decodes from YAML files and from JSON request bodies.
type File struct {
	Version      int               `json:"version" mapstructure:"version"`
	Session      SessionConfig     `json:"session" mapstructure:"session"`
	Manager      *ManagerConfig    `json:"manager,omitempty" mapstructure:"manager"`
	Participants []ParticipantSpec `json:"participants" mapstructure:"participants"`
}

// SessionConfig carries session-level settings.
type SessionConfig struct {
	// Initial names the participant that acts first.
	Initial string `json:"initial" mapstructure:"initial"`
	// MaxTurns caps the transcript length. Zero means unlimited.
	MaxTurns int `json:"max_turns" mapstructure:"max_turns"`
	// Context seeds the shared context store.
	Context map[string]any `json:"context,omitempty" mapstructure:"context"`
}

// ManagerConfig selects the orchestration-manager strategy.
type ManagerConfig struct {
	// Strategy is one of "round_robin", "sequence" or "static".
	Strategy string `json:"strategy" mapstructure:"strategy"`
	// Targets parameterize the strategy: participant names for round_robin,
	// target strings for sequence, a single target string for static.
	Targets []string `json:"targets" mapstructure:"targets"`
}

// ParticipantSpec declares one swarm member.
type ParticipantSpec struct {
	Name         string        `json:"name" mapstructure:"name"`
	Role         string        `json:"role" mapstructure:"role"`
	Capabilities []string      `json:"capabilities,omitempty" mapstructure:"capabilities"`
	Script       []script.Line `json:"script,omitempty" mapstructure:"script"`
	Rules        []RuleSpec    `json:"rules,omitempty" mapstructure:"rules"`
	// Fallback is a target string ("billing", "human", "manager", "terminate").
	Fallback string `json:"fallback,omitempty" mapstructure:"fallback"`
}

// RuleSpec declares one hand-off rule.
type RuleSpec struct {
	When ConditionSpec `json:"when" mapstructure:"when"`
	To   string        `json:"to" mapstructure:"to"`
}

// ConditionSpec mirrors domain.Condition; exactly one field may be set.
type ConditionSpec struct {
	Tag       string `json:"tag,omitempty" mapstructure:"tag"`
	Expr      string `json:"expr,omitempty" mapstructure:"expr"`
	Predicate string `json:"predicate,omitempty" mapstructure:"predicate"`
}

// parseTarget resolves the target string syntax. The reserved words
// "human", "manager" and "terminate" name structural targets; anything
// else is a participant name.
func parseTarget(s string) (domain.Target, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return domain.Target{}, fmt.Errorf("empty target")
	case "human":
		return domain.ToHuman(), nil
	case "manager":
		return domain.ToManager(), nil
	case "terminate":
		return domain.Terminate(), nil
	default:
		return domain.ToParticipant(strings.TrimSpace(s)), nil
	}
}

func parseRole(s string) (domain.Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "agent":
		return domain.RoleAgent, nil
	case "human":
		return domain.RoleHuman, nil
	case "manager":
		return domain.RoleManager, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

func parseCapabilities(names []string) ([]domain.Capability, error) {
	if len(names) == 0 {
		return nil, nil
	}
	caps := make([]domain.Capability, 0, len(names))
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "respond":
			caps = append(caps, domain.CapRespond)
		case "request_tool":
			caps = append(caps, domain.CapRequestTool)
		case "human_input":
			caps = append(caps, domain.CapHumanInput)
		default:
			return nil, fmt.Errorf("unknown capability %q", name)
		}
	}
	return caps, nil
}
