package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/batonlabs/baton/pkg/adapters/script"
	"github.com/batonlabs/baton/pkg/domain"
	"github.com/batonlabs/baton/pkg/ports"
	"github.com/batonlabs/baton/pkg/selector"
)

// Components is the routing configuration assembled from a flock file,
// ready to hand to the engine.
type Components struct {
	Roster     *domain.Roster
	Table      domain.RuleTable
	Responders map[string]ports.Responder
	Initial    string
	MaxTurns   int
	Context    map[string]any
	Selector   ports.Selector
}

// Load reads and parses a flock file from disk.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flock file: %w", err)
	}
	return Parse(data)
}

// Parse decodes flock YAML. The YAML is first unmarshaled into a generic
// map and then decoded through mapstructure, so the same DTOs serve YAML
// files and JSON request bodies.
func Parse(data []byte) (*File, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid flock yaml: %w", err)
	}

	var file File
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &file,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid flock file: %w", err)
	}
	return &file, nil
}

// Build assembles the routing components. Scripted participants get a
// script responder; participants without a script need a responder
// injected by the host before the engine is constructed.
func (f *File) Build() (*Components, error) {
	participants := make([]domain.Participant, 0, len(f.Participants))
	table := make(domain.RuleTable)
	responders := make(map[string]ports.Responder)

	for _, spec := range f.Participants {
		role, err := parseRole(spec.Role)
		if err != nil {
			return nil, &domain.ConfigError{Participant: spec.Name, Err: err}
		}
		caps, err := parseCapabilities(spec.Capabilities)
		if err != nil {
			return nil, &domain.ConfigError{Participant: spec.Name, Err: err}
		}
		participants = append(participants, domain.Participant{
			Name:         spec.Name,
			Role:         role,
			Capabilities: caps,
		})

		policy := domain.Policy{}
		for i, ruleSpec := range spec.Rules {
			target, err := parseTarget(ruleSpec.To)
			if err != nil {
				return nil, &domain.ConfigError{
					Participant: spec.Name,
					Detail:      fmt.Sprintf("rule %d", i),
					Err:         err,
				}
			}
			policy.Rules = append(policy.Rules, domain.Rule{
				When: domain.Condition{
					Tag:       ruleSpec.When.Tag,
					Expr:      ruleSpec.When.Expr,
					Predicate: ruleSpec.When.Predicate,
				},
				To: target,
			})
		}
		if spec.Fallback != "" {
			target, err := parseTarget(spec.Fallback)
			if err != nil {
				return nil, &domain.ConfigError{Participant: spec.Name, Detail: "fallback", Err: err}
			}
			policy.Fallback = &target
		}
		if len(policy.Rules) > 0 || policy.Fallback != nil {
			table[spec.Name] = policy
		}

		if len(spec.Script) > 0 {
			responders[spec.Name] = script.New(spec.Script...)
		}
	}

	roster, err := domain.NewRoster(participants...)
	if err != nil {
		return nil, err
	}

	components := &Components{
		Roster:     roster,
		Table:      table,
		Responders: responders,
		Initial:    f.Session.Initial,
		MaxTurns:   f.Session.MaxTurns,
		Context:    f.Session.Context,
	}

	if f.Manager != nil {
		sel, err := buildSelector(f.Manager)
		if err != nil {
			return nil, err
		}
		components.Selector = sel
	}

	return components, nil
}

func buildSelector(cfg *ManagerConfig) (ports.Selector, error) {
	switch cfg.Strategy {
	case "round_robin":
		if len(cfg.Targets) == 0 {
			return nil, &domain.ConfigError{Detail: "round_robin manager needs participant names"}
		}
		return selector.RoundRobin(cfg.Targets...), nil

	case "sequence":
		targets := make([]domain.Target, 0, len(cfg.Targets))
		for _, s := range cfg.Targets {
			target, err := parseTarget(s)
			if err != nil {
				return nil, &domain.ConfigError{Detail: "sequence manager", Err: err}
			}
			targets = append(targets, target)
		}
		return selector.Sequence(targets...), nil

	case "static":
		if len(cfg.Targets) != 1 {
			return nil, &domain.ConfigError{Detail: "static manager needs exactly one target"}
		}
		target, err := parseTarget(cfg.Targets[0])
		if err != nil {
			return nil, &domain.ConfigError{Detail: "static manager", Err: err}
		}
		return selector.Static(target), nil

	default:
		return nil, &domain.ConfigError{Detail: fmt.Sprintf("unknown manager strategy %q", cfg.Strategy)}
	}
}
