package runtime

import (
	"fmt"

	"github.com/batonlabs/baton/pkg/domain"
)

// validate checks the full routing configuration. Everything that can be
// rejected statically is rejected here so sessions never hit a
// configuration error mid-run.
func (d *Dispatcher) validate() error {
	if d.roster == nil || d.roster.Len() == 0 {
		return &domain.ConfigError{Detail: "empty roster"}
	}
	if d.initial == "" {
		return &domain.ConfigError{Detail: "no initial participant"}
	}
	if !d.roster.Has(d.initial) {
		return &domain.ConfigError{Detail: fmt.Sprintf("initial participant %q is not registered", d.initial)}
	}

	needsHuman := false
	needsManager := false

	for owner, policy := range d.table {
		if !d.roster.Has(owner) {
			return &domain.ConfigError{Participant: owner, Detail: "rule table entry for unregistered participant"}
		}
		for i, rule := range policy.Rules {
			if err := d.checkCondition(owner, i, rule.When); err != nil {
				return err
			}
			kind, err := d.checkTarget(owner, fmt.Sprintf("rule %d", i), rule.To)
			if err != nil {
				return err
			}
			needsHuman = needsHuman || kind == domain.TargetHuman
			needsManager = needsManager || kind == domain.TargetManager
		}
		if policy.Fallback != nil {
			kind, err := d.checkTarget(owner, "fallback", *policy.Fallback)
			if err != nil {
				return err
			}
			needsHuman = needsHuman || kind == domain.TargetHuman
			needsManager = needsManager || kind == domain.TargetManager
		}
	}

	if needsHuman {
		if _, ok := d.roster.Human(); !ok {
			return &domain.ConfigError{Detail: "human target used but no human proxy registered"}
		}
	}
	if needsManager && d.selector == nil {
		return &domain.ConfigError{Detail: "manager target used but no selector configured"}
	}

	// Every agent participant must have a driver; human auto-reply is optional.
	for _, name := range d.roster.Names() {
		p, _ := d.roster.Get(name)
		if p.Role != domain.RoleAgent {
			continue
		}
		if _, ok := d.responders[name]; !ok {
			return &domain.ConfigError{Participant: name, Detail: "no responder registered"}
		}
	}

	return nil
}

func (d *Dispatcher) checkCondition(owner string, idx int, cond domain.Condition) error {
	set := 0
	if cond.Tag != "" {
		set++
	}
	if cond.Expr != "" {
		set++
	}
	if cond.Predicate != "" {
		set++
	}
	if set == 0 {
		return &domain.ConfigError{Participant: owner, Detail: fmt.Sprintf("rule %d has no condition", idx)}
	}
	if set > 1 {
		return &domain.ConfigError{Participant: owner, Detail: fmt.Sprintf("rule %d has multiple conditions", idx)}
	}
	if cond.Predicate != "" && d.predicates == nil {
		return &domain.ConfigError{Participant: owner, Detail: fmt.Sprintf("rule %d uses predicate %q but no predicate evaluator is configured", idx, cond.Predicate)}
	}
	return nil
}

func (d *Dispatcher) checkTarget(owner, where string, target domain.Target) (domain.TargetKind, error) {
	switch target.Kind {
	case domain.TargetParticipant:
		if target.Name == "" {
			return target.Kind, &domain.ConfigError{Participant: owner, Detail: where + " targets participant with empty name"}
		}
		if !d.roster.Has(target.Name) {
			return target.Kind, &domain.ConfigError{Participant: owner, Detail: fmt.Sprintf("%s targets unknown participant %q", where, target.Name)}
		}
	case domain.TargetHuman, domain.TargetManager, domain.TargetTerminate:
		// Structural targets; cross-checked against roster/selector by caller.
	default:
		return target.Kind, &domain.ConfigError{Participant: owner, Detail: fmt.Sprintf("%s has unknown target kind %q", where, target.Kind)}
	}
	return target.Kind, nil
}
