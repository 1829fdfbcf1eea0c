package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/batonlabs/baton/pkg/domain"
)

// exprProgram is a compiled CEL condition.
type exprProgram struct {
	source  string
	program cel.Program
}

func ruleKey(owner string, idx int) string {
	return fmt.Sprintf("%s/%d", owner, idx)
}

// newConditionEnv builds the CEL environment shared by all rule expressions.
// Expressions see `output` (the latest output text) and `context` (the
// shared context store).
func newConditionEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("output", cel.StringType),
		cel.Variable("context", cel.MapType(cel.StringType, cel.DynType)),
	)
}

// compileTable compiles every Expr condition in the rule table up front so
// malformed expressions surface as configuration errors at session start.
func compileTable(table domain.RuleTable) (map[string]exprProgram, error) {
	programs := make(map[string]exprProgram)

	env, err := newConditionEnv()
	if err != nil {
		return nil, fmt.Errorf("cel environment: %w", err)
	}

	for owner, policy := range table {
		for i, rule := range policy.Rules {
			if rule.When.Expr == "" {
				continue
			}
			ast, issues := env.Compile(rule.When.Expr)
			if issues != nil && issues.Err() != nil {
				return nil, &domain.ConfigError{
					Participant: owner,
					Detail:      fmt.Sprintf("rule %d condition %q", i, rule.When.Expr),
					Err:         issues.Err(),
				}
			}
			prg, err := env.Program(ast)
			if err != nil {
				return nil, &domain.ConfigError{
					Participant: owner,
					Detail:      fmt.Sprintf("rule %d condition %q", i, rule.When.Expr),
					Err:         err,
				}
			}
			programs[ruleKey(owner, i)] = exprProgram{source: rule.When.Expr, program: prg}
		}
	}
	return programs, nil
}

// match evaluates a single condition against the latest output and context.
// Evaluation errors are treated as non-matches; routing stays declarative.
func (d *Dispatcher) match(ctx context.Context, owner string, idx int, cond domain.Condition, state *domain.State, output domain.Output) bool {
	switch {
	case cond.Tag != "":
		return strings.Contains(output.Text, cond.Tag)

	case cond.Expr != "":
		entry, ok := d.programs[ruleKey(owner, idx)]
		if !ok {
			return false
		}
		val, _, err := entry.program.Eval(map[string]any{
			"output":  output.Text,
			"context": state.Context,
		})
		if err != nil {
			d.logger.Debug("condition evaluation failed",
				"session_id", state.SessionID,
				"participant", owner,
				"expr", entry.source,
				"err", err,
			)
			return false
		}
		matched, ok := val.Value().(bool)
		return ok && matched

	case cond.Predicate != "":
		if d.predicates == nil {
			return false
		}
		matched, err := d.predicates.Evaluate(ctx, cond.Predicate, state, output)
		if err != nil {
			d.logger.Debug("predicate evaluation failed",
				"session_id", state.SessionID,
				"participant", owner,
				"predicate", cond.Predicate,
				"err", err,
			)
			return false
		}
		return matched
	}
	return false
}
