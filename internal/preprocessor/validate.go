package preprocessor

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"rgehrsitz/expert/internal/actions"
	"rgehrsitz/expert/internal/operators"
	"rgehrsitz/expert/internal/rules"
)

// ValidationError reports a structurally invalid rule.
type ValidationError struct {
	Rule  string
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s in rule '%s': %s", e.Field, e.Rule, e.Msg)
}

// ValidateRules checks the rules are well formed and that every operator and action
// type they reference is registered. It returns the first problem found.
func ValidateRules(rs []*rules.Rule, ops *operators.Registry, acts *actions.Registry) error {
	log.Info().Int("rules", len(rs)).Msg("Started validating rules...")
	seen := make(map[string]bool, len(rs))
	for _, rule := range rs {
		if err := validateRule(rule); err != nil {
			return err
		}
		if seen[rule.Name] {
			return &ValidationError{Rule: rule.Name, Field: "name", Msg: "duplicate rule name"}
		}
		seen[rule.Name] = true
		if err := rule.Validate(ops, acts); err != nil {
			return err
		}
	}
	return nil
}

func validateRule(rule *rules.Rule) error {
	if rule.Name == "" {
		return &ValidationError{Rule: rule.Name, Field: "name", Msg: "rule name cannot be empty"}
	}
	for i, cond := range rule.Conditions {
		if cond.Fact == "" {
			return &ValidationError{Rule: rule.Name, Field: "condition", Msg: fmt.Sprintf("missing 'fact' in condition %d", i)}
		}
		if cond.Operator == "" {
			return &ValidationError{Rule: rule.Name, Field: "condition", Msg: fmt.Sprintf("missing 'operator' in condition %d", i)}
		}
	}
	for i, action := range rule.Actions {
		if action.Type == "" {
			return &ValidationError{Rule: rule.Name, Field: "action", Msg: fmt.Sprintf("missing 'type' in action %d", i)}
		}
	}
	return nil
}
