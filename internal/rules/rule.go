// internal/rules/rule.go

package rules

import (
	"errors"
	"fmt"

	"github.com/mohae/deepcopy"

	"rgehrsitz/expert/internal/actions"
	"rgehrsitz/expert/internal/facts"
	"rgehrsitz/expert/internal/operators"
)

// Rule is a prioritised conjunction of conditions with the actions to run when all of them hold.
type Rule struct {
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Priority    int         `json:"priority" yaml:"priority"`
	Conditions  []Condition `json:"conditions" yaml:"conditions"`
	Actions     []Action    `json:"actions" yaml:"actions"`
}

// Action names a handler and the parameters it is called with.
type Action struct {
	Type       string         `json:"type" yaml:"type"`
	Parameters actions.Params `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Execute runs the action's handler with a private copy of its parameters.
func (a Action) Execute(ctx *actions.Context, registry *actions.Registry) error {
	handler, err := registry.Get(a.Type)
	if err != nil {
		return err
	}
	params, _ := deepcopy.Copy(a.Parameters).(actions.Params)
	if params == nil {
		params = actions.Params{}
	}
	return handler(ctx, params)
}

// Check evaluates the conditions in order and stops at the first one that does not hold.
// Operator failures are passed to onFailure, if set, and count as unsatisfied. A rule
// without conditions always holds.
func (r *Rule) Check(store facts.Reader, ops *operators.Registry, onFailure func(*EvaluationError)) (bool, error) {
	for _, cond := range r.Conditions {
		ok, err := cond.Evaluate(store, ops)
		if err != nil {
			var evalErr *EvaluationError
			if !errors.As(err, &evalErr) {
				return false, err
			}
			if onFailure != nil {
				onFailure(evalErr)
			}
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Execute runs the actions in declared order and stops at the first handler error.
func (r *Rule) Execute(ctx *actions.Context, registry *actions.Registry) error {
	for i, action := range r.Actions {
		if err := action.Execute(ctx, registry); err != nil {
			return fmt.Errorf("action %d (%s): %w", i, action.Type, err)
		}
	}
	return nil
}

// Validate checks that every operator and action type the rule references is registered
// and that action parameters satisfy their handler's validator.
func (r *Rule) Validate(ops *operators.Registry, acts *actions.Registry) error {
	for _, cond := range r.Conditions {
		if !ops.Has(cond.Operator) {
			return fmt.Errorf("rule '%s': %w", r.Name, &operators.UnknownOperatorError{Name: cond.Operator})
		}
	}
	for _, action := range r.Actions {
		if err := acts.Validate(action.Type, action.Parameters); err != nil {
			return fmt.Errorf("rule '%s': %w", r.Name, err)
		}
	}
	return nil
}

// Clone returns a deep copy so callers holding the original cannot change a registered rule.
func (r *Rule) Clone() *Rule {
	return deepcopy.Copy(r).(*Rule)
}
