// internal/rules/condition.go

package rules

import (
	"errors"
	"fmt"

	"rgehrsitz/expert/internal/facts"
	"rgehrsitz/expert/internal/operators"
)

// Condition tests one fact against an operator and an expected value.
type Condition struct {
	Fact     string      `json:"fact" yaml:"fact"`
	Operator string      `json:"operator" yaml:"operator"`
	Value    interface{} `json:"value" yaml:"value"`
}

// EvaluationError records an operator that failed on the values it was given.
// It never aborts a pass: the condition counts as unsatisfied.
type EvaluationError struct {
	Fact     string
	Operator string
	Expected interface{}
	Err      error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("error evaluating condition %s %s %v: %v", e.Fact, e.Operator, e.Expected, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// Evaluate reports whether the condition holds for the facts in store. A missing fact
// is unsatisfied whatever the operator. An unregistered operator is returned as
// *operators.UnknownOperatorError; an operator failure yields false together with an
// *EvaluationError.
func (c Condition) Evaluate(store facts.Reader, ops *operators.Registry) (bool, error) {
	value, ok := store.Lookup(c.Fact)
	if !ok {
		return false, nil
	}
	result, err := ops.Apply(c.Operator, value, c.Value)
	if err != nil {
		var unknown *operators.UnknownOperatorError
		if errors.As(err, &unknown) {
			return false, err
		}
		return false, &EvaluationError{Fact: c.Fact, Operator: c.Operator, Expected: c.Value, Err: err}
	}
	return result, nil
}
