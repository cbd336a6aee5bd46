package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rgehrsitz/expert/internal/actions"
	"rgehrsitz/expert/internal/operators"
	"rgehrsitz/expert/internal/rules"
)

func newTestEngine(opts ...Option) *Engine {
	acts := actions.NewRegistry()
	acts.Register("record", func(ctx *actions.Context, p actions.Params) error {
		log, _ := ctx.Results["log"].([]string)
		ctx.Results["log"] = append(log, p["tag"].(string))
		return nil
	})
	acts.Register("fail", func(*actions.Context, actions.Params) error {
		return errors.New("handler exploded")
	})
	opts = append([]Option{WithLogger(zerolog.Nop())}, opts...)
	return New(operators.NewRegistry(), acts, opts...)
}

func record(tag string) rules.Action {
	return rules.Action{Type: "record", Parameters: actions.Params{"tag": tag}}
}

func TestRunFiresByPriorityThenRegistrationOrder(t *testing.T) {
	e := newTestEngine()
	require.NoError(t, e.AddRules(
		&rules.Rule{Name: "low", Priority: 5, Actions: []rules.Action{record("low")}},
		&rules.Rule{Name: "tie-a", Priority: 7, Actions: []rules.Action{record("tie-a")}},
		&rules.Rule{Name: "high", Priority: 10, Actions: []rules.Action{record("high")}},
		&rules.Rule{Name: "tie-b", Priority: 7, Actions: []rules.Action{record("tie-b")}},
	))

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, []string{"high", "tie-a", "tie-b", "low"}, e.FiredRules())
	assert.Equal(t, []string{"high", "tie-a", "tie-b", "low"}, e.Results()["log"])
	assert.Equal(t, Done, e.State())
}

func TestRunHigherPriorityFiresFirstEvenWhenDeclaredSecond(t *testing.T) {
	e := newTestEngine()
	e.Facts().Update(map[string]interface{}{"score": 80})
	require.NoError(t, e.AddRules(
		&rules.Rule{Name: "five", Priority: 5, Conditions: []rules.Condition{{Fact: "score", Operator: "gte", Value: 50}}},
		&rules.Rule{Name: "ten", Priority: 10, Conditions: []rules.Condition{{Fact: "score", Operator: "gte", Value: 70}}},
	))
	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, []string{"ten", "five"}, e.FiredRules())
}

func TestRunSkipsUnsatisfiedAndMissingFacts(t *testing.T) {
	e := newTestEngine()
	e.Facts().Update(map[string]interface{}{"score": 40})
	require.NoError(t, e.AddRules(
		&rules.Rule{Name: "passes", Conditions: []rules.Condition{{Fact: "score", Operator: "gte", Value: 50}}},
		&rules.Rule{Name: "missing", Conditions: []rules.Condition{{Fact: "absent", Operator: "neq", Value: 1}}},
		&rules.Rule{Name: "unconditional"},
	))
	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, []string{"unconditional"}, e.FiredRules())
}

func TestRunIsolatesOperatorFailures(t *testing.T) {
	var reported []*rules.EvaluationError
	e := newTestEngine(WithDiagnostics(func(err *rules.EvaluationError) { reported = append(reported, err) }))
	e.Facts().Update(map[string]interface{}{"score": "n/a", "grade": 9})
	require.NoError(t, e.AddRules(
		&rules.Rule{Name: "bad", Priority: 2, Conditions: []rules.Condition{{Fact: "score", Operator: "lt", Value: 10}}},
		&rules.Rule{Name: "good", Priority: 1, Conditions: []rules.Condition{{Fact: "grade", Operator: "between", Value: []interface{}{5, 10}}}},
	))

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, []string{"good"}, e.FiredRules())
	require.Len(t, reported, 1)
	assert.Equal(t, "score", reported[0].Fact)
	assert.Equal(t, "lt", reported[0].Operator)
	assert.Equal(t, 10, reported[0].Expected)
}

func TestAddRulesRejectsUnknownOperatorAsAWhole(t *testing.T) {
	e := newTestEngine()
	e.Facts().Set("score", 90, true)
	err := e.AddRules(
		&rules.Rule{Name: "fine", Actions: []rules.Action{record("fine")}},
		&rules.Rule{Name: "broken", Conditions: []rules.Condition{{Fact: "score", Operator: "unknown_op", Value: 1}}},
	)
	var unknown *operators.UnknownOperatorError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "unknown_op", unknown.Name)
	assert.Empty(t, e.Rules())

	require.NoError(t, e.Run(context.Background()))
	assert.Empty(t, e.FiredRules())
}

func TestAddRulesRejectsUnknownActionType(t *testing.T) {
	e := newTestEngine()
	err := e.AddRule(&rules.Rule{Name: "r", Actions: []rules.Action{{Type: "launch"}}})
	var unknown *actions.UnknownActionTypeError
	assert.True(t, errors.As(err, &unknown))
}

func TestRunPropagatesHandlerErrors(t *testing.T) {
	e := newTestEngine()
	require.NoError(t, e.AddRules(
		&rules.Rule{Name: "first", Priority: 2, Actions: []rules.Action{record("first")}},
		&rules.Rule{Name: "explodes", Priority: 1, Actions: []rules.Action{{Type: "fail"}}},
		&rules.Rule{Name: "never", Actions: []rules.Action{record("never")}},
	))

	err := e.Run(context.Background())
	var ruleErr *RuleError
	require.True(t, errors.As(err, &ruleErr))
	assert.Equal(t, "explodes", ruleErr.Rule)
	assert.Equal(t, 1, ruleErr.Index)
	assert.Equal(t, []string{"first", "explodes"}, e.FiredRules())
	assert.Equal(t, []string{"first"}, e.Results()["log"])
}

func TestRunHonoursCancellation(t *testing.T) {
	e := newTestEngine()
	require.NoError(t, e.AddRule(&rules.Rule{Name: "r"}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, e.Run(ctx), context.Canceled)
	assert.Empty(t, e.FiredRules())
}

func TestRunTwiceRequiresReset(t *testing.T) {
	e := newTestEngine()
	require.NoError(t, e.Run(context.Background()))
	assert.ErrorIs(t, e.Run(context.Background()), ErrNotIdle)
}

func TestResetIsIdempotentAndMatchesFreshEngine(t *testing.T) {
	build := func() *Engine {
		e := newTestEngine(WithResults(func() map[string]interface{} {
			return map[string]interface{}{"log": []string{}}
		}))
		require.NoError(t, e.AddRules(
			&rules.Rule{Name: "pass", Conditions: []rules.Condition{{Fact: "score", Operator: "gte", Value: 50}}, Actions: []rules.Action{record("pass")}},
			&rules.Rule{Name: "fail", Conditions: []rules.Condition{{Fact: "score", Operator: "lt", Value: 50}}, Actions: []rules.Action{record("fail")}},
		))
		return e
	}

	reused := build()
	reused.Facts().Set("score", 80, true)
	require.NoError(t, reused.Run(context.Background()))
	assert.Equal(t, []string{"pass"}, reused.FiredRules())

	reused.Reset()
	reused.Reset()
	assert.Equal(t, Idle, reused.State())
	assert.Zero(t, reused.Facts().Len())
	assert.Empty(t, reused.FiredRules())
	assert.Equal(t, map[string]interface{}{"log": []string{}}, reused.Results())

	fresh := build()
	for _, e := range []*Engine{reused, fresh} {
		e.Facts().Set("score", 20, true)
		require.NoError(t, e.Run(context.Background()))
	}
	assert.Equal(t, fresh.Report(), reused.Report())
	assert.Equal(t, []string{"fail"}, reused.FiredRules())
}

func TestActionsCannotMutateFactsOrRules(t *testing.T) {
	e := newTestEngine()
	e.Facts().Set("tags", []interface{}{"a"}, true)
	rule := &rules.Rule{Name: "r", Actions: []rules.Action{record("x")}}
	require.NoError(t, e.AddRule(rule))
	rule.Name = "renamed"

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, []string{"r"}, e.FiredRules())

	report := e.Report()
	report.Facts["tags"].([]interface{})[0] = "changed"
	report.Results["log"] = nil
	assert.Equal(t, []interface{}{"a"}, e.Facts().Get("tags", nil))
	assert.Equal(t, []string{"x"}, e.Results()["log"])
}

type countingRecorder struct {
	evaluated, fired, failed int
	passes                   int
}

func (c *countingRecorder) RuleEvaluated(string) { c.evaluated++ }
func (c *countingRecorder) RuleFired(string) { c.fired++ }
func (c *countingRecorder) ConditionFailed(*rules.EvaluationError) { c.failed++ }
func (c *countingRecorder) PassCompleted(int, time.Duration) { c.passes++ }

func TestRecorderObservesPass(t *testing.T) {
	rec := &countingRecorder{}
	e := newTestEngine(WithRecorder(rec))
	e.Facts().Set("score", "bad", true)
	require.NoError(t, e.AddRules(
		&rules.Rule{Name: "a"},
		&rules.Rule{Name: "b", Conditions: []rules.Condition{{Fact: "score", Operator: "gt", Value: 1}}},
	))
	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, &countingRecorder{evaluated: 2, fired: 1, failed: 1, passes: 1}, rec)
}

func TestSessionsShareRegistriesConcurrently(t *testing.T) {
	ops := operators.NewRegistry()
	acts := actions.NewRegistry()
	acts.Register("mark", func(ctx *actions.Context, _ actions.Params) error {
		ctx.Results["marked"] = ctx.Facts.Get("id", nil)
		return nil
	})
	rule := &rules.Rule{Name: "mark", Conditions: []rules.Condition{{Fact: "id", Operator: "gte", Value: 0}}, Actions: []rules.Action{{Type: "mark"}}}

	var wg sync.WaitGroup
	results := make([]interface{}, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := New(ops, acts, WithLogger(zerolog.Nop()))
			if err := e.AddRule(rule); err != nil {
				return
			}
			e.Facts().Set("id", i, true)
			if err := e.Run(context.Background()); err != nil {
				return
			}
			results[i] = e.Results()["marked"]
		}(i)
	}
	wg.Wait()
	for i, got := range results {
		assert.Equal(t, i, got)
	}
}
