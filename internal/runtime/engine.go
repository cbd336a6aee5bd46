// internal/runtime/engine.go

package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mohae/deepcopy"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"rgehrsitz/expert/internal/actions"
	"rgehrsitz/expert/internal/facts"
	"rgehrsitz/expert/internal/operators"
	"rgehrsitz/expert/internal/rules"
)

// State is the lifecycle position of an evaluation session.
type State int

const (
	Idle State = iota
	Running
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrNotIdle is returned by Run when the session has already run and was not reset.
var ErrNotIdle = errors.New("engine is not idle")

// RuleError wraps a failure raised while a rule was being evaluated or executed.
type RuleError struct {
	Rule  string
	Index int
	Err   error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule '%s' (position %d): %v", e.Rule, e.Index, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

// Recorder observes evaluation passes.
type Recorder interface {
	RuleEvaluated(rule string)
	RuleFired(rule string)
	ConditionFailed(err *rules.EvaluationError)
	PassCompleted(fired int, elapsed time.Duration)
}

// Engine evaluates a rule set against the facts of one session. The registries may be
// shared between engines; the fact store, fired log and results belong to this engine.
type Engine struct {
	operators *operators.Registry
	actions   *actions.Registry
	rules     []*rules.Rule

	facts   *facts.Store
	fired   []string
	results map[string]interface{}
	state   State

	newResults  func() map[string]interface{}
	logger      zerolog.Logger
	diagnostics func(*rules.EvaluationError)
	recorder    Recorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for diagnostics and tracing.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithDiagnostics installs a sink receiving every condition whose operator failed.
func WithDiagnostics(sink func(*rules.EvaluationError)) Option {
	return func(e *Engine) { e.diagnostics = sink }
}

func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithResults sets the constructor of the initial result state, used at creation and on Reset.
func WithResults(newResults func() map[string]interface{}) Option {
	return func(e *Engine) { e.newResults = newResults }
}

// New creates an engine dispatching through the given registries.
func New(ops *operators.Registry, acts *actions.Registry, opts ...Option) *Engine {
	e := &Engine{
		operators:  ops,
		actions:    acts,
		facts:      facts.NewStore(),
		newResults: func() map[string]interface{} { return map[string]interface{}{} },
		logger:     log.Logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.results = e.newResults()
	return e
}

// Facts returns the session's fact store for population before a run.
func (e *Engine) Facts() *facts.Store {
	return e.facts
}

// AddRule validates r against the registries and appends a copy of it.
func (e *Engine) AddRule(r *rules.Rule) error {
	return e.AddRules(r)
}

// AddRules validates every rule before adding any, so a rule set with one bad
// reference is rejected as a whole.
func (e *Engine) AddRules(rs ...*rules.Rule) error {
	for _, r := range rs {
		if r == nil {
			return errors.New("nil rule")
		}
		if err := r.Validate(e.operators, e.actions); err != nil {
			return err
		}
	}
	for _, r := range rs {
		e.rules = append(e.rules, r.Clone())
	}
	return nil
}

// Rules returns copies of the registered rules in registration order.
func (e *Engine) Rules() []*rules.Rule {
	out := make([]*rules.Rule, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.Clone()
	}
	return out
}

// Run performs one evaluation pass. Rules fire in priority order, ties in registration
// order. Every rule is re-validated first so a registry change cannot leave the pass
// half done. The context is checked between rules.
func (e *Engine) Run(ctx context.Context) error {
	if e.state != Idle {
		return fmt.Errorf("%w: %s", ErrNotIdle, e.state)
	}
	for _, r := range e.rules {
		if err := r.Validate(e.operators, e.actions); err != nil {
			return err
		}
	}

	e.state = Running
	defer func() { e.state = Done }()
	start := time.Now()

	actx := &actions.Context{Facts: e.facts, Results: e.results, Logger: e.logger}
	for i, rule := range rules.Prioritize(e.rules) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.recorder != nil {
			e.recorder.RuleEvaluated(rule.Name)
		}

		ok, err := rule.Check(e.facts, e.operators, e.conditionFailed)
		if err != nil {
			return &RuleError{Rule: rule.Name, Index: i, Err: err}
		}
		if !ok {
			continue
		}

		e.fired = append(e.fired, rule.Name)
		e.logger.Debug().Str("rule", rule.Name).Int("priority", rule.Priority).Msg("Rule fired")
		if e.recorder != nil {
			e.recorder.RuleFired(rule.Name)
		}

		actx.Rule = rule.Name
		if err := rule.Execute(actx, e.actions); err != nil {
			return &RuleError{Rule: rule.Name, Index: i, Err: err}
		}
	}

	elapsed := time.Since(start)
	e.logger.Debug().Int("rules", len(e.rules)).Int("fired", len(e.fired)).Dur("elapsed", elapsed).Msg("Evaluation completed")
	if e.recorder != nil {
		e.recorder.PassCompleted(len(e.fired), elapsed)
	}
	return nil
}

func (e *Engine) conditionFailed(err *rules.EvaluationError) {
	e.logger.Warn().
		Str("fact", err.Fact).
		Str("operator", err.Operator).
		Interface("expected", err.Expected).
		Err(err.Err).
		Msg("Condition evaluation failed")
	if e.diagnostics != nil {
		e.diagnostics(err)
	}
	if e.recorder != nil {
		e.recorder.ConditionFailed(err)
	}
}

// FiredRules returns the names of the rules that fired, in firing order.
func (e *Engine) FiredRules() []string {
	return append([]string(nil), e.fired...)
}

// Results returns a deep copy of the accumulated result state.
func (e *Engine) Results() map[string]interface{} {
	return deepcopy.Copy(e.results).(map[string]interface{})
}

func (e *Engine) State() State {
	return e.state
}

// Report is the outcome of a pass as seen by the caller.
type Report struct {
	FiredRules []string               `json:"fired_rules"`
	Facts      map[string]interface{} `json:"facts"`
	Results    map[string]interface{} `json:"results"`
}

func (e *Engine) Report() Report {
	fired := e.FiredRules()
	if fired == nil {
		fired = []string{}
	}
	return Report{FiredRules: fired, Facts: e.facts.All(), Results: e.Results()}
}

// Reset clears facts, the fired log and results, returning the engine to Idle.
// Rules and registries are kept.
func (e *Engine) Reset() {
	e.facts.Clear()
	e.fired = nil
	e.results = e.newResults()
	e.state = Idle
}
