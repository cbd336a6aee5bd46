// internal/admission/admission.go

// Package admission is a sample domain for the rule engine: it turns a student's scores
// into an admission probability, a status and a list of recommendations.
package admission

import (
	"rgehrsitz/expert/internal/actions"
	"rgehrsitz/expert/internal/operators"
	"rgehrsitz/expert/internal/runtime"
)

const (
	ActionSetResult         = "set_result"
	ActionAddRecommendation = "add_recommendation"
	ActionUpdateProbability = "update_probability"
)

// Result keys.
const (
	KeyProbability     = "probability"
	KeyStatus          = "status"
	KeyRecommendations = "recommendations"
)

const statusUnset = "N/A"

// NewResults returns the result state a session starts from.
func NewResults() map[string]interface{} {
	return map[string]interface{}{
		KeyProbability:     0,
		KeyStatus:          statusUnset,
		KeyRecommendations: []string{},
	}
}

type setResultParams struct {
	Probability    int    `param:"probability"`
	Status         string `param:"status"`
	Recommendation string `param:"recommendation"`
}

type addRecommendationParams struct {
	Recommendation string  `param:"recommendation"`
	Probability    *int    `param:"probability"`
	Status         *string `param:"status"`
}

type updateProbabilityParams struct {
	Delta int `param:"delta"`
}

// Register installs the admission action handlers.
func Register(registry *actions.Registry) {
	handler, validate := actions.Typed(setResult)
	registry.RegisterValidated(ActionSetResult, handler, validate)

	handler, validate = actions.Typed(addRecommendation)
	registry.RegisterValidated(ActionAddRecommendation, handler, validate)

	handler, validate = actions.Typed(updateProbability)
	registry.RegisterValidated(ActionUpdateProbability, handler, validate)
}

// Registries returns the built-in operators and a registry holding the admission handlers.
func Registries() (*operators.Registry, *actions.Registry) {
	acts := actions.NewRegistry()
	Register(acts)
	return operators.NewRegistry(), acts
}

// NewEngine builds an engine over fresh admission registries starting from the
// admission result state.
func NewEngine(opts ...runtime.Option) *runtime.Engine {
	ops, acts := Registries()
	opts = append([]runtime.Option{runtime.WithResults(NewResults)}, opts...)
	return runtime.New(ops, acts, opts...)
}

// setResult overwrites probability and status and appends the recommendation.
func setResult(ctx *actions.Context, p setResultParams) error {
	ctx.Results[KeyProbability] = p.Probability
	ctx.Results[KeyStatus] = p.Status
	appendRecommendation(ctx, p.Recommendation)
	return nil
}

// addRecommendation only ever raises the probability and only sets a status that is still unset.
func addRecommendation(ctx *actions.Context, p addRecommendationParams) error {
	if p.Probability != nil && *p.Probability > probability(ctx) {
		ctx.Results[KeyProbability] = *p.Probability
	}
	if p.Status != nil && *p.Status != "" && ctx.Results[KeyStatus] == statusUnset {
		ctx.Results[KeyStatus] = *p.Status
	}
	appendRecommendation(ctx, p.Recommendation)
	return nil
}

// updateProbability shifts the probability by delta, clamped to [0, 100].
func updateProbability(ctx *actions.Context, p updateProbabilityParams) error {
	next := probability(ctx) + p.Delta
	if next < 0 {
		next = 0
	}
	if next > 100 {
		next = 100
	}
	ctx.Results[KeyProbability] = next
	return nil
}

func probability(ctx *actions.Context) int {
	p, _ := ctx.Results[KeyProbability].(int)
	return p
}

func appendRecommendation(ctx *actions.Context, recommendation string) {
	recs, _ := ctx.Results[KeyRecommendations].([]string)
	ctx.Results[KeyRecommendations] = append(recs, recommendation)
	ctx.Logger.Debug().Str("rule", ctx.Rule).Str("recommendation", recommendation).Msg("Recommendation added")
}
