// Package metrics exposes evaluation passes as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"rgehrsitz/expert/internal/rules"
)

// Collector records engine activity. It satisfies runtime.Recorder.
type Collector struct {
	evaluated         prometheus.Counter
	fired             *prometheus.CounterVec
	conditionFailures *prometheus.CounterVec
	passDuration      prometheus.Histogram
}

// NewCollector creates the collectors and registers them with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		evaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rex_rules_evaluated_total",
			Help: "Total number of rule evaluations",
		}),
		fired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rex_rules_fired_total",
			Help: "Total number of rule firings",
		}, []string{"rule"}),
		conditionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rex_condition_failures_total",
			Help: "Conditions whose operator failed on the supplied values",
		}, []string{"operator"}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rex_pass_duration_seconds",
			Help:    "Duration of evaluation passes",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}
	for _, collector := range []prometheus.Collector{c.evaluated, c.fired, c.conditionFailures, c.passDuration} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) RuleEvaluated(string) {
	c.evaluated.Inc()
}

func (c *Collector) RuleFired(rule string) {
	c.fired.WithLabelValues(rule).Inc()
}

func (c *Collector) ConditionFailed(err *rules.EvaluationError) {
	c.conditionFailures.WithLabelValues(err.Operator).Inc()
}

func (c *Collector) PassCompleted(_ int, elapsed time.Duration) {
	c.passDuration.Observe(elapsed.Seconds())
}
