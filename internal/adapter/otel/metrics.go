package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "greenlight"

// Metrics holds all greenlight metric instruments.
type Metrics struct {
	ActionsSubmitted  metric.Int64Counter
	AutoApproved      metric.Int64Counter
	Approved          metric.Int64Counter
	Denied            metric.Int64Counter
	Timeouts          metric.Int64Counter
	Deferred          metric.Int64Counter
	AlertFailures     metric.Int64Counter
	ExecutionFailures metric.Int64Counter
	DecisionDuration  metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.ActionsSubmitted, err = meter.Int64Counter("greenlight.actions.submitted",
		metric.WithDescription("Number of actions submitted for a decision"))
	if err != nil {
		return nil, err
	}

	m.AutoApproved, err = meter.Int64Counter("greenlight.decisions.auto_approved",
		metric.WithDescription("Number of actions auto-approved without human review"))
	if err != nil {
		return nil, err
	}

	m.Approved, err = meter.Int64Counter("greenlight.decisions.approved",
		metric.WithDescription("Number of actions approved by a human"))
	if err != nil {
		return nil, err
	}

	m.Denied, err = meter.Int64Counter("greenlight.decisions.denied",
		metric.WithDescription("Number of actions denied by a human"))
	if err != nil {
		return nil, err
	}

	m.Timeouts, err = meter.Int64Counter("greenlight.decisions.timeouts",
		metric.WithDescription("Number of requests expired without a response"))
	if err != nil {
		return nil, err
	}

	m.Deferred, err = meter.Int64Counter("greenlight.decisions.deferred",
		metric.WithDescription("Number of defer responses"))
	if err != nil {
		return nil, err
	}

	m.AlertFailures, err = meter.Int64Counter("greenlight.alerts.failures",
		metric.WithDescription("Number of failed alert deliveries"))
	if err != nil {
		return nil, err
	}

	m.ExecutionFailures, err = meter.Int64Counter("greenlight.executions.failures",
		metric.WithDescription("Number of approved actions that failed to execute"))
	if err != nil {
		return nil, err
	}

	m.DecisionDuration, err = meter.Float64Histogram("greenlight.decision.duration_seconds",
		metric.WithDescription("Time from submission to terminal decision in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
