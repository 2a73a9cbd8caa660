package service

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/garyjia/approval-engine/service"

// engineMetrics are the decision and escalation counters
type engineMetrics struct {
	decisions   metric.Int64Counter
	fallbacks   metric.Int64Counter
	escalations metric.Int64Counter
	timeouts    metric.Int64Counter
}

// newEngineMetrics registers counters on the global meter provider.
// A counter that fails to register is replaced by a no-op.
func newEngineMetrics() *engineMetrics {
	meter := otel.Meter(meterName)
	fallback := noop.NewMeterProvider().Meter(meterName)

	counter := func(name, desc, unit string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		if err != nil {
			c, _ = fallback.Int64Counter(name)
		}
		return c
	}

	return &engineMetrics{
		decisions:   counter("approval.decisions", "Approval decisions by outcome", "{decision}"),
		fallbacks:   counter("approval.evaluation.fallbacks", "Evaluations that fell back to manual review", "{evaluation}"),
		escalations: counter("approval.escalations.initiated", "Escalation paths created", "{escalation}"),
		timeouts:    counter("approval.escalations.timeouts", "Escalation paths that timed out", "{escalation}"),
	}
}

func (m *engineMetrics) recordDecision(ctx context.Context, decision string, fallback bool) {
	m.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("decision", decision)))
	if fallback {
		m.fallbacks.Add(ctx, 1)
	}
}

func (m *engineMetrics) recordEscalation(ctx context.Context, level string, chained bool) {
	m.escalations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("level", level),
		attribute.Bool("chained", chained),
	))
}

func (m *engineMetrics) recordTimeout(ctx context.Context, level, outcome string) {
	m.timeouts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("level", level),
		attribute.String("outcome", outcome),
	))
}
