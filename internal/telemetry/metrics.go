package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/adverge/pipeline"

// Metrics bundles the counters emitted by the consistency core.
type Metrics struct {
	ingressVerdicts metric.Int64Counter
	reconcileDiffs  metric.Int64Counter
	replayEmitted   metric.Int64Counter
}

// NewMetrics registers the pipeline instruments against the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.GetMeterProvider().Meter(meterName)

	ingress, err := meter.Int64Counter("pipeline.ingress.verdicts",
		metric.WithDescription("Opportunity ingress verdicts by action and reason"))
	if err != nil {
		return nil, fmt.Errorf("register ingress counter: %w", err)
	}
	diffs, err := meter.Int64Counter("pipeline.reconcile.diffs",
		metric.WithDescription("Reconciliation discrepancies by reason code"))
	if err != nil {
		return nil, fmt.Errorf("register diff counter: %w", err)
	}
	replay, err := meter.Int64Counter("pipeline.replay.jobs_emitted",
		metric.WithDescription("Replay jobs handed to the queue layer"))
	if err != nil {
		return nil, fmt.Errorf("register replay counter: %w", err)
	}

	return &Metrics{ingressVerdicts: ingress, reconcileDiffs: diffs, replayEmitted: replay}, nil
}

// RecordIngressVerdict counts one createOpportunity outcome.
func (m *Metrics) RecordIngressVerdict(ctx context.Context, action, reason string) {
	if m == nil || m.ingressVerdicts == nil {
		return
	}
	m.ingressVerdicts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("reason", reason),
	))
}

// RecordDiff counts one reconciliation discrepancy.
func (m *Metrics) RecordDiff(ctx context.Context, reason string) {
	if m == nil || m.reconcileDiffs == nil {
		return
	}
	m.reconcileDiffs.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordReplayEmitted counts one replay job handed off.
func (m *Metrics) RecordReplayEmitted(ctx context.Context, mode string) {
	if m == nil || m.replayEmitted == nil {
		return
	}
	m.replayEmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}
