// Package replay paces corrective replay jobs back into the live pipeline.
// Publishing is delegated to the caller; the emitter owns the cap, the rate,
// and the dead-letter buffer for failed handoffs.
package replay

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/adverge/pipeline/internal/observability"
	"github.com/adverge/pipeline/internal/schema"
	"github.com/adverge/pipeline/internal/telemetry"
)

// PublishFunc hands one job to the external queue layer.
type PublishFunc func(ctx context.Context, job schema.ReplayJob) error

// Emitter drives replay jobs through a publish function at a bounded rate.
type Emitter struct {
	publish PublishFunc
	limiter *rate.Limiter
	dlq     *DeadLetterBuffer
	metrics *telemetry.Metrics
	maxJobs int
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithRate caps emissions at jobsPerSecond. Zero or negative disables pacing.
func WithRate(jobsPerSecond float64) Option {
	return func(e *Emitter) {
		if jobsPerSecond > 0 {
			e.limiter = rate.NewLimiter(rate.Limit(jobsPerSecond), 1)
		}
	}
}

// WithMaxJobs caps the number of jobs emitted per run.
func WithMaxJobs(maxJobs int) Option {
	return func(e *Emitter) {
		e.maxJobs = maxJobs
	}
}

// WithMetrics attaches the pipeline instruments.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(e *Emitter) {
		e.metrics = metrics
	}
}

// DefaultMaxJobs bounds one emission run unless overridden.
const DefaultMaxJobs = 500

// NewEmitter constructs an emitter around the supplied publish function.
func NewEmitter(publish PublishFunc, opts ...Option) *Emitter {
	e := &Emitter{
		publish: publish,
		limiter: nil,
		dlq:     NewDeadLetterBuffer(DefaultMaxJobs),
		metrics: nil,
		maxJobs: DefaultMaxJobs,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Emit publishes up to the configured cap of jobs, pacing each handoff.
// Failed publishes land in the dead-letter buffer; Emit keeps going so one
// poisoned job cannot stall the batch. Returns the number published.
func (e *Emitter) Emit(ctx context.Context, jobs []schema.ReplayJob) (int, error) {
	capped := jobs
	if e.maxJobs > 0 && len(capped) > e.maxJobs {
		capped = capped[:e.maxJobs]
	}

	published := 0
	for _, job := range capped {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return published, err
			}
		} else if err := ctx.Err(); err != nil {
			return published, err
		}
		if err := e.publish(ctx, job); err != nil {
			observability.Log().Error("replay publish failed",
				observability.Field{Key: "replayJobId", Value: job.ReplayJobID},
				observability.Field{Key: "error", Value: err.Error()})
			e.dlq.Offer(job)
			continue
		}
		published++
		if e.metrics != nil {
			e.metrics.RecordReplayEmitted(ctx, job.ReplayMode)
		}
	}
	return published, nil
}

// DeadLettered drains jobs whose handoff failed.
func (e *Emitter) DeadLettered() []schema.ReplayJob {
	return e.dlq.Drain()
}
