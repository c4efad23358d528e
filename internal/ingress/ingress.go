// Package ingress implements the idempotent opportunity creation decision for
// stage A. The component is a pure decision function over an injected
// idempotency store; it holds no mutable state of its own and is safe to call
// from any number of goroutines.
package ingress

import (
	"context"
	"errors"

	"github.com/adverge/pipeline/errs"
	"github.com/adverge/pipeline/internal/identity"
	"github.com/adverge/pipeline/internal/observability"
	"github.com/adverge/pipeline/internal/schema"
	"github.com/adverge/pipeline/internal/store"
	"github.com/adverge/pipeline/internal/telemetry"
)

// Input is one inbound trigger presented to createOpportunity.
type Input struct {
	OpportunityKey    string             `json:"opportunityKey,omitempty"`
	RequestKey        string             `json:"requestKey,omitempty"`
	DedupState        schema.DedupState  `json:"dedupState,omitempty"`
	Timestamps        schema.Timestamps  `json:"timestamps"`
	ImpSeeds          []schema.ImpSeed   `json:"impSeed,omitempty"`
	TraceInit         *schema.TraceInit  `json:"traceInit,omitempty"`
	PreviousTraceInit *schema.TraceInit  `json:"previousTraceInit,omitempty"`
	SchemaVersion     string             `json:"schemaVersion,omitempty"`
	ContractVersion   string             `json:"createOpportunityContractVersion,omitempty"`
}

// Result is the createOpportunity verdict. Opportunity and Handoff are nil on
// rejection.
type Result struct {
	CreateAccepted bool                      `json:"createAccepted"`
	CreateAction   schema.CreateAction       `json:"createAction"`
	ResultState    string                    `json:"resultState,omitempty"`
	ErrorAction    schema.ErrorAction        `json:"errorAction,omitempty"`
	Reason         schema.ReasonCode         `json:"reasonCode,omitempty"`
	TraceInit      schema.TraceInit          `json:"traceInit"`
	Opportunity    *schema.Opportunity       `json:"opportunityRef,omitempty"`
	Handoff        *schema.HandoffPacketLite `json:"handoffPacketLite,omitempty"`
}

// Component binds the ingress decision to its injected collaborators.
type Component struct {
	store   store.OpportunityStore
	ids     identity.Generator
	metrics *telemetry.Metrics
}

// Option configures a Component.
type Option func(*Component)

// WithMetrics attaches the pipeline instruments.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(c *Component) {
		c.metrics = metrics
	}
}

// New constructs an ingress component over the supplied store and generator.
func New(st store.OpportunityStore, ids identity.Generator, opts ...Option) (*Component, error) {
	if st == nil {
		return nil, errs.New("ingress", errs.CodeInvalid, errs.WithMessage("opportunity store required"))
	}
	if ids == nil {
		return nil, errs.New("ingress", errs.CodeInvalid, errs.WithMessage("id generator required"))
	}
	c := &Component{store: st, ids: ids, metrics: nil}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// CreateOpportunity applies the stage-A decision rules. Validation failures and
// duplicate verdicts are normal results; the returned error reports store
// faults only.
func (c *Component) CreateOpportunity(ctx context.Context, in Input) (Result, error) {
	if rejected, result := c.validate(in); rejected {
		c.count(ctx, result)
		return result, nil
	}

	// Dedup lookup runs before any identifier is minted so a duplicate call
	// never burns fresh keys.
	if in.OpportunityKey != "" {
		existing, found, err := c.store.Get(ctx, in.OpportunityKey)
		if err != nil {
			return Result{}, errs.New("ingress", errs.CodeStore,
				errs.WithMessage("dedup lookup"), errs.WithCause(err),
				errs.WithField("opportunityKey", in.OpportunityKey))
		}
		if found {
			result := duplicateResult(existing)
			c.count(ctx, result)
			return result, nil
		}
	}

	opp := c.mint(in)
	if err := c.store.PutIfAbsent(ctx, opp); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			// Lost the conditional insert to a concurrent caller. Re-reading
			// and answering duplicate_noop keeps this function safe to retry
			// verbatim.
			existing, found, getErr := c.store.Get(ctx, opp.OpportunityKey)
			if getErr != nil || !found {
				return Result{}, errs.New("ingress", errs.CodeConflict,
					errs.WithMessage("re-read after duplicate key"), errs.WithCause(getErr),
					errs.WithField("opportunityKey", opp.OpportunityKey))
			}
			result := duplicateResult(existing)
			c.count(ctx, result)
			return result, nil
		}
		return Result{}, errs.New("ingress", errs.CodeStore,
			errs.WithMessage("persist opportunity"), errs.WithCause(err),
			errs.WithField("opportunityKey", opp.OpportunityKey))
	}

	observability.Log().Debug("opportunity created",
		observability.Field{Key: "opportunityKey", Value: opp.OpportunityKey},
		observability.Field{Key: "traceKey", Value: opp.TraceInit.TraceKey},
		observability.Field{Key: "dedupState", Value: string(opp.DedupState)})

	result := Result{
		CreateAccepted: true,
		CreateAction:   schema.ActionCreated,
		ResultState:    schema.StateReceived,
		TraceInit:      opp.TraceInit,
		Opportunity:    &opp,
		Handoff: &schema.HandoffPacketLite{
			RequestKey:     opp.TraceInit.RequestKey,
			OpportunityKey: opp.OpportunityKey,
			TraceInit:      opp.TraceInit,
		},
	}
	c.count(ctx, result)
	return result, nil
}

// validate applies the ordered input checks; the first failure wins.
func (c *Component) validate(in Input) (bool, Result) {
	if !in.Timestamps.Ordered() {
		return true, rejection(schema.ReasonTimestampOrderInvalid)
	}
	if in.TraceInit != nil && !in.TraceInit.Zero() && in.TraceInit.RequestKey != in.RequestKey {
		return true, rejection(schema.ReasonTraceRequestMismatch)
	}
	return false, Result{}
}

// mint assembles the new opportunity row, generating whichever identifiers the
// caller did not supply. expired_retry reuses the prior traceKey so the
// logical lineage survives the fresh attempt.
func (c *Component) mint(in Input) schema.Opportunity {
	var trace schema.TraceInit
	dedup := in.DedupState
	if dedup == "" {
		dedup = schema.DedupNew
	}

	switch {
	case in.TraceInit != nil && !in.TraceInit.Zero():
		trace = *in.TraceInit
	case dedup == schema.DedupExpiredRetry && in.PreviousTraceInit != nil && in.PreviousTraceInit.TraceKey != "":
		trace = schema.TraceInit{
			TraceKey:   in.PreviousTraceInit.TraceKey,
			RequestKey: c.ids.RequestKey(),
			AttemptKey: c.ids.AttemptKey(),
		}
	default:
		requestKey := in.RequestKey
		if requestKey == "" {
			requestKey = c.ids.RequestKey()
		}
		trace = schema.TraceInit{
			TraceKey:   c.ids.TraceKey(),
			RequestKey: requestKey,
			AttemptKey: c.ids.AttemptKey(),
		}
	}

	key := in.OpportunityKey
	if key == "" {
		key = c.ids.OpportunityKey()
	}

	return schema.Opportunity{
		OpportunityKey: key,
		State:          schema.StateReceived,
		DedupState:     dedup,
		Timestamps:     in.Timestamps,
		ImpSeeds:       in.ImpSeeds,
		TraceInit:      trace,
		SchemaVersion:  in.SchemaVersion,
	}
}

// duplicateResult answers an idempotent no-op with the original record's
// lineage unchanged. No new identifiers are minted. The returned copy is
// marked duplicate so callers see the collision verdict; the stored row keeps
// the dedup state it was created with.
func duplicateResult(existing schema.Opportunity) Result {
	existing.DedupState = schema.DedupDuplicate
	return Result{
		CreateAccepted: true,
		CreateAction:   schema.ActionDuplicateNoop,
		ResultState:    existing.State,
		Reason:         schema.ReasonDuplicateOpportunityKey,
		TraceInit:      existing.TraceInit,
		Opportunity:    &existing,
		Handoff: &schema.HandoffPacketLite{
			RequestKey:     existing.TraceInit.RequestKey,
			OpportunityKey: existing.OpportunityKey,
			TraceInit:      existing.TraceInit,
		},
	}
}

// rejection builds a caller-fixable validation failure.
func rejection(reason schema.ReasonCode) Result {
	return Result{
		CreateAccepted: false,
		CreateAction:   schema.ActionNone,
		ErrorAction:    schema.ErrorActionAllow,
		Reason:         reason,
	}
}

func (c *Component) count(ctx context.Context, result Result) {
	if c.metrics == nil {
		return
	}
	action := string(result.CreateAction)
	if action == "" {
		action = "rejected"
	}
	c.metrics.RecordIngressVerdict(ctx, action, string(result.Reason))
}
