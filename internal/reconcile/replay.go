package reconcile

import (
	"time"

	"github.com/adverge/pipeline/internal/identity"
	"github.com/adverge/pipeline/internal/schema"
)

// Replay modes. Deterministic replays reproduce the original decision
// bit-for-bit against the pinned version anchor, which is what makes them
// safe to run against a live system without double-billing.
const (
	ReplayModeDeterministic = "deterministic"
	ReplayModeLive          = "live"
)

// Query modes picked from the diff's available join keys.
const (
	QueryByRenderAttempt = "by_render_attempt"
	QueryByRecordKey     = "by_record_key"
)

// ReplayOptions configures one job construction. Zero values select the
// defaults: deterministic mode, a fresh random job id, wall-clock CreatedAt.
type ReplayOptions struct {
	ReplayMode  string
	ReplayJobID string
	IDs         identity.Generator
	Now         func() time.Time
}

// BuildReplayRequest turns one diff into a replay job, copying the diff's
// join keys verbatim into the query payload.
func BuildReplayRequest(diff schema.Diff, opts ReplayOptions) schema.ReplayJob {
	mode := opts.ReplayMode
	if mode == "" {
		mode = ReplayModeDeterministic
	}
	jobID := opts.ReplayJobID
	if jobID == "" {
		ids := opts.IDs
		if ids == nil {
			ids = identity.NewRandom()
		}
		jobID = ids.ReplayJobID()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	query := schema.ReplayQuery{
		RecordKey:                diff.RecordKey,
		VersionAnchorSnapshotRef: diff.VersionAnchorSnapshotRef,
		AnchorHash:               diff.AnchorHash,
	}
	for _, side := range []*schema.FactRecord{diff.Archive, diff.Billing} {
		if side == nil {
			continue
		}
		if query.ResponseReference == "" {
			query.ResponseReference = side.ResponseReference
		}
		if query.RenderAttemptID == "" {
			query.RenderAttemptID = side.RenderAttemptID
		}
	}

	queryMode := QueryByRecordKey
	if query.RenderAttemptID != "" {
		queryMode = QueryByRenderAttempt
	}

	return schema.ReplayJob{
		ReplayJobID:  jobID,
		ReplayMode:   mode,
		QueryMode:    queryMode,
		QueryPayload: query,
		Reason:       diff.Reason,
		CreatedAt:    now().UTC(),
	}
}
