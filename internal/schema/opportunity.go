package schema

import "time"

// DedupState is the caller-declared classification of an inbound trigger.
type DedupState string

const (
	// DedupNew marks a fresh request with no known prior attempt.
	DedupNew DedupState = "new"
	// DedupExpiredRetry marks a retry whose prior attempt's TTL lapsed.
	DedupExpiredRetry DedupState = "expired_retry"
	// DedupDuplicate marks a key collision detected against the idempotency store.
	DedupDuplicate DedupState = "duplicate"
)

// StateReceived is the only opportunity state owned by ingress; terminal states
// belong to downstream stages.
const StateReceived = "received"

// Timestamps groups the three ingress clock readings. They must be
// non-decreasing: RequestAt <= TriggerAt <= OpportunityCreatedAt.
type Timestamps struct {
	RequestAt            time.Time `json:"requestAt"`
	TriggerAt            time.Time `json:"triggerAt"`
	OpportunityCreatedAt time.Time `json:"opportunityCreatedAt"`
}

// Ordered reports whether the timestamps satisfy the non-decreasing invariant.
func (t Timestamps) Ordered() bool {
	if t.TriggerAt.Before(t.RequestAt) {
		return false
	}
	return !t.OpportunityCreatedAt.Before(t.TriggerAt)
}

// ImpSeed is an impression placeholder attached to an opportunity at creation.
type ImpSeed struct {
	ImpKey string `json:"impKey"`
	TagID  string `json:"tagId,omitempty"`
}

// Opportunity represents one ad-serving chance. Created once per unique
// OpportunityKey and never mutated afterwards.
type Opportunity struct {
	OpportunityKey string     `json:"opportunityKey"`
	State          string     `json:"state"`
	DedupState     DedupState `json:"dedupState"`
	Timestamps     Timestamps `json:"timestamps"`
	ImpSeeds       []ImpSeed  `json:"impSeed,omitempty"`
	TraceInit      TraceInit  `json:"traceInit"`
	SchemaVersion  string     `json:"schemaVersion,omitempty"`
}
