// Package schema defines the canonical record types shared across pipeline stages.
package schema

// TraceInit carries the trace lineage minted at ingress and threaded unchanged
// through every later stage. TraceKey is stable across retries of the same
// logical opportunity; RequestKey and AttemptKey identify one physical attempt.
type TraceInit struct {
	TraceKey   string `json:"traceKey"`
	RequestKey string `json:"requestKey"`
	AttemptKey string `json:"attemptKey"`
}

// Zero reports whether the lineage is unset.
func (t TraceInit) Zero() bool {
	return t.TraceKey == "" && t.RequestKey == "" && t.AttemptKey == ""
}

// HandoffPacketLite is the minimal bundle handed to the next stage after a
// successful opportunity creation.
type HandoffPacketLite struct {
	RequestKey     string    `json:"requestKey"`
	OpportunityKey string    `json:"opportunityKey"`
	TraceInit      TraceInit `json:"traceInit"`
}
