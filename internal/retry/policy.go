// Package retry holds the delivery retry and dead-letter policy consulted at
// every queue boundary between pipeline stages. The queueing substrate is an
// external collaborator; only the decision math lives here.
package retry

import "time"

// defaultLadder is the backoff schedule applied between redelivery attempts.
// Delays are non-decreasing and clamp at the tail for counts past its length.
var defaultLadder = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	30 * time.Second,
	2 * time.Minute,
	10 * time.Minute,
}

// Policy is the effective retry configuration for one queue boundary.
type Policy struct {
	MaxRetries      int
	Backoff         []time.Duration
	DeadLetterTopic string
}

// Overrides selectively replaces policy defaults. Zero values keep defaults.
type Overrides struct {
	MaxRetries      int
	Backoff         []time.Duration
	DeadLetterTopic string
}

// DefaultPolicy builds the stage-transition retry policy, applying any
// overrides. MaxRetries defaults to the ladder length.
func DefaultPolicy(overrides Overrides) Policy {
	policy := Policy{
		MaxRetries:      len(defaultLadder),
		Backoff:         append([]time.Duration(nil), defaultLadder...),
		DeadLetterTopic: TopicDeadLetter,
	}
	if len(overrides.Backoff) > 0 {
		policy.Backoff = append([]time.Duration(nil), overrides.Backoff...)
		policy.MaxRetries = len(policy.Backoff)
	}
	if overrides.MaxRetries > 0 {
		policy.MaxRetries = overrides.MaxRetries
	}
	if overrides.DeadLetterTopic != "" {
		policy.DeadLetterTopic = overrides.DeadLetterTopic
	}
	return policy
}

// NextDelay returns the backoff before the next redelivery. ok is false once
// retryCount reaches MaxRetries, at which point the caller must dead-letter.
func NextDelay(retryCount int, policy Policy) (time.Duration, bool) {
	if retryCount < 0 {
		retryCount = 0
	}
	if retryCount >= policy.MaxRetries {
		return 0, false
	}
	// An empty ladder means immediate redelivery; the MaxRetries check above
	// stays the single exhaustion threshold either way.
	if len(policy.Backoff) == 0 {
		return 0, true
	}
	idx := retryCount
	if idx >= len(policy.Backoff) {
		idx = len(policy.Backoff) - 1
	}
	return policy.Backoff[idx], true
}

// ShouldDeadLetter reports whether the message has exhausted its retries.
// Agrees with NextDelay by construction: both compare against MaxRetries.
func ShouldDeadLetter(retryCount int, policy Policy) bool {
	if retryCount < 0 {
		retryCount = 0
	}
	return retryCount >= policy.MaxRetries
}
