// Package identity generates the prefixed keys that thread trace lineage
// through the pipeline. The generator is injected so tests can assert on
// prefixes and determinism without touching global random state.
package identity

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Key prefixes keep identifiers human-debuggable in logs and stores.
const (
	PrefixTrace       = "tr_"
	PrefixRequest     = "req_"
	PrefixAttempt     = "att_"
	PrefixOpportunity = "opp_"
	PrefixReplayJob   = "job_"
)

// Generator mints globally unique, prefixed identifiers.
type Generator interface {
	TraceKey() string
	RequestKey() string
	AttemptKey() string
	OpportunityKey() string
	ReplayJobID() string
}

// Random is the production Generator backed by random UUIDs.
type Random struct{}

// NewRandom constructs the default UUID-backed generator.
func NewRandom() Random { return Random{} }

func (Random) TraceKey() string       { return PrefixTrace + uuid.NewString() }
func (Random) RequestKey() string     { return PrefixRequest + uuid.NewString() }
func (Random) AttemptKey() string     { return PrefixAttempt + uuid.NewString() }
func (Random) OpportunityKey() string { return PrefixOpportunity + uuid.NewString() }
func (Random) ReplayJobID() string    { return PrefixReplayJob + uuid.NewString() }

// Sequential mints deterministic keys for tests.
type Sequential struct {
	counter atomic.Uint64
}

// NewSequential constructs a deterministic generator starting at 1.
func NewSequential() *Sequential { return new(Sequential) }

func (s *Sequential) next(prefix string) string {
	return fmt.Sprintf("%s%06d", prefix, s.counter.Add(1))
}

func (s *Sequential) TraceKey() string       { return s.next(PrefixTrace) }
func (s *Sequential) RequestKey() string     { return s.next(PrefixRequest) }
func (s *Sequential) AttemptKey() string     { return s.next(PrefixAttempt) }
func (s *Sequential) OpportunityKey() string { return s.next(PrefixOpportunity) }
func (s *Sequential) ReplayJobID() string    { return s.next(PrefixReplayJob) }
