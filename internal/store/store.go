// Package store defines the idempotency store contract for opportunity
// ingress. The decision logic stays pure; the store is a swappable
// dependency (in-memory map for tests, transactional table in production).
package store

import (
	"context"
	"errors"

	"github.com/adverge/pipeline/internal/schema"
)

// ErrDuplicateKey reports a conditional insert that lost to an existing row.
// Implementations must return it (possibly wrapped) so ingress can convert
// the conflict into a duplicate_noop verdict.
var ErrDuplicateKey = errors.New("store: opportunity key already present")

// OpportunityStore persists opportunities keyed by their idempotency key.
//
// PutIfAbsent must be atomic: of any number of concurrent calls with the same
// key, exactly one succeeds and the rest observe ErrDuplicateKey. Backing
// implementations provide this via a unique constraint or compare-and-swap.
type OpportunityStore interface {
	Get(ctx context.Context, opportunityKey string) (schema.Opportunity, bool, error)
	PutIfAbsent(ctx context.Context, opp schema.Opportunity) error
}
