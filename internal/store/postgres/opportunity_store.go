package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adverge/pipeline/internal/schema"
	"github.com/adverge/pipeline/internal/store"
)

// OpportunityStore persists opportunities keyed by their idempotency key. The
// unique constraint on opportunity_key provides the atomic conditional insert
// the ingress concurrency contract requires.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore constructs an OpportunityStore backed by the provided pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const (
	opportunityInsertSQL = `
INSERT INTO opportunities (
    opportunity_key,
    state,
    dedup_state,
    request_at,
    trigger_at,
    opportunity_created_at,
    trace_key,
    request_key,
    attempt_key,
    imp_seeds,
    schema_version,
    inserted_at
)
VALUES (
    @opportunity_key,
    @state,
    @dedup_state,
    @request_at,
    @trigger_at,
    @opportunity_created_at,
    @trace_key,
    @request_key,
    @attempt_key,
    @imp_seeds::jsonb,
    @schema_version,
    NOW()
)
ON CONFLICT (opportunity_key) DO NOTHING;
`

	opportunitySelectSQL = `
SELECT
    opportunity_key,
    state,
    dedup_state,
    request_at,
    trigger_at,
    opportunity_created_at,
    trace_key,
    request_key,
    attempt_key,
    imp_seeds,
    schema_version
FROM opportunities
WHERE opportunity_key = $1;
`
)

func (s *OpportunityStore) ensurePool() (*pgxpool.Pool, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("opportunity store: nil pool")
	}
	return s.pool, nil
}

// Get returns the stored opportunity for the key, if any.
func (s *OpportunityStore) Get(ctx context.Context, opportunityKey string) (schema.Opportunity, bool, error) {
	pool, err := s.ensurePool()
	if err != nil {
		return schema.Opportunity{}, false, err
	}

	var (
		opp       schema.Opportunity
		requestAt time.Time
		triggerAt time.Time
		createdAt time.Time
		seedBytes []byte
	)
	row := pool.QueryRow(ctx, opportunitySelectSQL, strings.TrimSpace(opportunityKey))
	err = row.Scan(
		&opp.OpportunityKey,
		&opp.State,
		&opp.DedupState,
		&requestAt,
		&triggerAt,
		&createdAt,
		&opp.TraceInit.TraceKey,
		&opp.TraceInit.RequestKey,
		&opp.TraceInit.AttemptKey,
		&seedBytes,
		&opp.SchemaVersion,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return schema.Opportunity{}, false, nil
		}
		return schema.Opportunity{}, false, fmt.Errorf("opportunity store: select: %w", err)
	}

	opp.Timestamps = schema.Timestamps{
		RequestAt:            requestAt.UTC(),
		TriggerAt:            triggerAt.UTC(),
		OpportunityCreatedAt: createdAt.UTC(),
	}
	seeds, err := decodeImpSeeds(seedBytes)
	if err != nil {
		return schema.Opportunity{}, false, err
	}
	opp.ImpSeeds = seeds
	return opp, true, nil
}

// PutIfAbsent inserts the opportunity unless its key is already present, in
// which case store.ErrDuplicateKey is returned.
func (s *OpportunityStore) PutIfAbsent(ctx context.Context, opp schema.Opportunity) error {
	pool, err := s.ensurePool()
	if err != nil {
		return err
	}
	if strings.TrimSpace(opp.OpportunityKey) == "" {
		return fmt.Errorf("opportunity store: opportunity key required")
	}

	seeds, err := encodeImpSeeds(opp.ImpSeeds)
	if err != nil {
		return err
	}
	args := pgx.NamedArgs{
		"opportunity_key":        opp.OpportunityKey,
		"state":                  opp.State,
		"dedup_state":            string(opp.DedupState),
		"request_at":             opp.Timestamps.RequestAt,
		"trigger_at":             opp.Timestamps.TriggerAt,
		"opportunity_created_at": opp.Timestamps.OpportunityCreatedAt,
		"trace_key":              opp.TraceInit.TraceKey,
		"request_key":            opp.TraceInit.RequestKey,
		"attempt_key":            opp.TraceInit.AttemptKey,
		"imp_seeds":              seeds,
		"schema_version":         opp.SchemaVersion,
	}

	tag, err := pool.Exec(ctx, opportunityInsertSQL, args)
	if err != nil {
		return fmt.Errorf("opportunity store: insert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrDuplicateKey
	}
	return nil
}

func encodeImpSeeds(seeds []schema.ImpSeed) ([]byte, error) {
	if len(seeds) == 0 {
		return []byte("[]"), nil
	}
	data, err := json.Marshal(seeds)
	if err != nil {
		return nil, fmt.Errorf("opportunity store: encode imp seeds: %w", err)
	}
	return data, nil
}

func decodeImpSeeds(raw []byte) ([]schema.ImpSeed, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var seeds []schema.ImpSeed
	if err := json.Unmarshal(raw, &seeds); err != nil {
		return nil, fmt.Errorf("opportunity store: decode imp seeds: %w", err)
	}
	if len(seeds) == 0 {
		return nil, nil
	}
	return seeds, nil
}
