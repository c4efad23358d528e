package store

import (
	"context"
	"errors"
	"testing"

	"github.com/sourcegraph/conc"

	"github.com/adverge/pipeline/internal/schema"
)

func TestMemoryStorePutIfAbsent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	opp := schema.Opportunity{OpportunityKey: "opp_1", State: schema.StateReceived}
	if err := s.PutIfAbsent(ctx, opp); err != nil {
		t.Fatalf("PutIfAbsent() error = %v", err)
	}

	err := s.PutIfAbsent(ctx, opp)
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	got, ok, err := s.Get(ctx, "opp_1")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v, %v", got, ok, err)
	}
	if got.State != schema.StateReceived {
		t.Errorf("expected state %q, got %q", schema.StateReceived, got.State)
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	s := NewMemoryStore()
	_, ok, err := s.Get(context.Background(), "opp_missing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("expected miss for unknown key")
	}
}

func TestMemoryStoreConcurrentInsertSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	const callers = 32
	var winners, losers int

	results := make(chan error, callers)
	var wg conc.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Go(func() {
			results <- s.PutIfAbsent(ctx, schema.Opportunity{OpportunityKey: "opp_contended"})
		})
	}
	wg.Wait()
	close(results)

	for err := range results {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, ErrDuplicateKey):
			losers++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Errorf("expected exactly one winner, got %d", winners)
	}
	if losers != callers-1 {
		t.Errorf("expected %d losers, got %d", callers-1, losers)
	}
	if s.Len() != 1 {
		t.Errorf("expected a single stored row, got %d", s.Len())
	}
}
