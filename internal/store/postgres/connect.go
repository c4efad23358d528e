// Package postgres persists opportunities in a transactional table, giving
// ingress its atomic conditional insert.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adverge/pipeline/internal/observability"
)

const (
	connectMaxAttempts = 5
	connectMaxInterval = 10 * time.Second
)

// Connect dials the pool and verifies connectivity, retrying transient
// failures with exponential backoff.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.MaxInterval = connectMaxInterval

	var pingErr error
	for attempt := 1; attempt <= connectMaxAttempts; attempt++ {
		pingErr = pool.Ping(ctx)
		if pingErr == nil {
			return pool, nil
		}
		if attempt == connectMaxAttempts {
			break
		}
		sleep := backoffCfg.NextBackOff()
		if sleep == backoff.Stop {
			break
		}
		observability.Log().Debug("postgres ping failed, retrying",
			observability.Field{Key: "attempt", Value: attempt},
			observability.Field{Key: "sleep", Value: sleep.String()})
		select {
		case <-ctx.Done():
			pool.Close()
			return nil, fmt.Errorf("connect cancelled: %w", ctx.Err())
		case <-time.After(sleep):
		}
	}

	pool.Close()
	return nil, fmt.Errorf("ping database: %w", pingErr)
}
