package persistence_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/adverge/pipeline/internal/schema"
	"github.com/adverge/pipeline/internal/store"
	pgstore "github.com/adverge/pipeline/internal/store/postgres"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	testPool    *pgxpool.Pool
	pgContainer testcontainers.Container
	setupErr    error
)

func TestMain(m *testing.M) {
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_PASSWORD": "secret", "POSTGRES_USER": "postgres", "POSTGRES_DB": "pipeline"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}
	pgContainer = container

	setupErr = initialiseDatabase(ctx)
	exitCode := 0
	if setupErr != nil {
		fmt.Fprintf(os.Stderr, "postgres contract tests skipped: %v\n", setupErr)
	} else {
		exitCode = m.Run()
	}

	if testPool != nil {
		testPool.Close()
	}
	if pgContainer != nil {
		_ = pgContainer.Terminate(ctx)
	}
	os.Exit(exitCode)
}

func initialiseDatabase(ctx context.Context) error {
	host, err := pgContainer.Host(ctx)
	if err != nil {
		return fmt.Errorf("container host: %w", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return fmt.Errorf("container port: %w", err)
	}
	dsn := fmt.Sprintf("postgres://postgres:secret@%s:%s/pipeline?sslmode=disable", host, port.Port())

	if err := applyMigrations(dsn); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("pgx pool: %w", err)
	}
	testPool = pool
	return nil
}

func applyMigrations(dsn string) error {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return fmt.Errorf("runtime caller lookup failed")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(file), "..", "..", ".."))
	migrationsDir := filepath.Join(root, "db", "migrations")
	sourceURL := fmt.Sprintf("file://%s", migrationsDir)

	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open sql connection: %w", err)
	}
	defer sqlDB.Close()

	driver, err := pgxmigrate.WithInstance(sqlDB, &pgxmigrate.Config{})
	if err != nil {
		return fmt.Errorf("postgres driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func sampleOpportunity(key string) schema.Opportunity {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return schema.Opportunity{
		OpportunityKey: key,
		State:          schema.StateReceived,
		DedupState:     schema.DedupNew,
		Timestamps: schema.Timestamps{
			RequestAt:            base,
			TriggerAt:            base.Add(50 * time.Millisecond),
			OpportunityCreatedAt: base.Add(120 * time.Millisecond),
		},
		TraceInit: schema.TraceInit{
			TraceKey:   "tr_" + uuid.NewString(),
			RequestKey: "req_" + uuid.NewString(),
			AttemptKey: "att_" + uuid.NewString(),
		},
		ImpSeeds: []schema.ImpSeed{
			{ImpKey: "imp_1", TagID: "banner_top"},
			{ImpKey: "imp_2", TagID: "banner_bottom"},
		},
		SchemaVersion: "1.0",
	}
}

func TestPostgresOpportunityStore(t *testing.T) {
	if setupErr != nil {
		t.Skipf("postgres contract setup unavailable: %v", setupErr)
	}
	ctx := context.Background()
	opportunityStore := pgstore.NewOpportunityStore(testPool)

	key := "opp_" + uuid.NewString()
	opp := sampleOpportunity(key)

	if _, found, err := opportunityStore.Get(ctx, key); err != nil {
		t.Fatalf("get before insert: %v", err)
	} else if found {
		t.Fatalf("expected miss before insert")
	}

	if err := opportunityStore.PutIfAbsent(ctx, opp); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, found, err := opportunityStore.Get(ctx, key)
	if err != nil {
		t.Fatalf("get after insert: %v", err)
	}
	if !found {
		t.Fatalf("expected hit after insert")
	}
	if got.TraceInit != opp.TraceInit {
		t.Fatalf("trace mismatch: got %+v want %+v", got.TraceInit, opp.TraceInit)
	}
	if got.DedupState != schema.DedupNew || got.State != schema.StateReceived {
		t.Fatalf("unexpected states: %+v", got)
	}
	if !got.Timestamps.RequestAt.Equal(opp.Timestamps.RequestAt) {
		t.Fatalf("requestAt mismatch: got %v want %v", got.Timestamps.RequestAt, opp.Timestamps.RequestAt)
	}
	if len(got.ImpSeeds) != 2 || got.ImpSeeds[0].ImpKey != "imp_1" {
		t.Fatalf("imp seeds not round-tripped: %+v", got.ImpSeeds)
	}

	conflicting := sampleOpportunity(key)
	err = opportunityStore.PutIfAbsent(ctx, conflicting)
	if !errors.Is(err, store.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	// The losing write must not disturb the stored row.
	after, found, err := opportunityStore.Get(ctx, key)
	if err != nil || !found {
		t.Fatalf("get after conflict: found=%v err=%v", found, err)
	}
	if after.TraceInit != opp.TraceInit {
		t.Fatalf("conflict overwrote trace: got %+v want %+v", after.TraceInit, opp.TraceInit)
	}
}

func TestPostgresOpportunityStoreRejectsDisorderedTimestamps(t *testing.T) {
	if setupErr != nil {
		t.Skipf("postgres contract setup unavailable: %v", setupErr)
	}
	ctx := context.Background()
	opportunityStore := pgstore.NewOpportunityStore(testPool)

	opp := sampleOpportunity("opp_" + uuid.NewString())
	opp.Timestamps.TriggerAt = opp.Timestamps.RequestAt.Add(-time.Second)

	if err := opportunityStore.PutIfAbsent(ctx, opp); err == nil {
		t.Fatalf("expected check constraint violation for disordered timestamps")
	}
}
