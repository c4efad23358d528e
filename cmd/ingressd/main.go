// Command ingressd serves opportunity creation, config resolution, and the
// retry policy over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sourcegraph/conc"

	"github.com/adverge/pipeline/internal/config"
	"github.com/adverge/pipeline/internal/identity"
	"github.com/adverge/pipeline/internal/ingress"
	"github.com/adverge/pipeline/internal/retry"
	"github.com/adverge/pipeline/internal/server"
	"github.com/adverge/pipeline/internal/store"
	"github.com/adverge/pipeline/internal/store/migrations"
	"github.com/adverge/pipeline/internal/store/postgres"
	"github.com/adverge/pipeline/internal/telemetry"
)

const (
	defaultListenAddr     = ":8080"
	ingressdLoggerPrefix  = "ingressd "
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	telemetryStopTimeout  = 5 * time.Second
	migrationsApplyWindow = 60 * time.Second
)

func main() {
	addr, cfgPath := parseFlags()
	ctx, cancel := newSignalContext()
	defer cancel()

	logger := log.New(os.Stdout, ingressdLoggerPrefix, log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	logger.Printf("configuration initialised: env=%s", cfg.Environment)

	telemetryProvider, err := initTelemetry(ctx, logger, cfg)
	if err != nil {
		logger.Fatalf("initialize telemetry: %v", err)
	}

	opportunityStore, pool, err := buildStore(ctx, logger, cfg)
	if err != nil {
		logger.Fatalf("initialise store: %v", err)
	}

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		logger.Fatalf("register metrics: %v", err)
	}

	component, err := ingress.New(opportunityStore, identity.NewRandom(), ingress.WithMetrics(metrics))
	if err != nil {
		logger.Fatalf("initialise ingress: %v", err)
	}

	policy := retry.DefaultPolicy(retry.Overrides{
		MaxRetries:      cfg.Retry.MaxRetries,
		Backoff:         cfg.Retry.BackoffDurations(),
		DeadLetterTopic: cfg.Retry.DeadLetterTopic,
	})

	apiServer := &http.Server{
		Addr:              addr,
		Handler:           server.NewHandler(component, policy),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	var lifecycle conc.WaitGroup
	lifecycle.Go(func() {
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("api server: %v", err)
		}
	})
	logger.Printf("ingress API listening on %s", addr)

	<-ctx.Done()
	logger.Print("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("api server shutdown: %v", err)
	}
	lifecycle.Wait()

	if pool != nil {
		pool.Close()
	}
	telemetryCtx, telemetryCancel := context.WithTimeout(context.Background(), telemetryStopTimeout)
	defer telemetryCancel()
	if err := telemetryProvider.Shutdown(telemetryCtx); err != nil {
		logger.Printf("telemetry shutdown: %v", err)
	}
	logger.Print("shutdown completed")
}

func parseFlags() (string, string) {
	addr := flag.String("listen", defaultListenAddr, "Address for the ingress API server")
	cfgPath := flag.String("config", "", "Path to pipeline configuration YAML (defaults used when empty)")
	flag.Parse()
	return *addr, *cfgPath
}

func newSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func initTelemetry(ctx context.Context, logger *log.Logger, cfg config.Config) (*telemetry.Provider, error) {
	telemetryCfg := telemetry.DefaultConfig()
	telemetryCfg.Enabled = cfg.Telemetry.Enabled
	telemetryCfg.Environment = cfg.Environment
	if cfg.Telemetry.OTLPEndpoint != "" {
		telemetryCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	}
	telemetryCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure

	provider, err := telemetry.NewProvider(ctx, telemetryCfg)
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry provider: %w", err)
	}
	if telemetryCfg.Enabled {
		logger.Printf("telemetry initialized: endpoint=%s", telemetryCfg.OTLPEndpoint)
	} else {
		logger.Print("telemetry disabled")
	}
	return provider, nil
}

// buildStore selects the backing idempotency store. An empty DSN keeps the
// in-memory store, which is suitable for single-process deployments only.
func buildStore(ctx context.Context, logger *log.Logger, cfg config.Config) (store.OpportunityStore, *pgxpool.Pool, error) {
	dsn := strings.TrimSpace(cfg.Store.DSN)
	if dsn == "" {
		logger.Print("no database configured, using in-memory opportunity store")
		return store.NewMemoryStore(), nil, nil
	}

	migrateCtx, cancel := context.WithTimeout(ctx, migrationsApplyWindow)
	defer cancel()
	if err := migrations.Apply(migrateCtx, dsn, cfg.Store.MigrationsPath, logger); err != nil {
		return nil, nil, fmt.Errorf("apply migrations: %w", err)
	}

	pool, err := postgres.Connect(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	logger.Print("postgres opportunity store ready")
	return postgres.NewOpportunityStore(pool), pool, nil
}
