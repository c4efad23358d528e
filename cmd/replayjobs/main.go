// Command replayjobs turns a reconciliation report's diffs into replay job
// requests, capped and optionally rate-paced.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/adverge/pipeline/internal/config"
	"github.com/adverge/pipeline/internal/reconcile"
	"github.com/adverge/pipeline/internal/replay"
	"github.com/adverge/pipeline/internal/schema"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		reportPath = flag.String("report", "", "Path to a reconciliation report JSON")
		outPath    = flag.String("out", "", "Jobs output path (defaults to stdout)")
		maxJobs    = flag.Int("max-jobs", -1, "Maximum jobs to emit (default 500, or the configured value)")
		mode       = flag.String("mode", reconcile.ReplayModeDeterministic, "Replay mode for generated jobs")
		rate       = flag.Float64("rate", -1, "Jobs per second pacing, 0 disables (default from config)")
		configPath = flag.String("config", "", "Optional pipeline config YAML")
	)
	flag.Parse()

	if strings.TrimSpace(*reportPath) == "" {
		return errors.New("-report flag is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	effectiveMax := cfg.Reconciliation.MaxReplayJobs
	if *maxJobs >= 0 {
		effectiveMax = *maxJobs
	}
	effectiveRate := cfg.Reconciliation.ReplayRatePerSec
	if *rate >= 0 {
		effectiveRate = *rate
	}

	data, err := os.ReadFile(*reportPath)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}
	var report reconcile.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return fmt.Errorf("parse report: %w", err)
	}

	jobs := make([]schema.ReplayJob, 0, len(report.Diffs))
	for _, diff := range report.Diffs {
		jobs = append(jobs, reconcile.BuildReplayRequest(diff, reconcile.ReplayOptions{
			ReplayMode: *mode,
		}))
	}

	var emitted []schema.ReplayJob
	emitter := replay.NewEmitter(func(_ context.Context, job schema.ReplayJob) error {
		emitted = append(emitted, job)
		return nil
	}, replay.WithMaxJobs(effectiveMax), replay.WithRate(effectiveRate))

	if _, err := emitter.Emit(context.Background(), jobs); err != nil {
		return fmt.Errorf("emit jobs: %w", err)
	}

	return writeJobs(*outPath, emitted)
}

func writeJobs(path string, jobs []schema.ReplayJob) error {
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode jobs: %w", err)
	}
	data = append(data, '\n')
	if strings.TrimSpace(path) == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write jobs: %w", err)
	}
	return nil
}
