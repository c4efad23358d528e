// Command reconcile compares an archive fact set against a billing fact set
// and writes a discrepancy report.
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
	"github.com/adverge/pipeline/internal/schema"
	"github.com/adverge/pipeline/internal/telemetry"
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(code)
}

func run() (int, error) {
	var (
		archivePath = flag.String("archive", "", "Path to the archive records JSON array")
		billingPath = flag.String("billing", "", "Path to the billing records JSON array")
		tolerance   = flag.Int64("tolerance", -1, "Amount tolerance in micros (default 0, or the configured value)")
		outPath     = flag.String("out", "", "Report output path (defaults to stdout)")
		configPath  = flag.String("config", "", "Optional pipeline config YAML")
		failOnDiff  = flag.Bool("fail-on-diff", false, "Exit 1 when discrepancies are found")
	)
	flag.Parse()

	if strings.TrimSpace(*archivePath) == "" {
		return 0, errors.New("-archive flag is required")
	}
	if strings.TrimSpace(*billingPath) == "" {
		return 0, errors.New("-billing flag is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return 0, err
	}
	effectiveTolerance := cfg.Reconciliation.AmountToleranceMicros
	if *tolerance >= 0 {
		effectiveTolerance = *tolerance
	}

	archive, err := readRecords(*archivePath, schema.SourceArchive)
	if err != nil {
		return 0, err
	}
	billing, err := readRecords(*billingPath, schema.SourceBilling)
	if err != nil {
		return 0, err
	}

	report := reconcile.Reconcile(archive, billing, reconcile.Options{
		AmountToleranceMicros: effectiveTolerance,
	})

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return 0, fmt.Errorf("register metrics: %w", err)
	}
	ctx := context.Background()
	for _, diff := range report.Diffs {
		metrics.RecordDiff(ctx, string(diff.Reason))
	}

	if err := writeReport(*outPath, report); err != nil {
		return 0, err
	}

	if *failOnDiff && !report.Summary.Pass {
		return 1, nil
	}
	return 0, nil
}

func readRecords(path string, source schema.FactSource) ([]schema.FactRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s records: %w", source, err)
	}
	var records []schema.FactRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s records: %w", source, err)
	}
	return records, nil
}

func writeReport(path string, report reconcile.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')
	if strings.TrimSpace(path) == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
