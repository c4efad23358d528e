// Package reconcile compares the append-only archive against the derived
// billing ledger and turns discrepancies into deterministic replay jobs.
package reconcile

import (
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc"

	"github.com/adverge/pipeline/internal/schema"
)

// amountExponent converts micros into currency units for report metadata.
const amountExponent = -6

// Options tunes one reconciliation pass.
type Options struct {
	// AmountToleranceMicros is the largest absolute amount delta still
	// considered a match. Negative values are normalised to zero.
	AmountToleranceMicros int64
}

// Summary aggregates one reconciliation pass.
type Summary struct {
	TotalArchiveRecords int  `json:"totalArchiveRecords"`
	TotalBillingRecords int  `json:"totalBillingRecords"`
	MatchedCount        int  `json:"matchedCount"`
	DiffCount           int  `json:"diffCount"`
	Pass                bool `json:"pass"`
}

// Report is the full reconciliation result. Diffs are sorted by recordKey so
// two passes over the same inputs serialize identically.
type Report struct {
	Summary Summary       `json:"summary"`
	Diffs   []schema.Diff `json:"diffs"`
}

// Reconcile indexes both fact sets by recordKey and classifies the union of
// keys in strict priority order. Runtime is linear in total record count.
func Reconcile(archive, billing []schema.FactRecord, opts Options) Report {
	tolerance := opts.AmountToleranceMicros
	if tolerance < 0 {
		tolerance = 0
	}

	var archiveIndex, billingIndex map[string]*schema.FactRecord
	var wg conc.WaitGroup
	wg.Go(func() { archiveIndex = indexBySource(archive, schema.SourceArchive) })
	wg.Go(func() { billingIndex = indexBySource(billing, schema.SourceBilling) })
	wg.Wait()

	keys := make([]string, 0, len(archiveIndex)+len(billingIndex))
	for key := range archiveIndex {
		keys = append(keys, key)
	}
	for key := range billingIndex {
		if _, seen := archiveIndex[key]; !seen {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	matched := 0
	diffs := make([]schema.Diff, 0)
	for _, key := range keys {
		a := archiveIndex[key]
		b := billingIndex[key]
		if diff, ok := classify(key, a, b, tolerance); ok {
			diffs = append(diffs, diff)
			continue
		}
		matched++
	}

	return Report{
		Summary: Summary{
			TotalArchiveRecords: len(archive),
			TotalBillingRecords: len(billing),
			MatchedCount:        matched,
			DiffCount:           len(diffs),
			Pass:                len(diffs) == 0,
		},
		Diffs: diffs,
	}
}

// indexBySource builds the per-source key index. Duplicate keys within one
// source resolve last-write-wins; records lacking a key are not indexed.
func indexBySource(records []schema.FactRecord, source schema.FactSource) map[string]*schema.FactRecord {
	index := make(map[string]*schema.FactRecord, len(records))
	for i := range records {
		record := records[i]
		if record.RecordKey == "" {
			continue
		}
		record.Source = source
		index[record.RecordKey] = &record
	}
	return index
}

// classify applies the discrepancy rules in strict priority order and stops at
// the first match. An anchor mismatch is checked before amounts because a
// diverged version context makes amount comparison meaningless.
func classify(key string, archive, billing *schema.FactRecord, tolerance int64) (schema.Diff, bool) {
	switch {
	case billing == nil:
		return newDiff(schema.DiffBillingMissing, key, archive, billing, nil), true
	case archive == nil:
		return newDiff(schema.DiffArchiveMissing, key, archive, billing, nil), true
	case archive.AnchorHash != "" && billing.AnchorHash != "" && archive.AnchorHash != billing.AnchorHash:
		return newDiff(schema.DiffAnchorMismatch, key, archive, billing, map[string]string{
			"archiveAnchorHash": archive.AnchorHash,
			"billingAnchorHash": billing.AnchorHash,
		}), true
	case archive.Billable != billing.Billable:
		return newDiff(schema.DiffBillableMismatch, key, archive, billing, map[string]string{
			"archiveBillable": strconv.FormatBool(archive.Billable),
			"billingBillable": strconv.FormatBool(billing.Billable),
		}), true
	case amountDelta(archive.AmountMicros, billing.AmountMicros) > tolerance:
		return newDiff(schema.DiffAmountMismatch, key, archive, billing, map[string]string{
			"archiveAmount": decimal.New(archive.AmountMicros, amountExponent).String(),
			"billingAmount": decimal.New(billing.AmountMicros, amountExponent).String(),
			"deltaMicros":   strconv.FormatInt(amountDelta(archive.AmountMicros, billing.AmountMicros), 10),
		}), true
	default:
		return schema.Diff{}, false
	}
}

func amountDelta(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}

// newDiff copies the version anchor context from whichever side carries it,
// preferring the archive.
func newDiff(reason schema.DiffReason, key string, archive, billing *schema.FactRecord, meta map[string]string) schema.Diff {
	diff := schema.Diff{
		Reason:    reason,
		RecordKey: key,
		Archive:   archive,
		Billing:   billing,
		Meta:      meta,
	}
	for _, side := range []*schema.FactRecord{archive, billing} {
		if side == nil {
			continue
		}
		if diff.VersionAnchorSnapshotRef == "" {
			diff.VersionAnchorSnapshotRef = side.VersionAnchorSnapshotRef
		}
		if diff.AnchorHash == "" {
			diff.AnchorHash = side.AnchorHash
		}
	}
	return diff
}
