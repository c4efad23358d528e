package schema

import "time"

// FactSource identifies which side of a reconciliation produced a record.
type FactSource string

const (
	// SourceArchive marks records read from the append-only archive.
	SourceArchive FactSource = "archive"
	// SourceBilling marks records read from the derived billing ledger.
	SourceBilling FactSource = "billing"
)

// FactRecord is a normalized, immutable record read for one reconciliation
// pass. RecordKey is the join key across both sources.
type FactRecord struct {
	Source                   FactSource     `json:"source"`
	RecordKey                string         `json:"recordKey"`
	ResponseReference        string         `json:"responseReference,omitempty"`
	RenderAttemptID          string         `json:"renderAttemptId,omitempty"`
	Billable                 bool           `json:"billable"`
	AmountMicros             int64          `json:"amountMicros"`
	AnchorHash               string         `json:"anchorHash,omitempty"`
	VersionAnchorSnapshotRef string         `json:"versionAnchorSnapshotRef,omitempty"`
	PayloadDigest            string         `json:"payloadDigest,omitempty"`
	Payload                  map[string]any `json:"payload,omitempty"`
}

// Diff is one reconciliation discrepancy. Archive and Billing are nil for the
// side that is missing.
type Diff struct {
	Reason                   DiffReason        `json:"reasonCode"`
	RecordKey                string            `json:"recordKey"`
	Archive                  *FactRecord       `json:"archive"`
	Billing                  *FactRecord       `json:"billing"`
	VersionAnchorSnapshotRef string            `json:"versionAnchorSnapshotRef,omitempty"`
	AnchorHash               string            `json:"anchorHash,omitempty"`
	Meta                     map[string]string `json:"meta,omitempty"`
}

// ReplayQuery carries the join keys a replay worker needs to re-drive one
// decision against the pinned version anchor.
type ReplayQuery struct {
	RecordKey                string `json:"recordKey"`
	ResponseReference        string `json:"responseReference,omitempty"`
	RenderAttemptID          string `json:"renderAttemptId,omitempty"`
	VersionAnchorSnapshotRef string `json:"versionAnchorSnapshotRef,omitempty"`
	AnchorHash               string `json:"anchorHash,omitempty"`
}

// ReplayJob requests one corrective replay, built from a single diff.
type ReplayJob struct {
	ReplayJobID  string      `json:"replayJobId"`
	ReplayMode   string      `json:"replayMode"`
	QueryMode    string      `json:"queryMode"`
	QueryPayload ReplayQuery `json:"queryPayload"`
	Reason       DiffReason  `json:"reasonCode"`
	CreatedAt    time.Time   `json:"createdAt"`
}
