package schema

// ReasonCode names a stable ingress or resolution outcome. Validation failures
// and informational verdicts cross the core boundary as values, never as
// thrown faults.
type ReasonCode string

const (
	// ReasonTimestampOrderInvalid rejects input whose timestamps decrease.
	ReasonTimestampOrderInvalid ReasonCode = "TIMESTAMP_ORDER_INVALID"
	// ReasonTraceRequestMismatch rejects a caller-supplied trace whose request
	// key disagrees with the top-level request key.
	ReasonTraceRequestMismatch ReasonCode = "TRACE_REQUEST_MISMATCH"
	// ReasonDuplicateOpportunityKey annotates a successful idempotent no-op.
	ReasonDuplicateOpportunityKey ReasonCode = "DUPLICATE_OPPORTUNITY_KEY"
	// ReasonGlobalUnavailableFailClosed rejects resolution without a global scope.
	ReasonGlobalUnavailableFailClosed ReasonCode = "GLOBAL_UNAVAILABLE_FAIL_CLOSED"
	// ReasonInvalidRange notes a winning scope value that failed validation.
	ReasonInvalidRange ReasonCode = "INVALID_RANGE"
	// ReasonUnknownFieldDropped notes a scope field absent from the known schema.
	ReasonUnknownFieldDropped ReasonCode = "UNKNOWN_FIELD_DROPPED"
	// ReasonMissingRequiredAfterMerge rejects a merge that left a required field absent.
	ReasonMissingRequiredAfterMerge ReasonCode = "MISSING_REQUIRED_AFTER_MERGE"
)

// CreateAction is the ingress verdict for one createOpportunity call.
type CreateAction string

const (
	// ActionCreated indicates a new opportunity row was persisted.
	ActionCreated CreateAction = "created"
	// ActionDuplicateNoop indicates the existing record was returned unchanged.
	ActionDuplicateNoop CreateAction = "duplicate_noop"
	// ActionNone indicates the call was rejected before any persistence.
	ActionNone CreateAction = ""
)

// ErrorAction signals whether the caller may safely retry a rejected call.
type ErrorAction string

const (
	// ErrorActionAllow permits a verbatim retry after the caller fixes its input.
	ErrorActionAllow ErrorAction = "allow"
	// ErrorActionDeny forbids retrying the call as-is.
	ErrorActionDeny ErrorAction = "deny"
)

// ResolutionStatus grades one config resolution. Precedence:
// REJECTED > DEGRADED > RESOLVED.
type ResolutionStatus string

const (
	// StatusResolved marks a clean resolution.
	StatusResolved ResolutionStatus = "RESOLVED"
	// StatusDegraded marks a usable snapshot produced via fallback.
	StatusDegraded ResolutionStatus = "DEGRADED"
	// StatusRejected marks a resolution the caller must not serve under.
	StatusRejected ResolutionStatus = "REJECTED"
)

// Downgrade returns the lower-precedence combination of two statuses.
func (s ResolutionStatus) Downgrade(next ResolutionStatus) ResolutionStatus {
	if s == StatusRejected || next == StatusRejected {
		return StatusRejected
	}
	if s == StatusDegraded || next == StatusDegraded {
		return StatusDegraded
	}
	return StatusResolved
}

// DiffReason names a reconciliation discrepancy. These are business findings,
// not engine errors.
type DiffReason string

const (
	// DiffBillingMissing marks a record present in archive only.
	DiffBillingMissing DiffReason = "BILLING_MISSING"
	// DiffArchiveMissing marks a record present in billing only.
	DiffArchiveMissing DiffReason = "ARCHIVE_MISSING"
	// DiffAnchorMismatch marks diverged version-anchor hashes.
	DiffAnchorMismatch DiffReason = "ANCHOR_MISMATCH"
	// DiffBillableMismatch marks disagreeing billable flags.
	DiffBillableMismatch DiffReason = "BILLABLE_MISMATCH"
	// DiffAmountMismatch marks an amount delta beyond tolerance.
	DiffAmountMismatch DiffReason = "AMOUNT_MISMATCH"
)
