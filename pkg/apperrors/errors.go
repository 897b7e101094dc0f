package apperrors

import "errors"

// Sentinel errors for the deduplication engine. Services return these
// (optionally wrapped) and the handler layer translates them into HTTP
// responses; nothing below the handlers retries automatically.
var (
	// ErrInvalidCriteria means the search criteria contained no usable field.
	// Returned before any query executes.
	ErrInvalidCriteria = errors.New("invalid criteria: at least one search field is required")

	// ErrSearchFailed wraps store or query errors during candidate search.
	ErrSearchFailed = errors.New("candidate search failed")

	// ErrMissingRationale means a decision was submitted without a rationale.
	ErrMissingRationale = errors.New("decision rationale is required")

	// ErrInvalidSelection means the selected existing case was not among the
	// candidates shown to the decision-maker.
	ErrInvalidSelection = errors.New("selected case is not among the presented candidates")

	// ErrRecordFailed means the decision was not persisted; no side effects occurred.
	ErrRecordFailed = errors.New("decision recording failed")

	// ErrPartialFailure means the outcome of the decision write is indeterminate:
	// the audit entry may be committed while the case stamp is not. Callers must
	// reconcile manually; a blind retry risks a duplicate audit entry.
	ErrPartialFailure = errors.New("decision recording partially failed: manual reconciliation required")

	// ErrNotFound means the referenced case does not exist.
	ErrNotFound = errors.New("not found")
)
