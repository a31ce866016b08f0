// Package repository defines the transactional persistence surface the
// worker uses to advance files and listings through their state
// machines.
package repository

import "context"

// File statuses. PENDING is the only non-terminal state.
const (
	FileStatusPending = "PENDING"
	FileStatusValid   = "VALID"
	FileStatusInvalid = "INVALID"
	FileStatusFailed  = "FAILED"
)

// Listing statuses.
const (
	ListingStatusPendingValidation = "PENDING_VALIDATION"
	ListingStatusActive            = "ACTIVE"
	ListingStatusRejected          = "REJECTED"
)

// CompleteParams carries everything the fan-in transaction needs for
// one successfully validated file.
type CompleteParams struct {
	FileID    string
	ListingID string

	// NewFileKey is the object key of the normalized artifact. Empty
	// when the original stays authoritative (model uploads keep their
	// key on the file row through the worker's upload step).
	NewFileKey string

	// GeneratedKeys are derived artifacts (model renders) inserted as
	// VALID generated file rows pointing back at FileID.
	GeneratedKeys []string

	// FileWarning is a non-fatal problem recorded on the VALID row.
	FileWarning string

	// Metadata is merged into the file row's metadata column.
	Metadata map[string]any
}

// ListingRepository is the worker's database surface.
//
// CompleteFileValidation runs the fan-in inside one transaction with a
// row lock on the listing: it marks the file VALID, inserts generated
// rows, promotes the thumbnail, and transitions the listing when the
// file was the last PENDING sibling. It returns true only from the call
// that performed the PENDING_VALIDATION -> ACTIVE transition.
type ListingRepository interface {
	CompleteFileValidation(ctx context.Context, p CompleteParams) (activated bool, err error)

	// MarkFileInvalid records a user-facing rejection: the input is bad
	// and must be re-uploaded.
	MarkFileInvalid(ctx context.Context, fileID, reason string) error

	// MarkFileFailed records an internal fault: the file may be
	// reprocessed administratively.
	MarkFileFailed(ctx context.Context, fileID, reason string) error
}
