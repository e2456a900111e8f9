package domain

import (
	"errors"
	"fmt"
)

var (
	// Ledger errors
	ErrAccountNotFound      = errors.New("account not found")
	ErrDuplicateAccountName = errors.New("account name already exists")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrSameAccount          = errors.New("source and destination account are the same")
	ErrInvalidAccountType   = errors.New("invalid account type")
	ErrInvalidChangeKind    = errors.New("invalid change kind")
	ErrInvalidAccountName   = errors.New("account name must not be empty")

	// Reconciliation errors
	ErrSyncInProgress = errors.New("reconciliation already running")
	ErrRecordNotFound = errors.New("record not found")
)

// ExternalFetchError is returned when the external source could not be read.
// Retryable marks transient failures (network, timeouts, rate limits, 5xx).
type ExternalFetchError struct {
	Source    string
	Retryable bool
	Err       error
}

func (e *ExternalFetchError) Error() string {
	kind := "permanent"
	if e.Retryable {
		kind = "transient"
	}
	return fmt.Sprintf("fetch from %s failed (%s): %v", e.Source, kind, e.Err)
}

func (e *ExternalFetchError) Unwrap() error { return e.Err }

// RecordParseError describes one external record that could not be used as-is.
type RecordParseError struct {
	ExternalID string
	Field      string
	Reason     string
}

func (e *RecordParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("record %q: %s", e.ExternalID, e.Reason)
	}
	return fmt.Sprintf("record %q: field %s: %s", e.ExternalID, e.Field, e.Reason)
}

// SyncConflict wraps a storage failure that aborted a reconciliation pass.
// Nothing from the pass was committed.
type SyncConflict struct {
	PassID string
	Err    error
}

func (e *SyncConflict) Error() string {
	return fmt.Sprintf("reconciliation pass %s rolled back: %v", e.PassID, e.Err)
}

func (e *SyncConflict) Unwrap() error { return e.Err }
