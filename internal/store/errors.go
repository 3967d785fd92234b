package store

import "errors"

// The Store Adapter's typed error taxonomy (§4.10, §7): the orchestrator
// distinguishes transient, conflict, and fatal failures by type, following
// the teacher's pattern of named sentinel errors declared per package (cf.
// O365Ingester/statetracker.go's ErrInvalidStateFile).
var (
	ErrNotFound = errors.New("store: record not found")
)

// TransientError wraps a network or 5xx failure the caller should retry
// with exponential backoff (max 3 attempts, base 500ms, factor 2.0).
type TransientError struct{ Err error }

func (e *TransientError) Error() string { return "store: transient failure: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// ConflictError signals an optimistic-uniqueness collision (duplicate
// ticket_id on create); the allocator retries with a new candidate.
type ConflictError struct{ TicketID string }

func (e *ConflictError) Error() string { return "store: conflict on ticket_id " + e.TicketID }

// FatalError signals a non-retryable store failure; the NEW path converts
// this to a 5xx so the webhook caller redelivers.
type FatalError struct{ Err error }

func (e *FatalError) Error() string { return "store: fatal: " + e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}
