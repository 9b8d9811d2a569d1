// Package syncerr defines the sync engine's error taxonomy (SPEC_FULL §7):
// a small set of codes the orchestrator and job lifecycle switch on to
// decide whether a failure is per-entity (counted, job continues) or fatal
// (propagates to the top level and marks the job failed).
package syncerr

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies one category of the taxonomy.
type ErrorCode string

const (
	// ErrCodeTransientIO is a retryable I/O failure (5xx, 429, timeout).
	// Retried inside the token manager; escalates to ErrCodePermanentIO
	// after MAX_ATTEMPTS.
	ErrCodeTransientIO ErrorCode = "TRANSIENT_IO"
	// ErrCodePermanentIO is a transient failure that exhausted its retry
	// budget.
	ErrCodePermanentIO ErrorCode = "PERMANENT_IO"
	// ErrCodeAuth is an authentication/refresh failure, fatal for the job
	// after one re-auth attempt.
	ErrCodeAuth ErrorCode = "AUTH_ERROR"
	// ErrCodeValidation is a bad source/auth config caught at job start,
	// before any state change.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	// ErrCodeEntityProcessing is a per-entity failure: logged, counted,
	// job continues.
	ErrCodeEntityProcessing ErrorCode = "ENTITY_PROCESSING_ERROR"
	// ErrCodeDestination is a per-destination write failure. The entity's
	// state row is not advanced so the next run retries it.
	ErrCodeDestination ErrorCode = "DESTINATION_ERROR"
	// ErrCodeStateStore is fatal: the job cannot proceed without the
	// authoritative hash table.
	ErrCodeStateStore ErrorCode = "STATE_STORE_ERROR"
	// ErrCodeCursorPersistence is fatal at end-of-run even if every entity
	// succeeded, so the next run re-reads the same window.
	ErrCodeCursorPersistence ErrorCode = "CURSOR_PERSISTENCE_ERROR"
	// ErrCodeCancelled surfaces a context cancellation as `cancelled`.
	ErrCodeCancelled ErrorCode = "CANCELLED"
	// ErrCodeDeadlineExceeded surfaces a context deadline as `timed_out`.
	ErrCodeDeadlineExceeded ErrorCode = "TIMED_OUT"
)

// SyncError is a structured error carrying the taxonomy code, an HTTP
// status for API-facing surfaces, and the wrapped cause.
type SyncError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

func (e *SyncError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *SyncError) Unwrap() error { return e.Err }

// WithDetails attaches a key/value pair for structured logging.
func (e *SyncError) WithDetails(key string, value interface{}) *SyncError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newErr(code ErrorCode, message string, httpStatus int) *SyncError {
	return &SyncError{Code: code, Message: message, HTTPStatus: httpStatus}
}

func wrapErr(code ErrorCode, message string, httpStatus int, err error) *SyncError {
	return &SyncError{Code: code, Message: message, HTTPStatus: httpStatus, Err: err}
}

// TransientIO wraps a retryable I/O error.
func TransientIO(operation string, err error) *SyncError {
	return wrapErr(ErrCodeTransientIO, "transient I/O failure", http.StatusBadGateway, err).
		WithDetails("operation", operation)
}

// PermanentIO marks a transient failure that exhausted MAX_ATTEMPTS.
func PermanentIO(operation string, attempts int, err error) *SyncError {
	return wrapErr(ErrCodePermanentIO, "I/O failure after max attempts", http.StatusBadGateway, err).
		WithDetails("operation", operation).
		WithDetails("attempts", attempts)
}

// AuthFailed marks a fatal authentication/refresh failure.
func AuthFailed(shortName string, err error) *SyncError {
	return wrapErr(ErrCodeAuth, "authentication failed", http.StatusUnauthorized, err).
		WithDetails("short_name", shortName)
}

// Validation marks a bad source/auth config, raised before any state change.
func Validation(field, reason string) *SyncError {
	return newErr(ErrCodeValidation, "validation failed", http.StatusBadRequest).
		WithDetails("field", field).
		WithDetails("reason", reason)
}

// EntityProcessing marks a per-entity failure that does not stop the job.
func EntityProcessing(entityID string, err error) *SyncError {
	return wrapErr(ErrCodeEntityProcessing, "entity processing failed", http.StatusOK, err).
		WithDetails("entity_id", entityID)
}

// DestinationFailed marks a per-destination write failure for one entity.
func DestinationFailed(destination, entityID string, err error) *SyncError {
	return wrapErr(ErrCodeDestination, "destination write failed", http.StatusBadGateway, err).
		WithDetails("destination", destination).
		WithDetails("entity_id", entityID)
}

// StateStoreFailed marks a fatal entity-state-store failure.
func StateStoreFailed(operation string, err error) *SyncError {
	return wrapErr(ErrCodeStateStore, "entity state store failed", http.StatusInternalServerError, err).
		WithDetails("operation", operation)
}

// CursorPersistenceFailed marks a fatal end-of-run cursor write failure.
func CursorPersistenceFailed(syncID string, err error) *SyncError {
	return wrapErr(ErrCodeCursorPersistence, "cursor persistence failed", http.StatusInternalServerError, err).
		WithDetails("sync_id", syncID)
}

// Cancelled marks a job terminated by context cancellation.
func Cancelled(jobID string) *SyncError {
	return newErr(ErrCodeCancelled, "job cancelled", http.StatusOK).
		WithDetails("job_id", jobID)
}

// DeadlineExceeded marks a job terminated by its deadline.
func DeadlineExceeded(jobID string) *SyncError {
	return newErr(ErrCodeDeadlineExceeded, "job timed out", http.StatusOK).
		WithDetails("job_id", jobID)
}

// IsSyncError reports whether err is (or wraps) a *SyncError.
func IsSyncError(err error) bool {
	var syncErr *SyncError
	return errors.As(err, &syncErr)
}

// As extracts a *SyncError from an error chain, or nil.
func As(err error) *SyncError {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr
	}
	return nil
}

// CodeOf returns the taxonomy code of err, or "" if err is not a SyncError.
func CodeOf(err error) ErrorCode {
	if se := As(err); se != nil {
		return se.Code
	}
	return ""
}
