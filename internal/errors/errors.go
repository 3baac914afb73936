// Package errors provides error code definitions for the sync engine.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a unique error code surfaced to operators and logs.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrDuplicate  ErrorCode = "DUPLICATE"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Database errors
	ErrDatabase   ErrorCode = "DATABASE_ERROR"
	ErrMigration  ErrorCode = "MIGRATION_FAILED"
	ErrConstraint ErrorCode = "CONSTRAINT_VIOLATION"

	// Sync taxonomy (see dispatcher outcome classification)
	ErrSyncValidation     ErrorCode = "SYNC_VALIDATION_ERROR"
	ErrDependencyNotReady ErrorCode = "DEPENDENCY_NOT_READY"
	ErrTransient          ErrorCode = "TRANSIENT_ERROR"
	ErrSyncConflict       ErrorCode = "SYNC_CONFLICT"
	ErrRetryExhausted     ErrorCode = "RETRY_EXHAUSTED"
	ErrSyncFailed         ErrorCode = "SYNC_FAILED"
	ErrSyncInProgress     ErrorCode = "SYNC_IN_PROGRESS"

	// Queue errors
	ErrQueueItemNotFound ErrorCode = "QUEUE_ITEM_NOT_FOUND"
	ErrDeadLetterOnly    ErrorCode = "DEAD_LETTER_ONLY"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error carries a specific code, traversing wrapped errors.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the code carried by err, or ErrInternal when none is found.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// IsRetryable reports whether the dispatcher may attempt the operation
// again. Validation failures and exhausted retries are final; a
// dependency-not-ready condition retries, but only after its dependency
// has had a chance to sync.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case ErrTransient, ErrDependencyNotReady:
		return true
	}
	return false
}
