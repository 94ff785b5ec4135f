// Package errors provides standardized error handling for the scoring API.
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeNotAuthenticated ErrorCode = "NOT_AUTHENTICATED"
	ErrCodeAccessDenied     ErrorCode = "ACCESS_DENIED"

	ErrCodeInvalidScannerID ErrorCode = "INVALID_SCANNER_ID"
	ErrCodeScannerNotFound  ErrorCode = "SCANNER_NOT_FOUND"
	ErrCodeColumnNotFound   ErrorCode = "COLUMN_NOT_FOUND"
	ErrCodeColumnIDRequired ErrorCode = "COLUMN_ID_REQUIRED"
	ErrCodeProfileMissing   ErrorCode = "PROFILE_MISSING"
	ErrCodeNoEntities       ErrorCode = "NO_ENTITIES"
	ErrCodeRunInProgress    ErrorCode = "RUN_IN_PROGRESS"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeScorePersistFailed       ErrorCode = "SCORE_PERSIST_FAILED"

	ErrCodeProviderCallFailed  ErrorCode = "PROVIDER_CALL_FAILED"
	ErrCodeProviderRateLimited ErrorCode = "PROVIDER_RATE_LIMITED"
	ErrCodeProviderBadOutput   ErrorCode = "PROVIDER_BAD_OUTPUT"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewNotAuthenticatedError creates a non-retryable authentication error.
func NewNotAuthenticatedError() *StandardError {
	return &StandardError{
		Code:      ErrCodeNotAuthenticated,
		Message:   "Not authenticated",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidScannerIDError creates a non-retryable validation error.
func NewInvalidScannerIDError(id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidScannerID,
		Message:   "Invalid scanner ID",
		Details:   fmt.Sprintf("scannerId: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewScannerNotFoundError covers both missing scanners and scanners owned by
// someone else; the two are deliberately indistinguishable to the caller.
func NewScannerNotFoundError(id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeScannerNotFound,
		Message:   "Scanner not found or access denied",
		Details:   fmt.Sprintf("scannerId: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewColumnNotFoundError creates a non-retryable column lookup error.
func NewColumnNotFoundError(columnID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeColumnNotFound,
		Message:   "Column not found in scanner",
		Details:   fmt.Sprintf("columnId: %s", columnID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewColumnIDRequiredError creates a non-retryable request validation error.
func NewColumnIDRequiredError() *StandardError {
	return &StandardError{
		Code:      ErrCodeColumnIDRequired,
		Message:   "columnId is required",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewProfileMissingError signals the base-context precondition failure.
func NewProfileMissingError() *StandardError {
	return &StandardError{
		Code:      ErrCodeProfileMissing,
		Message:   "No company profile found. Complete onboarding first.",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNoEntitiesError signals an empty entity set for the scanner's domain.
func NewNoEntitiesError(domain string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNoEntities,
		Message:   "No entities found to score",
		Details:   fmt.Sprintf("domain: %s", domain),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRunInProgressError signals that the scanner's single-flight lock is held.
func NewRunInProgressError(scannerID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRunInProgress,
		Message:   "A scoring run is already in progress for this scanner",
		Details:   fmt.Sprintf("scannerId: %s", scannerID),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewScorePersistFailedError creates a retryable persistence error.
func NewScorePersistFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeScorePersistFailed,
		Message:   "Failed to persist score entries",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderCallFailedError creates a per-entity provider failure.
func NewProviderCallFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderCallFailed,
		Message:   "Model provider call failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderBadOutputError creates a per-entity malformed output failure.
func NewProviderBadOutputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderBadOutput,
		Message:   "Model provider returned unparseable output",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected internal error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. HTTP Mapping
// ==========================

// HTTPStatus maps error codes onto the API's status code contract.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotAuthenticated:
		return http.StatusUnauthorized
	case ErrCodeAccessDenied:
		return http.StatusForbidden
	case ErrCodeScannerNotFound, ErrCodeColumnNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidScannerID, ErrCodeColumnIDRequired,
		ErrCodeProfileMissing, ErrCodeNoEntities:
		return http.StatusBadRequest
	case ErrCodeRunInProgress:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// StatusOf returns the HTTP status for any error, defaulting to 500.
func StatusOf(err error) int {
	if se, ok := err.(*StandardError); ok {
		return HTTPStatus(se.Code)
	}
	return http.StatusInternalServerError
}
