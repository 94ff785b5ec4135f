package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		code ErrorCode
		want int
	}{
		{"not authenticated", ErrCodeNotAuthenticated, http.StatusUnauthorized},
		{"access denied", ErrCodeAccessDenied, http.StatusForbidden},
		{"scanner not found", ErrCodeScannerNotFound, http.StatusNotFound},
		{"column not found", ErrCodeColumnNotFound, http.StatusNotFound},
		{"invalid scanner id", ErrCodeInvalidScannerID, http.StatusBadRequest},
		{"column id required", ErrCodeColumnIDRequired, http.StatusBadRequest},
		{"profile missing", ErrCodeProfileMissing, http.StatusBadRequest},
		{"no entities", ErrCodeNoEntities, http.StatusBadRequest},
		{"run in progress", ErrCodeRunInProgress, http.StatusConflict},
		{"query failed", ErrCodeQueryExecutionFailed, http.StatusInternalServerError},
		{"internal", ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.code))
		})
	}
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusConflict, StatusOf(NewRunInProgressError("sc-1")))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(fmt.Errorf("plain error")))
}

func TestStandardError_Error(t *testing.T) {
	err := NewScannerNotFoundError("sc-1")
	assert.Contains(t, err.Error(), "SCANNER_NOT_FOUND")
	assert.Contains(t, err.Details, "sc-1")
	assert.False(t, err.Retryable)
}
