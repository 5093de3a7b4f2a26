// Package errors provides standardized error handling for the migration stages.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeTokenRequestFailed ErrorCode = "TOKEN_REQUEST_FAILED"
	ErrCodeCSRFFetchFailed    ErrorCode = "CSRF_FETCH_FAILED"

	ErrCodeAPIRequestFailed ErrorCode = "API_REQUEST_FAILED"
	ErrCodeDecodeFailed     ErrorCode = "DECODE_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeBulkInsertFailed         ErrorCode = "BULK_INSERT_FAILED"

	ErrCodeConfigInvalid  ErrorCode = "CONFIG_INVALID"
	ErrCodeSystemNotFound ErrorCode = "SYSTEM_NOT_FOUND"

	ErrCodeDownloadIncomplete ErrorCode = "DOWNLOAD_INCOMPLETE"
	ErrCodeExportNotReady     ErrorCode = "EXPORT_NOT_READY"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// APIError wraps a non-2xx response from any of the SAP systems. The response
// body is kept verbatim so failures can be diagnosed from logs alone.
type APIError struct {
	Endpoint   string `json:"endpoint"`
	StatusCode int    `json:"statusCode"`
	Response   string `json:"response"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s failed with status %d: %s", e.Endpoint, e.StatusCode, e.Response)
}

// NewAPIError creates an APIError for the given endpoint and response.
func NewAPIError(endpoint string, statusCode int, response string) *APIError {
	return &APIError{Endpoint: endpoint, StatusCode: statusCode, Response: response}
}

// IsUnauthorized reports whether err is an APIError with status 401.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// NewTokenRequestFailedError creates a retryable token endpoint error.
func NewTokenRequestFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTokenRequestFailed,
		Message:   "Failed to obtain access token",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCSRFFetchFailedError creates a retryable csrf token fetch error.
func NewCSRFFetchFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCSRFFetchFailed,
		Message:   "Failed to fetch csrf token",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewBulkInsertFailedError creates a retryable bulk insert error.
func NewBulkInsertFailedError(table string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBulkInsertFailed,
		Message:   "Bulk insert failed",
		Details:   fmt.Sprintf("table: %s, error: %s", table, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewConfigInvalidError creates a non-retryable configuration error.
func NewConfigInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigInvalid,
		Message:   "Invalid configuration",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSystemNotFoundError creates a non-retryable error for a missing system entry.
func NewSystemNotFoundError(systemType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSystemNotFound,
		Message:   "System not configured",
		Details:   fmt.Sprintf("systemType: %s", systemType),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// IsTransientHTTPError returns true if the HTTP status code indicates a
// potentially transient error.
func IsTransientHTTPError(statusCode int) bool {
	switch statusCode {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
