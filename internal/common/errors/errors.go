// Package errors provides the standardized error taxonomy used across the test generation services.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeBackendUnavailable     ErrorCode = "BACKEND_UNAVAILABLE"
	ErrCodeBackendError           ErrorCode = "BACKEND_ERROR"
	ErrCodeMalformedResponse      ErrorCode = "MALFORMED_RESPONSE"
	ErrCodeUpstreamServiceFailure ErrorCode = "UPSTREAM_SERVICE_FAILURE"
	ErrCodeInvalidRequest         ErrorCode = "INVALID_REQUEST"
	ErrCodeCollectionFailed       ErrorCode = "COLLECTION_FAILED"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
)

type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// LogFields returns the structured fields every log line about e carries.
func (e *StandardError) LogFields() map[string]interface{} {
	return map[string]interface{}{
		"errorCode":     string(e.Code),
		"message":       e.Message,
		"details":       e.Details,
		"retryable":     e.Retryable,
		"errorCategory": GetErrorCategory(e.Code),
	}
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func NewBackendUnavailableError(backend string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBackendUnavailable,
		Message:   fmt.Sprintf("LLM backend '%s' unavailable", backend),
		Details:   errDetails(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewBackendError(backend string, statusCode int, body string) *StandardError {
	return &StandardError{
		Code:      ErrCodeBackendError,
		Message:   fmt.Sprintf("LLM backend '%s' returned status %d", backend, statusCode),
		Details:   body,
		Retryable: statusCode >= 500,
		Metadata:  map[string]interface{}{"statusCode": statusCode},
		Timestamp: time.Now().UTC(),
	}
}

// NewMalformedResponseError is recorded in logs only; the pipeline recovers with a fallback payload.
func NewMalformedResponseError(envelope string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMalformedResponse,
		Message:   fmt.Sprintf("LLM response is not a valid %s envelope", envelope),
		Details:   errDetails(err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewUpstreamServiceFailureError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstreamServiceFailure,
		Message:   fmt.Sprintf("%s failed", operation),
		Details:   errDetails(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Invalid request",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewCollectionFailedError(sink string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCollectionFailed,
		Message:   fmt.Sprintf("Data collection sink '%s' failed", sink),
		Details:   errDetails(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

type unavailableBackend interface {
	error
	BackendName() string
	Is(target error) bool
}

type statusBackend interface {
	error
	BackendName() string
	BackendStatus() (int, string)
}

// FromBackendError classifies an LLM client error. Errors that are neither an
// unreachable backend nor a non-2xx answer become UPSTREAM_SERVICE_FAILURE for operation.
func FromBackendError(operation string, err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	var status statusBackend
	if stderrors.As(err, &status) {
		code, body := status.BackendStatus()
		stdErr = NewBackendError(status.BackendName(), code, body)
		stdErr.cause = err
		return stdErr
	}
	var unavailable unavailableBackend
	if stderrors.As(err, &unavailable) {
		return NewBackendUnavailableError(unavailable.BackendName(), err)
	}
	return NewUpstreamServiceFailureError(operation, err)
}

// HTTPStatus maps an error code onto the status returned to external callers.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case ErrCodeBackendUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeBackendError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	switch code {
	case ErrCodeBackendUnavailable, ErrCodeUpstreamServiceFailure, ErrCodeCollectionFailed:
		return true
	default:
		return false
	}
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "BACKEND") || strings.Contains(codeStr, "MALFORMED"):
		return "LLM"
	case strings.Contains(codeStr, "UPSTREAM"):
		return "ORCHESTRATION"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	case strings.Contains(codeStr, "COLLECTION"):
		return "COLLECTION"
	default:
		return "OTHER"
	}
}
