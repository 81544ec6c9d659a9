package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode identifies a class of failure in the extraction pipeline
type ErrorCode string

const (
	// ErrCodeInternal marks defects inside the pipeline itself, e.g. a
	// non-unique table index after merge. Fatal, never retried.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"

	// ErrCodeValidation marks a malformed or inconsistent data request.
	// Fatal, surfaced immediately, no retry.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"

	// ErrCodeSourceUnavailable marks a transient provider failure
	// (network, auth, rate limit). Retried with backoff, then downgraded
	// to an unresolved coverage gap.
	ErrCodeSourceUnavailable ErrorCode = "SOURCE_UNAVAILABLE"

	// ErrCodeUnsupportedRequest marks a request slice an adapter discovered
	// at call time it cannot serve. Not retried, recorded as a coverage gap.
	ErrCodeUnsupportedRequest ErrorCode = "UNSUPPORTED_REQUEST"

	// ErrCodeSchemaMapping marks an unexpected provider payload shape.
	// Fatal for that provider's contribution, not for the whole request.
	ErrCodeSchemaMapping ErrorCode = "SCHEMA_MAPPING_ERROR"

	// ErrCodeTimeout marks an extraction that exceeded the caller's budget.
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// ErrCodeRateLimit marks a call rejected by the per-provider budget.
	ErrCodeRateLimit ErrorCode = "RATE_LIMIT"

	// ErrCodeCacheOperation marks a cache backend failure. The pipeline
	// degrades to uncached operation rather than failing the request.
	ErrCodeCacheOperation ErrorCode = "CACHE_OPERATION_ERROR"
)

// ErrorSeverity ranks how bad a failure is for the run
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "low"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityHigh     ErrorSeverity = "high"
	SeverityCritical ErrorSeverity = "critical"
)

// AppError is the application error carried through the pipeline
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Severity  ErrorSeverity          `json:"severity"`
	Timestamp time.Time              `json:"timestamp"`
	Provider  string                 `json:"provider,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Cause     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the error code to an HTTP status for the API surface
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeUnsupportedRequest:
		return http.StatusUnprocessableEntity
	case ErrCodeTimeout:
		return http.StatusRequestTimeout
	case ErrCodeRateLimit:
		return http.StatusTooManyRequests
	case ErrCodeSourceUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new application error
func New(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Severity:  severityByCode(code),
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// Newf creates a new application error with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// WithProvider tags the error with the provider it came from
func (e *AppError) WithProvider(provider string) *AppError {
	e.Provider = provider
	return e
}

// WithContext attaches a key/value pair to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func severityByCode(code ErrorCode) ErrorSeverity {
	switch code {
	case ErrCodeInternal:
		return SeverityCritical
	case ErrCodeSchemaMapping, ErrCodeTimeout:
		return SeverityHigh
	case ErrCodeSourceUnavailable, ErrCodeRateLimit, ErrCodeCacheOperation:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// IsRetryable reports whether the orchestrator should retry the failed call
func (e *AppError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeSourceUnavailable, ErrCodeRateLimit:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether err is a retryable application error
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.IsRetryable()
	}
	return false
}

// IsCode reports whether err carries the given error code
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the error code of err, or ErrCodeInternal for foreign errors
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// Wrap converts a foreign error into an application error, passing
// existing application errors through unchanged
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(code, message, err)
}
