package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Configuration
	ErrCodeConfigurationMissing ErrorCode = "CONFIGURATION_MISSING"

	// Authentication & Authorization
	ErrCodeUnauthenticated ErrorCode = "UNAUTHENTICATED"
	ErrCodeInvalidToken    ErrorCode = "INVALID_TOKEN"
	ErrCodeUnauthorized    ErrorCode = "UNAUTHORIZED"

	// Validation
	ErrCodeBadRequest      ErrorCode = "BAD_REQUEST"
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED"

	// Resource
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	ErrCodeConflict ErrorCode = "CONFLICT"

	// Rate Limiting
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Channel provider
	ErrCodeTokenExchangeFailed ErrorCode = "TOKEN_EXCHANGE_FAILED"
	ErrCodeRefreshFailed       ErrorCode = "REFRESH_FAILED"
	ErrCodeUpstream            ErrorCode = "UPSTREAM_FAILURE"

	// Internal
	ErrCodePersistence ErrorCode = "PERSISTENCE_FAILURE"
	ErrCodeInternal    ErrorCode = "INTERNAL_ERROR"
)

// AppError is a structured error that can be returned to clients
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Common error constructors

func ConfigurationMissing(what string) *AppError {
	return New(ErrCodeConfigurationMissing, fmt.Sprintf("%s is not configured", what))
}

func Unauthenticated() *AppError {
	return New(ErrCodeUnauthenticated, "Authentication required")
}

func InvalidToken(message string) *AppError {
	return New(ErrCodeInvalidToken, message)
}

// Unauthorized means the caller is authenticated but does not own the resource.
func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func BadRequest(message string) *AppError {
	return New(ErrCodeBadRequest, message)
}

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func MissingRequired(field string) *AppError {
	return New(ErrCodeMissingRequired, fmt.Sprintf("%s is required", field))
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func Conflict(message string) *AppError {
	return New(ErrCodeConflict, message)
}

func RateLimitExceeded() *AppError {
	return New(ErrCodeRateLimitExceeded, "Rate limit exceeded")
}

// TokenExchangeFailed carries the provider's error body verbatim.
func TokenExchangeFailed(providerBody string) *AppError {
	return New(ErrCodeTokenExchangeFailed, "Failed to exchange authorization code").
		WithDetails(map[string]string{"providerError": providerBody})
}

// RefreshFailed tells the caller the account must be reconnected.
func RefreshFailed(cause error) *AppError {
	return Wrap(ErrCodeRefreshFailed, "Failed to refresh channel token", cause).
		WithDetails(map[string]bool{"reconnectRequired": true})
}

func Upstream(service string, cause error) *AppError {
	return Wrap(ErrCodeUpstream, fmt.Sprintf("Upstream service error: %s", service), cause)
}

func Persistence(cause error) *AppError {
	return Wrap(ErrCodePersistence, "Failed to persist data", cause)
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the error code if the error is an AppError, otherwise returns ErrCodeInternal
func GetCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}
