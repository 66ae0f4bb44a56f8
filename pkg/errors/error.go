// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Validation errors (100-199): Invalid intervals, strategies, parameters
//   - Resource errors (200-299): Records not found, store query failures
//   - Rate limiting errors (300-399): Call-rate and strategy-quota denials
//   - Scheduler errors (400-499): Job registration and lookup errors
//   - Execution errors (500-599): Faults during live signal checks
//   - Market data errors (700-799): Price feed fetching and parsing errors
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeInvalidInterval, "unsupported interval")
//
//	// Create a formatted error
//	err := errors.Newf(errors.ErrCodeNotFound, "no strategy with id %s", id)
//
//	// Wrap an existing error
//	err := errors.Wrap(errors.ErrCodeQueryFailed, "failed to count strategies", originalErr)
//
//	// Check error code
//	if errors.HasCode(err, errors.ErrCodeNotFound) { ... }
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around the standard errors.Is function.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard errors.As function.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from an error if it's an *Error type.
// Returns ErrCodeUnknown if the error is not an *Error type.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// HTTPStatus maps an error to the HTTP status code the API layer reports.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case ErrCodeInvalidParameter, ErrCodeInvalidInterval, ErrCodeInvalidStrategy,
		ErrCodeInvalidPeriod, ErrCodeInvalidCapital, ErrCodeInvalidType,
		ErrCodeMissingParameter, ErrCodeInsufficientData, ErrCodeQuotaExceeded:
		return http.StatusBadRequest
	case ErrCodeNotFound, ErrCodeNotOwned, ErrCodeJobNotFound:
		return http.StatusNotFound
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeDataUnavailable, ErrCodeMarketDataFetchFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// RateLimitError reports a denied call together with the delay after which
// the caller may retry. RetryAfter is derived from the oldest call that is
// still inside the sliding window.
type RateLimitError struct {
	RetryAfter int // seconds until capacity is available again
	Limit      int // maximum calls allowed per window
	Message    string
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(retryAfter, limit int) *RateLimitError {
	return &RateLimitError{
		RetryAfter: retryAfter,
		Limit:      limit,
		Message: fmt.Sprintf(
			"rate limit exceeded: maximum %d calls per minute, retry in %d seconds",
			limit, retryAfter),
	}
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return e.Message
}

// IsRateLimitError checks if an error is a RateLimitError.
// It uses errors.As to check the error chain.
func IsRateLimitError(err error) bool {
	var rateErr *RateLimitError

	return errors.As(err, &rateErr)
}

// InsufficientDataError represents an error when a price series does not
// contain enough bars for the strategy's required lookback.
type InsufficientDataError struct {
	Required int    // Minimum bars required
	Actual   int    // Actual bars available
	Symbol   string // Optional: symbol context
	Message  string // Human-readable message
}

// NewInsufficientDataErrorf creates a new InsufficientDataError with a formatted message.
func NewInsufficientDataErrorf(required, actual int, symbol, format string, args ...any) *InsufficientDataError {
	return &InsufficientDataError{
		Required: required,
		Actual:   actual,
		Symbol:   symbol,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *InsufficientDataError) Error() string {
	return e.Message
}

// IsInsufficientDataError checks if an error is an InsufficientDataError.
func IsInsufficientDataError(err error) bool {
	var insufficientErr *InsufficientDataError

	return errors.As(err, &insufficientErr)
}
