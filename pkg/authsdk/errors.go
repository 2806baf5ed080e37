package authsdk

import (
	"errors"
	"fmt"
	"time"
)

// Category groups auth failures by how the application should react to them.
type Category string

const (
	CategoryAuthentication Category = "authentication"
	CategoryValidation     Category = "validation"
	CategoryNetwork        Category = "network"
	CategoryServer         Category = "server"
	CategoryRateLimit      Category = "rate_limit"
	CategoryPermission     Category = "permission"
	CategoryUnknown        Category = "unknown"
)

// Severity indicates how loudly a failure should be surfaced.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Wire error codes returned by the platform's identity endpoints, plus the
// codes the SDK synthesises locally.
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeInvalidGrant       = "invalid_grant"
	CodeValidationFailed   = "validation_failed"
	CodePermissionDenied   = "permission_denied"
	CodeRateLimited        = "rate_limited"
	CodeServerError        = "server_error"
	CodeNetworkError       = "network_error"
	CodeUnknownError       = "unknown_error"

	// Local codes (no HTTP exchange behind them).
	CodeNotAuthenticated = "not_authenticated"
	CodeSessionClosed    = "session_closed"
)

// AuthError is the classified form of every failure the session layer
// reports. Instances are created fresh per failure and never mutated; the
// retry policy reads Retryable/RetryAfter, the UI layer reads Message and
// Suggestions.
type AuthError struct {
	Category Category
	Severity Severity

	// Code is the machine-readable error code, either from the wire or
	// synthesised locally.
	Code string

	// Message is safe to show to an end user.
	Message string

	// Suggestions are short remediation hints for the UI layer.
	Suggestions []string

	// Retryable reports whether the session manager may transparently retry.
	Retryable bool

	// RetryAfter is the server-suggested wait before retrying. Zero means
	// the retry policy picks its own delay.
	RetryAfter time.Duration

	// HTTPStatus is the originating status code, or 0 for transport and
	// local failures.
	HTTPStatus int

	cause error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Code, e.Category, e.Message, e.cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Code, e.Category, e.Message)
}

// Unwrap exposes the underlying transport error, if any.
func (e *AuthError) Unwrap() error { return e.cause }

// AsAuthError extracts an *AuthError from err's chain.
func AsAuthError(err error) (*AuthError, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsRetryable reports whether err is a classified, retryable auth failure.
func IsRetryable(err error) bool {
	ae, ok := AsAuthError(err)
	return ok && ae.Retryable
}

func errNotAuthenticated() *AuthError {
	return &AuthError{
		Category:    CategoryAuthentication,
		Severity:    SeverityMedium,
		Code:        CodeNotAuthenticated,
		Message:     "You are not signed in.",
		Suggestions: []string{"Sign in to continue."},
	}
}

func errSessionClosed() *AuthError {
	return &AuthError{
		Category:    CategoryAuthentication,
		Severity:    SeverityMedium,
		Code:        CodeSessionClosed,
		Message:     "Your session ended before the request completed.",
		Suggestions: []string{"Sign in again to continue."},
	}
}

func errValidation(msg string, suggestions ...string) *AuthError {
	return &AuthError{
		Category:    CategoryValidation,
		Severity:    SeverityLow,
		Code:        CodeValidationFailed,
		Message:     msg,
		Suggestions: suggestions,
	}
}
