package authsdk

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// defaultRateLimitDelay is used for 429 responses that carry no Retry-After
// hint.
const defaultRateLimitDelay = 2 * time.Second

// wireError is the JSON error envelope the identity endpoints return.
type wireError struct {
	Error            string            `json:"error"`
	ErrorDescription string            `json:"error_description"`
	Details          map[string]string `json:"details,omitempty"`
	RetryAfterMS     int64             `json:"retry_after_ms,omitempty"`
}

// Classify maps an HTTP failure response into an AuthError. It is a pure
// function of the status code, headers and body; no policy decisions are
// made here beyond marking retryability.
func Classify(status int, header http.Header, body []byte) *AuthError {
	we := decodeWireError(body)

	switch {
	case status == http.StatusUnauthorized:
		return &AuthError{
			Category:    CategoryAuthentication,
			Severity:    SeverityHigh,
			Code:        codeOr(we.Error, CodeInvalidCredentials),
			Message:     messageOr(we.ErrorDescription, "Your credentials were rejected."),
			Suggestions: []string{"Check your email and password, then try again."},
			HTTPStatus:  status,
		}

	case status == http.StatusForbidden:
		return &AuthError{
			Category:    CategoryPermission,
			Severity:    SeverityHigh,
			Code:        codeOr(we.Error, CodePermissionDenied),
			Message:     messageOr(we.ErrorDescription, "You do not have permission to do that."),
			Suggestions: []string{"Contact your workspace owner if you believe this is a mistake."},
			HTTPStatus:  status,
		}

	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return &AuthError{
			Category:    CategoryValidation,
			Severity:    SeverityLow,
			Code:        codeOr(we.Error, CodeValidationFailed),
			Message:     messageOr(we.ErrorDescription, "The request was rejected as invalid."),
			Suggestions: fieldSuggestions(we.Details),
			HTTPStatus:  status,
		}

	case status == http.StatusTooManyRequests:
		return &AuthError{
			Category:    CategoryRateLimit,
			Severity:    SeverityMedium,
			Code:        codeOr(we.Error, CodeRateLimited),
			Message:     messageOr(we.ErrorDescription, "Too many attempts. Please slow down."),
			Suggestions: []string{"Wait a moment before trying again."},
			Retryable:   true,
			RetryAfter:  retryAfterHint(header, we),
			HTTPStatus:  status,
		}

	case status >= 500:
		return &AuthError{
			Category:    CategoryServer,
			Severity:    SeverityHigh,
			Code:        codeOr(we.Error, CodeServerError),
			Message:     messageOr(we.ErrorDescription, "The service hit an internal error."),
			Suggestions: []string{"Try again shortly."},
			Retryable:   true,
			HTTPStatus:  status,
		}

	default:
		// Fail closed: an unrecognised status is not retried.
		return &AuthError{
			Category:   CategoryUnknown,
			Severity:   SeverityMedium,
			Code:       codeOr(we.Error, CodeUnknownError),
			Message:    messageOr(we.ErrorDescription, "Something unexpected went wrong."),
			HTTPStatus: status,
		}
	}
}

// ClassifyTransport maps a connection-level failure (DNS, refused, timeout,
// cancelled context) into an AuthError.
func ClassifyTransport(err error) *AuthError {
	return &AuthError{
		Category:    CategoryNetwork,
		Severity:    SeverityMedium,
		Code:        CodeNetworkError,
		Message:     "Could not reach the service.",
		Suggestions: []string{"Check your connection and try again."},
		Retryable:   true,
		cause:       err,
	}
}

func decodeWireError(body []byte) wireError {
	var we wireError
	if len(body) > 0 {
		_ = json.Unmarshal(body, &we)
	}
	return we
}

// retryAfterHint extracts a server-provided backoff hint, preferring the
// Retry-After header (delta-seconds form) over the JSON body.
func retryAfterHint(header http.Header, we wireError) time.Duration {
	if v := header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}

	if we.RetryAfterMS > 0 {
		return time.Duration(we.RetryAfterMS) * time.Millisecond
	}

	return defaultRateLimitDelay
}

func fieldSuggestions(details map[string]string) []string {
	if len(details) == 0 {
		return []string{"Review the highlighted fields and try again."}
	}

	out := make([]string, 0, len(details))
	for field, msg := range details {
		out = append(out, field+": "+msg)
	}
	return out
}

func codeOr(code, fallback string) string {
	if code != "" {
		return code
	}
	return fallback
}

func messageOr(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}
