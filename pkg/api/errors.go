package api

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorKind is the canonical classification of a resolution failure.
type ErrorKind string

const (
	KindConfiguration     ErrorKind = "configuration_error"
	KindAuthentication    ErrorKind = "authentication_error"
	KindRateLimited       ErrorKind = "rate_limited"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindIllegalMove       ErrorKind = "illegal_move"
	KindUpstream          ErrorKind = "upstream_error"
	KindAPI               ErrorKind = "api_error"
	KindExhausted         ErrorKind = "exhausted"
	KindCancelled         ErrorKind = "cancelled"
)

// maxBodyCapture bounds how much of a vendor body is kept for diagnostics.
const maxBodyCapture = 4096

// Error is a classified failure. Transport and adapter failures are converted
// into Errors at their boundary so the retry controller only ever sees kinds.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`

	// Status is the HTTP status code, zero when no response was received.
	Status int `json:"status,omitempty"`

	// Body is the raw vendor body, captured even when it is not valid JSON.
	Body string `json:"body,omitempty"`

	RetryAfter time.Duration `json:"retry_after,omitempty"`

	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithBody attaches a raw body, truncated to a bounded size.
func (e *Error) WithBody(body []byte) *Error {
	if len(body) > maxBodyCapture {
		body = body[:maxBodyCapture]
	}
	e.Body = string(body)
	return e
}

// NewConfigurationError creates an Error for missing or invalid setup.
func NewConfigurationError(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

// NewAuthenticationError creates an Error for rejected credentials.
func NewAuthenticationError(status int, message string) *Error {
	return &Error{Kind: KindAuthentication, Status: status, Message: message}
}

// NewRateLimitedError creates an Error for vendor throttling.
func NewRateLimitedError(status int, message string, retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimited, Status: status, Message: message, RetryAfter: retryAfter}
}

// NewMalformedResponseError creates an Error for payloads lacking the expected structure.
func NewMalformedResponseError(message string, cause error) *Error {
	return &Error{Kind: KindMalformedResponse, Message: message, Err: cause}
}

// NewIllegalMoveError creates an Error for a candidate the rules engine rejected.
func NewIllegalMoveError(notation string) *Error {
	return &Error{Kind: KindIllegalMove, Message: fmt.Sprintf("move %q is not legal in this position", notation)}
}

// NewUpstreamError creates an Error for network failures and vendor 5xx responses.
func NewUpstreamError(status int, message string, cause error) *Error {
	return &Error{Kind: KindUpstream, Status: status, Message: message, Err: cause}
}

// NewAPIError creates an Error for vendor-reported error objects.
func NewAPIError(status int, message string) *Error {
	return &Error{Kind: KindAPI, Status: status, Message: message}
}

// NewExhaustedError creates the terminal Error for a ply that ran out of attempts.
func NewExhaustedError(attempts int, last error) *Error {
	return &Error{
		Kind:    KindExhausted,
		Message: fmt.Sprintf("no legal move after %d attempts", attempts),
		Err:     last,
	}
}

// NewCancelledError wraps a context error.
func NewCancelledError(cause error) *Error {
	return &Error{Kind: KindCancelled, Message: "resolution cancelled", Err: cause}
}

// KindOf returns the kind of err. Context errors map to KindCancelled and
// unclassified errors to KindUpstream.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindUpstream
}

// IsRetryable reports whether err may feed another attempt within the ply.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindMalformedResponse, KindIllegalMove, KindUpstream:
		return true
	default:
		return false
	}
}

// ErrorResponse is the JSON envelope used by the HTTP API.
type ErrorResponse struct {
	Error *Error `json:"error"`
}
