package transport

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rhuss/schach/pkg/api"
)

var (
	authPhrases = []string{
		"api key", "api_key", "x-api-key", "unauthorized", "unauthenticated",
		"authentication", "permission denied", "invalid_api_key",
	}
	rateLimitPhrases = []string{
		"rate limit", "rate_limit", "too many requests", "quota", "resource_exhausted", "resource exhausted",
	}
)

// ClassifyHTTPError converts a vendor error response into the canonical
// taxonomy. vendorMessage is the message the adapter found in body, if any;
// the raw body is always attached.
func ClassifyHTTPError(status int, header http.Header, body []byte, vendorMessage string) *api.Error {
	msg := vendorMessage
	if msg == "" {
		msg = strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	var e *api.Error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e = api.NewAuthenticationError(status, msg)
	case status == http.StatusTooManyRequests:
		e = api.NewRateLimitedError(status, msg, parseRetryAfter(header.Get("Retry-After"), time.Now()))
	case status == http.StatusNotFound:
		e = &api.Error{Kind: api.KindConfiguration, Status: status, Message: msg}
	case status >= http.StatusInternalServerError:
		e = api.NewUpstreamError(status, msg, nil)
	default:
		e = classifyMessage(status, msg)
	}
	return e.WithBody(body)
}

// classifyMessage maps vendor messages that signal auth or throttling
// problems behind generic statuses (Gemini answers a bad key with 400).
func classifyMessage(status int, msg string) *api.Error {
	lower := strings.ToLower(msg)
	for _, p := range authPhrases {
		if strings.Contains(lower, p) {
			return api.NewAuthenticationError(status, msg)
		}
	}
	for _, p := range rateLimitPhrases {
		if strings.Contains(lower, p) {
			return api.NewRateLimitedError(status, msg, 0)
		}
	}
	return api.NewAPIError(status, msg)
}

// classifyDecodeError refines errors returned by a codec for a 2xx body.
func classifyDecodeError(err error, status int, body []byte) error {
	var e *api.Error
	if !errors.As(err, &e) {
		return api.NewMalformedResponseError("decode vendor response", err).WithBody(body)
	}
	if e.Kind == api.KindAPI {
		e = classifyMessage(status, e.Message)
	}
	if e.Body == "" {
		e.WithBody(body)
	}
	return e
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now).Round(time.Second)
	}
	return 0
}
