package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rhuss/schach/pkg/api"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind api.ErrorKind
		want int
	}{
		{kindInvalidRequest, http.StatusBadRequest},
		{api.KindConfiguration, http.StatusBadRequest},
		{kindNotFound, http.StatusNotFound},
		{api.KindRateLimited, http.StatusTooManyRequests},
		{api.KindExhausted, http.StatusUnprocessableEntity},
		{api.KindAuthentication, http.StatusBadGateway},
		{api.KindAPI, http.StatusBadGateway},
		{api.KindUpstream, http.StatusBadGateway},
		{api.KindMalformedResponse, http.StatusBadGateway},
		{api.KindCancelled, statusClientClosedRequest},
		{kindUnavailable, http.StatusServiceUnavailable},
		{api.KindIllegalMove, http.StatusInternalServerError},
		{"", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := HTTPStatus(tt.kind); got != tt.want {
				t.Errorf("HTTPStatus(%q) = %d, want %d", tt.kind, got, tt.want)
			}
		})
	}
}

func TestAsAPIError(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), api.NewIllegalMoveError("Ke9"))
	if got := asAPIError(wrapped); got.Kind != api.KindIllegalMove {
		t.Errorf("kind = %q, want illegal_move", got.Kind)
	}
	if got := asAPIError(context.Canceled); got.Kind != api.KindCancelled {
		t.Errorf("kind = %q, want cancelled", got.Kind)
	}
	if got := asAPIError(errors.New("boom")); got.Kind != api.KindUpstream || got.Message != "boom" {
		t.Errorf("got %+v", got)
	}
}

func TestWriteErrorRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	writeAPIError(rec, api.NewRateLimitedError(429, "slow down", 1500*time.Millisecond))

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}
