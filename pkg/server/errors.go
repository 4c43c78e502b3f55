package server

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/rhuss/schach/pkg/api"
)

// Kinds for failures of the HTTP API itself rather than of a resolution.
const (
	kindInvalidRequest api.ErrorKind = "invalid_request"
	kindNotFound       api.ErrorKind = "not_found"
	kindUnavailable    api.ErrorKind = "unavailable"
	kindInternal       api.ErrorKind = "internal_error"
)

// statusClientClosedRequest is reported for cancelled resolutions.
const statusClientClosedRequest = 499

// HTTPStatus maps an error kind to the status of a buffered reply.
// Vendor-side failures become gateway errors; they are not the caller's fault.
func HTTPStatus(kind api.ErrorKind) int {
	switch kind {
	case kindInvalidRequest, api.KindConfiguration:
		return http.StatusBadRequest
	case kindNotFound:
		return http.StatusNotFound
	case api.KindRateLimited:
		return http.StatusTooManyRequests
	case api.KindExhausted:
		return http.StatusUnprocessableEntity
	case api.KindAuthentication, api.KindAPI, api.KindUpstream, api.KindMalformedResponse:
		return http.StatusBadGateway
	case api.KindCancelled:
		return statusClientClosedRequest
	case kindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// asAPIError classifies err for the wire.
func asAPIError(err error) *api.Error {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &api.Error{Kind: api.KindOf(err), Message: err.Error(), Err: err}
}

// writeError writes err in the ErrorResponse envelope with the given status.
func writeError(w http.ResponseWriter, status int, err *api.Error) {
	if err.Kind == api.KindRateLimited && err.RetryAfter > 0 {
		w.Header().Set("Retry-After", retryAfterSeconds(err.RetryAfter.Seconds()))
	}
	writeJSON(w, status, api.ErrorResponse{Error: err})
}

// writeAPIError writes err with the status derived from its kind.
func writeAPIError(w http.ResponseWriter, err *api.Error) {
	writeError(w, HTTPStatus(err.Kind), err)
}

func invalidRequest(msg string) *api.Error {
	return &api.Error{Kind: kindInvalidRequest, Message: msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func retryAfterSeconds(s float64) string {
	return strconv.Itoa(int(math.Ceil(s)))
}
