package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MetricsMiddleware wraps an HTTP handler to record request metrics:
//   - schach_requests_total per request with method, status class, and route
//   - schach_request_duration_seconds with method and route
//   - schach_streaming_connections_active while an SSE request is in flight
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if r.Header.Get("Accept") == "text/event-stream" {
			StreamingConnections.Inc()
			defer StreamingConnections.Dec()
		}

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := Route(r.URL.Path)
		statusStr := strconv.Itoa(sw.status/100) + "xx"

		RequestsTotal.WithLabelValues(r.Method, statusStr, route).Inc()
		RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Route collapses a request path into a bounded label value. Resolution IDs
// never become label values.
func Route(path string) string {
	switch {
	case path == "/v1/moves":
		return "/v1/moves"
	case strings.HasPrefix(path, "/v1/moves/") && strings.HasSuffix(path, "/attempts"):
		return "/v1/moves/{id}/attempts"
	case strings.HasPrefix(path, "/v1/moves/"):
		return "/v1/moves/{id}"
	case path == "/v1/models", path == "/healthz", path == "/metrics":
		return path
	default:
		return "other"
	}
}

// statusWriter captures the status code.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.written {
		w.status = status
		w.written = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.written = true
	return w.ResponseWriter.Write(b)
}

// Flush is required for SSE responses.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the original writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
