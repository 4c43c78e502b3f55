package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsRegistered(t *testing.T) {
	ProviderRequestsTotal.WithLabelValues("openai", "gpt-4o", "ok").Inc()
	ProviderLatency.WithLabelValues("openai", "gpt-4o").Observe(0.3)
	ResolutionsTotal.WithLabelValues("openai", "accepted").Inc()
	AttemptsTotal.WithLabelValues("openai", "accepted").Inc()
	EscalationsTotal.WithLabelValues("openai").Inc()
	RateLimitRejectedTotal.WithLabelValues("default").Inc()
	RequestsTotal.WithLabelValues("GET", "2xx", "/healthz").Inc()
	RequestDuration.WithLabelValues("GET", "/healthz").Observe(0.01)

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}

	expected := map[string]bool{
		"schach_requests_total":               false,
		"schach_request_duration_seconds":     false,
		"schach_streaming_connections_active": false,
		"schach_provider_requests_total":      false,
		"schach_provider_latency_seconds":     false,
		"schach_resolutions_total":            false,
		"schach_attempts_total":               false,
		"schach_escalations_total":            false,
		"schach_ratelimit_rejected_total":     false,
	}
	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}
	for name, found := range expected {
		if !found {
			t.Errorf("metric %q not found in default registry", name)
		}
	}
}

func TestMiddlewareRecordsRequestCount(t *testing.T) {
	before := counterValue(t, RequestsTotal, "POST", "2xx", "/v1/moves")

	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/v1/moves", nil))

	if after := counterValue(t, RequestsTotal, "POST", "2xx", "/v1/moves"); after-before != 1 {
		t.Errorf("expected request count to increase by 1, got delta=%f", after-before)
	}
}

func TestMiddlewareRecordsDuration(t *testing.T) {
	before := histogramCount(t, RequestDuration, "GET", "/v1/moves/{id}/attempts")

	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/v1/moves/res_abc/attempts", nil))

	if after := histogramCount(t, RequestDuration, "GET", "/v1/moves/{id}/attempts"); after-before != 1 {
		t.Errorf("expected histogram sample count to increase by 1, got delta=%d", after-before)
	}
}

func TestMiddlewareStreamingGauge(t *testing.T) {
	baseline := gaugeValue(t, StreamingConnections)

	inHandler := make(chan float64, 1)
	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inHandler <- gaugeValue(t, StreamingConnections)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/v1/moves", nil)
	req.Header.Set("Accept", "text/event-stream")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if during := <-inHandler; during != baseline+1 {
		t.Errorf("expected streaming gauge=%f during request, got %f", baseline+1, during)
	}
	if after := gaugeValue(t, StreamingConnections); after != baseline {
		t.Errorf("expected streaming gauge=%f after request, got %f", baseline, after)
	}
}

func TestMiddlewareCapturesStatusCode(t *testing.T) {
	before := counterValue(t, RequestsTotal, "DELETE", "4xx", "/v1/moves/{id}")

	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("DELETE", "/v1/moves/res_x", nil))

	if after := counterValue(t, RequestsTotal, "DELETE", "4xx", "/v1/moves/{id}"); after-before != 1 {
		t.Errorf("expected 4xx count to increase by 1, got delta=%f", after-before)
	}
}

func TestRoute(t *testing.T) {
	tests := map[string]string{
		"/v1/moves":                "/v1/moves",
		"/v1/moves/res_1":          "/v1/moves/{id}",
		"/v1/moves/res_1/attempts": "/v1/moves/{id}/attempts",
		"/v1/models":               "/v1/models",
		"/healthz":                 "/healthz",
		"/metrics":                 "/metrics",
		"/v1/responses":            "other",
		"/favicon.ico":             "other",
	}
	for path, want := range tests {
		if got := Route(path); got != want {
			t.Errorf("Route(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestStatusWriterFlush(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, status: http.StatusOK}
	sw.Flush()
	if !rec.Flushed {
		t.Error("expected underlying writer to be flushed")
	}
}

func counterValue(t *testing.T, cv *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	c, err := cv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting counter metric: %v", err)
	}
	if err := c.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing counter metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func histogramCount(t *testing.T, hv *prometheus.HistogramVec, labels ...string) uint64 {
	t.Helper()
	m := &dto.Metric{}
	obs, err := hv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting histogram metric: %v", err)
	}
	if err := obs.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing histogram metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		t.Fatalf("writing gauge metric: %v", err)
	}
	return m.GetGauge().GetValue()
}
