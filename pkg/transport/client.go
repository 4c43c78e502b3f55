package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/rhuss/schach/pkg/api"
	"github.com/rhuss/schach/pkg/debug"
	"github.com/rhuss/schach/pkg/provider"
)

const (
	// DefaultTimeout bounds buffered requests.
	DefaultTimeout = 120 * time.Second

	maxResponseBody = 8 << 20
	maxErrorBody    = 64 << 10
)

// Codec is the part of a provider adapter the transport needs to decode
// vendor payloads.
type Codec interface {
	ParseResponse(body []byte) (api.CanonicalResponse, error)
	DecodeStreamEvent(data []byte) (provider.StreamDelta, error)
	ErrorMessage(body []byte) string
}

// UpdateFunc receives cumulative snapshots of a streamed response.
type UpdateFunc func(partial api.CanonicalResponse)

// Config holds HTTP client settings.
type Config struct {
	// Timeout for buffered requests. Defaults to DefaultTimeout. Streams are
	// bounded only by the caller's context.
	Timeout time.Duration

	// Transport overrides the HTTP round tripper (tests, proxies).
	Transport http.RoundTripper
}

// Client executes wire requests. It is safe for concurrent use.
type Client struct {
	httpClient   *http.Client
	streamClient *http.Client
}

// New creates a Client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		httpClient:   &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		streamClient: &http.Client{Transport: cfg.Transport},
	}
}

// Execute performs req. Streaming requests (req.Stream) push a snapshot to
// onUpdate after every content fragment; onUpdate may be nil.
func (c *Client) Execute(ctx context.Context, req *provider.WireRequest, codec Codec, onUpdate UpdateFunc) (api.CanonicalResponse, error) {
	if req == nil {
		return api.CanonicalResponse{}, api.NewConfigurationError("nil wire request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return api.CanonicalResponse{}, api.NewConfigurationError("build http request: %v", err)
	}
	httpReq.Header = req.Header.Clone()

	debug.Log("transport", "request",
		"method", req.Method,
		"url", RedactURL(req.URL),
		"stream", req.Stream,
		"body_bytes", len(req.Body),
	)
	debug.Trace("transport", "request body", "body", string(req.Body))

	client := c.httpClient
	if req.Stream {
		client = c.streamClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return api.CanonicalResponse{}, mapNetworkError(ctx, err)
	}
	defer resp.Body.Close()

	debug.Log("transport", "response", "status", resp.StatusCode, "content_type", resp.Header.Get("Content-Type"))

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		debug.Trace("transport", "error body", "body", string(body))
		return api.CanonicalResponse{}, ClassifyHTTPError(resp.StatusCode, resp.Header, body, codec.ErrorMessage(body))
	}

	if req.Stream && isEventStream(resp.Header.Get("Content-Type")) {
		return readStream(ctx, resp.Body, codec, onUpdate)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return api.CanonicalResponse{}, mapNetworkError(ctx, err)
	}
	debug.Trace("transport", "response body", "body", string(body))

	out, err := codec.ParseResponse(body)
	if err != nil {
		return out, classifyDecodeError(err, resp.StatusCode, body)
	}

	// A stream request answered with a plain body still yields one update.
	if req.Stream && onUpdate != nil {
		onUpdate(out)
	}
	return out, nil
}

func isEventStream(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "text/event-stream"
}

func mapNetworkError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return api.NewCancelledError(ctxErr)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return api.NewUpstreamError(0, "vendor request timed out", err)
	}
	return api.NewUpstreamError(0, fmt.Sprintf("vendor connection error: %s", err), err)
}

// RedactURL hides credentials carried in query parameters.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	q := u.Query()
	if q.Has("key") {
		q.Set("key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
