// Package server exposes move resolution over HTTP.
//
// # Endpoints
//
//   - POST /v1/moves resolves one move. The body names the player
//     (provider and model) and the position as FEN. With "stream": true
//     the reply is a Server-Sent Events stream of "thinking" and "retry"
//     events followed by a single "outcome" event and "data: [DONE]".
//   - DELETE /v1/moves/{id} cancels an in-flight resolution.
//   - GET /v1/moves/{id}/attempts returns the journaled attempts.
//   - GET /v1/models lists the catalog of every registered provider.
//   - GET /healthz reports liveness and journal health.
//   - GET /metrics serves Prometheus metrics when enabled.
//
// Every reply carries X-Resolution-ID for POST /v1/moves so a client can
// cancel a running stream. Vendor API keys live in the server
// configuration; requests never carry them.
//
// # Middleware
//
// Requests pass through panic recovery, request ID propagation
// (X-Request-ID), access logging via log/slog, Prometheus HTTP metrics and,
// when configured, authentication. Routing uses net/http ServeMux method
// and wildcard patterns.
package server
