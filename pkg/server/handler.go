package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/rhuss/schach/pkg/api"
	"github.com/rhuss/schach/pkg/auth"
	"github.com/rhuss/schach/pkg/debug"
	"github.com/rhuss/schach/pkg/engine"
	"github.com/rhuss/schach/pkg/journal"
	"github.com/rhuss/schach/pkg/observability"
	"github.com/rhuss/schach/pkg/rules"
)

// ResolutionIDHeader names the resolution served by POST /v1/moves.
const ResolutionIDHeader = "X-Resolution-ID"

// MoveRequest is the body of POST /v1/moves.
type MoveRequest struct {
	Provider api.ProviderID `json:"provider"`
	Model    string         `json:"model"`

	// FEN is the position to move in.
	FEN string `json:"fen"`

	// History is the game so far in SAN. It only feeds the prompt.
	History []string `json:"history,omitempty"`

	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Stream      bool     `json:"stream,omitempty"`
}

// MoveResponse is the reply of POST /v1/moves, and the payload of the
// "outcome" SSE event.
type MoveResponse struct {
	ResolutionID string            `json:"resolution_id"`
	Status       api.OutcomeStatus `json:"status"`
	Move         string            `json:"move,omitempty"`
	Attempts     int               `json:"attempts"`

	// FEN and GameStatus describe the position after Move.
	FEN        string       `json:"fen,omitempty"`
	GameStatus rules.Status `json:"game_status,omitempty"`

	RetryAfterSeconds float64    `json:"retry_after_seconds,omitempty"`
	Error             *api.Error `json:"error,omitempty"`
}

// AttemptsResponse is the reply of GET /v1/moves/{id}/attempts.
type AttemptsResponse struct {
	ResolutionID string             `json:"resolution_id"`
	Attempts     []*journal.Attempt `json:"attempts"`
}

// ModelEntry is one row of GET /v1/models.
type ModelEntry struct {
	Provider api.ProviderID `json:"provider"`
	api.ModelDescriptor
	Configured bool `json:"configured"`
}

// ModelsResponse is the reply of GET /v1/models.
type ModelsResponse struct {
	Data []ModelEntry `json:"data"`
}

type moveHandler struct {
	engine   *engine.Engine
	store    journal.Store // nil when journaling is off
	inflight *InFlightRegistry
	keys     map[api.ProviderID]string
	defaults engine.Settings
	maxBody  int64
	logger   *slog.Logger
}

func (h *moveHandler) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/moves", h.handleResolve)
	mux.HandleFunc("DELETE /v1/moves/{id}", h.handleCancel)
	mux.HandleFunc("GET /v1/moves/{id}/attempts", h.handleAttempts)
	mux.HandleFunc("GET /v1/models", h.handleModels)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// handleResolve handles POST /v1/moves.
func (h *moveHandler) handleResolve(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			writeError(w, http.StatusUnsupportedMediaType, invalidRequest("Content-Type must be application/json"))
			return
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	var body MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				invalidRequest(fmt.Sprintf("request body too large (max %d bytes)", h.maxBody)))
			return
		}
		writeAPIError(w, invalidRequest("invalid JSON: "+err.Error()))
		return
	}

	req, board, apiErr := h.buildRequest(body)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	req.ResolutionID = api.NewResolutionID()
	w.Header().Set(ResolutionIDHeader, req.ResolutionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	h.inflight.Register(req.ResolutionID, cancel)
	defer h.inflight.Remove(req.ResolutionID)

	if id := auth.IdentityFromContext(r.Context()); id != nil {
		debug.Log("http", "resolution started", "resolution_id", req.ResolutionID,
			"subject", id.Subject, "tenant", id.TenantID)
	}

	if body.Stream || acceptsEventStream(r) {
		// MetricsMiddleware only counts streams announced by Accept.
		if !acceptsEventStream(r) {
			observability.StreamingConnections.Inc()
			defer observability.StreamingConnections.Dec()
		}
		req.Base.Streaming = true
		h.stream(ctx, w, req, board)
		return
	}

	out := h.engine.ResolveMove(ctx, req)
	resp := h.finish(out, board)
	status := http.StatusOK
	if resp.Error != nil {
		status = HTTPStatus(resp.Error.Kind)
		if resp.Error.Kind == api.KindRateLimited && out.RetryAfter > 0 {
			w.Header().Set("Retry-After", retryAfterSeconds(out.RetryAfter.Seconds()))
		}
	}
	writeJSON(w, status, resp)
}

// buildRequest validates body and prepares the engine request together with
// the board it runs against.
func (h *moveHandler) buildRequest(body MoveRequest) (engine.Request, *rules.Game, *api.Error) {
	switch {
	case body.Provider == "":
		return engine.Request{}, nil, invalidRequest("provider is required")
	case body.Model == "":
		return engine.Request{}, nil, invalidRequest("model is required")
	case body.FEN == "":
		return engine.Request{}, nil, invalidRequest("fen is required")
	}
	if _, _, err := h.engine.Registry().Resolve(body.Provider, body.Model); err != nil {
		return engine.Request{}, nil, asAPIError(err)
	}

	settings := h.defaults
	if body.Temperature != nil {
		if *body.Temperature < 0 || *body.Temperature > 2 {
			return engine.Request{}, nil, invalidRequest("temperature must be in [0, 2]")
		}
		settings.Temperature = *body.Temperature
	}
	if body.MaxTokens != nil {
		if *body.MaxTokens <= 0 {
			return engine.Request{}, nil, invalidRequest("max_tokens must be positive")
		}
		settings.TokenBudget = *body.MaxTokens
	}
	settings.Streaming = false
	settings.APIKey = h.keys[body.Provider]

	board, err := rules.FromFEN(body.FEN)
	if err != nil {
		return engine.Request{}, nil, invalidRequest(err.Error())
	}
	legal := board.LegalMoves()
	if len(legal) == 0 {
		return engine.Request{}, nil, invalidRequest("the position has no legal moves")
	}

	return engine.Request{
		Provider:   body.Provider,
		Model:      body.Model,
		Position:   board.FEN(),
		History:    body.History,
		LegalMoves: legal,
		Board:      board,
		Base:       settings,
	}, board, nil
}

// stream serves one resolution as SSE.
func (h *moveHandler) stream(ctx context.Context, w http.ResponseWriter, req engine.Request, board *rules.Game) {
	sse := newSSEWriter(w)
	if err := sse.start(); err != nil {
		h.logger.Warn("sse start failed", "resolution_id", req.ResolutionID, "error", err)
		return
	}

	updates, outcome := h.engine.Stream(ctx, req)
	for u := range updates {
		name := eventThinking
		if u.Retry {
			name = eventRetry
		}
		if err := sse.event(name, u); err != nil {
			debug.Log("http", "sse write failed", "resolution_id", req.ResolutionID, "error", err)
			// The client is gone. Keep draining so the engine can finish.
			continue
		}
	}

	resp := h.finish(<-outcome, board)
	if err := sse.event(eventOutcome, resp); err != nil {
		return
	}
	_ = sse.finish()
}

// finish converts an outcome and applies an accepted move to board.
func (h *moveHandler) finish(out api.Outcome, board *rules.Game) MoveResponse {
	resp := MoveResponse{
		ResolutionID: out.ResolutionID,
		Status:       out.Status,
		Move:         out.Move,
		Attempts:     out.Attempts,
	}
	if out.RetryAfter > 0 {
		resp.RetryAfterSeconds = out.RetryAfter.Seconds()
	}

	switch {
	case out.Accepted():
		status, err := board.Apply(out.Move)
		if err != nil {
			h.logger.Error("accepted move failed to apply", "resolution_id", out.ResolutionID, "move", out.Move, "error", err)
			resp.Error = asAPIError(err)
			return resp
		}
		resp.FEN = board.FEN()
		resp.GameStatus = status
	case out.Err != nil:
		resp.Error = asAPIError(out.Err)
	default:
		resp.Error = &api.Error{Kind: out.Kind(), Message: string(out.Status)}
	}
	return resp
}

// handleCancel handles DELETE /v1/moves/{id}.
func (h *moveHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !api.ValidateResolutionID(id) {
		writeAPIError(w, invalidRequest("malformed resolution ID"))
		return
	}
	if !h.inflight.Cancel(id) {
		writeAPIError(w, &api.Error{Kind: kindNotFound, Message: "resolution " + id + " is not running"})
		return
	}
	h.logger.Info("resolution cancelled by client", "resolution_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleAttempts handles GET /v1/moves/{id}/attempts.
func (h *moveHandler) handleAttempts(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotImplemented, invalidRequest("attempt journal is not enabled"))
		return
	}
	id := r.PathValue("id")
	if !api.ValidateResolutionID(id) {
		writeAPIError(w, invalidRequest("malformed resolution ID"))
		return
	}

	attempts, err := h.store.ListAttempts(r.Context(), id)
	if err != nil {
		if errors.Is(err, journal.ErrNotFound) {
			writeAPIError(w, &api.Error{Kind: kindNotFound, Message: "resolution " + id + " not found"})
			return
		}
		h.logger.Error("journal read failed", "resolution_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, &api.Error{Kind: kindInternal, Message: "journal read failed"})
		return
	}
	writeJSON(w, http.StatusOK, AttemptsResponse{ResolutionID: id, Attempts: attempts})
}

// handleModels handles GET /v1/models.
func (h *moveHandler) handleModels(w http.ResponseWriter, _ *http.Request) {
	resp := ModelsResponse{Data: []ModelEntry{}}
	for _, a := range h.engine.Registry().Adapters() {
		configured := h.keys[a.ID()] != "" || a.ID() == api.ProviderLocal
		for _, m := range a.Models() {
			resp.Data = append(resp.Data, ModelEntry{Provider: a.ID(), ModelDescriptor: m, Configured: configured})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHealth handles GET /healthz.
func (h *moveHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.HealthCheck(ctx); err != nil {
			h.logger.Warn("journal health check failed", "error", err)
			writeAPIError(w, &api.Error{Kind: kindUnavailable, Message: "journal unavailable"})
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func acceptsEventStream(r *http.Request) bool {
	return r.Header.Get("Accept") == "text/event-stream"
}
