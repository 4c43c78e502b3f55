package mockvendor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rhuss/schach/pkg/auth"
	"github.com/rhuss/schach/pkg/provider/openaicompat"
)

// Config configures the mock.
type Config struct {
	// DefaultMode answers models not named after a mode. Default: Legal.
	DefaultMode Mode

	// APIKey, when set, is required as a bearer token.
	APIKey string

	// TokenDelay paces streamed chunks.
	TokenDelay time.Duration

	// RetryAfter is sent with rate-limit replies. Default: 5s.
	RetryAfter time.Duration
}

// Server is the mock vendor. Mount it at the root; it serves
// /v1/chat/completions, /v1/models and /healthz.
type Server struct {
	cfg      Config
	mux      *http.ServeMux
	requests atomic.Int64
}

// New creates a Server.
func New(cfg Config) *Server {
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = Legal
	}
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = 5 * time.Second
	}

	s := &Server{cfg: cfg, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /v1/chat/completions", s.handleChat)
	s.mux.HandleFunc("GET /v1/models", s.handleModels)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Requests returns the number of chat requests served.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)

	if s.cfg.APIKey != "" {
		if token, ok := auth.BearerToken(r); !ok || token != s.cfg.APIKey {
			writeError(w, http.StatusUnauthorized, "Incorrect API key provided.", "invalid_request_error")
			return
		}
	}

	var req openaicompat.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "invalid_request_error")
		return
	}

	mode := modeFor(req.Model, s.cfg.DefaultMode)
	slog.Debug("mock vendor request", "model", req.Model, "mode", mode, "stream", req.Stream)

	switch mode {
	case Error:
		writeError(w, http.StatusInternalServerError, "mock upstream failure", "server_error")
		return
	case RateLimit:
		w.Header().Set("Retry-After", strconv.Itoa(int(s.cfg.RetryAfter.Seconds())))
		writeError(w, http.StatusTooManyRequests, "Rate limit reached for requests", "rate_limit_error")
		return
	}

	text, ok := reply(mode, lastUserMessage(req.Messages))
	if !ok {
		writeError(w, http.StatusBadRequest, "prompt does not contain a FEN position", "invalid_request_error")
		return
	}

	if req.Stream {
		s.stream(w, r, req.Model, text)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(openaicompat.ChatCompletionResponse{
		ID:    "chatcmpl-mock",
		Model: req.Model,
		Choices: []openaicompat.ChatChoice{{
			Message:      openaicompat.ChatMessage{Role: "assistant", Content: text},
			FinishReason: "stop",
		}},
		Usage: &openaicompat.ChatUsage{PromptTokens: 10, CompletionTokens: len(strings.Fields(text)), TotalTokens: 10 + len(strings.Fields(text))},
	})
}

// stream sends text word by word as Chat Completions chunks.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, model, text string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	send := func(delta openaicompat.ChatChunkDelta, finish *string) {
		data, _ := json.Marshal(openaicompat.ChatCompletionChunk{
			ID:      "chatcmpl-mock-stream",
			Model:   model,
			Choices: []openaicompat.ChatChunkChoice{{Delta: delta, FinishReason: finish}},
		})
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	send(openaicompat.ChatChunkDelta{Role: "assistant"}, nil)
	for _, tok := range tokens(text) {
		if s.cfg.TokenDelay > 0 {
			select {
			case <-time.After(s.cfg.TokenDelay):
			case <-r.Context().Done():
				return
			}
		}
		send(openaicompat.ChatChunkDelta{Content: &tok}, nil)
	}
	stop := "stop"
	send(openaicompat.ChatChunkDelta{}, &stop)
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	type model struct {
		ID      string `json:"id"`
		Object  string `json:"object"`
		OwnedBy string `json:"owned_by"`
	}
	data := make([]model, 0, len(Modes))
	for _, m := range Models() {
		data = append(data, model{ID: m.ID, Object: "model", OwnedBy: "schach-mock"})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
}

// tokens splits text into words, keeping the separating spaces.
func tokens(text string) []string {
	var out []string
	for i, word := range strings.Split(text, " ") {
		if i > 0 {
			word = " " + word
		}
		out = append(out, word)
	}
	return out
}

func lastUserMessage(msgs []openaicompat.ChatMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			if s, ok := msgs[i].Content.(string); ok {
				return s
			}
		}
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, msg, typ string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(openaicompat.ChatErrorResponse{Error: openaicompat.ChatError{Message: msg, Type: typ}})
}
