package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// SSE event names.
const (
	eventThinking = "thinking"
	eventRetry    = "retry"
	eventOutcome  = "outcome"
)

// sseWriter emits Server-Sent Events. It is not safe for concurrent use;
// the move handler writes from a single goroutine.
type sseWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
	done    bool
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	return &sseWriter{w: w, rc: http.NewResponseController(w)}
}

// start sends the SSE headers and flushes them so the client sees
// X-Resolution-ID before the first event.
func (s *sseWriter) start() error {
	if s.started {
		return nil
	}
	s.started = true

	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	return s.flush()
}

// event writes one named event:
//
//	event: {name}
//	data: {json}
func (s *sseWriter) event(name string, v any) error {
	if s.done {
		return fmt.Errorf("sse: event %q after [DONE]", name)
	}
	if err := s.start(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sse: marshal %s: %w", name, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	return s.flush()
}

// finish writes the [DONE] sentinel.
func (s *sseWriter) finish() error {
	if s.done {
		return nil
	}
	if err := s.start(); err != nil {
		return err
	}
	s.done = true
	if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	return s.flush()
}

func (s *sseWriter) flush() error {
	if err := s.rc.Flush(); err != nil && err != http.ErrNotSupported {
		return err
	}
	return nil
}
