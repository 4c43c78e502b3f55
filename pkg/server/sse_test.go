package server

import (
	"net/http/httptest"
	"testing"
)

func TestSSEWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	sse := newSSEWriter(rec)

	if err := sse.event(eventThinking, map[string]string{"text": "N"}); err != nil {
		t.Fatal(err)
	}
	if err := sse.event(eventOutcome, map[string]string{"move": "Nf3"}); err != nil {
		t.Fatal(err)
	}
	if err := sse.finish(); err != nil {
		t.Fatal(err)
	}
	if err := sse.finish(); err != nil {
		t.Errorf("second finish: %v", err)
	}

	want := "event: thinking\ndata: {\"text\":\"N\"}\n\n" +
		"event: outcome\ndata: {\"move\":\"Nf3\"}\n\n" +
		"data: [DONE]\n\n"
	if got := rec.Body.String(); got != want {
		t.Errorf("body =\n%q\nwant\n%q", got, want)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !rec.Flushed {
		t.Error("events were not flushed")
	}

	if err := sse.event(eventThinking, nil); err == nil {
		t.Error("event after [DONE] succeeded")
	}
}

func TestSSEWriterStartFlushesHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set(ResolutionIDHeader, "res_abc")
	if err := newSSEWriter(rec).start(); err != nil {
		t.Fatal(err)
	}
	if !rec.Flushed || rec.Code != 200 {
		t.Errorf("flushed = %v, code = %d", rec.Flushed, rec.Code)
	}
	if rec.Result().Header.Get(ResolutionIDHeader) != "res_abc" {
		t.Error("resolution id header lost")
	}
}
