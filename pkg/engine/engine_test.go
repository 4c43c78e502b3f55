package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/rhuss/schach/pkg/api"
	"github.com/rhuss/schach/pkg/journal"
	"github.com/rhuss/schach/pkg/journal/memory"
	"github.com/rhuss/schach/pkg/observability"
	"github.com/rhuss/schach/pkg/provider"
	"github.com/rhuss/schach/pkg/provider/openai"
	"github.com/rhuss/schach/pkg/provider/openaicompat"
	"github.com/rhuss/schach/pkg/retry"
	"github.com/rhuss/schach/pkg/rules"
	"github.com/rhuss/schach/pkg/transport"
)

// reply is one scripted vendor result.
type reply struct {
	text    string
	partial []string
	err     error
}

// scriptedExecutor returns scripted replies in order and captures requests.
type scriptedExecutor struct {
	mu       sync.Mutex
	replies  []reply
	requests []*provider.WireRequest
	updaters []transport.UpdateFunc
	block    bool
}

func (s *scriptedExecutor) Execute(ctx context.Context, req *provider.WireRequest, _ transport.Codec, onUpdate transport.UpdateFunc) (api.CanonicalResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.updaters = append(s.updaters, onUpdate)
	block := s.block
	var r reply
	if len(s.replies) > 0 {
		r = s.replies[0]
		s.replies = s.replies[1:]
	}
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return api.CanonicalResponse{}, api.NewCancelledError(ctx.Err())
	}
	if r.err != nil {
		return api.CanonicalResponse{}, r.err
	}
	for _, p := range r.partial {
		if onUpdate != nil {
			onUpdate(api.CanonicalResponse{Text: p})
		}
	}
	return api.CanonicalResponse{Text: r.text}, nil
}

func (s *scriptedExecutor) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *scriptedExecutor) body(t *testing.T, i int) openaicompat.ChatCompletionRequest {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	var body openaicompat.ChatCompletionRequest
	if err := json.Unmarshal(s.requests[i].Body, &body); err != nil {
		t.Fatalf("decoding request %d: %v", i, err)
	}
	return body
}

func testRegistry(t *testing.T) *provider.Registry {
	t.Helper()
	a, err := openai.New(openai.Config{BaseURL: "http://vendor.invalid/v1"})
	if err != nil {
		t.Fatal(err)
	}
	reg, err := provider.NewRegistry(a)
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func testEngine(t *testing.T, exec Executor, opts ...Option) *Engine {
	t.Helper()
	p := retry.DefaultPolicy()
	p.Delay = 0
	e, err := New(testRegistry(t), exec, append([]Option{WithPolicy(p)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func startRequest(g *rules.Game) Request {
	return Request{
		Provider:   api.ProviderOpenAI,
		Model:      "gpt-4o",
		Position:   g.FEN(),
		History:    g.History(),
		LegalMoves: g.LegalMoves(),
		Board:      g,
		Base:       Settings{Temperature: 0.7, TokenBudget: 200, APIKey: "sk-test"},
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, &scriptedExecutor{}); err == nil {
		t.Error("expected error for nil registry")
	}
	if _, err := New(testRegistry(t), nil); err == nil {
		t.Error("expected error for nil executor")
	}
	if _, err := New(testRegistry(t), &scriptedExecutor{}, WithPolicy(retry.Policy{})); err == nil {
		t.Error("expected error for invalid policy")
	}
}

func TestResolveMoveAcceptedFirstAttempt(t *testing.T) {
	exec := &scriptedExecutor{replies: []reply{{text: "I think the best move is Nf3 because it develops quickly."}}}
	e := testEngine(t, exec)
	g := rules.New()
	fenBefore := g.FEN()

	out := e.ResolveMove(context.Background(), startRequest(g))
	if !out.Accepted() || out.Move != "Nf3" {
		t.Fatalf("expected accepted Nf3, got %+v", out)
	}
	if out.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", out.Attempts)
	}
	if !strings.HasPrefix(out.ResolutionID, "res_") {
		t.Errorf("ResolutionID = %q", out.ResolutionID)
	}
	if g.FEN() != fenBefore {
		t.Error("engine mutated the board")
	}

	body := exec.body(t, 0)
	if body.Model != "gpt-4o" || body.Temperature == nil || *body.Temperature != 0.7 {
		t.Errorf("unexpected first request: %+v", body)
	}
	if user, _ := body.Messages[1].Content.(string); strings.Contains(user, "Legal moves") {
		t.Error("first attempt should use the base prompt")
	}
}

func TestResolveMoveCanonicalSpelling(t *testing.T) {
	exec := &scriptedExecutor{replies: []reply{{text: "e2e4"}}}
	e := testEngine(t, exec)

	out := e.ResolveMove(context.Background(), startRequest(rules.New()))
	if !out.Accepted() || out.Move != "e4" {
		t.Fatalf("expected accepted e4, got %+v", out)
	}
}

func TestResolveExhaustsOnRepeatedIllegalMoves(t *testing.T) {
	exec := &scriptedExecutor{replies: []reply{{text: "e5"}, {text: "e5"}, {text: "e5"}, {text: "e4"}}}
	store := memory.New(0)
	e := testEngine(t, exec, WithJournal(store))

	out := e.ResolveMove(context.Background(), startRequest(rules.New()))
	if out.Status != api.OutcomeExhausted {
		t.Fatalf("expected exhausted, got %+v", out)
	}
	if out.Attempts != 3 || exec.calls() != 3 {
		t.Errorf("expected exactly 3 attempts, got outcome=%d calls=%d", out.Attempts, exec.calls())
	}
	if out.Kind() != api.KindExhausted {
		t.Errorf("Kind = %q", out.Kind())
	}
	if api.KindOf(errors.Unwrap(out.Err)) != api.KindIllegalMove {
		t.Errorf("exhausted outcome should carry the last rejection, got %v", out.Err)
	}

	retry1, _ := exec.body(t, 1).Messages[1].Content.(string)
	if !strings.Contains(retry1, "Legal moves:") || !strings.Contains(retry1, "Nf3") {
		t.Errorf("retry 1 should embed the legal moves:\n%s", retry1)
	}
	if !strings.Contains(retry1, "White: King e1") {
		t.Errorf("retry 1 should embed the piece inventory:\n%s", retry1)
	}
	if temp := *exec.body(t, 1).Temperature; temp != 0.7 {
		t.Errorf("retry 1 temperature = %v, want 0.7", temp)
	}
	third := exec.body(t, 2)
	if *third.Temperature != 0.8 || *third.MaxTokens != 250 {
		t.Errorf("retry 2 should escalate to 0.8/250, got %v/%d", *third.Temperature, *third.MaxTokens)
	}

	attempts, err := store.ListAttempts(context.Background(), out.ResolutionID)
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(attempts) != 3 {
		t.Fatalf("journal holds %d attempts, want 3", len(attempts))
	}
	for i, a := range attempts {
		if a.Result != string(api.KindIllegalMove) || a.Candidate != "e5" || a.Attempt != i+1 {
			t.Errorf("journal attempt %d = %+v", i, a)
		}
		if a.Enriched != (i > 0) {
			t.Errorf("journal attempt %d Enriched = %v", i, a.Enriched)
		}
	}
}

func TestRetryThenAccept(t *testing.T) {
	exec := &scriptedExecutor{replies: []reply{
		{text: "I cannot decide"},
		{err: api.NewUpstreamError(502, "bad gateway", nil)},
		{text: "d4"},
	}}
	var updates []Update
	req := startRequest(rules.New())
	req.OnUpdate = func(u Update) { updates = append(updates, u) }

	out := testEngine(t, exec).ResolveMove(context.Background(), req)
	if !out.Accepted() || out.Move != "d4" || out.Attempts != 3 {
		t.Fatalf("expected d4 on attempt 3, got %+v", out)
	}

	var notices int
	for _, u := range updates {
		if u.Retry {
			notices++
			if u.Rejection == "" {
				t.Error("retry notice without reason")
			}
		}
	}
	if notices != 2 {
		t.Errorf("expected 2 retry notices, got %d", notices)
	}
}

func TestFatalErrorsStopImmediately(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind api.ErrorKind
	}{
		{"authentication", api.NewAuthenticationError(401, "Incorrect API key provided"), api.KindAuthentication},
		{"rate limited", api.NewRateLimitedError(429, "slow down", 20*time.Second), api.KindRateLimited},
		{"api error", api.NewAPIError(400, "max_tokens too large"), api.KindAPI},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &scriptedExecutor{replies: []reply{{err: tt.err}, {text: "e4"}}}
			out := testEngine(t, exec).ResolveMove(context.Background(), startRequest(rules.New()))
			if out.Status != api.OutcomeFatal || out.Kind() != tt.kind {
				t.Fatalf("expected fatal %s, got %+v", tt.kind, out)
			}
			if exec.calls() != 1 {
				t.Errorf("expected 1 vendor call, got %d", exec.calls())
			}
			if tt.kind == api.KindRateLimited && out.RetryAfter != 20*time.Second {
				t.Errorf("RetryAfter = %v", out.RetryAfter)
			}
		})
	}
}

func TestConfigurationErrors(t *testing.T) {
	exec := &scriptedExecutor{}
	e := testEngine(t, exec)

	req := startRequest(rules.New())
	req.Provider = "nonexistent"
	if out := e.ResolveMove(context.Background(), req); out.Kind() != api.KindConfiguration {
		t.Errorf("unknown provider: got %+v", out)
	}

	req = startRequest(rules.New())
	req.Base.APIKey = ""
	if out := e.ResolveMove(context.Background(), req); out.Kind() != api.KindConfiguration || out.Attempts != 1 {
		t.Errorf("missing key: got %+v", out)
	}

	req = startRequest(rules.New())
	req.Board = nil
	if out := e.ResolveMove(context.Background(), req); out.Kind() != api.KindConfiguration {
		t.Errorf("missing board: got %+v", out)
	}

	if exec.calls() != 0 {
		t.Errorf("configuration errors must not reach the vendor, got %d calls", exec.calls())
	}
}

func TestStreamingSnapshotsExtendInOrder(t *testing.T) {
	exec := &scriptedExecutor{replies: []reply{{partial: []string{"N", "Nf", "Nf3"}, text: "Nf3"}}}
	req := startRequest(rules.New())
	req.Base.Streaming = true

	var texts []string
	req.OnUpdate = func(u Update) {
		if !u.Retry {
			texts = append(texts, u.Text)
		}
	}

	out := testEngine(t, exec).ResolveMove(context.Background(), req)
	if !out.Accepted() || out.Move != "Nf3" {
		t.Fatalf("expected accepted Nf3, got %+v", out)
	}
	if strings.Join(texts, "|") != "N|Nf|Nf3" {
		t.Errorf("updates = %v", texts)
	}
	if !exec.body(t, 0).Stream {
		t.Error("request should be streamed")
	}
}

func TestNoUpdatesAfterReturn(t *testing.T) {
	exec := &scriptedExecutor{replies: []reply{{text: "e4"}}}
	req := startRequest(rules.New())
	req.Base.Streaming = true

	var mu sync.Mutex
	count := 0
	req.OnUpdate = func(Update) {
		mu.Lock()
		count++
		mu.Unlock()
	}

	out := testEngine(t, exec).ResolveMove(context.Background(), req)
	if !out.Accepted() {
		t.Fatalf("expected accepted, got %+v", out)
	}

	exec.mu.Lock()
	late := exec.updaters[0]
	exec.mu.Unlock()
	if late == nil {
		t.Fatal("streaming attempt should receive an update callback")
	}
	late(api.CanonicalResponse{Text: "late"})

	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Errorf("update delivered after return: %d", count)
	}
}

func TestCancelDuringVendorCall(t *testing.T) {
	exec := &scriptedExecutor{block: true}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan api.Outcome, 1)
	go func() { done <- testEngine(t, exec).ResolveMove(ctx, startRequest(rules.New())) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case out := <-done:
		if out.Status != api.OutcomeFatal || out.Kind() != api.KindCancelled {
			t.Errorf("expected fatal cancelled, got %+v", out)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ResolveMove did not return after cancel")
	}
}

func TestCancelDuringRetryDelay(t *testing.T) {
	exec := &scriptedExecutor{replies: []reply{{text: "e5"}, {text: "e4"}}}
	p := retry.DefaultPolicy()
	p.Delay = time.Hour
	e, err := New(testRegistry(t), exec, WithPolicy(p))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	req := startRequest(rules.New())
	req.OnUpdate = func(u Update) {
		if u.Retry {
			cancel()
		}
	}

	out := e.ResolveMove(ctx, req)
	if out.Kind() != api.KindCancelled {
		t.Errorf("expected cancelled, got %+v", out)
	}
	if exec.calls() != 1 {
		t.Errorf("expected 1 call before cancel, got %d", exec.calls())
	}
}

func TestStreamChannels(t *testing.T) {
	exec := &scriptedExecutor{replies: []reply{{partial: []string{"d", "d4"}, text: "d4"}}}
	req := startRequest(rules.New())
	req.Base.Streaming = true

	updates, outcome := testEngine(t, exec).Stream(context.Background(), req)

	var texts []string
	for u := range updates {
		texts = append(texts, u.Text)
	}
	out, ok := <-outcome
	if !ok {
		t.Fatal("outcome channel closed without a value")
	}
	if !out.Accepted() || out.Move != "d4" {
		t.Errorf("expected d4, got %+v", out)
	}
	if strings.Join(texts, "|") != "d|d4" {
		t.Errorf("updates = %v", texts)
	}
	if _, ok := <-outcome; ok {
		t.Error("outcome channel should carry exactly one value")
	}
}

func TestJournalNeverStoresAPIKey(t *testing.T) {
	exec := &scriptedExecutor{replies: []reply{{err: api.NewAuthenticationError(401, "bad key sk-test")}}}
	store := memory.New(0)
	out := testEngine(t, exec, WithJournal(store)).ResolveMove(context.Background(), startRequest(rules.New()))

	attempts, err := store.ListAttempts(context.Background(), out.ResolutionID)
	if err != nil || len(attempts) != 1 {
		t.Fatalf("expected one journaled attempt, got %d (%v)", len(attempts), err)
	}
	raw, _ := json.Marshal(attempts[0])
	if strings.Contains(string(raw), `"api_key"`) {
		t.Error("journal entry has an api_key field")
	}
	if attempts[0].Result != string(api.KindAuthentication) {
		t.Errorf("Result = %q", attempts[0].Result)
	}
}

func TestJournalTenantFromContext(t *testing.T) {
	exec := &scriptedExecutor{replies: []reply{{text: "e4"}}}
	store := memory.New(0)
	ctx := journal.SetTenant(context.Background(), "alice")

	out := testEngine(t, exec, WithJournal(store)).ResolveMove(ctx, startRequest(rules.New()))
	if _, err := store.ListAttempts(journal.SetTenant(context.Background(), "bob"), out.ResolutionID); !errors.Is(err, journal.ErrNotFound) {
		t.Errorf("other tenant should not see the attempts, got %v", err)
	}
	if _, err := store.ListAttempts(ctx, out.ResolutionID); err != nil {
		t.Errorf("owner should see the attempts: %v", err)
	}
}

func TestResolutionMetrics(t *testing.T) {
	before := counterValue(t, observability.ResolutionsTotal, "openai", "exhausted")
	escBefore := counterValue(t, observability.EscalationsTotal, "openai")

	exec := &scriptedExecutor{replies: []reply{{text: "e5"}, {text: "e5"}, {text: "e5"}}}
	testEngine(t, exec).ResolveMove(context.Background(), startRequest(rules.New()))

	if d := counterValue(t, observability.ResolutionsTotal, "openai", "exhausted") - before; d != 1 {
		t.Errorf("resolutions delta = %v, want 1", d)
	}
	if d := counterValue(t, observability.EscalationsTotal, "openai") - escBefore; d != 1 {
		t.Errorf("escalations delta = %v, want 1", d)
	}
}

func counterValue(t *testing.T, cv *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	c, err := cv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting counter metric: %v", err)
	}
	if err := c.Write(m); err != nil {
		t.Fatalf("writing counter metric: %v", err)
	}
	return m.GetCounter().GetValue()
}
