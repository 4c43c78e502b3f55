package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/rhuss/schach/pkg/api"
	"github.com/rhuss/schach/pkg/debug"
	"github.com/rhuss/schach/pkg/extract"
	"github.com/rhuss/schach/pkg/journal"
	"github.com/rhuss/schach/pkg/observability"
	"github.com/rhuss/schach/pkg/provider"
	"github.com/rhuss/schach/pkg/retry"
	"github.com/rhuss/schach/pkg/transport"
)

// Executor performs a rendered vendor request. *transport.Client
// implements it.
type Executor interface {
	Execute(ctx context.Context, req *provider.WireRequest, codec transport.Codec, onUpdate transport.UpdateFunc) (api.CanonicalResponse, error)
}

// Engine resolves moves.
type Engine struct {
	registry *provider.Registry
	client   Executor
	policy   retry.Policy
	journal  journal.Store
	logger   *slog.Logger
}

// New creates an Engine. The registry and client must not be nil.
func New(reg *provider.Registry, client Executor, opts ...Option) (*Engine, error) {
	if reg == nil {
		return nil, fmt.Errorf("engine: provider registry must not be nil")
	}
	if client == nil {
		return nil, fmt.Errorf("engine: executor must not be nil")
	}
	e := &Engine{
		registry: reg,
		client:   client,
		policy:   retry.DefaultPolicy(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.policy.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return e, nil
}

// Registry returns the provider registry.
func (e *Engine) Registry() *provider.Registry {
	return e.registry
}

// ResolveMove runs attempts until a legal move is found, the attempt bound
// is reached, or a fatal error occurs. Cancelling ctx aborts the vendor call
// and any pending retry delay.
func (e *Engine) ResolveMove(ctx context.Context, req Request) api.Outcome {
	id := req.ResolutionID
	if id == "" {
		id = api.NewResolutionID()
	}

	guard := newUpdateGuard(req.OnUpdate)
	start := time.Now()
	out := e.resolve(ctx, id, req, guard)
	guard.close()

	out.ResolutionID = id
	observability.ResolutionsTotal.WithLabelValues(string(req.Provider), string(out.Status)).Inc()

	attrs := []any{
		"resolution_id", id,
		"provider", req.Provider,
		"model", req.Model,
		"status", out.Status,
		"attempts", out.Attempts,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	switch out.Status {
	case api.OutcomeAccepted:
		e.logger.Info("move resolved", append(attrs, "move", out.Move)...)
	case api.OutcomeExhausted:
		e.logger.Warn("move resolution exhausted", append(attrs, "error", out.Err)...)
	default:
		e.logger.Warn("move resolution failed", append(attrs, "kind", out.Kind(), "error", out.Err)...)
	}
	return out
}

func (e *Engine) resolve(ctx context.Context, id string, req Request, guard *updateGuard) api.Outcome {
	adapter, model, err := e.registry.Resolve(req.Provider, req.Model)
	if err != nil {
		return fatal(err, 0)
	}
	if req.Board == nil {
		return fatal(api.NewConfigurationError("no board supplied for legality checks"), 0)
	}

	base := api.MoveRequestContext{
		Position:    req.Position,
		History:     slices.Clone(req.History),
		LegalMoves:  slices.Clone(req.LegalMoves),
		Temperature: req.Base.Temperature,
		TokenBudget: req.Base.TokenBudget,
		Streaming:   req.Base.Streaming && adapter.SupportsStreaming(model),
		APIKey:      req.Base.APIKey,
	}
	ctrl := retry.New(e.policy, base, req.Board.Inventory())

	for {
		mctx, err := ctrl.Begin()
		if err != nil {
			return fatal(err, ctrl.Snapshot().AttemptsMade)
		}

		decision, rejection := e.attempt(ctx, id, req, adapter, model, mctx, ctrl, guard)
		attempts := ctrl.Snapshot().AttemptsMade

		switch decision.Phase {
		case retry.Accepted:
			return api.Outcome{Status: api.OutcomeAccepted, Move: decision.Move, Attempts: attempts}
		case retry.Exhausted:
			return api.Outcome{Status: api.OutcomeExhausted, Err: decision.Err, Attempts: attempts}
		case retry.RetryScheduled:
			if decision.Escalated {
				observability.EscalationsTotal.WithLabelValues(string(req.Provider)).Inc()
			}
			e.logger.Debug("retry scheduled",
				"resolution_id", id,
				"attempt", attempts,
				"kind", api.KindOf(rejection),
				"reason", rejection,
			)
			guard.send(Update{
				ResolutionID: id,
				Attempt:      attempts,
				Retry:        true,
				Rejection:    retry.RejectionReason(rejection),
			})
			if err := ctrl.Wait(ctx); err != nil {
				ctrl.Cancel(err)
				return fatal(err, attempts)
			}
		default:
			return fatal(decision.Err, attempts)
		}
	}
}

// attempt runs one vendor round trip and hands the result to the
// controller. It returns the decision and the attempt's own rejection.
func (e *Engine) attempt(ctx context.Context, id string, req Request, adapter provider.Adapter, model api.ModelDescriptor,
	mctx api.MoveRequestContext, ctrl *retry.Controller, guard *updateGuard) (retry.Decision, error) {

	entry := &journal.Attempt{
		ResolutionID: id,
		Attempt:      mctx.Attempt,
		Provider:     adapter.ID(),
		Model:        model.ID,
		Position:     mctx.Position,
		Temperature:  mctx.Temperature,
		TokenBudget:  mctx.TokenBudget,
		Enriched:     mctx.PromptOverride != "",
	}

	candidate, rejection := e.execute(ctx, id, req, adapter, model, mctx, guard, entry)

	decision := ctrl.Evaluate(candidate, rejection)
	if decision.Phase == retry.Accepted {
		rejection = nil
	} else if rejection == nil {
		rejection = decision.Err
	}

	result := journal.ResultAccepted
	if rejection != nil {
		result = string(api.KindOf(rejection))
		entry.Rejection = rejection.Error()
		var apiErr *api.Error
		if errors.As(rejection, &apiErr) {
			entry.ErrorBody = apiErr.Body
		}
	}
	entry.Result = result
	observability.AttemptsTotal.WithLabelValues(string(req.Provider), result).Inc()

	debug.Log("engine", "attempt evaluated",
		"resolution_id", id,
		"attempt", mctx.Attempt,
		"candidate", candidate.Notation,
		"confidence", candidate.Confidence,
		"result", result,
		"phase", decision.Phase,
	)

	e.record(ctx, entry)
	return decision, rejection
}

// execute calls the vendor and derives a legal candidate.
func (e *Engine) execute(ctx context.Context, id string, req Request, adapter provider.Adapter, model api.ModelDescriptor,
	mctx api.MoveRequestContext, guard *updateGuard, entry *journal.Attempt) (api.MoveCandidate, error) {

	if err := ctx.Err(); err != nil {
		return api.MoveCandidate{}, api.NewCancelledError(err)
	}

	wire, err := adapter.BuildRequest(mctx, model)
	if err != nil {
		return api.MoveCandidate{}, err
	}

	var onUpdate transport.UpdateFunc
	if wire.Stream {
		onUpdate = func(p api.CanonicalResponse) {
			guard.send(Update{ResolutionID: id, Attempt: mctx.Attempt, Text: p.Text, Reasoning: p.Reasoning})
		}
	}

	start := time.Now()
	resp, err := e.client.Execute(ctx, wire, adapter, onUpdate)
	latency := time.Since(start)
	entry.LatencyMS = latency.Milliseconds()
	entry.RawText = debug.Truncate(resp.Text, 8192)
	entry.Reasoning = debug.Truncate(resp.Reasoning, 8192)

	status := "ok"
	if err != nil {
		if ctx.Err() != nil && api.KindOf(err) != api.KindCancelled {
			err = api.NewCancelledError(ctx.Err())
		}
		status = string(api.KindOf(err))
	}
	observability.ProviderRequestsTotal.WithLabelValues(string(adapter.ID()), model.ID, status).Inc()
	observability.ProviderLatency.WithLabelValues(string(adapter.ID()), model.ID).Observe(latency.Seconds())
	if err != nil {
		return api.MoveCandidate{}, err
	}

	candidate := extract.Extract(resp, mctx.LegalMoves)
	entry.Candidate = candidate.Notation
	entry.Confidence = candidate.Confidence
	if candidate.Empty() {
		return candidate, api.NewMalformedResponseError("no move found in the response", nil)
	}

	canonical, ok := req.Board.IsLegal(candidate.Notation)
	if !ok {
		return candidate, api.NewIllegalMoveError(candidate.Notation)
	}
	candidate.Notation = canonical
	return candidate, nil
}

// record writes entry to the journal. Journal failures are logged and do not
// affect the resolution.
func (e *Engine) record(ctx context.Context, entry *journal.Attempt) {
	if e.journal == nil {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := e.journal.Record(rctx, entry); err != nil {
		e.logger.Warn("journal write failed", "resolution_id", entry.ResolutionID, "error", err)
	}
}

func fatal(err error, attempts int) api.Outcome {
	out := api.Outcome{Status: api.OutcomeFatal, Err: err, Attempts: attempts}
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Kind == api.KindRateLimited {
		out.RetryAfter = apiErr.RetryAfter
	}
	return out
}
