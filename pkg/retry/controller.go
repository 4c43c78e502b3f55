package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/rhuss/schach/pkg/api"
	"github.com/rhuss/schach/pkg/debug"
)

// Phase is the controller's position in the attempt lifecycle.
type Phase int

const (
	Ready Phase = iota
	AwaitingResponse
	Evaluating
	Accepted
	RetryScheduled
	Exhausted
	Failed
)

var phaseNames = [...]string{
	Ready:            "ready",
	AwaitingResponse: "awaiting_response",
	Evaluating:       "evaluating",
	Accepted:         "accepted",
	RetryScheduled:   "retry_scheduled",
	Exhausted:        "exhausted",
	Failed:           "failed",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Terminal reports whether no further attempt can follow.
func (p Phase) Terminal() bool {
	return p == Accepted || p == Exhausted || p == Failed
}

// ErrInvalidTransition is returned when an operation is called in a phase
// that does not allow it.
var ErrInvalidTransition = errors.New("retry: invalid transition")

// State is a snapshot of the controller.
type State struct {
	Phase         Phase
	AttemptsMade  int
	MaxAttempts   int
	LastRejection error
	Temperature   float64
	TokenBudget   int
	Escalations   int
}

// Decision is the result of evaluating one attempt.
type Decision struct {
	Phase Phase

	// Move is set when Phase is Accepted.
	Move string

	// Err is the rejection for RetryScheduled, the exhaustion error for
	// Exhausted, and the fatal error for Failed.
	Err error

	// Escalated is set when the scheduled attempt raised temperature or
	// token budget.
	Escalated bool
}

// Controller drives the attempts of a single ply. It is not safe for
// concurrent use; a ply has exactly one caller.
type Controller struct {
	policy    Policy
	inventory string

	next        api.MoveRequestContext
	phase       Phase
	attempts    int
	last        error
	escalations int

	backOff backoff.BackOff
}

// New creates a controller for one ply. base is the context of the first
// attempt; its temperature and token budget are clamped to the policy
// ceilings. inventory is the textual piece list embedded in retry prompts.
func New(policy Policy, base api.MoveRequestContext, inventory string) *Controller {
	policy = policy.normalized()

	next := base.Clone()
	next.Temperature = clampFloat(next.Temperature, 0, policy.MaxTemperature)
	if next.TokenBudget > policy.MaxTokenBudget {
		next.TokenBudget = policy.MaxTokenBudget
	}
	if next.TokenBudget < 0 {
		next.TokenBudget = 0
	}
	next.Attempt = 0

	return &Controller{
		policy:    policy,
		inventory: inventory,
		next:      next,
		phase:     Ready,
		backOff:   policy.newBackOff(),
	}
}

// Begin starts the next attempt and returns its request context.
func (c *Controller) Begin() (api.MoveRequestContext, error) {
	if c.phase != Ready && c.phase != RetryScheduled {
		return api.MoveRequestContext{}, fmt.Errorf("%w: begin in phase %s", ErrInvalidTransition, c.phase)
	}
	if c.attempts >= c.policy.MaxAttempts {
		return api.MoveRequestContext{}, fmt.Errorf("%w: attempt bound %d reached", ErrInvalidTransition, c.policy.MaxAttempts)
	}

	c.attempts++
	c.next.Attempt = c.attempts
	c.phase = AwaitingResponse

	debug.Log("retry", "attempt started",
		"attempt", c.attempts,
		"max_attempts", c.policy.MaxAttempts,
		"temperature", c.next.Temperature,
		"token_budget", c.next.TokenBudget,
		"enriched", c.next.PromptOverride != "",
	)
	return c.next.Clone(), nil
}

// Evaluate consumes the result of the current attempt. candidate is the
// extracted move, already in the rules engine's spelling; rejection is nil
// when the candidate was found legal, or the classified reason it was not.
// An empty candidate without a rejection counts as a malformed response.
func (c *Controller) Evaluate(candidate api.MoveCandidate, rejection error) Decision {
	if c.phase != AwaitingResponse {
		return Decision{Phase: c.phase, Err: fmt.Errorf("%w: evaluate in phase %s", ErrInvalidTransition, c.phase)}
	}
	c.phase = Evaluating

	if rejection == nil && candidate.Empty() {
		rejection = api.NewMalformedResponseError("no move found in the response", nil)
	}

	if rejection == nil {
		c.phase = Accepted
		c.last = nil
		return Decision{Phase: Accepted, Move: candidate.Notation}
	}

	c.last = rejection

	if !api.IsRetryable(rejection) {
		c.phase = Failed
		debug.Log("retry", "fatal rejection", "attempt", c.attempts, "kind", api.KindOf(rejection))
		return Decision{Phase: Failed, Err: rejection}
	}

	if c.attempts >= c.policy.MaxAttempts {
		c.phase = Exhausted
		debug.Log("retry", "attempts exhausted", "attempts", c.attempts)
		return Decision{Phase: Exhausted, Err: api.NewExhaustedError(c.attempts, rejection)}
	}

	escalated := c.schedule(rejection)
	c.phase = RetryScheduled
	return Decision{Phase: RetryScheduled, Err: rejection, Escalated: escalated}
}

// schedule derives the context of the next attempt from the current one.
func (c *Controller) schedule(rejection error) bool {
	c.next.PromptOverride = EnrichedPrompt(c.next, c.inventory, rejection)

	// The first retry only enriches the prompt.
	upcoming := c.attempts + 1
	if upcoming < 3 {
		return false
	}

	prevTemp, prevTokens := c.next.Temperature, c.next.TokenBudget
	c.next.Temperature = clampFloat(roundTemp(c.next.Temperature+c.policy.TemperatureStep), 0, c.policy.MaxTemperature)
	if c.next.TokenBudget > 0 {
		c.next.TokenBudget = min(c.next.TokenBudget+c.policy.TokenStep, c.policy.MaxTokenBudget)
	}

	escalated := c.next.Temperature != prevTemp || c.next.TokenBudget != prevTokens
	if escalated {
		c.escalations++
		debug.Log("retry", "parameters escalated",
			"attempt", upcoming,
			"temperature", c.next.Temperature,
			"token_budget", c.next.TokenBudget,
		)
	}
	return escalated
}

// Wait blocks for the scheduled inter-attempt delay or until ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	d := c.backOff.NextBackOff()
	if d == backoff.Stop || d <= 0 {
		if err := ctx.Err(); err != nil {
			return api.NewCancelledError(err)
		}
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return api.NewCancelledError(ctx.Err())
	case <-timer.C:
		return nil
	}
}

// Cancel moves a non-terminal controller to Failed with a cancellation.
func (c *Controller) Cancel(cause error) {
	if c.phase.Terminal() {
		return
	}
	c.phase = Failed
	c.last = api.NewCancelledError(cause)
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	return State{
		Phase:         c.phase,
		AttemptsMade:  c.attempts,
		MaxAttempts:   c.policy.MaxAttempts,
		LastRejection: c.last,
		Temperature:   c.next.Temperature,
		TokenBudget:   c.next.TokenBudget,
		Escalations:   c.escalations,
	}
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

// roundTemp keeps repeated 0.1 steps from drifting (0.7+0.1 = 0.7999...).
func roundTemp(v float64) float64 {
	return math.Round(v*1000) / 1000
}
