package api

import (
	"slices"
	"time"
)

// ProviderID identifies a vendor and therefore the wire dialect used to talk to it.
type ProviderID string

const (
	ProviderOpenAI    ProviderID = "openai"
	ProviderAnthropic ProviderID = "anthropic"
	ProviderGemini    ProviderID = "gemini"
	ProviderDeepSeek  ProviderID = "deepseek"
	ProviderXAI       ProviderID = "xai"
	ProviderLocal     ProviderID = "local"
)

// ModelDescriptor describes one model offered by a provider. Descriptors are
// owned by the provider's catalog and treated as immutable.
type ModelDescriptor struct {
	ID                string `json:"id" yaml:"id"`
	DisplayName       string `json:"display_name" yaml:"display_name"`
	MaxTokenCeiling   int    `json:"max_token_ceiling" yaml:"max_token_ceiling"`
	SupportsStreaming bool   `json:"supports_streaming" yaml:"supports_streaming"`

	// Reasoning marks models that emit a separate reasoning channel.
	Reasoning bool `json:"reasoning,omitempty" yaml:"reasoning"`
}

// MoveRequestContext carries the inputs of a single attempt. It is built fresh
// per ply and copied, never shared, when a retry derives the next attempt.
type MoveRequestContext struct {
	// Position is the serialized board (FEN).
	Position string

	// History lists the moves played so far in SAN.
	History []string

	// LegalMoves lists every legal move for the side to move, in SAN.
	LegalMoves []string

	Temperature float64
	TokenBudget int
	Streaming   bool

	// Attempt is the 1-based attempt number within the ply.
	Attempt int

	// PromptOverride replaces the default user prompt when non-empty.
	PromptOverride string

	// APIKey is the vendor credential. It is never persisted.
	APIKey string
}

// Clone returns a deep copy so derived contexts never alias slices.
func (c MoveRequestContext) Clone() MoveRequestContext {
	c.History = slices.Clone(c.History)
	c.LegalMoves = slices.Clone(c.LegalMoves)
	return c
}

// CanonicalResponse is the vendor-neutral output every adapter produces.
type CanonicalResponse struct {
	Text      string `json:"text"`
	Reasoning string `json:"reasoning,omitempty"`
}

// Confidence records which extraction stage produced a candidate.
type Confidence string

const (
	ConfidenceNone                  Confidence = ""
	ConfidenceDirectMatch           Confidence = "direct_match"
	ConfidencePatternMatch          Confidence = "pattern_match"
	ConfidenceContextualPhraseMatch Confidence = "contextual_phrase_match"
	ConfidenceFallbackFirstLine     Confidence = "fallback_first_line"
)

// MoveCandidate is a move notation extracted from AI output. An empty
// Notation signals extraction failure.
type MoveCandidate struct {
	Notation   string     `json:"notation"`
	Confidence Confidence `json:"confidence,omitempty"`
	Source     string     `json:"source,omitempty"`
}

// Empty reports whether extraction failed.
func (c MoveCandidate) Empty() bool {
	return c.Notation == ""
}

// OutcomeStatus is the tag of an [Outcome].
type OutcomeStatus string

const (
	OutcomeAccepted  OutcomeStatus = "accepted"
	OutcomeExhausted OutcomeStatus = "exhausted"
	OutcomeFatal     OutcomeStatus = "fatal"
)

// Outcome is the terminal value of one move resolution.
type Outcome struct {
	ResolutionID string        `json:"resolution_id"`
	Status       OutcomeStatus `json:"status"`

	// Move is set only when Status is accepted.
	Move string `json:"move,omitempty"`

	// Err carries the last rejection (exhausted) or the fatal error.
	Err error `json:"-"`

	Attempts int `json:"attempts"`

	// RetryAfter is a wait recommendation for rate-limited failures.
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// Accepted reports whether a legal move was resolved.
func (o Outcome) Accepted() bool {
	return o.Status == OutcomeAccepted
}

// Kind returns the error kind behind a non-accepted outcome.
func (o Outcome) Kind() ErrorKind {
	if o.Status == OutcomeAccepted {
		return ""
	}
	if o.Status == OutcomeExhausted {
		return KindExhausted
	}
	return KindOf(o.Err)
}
