package engine

import "github.com/rhuss/schach/pkg/api"

// Board is the read-only view of the rules engine the resolution needs.
// *rules.Game implements it.
type Board interface {
	// IsLegal reports whether notation is a legal move in the current
	// position and returns its canonical spelling.
	IsLegal(notation string) (string, bool)

	// Inventory lists the pieces on the board for retry prompts.
	Inventory() string
}

// Settings are the per-player base parameters of the first attempt.
type Settings struct {
	Temperature float64
	TokenBudget int
	Streaming   bool

	// APIKey is passed to the adapter and never stored.
	APIKey string
}

// Request describes one move resolution.
type Request struct {
	// ResolutionID is generated when empty.
	ResolutionID string

	Provider api.ProviderID
	Model    string

	// Position is the current board as FEN.
	Position string
	History  []string

	// LegalMoves must be computed for Position by the caller.
	LegalMoves []string

	Board Board
	Base  Settings

	// OnUpdate receives cumulative snapshots of streamed replies and retry
	// notices. It is never called after ResolveMove returns.
	OnUpdate func(Update)
}

// Update is a progress notification.
type Update struct {
	ResolutionID string `json:"resolution_id"`
	Attempt      int    `json:"attempt"`

	// Text and Reasoning are the cumulative reply so far.
	Text      string `json:"text,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`

	// Retry marks a notice that the attempt was rejected and another one
	// is scheduled; Rejection says why.
	Retry     bool   `json:"retry,omitempty"`
	Rejection string `json:"rejection,omitempty"`
}
