package game

import (
	"github.com/rhuss/schach/pkg/api"
	"github.com/rhuss/schach/pkg/engine"
	"github.com/rhuss/schach/pkg/rules"
)

// EventType identifies a match event.
type EventType string

const (
	PlyStarted  EventType = "ply_started"
	Thinking    EventType = "thinking"
	MoveApplied EventType = "move_applied"
	Paused      EventType = "paused"
	Finished    EventType = "finished"
)

// Event is a match progress notification. Fields not relevant to Type are
// zero.
type Event struct {
	Type EventType `json:"type"`

	// Ply counts half-moves from 1.
	Ply    int    `json:"ply"`
	Side   string `json:"side"`
	Player string `json:"player,omitempty"`

	// Update is set for Thinking.
	Update *engine.Update `json:"update,omitempty"`

	// Move, FEN and Status are set for MoveApplied.
	Move   string       `json:"move,omitempty"`
	FEN    string       `json:"fen,omitempty"`
	Status rules.Status `json:"status,omitempty"`

	// Outcome is set for MoveApplied and Paused.
	Outcome *api.Outcome `json:"outcome,omitempty"`

	// Result and Method are set for Finished.
	Result string `json:"result,omitempty"`
	Method string `json:"method,omitempty"`
}
