package provider

import (
	"fmt"
	"strings"

	"github.com/rhuss/schach/pkg/api"
)

// SystemInstruction is sent with every request by every adapter.
const SystemInstruction = "You are playing a game of chess. " +
	"Reply with exactly one legal move for the side to move, written in standard algebraic notation " +
	"(for example: e4, Nf3, exd5, O-O, e8=Q). " +
	"Do not include move numbers, commentary, explanations, or any other text."

// UserPrompt renders the user message for an attempt. A non-empty
// PromptOverride is used verbatim.
func UserPrompt(mctx api.MoveRequestContext) string {
	if mctx.PromptOverride != "" {
		return mctx.PromptOverride
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Current position (FEN): %s\n", mctx.Position)
	fmt.Fprintf(&b, "Side to move: %s\n", SideToMove(mctx.Position))
	fmt.Fprintf(&b, "Moves played so far: %s\n", FormatHistory(mctx.History))
	b.WriteString("What is your move?")
	return b.String()
}

// FormatHistory renders SAN moves with move numbers ("1. e4 e5 2. Nf3").
func FormatHistory(history []string) string {
	if len(history) == 0 {
		return "none"
	}
	var b strings.Builder
	for i, mv := range history {
		if i > 0 {
			b.WriteByte(' ')
		}
		if i%2 == 0 {
			fmt.Fprintf(&b, "%d. ", i/2+1)
		}
		b.WriteString(mv)
	}
	return b.String()
}

// SideToMove reads the active color field of a FEN string.
func SideToMove(fen string) string {
	fields := strings.Fields(fen)
	if len(fields) > 1 && fields[1] == "b" {
		return "Black"
	}
	return "White"
}
