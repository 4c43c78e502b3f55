package retry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rhuss/schach/pkg/api"
	"github.com/rhuss/schach/pkg/provider"
)

// EnrichedPrompt renders the user prompt for a retry. It repeats the
// position and embeds the legal moves and the piece inventory verbatim,
// together with the reason the previous reply was rejected.
func EnrichedPrompt(mctx api.MoveRequestContext, inventory string, rejection error) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Your previous reply was rejected: %s.\n\n", RejectionReason(rejection))
	fmt.Fprintf(&b, "Current position (FEN): %s\n", mctx.Position)
	fmt.Fprintf(&b, "Side to move: %s\n", provider.SideToMove(mctx.Position))
	fmt.Fprintf(&b, "Moves played so far: %s\n", provider.FormatHistory(mctx.History))

	if inventory != "" {
		b.WriteString("\nPieces on the board:\n")
		b.WriteString(strings.TrimRight(inventory, "\n"))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nLegal moves: %s\n\n", strings.Join(mctx.LegalMoves, ", "))
	b.WriteString("Reply with exactly one move from the list of legal moves, in standard algebraic notation, and nothing else.")
	return b.String()
}

// RejectionReason renders err for a vendor prompt. Vendor bodies and wrapped
// causes are left out.
func RejectionReason(err error) string {
	if err == nil {
		return "no reason given"
	}
	var e *api.Error
	if errors.As(err, &e) {
		switch e.Kind {
		case api.KindIllegalMove:
			return e.Message
		case api.KindMalformedResponse:
			return "no move could be read from your reply (" + e.Message + ")"
		case api.KindUpstream:
			return "the request failed before a reply arrived"
		}
		return e.Message
	}
	return err.Error()
}
