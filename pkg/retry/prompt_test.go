package retry

import (
	"errors"
	"strings"
	"testing"

	"github.com/rhuss/schach/pkg/api"
)

func TestEnrichedPrompt(t *testing.T) {
	mctx := api.MoveRequestContext{
		Position:   "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1",
		History:    []string{"e4"},
		LegalMoves: []string{"e5", "c5", "Nf6"},
	}
	got := EnrichedPrompt(mctx, "White: K e1\nBlack: K e8\n", api.NewIllegalMoveError("e4"))

	for _, want := range []string{
		`move "e4" is not legal in this position`,
		"Side to move: Black",
		"Moves played so far: 1. e4",
		"Pieces on the board:\nWhite: K e1\nBlack: K e8\n",
		"Legal moves: e5, c5, Nf6",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q:\n%s", want, got)
		}
	}
}

func TestEnrichedPromptWithoutInventory(t *testing.T) {
	got := EnrichedPrompt(api.MoveRequestContext{LegalMoves: []string{"e4"}}, "", nil)
	if strings.Contains(got, "Pieces on the board") {
		t.Errorf("empty inventory should be omitted:\n%s", got)
	}
}

func TestRejectionReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "no reason given"},
		{api.NewIllegalMoveError("Qh5"), `move "Qh5" is not legal in this position`},
		{api.NewMalformedResponseError("empty content", nil), "no move could be read from your reply (empty content)"},
		{api.NewUpstreamError(502, "bad gateway <html>", nil), "the request failed before a reply arrived"},
		{errors.New("plain"), "plain"},
	}
	for _, tt := range tests {
		if got := RejectionReason(tt.err); got != tt.want {
			t.Errorf("RejectionReason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
