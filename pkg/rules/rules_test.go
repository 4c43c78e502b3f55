package rules

import (
	"strings"
	"testing"

	"github.com/rhuss/schach/pkg/api"
)

func play(t *testing.T, g *Game, moves ...string) Status {
	t.Helper()
	var st Status
	for _, mv := range moves {
		var err error
		st, err = g.Apply(mv)
		if err != nil {
			t.Fatalf("Apply(%q): %v", mv, err)
		}
	}
	return st
}

func TestNewGame(t *testing.T) {
	g := New()
	if g.FEN() != StartFEN {
		t.Errorf("FEN = %q", g.FEN())
	}
	if g.Turn() != "White" {
		t.Errorf("Turn = %q", g.Turn())
	}
	if n := len(g.LegalMoves()); n != 20 {
		t.Errorf("expected 20 legal moves, got %d", n)
	}
}

func TestLegalMovesFreshSlice(t *testing.T) {
	g := New()
	a := g.LegalMoves()
	a[0] = "garbage"
	if b := g.LegalMoves(); b[0] == "garbage" {
		t.Error("LegalMoves shares its backing array")
	}
}

func TestIsLegal(t *testing.T) {
	g := New()
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"e4", "e4", true},
		{"Nf3", "Nf3", true},
		{"nf3", "Nf3", true},
		{"Nf3!", "Nf3", true},
		{"e2e4", "e4", true},
		{"g1f3", "Nf3", true},
		{"e5", "", false},
		{"Ke2", "", false},
		{"", "", false},
		{"hello", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := g.IsLegal(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("IsLegal(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestApplyIllegalLeavesGameUnchanged(t *testing.T) {
	g := New()
	before := g.FEN()
	_, err := g.Apply("e5")
	if api.KindOf(err) != api.KindIllegalMove {
		t.Fatalf("expected illegal move error, got %v", err)
	}
	if g.FEN() != before {
		t.Error("illegal move changed the position")
	}
}

func TestHistory(t *testing.T) {
	g := New()
	play(t, g, "e4", "e5", "g1f3")
	got := strings.Join(g.History(), " ")
	if got != "e4 e5 Nf3" {
		t.Errorf("History = %q", got)
	}
	if g.Turn() != "Black" {
		t.Errorf("Turn = %q", g.Turn())
	}
}

func TestCheck(t *testing.T) {
	g := New()
	if st := play(t, g, "e4", "e5", "Bc4", "Nc6", "Bxf7+"); st != Check {
		t.Errorf("expected check, got %s", st)
	}
}

func TestCheckmate(t *testing.T) {
	g := New()
	st := play(t, g, "f3", "e5", "g4", "Qh4")
	if st != Checkmate || !st.Terminal() {
		t.Fatalf("expected checkmate, got %s", st)
	}
	if result, method := g.Result(); result != "0-1" || method == "" {
		t.Errorf("Result = %q, %q", result, method)
	}
	if _, err := g.Apply("a3"); err == nil {
		t.Error("expected error applying a move after mate")
	}
}

func TestStalemate(t *testing.T) {
	g, err := FromFEN("7k/8/5QK1/8/8/8/8/8 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	if st := play(t, g, "Qf7"); st != Stalemate {
		t.Errorf("expected stalemate, got %s", st)
	}
	if result, _ := g.Result(); result != "1/2-1/2" {
		t.Errorf("Result = %q", result)
	}
}

func TestThreefoldRepetitionIsClaimed(t *testing.T) {
	g := New()
	st := play(t, g, "Nf3", "Nf6", "Ng1", "Ng8", "Nf3", "Nf6", "Ng1", "Ng8")
	if st != Draw {
		t.Errorf("expected draw, got %s", st)
	}
}

func TestFromFENInvalid(t *testing.T) {
	_, err := FromFEN("not a fen")
	if api.KindOf(err) != api.KindConfiguration {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestReset(t *testing.T) {
	fen := "7k/8/5QK1/8/8/8/8/8 w - - 0 1"
	g, err := FromFEN(fen)
	if err != nil {
		t.Fatal(err)
	}
	play(t, g, "Qf7")
	g.Reset()
	if g.FEN() != fen {
		t.Errorf("Reset FEN = %q, want %q", g.FEN(), fen)
	}
	if len(g.History()) != 0 {
		t.Error("Reset kept history")
	}
}

func TestInventory(t *testing.T) {
	inv := New().Inventory()
	lines := strings.Split(strings.TrimSpace(inv), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", inv)
	}
	if !strings.HasPrefix(lines[0], "White: King e1, Queen d1, Rook a1, Rook h1, Bishop c1, Bishop f1, Knight b1, Knight g1, Pawn a2") {
		t.Errorf("white line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "Black: King e8, Queen d8") {
		t.Errorf("black line = %q", lines[1])
	}
	for _, line := range lines {
		if n := strings.Count(line, ",") + 1; n != 16 {
			t.Errorf("expected 16 pieces, got %d in %q", n, line)
		}
	}
}

func TestPGN(t *testing.T) {
	g := New()
	play(t, g, "e4", "e5")
	if pgn := g.PGN(); !strings.Contains(pgn, "1. e4 e5") {
		t.Errorf("PGN = %q", pgn)
	}
}
