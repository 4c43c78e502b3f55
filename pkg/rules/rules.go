package rules

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/notnil/chess"

	"github.com/rhuss/schach/pkg/api"
	"github.com/rhuss/schach/pkg/extract"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Status is the position status after a move.
type Status string

const (
	Ongoing   Status = "ongoing"
	Check     Status = "check"
	Checkmate Status = "checkmate"
	Stalemate Status = "stalemate"
	Draw      Status = "draw"
)

// Terminal reports whether the game is over.
func (s Status) Terminal() bool {
	return s == Checkmate || s == Stalemate || s == Draw
}

// Game is a chess game. It is safe for concurrent use.
type Game struct {
	mu       sync.RWMutex
	startFEN string
	g        *chess.Game
}

// New returns a game in the standard initial position.
func New() *Game {
	return &Game{startFEN: StartFEN, g: chess.NewGame()}
}

// FromFEN returns a game starting at fen.
func FromFEN(fen string) (*Game, error) {
	g, err := newFromFEN(fen)
	if err != nil {
		return nil, err
	}
	return &Game{startFEN: fen, g: g}, nil
}

func newFromFEN(fen string) (*chess.Game, error) {
	opt, err := chess.FEN(strings.TrimSpace(fen))
	if err != nil {
		return nil, api.NewConfigurationError("invalid FEN %q: %v", fen, err)
	}
	return chess.NewGame(opt), nil
}

// FEN returns the current position.
func (g *Game) FEN() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.g.FEN()
}

// Turn returns "White" or "Black".
func (g *Game) Turn() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return colorName(g.g.Position().Turn())
}

// LegalMoves returns the legal moves for the side to move in SAN. The slice
// is freshly allocated on every call.
func (g *Game) LegalMoves() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.legalSAN()
}

func (g *Game) legalSAN() []string {
	pos := g.g.Position()
	moves := g.g.ValidMoves()
	out := make([]string, 0, len(moves))
	for _, m := range moves {
		out = append(out, chess.AlgebraicNotation{}.Encode(pos, m))
	}
	return out
}

// History returns the moves played since the start position, in SAN.
func (g *Game) History() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	moves := g.g.Moves()
	positions := g.g.Positions()
	out := make([]string, 0, len(moves))
	for i, m := range moves {
		out = append(out, chess.AlgebraicNotation{}.Encode(positions[i], m))
	}
	return out
}

// IsLegal reports whether notation names a legal move and returns the
// move's canonical SAN. Check and annotation suffixes, case, 0-0 castling,
// and UCI coordinates ("e2e4") are tolerated.
func (g *Game) IsLegal(notation string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	m, san := g.find(notation)
	return san, m != nil
}

func (g *Game) find(notation string) (*chess.Move, string) {
	notation = strings.TrimSpace(notation)
	if notation == "" {
		return nil, ""
	}

	pos := g.g.Position()
	moves := g.g.ValidMoves()
	sans := make([]string, len(moves))
	for i, m := range moves {
		sans[i] = chess.AlgebraicNotation{}.Encode(pos, m)
	}

	if san, ok := extract.MatchLegal(notation, sans); ok {
		for i := range sans {
			if sans[i] == san {
				return moves[i], san
			}
		}
	}

	if uci, err := (chess.UCINotation{}).Decode(pos, strings.ToLower(notation)); err == nil {
		for i, m := range moves {
			if m.S1() == uci.S1() && m.S2() == uci.S2() && m.Promo() == uci.Promo() {
				return m, sans[i]
			}
		}
	}
	return nil, ""
}

// Apply plays notation and reports the resulting status. An illegal move
// leaves the game unchanged and returns an illegal-move error.
func (g *Game) Apply(notation string) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.g.Outcome() != chess.NoOutcome {
		return g.status(nil), fmt.Errorf("game is over (%s)", g.g.Outcome())
	}

	m, _ := g.find(notation)
	if m == nil {
		return Ongoing, api.NewIllegalMoveError(notation)
	}
	if err := g.g.Move(m); err != nil {
		return Ongoing, api.NewIllegalMoveError(notation)
	}

	// Repetition and fifty-move draws need a claim; AI players always claim.
	if g.g.Outcome() == chess.NoOutcome {
		for _, method := range g.g.EligibleDraws() {
			if method == chess.ThreefoldRepetition || method == chess.FiftyMoveRule {
				if err := g.g.Draw(method); err == nil {
					break
				}
			}
		}
	}
	return g.status(m), nil
}

func (g *Game) status(last *chess.Move) Status {
	switch g.g.Method() {
	case chess.Checkmate:
		return Checkmate
	case chess.Stalemate:
		return Stalemate
	case chess.NoMethod:
	default:
		if g.g.Outcome() == chess.Draw {
			return Draw
		}
	}
	if last != nil && last.HasTag(chess.Check) {
		return Check
	}
	return Ongoing
}

// Result returns the PGN result ("1-0", "0-1", "1/2-1/2" or "*") and the
// method that ended the game, if any.
func (g *Game) Result() (string, string) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	method := ""
	if g.g.Method() != chess.NoMethod {
		method = fmt.Sprint(g.g.Method())
	}
	return string(g.g.Outcome()), method
}

// Reset returns the game to its start position.
func (g *Game) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	fresh, err := newFromFEN(g.startFEN)
	if err != nil {
		fresh = chess.NewGame()
	}
	g.g = fresh
}

// PGN renders the game.
func (g *Game) PGN() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.g.String()
}

// Inventory lists the pieces of each side, one line per color, for example
// "White: King e1, Queen d1, Rook a1, Rook h1, ...".
func (g *Game) Inventory() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return inventory(g.g.Position().Board().SquareMap())
}

type placed struct {
	sq chess.Square
	p  chess.Piece
}

func inventory(squares map[chess.Square]chess.Piece) string {
	var b strings.Builder
	for _, color := range []chess.Color{chess.White, chess.Black} {
		var pieces []placed
		for sq, p := range squares {
			if p != chess.NoPiece && p.Color() == color {
				pieces = append(pieces, placed{sq, p})
			}
		}
		sort.Slice(pieces, func(i, j int) bool {
			ri, rj := pieceRank(pieces[i].p.Type()), pieceRank(pieces[j].p.Type())
			if ri != rj {
				return ri < rj
			}
			return pieces[i].sq < pieces[j].sq
		})

		names := make([]string, len(pieces))
		for i, pc := range pieces {
			names[i] = pieceName(pc.p.Type()) + " " + pc.sq.String()
		}
		fmt.Fprintf(&b, "%s: %s\n", colorName(color), strings.Join(names, ", "))
	}
	return b.String()
}

func pieceRank(t chess.PieceType) int {
	switch t {
	case chess.King:
		return 0
	case chess.Queen:
		return 1
	case chess.Rook:
		return 2
	case chess.Bishop:
		return 3
	case chess.Knight:
		return 4
	default:
		return 5
	}
}

func pieceName(t chess.PieceType) string {
	switch t {
	case chess.King:
		return "King"
	case chess.Queen:
		return "Queen"
	case chess.Rook:
		return "Rook"
	case chess.Bishop:
		return "Bishop"
	case chess.Knight:
		return "Knight"
	default:
		return "Pawn"
	}
}

func colorName(c chess.Color) string {
	if c == chess.Black {
		return "Black"
	}
	return "White"
}
