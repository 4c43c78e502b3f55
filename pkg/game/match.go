package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rhuss/schach/pkg/api"
	"github.com/rhuss/schach/pkg/debug"
	"github.com/rhuss/schach/pkg/engine"
	"github.com/rhuss/schach/pkg/rules"
)

// ErrPaused is matched by the error Run returns when a ply ends without a
// legal move or the match is paused.
var ErrPaused = errors.New("match paused")

// ErrRunning is returned by Run while another Run is in progress.
var ErrRunning = errors.New("match already running")

// PausedError carries the outcome that paused the match.
type PausedError struct {
	Side    string
	Outcome api.Outcome
}

func (e *PausedError) Error() string {
	if e.Outcome.Err != nil {
		return fmt.Sprintf("match paused on %s's move: %v", e.Side, e.Outcome.Err)
	}
	return fmt.Sprintf("match paused on %s's move: %s", e.Side, e.Outcome.Status)
}

func (e *PausedError) Is(target error) bool { return target == ErrPaused }

func (e *PausedError) Unwrap() error { return e.Outcome.Err }

// Resolver resolves one move. *engine.Engine implements it.
type Resolver interface {
	ResolveMove(ctx context.Context, req engine.Request) api.Outcome
}

// Player is one side of a match.
type Player struct {
	// Name labels the player in events; it defaults to provider/model.
	Name     string
	Provider api.ProviderID
	Model    string
	Settings engine.Settings
}

func (p Player) label() string {
	if p.Name != "" {
		return p.Name
	}
	return string(p.Provider) + "/" + p.Model
}

// Match alternates two players on one board.
type Match struct {
	White, Black Player

	resolver Resolver
	board    *rules.Game
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// NewMatch creates a match on board. A nil board starts from the initial
// position.
func NewMatch(r Resolver, white, black Player, board *rules.Game) *Match {
	if board == nil {
		board = rules.New()
	}
	return &Match{
		White:    white,
		Black:    black,
		resolver: r,
		board:    board,
		logger:   slog.Default(),
	}
}

// Board returns the match board.
func (m *Match) Board() *rules.Game {
	return m.board
}

// Run plays until the game ends, returning the PGN result, or until a ply
// fails, returning an error matching ErrPaused. Calling Run again resumes
// from the current position. onEvent may be nil; it is called from Run's
// goroutine.
func (m *Match) Run(ctx context.Context, onEvent func(Event)) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return "", ErrRunning
	}
	m.running = true
	m.cancel = cancel
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running = false
		m.cancel = nil
		m.mu.Unlock()
	}()

	emit := func(e Event) {
		if onEvent != nil {
			onEvent(e)
		}
	}

	for {
		if result, method := m.board.Result(); result != "*" {
			emit(Event{Type: Finished, Ply: m.plyCount(), Result: result, Method: method})
			m.logger.Info("match finished", "result", result, "method", method, "plies", m.plyCount())
			return result, nil
		}

		side, player := m.toMove()
		ply := m.plyCount() + 1
		emit(Event{Type: PlyStarted, Ply: ply, Side: side, Player: player.label()})
		debug.Log("game", "ply started", "ply", ply, "side", side, "player", player.label())

		out := m.resolver.ResolveMove(ctx, engine.Request{
			Provider:   player.Provider,
			Model:      player.Model,
			Position:   m.board.FEN(),
			History:    m.board.History(),
			LegalMoves: m.board.LegalMoves(),
			Board:      m.board,
			Base:       player.Settings,
			OnUpdate: func(u engine.Update) {
				emit(Event{Type: Thinking, Ply: ply, Side: side, Player: player.label(), Update: &u})
			},
		})

		if !out.Accepted() {
			emit(Event{Type: Paused, Ply: ply, Side: side, Player: player.label(), Outcome: &out})
			m.logger.Warn("match paused", "ply", ply, "side", side, "status", out.Status, "kind", out.Kind())
			return "", &PausedError{Side: side, Outcome: out}
		}

		status, err := m.board.Apply(out.Move)
		if err != nil {
			// The engine validated the move against this board, so only a
			// concurrent Reset can land here.
			out = api.Outcome{ResolutionID: out.ResolutionID, Status: api.OutcomeFatal, Err: err, Attempts: out.Attempts}
			emit(Event{Type: Paused, Ply: ply, Side: side, Player: player.label(), Outcome: &out})
			return "", &PausedError{Side: side, Outcome: out}
		}

		emit(Event{
			Type:    MoveApplied,
			Ply:     ply,
			Side:    side,
			Player:  player.label(),
			Move:    out.Move,
			FEN:     m.board.FEN(),
			Status:  status,
			Outcome: &out,
		})
	}
}

// Pause cancels the in-flight resolution. Run returns an ErrPaused error.
func (m *Match) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
}

// Reset pauses the match and returns the board to its start position.
func (m *Match) Reset() {
	m.Pause()
	m.board.Reset()
}

// Running reports whether Run is in progress.
func (m *Match) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Match) toMove() (string, Player) {
	if m.board.Turn() == "White" {
		return "white", m.White
	}
	return "black", m.Black
}

func (m *Match) plyCount() int {
	return len(m.board.History())
}
