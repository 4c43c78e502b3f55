package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rhuss/schach/pkg/api"
	"github.com/rhuss/schach/pkg/bootstrap"
	"github.com/rhuss/schach/pkg/config"
	"github.com/rhuss/schach/pkg/engine"
	"github.com/rhuss/schach/pkg/game"
	"github.com/rhuss/schach/pkg/rules"
	"github.com/rhuss/schach/pkg/server"
)

type moveOptions struct {
	player      string
	fen         string
	history     []string
	stream      bool
	temperature float64
	maxTokens   int
	json        bool
}

// errNotAccepted makes the command exit non-zero after the outcome has been
// printed.
var errNotAccepted = errors.New("no legal move resolved")

func newMoveCmd(c *cli) *cobra.Command {
	o := &moveOptions{}
	cmd := &cobra.Command{
		Use:   "move",
		Short: "Resolve a single move",
		Long: `Ask one model for a move in the given position. The move is validated
and retried like a ply of a game. The command exits non-zero when no legal
move was resolved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.load(cmd)
			if err != nil {
				return err
			}
			return runMove(cmd, cfg, o)
		},
	}
	cmd.Flags().StringVarP(&o.player, "player", "p", "", "player as provider/model (required)")
	cmd.Flags().StringVar(&o.fen, "fen", rules.StartFEN, "position to move in")
	cmd.Flags().StringSliceVar(&o.history, "history", nil, "moves played so far, for the prompt")
	cmd.Flags().BoolVar(&o.stream, "stream", false, "stream the reply and print it as it arrives")
	cmd.Flags().Float64Var(&o.temperature, "temperature", -1, "first attempt temperature (default: config)")
	cmd.Flags().IntVar(&o.maxTokens, "max-tokens", 0, "first attempt token budget (default: config)")
	cmd.Flags().BoolVar(&o.json, "json", false, "print the outcome as JSON")
	_ = cmd.MarkFlagRequired("player")
	return cmd
}

func runMove(cmd *cobra.Command, cfg *config.Config, o *moveOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pc := config.PlayerConfig{Player: o.player, TokenBudget: o.maxTokens}
	if o.temperature >= 0 {
		if o.temperature > 2 {
			return fmt.Errorf("--temperature must be in [0, 2], got %g", o.temperature)
		}
		pc.Temperature = &o.temperature
	}
	p, err := player(cfg, pc, o.stream)
	if err != nil {
		return err
	}

	board, err := rules.FromFEN(o.fen)
	if err != nil {
		return err
	}
	legal := board.LegalMoves()
	if len(legal) == 0 {
		return errors.New("the position has no legal moves")
	}

	store, err := bootstrap.Journal(ctx, cfg.Journal)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}
	eng, err := bootstrap.Engine(cfg, store, slog.Default())
	if err != nil {
		return err
	}
	if err := checkPlayer(eng, p); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	streamed := &printer{out: cmd.ErrOrStderr(), stream: o.stream}
	if !o.json {
		streamed.out = out
	}

	outcome := eng.ResolveMove(ctx, engine.Request{
		Provider:   p.Provider,
		Model:      p.Model,
		Position:   board.FEN(),
		History:    o.history,
		LegalMoves: legal,
		Board:      board,
		Base:       p.Settings,
		OnUpdate: func(u engine.Update) {
			streamed.print(thinkingEvent(u))
		},
	})
	streamed.endLine()

	resp := server.MoveResponse{
		ResolutionID: outcome.ResolutionID,
		Status:       outcome.Status,
		Move:         outcome.Move,
		Attempts:     outcome.Attempts,
	}
	if outcome.Accepted() {
		status, err := board.Apply(outcome.Move)
		if err != nil {
			return err
		}
		resp.FEN = board.FEN()
		resp.GameStatus = status
	} else {
		resp.Error = apiError(outcome.Err)
		resp.RetryAfterSeconds = outcome.RetryAfter.Seconds()
	}

	if o.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return err
		}
	} else {
		printOutcome(cmd, resp)
	}

	if !outcome.Accepted() {
		return errNotAccepted
	}
	return nil
}

func printOutcome(cmd *cobra.Command, r server.MoveResponse) {
	out := cmd.OutOrStdout()
	if r.Status == api.OutcomeAccepted {
		fmt.Fprintf(out, "%s\n", r.Move)
		fmt.Fprintf(out, "  resolution: %s\n  attempts:   %d\n  position:   %s\n  status:     %s\n",
			r.ResolutionID, r.Attempts, r.FEN, r.GameStatus)
		return
	}
	fmt.Fprintf(out, "%s after %d attempts\n", r.Status, r.Attempts)
	fmt.Fprintf(out, "  resolution: %s\n", r.ResolutionID)
	if r.Error != nil {
		fmt.Fprintf(out, "  error:      %s: %s\n", r.Error.Kind, r.Error.Message)
		if cause := r.Error.Unwrap(); cause != nil {
			fmt.Fprintf(out, "  cause:      %v\n", cause)
		}
	}
	if r.RetryAfterSeconds > 0 {
		fmt.Fprintf(out, "  retry in:   %gs\n", r.RetryAfterSeconds)
	}
}

func thinkingEvent(u engine.Update) game.Event {
	return game.Event{Type: game.Thinking, Update: &u}
}

func apiError(err error) *api.Error {
	if err == nil {
		return nil
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &api.Error{Kind: api.KindOf(err), Message: err.Error()}
}
