package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rhuss/schach/pkg/api"
	"github.com/rhuss/schach/pkg/bootstrap"
	"github.com/rhuss/schach/pkg/config"
	"github.com/rhuss/schach/pkg/engine"
	"github.com/rhuss/schach/pkg/game"
	"github.com/rhuss/schach/pkg/rules"
)

type playOptions struct {
	white, black string
	fen          string
	stream       bool
	resume       int
}

func newPlayCmd(c *cli) *cobra.Command {
	o := &playOptions{}
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a game between two models",
		Long: `Play a full game. Players come from match.white and match.black in the
config file unless overridden with --white and --black ("provider/model").

A ply that ends without a legal move pauses the game. With --resume N the
game continues up to N times after a pause, waiting for any Retry-After
the vendor asked for.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.load(cmd)
			if err != nil {
				return err
			}
			return runPlay(cmd, cfg, o)
		},
	}
	cmd.Flags().StringVar(&o.white, "white", "", "white player as provider/model")
	cmd.Flags().StringVar(&o.black, "black", "", "black player as provider/model")
	cmd.Flags().StringVar(&o.fen, "fen", "", "start position (default: initial position)")
	cmd.Flags().BoolVar(&o.stream, "stream", false, "stream replies and print them as they arrive")
	cmd.Flags().IntVar(&o.resume, "resume", 0, "resume up to N times after a paused ply")
	return cmd
}

func runPlay(cmd *cobra.Command, cfg *config.Config, o *playOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if o.white != "" {
		cfg.Match.White.Player = o.white
	}
	if o.black != "" {
		cfg.Match.Black.Player = o.black
	}

	white, err := player(cfg, cfg.Match.White, o.stream)
	if err != nil {
		return fmt.Errorf("white: %w", err)
	}
	black, err := player(cfg, cfg.Match.Black, o.stream)
	if err != nil {
		return fmt.Errorf("black: %w", err)
	}

	board := rules.New()
	if o.fen != "" {
		if board, err = rules.FromFEN(o.fen); err != nil {
			return err
		}
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
	for _, p := range []game.Player{white, black} {
		if err := checkPlayer(eng, p); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "White: %s/%s\nBlack: %s/%s\n\n", white.Provider, white.Model, black.Provider, black.Model)

	match := game.NewMatch(eng, white, black, board)
	p := &printer{out: out, stream: o.stream}

	resumes := o.resume
	for {
		_, err := match.Run(ctx, p.print)
		if err == nil {
			fmt.Fprintf(out, "\n%s\n", board.PGN())
			return nil
		}

		var paused *game.PausedError
		if !errors.As(err, &paused) || resumes == 0 || ctx.Err() != nil {
			fmt.Fprintf(out, "\n%s\n", board.PGN())
			return err
		}
		resumes--

		wait := paused.Outcome.RetryAfter
		if wait > 0 {
			fmt.Fprintf(out, "   resuming in %s\n", wait)
		}
		select {
		case <-ctx.Done():
			fmt.Fprintf(out, "\n%s\n", board.PGN())
			return err
		case <-time.After(wait):
		}
	}
}

// player resolves a side of the match config into a game player.
func player(cfg *config.Config, pc config.PlayerConfig, stream bool) (game.Player, error) {
	if pc.Player == "" {
		return game.Player{}, errors.New("no player configured, use --white/--black or match.white/match.black")
	}
	prov, model, defaults, err := cfg.Player(pc)
	if err != nil {
		return game.Player{}, err
	}
	if stream {
		defaults.Streaming = true
	}
	return game.Player{
		Provider: prov,
		Model:    model,
		Settings: bootstrap.Settings(defaults, bootstrap.Keys(cfg)[prov]),
	}, nil
}

// checkPlayer fails for unknown models and warns when streaming was asked
// of a model that answers in one piece.
func checkPlayer(eng *engine.Engine, p game.Player) error {
	_, model, err := eng.Registry().Resolve(p.Provider, p.Model)
	if err != nil {
		return err
	}
	if p.Settings.Streaming && !model.SupportsStreaming {
		slog.Warn("model does not support streaming, replies are printed whole",
			"player", fmt.Sprintf("%s/%s", p.Provider, p.Model))
	}
	return nil
}

// printer renders match events as a move list. Streamed replies are
// printed as deltas of the cumulative snapshots.
type printer struct {
	out    io.Writer
	stream bool

	attempt int
	shown   int
	midLine bool
}

func (p *printer) print(e game.Event) {
	switch e.Type {
	case game.PlyStarted:
		p.attempt, p.shown = 0, 0
		fmt.Fprintf(p.out, "%3d. %-5s %s\n", e.Ply, e.Side, e.Player)

	case game.Thinking:
		u := e.Update
		if u.Retry {
			p.endLine()
			fmt.Fprintf(p.out, "     retry after attempt %d: %s\n", u.Attempt, u.Rejection)
			return
		}
		if !p.stream {
			return
		}
		if u.Attempt != p.attempt {
			p.endLine()
			p.attempt, p.shown = u.Attempt, 0
		}
		if len(u.Text) <= p.shown {
			return
		}
		if !p.midLine {
			fmt.Fprint(p.out, "     > ")
			p.midLine = true
		}
		fmt.Fprint(p.out, oneLine(u.Text[p.shown:]))
		p.shown = len(u.Text)

	case game.MoveApplied:
		p.endLine()
		suffix := ""
		if e.Status != rules.Ongoing {
			suffix = " (" + string(e.Status) + ")"
		}
		attempts := ""
		if e.Outcome != nil && e.Outcome.Attempts > 1 {
			attempts = fmt.Sprintf(" after %d attempts", e.Outcome.Attempts)
		}
		fmt.Fprintf(p.out, "     %s%s%s\n", e.Move, suffix, attempts)

	case game.Paused:
		p.endLine()
		fmt.Fprintf(p.out, "     paused: %s\n", describe(e.Outcome))

	case game.Finished:
		p.endLine()
		if e.Method != "" {
			fmt.Fprintf(p.out, "\nResult: %s (%s)\n", e.Result, e.Method)
		} else {
			fmt.Fprintf(p.out, "\nResult: %s\n", e.Result)
		}
	}
}

func (p *printer) endLine() {
	if p.midLine {
		fmt.Fprintln(p.out)
		p.midLine = false
	}
}

func describe(o *api.Outcome) string {
	if o == nil {
		return "unknown"
	}
	if o.Err != nil {
		return fmt.Sprintf("%s after %d attempts: %v", o.Status, o.Attempts, o.Err)
	}
	return fmt.Sprintf("%s after %d attempts", o.Status, o.Attempts)
}

var newlines = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func oneLine(s string) string {
	return newlines.Replace(s)
}
