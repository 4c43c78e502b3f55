package mockvendor

import (
	"regexp"
	"strings"

	"github.com/rhuss/schach/pkg/api"
	"github.com/rhuss/schach/pkg/rules"
)

// Mode selects how the mock answers.
type Mode string

const (
	// Legal answers with the first legal move wrapped in prose.
	Legal Mode = "legal"

	// Illegal answers with a well-formed move that is not legal.
	Illegal Mode = "illegal"

	// Garbage answers with text that contains no move.
	Garbage Mode = "garbage"

	// Error fails with HTTP 500.
	Error Mode = "error"

	// RateLimit fails with HTTP 429 and a Retry-After header.
	RateLimit Mode = "ratelimit"

	// Stubborn answers illegally until the prompt lists the legal moves.
	Stubborn Mode = "stubborn"
)

// Modes lists every mode in catalog order.
var Modes = []Mode{Legal, Illegal, Garbage, Error, RateLimit, Stubborn}

// ModelID is the model that selects mode.
func ModelID(mode Mode) string {
	return "mock-" + string(mode)
}

// Models returns a catalog entry per mode for the local adapter.
func Models() []api.ModelDescriptor {
	out := make([]api.ModelDescriptor, 0, len(Modes))
	for _, m := range Modes {
		out = append(out, api.ModelDescriptor{
			ID:                ModelID(m),
			DisplayName:       "Mock (" + string(m) + ")",
			MaxTokenCeiling:   1024,
			SupportsStreaming: true,
		})
	}
	return out
}

// modeFor picks the mode named by model, falling back to def.
func modeFor(model string, def Mode) Mode {
	if name, ok := strings.CutPrefix(model, "mock-"); ok {
		for _, m := range Modes {
			if string(m) == name {
				return m
			}
		}
	}
	return def
}

var fenLine = regexp.MustCompile(`(?m)^Current position \(FEN\): (.+)$`)

// illegalCandidates are tried in order; the first that is not legal in the
// position is used.
var illegalCandidates = []string{"e5", "e4", "Qh5", "Nf6", "Ke2", "d5", "Bb4", "O-O"}

// reply computes the answer text for prompt in mode. ok is false when the
// prompt carries no usable position.
func reply(mode Mode, prompt string) (text string, ok bool) {
	m := fenLine.FindStringSubmatch(prompt)
	if m == nil {
		return "", false
	}
	game, err := rules.FromFEN(m[1])
	if err != nil {
		return "", false
	}
	legal := game.LegalMoves()
	if len(legal) == 0 {
		return "", false
	}

	if mode == Stubborn {
		mode = Illegal
		if strings.Contains(prompt, "Legal moves:") {
			mode = Legal
		}
	}

	switch mode {
	case Illegal:
		for _, c := range illegalCandidates {
			if _, isLegal := game.IsLegal(c); !isLegal {
				return c, true
			}
		}
		return "Kz9", true
	case Garbage:
		return "I would rather talk about the weather today.", true
	default:
		return "Looking at the position, I will play " + legal[0] + ".", true
	}
}
