package extract

import (
	"slices"
	"testing"

	"github.com/rhuss/schach/pkg/api"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name           string
		text           string
		reasoning      string
		legal          []string
		wantNotation   string
		wantConfidence api.Confidence
	}{
		{
			name:           "bare pawn move without legal set",
			text:           "e4",
			wantNotation:   "e4",
			wantConfidence: api.ConfidenceDirectMatch,
		},
		{
			name:           "bare move with surrounding whitespace",
			text:           "  Nf3 \n",
			legal:          []string{"Nf3", "e4"},
			wantNotation:   "Nf3",
			wantConfidence: api.ConfidenceDirectMatch,
		},
		{
			name:           "castling direct",
			text:           "O-O",
			wantNotation:   "O-O",
			wantConfidence: api.ConfidenceDirectMatch,
		},
		{
			name:           "best move phrase filtered by legal set",
			text:           "I think the best move is Nf3 because it develops quickly.",
			legal:          []string{"Nf3", "e4", "d4"},
			wantNotation:   "Nf3",
			wantConfidence: api.ConfidencePatternMatch,
		},
		{
			name:           "error phrase beats move token",
			text:           "Error: invalid API key",
			legal:          []string{"e4"},
			wantNotation:   "",
			wantConfidence: api.ConfidenceNone,
		},
		{
			name:         "error phrase in reasoning",
			text:         "e4",
			reasoning:    "The request was unauthorized.",
			wantNotation: "",
		},
		{
			name:           "legal filtering skips illegal earlier token",
			text:           "After Qh5 the reply Nc6 is natural; I prefer d4.",
			legal:          []string{"d4", "Nc3"},
			wantNotation:   "d4",
			wantConfidence: api.ConfidencePatternMatch,
		},
		{
			name:           "case-insensitive legal match returns legal spelling",
			text:           "Let me play nf3 here, it is solid.",
			legal:          []string{"e4", "Nf3"},
			wantNotation:   "Nf3",
			wantConfidence: api.ConfidenceContextualPhraseMatch,
		},
		{
			name:           "check suffix ignored when filtering",
			text:           "The strongest continuation is Qxf7 with mate.",
			legal:          []string{"Qxf7#", "Qh5"},
			wantNotation:   "Qxf7#",
			wantConfidence: api.ConfidencePatternMatch,
		},
		{
			name:           "zero castling matches letter castling",
			text:           "I would castle: 0-0 looks safest.",
			legal:          []string{"O-O", "Kf1"},
			wantNotation:   "O-O",
			wantConfidence: api.ConfidencePatternMatch,
		},
		{
			name:           "reasoning channel scanned after text",
			text:           "Here is my answer.",
			reasoning:      "Considering the center, d4 is best.",
			legal:          []string{"d4", "e4"},
			wantNotation:   "d4",
			wantConfidence: api.ConfidencePatternMatch,
		},
		{
			name:           "unfiltered fallback when nothing legal",
			text:           "I like Bb5 and then Ba4 in this line.",
			legal:          []string{"e4", "d4"},
			wantNotation:   "Bb5",
			wantConfidence: api.ConfidencePatternMatch,
		},
		{
			name:           "pawn capture with promotion",
			text:           "Clearly exd8=Q wins material.",
			legal:          []string{"exd8=Q+", "exd8=N"},
			wantNotation:   "exd8=Q+",
			wantConfidence: api.ConfidencePatternMatch,
		},
		{
			name:           "first line fallback",
			text:           "resign\nI have no good moves left in this position.",
			wantNotation:   "resign",
			wantConfidence: api.ConfidenceFallbackFirstLine,
		},
		{
			name:         "long prose without moves",
			text:         "This position is very complicated and I need more time to think.",
			wantNotation: "",
		},
		{
			name:         "empty response",
			text:         "",
			wantNotation: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(api.CanonicalResponse{Text: tt.text, Reasoning: tt.reasoning}, tt.legal)
			if got.Notation != tt.wantNotation {
				t.Errorf("Notation = %q, want %q", got.Notation, tt.wantNotation)
			}
			if got.Confidence != tt.wantConfidence {
				t.Errorf("Confidence = %q, want %q", got.Confidence, tt.wantConfidence)
			}
		})
	}
}

func TestExtractNeverReturnsOutOfSetWhenFilterMatches(t *testing.T) {
	legal := []string{"e4", "d4", "Nf3", "c4", "O-O"}
	texts := []string{
		"Qh5 is tempting but e4 is principled.",
		"I will play Nf3",
		"Maybe Bc4? No, c4 instead.",
		"Kf1 or castle with O-O, I choose O-O",
		"My recommendation: d4. Also considered Nc3 and Bb5.",
	}
	for _, text := range texts {
		got := Extract(api.CanonicalResponse{Text: text}, legal)
		if !slices.Contains(legal, got.Notation) {
			t.Errorf("Extract(%q) = %q, want a member of %v", text, got.Notation, legal)
		}
	}
}

func TestExtractErrorPhrasesAlwaysEmpty(t *testing.T) {
	for _, phrase := range ErrorPhrases {
		text := "e4 " + phrase + " Nf3"
		got := Extract(api.CanonicalResponse{Text: text}, []string{"e4", "Nf3"})
		if !got.Empty() {
			t.Errorf("Extract(%q) = %q, want empty", text, got.Notation)
		}
	}
}

func TestExtractRefusalsAlwaysEmpty(t *testing.T) {
	tests := []struct {
		text  string
		legal []string
	}{
		{"That move is not allowed here. Nf3", []string{"Nf3"}},
		{"Quota reached. e4", []string{"e4"}},
		{"NOT ALLOWED: e4", []string{"e4"}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := Extract(api.CanonicalResponse{Text: tt.text}, tt.legal)
			if !got.Empty() {
				t.Errorf("Extract(%q) = %q (%s), want empty", tt.text, got.Notation, got.Confidence)
			}
		})
	}

	reasoning := api.CanonicalResponse{Text: "e4", Reasoning: "the quota is almost used up"}
	if got := Extract(reasoning, []string{"e4"}); !got.Empty() {
		t.Errorf("phrase in reasoning: got %q, want empty", got.Notation)
	}
}

func TestExtractIsPure(t *testing.T) {
	resp := api.CanonicalResponse{Text: "I recommend Nf3, then maybe e4."}
	legal := []string{"e4", "Nf3"}
	first := Extract(resp, legal)
	for range 5 {
		if got := Extract(resp, legal); got != first {
			t.Fatalf("Extract not deterministic: %+v vs %+v", got, first)
		}
	}
	if legal[0] != "e4" || legal[1] != "Nf3" {
		t.Error("Extract mutated the legal move slice")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Nf3+", "Nf3"},
		{"Qxf7#", "Qxf7"},
		{"e8=Q", "e8Q"},
		{"0-0", "O-O"},
		{"0-0-0+", "O-O-O"},
		{"**Bb5**", "Bb5"},
		{"e4!?", "e4"},
		{" d4. ", "d4"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMatchLegalPrefersExactCase(t *testing.T) {
	legal := []string{"bxc4", "Bxc4"}
	got, ok := MatchLegal("Bxc4", legal)
	if !ok || got != "Bxc4" {
		t.Errorf("MatchLegal = %q, %v; want Bxc4", got, ok)
	}
	got, ok = MatchLegal("bxc4", legal)
	if !ok || got != "bxc4" {
		t.Errorf("MatchLegal = %q, %v; want bxc4", got, ok)
	}
	if _, ok := MatchLegal("Ke2", legal); ok {
		t.Error("MatchLegal should not match Ke2")
	}
}
