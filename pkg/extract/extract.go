package extract

import (
	"cmp"
	"regexp"
	"slices"
	"strings"

	"github.com/rhuss/schach/pkg/api"
	"github.com/rhuss/schach/pkg/debug"
)

const (
	// directMatchMaxLen bounds the trimmed text accepted as a bare move token.
	directMatchMaxLen = 6

	// firstLineMaxLen bounds the first-line fallback.
	firstLineMaxLen = 10
)

// ErrorPhrases are case-insensitive substrings that mark a response as a
// vendor error or refusal rather than a move.
var ErrorPhrases = []string{
	"invalid",
	"unauthorized",
	"cannot",
	"api key",
	"error:",
	"rate limit",
	"quota",
	"forbidden",
	"not allowed",
}

// moveToken matches one move in SAN, including castling written with O or 0.
const moveToken = `(?:O-O-O|O-O|0-0-0|0-0|[KQRBN][a-h]?[1-8]?x?[a-h][1-8]|[a-h]x[a-h][1-8](?:=?[QRBN])?|[a-h][1-8](?:=?[QRBN])?)[+#]?`

var (
	directPattern = regexp.MustCompile(`^` + moveToken + `[!?]*$`)

	// scanPatterns run in order over each text; their matches are merged by
	// position so candidates come out in order of appearance.
	scanPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:O-O-O|O-O|0-0-0|0-0)\b[+#]?`),
		regexp.MustCompile(`\b[KQRBN][a-h]?[1-8]?x?[a-h][1-8]\b[+#]?`),
		regexp.MustCompile(`\b[a-h]x[a-h][1-8](?:=?[QRBN])?\b[+#]?`),
		regexp.MustCompile(`\b[a-h][1-8](?:=?[QRBN])?\b[+#]?`),
	}

	contextualPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bbest move (?:is|would be)[:\s]+\**(` + moveToken + `)`),
		regexp.MustCompile(`(?i)\bI(?:'ll| will| shall) play[:\s]+\**(` + moveToken + `)`),
		regexp.MustCompile(`(?i)\b(?:play|move|choose|recommend|suggest)(?:s|ing)?[:\s]+\**(` + moveToken + `)`),
	}
)

type match struct {
	notation   string
	confidence api.Confidence
	source     string
}

// Extract derives a move candidate from resp. When legalMoves is non-empty,
// candidates that match a legal move are preferred and returned in the
// legal set's spelling. An empty candidate signals extraction failure.
func Extract(resp api.CanonicalResponse, legalMoves []string) api.MoveCandidate {
	text := strings.TrimSpace(resp.Text)
	reasoning := strings.TrimSpace(resp.Reasoning)

	if phrase, ok := containsErrorPhrase(text, reasoning); ok {
		debug.Log("extract", "error phrase detected", "phrase", phrase)
		return api.MoveCandidate{Source: text}
	}

	if len(text) < directMatchMaxLen && directPattern.MatchString(text) {
		return api.MoveCandidate{Notation: text, Confidence: api.ConfidenceDirectMatch, Source: text}
	}

	var found []match
	found = append(found, scan(text)...)
	found = append(found, scan(reasoning)...)
	found = append(found, contextual(strings.TrimSpace(text+"\n"+reasoning))...)

	if len(found) > 0 {
		if len(legalMoves) > 0 {
			for _, m := range found {
				if legal, ok := MatchLegal(m.notation, legalMoves); ok {
					return api.MoveCandidate{Notation: legal, Confidence: m.confidence, Source: m.source}
				}
			}
			debug.Log("extract", "no candidate survived legal filtering", "candidates", len(found))
		}
		first := found[0]
		return api.MoveCandidate{Notation: first.notation, Confidence: first.confidence, Source: first.source}
	}

	line, _, _ := strings.Cut(text, "\n")
	line = strings.TrimSpace(line)
	if line != "" && len(line) < firstLineMaxLen {
		return api.MoveCandidate{Notation: line, Confidence: api.ConfidenceFallbackFirstLine, Source: text}
	}

	return api.MoveCandidate{Source: text}
}

// MatchLegal finds notation in legalMoves and returns the legal spelling.
// An exact match after normalization wins over a case-insensitive one.
func MatchLegal(notation string, legalMoves []string) (string, bool) {
	n := Normalize(notation)
	if n == "" {
		return "", false
	}
	for _, lm := range legalMoves {
		if Normalize(lm) == n {
			return lm, true
		}
	}
	for _, lm := range legalMoves {
		if strings.EqualFold(Normalize(lm), n) {
			return lm, true
		}
	}
	return "", false
}

// Normalize strips annotations (check, mate, !?), promotion "=" and
// surrounding punctuation, and spells castling with the letter O.
func Normalize(notation string) string {
	s := strings.TrimSpace(notation)
	s = strings.Trim(s, ".,;:*`'\"()")
	s = strings.TrimRight(s, "+#!?")
	s = strings.ReplaceAll(s, "=", "")
	switch s {
	case "0-0", "o-o":
		s = "O-O"
	case "0-0-0", "o-o-o":
		s = "O-O-O"
	}
	return s
}

func containsErrorPhrase(texts ...string) (string, bool) {
	for _, t := range texts {
		lower := strings.ToLower(t)
		for _, p := range ErrorPhrases {
			if strings.Contains(lower, p) {
				return p, true
			}
		}
	}
	return "", false
}

func scan(text string) []match {
	if text == "" {
		return nil
	}
	type hit struct {
		start int
		m     match
	}
	var hits []hit
	for _, re := range scanPatterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			hits = append(hits, hit{start: loc[0], m: match{
				notation:   text[loc[0]:loc[1]],
				confidence: api.ConfidencePatternMatch,
				source:     text,
			}})
		}
	}
	slices.SortStableFunc(hits, func(a, b hit) int { return cmp.Compare(a.start, b.start) })

	out := make([]match, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.m)
	}
	return out
}

func contextual(text string) []match {
	if text == "" {
		return nil
	}
	var out []match
	for _, re := range contextualPatterns {
		for _, sub := range re.FindAllStringSubmatch(text, -1) {
			out = append(out, match{
				notation:   sub[1],
				confidence: api.ConfidenceContextualPhraseMatch,
				source:     sub[0],
			})
		}
	}
	return out
}
