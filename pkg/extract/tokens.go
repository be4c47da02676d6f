package extract

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds a note into the form every matcher sees: NFKC so that
// "SpO₂" reads as "spo2", then Unicode case folding.
func Normalize(note string) string {
	// cases.Caser is stateful, so one is created per call.
	return cases.Fold().String(norm.NFKC.String(note))
}

type token struct {
	text   string
	clause int
}

// isClauseBreak reports whether r ends a clause. Token windows never span
// a clause break.
func isClauseBreak(r rune) bool {
	switch r {
	case '.', ',', ';', '\n', '!', '?':
		return true
	}
	return false
}

// tokenize splits normalized text into alphanumeric tokens tagged with the
// clause they belong to.
func tokenize(text string) []token {
	var (
		out    []token
		clause int
		b      strings.Builder
	)
	flush := func() {
		if b.Len() > 0 {
			out = append(out, token{text: b.String(), clause: clause})
			b.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case isClauseBreak(r):
			flush()
			clause++
		default:
			flush()
		}
	}
	flush()
	return out
}

// term is a phrase expressed as a token sequence.
type term []string

func terms(phrases ...string) []term {
	out := make([]term, 0, len(phrases))
	for _, p := range phrases {
		out = append(out, term(strings.Fields(p)))
	}
	return out
}

// span is the half-open token range [start, end) of one term occurrence.
type span struct {
	start, end int
}

// find returns every occurrence of any of ts in toks, in token order.
// A phrase never matches across a clause break.
func find(toks []token, ts []term) []span {
	var out []span
	for i := range toks {
		for _, t := range ts {
			if matchAt(toks, i, t) {
				out = append(out, span{start: i, end: i + len(t)})
				break
			}
		}
	}
	return out
}

func matchAt(toks []token, i int, t term) bool {
	if len(t) == 0 || i+len(t) > len(toks) {
		return false
	}
	for j, w := range t {
		if toks[i+j].text != w || toks[i+j].clause != toks[i].clause {
			return false
		}
	}
	return true
}

func startsAny(toks []token, i int, ts []term) bool {
	for _, t := range ts {
		if matchAt(toks, i, t) {
			return true
		}
	}
	return false
}

func contains(toks []token, ts []term) bool {
	for i := range toks {
		if startsAny(toks, i, ts) {
			return true
		}
	}
	return false
}
