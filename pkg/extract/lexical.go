package extract

// Extractor derives a FeatureSet from a clinical note. Implementations must
// be pure and total: any text yields a FeatureSet and the same text always
// yields the same one.
type Extractor interface {
	Extract(note string) FeatureSet
}

// Default token windows. Qualifiers and negators that follow the term get
// a wider window than those that lead it: "ct brain has been ordered" reads
// naturally, while a negator several words before a term usually belongs to
// something else, as in "no fracture on xray".
const (
	DefaultPendingWindow      = 5
	DefaultLeadPendingWindow  = 3
	DefaultNegationWindow     = 4
	DefaultLeadNegationWindow = 2
)

// Lexical is the regex and token-window Extractor. Windows count the tokens
// strictly between the term and its qualifier and never cross a clause.
type Lexical struct {
	// PendingWindow bounds the distance from an investigation term to an
	// advised/ordered style qualifier after it.
	PendingWindow int
	// LeadPendingWindow bounds the distance from a qualifier to the term
	// after it.
	LeadPendingWindow int
	// NegationWindow bounds the distance from an investigation term to a
	// trailing negator ("ct could not be done").
	NegationWindow int
	// LeadNegationWindow bounds the distance from a leading negator to the
	// term after it ("no ct", "patient refused ct").
	LeadNegationWindow int
}

// NewLexical returns a Lexical extractor with the default windows.
func NewLexical() *Lexical {
	return &Lexical{
		PendingWindow:      DefaultPendingWindow,
		LeadPendingWindow:  DefaultLeadPendingWindow,
		NegationWindow:     DefaultNegationWindow,
		LeadNegationWindow: DefaultLeadNegationWindow,
	}
}

// Extract runs the default Lexical extractor.
func Extract(note string) FeatureSet {
	return NewLexical().Extract(note)
}

// Extract implements Extractor.
func (l *Lexical) Extract(note string) FeatureSet {
	text := Normalize(note)
	toks := tokenize(text)

	fs := FeatureSet{
		Disposition:    disposition(toks),
		ResultNegative: contains(toks, resultNegativeTerms),
		Improvement:    contains(toks, improvementTerms),
		Age:            extractAge(text),
	}

	fs.Presentations = Presentations{
		HeadInjury:       contains(toks, headInjuryTerms),
		ChestPain:        contains(toks, chestPainTerms),
		Trauma:           contains(toks, traumaTerms),
		HighEnergy:       contains(toks, highEnergyTerms) || fallHeightPattern.MatchString(text),
		NeuroEvent:       contains(toks, neuroTerms),
		AbdominalRedFlag: contains(toks, abdominalRedFlagTerms),
		Hypoxia:          hypoxic(text),
		Tachycardia:      matchAny(text, tachycardiaPatterns),
		HaemodynamicInstability: hypotensionPattern.MatchString(text) ||
			contains(toks, haemodynamicTerms),
	}

	fs.Investigations = Investigations{
		Imaging:          l.status(toks, categoryTerms[CategoryImaging]),
		Cardiac:          l.status(toks, categoryTerms[CategoryCardiac]),
		AbdominalImaging: l.status(toks, categoryTerms[CategoryAbdominalImaging]),
	}

	fs.MetabolicException = contains(toks, seizureDisorderTerms) ||
		(contains(toks, metabolicTerms) && contains(toks, recoveryTerms) && contains(toks, connectorTerms))

	return fs
}

// disposition applies admission-over-discharge precedence. review_only is
// reported only when neither admission nor discharge is documented.
func disposition(toks []token) Disposition {
	switch {
	case contains(toks, admissionTerms):
		return DispositionAdmitted
	case contains(toks, dischargeTerms):
		return DispositionDischarged
	case contains(toks, reviewTerms):
		return DispositionReviewOnly
	default:
		return DispositionUnknown
	}
}

// status classifies one investigation category. Any pending occurrence makes
// the category pending; otherwise any negated occurrence makes it negated.
// Only a category with neither is done.
func (l *Lexical) status(toks []token, vocab []term) Status {
	hits := find(toks, vocab)
	if len(hits) == 0 {
		return StatusAbsent
	}

	negated := false
	for _, h := range hits {
		if l.pending(toks, h) {
			return StatusPending
		}
		if l.negated(toks, h) {
			negated = true
		}
	}
	if negated {
		return StatusNegated
	}
	return StatusDone
}

func (l *Lexical) pending(toks []token, h span) bool {
	for _, q := range find(toks, pendingQualifiers) {
		if toks[q.start].clause != toks[h.start].clause {
			continue
		}
		switch {
		case q.end <= h.start:
			// "advised CT"
			if h.start-q.end < l.LeadPendingWindow {
				return true
			}
		case q.start >= h.end:
			// "CT advised". A result term between the two means the
			// qualifier belongs to something after the result, as in
			// "ct normal advised rest".
			if q.start-h.end < l.PendingWindow && !resultBetween(toks, h.end, q.start) {
				return true
			}
		}
	}
	return false
}

func (l *Lexical) negated(toks []token, h span) bool {
	for _, n := range find(toks, trailingNegators) {
		if n.start >= h.end && l.trailsTerm(toks, h, n) {
			return true
		}
	}
	for _, n := range find(toks, leadingNegators) {
		if toks[n.start].clause != toks[h.start].clause ||
			n.end > h.start || h.start-n.end >= l.LeadNegationWindow {
			continue
		}
		// The "not" of "ecg not done" negates ecg, not whatever follows.
		if l.trailsAnyTerm(toks, n) {
			continue
		}
		return true
	}
	return false
}

// trailsTerm reports whether the trailing negator n applies to the term h
// before it. A completion or result word between the two settles the
// investigation ("ct head done patient not vomiting"), and "not" followed by a
// finding verb reports a result ("xray does not show fracture").
func (l *Lexical) trailsTerm(toks []token, h, n span) bool {
	if toks[n.start].clause != toks[h.start].clause || n.start-h.end >= l.NegationWindow {
		return false
	}
	if settledBetween(toks, h.end, n.start) {
		return false
	}
	return n.end >= len(toks) || toks[n.end].clause != toks[n.start].clause ||
		!startsAny(toks, n.end, findingTerms)
}

func (l *Lexical) trailsAnyTerm(toks []token, n span) bool {
	if !startsAny(toks, n.start, trailingNegators) {
		return false
	}
	for _, h := range find(toks, investigationTerms) {
		if h.end <= n.start && l.trailsTerm(toks, h, n) {
			return true
		}
	}
	return false
}

func resultBetween(toks []token, from, to int) bool {
	if from >= to {
		return false
	}
	return contains(toks[from:to], resultNegativeTerms)
}

func settledBetween(toks []token, from, to int) bool {
	if from >= to {
		return false
	}
	between := toks[from:to]
	return contains(between, resultNegativeTerms) || contains(between, completionTerms)
}
