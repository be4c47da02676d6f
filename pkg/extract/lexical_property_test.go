package extract

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// noteWords is a clinical vocabulary for generating plausible notes.
var noteWords = []interface{}{
	"45m", "chest", "pain", "head", "injury", "ct", "ecg", "troponin", "usg",
	"advised", "ordered", "pending", "no", "not", "done", "without", "normal",
	"negative", "discharged", "admitted", "review", "home", "spo2", "88",
	"pulse", "140", "bp", "90/60", "seizure", "sugar", "conscious", "after",
	"improved", "rta", "fall", ".", ",",
}

func genNote() gopter.Gen {
	return gen.SliceOf(gen.OneConstOf(noteWords...)).Map(func(ws []string) string {
		return strings.Join(ws, " ")
	})
}

func oneOf(words ...string) gopter.Gen {
	vs := make([]interface{}, len(words))
	for i, w := range words {
		vs[i] = w
	}
	return gen.OneConstOf(vs...).Map(func(v string) string { return v })
}

func TestExtractProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("extraction is idempotent on arbitrary text", prop.ForAll(
		func(note string) bool {
			return Extract(note) == Extract(note)
		},
		gen.AnyString(),
	))

	properties.Property("extraction is idempotent on clinical notes", prop.ForAll(
		func(note string) bool {
			return Extract(note) == Extract(note)
		},
		genNote(),
	))

	properties.Property("an advised investigation is never done", prop.ForAll(
		func(note string) bool {
			fs := Extract(note + ". ct advised")
			return fs.Investigations.Imaging == StatusPending
		},
		genNote(),
	))

	properties.Property("a negated investigation is never done", prop.ForAll(
		func(note string) bool {
			fs := Extract(note + ". no ecg")
			return fs.Investigations.Cardiac != StatusDone
		},
		genNote(),
	))

	properties.Property("a term followed by not within the window is never done", prop.ForAll(
		func(note, filler string) bool {
			fs := Extract(note + ". ct " + filler + " not done")
			return fs.Investigations.Imaging != StatusDone
		},
		genNote(),
		// Zero to three words between the term and the negator.
		oneOf("", "brain", "was", "yet", "brain was", "could be", "has yet",
			"head was", "brain was yet", "of head could"),
	))

	properties.Property("a multi-word pending phrasing is never done", prop.ForAll(
		func(note, phrasing string) bool {
			return Extract(note+". "+phrasing).Investigations.Imaging == StatusPending
		},
		genNote(),
		oneOf(
			"ct brain has been ordered",
			"ct scan of brain was advised",
			"mri is planned",
			"xray chest to be done",
			"advised urgent ct",
		),
	))

	properties.Property("admission terms always win over discharge terms", prop.ForAll(
		func(note string) bool {
			return Extract(note+" discharged. admitted").Disposition == DispositionAdmitted
		},
		genNote(),
	))

	properties.TestingRun(t)
}
