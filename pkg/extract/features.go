// Package extract derives clinical signals from free-text notes.
//
// The rule table in pkg/rules depends only on FeatureSet, so the matching
// technique behind an Extractor can change without touching any rule.
package extract

// Disposition is the documented outcome of the encounter.
type Disposition string

const (
	DispositionAdmitted   Disposition = "admitted"
	DispositionDischarged Disposition = "discharged"
	DispositionReviewOnly Disposition = "review_only"
	DispositionUnknown    Disposition = "unknown"
)

// Status is the documented state of an investigation category.
type Status string

const (
	StatusDone    Status = "done"
	StatusPending Status = "pending"
	StatusNegated Status = "negated"
	StatusAbsent  Status = "absent"
)

// Category names an investigation kind tracked by the extractor.
type Category string

const (
	CategoryImaging          Category = "imaging"
	CategoryCardiac          Category = "cardiac_workup"
	CategoryAbdominalImaging Category = "abdominal_imaging"
)

// Categories lists the investigation categories in reporting order.
var Categories = []Category{CategoryImaging, CategoryCardiac, CategoryAbdominalImaging}

// Presentation names a presentation flag.
type Presentation string

const (
	HeadInjury              Presentation = "head_injury"
	ChestPain               Presentation = "chest_pain"
	Trauma                  Presentation = "trauma"
	HighEnergy              Presentation = "high_energy"
	NeuroEvent              Presentation = "neuro_event"
	AbdominalRedFlag        Presentation = "abdominal_red_flag"
	Hypoxia                 Presentation = "hypoxia"
	Tachycardia             Presentation = "tachycardia"
	HaemodynamicInstability Presentation = "haemodynamic_instability"
)

// Presentations holds one boolean per presentation category.
type Presentations struct {
	HeadInjury              bool `json:"head_injury"`
	ChestPain               bool `json:"chest_pain"`
	Trauma                  bool `json:"trauma"`
	HighEnergy              bool `json:"high_energy"`
	NeuroEvent              bool `json:"neuro_event"`
	AbdominalRedFlag        bool `json:"abdominal_red_flag"`
	Hypoxia                 bool `json:"hypoxia"`
	Tachycardia             bool `json:"tachycardia"`
	HaemodynamicInstability bool `json:"haemodynamic_instability"`
}

// Investigations holds the status of each investigation category.
type Investigations struct {
	Imaging          Status `json:"imaging"`
	Cardiac          Status `json:"cardiac_workup"`
	AbdominalImaging Status `json:"abdominal_imaging"`
}

// FeatureSet is an immutable snapshot of the signals found in one note.
// Every field is comparable, so two sets can be compared with ==.
type FeatureSet struct {
	Disposition    Disposition    `json:"disposition"`
	Presentations  Presentations  `json:"presentations"`
	Investigations Investigations `json:"investigations"`

	// ResultNegative is set when any normal/negative style term occurs
	// anywhere in the note. It is not bound to a specific investigation.
	ResultNegative bool `json:"result_negative"`
	Improvement    bool `json:"improvement"`

	// MetabolicException is set when a neuro event is explained by a known
	// seizure disorder or by a corrected metabolic derangement with recovery.
	MetabolicException bool `json:"metabolic_exception"`

	// Age is the documented age in years, or 0 when none was found.
	Age int `json:"age,omitempty"`
}

// Status returns the status recorded for category c.
func (f FeatureSet) Status(c Category) Status {
	switch c {
	case CategoryImaging:
		return f.Investigations.Imaging
	case CategoryCardiac:
		return f.Investigations.Cardiac
	case CategoryAbdominalImaging:
		return f.Investigations.AbdominalImaging
	default:
		return StatusAbsent
	}
}

// Done reports whether category c is documented as completed.
func (f FeatureSet) Done(c Category) bool {
	return f.Status(c) == StatusDone
}

// Has reports whether presentation p is flagged.
func (f FeatureSet) Has(p Presentation) bool {
	ps := f.Presentations
	switch p {
	case HeadInjury:
		return ps.HeadInjury
	case ChestPain:
		return ps.ChestPain
	case Trauma:
		return ps.Trauma
	case HighEnergy:
		return ps.HighEnergy
	case NeuroEvent:
		return ps.NeuroEvent
	case AbdominalRedFlag:
		return ps.AbdominalRedFlag
	case Hypoxia:
		return ps.Hypoxia
	case Tachycardia:
		return ps.Tachycardia
	case HaemodynamicInstability:
		return ps.HaemodynamicInstability
	default:
		return false
	}
}

var allPresentations = []Presentation{
	HeadInjury, ChestPain, Trauma, HighEnergy, NeuroEvent,
	AbdominalRedFlag, Hypoxia, Tachycardia, HaemodynamicInstability,
}

// Flags returns the names of the set presentation flags in a fixed order.
func (f FeatureSet) Flags() []Presentation {
	var out []Presentation
	for _, p := range allPresentations {
		if f.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

// AsMap renders the set as plain values for expression evaluation.
func (f FeatureSet) AsMap() map[string]any {
	m := map[string]any{
		"disposition":         string(f.Disposition),
		"result_negative":     f.ResultNegative,
		"improvement":         f.Improvement,
		"metabolic_exception": f.MetabolicException,
		"age":                 int64(f.Age),
	}
	for _, p := range allPresentations {
		m[string(p)] = f.Has(p)
	}
	for _, c := range Categories {
		m[string(c)] = string(f.Status(c))
	}
	return m
}
