package extract

// Curated vocabularies. Every entry is matched as a whole token sequence, so
// "ct" never matches inside "cholecystitis" and "ot" never inside "not".
var (
	admissionTerms = terms(
		"admit", "admitted", "admission", "admitting", "icu", "hdu", "ccu",
		"ward", "shifted", "referred", "transferred", "ot",
	)
	dischargeTerms = terms(
		"discharge", "discharged", "sent home", "home", "lama", "dama",
	)
	reviewTerms = terms(
		"review", "opd follow", "opd followup", "opd", "follow up", "followup",
	)

	traumaTerms = terms(
		"rta", "road traffic", "accident", "fall", "fell", "fallen", "skid",
		"trauma", "assault", "assaulted", "hit", "injury", "injured",
	)
	highEnergyTerms = terms(
		"fall from height", "high speed", "railway", "ejection", "ejected",
		"run over", "rollover",
	)
	headInjuryTerms = terms(
		"head injury", "head trauma", "injury to head", "hit on head",
	)
	chestPainTerms = terms(
		"chest pain", "jaw pain", "chest tightness", "chest heaviness",
		"retrosternal pain", "angina",
	)
	abdominalRedFlagTerms = terms(
		"abd pain", "abdo pain", "abdominal pain", "rlq pain", "guarding",
		"rigidity", "rebound tenderness", "acute abdomen",
	)
	neuroTerms = terms(
		"seizure", "seizures", "convulsion", "convulsions", "fits",
		"unconscious", "syncope", "weakness", "slurring", "slurred speech",
		"hemiparesis", "loss of consciousness", "altered sensorium",
	)
	haemodynamicTerms = terms(
		"hypotension", "hypotensive", "shock",
	)

	imagingTerms = terms(
		"xray", "x ray", "cxr", "ct", "ncct", "cect", "hrct", "mri", "scan",
		"imaging", "radiograph",
	)
	cardiacTerms = terms(
		"ecg", "ekg", "troponin", "trop", "cardiac enzymes", "cardiac markers",
	)
	abdominalImagingTerms = terms(
		"usg", "ultrasound", "sonography", "ct abdomen", "cect abdomen",
		"ct abd", "ct kub", "fast scan",
	)

	pendingQualifiers = terms(
		"advised", "ordered", "planned", "pending", "recommended", "awaited",
		"requested", "to be done",
	)
	leadingNegators = terms(
		"no", "without", "not", "refused", "declined",
	)
	// A bare "not" covers "not done", "could not be done" and "not yet done".
	trailingNegators = terms(
		"not", "unavailable", "refused", "declined",
	)
	completionTerms = terms(
		"done", "performed", "shows", "showed", "showing", "revealed",
		"reveals", "reported",
	)
	findingTerms = terms(
		"show", "shows", "showing", "reveal", "reveals", "suggest",
		"suggestive", "suggests",
	)

	resultNegativeTerms = terms(
		"normal", "negative", "clear", "unremarkable", "nad", "wnl",
		"no abnormality",
	)
	improvementTerms = terms(
		"improved", "improving", "settled", "comfortable", "afebrile",
		"asymptomatic", "resolved", "better", "pain free",
	)

	seizureDisorderTerms = terms(
		"known seizure disorder", "seizure disorder", "known epileptic",
		"known case of seizure", "k c o seizure", "kco seizure", "epilepsy",
		"epileptic",
	)
	metabolicTerms = terms(
		"glucose", "sugar", "grbs", "rbs", "cbg", "electrolyte",
		"electrolytes", "sodium", "potassium", "hypoglycaemia",
		"hypoglycemia", "hyponatraemia", "hyponatremia",
	)
	recoveryTerms = terms(
		"conscious", "alert", "oriented", "awake", "gcs 15",
	)
	connectorTerms = terms(
		"after", "given", "corrected", "post",
	)
)

// investigationTerms is every category's vocabulary.
var investigationTerms = joinTerms(imagingTerms, cardiacTerms, abdominalImagingTerms)

func joinTerms(sets ...[]term) []term {
	var out []term
	for _, s := range sets {
		out = append(out, s...)
	}
	return out
}

// categoryTerms maps each investigation category to its vocabulary.
var categoryTerms = map[Category][]term{
	CategoryImaging:          imagingTerms,
	CategoryCardiac:          cardiacTerms,
	CategoryAbdominalImaging: abdominalImagingTerms,
}
