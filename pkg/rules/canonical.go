package rules

import "github.com/focusforward/caseguard/pkg/extract"

// CanonicalVersion is the revision of the canonical decision table.
const CanonicalVersion = "2.0.0"

// Admitted-context rule identifiers.
const (
	AdmitChestPainNoCardiac      RuleID = "admit.chest_pain_no_cardiac"
	AdmitHeadInjuryNoImaging     RuleID = "admit.head_injury_no_imaging"
	AdmitNeuroNoImaging          RuleID = "admit.neuro_no_imaging"
	AdmitAbdominalNoImaging      RuleID = "admit.abdominal_no_imaging"
	AdmitHaemodynamicInstability RuleID = "admit.haemodynamic_instability"
)

// Discharge-context rule identifiers, in priority order.
const (
	DischargeHypoxia                 RuleID = "discharge.hypoxia"
	DischargeHeadInjuryNoImaging     RuleID = "discharge.head_injury_no_imaging"
	DischargeChestPainNoCardiac      RuleID = "discharge.chest_pain_no_cardiac"
	DischargeTraumaNoImaging         RuleID = "discharge.trauma_no_imaging"
	DischargeNeuroNoImaging          RuleID = "discharge.neuro_no_imaging"
	DischargeAbdominalNoImaging      RuleID = "discharge.abdominal_no_imaging"
	DischargeHaemodynamicInstability RuleID = "discharge.haemodynamic_instability"
)

func chestPainNoCardiac(fs extract.FeatureSet) bool {
	return fs.Presentations.ChestPain && !fs.Done(extract.CategoryCardiac)
}

func headInjuryNoImaging(fs extract.FeatureSet) bool {
	return fs.Presentations.HeadInjury && !fs.Done(extract.CategoryImaging)
}

func neuroNoImaging(fs extract.FeatureSet) bool {
	return fs.Presentations.NeuroEvent && !fs.Done(extract.CategoryImaging) && !fs.MetabolicException
}

func abdominalNoImaging(fs extract.FeatureSet) bool {
	return fs.Presentations.AbdominalRedFlag && !fs.Done(extract.CategoryAbdominalImaging)
}

func haemodynamicInstability(fs extract.FeatureSet) bool {
	return fs.Presentations.HaemodynamicInstability
}

var canonicalRules = []Rule{
	// Admission mitigates risk, so these only ever reach BORDERLINE.
	{
		ID: AdmitChestPainNoCardiac, Scope: ScopeAdmitted, Tier: TierBorderline,
		Summary: "chest pain admitted without a completed cardiac workup",
		When:    chestPainNoCardiac,
	},
	{
		ID: AdmitHeadInjuryNoImaging, Scope: ScopeAdmitted, Tier: TierBorderline,
		Summary: "head injury admitted without completed imaging",
		When:    headInjuryNoImaging,
	},
	{
		ID: AdmitNeuroNoImaging, Scope: ScopeAdmitted, Tier: TierBorderline,
		Summary: "neurological event admitted without completed imaging or a metabolic explanation",
		When:    neuroNoImaging,
	},
	{
		ID: AdmitAbdominalNoImaging, Scope: ScopeAdmitted, Tier: TierBorderline,
		Summary: "abdominal red flags admitted without completed abdominal imaging",
		When:    abdominalNoImaging,
	},
	{
		ID: AdmitHaemodynamicInstability, Scope: ScopeAdmitted, Tier: TierBorderline,
		Summary: "haemodynamic instability documented at admission",
		When:    haemodynamicInstability,
	},

	// Never discharge X unless Y was done.
	{
		ID: DischargeHypoxia, Scope: ScopeDischarge, Tier: TierDangerous,
		Summary: "hypoxic saturation documented at disposition",
		When:    func(fs extract.FeatureSet) bool { return fs.Presentations.Hypoxia },
	},
	{
		ID: DischargeHeadInjuryNoImaging, Scope: ScopeDischarge, Tier: TierDangerous,
		Summary: "head injury discharged without completed imaging",
		When:    headInjuryNoImaging,
	},
	{
		ID: DischargeChestPainNoCardiac, Scope: ScopeDischarge, Tier: TierDangerous,
		Summary: "chest pain discharged without a completed cardiac workup",
		When:    chestPainNoCardiac,
	},
	{
		ID: DischargeTraumaNoImaging, Scope: ScopeDischarge, Tier: TierDangerous,
		Summary: "trauma or high-energy mechanism discharged without completed imaging",
		When: func(fs extract.FeatureSet) bool {
			return (fs.Presentations.Trauma || fs.Presentations.HighEnergy) && !fs.Done(extract.CategoryImaging)
		},
	},
	{
		ID: DischargeNeuroNoImaging, Scope: ScopeDischarge, Tier: TierDangerous,
		Summary: "neurological event discharged without completed imaging or a metabolic explanation",
		When:    neuroNoImaging,
	},
	{
		ID: DischargeAbdominalNoImaging, Scope: ScopeDischarge, Tier: TierDangerous,
		Summary: "abdominal red flags discharged without completed abdominal imaging",
		When:    abdominalNoImaging,
	},
	{
		ID: DischargeHaemodynamicInstability, Scope: ScopeDischarge, Tier: TierDangerous,
		Summary: "haemodynamic instability documented at disposition",
		When:    haemodynamicInstability,
	},
}

var canonical = MustTable(CanonicalVersion, canonicalRules)

// Canonical returns the canonical decision table.
func Canonical() *Table {
	return canonical
}

// Classify runs the canonical table.
func Classify(fs extract.FeatureSet) Verdict {
	return canonical.Classify(fs)
}
