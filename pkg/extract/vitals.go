package extract

import (
	"regexp"
	"strconv"
)

// Numeric vital-sign patterns run on normalized text. They tolerate the
// usual charting variants: "SpO2 88", "spo2-86", "88% saturation",
// "HR 132", "140 bpm", "BP 90/60", "BP-88/50".
const sep = `\s*(?:[:=\-]|of|is|was|at)?\s*`

var (
	// Saturation readings from 50 to 89 count as hypoxia.
	hypoxiaPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:spo2|sp02|sao2|o2\s?sats?|sats?|saturation|saturating)` + sep + `(\d{2,3})\b`),
		regexp.MustCompile(`\b(\d{2,3})\s?%\s*(?:saturation|sats?|spo2|on\s+(?:ra|room\s+air|air))\b`),
	}
	tachycardiaPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:pulse(?:\s+rate)?|pr|hr|heart\s+rate)` + sep + `1[3-9]\d\b`),
		regexp.MustCompile(`\b1[3-9]\d\s*(?:bpm|beats|/\s*min)`),
	}
	// Systolic below 100 counts as instability.
	hypotensionPattern = regexp.MustCompile(`\bs?bp` + sep + `[5-9]\d\s*/\s*\d{2,3}\b`)

	fallHeightPattern = regexp.MustCompile(`\b[1-9]\d\s?(?:ft|feet)\b`)

	ageYearsPattern = regexp.MustCompile(`\b(\d{1,3})\s*-?\s*(?:yrs?|years?|yo|y/o)\b`)
	ageSexPattern   = regexp.MustCompile(`^\s*(\d{1,3})\s*/?\s*(?:m|f|male|female)\b`)
)

const (
	minSaturation     = 50
	hypoxicSaturation = 90
)

// hypoxic reports whether any saturation reading falls in the hypoxic range.
func hypoxic(text string) bool {
	for _, p := range hypoxiaPatterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			n, err := strconv.Atoi(m[1])
			if err == nil && n >= minSaturation && n < hypoxicSaturation {
				return true
			}
		}
	}
	return false
}

func matchAny(text string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// extractAge returns the documented age in years, or 0.
func extractAge(text string) int {
	for _, p := range []*regexp.Regexp{ageYearsPattern, ageSexPattern} {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 && n <= 120 {
			return n
		}
	}
	return 0
}
