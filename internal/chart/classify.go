package chart

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// monthNames are matched by prefix; the first three letters are the canonical abbreviation
var monthNames = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

var unitVocabulary = map[string]bool{
	"kwh": true, "mwh": true, "kw": true,
	"m³": true, "m3": true,
	"ccf": true, "hcf": true,
	"therm": true, "therms": true,
	"gal": true, "gallons": true, "kgal": true,
	"l": true, "litres": true, "liters": true,
}

var (
	numberPattern = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)$`)
	yearPattern   = regexp.MustCompile(`^\d{4}$`)
)

// MonthIndex returns the zero-based month a label refers to.
// The alphabetic part of the label must be at least three letters and a prefix
// of the month name, which tolerates truncated or abbreviated OCR output
// ("Oct", "OCT.", "Sept", "October").
func MonthIndex(text string) (int, bool) {
	letters := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, text)

	if len(letters) < 3 {
		return 0, false
	}

	for i, name := range monthNames {
		if strings.HasPrefix(name, letters) {
			return i, true
		}
	}
	return 0, false
}

// IsMonth reports whether text is a month label
func IsMonth(text string) bool {
	_, ok := MonthIndex(text)
	return ok
}

// MonthAbbreviation returns the title-case three letter abbreviation for a month index
func MonthAbbreviation(index int) string {
	name := monthNames[index]
	return strings.ToUpper(name[:1]) + name[1:3]
}

// ParseNumber parses an axis value, ignoring thousands separators
func ParseNumber(text string) (float64, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	if !numberPattern.MatchString(cleaned) {
		return 0, false
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// IsNumeric reports whether text is a numeric axis value
func IsNumeric(text string) bool {
	_, ok := ParseNumber(text)
	return ok
}

// IsYear reports whether text is a four digit year token
func IsYear(text string) bool {
	return yearPattern.MatchString(strings.TrimSpace(text))
}

// IsUnit reports whether text is a known usage unit
func IsUnit(text string) bool {
	trimmed := strings.Trim(strings.TrimSpace(text), "()[]")
	return unitVocabulary[strings.ToLower(trimmed)]
}
