// Package ocr turns recognised meter-photo text into reading hints.
//
// The recognition engine runs where the photo is taken; the worker receives
// its raw text. Results are pre-fill suggestions only and are never
// submitted on their own.
package ocr

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/septivank/submetering-worker/internal/db"
)

// Result is a best-effort extraction. All-nil fields are a valid outcome.
type Result struct {
	SerialNumber *string
	Value        *decimal.Decimal
	Confidence   float64
}

// Empty reports whether nothing was extracted
func (r Result) Empty() bool {
	return r.SerialNumber == nil && r.Value == nil
}

var serialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b[A-Z]{2,4}\d{6,10}\b`),
	regexp.MustCompile(`\b\d{8,12}\b`),
	regexp.MustCompile(`(?i)SN[:\s]*([A-Z0-9]{6,12})`),
	regexp.MustCompile(`(?i)Sériové[:\s]*č[íi]slo[:\s]*([A-Z0-9]{6,12})`),
	regexp.MustCompile(`(?i)\b[A-Z]{1,3}-?\d{6,10}\b`),
}

var valuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{4,10}\.?\d{0,3}\b`),
	regexp.MustCompile(`\b\d+,\d{1,3}\b`),
}

var lookalikes = strings.NewReplacer(
	"O", "0", "o", "0",
	"I", "1", "l", "1",
	"S", "5", "s", "5",
	"Z", "2", "z", "2",
)

var (
	minPlausibleReading = decimal.NewFromInt(1000)
	maxPlausibleReading = decimal.NewFromInt(999999999)
)

// ParseText extracts a serial number and a reading from recognised text
func ParseText(text string, confidence float64) Result {
	return Result{
		SerialNumber: ExtractSerialNumber(text),
		Value:        ExtractValue(text),
		Confidence:   confidence,
	}
}

// ExtractSerialNumber returns the first serial-looking token, preferring a
// captured group when the pattern has one.
func ExtractSerialNumber(text string) *string {
	for _, re := range serialPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		s := m[0]
		if len(m) > 1 && m[1] != "" {
			s = m[1]
		}
		return &s
	}
	return nil
}

// ExtractValue returns the most plausible counter value in text: the largest
// number with 4 to 9 integer digits, or the largest positive number otherwise.
func ExtractValue(text string) *decimal.Decimal {
	cleaned := lookalikes.Replace(text)

	var all []decimal.Decimal
	for _, re := range valuePatterns {
		for _, m := range re.FindAllString(cleaned, -1) {
			v, err := decimal.NewFromString(strings.Replace(m, ",", ".", 1))
			if err != nil || !v.IsPositive() {
				continue
			}
			all = append(all, v)
		}
	}
	if len(all) == 0 {
		return nil
	}

	var plausible []decimal.Decimal
	for _, v := range all {
		if v.GreaterThanOrEqual(minPlausibleReading) && v.LessThan(maxPlausibleReading) {
			plausible = append(plausible, v)
		}
	}
	if len(plausible) > 0 {
		best := decimal.Max(plausible[0], plausible[1:]...)
		return &best
	}
	best := decimal.Max(all[0], all[1:]...)
	return &best
}

// MatchMeter returns the first meter whose serial number contains the
// recognised serial, case-insensitively.
func MatchMeter(serial string, meters []db.Meter) (db.Meter, bool) {
	needle := strings.ToLower(serial)
	if needle == "" {
		return db.Meter{}, false
	}
	for _, m := range meters {
		if strings.Contains(strings.ToLower(m.SerialNumber), needle) {
			return m, true
		}
	}
	return db.Meter{}, false
}
