package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/septivank/submetering-worker/tools/timeparser"
)

// ValidationResult holds validation outcome
type ValidationResult struct {
	IsValid bool
	Reason  string
}

// Validator checks raw reading input with configurable parameters
type Validator struct {
	timestampToleranceMinutes int
}

// NewValidator creates a new validator with the specified tolerance
func NewValidator(timestampToleranceMinutes int) *Validator {
	return &Validator{
		timestampToleranceMinutes: timestampToleranceMinutes,
	}
}

// ParseValue parses a meter counter value. Surrounding whitespace and square
// brackets are ignored and a decimal comma is accepted. Only finite numbers
// parse; NaN and infinities are rejected.
func (v *Validator) ParseValue(raw string) (decimal.Decimal, ValidationResult) {
	s := strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), "[]"))
	if s == "" {
		return decimal.Zero, ValidationResult{Reason: "empty reading value"}
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}

	value, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ValidationResult{Reason: fmt.Sprintf("invalid reading value: %v", err)}
	}

	return value, ValidationResult{IsValid: true}
}

// DateTaken parses the reading timestamp. An empty, unparseable or
// out-of-tolerance timestamp falls back to receivedAt and reports why.
func (v *Validator) DateTaken(raw string, receivedAt time.Time) (time.Time, ValidationResult) {
	if strings.TrimSpace(raw) == "" {
		return receivedAt, ValidationResult{IsValid: true}
	}

	readingTime, err := timeparser.ParseMeterTimestamp(raw)
	if err != nil {
		return receivedAt, ValidationResult{Reason: fmt.Sprintf("invalid timestamp format: %v", err)}
	}

	if !timeparser.IsWithinTolerance(readingTime, receivedAt, v.timestampToleranceMinutes) {
		return receivedAt, ValidationResult{
			Reason: fmt.Sprintf("timestamp outside tolerance window (±%d minutes)", v.timestampToleranceMinutes),
		}
	}

	return readingTime, ValidationResult{IsValid: true}
}
