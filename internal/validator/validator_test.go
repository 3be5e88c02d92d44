package validator_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/septivank/submetering-worker/internal/validator"
)

const testTimestampToleranceMinutes = 5

func TestParseValue_Valid(t *testing.T) {
	v := validator.NewValidator(testTimestampToleranceMinutes)

	cases := map[string]string{
		"245.5":      "245.5",
		" 1234.567 ": "1234.567",
		"[245.5]":    "245.5",
		"12,75":      "12.75",
		"0":          "0",
	}

	for raw, want := range cases {
		value, result := v.ParseValue(raw)
		if !result.IsValid {
			t.Errorf("Expected %q to be valid, got: %s", raw, result.Reason)
			continue
		}
		if !value.Equal(decimal.RequireFromString(want)) {
			t.Errorf("Expected %q to parse as %s, got %s", raw, want, value)
		}
	}
}

func TestParseValue_Invalid(t *testing.T) {
	v := validator.NewValidator(testTimestampToleranceMinutes)

	for _, raw := range []string{"", "   ", "abc", "NaN", "Inf", "-Inf", "12.3.4", "1,2,3"} {
		_, result := v.ParseValue(raw)
		if result.IsValid {
			t.Errorf("Expected %q to be invalid", raw)
		}
		if result.Reason == "" {
			t.Errorf("Expected a reason for %q", raw)
		}
	}
}

func TestDateTaken_Valid(t *testing.T) {
	v := validator.NewValidator(testTimestampToleranceMinutes)
	receivedAt := time.Date(2025, 12, 29, 10, 32, 0, 0, time.UTC)

	taken, result := v.DateTaken("29.12.2025 10:30:00", receivedAt)

	if !result.IsValid {
		t.Errorf("Expected valid result, got invalid: %s", result.Reason)
	}

	expected := time.Date(2025, 12, 29, 10, 30, 0, 0, time.UTC)
	if !taken.Equal(expected) {
		t.Errorf("Expected timestamp %v, got %v", expected, taken)
	}
}

func TestDateTaken_EmptyUsesReceivedAt(t *testing.T) {
	v := validator.NewValidator(testTimestampToleranceMinutes)
	receivedAt := time.Date(2025, 12, 29, 10, 32, 0, 0, time.UTC)

	taken, result := v.DateTaken("", receivedAt)

	if !result.IsValid {
		t.Errorf("Expected empty timestamp to be valid, got: %s", result.Reason)
	}
	if !taken.Equal(receivedAt) {
		t.Errorf("Expected %v, got %v", receivedAt, taken)
	}
}

func TestDateTaken_OutsideTolerance(t *testing.T) {
	v := validator.NewValidator(testTimestampToleranceMinutes)
	receivedAt := time.Date(2025, 12, 29, 10, 40, 0, 0, time.UTC)

	taken, result := v.DateTaken("29.12.2025 10:30:00", receivedAt)

	if result.IsValid {
		t.Error("Expected invalid result for timestamp outside tolerance")
	}
	if !taken.Equal(receivedAt) {
		t.Errorf("Expected fallback to received time %v, got %v", receivedAt, taken)
	}
}

func TestDateTaken_InvalidFormat(t *testing.T) {
	v := validator.NewValidator(testTimestampToleranceMinutes)
	receivedAt := time.Date(2025, 12, 29, 10, 32, 0, 0, time.UTC)

	taken, result := v.DateTaken("yesterday", receivedAt)

	if result.IsValid {
		t.Error("Expected invalid result for unparseable timestamp")
	}
	if !taken.Equal(receivedAt) {
		t.Errorf("Expected fallback to received time %v, got %v", receivedAt, taken)
	}
}
