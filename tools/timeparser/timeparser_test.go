package timeparser_test

import (
	"testing"
	"time"

	"github.com/septivank/submetering-worker/tools/timeparser"
)

func TestParseMeterTimestamp_Layouts(t *testing.T) {
	expected := time.Date(2025, 12, 29, 10, 30, 0, 0, time.UTC)

	for _, input := range []string{
		"2025-12-29T10:30:00Z",
		"29.12.2025 10:30:00",
		"29.12.2025 10:30",
		"29/12/2025 10:30:00",
		"2025-12-29 10:30:00",
	} {
		result, err := timeparser.ParseMeterTimestamp(input)
		if err != nil {
			t.Errorf("Expected no error for %q, got: %v", input, err)
			continue
		}
		if !result.Equal(expected) {
			t.Errorf("Expected %v for %q, got %v", expected, input, result)
		}
	}
}

func TestParseMeterTimestamp_DateOnly(t *testing.T) {
	result, err := timeparser.ParseMeterTimestamp("29.12.2025")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	expected := time.Date(2025, 12, 29, 0, 0, 0, 0, time.UTC)
	if !result.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, result)
	}
}

func TestParseMeterTimestamp_InvalidFormat(t *testing.T) {
	if _, err := timeparser.ParseMeterTimestamp("invalid-date"); err == nil {
		t.Error("Expected error for invalid date format")
	}
}

func TestIsWithinTolerance(t *testing.T) {
	receivedTime := time.Date(2025, 12, 29, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name        string
		readingTime time.Time
		tolerance   int
		expected    bool
	}{
		{"exact match", receivedTime, 5, true},
		{"within tolerance before", receivedTime.Add(-3 * time.Minute), 5, true},
		{"within tolerance after", receivedTime.Add(3 * time.Minute), 5, true},
		{"at tolerance boundary", receivedTime.Add(5 * time.Minute), 5, true},
		{"outside tolerance before", receivedTime.Add(-6 * time.Minute), 5, false},
		{"outside tolerance after", receivedTime.Add(6 * time.Minute), 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := timeparser.IsWithinTolerance(tt.readingTime, receivedTime, tt.tolerance)
			if result != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}
