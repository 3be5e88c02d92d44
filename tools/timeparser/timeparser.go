package timeparser

import (
	"fmt"
	"time"
)

var layouts = []string{
	time.RFC3339,          // clients with a clock
	"02.01.2006 15:04:05", // DD.MM.YYYY HH:mm:ss as typed on site
	"02.01.2006 15:04",
	"02.01.2006",
	"02/01/2006 15:04:05", // DD/MM/YYYY HH:mm:ss
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseMeterTimestamp parses the moment a reading was taken. Layouts without
// a zone are interpreted as UTC.
func ParseMeterTimestamp(dateStr string) (time.Time, error) {
	var lastErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, dateStr)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}

	return time.Time{}, fmt.Errorf("failed to parse timestamp '%s': %w", dateStr, lastErr)
}

// IsWithinTolerance checks if the reading timestamp is within tolerance of received time
func IsWithinTolerance(readingTime, receivedTime time.Time, toleranceMinutes int) bool {
	diff := readingTime.Sub(receivedTime)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(toleranceMinutes)*time.Minute
}
