// Package period orders billing periods by (year, month).
package period

import (
	"fmt"

	"github.com/septivank/submetering-worker/internal/db"
)

// Key is a comparable (year, month) pair that may not have a stored period yet
type Key struct {
	Year  int
	Month int
}

// KeyOf returns the calendar key of a stored period
func KeyOf(p db.BillingPeriod) Key {
	return Key{Year: p.Year, Month: p.Month}
}

// Predecessor returns the month immediately before (month, year)
func Predecessor(month, year int) (int, int) {
	if month == 1 {
		return 12, year - 1
	}
	return month - 1, year
}

// PredecessorOf returns the calendar key preceding p
func PredecessorOf(p db.BillingPeriod) Key {
	m, y := Predecessor(p.Month, p.Year)
	return Key{Year: y, Month: m}
}

// Compare returns -1, 0 or 1 as a sorts before, equal to or after b
func Compare(a, b Key) int {
	switch {
	case a.Year != b.Year:
		if a.Year < b.Year {
			return -1
		}
		return 1
	case a.Month < b.Month:
		return -1
	case a.Month > b.Month:
		return 1
	}
	return 0
}

// IsAfter reports whether a is strictly later than b
func IsAfter(a, b db.BillingPeriod) bool {
	return a.Year > b.Year || (a.Year == b.Year && a.Month > b.Month)
}

// IsBefore reports whether the provisional (month, year) pair is strictly
// earlier than the stored period b
func IsBefore(month, year int, b db.BillingPeriod) bool {
	return Compare(Key{Year: year, Month: month}, KeyOf(b)) < 0
}

// Find returns the period stored for k, if any
func Find(periods []db.BillingPeriod, k Key) (db.BillingPeriod, bool) {
	for _, p := range periods {
		if p.Year == k.Year && p.Month == k.Month {
			return p, true
		}
	}
	return db.BillingPeriod{}, false
}

// Label formats a period as MM/YYYY
func Label(p db.BillingPeriod) string {
	return fmt.Sprintf("%02d/%d", p.Month, p.Year)
}
