// Package baseline determines which earlier value a meter reading is measured
// against when computing consumption.
//
// A meter either has a continuous reading history, in which case the reading
// of the immediately preceding calendar month is the baseline, or it joined the
// system mid-history with a declared start anchor (start period + start value).
// Consumption never spans the discontinuity introduced by that anchor.
package baseline

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/septivank/submetering-worker/internal/db"
	"github.com/septivank/submetering-worker/internal/period"
)

// Provenance records where a baseline value came from
type Provenance int

const (
	// None means no baseline exists; the whole counter value is consumption.
	None Provenance = iota
	PriorPeriodReading
	StartPeriodReading
	StartValue
)

// String returns the wire name of the provenance
func (p Provenance) String() string {
	switch p {
	case PriorPeriodReading:
		return "prior_period_reading"
	case StartPeriodReading:
		return "start_period_reading"
	case StartValue:
		return "start_value"
	default:
		return "none"
	}
}

// Result is the resolved baseline. Value is meaningful only when Provenance is
// not None. Reading is set when the value came from a stored reading.
type Result struct {
	Value      decimal.Decimal
	Provenance Provenance
	Reading    *db.Reading
}

// HasValue reports whether a baseline value exists
func (r Result) HasValue() bool {
	return r.Provenance != None
}

// ReadingLookup finds the reading of a meter in a period
type ReadingLookup interface {
	Find(meterID, periodID uuid.UUID) (db.Reading, bool)
}

// Resolve returns the baseline for a reading of meter taken in target.
// periods must contain every stored period; lookup must answer from the same
// snapshot.
func Resolve(meter db.Meter, target db.BillingPeriod, periods []db.BillingPeriod, lookup ReadingLookup) Result {
	if meter.StartPeriodID != nil && *meter.StartPeriodID == target.ID && meter.StartValue.Valid {
		return Result{Value: meter.StartValue.Decimal, Provenance: StartValue}
	}

	startPeriod, anchored := anchorPeriod(meter, periods)

	prevKey := period.PredecessorOf(target)
	prev, ok := period.Find(periods, prevKey)
	if !ok {
		if anchored && period.IsAfter(target, startPeriod) {
			return fromAnchor(meter, startPeriod, lookup)
		}
		return Result{Provenance: None}
	}

	if anchored && period.IsBefore(prevKey.Month, prevKey.Year, startPeriod) {
		return fallback(meter, target, startPeriod, anchored, lookup)
	}

	if r, found := lookup.Find(meter.ID, prev.ID); found {
		return Result{Value: r.Value, Provenance: PriorPeriodReading, Reading: &r}
	}

	return fallback(meter, target, startPeriod, anchored, lookup)
}

func fallback(meter db.Meter, target, startPeriod db.BillingPeriod, anchored bool, lookup ReadingLookup) Result {
	if anchored && period.IsAfter(target, startPeriod) {
		return fromAnchor(meter, startPeriod, lookup)
	}
	return Result{Provenance: None}
}

func fromAnchor(meter db.Meter, startPeriod db.BillingPeriod, lookup ReadingLookup) Result {
	if r, found := lookup.Find(meter.ID, startPeriod.ID); found {
		return Result{Value: r.Value, Provenance: StartPeriodReading, Reading: &r}
	}
	return Result{Value: meter.StartValue.Decimal, Provenance: StartValue}
}

// anchorPeriod returns the meter's start period when the anchor is complete
// and the period is known. An anchor pointing at an unknown period is ignored.
func anchorPeriod(meter db.Meter, periods []db.BillingPeriod) (db.BillingPeriod, bool) {
	if !meter.HasStartAnchor() {
		return db.BillingPeriod{}, false
	}
	return FindPeriod(periods, *meter.StartPeriodID)
}

// FindPeriod returns the period with the given id
func FindPeriod(periods []db.BillingPeriod, id uuid.UUID) (db.BillingPeriod, bool) {
	for _, p := range periods {
		if p.ID == id {
			return p, true
		}
	}
	return db.BillingPeriod{}, false
}
