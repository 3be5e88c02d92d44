package baseline

import (
	"bytes"

	"github.com/google/uuid"

	"github.com/septivank/submetering-worker/internal/db"
)

type readingKey struct {
	meterID  uuid.UUID
	periodID uuid.UUID
}

// Duplicate describes a (meter, period) pair holding more than one reading
type Duplicate struct {
	MeterID  uuid.UUID
	PeriodID uuid.UUID
	Kept     uuid.UUID
	Dropped  []uuid.UUID
}

// ReadingIndex is an in-memory ReadingLookup over pre-fetched readings.
//
// When several readings share a (meter, period) pair the one with the latest
// DateTaken wins, ties broken by the greatest id. Every such collision is kept
// in Duplicates so callers can surface it.
type ReadingIndex struct {
	byKey      map[readingKey]db.Reading
	duplicates map[readingKey]*Duplicate
}

// NewReadingIndex indexes readings by (meter, period)
func NewReadingIndex(readings []db.Reading) *ReadingIndex {
	idx := &ReadingIndex{
		byKey:      make(map[readingKey]db.Reading, len(readings)),
		duplicates: make(map[readingKey]*Duplicate),
	}
	for _, r := range readings {
		idx.Add(r)
	}
	return idx
}

// Add inserts r, resolving collisions deterministically
func (idx *ReadingIndex) Add(r db.Reading) {
	k := readingKey{meterID: r.MeterID, periodID: r.BillingPeriodID}
	cur, exists := idx.byKey[k]
	if !exists {
		idx.byKey[k] = r
		return
	}

	kept, dropped := cur, r
	if preferred(r, cur) {
		kept, dropped = r, cur
	}
	idx.byKey[k] = kept

	d, ok := idx.duplicates[k]
	if !ok {
		d = &Duplicate{MeterID: r.MeterID, PeriodID: r.BillingPeriodID}
		idx.duplicates[k] = d
	}
	d.Kept = kept.ID
	d.Dropped = append(d.Dropped, dropped.ID)
}

// Find implements ReadingLookup
func (idx *ReadingIndex) Find(meterID, periodID uuid.UUID) (db.Reading, bool) {
	r, ok := idx.byKey[readingKey{meterID: meterID, periodID: periodID}]
	return r, ok
}

// Duplicates returns every collision seen while indexing
func (idx *ReadingIndex) Duplicates() []Duplicate {
	out := make([]Duplicate, 0, len(idx.duplicates))
	for _, d := range idx.duplicates {
		out = append(out, *d)
	}
	return out
}

// Len returns the number of distinct (meter, period) pairs
func (idx *ReadingIndex) Len() int {
	return len(idx.byKey)
}

func preferred(a, b db.Reading) bool {
	if !a.DateTaken.Equal(b.DateTaken) {
		return a.DateTaken.After(b.DateTaken)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) > 0
}
