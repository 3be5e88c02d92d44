package baseline_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/septivank/submetering-worker/internal/baseline"
	"github.com/septivank/submetering-worker/internal/db"
)

func TestReadingIndex_LatestDateTakenWins(t *testing.T) {
	m := db.Meter{ID: uuid.New()}
	p := period(4, 2025)

	older := reading(m, p, "100")
	newer := reading(m, p, "110")
	newer.DateTaken = older.DateTaken.Add(time.Hour)

	for _, order := range [][]db.Reading{{older, newer}, {newer, older}} {
		idx := baseline.NewReadingIndex(order)

		got, ok := idx.Find(m.ID, p.ID)
		require.True(t, ok)
		assert.Equal(t, newer.ID, got.ID)
		assert.Equal(t, 1, idx.Len())

		dups := idx.Duplicates()
		require.Len(t, dups, 1)
		assert.Equal(t, newer.ID, dups[0].Kept)
		assert.Equal(t, []uuid.UUID{older.ID}, dups[0].Dropped)
	}
}

func TestReadingIndex_TieBrokenByID(t *testing.T) {
	m := db.Meter{ID: uuid.New()}
	p := period(4, 2025)

	a := reading(m, p, "100")
	b := reading(m, p, "200")
	a.ID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b.ID = uuid.MustParse("ffffffff-0000-0000-0000-000000000000")

	got, ok := baseline.NewReadingIndex([]db.Reading{b, a}).Find(m.ID, p.ID)
	require.True(t, ok)
	assert.True(t, got.Value.Equal(decimal.NewFromInt(200)))
}

func TestReadingIndex_MissingPair(t *testing.T) {
	idx := baseline.NewReadingIndex(nil)

	_, ok := idx.Find(uuid.New(), uuid.New())
	assert.False(t, ok)
	assert.Empty(t, idx.Duplicates())
}

func TestFindPeriod(t *testing.T) {
	a, b := period(1, 2025), period(2, 2025)

	got, ok := baseline.FindPeriod([]db.BillingPeriod{a, b}, b.ID)
	assert.True(t, ok)
	assert.Equal(t, 2, got.Month)

	_, ok = baseline.FindPeriod([]db.BillingPeriod{a}, b.ID)
	assert.False(t, ok)
}
