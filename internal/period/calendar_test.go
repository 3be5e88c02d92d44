package period_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/septivank/submetering-worker/internal/db"
	"github.com/septivank/submetering-worker/internal/period"
)

func p(month, year int) db.BillingPeriod {
	return db.BillingPeriod{ID: uuid.New(), Month: month, Year: year}
}

func TestPredecessor(t *testing.T) {
	cases := []struct {
		month, year         int
		wantMonth, wantYear int
	}{
		{1, 2025, 12, 2024},
		{2, 2025, 1, 2025},
		{12, 2024, 11, 2024},
		{7, 2000, 6, 2000},
	}
	for _, tc := range cases {
		m, y := period.Predecessor(tc.month, tc.year)
		assert.Equal(t, tc.wantMonth, m, "month of predecessor(%d, %d)", tc.month, tc.year)
		assert.Equal(t, tc.wantYear, y, "year of predecessor(%d, %d)", tc.month, tc.year)
	}
}

func TestPredecessorStaysInRange(t *testing.T) {
	for month := 1; month <= 12; month++ {
		m, _ := period.Predecessor(month, 2024)
		assert.GreaterOrEqual(t, m, 1)
		assert.LessOrEqual(t, m, 12)
	}
}

func TestPredecessorOf(t *testing.T) {
	assert.Equal(t, period.Key{Year: 2024, Month: 12}, period.PredecessorOf(p(1, 2025)))
}

func TestIsAfterIsIrreflexive(t *testing.T) {
	a := p(5, 2024)
	assert.False(t, period.IsAfter(a, a))
}

func TestIsAfterOrdersLexicographically(t *testing.T) {
	assert.True(t, period.IsAfter(p(1, 2025), p(12, 2024)))
	assert.True(t, period.IsAfter(p(3, 2024), p(2, 2024)))
	assert.False(t, period.IsAfter(p(12, 2024), p(1, 2025)))
	assert.False(t, period.IsAfter(p(2, 2024), p(3, 2024)))
}

func TestIsBefore(t *testing.T) {
	start := p(1, 2025)
	assert.True(t, period.IsBefore(12, 2024, start))
	assert.False(t, period.IsBefore(1, 2025, start))
	assert.False(t, period.IsBefore(2, 2025, start))
}

func TestCompareIsConsistentWithIsAfter(t *testing.T) {
	all := []db.BillingPeriod{p(1, 2024), p(12, 2024), p(1, 2025), p(6, 2023)}
	for _, a := range all {
		for _, b := range all {
			c := period.Compare(period.KeyOf(a), period.KeyOf(b))
			assert.Equal(t, period.IsAfter(a, b), c > 0)
		}
	}
}

func TestFindAndLabel(t *testing.T) {
	periods := []db.BillingPeriod{p(11, 2024), p(12, 2024)}

	got, ok := period.Find(periods, period.Key{Year: 2024, Month: 12})
	assert.True(t, ok)
	assert.Equal(t, periods[1].ID, got.ID)

	_, ok = period.Find(periods, period.Key{Year: 2025, Month: 1})
	assert.False(t, ok)

	assert.Equal(t, "03/2025", period.Label(p(3, 2025)))
}
