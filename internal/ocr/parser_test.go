package ocr_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/septivank/submetering-worker/internal/db"
	"github.com/septivank/submetering-worker/internal/ocr"
)

func TestExtractSerialNumber(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"ELM12345678\n01234.5 kWh", "ELM12345678"},
		{"SN: 12345678", "12345678"},
		{"Výrobní č. G-1234567", "G-1234567"},
	}
	for _, tc := range cases {
		got := ocr.ExtractSerialNumber(tc.text)
		require.NotNil(t, got, tc.text)
		assert.Equal(t, tc.want, *got, tc.text)
	}

	assert.Nil(t, ocr.ExtractSerialNumber("no digits here"))
}

func TestExtractValue_PrefersPlausibleReading(t *testing.T) {
	got := ocr.ExtractValue("12345.678 m3 2024")
	require.NotNil(t, got)
	assert.True(t, got.Equal(decimal.RequireFromString("12345.678")), got.String())
}

func TestExtractValue_FixesLookalikes(t *testing.T) {
	got := ocr.ExtractValue("1O234 kWh")
	require.NotNil(t, got)
	assert.True(t, got.Equal(decimal.NewFromInt(10234)), got.String())
}

func TestExtractValue_FallsBackToLargest(t *testing.T) {
	got := ocr.ExtractValue("42,5")
	require.NotNil(t, got)
	assert.True(t, got.Equal(decimal.RequireFromString("42.5")), got.String())
}

func TestExtractValue_Nothing(t *testing.T) {
	assert.Nil(t, ocr.ExtractValue("kWh"))
}

func TestParseText_EmptyIsValid(t *testing.T) {
	res := ocr.ParseText("", 0.2)
	assert.True(t, res.Empty())
	assert.Equal(t, 0.2, res.Confidence)
}

func TestMatchMeter(t *testing.T) {
	meters := []db.Meter{
		{ID: uuid.New(), SerialNumber: "GAS-0001"},
		{ID: uuid.New(), SerialNumber: "ELM12345678"},
	}

	m, ok := ocr.MatchMeter("elm12345678", meters)
	require.True(t, ok)
	assert.Equal(t, meters[1].ID, m.ID)

	_, ok = ocr.MatchMeter("WAT999", meters)
	assert.False(t, ok)

	_, ok = ocr.MatchMeter("", meters)
	assert.False(t, ok)
}
