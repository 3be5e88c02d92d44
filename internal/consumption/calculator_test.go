package consumption_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/septivank/submetering-worker/internal/baseline"
	"github.com/septivank/submetering-worker/internal/consumption"
)

func TestCompute(t *testing.T) {
	cases := []struct {
		name    string
		current string
		base    baseline.Result
		want    string
	}{
		{"no baseline counts the whole value", "120", baseline.Result{Provenance: baseline.None}, "120"},
		{"prior reading", "530.250", baseline.Result{Value: decimal.RequireFromString("500.125"), Provenance: baseline.PriorPeriodReading}, "30.125"},
		{"start value", "500", baseline.Result{Value: decimal.NewFromInt(500), Provenance: baseline.StartValue}, "0"},
		{"decrease is not clamped", "280", baseline.Result{Value: decimal.NewFromInt(300), Provenance: baseline.PriorPeriodReading}, "-20"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := consumption.Compute(decimal.RequireFromString(tc.current), tc.base)
			assert.True(t, got.Equal(decimal.RequireFromString(tc.want)), "got %s", got)
		})
	}
}

func TestIsDecrease(t *testing.T) {
	prior := baseline.Result{Value: decimal.NewFromInt(300), Provenance: baseline.PriorPeriodReading}

	assert.True(t, consumption.IsDecrease(decimal.NewFromInt(280), prior))
	assert.False(t, consumption.IsDecrease(decimal.NewFromInt(300), prior))
	assert.False(t, consumption.IsDecrease(decimal.NewFromInt(0), baseline.Result{}))
}
