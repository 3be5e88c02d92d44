package billing_test

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/septivank/submetering-worker/internal/baseline"
	"github.com/septivank/submetering-worker/internal/billing"
	"github.com/septivank/submetering-worker/internal/db"
)

func row(t *db.Tenant, prev *decimal.Decimal) billing.Row {
	r := billing.Row{
		Tenant:         t,
		Meter:          db.Meter{ID: uuid.New(), SerialNumber: "EL-42", MediaType: db.MediaElectricity},
		CurrentReading: db.Reading{Value: decimal.RequireFromString("1530.5")},
		Consumption:    decimal.RequireFromString("30.25"),
		UnitPrice:      decimal.RequireFromString("6.21"),
	}
	r.Total = r.Consumption.Mul(r.UnitPrice)
	if prev != nil {
		r.Baseline = baseline.Result{Value: *prev, Provenance: baseline.PriorPeriodReading}
	}
	return r
}

func TestRecord_Formatting(t *testing.T) {
	prev := decimal.RequireFromString("1500.25")
	r := row(tenant("Acme s.r.o."), &prev)

	got := billing.CzechLabels.Record(r)

	assert.Equal(t, []string{
		"Acme s.r.o.",
		"12345678",
		"EL-42",
		"Elektřina",
		"1500.250",
		"1530.500",
		"30.250",
		"6.2100",
		"187.85",
	}, got)
}

func TestRecord_Placeholders(t *testing.T) {
	r := row(&db.Tenant{ID: uuid.New(), CompanyName: "No ICO"}, nil)

	got := billing.EnglishLabels.Record(r)

	assert.Equal(t, billing.Placeholder, got[1])
	assert.Equal(t, "Electricity", got[3])
	assert.Equal(t, billing.Placeholder, got[4])

	got = billing.EnglishLabels.Record(row(nil, nil))
	assert.Equal(t, billing.Placeholder, got[0])
}

func TestWriteCSV(t *testing.T) {
	prev := decimal.RequireFromString("1500.25")
	var buf bytes.Buffer

	err := billing.WriteCSV(&buf, []billing.Row{row(tenant("Acme, a.s."), &prev)}, billing.LabelsFor("cs"))
	require.NoError(t, err)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Podnájemce", records[0][0])
	assert.Equal(t, "Acme, a.s.", records[1][0])
	assert.Len(t, records[1], 9)
}

func TestLabelsFor(t *testing.T) {
	assert.Equal(t, "Tenant", billing.LabelsFor("en").Headers[0])
	assert.Equal(t, "Podnájemce", billing.LabelsFor("cs").Headers[0])
	assert.Equal(t, "Podnájemce", billing.LabelsFor("").Headers[0])
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "rozuctovani-2025-03.csv", billing.FileName(db.BillingPeriod{Month: 3, Year: 2025}))
}
