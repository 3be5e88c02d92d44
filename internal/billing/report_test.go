package billing_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/septivank/submetering-worker/internal/anomaly"
	"github.com/septivank/submetering-worker/internal/baseline"
	"github.com/septivank/submetering-worker/internal/billing"
	"github.com/septivank/submetering-worker/internal/db"
)

type fixture struct {
	periods  []db.BillingPeriod
	meters   []db.MeterWithTenant
	readings []db.Reading
}

func (f *fixture) period(month, year int, gasPrice string) db.BillingPeriod {
	p := db.BillingPeriod{ID: uuid.New(), Month: month, Year: year, Status: db.PeriodOpen}
	if gasPrice != "" {
		p.UnitPriceGas = decimal.NewNullDecimal(decimal.RequireFromString(gasPrice))
	}
	f.periods = append(f.periods, p)
	return p
}

func (f *fixture) meter(serial string, tenant *db.Tenant) db.Meter {
	m := db.Meter{ID: uuid.New(), SerialNumber: serial, MediaType: db.MediaGas}
	if tenant != nil {
		id := tenant.ID
		m.TenantID = &id
	}
	f.meters = append(f.meters, db.MeterWithTenant{Meter: m, Tenant: tenant})
	return m
}

func (f *fixture) read(m db.Meter, p db.BillingPeriod, value string) {
	f.readings = append(f.readings, db.Reading{
		ID:              uuid.New(),
		MeterID:         m.ID,
		BillingPeriodID: p.ID,
		Value:           decimal.RequireFromString(value),
		DateTaken:       time.Date(p.Year, time.Month(p.Month), 28, 0, 0, 0, 0, time.UTC),
	})
}

func (f *fixture) index() *baseline.ReadingIndex {
	return baseline.NewReadingIndex(f.readings)
}

func tenant(name string) *db.Tenant {
	ico := "12345678"
	return &db.Tenant{ID: uuid.New(), CompanyName: name, ICO: &ico}
}

func TestBuildReport_FirstReadingIsWholeConsumption(t *testing.T) {
	var f fixture
	f.period(11, 2024, "")
	dec := f.period(12, 2024, "2.5")
	m := f.meter("G-1", tenant("Acme s.r.o."))
	f.read(m, dec, "120")

	rows := billing.BuildReport(dec, f.meters, f.periods, f.index())

	require.Len(t, rows, 1)
	assert.Equal(t, baseline.None, rows[0].Baseline.Provenance)
	assert.True(t, rows[0].Consumption.Equal(decimal.NewFromInt(120)))
	assert.True(t, rows[0].Total.Equal(decimal.NewFromInt(300)))
}

func TestBuildReport_SkipsMeterWithoutCurrentReading(t *testing.T) {
	var f fixture
	nov := f.period(11, 2024, "1")
	dec := f.period(12, 2024, "1")
	a := f.meter("G-1", tenant("A"))
	b := f.meter("G-2", tenant("B"))
	f.read(a, dec, "50")
	f.read(b, nov, "40")

	rows := billing.BuildReport(dec, f.meters, f.periods, f.index())

	require.Len(t, rows, 1)
	assert.Equal(t, a.ID, rows[0].Meter.ID)
}

func TestBuildReport_SkipsMetersWithoutTenant(t *testing.T) {
	var f fixture
	dec := f.period(12, 2024, "1")
	m := f.meter("MAIN", nil)
	f.read(m, dec, "1000")

	assert.Empty(t, billing.BuildReport(dec, f.meters, f.periods, f.index()))
	assert.True(t, billing.PeriodConsumption(dec, []db.Meter{m}, f.periods, f.index()).Equal(decimal.NewFromInt(1000)))
}

func TestBuildReport_KeepsInputOrder(t *testing.T) {
	var f fixture
	dec := f.period(12, 2024, "1")
	for _, serial := range []string{"Z-9", "A-1", "M-5"} {
		m := f.meter(serial, tenant(serial))
		f.read(m, dec, "10")
	}

	rows := billing.BuildReport(dec, f.meters, f.periods, f.index())

	require.Len(t, rows, 3)
	assert.Equal(t, "Z-9", rows[0].Meter.SerialNumber)
	assert.Equal(t, "A-1", rows[1].Meter.SerialNumber)
	assert.Equal(t, "M-5", rows[2].Meter.SerialNumber)
}

func TestBuildReport_TotalsAreExact(t *testing.T) {
	var f fixture
	nov := f.period(11, 2024, "")
	dec := f.period(12, 2024, "1.2345")
	shared := tenant("Shared")
	for i, v := range []string{"10.101", "20.202", "30.303"} {
		m := f.meter("G-"+string(rune('1'+i)), shared)
		f.read(m, nov, "0.001")
		f.read(m, dec, v)
	}

	rows := billing.BuildReport(dec, f.meters, f.periods, f.index())
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.True(t, r.Total.Equal(r.Consumption.Mul(r.UnitPrice)))
	}

	s := billing.Summarize(rows)
	assert.Equal(t, 1, s.TenantCount)
	assert.Equal(t, 3, s.RowCount)
	assert.True(t, s.Consumption.Equal(decimal.RequireFromString("60.603")), s.Consumption.String())
	assert.True(t, s.Total.Equal(decimal.RequireFromString("60.603").Mul(decimal.RequireFromString("1.2345"))), s.Total.String())
}

func TestBuildReport_ZeroPriceIsValid(t *testing.T) {
	var f fixture
	dec := f.period(12, 2024, "")
	m := f.meter("G-1", tenant("A"))
	f.read(m, dec, "75")

	rows := billing.BuildReport(dec, f.meters, f.periods, f.index())

	require.Len(t, rows, 1)
	assert.True(t, rows[0].UnitPrice.IsZero())
	assert.True(t, rows[0].Total.IsZero())
}

func TestBuilder_FlagsNegativeAndSpikes(t *testing.T) {
	var f fixture
	var periods []db.BillingPeriod
	for month := 1; month <= 6; month++ {
		periods = append(periods, f.period(month, 2025, "1"))
	}
	dropped := f.meter("G-DROP", tenant("A"))
	spiky := f.meter("G-SPIKE", tenant("B"))
	for i, v := range []string{"100", "200", "300", "400", "500", "450"} {
		f.read(dropped, periods[i], v)
	}
	for i, v := range []string{"100", "200", "300", "400", "500", "2000"} {
		f.read(spiky, periods[i], v)
	}

	rows := billing.NewBuilder(anomaly.NewDetector(3.0, 3)).Build(periods[5], f.meters, f.periods, f.index())

	require.Len(t, rows, 2)
	require.Len(t, rows[0].Warnings, 1)
	assert.Equal(t, anomaly.ReasonNegativeConsumption, rows[0].Warnings[0].Reason)
	assert.True(t, rows[0].Consumption.Equal(decimal.NewFromInt(-50)))
	require.Len(t, rows[1].Warnings, 1)
	assert.Equal(t, anomaly.ReasonSpike, rows[1].Warnings[0].Reason)
}

func TestBuildReport_NegativeFlaggedWithoutDetector(t *testing.T) {
	var f fixture
	nov := f.period(11, 2024, "1")
	dec := f.period(12, 2024, "1")
	m := f.meter("G-1", tenant("A"))
	f.read(m, nov, "300")
	f.read(m, dec, "280")

	rows := billing.BuildReport(dec, f.meters, f.periods, f.index())

	require.Len(t, rows, 1)
	assert.True(t, rows[0].Consumption.Equal(decimal.NewFromInt(-20)))
	require.Len(t, rows[0].Warnings, 1)
	assert.Equal(t, anomaly.ReasonNegativeConsumption, rows[0].Warnings[0].Reason)
}

func TestHistory_NewestFirst(t *testing.T) {
	var f fixture
	jan := f.period(1, 2025, "")
	feb := f.period(2, 2025, "")
	mar := f.period(3, 2025, "")
	apr := f.period(4, 2025, "")
	m := f.meter("G-1", tenant("A"))
	f.read(m, jan, "100")
	f.read(m, feb, "110")
	f.read(m, mar, "130")

	got := billing.History(m, apr, f.periods, f.index(), 2)

	require.Len(t, got, 2)
	assert.True(t, got[0].Equal(decimal.NewFromInt(20)))
	assert.True(t, got[1].Equal(decimal.NewFromInt(10)))
}

func TestByMedia_SetsAllocationAgainstInvoice(t *testing.T) {
	var f fixture
	nov := f.period(11, 2024, "2")
	dec := f.period(12, 2024, "2")
	dec.TotalInvoiceGas = decimal.NewNullDecimal(decimal.RequireFromString("100"))
	dec.TotalInvoiceWater = decimal.NewNullDecimal(decimal.RequireFromString("40"))
	f.periods[1] = dec

	a := f.meter("G-1", tenant("Acme s.r.o."))
	b := f.meter("G-2", tenant("Beta a.s."))
	f.read(a, nov, "100")
	f.read(a, dec, "120")
	f.read(b, nov, "50")
	f.read(b, dec, "65")

	rows := billing.BuildReport(dec, f.meters, f.periods, f.index())
	totals := billing.ByMedia(dec, rows)

	require.Len(t, totals, 2)
	gas := totals[0]
	assert.Equal(t, db.MediaGas, gas.MediaType)
	assert.True(t, gas.Consumption.Equal(decimal.NewFromInt(35)))
	assert.True(t, gas.Allocated.Equal(decimal.NewFromInt(70)))
	require.True(t, gas.Unallocated().Valid)
	assert.True(t, gas.Unallocated().Decimal.Equal(decimal.NewFromInt(30)))

	water := totals[1]
	assert.Equal(t, db.MediaWater, water.MediaType)
	assert.True(t, water.Allocated.IsZero())
	assert.True(t, water.Unallocated().Decimal.Equal(decimal.NewFromInt(40)))
}

func TestByMedia_NoInvoiceNoRows(t *testing.T) {
	var f fixture
	dec := f.period(12, 2024, "1")

	assert.Empty(t, billing.ByMedia(dec, nil))
	assert.False(t, billing.MediaTotal{}.Unallocated().Valid)
}
