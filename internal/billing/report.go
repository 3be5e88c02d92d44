// Package billing allocates a period's metered consumption to tenants.
package billing

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/septivank/submetering-worker/internal/anomaly"
	"github.com/septivank/submetering-worker/internal/baseline"
	"github.com/septivank/submetering-worker/internal/consumption"
	"github.com/septivank/submetering-worker/internal/db"
	"github.com/septivank/submetering-worker/internal/period"
	"github.com/septivank/submetering-worker/internal/tariff"
)

// historyDepth is how many earlier periods feed spike detection
const historyDepth = 6

// Row is one tenant meter's allocation in a period
type Row struct {
	Tenant         *db.Tenant
	Meter          db.Meter
	Baseline       baseline.Result
	CurrentReading db.Reading
	Consumption    decimal.Decimal
	UnitPrice      decimal.Decimal
	Total          decimal.Decimal
	Warnings       []anomaly.Finding
}

// Summary aggregates a report
type Summary struct {
	Total       decimal.Decimal
	Consumption decimal.Decimal
	TenantCount int
	RowCount    int
}

// Builder assembles billing reports. A nil detector disables spike flags;
// negative consumption is flagged regardless.
type Builder struct {
	detector *anomaly.Detector
}

// NewBuilder creates a report builder
func NewBuilder(detector *anomaly.Detector) *Builder {
	return &Builder{detector: detector}
}

// BuildReport builds the report for target without spike detection
func BuildReport(target db.BillingPeriod, meters []db.MeterWithTenant, periods []db.BillingPeriod, lookup baseline.ReadingLookup) []Row {
	return NewBuilder(nil).Build(target, meters, periods, lookup)
}

// Build returns one row per tenant-owned meter that has a reading in target,
// in the order of meters. Meters without a tenant or without a current
// reading contribute nothing.
func (b *Builder) Build(target db.BillingPeriod, meters []db.MeterWithTenant, periods []db.BillingPeriod, lookup baseline.ReadingLookup) []Row {
	rows := make([]Row, 0, len(meters))

	for _, m := range meters {
		if m.TenantID == nil {
			continue
		}

		current, ok := lookup.Find(m.ID, target.ID)
		if !ok {
			continue
		}

		base := baseline.Resolve(m.Meter, target, periods, lookup)
		used := consumption.Compute(current.Value, base)
		price := tariff.UnitPriceFor(target, m.MediaType)

		row := Row{
			Tenant:         m.Tenant,
			Meter:          m.Meter,
			Baseline:       base,
			CurrentReading: current,
			Consumption:    used,
			UnitPrice:      price,
			Total:          used.Mul(price),
		}
		row.Warnings = b.inspect(m.Meter, target, periods, lookup, used)

		rows = append(rows, row)
	}

	return rows
}

func (b *Builder) inspect(m db.Meter, target db.BillingPeriod, periods []db.BillingPeriod, lookup baseline.ReadingLookup, used decimal.Decimal) []anomaly.Finding {
	if b.detector == nil {
		if used.IsNegative() {
			return []anomaly.Finding{{Reason: anomaly.ReasonNegativeConsumption}}
		}
		return nil
	}

	history := History(m, target, periods, lookup, historyDepth)
	if f, flagged := b.detector.Inspect(used, history); flagged {
		return []anomaly.Finding{f}
	}
	return nil
}

// History returns up to n consumptions of the meter in the periods strictly
// before target, newest first, resolved with the same baseline rules.
func History(m db.Meter, target db.BillingPeriod, periods []db.BillingPeriod, lookup baseline.ReadingLookup, n int) []decimal.Decimal {
	earlier := make([]db.BillingPeriod, 0, len(periods))
	for _, p := range periods {
		if period.IsAfter(target, p) {
			earlier = append(earlier, p)
		}
	}
	sort.Slice(earlier, func(i, j int) bool {
		return period.IsAfter(earlier[i], earlier[j])
	})

	var out []decimal.Decimal
	for _, p := range earlier {
		if len(out) >= n {
			break
		}
		r, ok := lookup.Find(m.ID, p.ID)
		if !ok {
			continue
		}
		out = append(out, consumption.Compute(r.Value, baseline.Resolve(m, p, periods, lookup)))
	}
	return out
}

// Summarize derives the report totals
func Summarize(rows []Row) Summary {
	s := Summary{Total: decimal.Zero, Consumption: decimal.Zero, RowCount: len(rows)}
	tenants := make(map[uuid.UUID]struct{})
	for _, r := range rows {
		s.Total = s.Total.Add(r.Total)
		s.Consumption = s.Consumption.Add(r.Consumption)
		if r.Meter.TenantID != nil {
			tenants[*r.Meter.TenantID] = struct{}{}
		}
	}
	s.TenantCount = len(tenants)
	return s
}

// PeriodConsumption sums the consumption of every reading taken in target,
// tenant-owned or not.
func PeriodConsumption(target db.BillingPeriod, meters []db.Meter, periods []db.BillingPeriod, lookup baseline.ReadingLookup) decimal.Decimal {
	total := decimal.Zero
	for _, m := range meters {
		r, ok := lookup.Find(m.ID, target.ID)
		if !ok {
			continue
		}
		total = total.Add(consumption.Compute(r.Value, baseline.Resolve(m, target, periods, lookup)))
	}
	return total
}

// MediaTotal sets what was allocated for one media type against the supplier
// invoice recorded on the period
type MediaTotal struct {
	MediaType   db.MediaType
	Consumption decimal.Decimal
	Allocated   decimal.Decimal
	Invoice     decimal.NullDecimal
}

// Unallocated is the invoiced amount no tenant row covers, when an invoice
// total is known
func (t MediaTotal) Unallocated() decimal.NullDecimal {
	if !t.Invoice.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(t.Invoice.Decimal.Sub(t.Allocated))
}

// ByMedia groups rows per media type in gas, electricity, water order. Media
// with neither rows nor an invoice total are left out.
func ByMedia(target db.BillingPeriod, rows []Row) []MediaTotal {
	var out []MediaTotal
	for _, media := range []db.MediaType{db.MediaGas, db.MediaElectricity, db.MediaWater} {
		t := MediaTotal{
			MediaType:   media,
			Consumption: decimal.Zero,
			Allocated:   decimal.Zero,
			Invoice:     tariff.InvoiceTotalFor(target, media),
		}
		n := 0
		for _, r := range rows {
			if r.Meter.MediaType != media {
				continue
			}
			t.Consumption = t.Consumption.Add(r.Consumption)
			t.Allocated = t.Allocated.Add(r.Total)
			n++
		}
		if n == 0 && !t.Invoice.Valid {
			continue
		}
		out = append(out, t)
	}
	return out
}
