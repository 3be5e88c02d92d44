package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/septivank/submetering-worker/internal/baseline"
	"github.com/septivank/submetering-worker/internal/billing"
	"github.com/septivank/submetering-worker/internal/db"
	"github.com/septivank/submetering-worker/internal/metrics"
	"github.com/septivank/submetering-worker/internal/period"
	"github.com/septivank/submetering-worker/internal/repository"
)

// ErrPeriodNotFound is returned when no billing period matches a month
var ErrPeriodNotFound = errors.New("billing period not found")

// SnapshotLoader loads a consistent view of periods, meters and readings
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context) (*repository.Snapshot, error)
}

// Report is a built cost allocation for one billing period
type Report struct {
	Period  db.BillingPeriod
	Rows    []billing.Row
	Summary billing.Summary

	// MeteredConsumption includes meters without a tenant
	MeteredConsumption decimal.Decimal
	Media              []billing.MediaTotal
}

// ReportService builds allocation reports from stored data
type ReportService struct {
	loader  SnapshotLoader
	builder *billing.Builder
	logger  *zap.Logger
}

// NewReportService creates a new report service
func NewReportService(loader SnapshotLoader, builder *billing.Builder, logger *zap.Logger) *ReportService {
	return &ReportService{
		loader:  loader,
		builder: builder,
		logger:  logger,
	}
}

// Build builds the report for the billing period of month/year
func (s *ReportService) Build(ctx context.Context, month, year int) (*Report, error) {
	start := time.Now()

	snap, err := s.loader.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	target, ok := period.Find(snap.Periods, period.Key{Year: year, Month: month})
	if !ok {
		return nil, fmt.Errorf("%w: %02d/%d", ErrPeriodNotFound, month, year)
	}

	idx := baseline.NewReadingIndex(snap.Readings)
	for _, d := range idx.Duplicates() {
		s.logger.Warn("duplicate readings for meter and period",
			zap.String("meter_id", d.MeterID.String()),
			zap.String("billing_period_id", d.PeriodID.String()),
			zap.String("kept_reading_id", d.Kept.String()),
			zap.Int("dropped", len(d.Dropped)),
		)
	}

	rows := s.builder.Build(target, snap.Meters, snap.Periods, idx)
	meters := make([]db.Meter, 0, len(snap.Meters))
	for _, m := range snap.Meters {
		meters = append(meters, m.Meter)
	}
	report := &Report{
		Period:             target,
		Rows:               rows,
		Summary:            billing.Summarize(rows),
		MeteredConsumption: billing.PeriodConsumption(target, meters, snap.Periods, idx),
		Media:              billing.ByMedia(target, rows),
	}

	metrics.ObserveReport(len(rows), time.Since(start))
	s.logger.Info("billing report built",
		zap.String("period", period.Label(target)),
		zap.Int("rows", len(rows)),
		zap.Int("indexed_readings", idx.Len()),
		zap.Int("tenants", report.Summary.TenantCount),
		zap.String("total", report.Summary.Total.StringFixed(2)),
	)

	return report, nil
}
