package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/septivank/submetering-worker/internal/anomaly"
	"github.com/septivank/submetering-worker/internal/billing"
	"github.com/septivank/submetering-worker/internal/db"
	"github.com/septivank/submetering-worker/internal/service"
)

func TestReportService_DuplicateReadingsResolveToLatest(t *testing.T) {
	h := newHarness(t)
	h.seed(h.feb, "300")
	older := h.seed(h.mar, "350")
	newer := h.seed(h.mar, "320")
	newer.DateTaken = older.DateTaken.Add(time.Hour)
	h.store.readings[newer.ID] = newer

	svc := service.NewReportService(h.store, billing.NewBuilder(anomaly.NewDetector(3, 3)), zap.NewNop())
	report, err := svc.Build(context.Background(), 3, 2025)
	require.NoError(t, err)

	require.Len(t, report.Rows, 1)
	assert.Equal(t, newer.ID, report.Rows[0].CurrentReading.ID)
	assert.True(t, report.Rows[0].Consumption.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, h.mar.ID, report.Period.ID)
}

func TestReportService_Errors(t *testing.T) {
	h := newHarness(t)
	svc := service.NewReportService(h.store, billing.NewBuilder(nil), zap.NewNop())

	_, err := svc.Build(context.Background(), 7, 2030)
	assert.ErrorIs(t, err, service.ErrPeriodNotFound)

	h.store.err = errors.New("timeout")
	_, err = svc.Build(context.Background(), 3, 2025)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, service.ErrPeriodNotFound)
}

func TestMeterService_StorageFailureIsNotARejection(t *testing.T) {
	h := newHarness(t)
	h.store.err = errors.New("timeout")
	svc := service.NewMeterService(h.store, h.store, zap.NewNop())

	err := svc.AssignParent(context.Background(), h.meter.ID, nil)

	require.Error(t, err)
	assert.False(t, service.IsMeterRejection(err))
}

func TestMeterService_UnknownMeterIsARejection(t *testing.T) {
	h := newHarness(t)
	svc := service.NewMeterService(h.store, h.store, zap.NewNop())
	other := db.Meter{ID: uuid.New()}

	err := svc.AssignParent(context.Background(), other.ID, &h.meter.ID)

	require.Error(t, err)
	assert.True(t, service.IsMeterRejection(err))
}
