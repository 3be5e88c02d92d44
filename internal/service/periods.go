package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/septivank/submetering-worker/internal/db"
	"github.com/septivank/submetering-worker/internal/period"
)

// ErrInvalidPeriod means a submitted billing period fails validation
var ErrInvalidPeriod = errors.New("invalid billing period")

// PeriodStore is the billing period persistence the worker needs.
// Lookups return (nil, nil) when nothing matches.
type PeriodStore interface {
	GetPeriod(ctx context.Context, id uuid.UUID) (*db.BillingPeriod, error)
	FindPeriodByMonthYear(ctx context.Context, month, year int) (*db.BillingPeriod, error)
	UpsertPeriod(ctx context.Context, p *db.BillingPeriod) error
}

// PeriodService maintains billing periods, their tariffs and invoice totals
type PeriodService struct {
	store  PeriodStore
	logger *zap.Logger
}

// NewPeriodService creates a new period service
func NewPeriodService(store PeriodStore, logger *zap.Logger) *PeriodService {
	return &PeriodService{store: store, logger: logger}
}

// PeriodResult is a stored billing period
type PeriodResult struct {
	Period  db.BillingPeriod
	Created bool
}

// Upsert stores p. Without an id the period of the same month and year is
// updated, or a new one is created. An empty status keeps the stored one,
// open for new periods.
func (s *PeriodService) Upsert(ctx context.Context, p db.BillingPeriod) (*PeriodResult, error) {
	if err := validatePeriod(p); err != nil {
		return nil, err
	}

	var current *db.BillingPeriod
	var err error
	if p.ID != uuid.Nil {
		current, err = s.store.GetPeriod(ctx, p.ID)
		if err == nil && current == nil {
			return nil, fmt.Errorf("%w: %s", ErrPeriodNotFound, p.ID)
		}
	} else {
		current, err = s.store.FindPeriodByMonthYear(ctx, p.Month, p.Year)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up billing period: %w", err)
	}

	created := current == nil
	if created {
		p.ID = uuid.New()
		if p.Status == "" {
			p.Status = db.PeriodOpen
		}
	} else {
		p.ID = current.ID
		p.CreatedAt = current.CreatedAt
		if p.Status == "" {
			p.Status = current.Status
		}
	}

	if err := s.store.UpsertPeriod(ctx, &p); err != nil {
		return nil, fmt.Errorf("failed to store billing period: %w", err)
	}

	s.logger.Info("billing period stored",
		zap.String("billing_period_id", p.ID.String()),
		zap.String("period", period.Label(p)),
		zap.String("status", string(p.Status)),
		zap.Bool("created", created),
	)
	return &PeriodResult{Period: p, Created: created}, nil
}

func validatePeriod(p db.BillingPeriod) error {
	if p.Month < 1 || p.Month > 12 {
		return fmt.Errorf("%w: month %d out of range", ErrInvalidPeriod, p.Month)
	}
	if p.Year < 1 {
		return fmt.Errorf("%w: year %d out of range", ErrInvalidPeriod, p.Year)
	}
	switch p.Status {
	case "", db.PeriodOpen, db.PeriodClosed:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidPeriod, p.Status)
	}

	prices := []struct {
		media db.MediaType
		price decimal.NullDecimal
	}{
		{db.MediaGas, p.UnitPriceGas},
		{db.MediaElectricity, p.UnitPriceElectricity},
		{db.MediaWater, p.UnitPriceWater},
	}
	for _, mp := range prices {
		if mp.price.Valid && mp.price.Decimal.IsNegative() {
			return fmt.Errorf("%w: %s unit price %s is negative", ErrInvalidPeriod, mp.media, mp.price.Decimal.String())
		}
	}
	return nil
}

// IsPeriodRejection reports whether err is a rejected period write rather
// than a storage failure
func IsPeriodRejection(err error) bool {
	return errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrPeriodNotFound) ||
		errors.Is(err, db.ErrConflict)
}
