package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/septivank/submetering-worker/internal/db"
	"github.com/septivank/submetering-worker/internal/hierarchy"
)

// ErrInvalidMeter means a submitted meter fails validation
var ErrInvalidMeter = errors.New("invalid meter")

// MeterStore is the meter persistence the worker needs
type MeterStore interface {
	ListMeters(ctx context.Context) ([]db.Meter, error)
	UpdateMeterParent(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) error
	UpsertMeter(ctx context.Context, m *db.Meter) error
}

// MeterService maintains meters and their hierarchy
type MeterService struct {
	store   MeterStore
	periods PeriodStore
	logger  *zap.Logger
}

// NewMeterService creates a new meter service
func NewMeterService(store MeterStore, periods PeriodStore, logger *zap.Logger) *MeterService {
	return &MeterService{store: store, periods: periods, logger: logger}
}

// MeterInput is a meter as submitted for creation or update
type MeterInput struct {
	ID                  *uuid.UUID
	SerialNumber        string
	MediaType           db.MediaType
	ParentMeterID       *uuid.UUID
	TenantID            *uuid.UUID
	LocationDescription string
	Notes               string
	StartPeriodID       *uuid.UUID
	StartValue          *decimal.Decimal
}

// MeterResult is a stored meter and its place in the hierarchy
type MeterResult struct {
	Meter   db.Meter
	Depth   int
	Created bool
}

// Upsert validates in and stores it. The start anchor must be complete and
// point at an existing period; the parent goes through the same cycle and
// depth checks as AssignParent.
func (s *MeterService) Upsert(ctx context.Context, in MeterInput) (*MeterResult, error) {
	m, err := s.validate(ctx, in)
	if err != nil {
		return nil, err
	}

	meters, err := s.store.ListMeters(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list meters: %w", err)
	}

	created := in.ID == nil
	if created {
		m.ID = uuid.New()
		meters = append(meters, db.Meter{ID: m.ID})
	} else {
		m.ID = *in.ID
		found := false
		for _, cur := range meters {
			if cur.ID == m.ID {
				m.CreatedAt = cur.CreatedAt
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", hierarchy.ErrUnknownMeter, m.ID)
		}
	}

	forest := hierarchy.NewForest(meters)
	if err := forest.Reparent(m.ID, m.ParentMeterID); err != nil {
		return nil, err
	}
	depth, err := forest.Depth(m.ID)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpsertMeter(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to store meter: %w", err)
	}

	s.logger.Info("meter stored",
		zap.String("meter_id", m.ID.String()),
		zap.String("serial_number", m.SerialNumber),
		zap.Bool("created", created),
		zap.Int("depth", depth),
	)
	return &MeterResult{Meter: *m, Depth: depth, Created: created}, nil
}

func (s *MeterService) validate(ctx context.Context, in MeterInput) (*db.Meter, error) {
	serial := strings.TrimSpace(in.SerialNumber)
	if serial == "" {
		return nil, fmt.Errorf("%w: serial number is required", ErrInvalidMeter)
	}
	if !in.MediaType.Valid() {
		return nil, fmt.Errorf("%w: unknown media type %q", ErrInvalidMeter, in.MediaType)
	}
	if (in.StartPeriodID == nil) != (in.StartValue == nil) {
		return nil, fmt.Errorf("%w: start value and start period must be set together", ErrInvalidMeter)
	}

	m := &db.Meter{
		SerialNumber:        serial,
		MediaType:           in.MediaType,
		ParentMeterID:       in.ParentMeterID,
		TenantID:            in.TenantID,
		LocationDescription: optional(in.LocationDescription),
		Notes:               optional(in.Notes),
	}

	if in.StartPeriodID != nil {
		if in.StartValue.IsNegative() {
			return nil, fmt.Errorf("%w: start value %s is negative", ErrInvalidMeter, in.StartValue.String())
		}
		p, err := s.periods.GetPeriod(ctx, *in.StartPeriodID)
		if err != nil {
			return nil, fmt.Errorf("failed to get start period: %w", err)
		}
		if p == nil {
			return nil, fmt.Errorf("%w: start period %s not found", ErrInvalidMeter, *in.StartPeriodID)
		}
		m.StartPeriodID = in.StartPeriodID
		m.StartValue = decimal.NewNullDecimal(*in.StartValue)
	}
	return m, nil
}

// AssignParent sets meterID's parent, or clears it when parentID is nil.
// Assignments that would form a cycle or exceed hierarchy.MaxDepth are
// rejected before anything is written.
func (s *MeterService) AssignParent(ctx context.Context, meterID uuid.UUID, parentID *uuid.UUID) error {
	meters, err := s.store.ListMeters(ctx)
	if err != nil {
		return fmt.Errorf("failed to list meters: %w", err)
	}

	forest := hierarchy.NewForest(meters)
	if err := forest.ValidateParent(meterID, parentID); err != nil {
		return err
	}

	if err := s.store.UpdateMeterParent(ctx, meterID, parentID); err != nil {
		return fmt.Errorf("failed to update meter parent: %w", err)
	}

	s.logger.Info("meter parent assigned",
		zap.String("meter_id", meterID.String()),
		zap.Stringp("parent_meter_id", uuidString(parentID)),
	)
	return nil
}

// IsMeterRejection reports whether err is a rejected meter write rather
// than a storage failure
func IsMeterRejection(err error) bool {
	return errors.Is(err, ErrInvalidMeter) ||
		errors.Is(err, hierarchy.ErrUnknownMeter) ||
		errors.Is(err, hierarchy.ErrCyclicHierarchy) ||
		errors.Is(err, hierarchy.ErrMaxDepthExceeded) ||
		errors.Is(err, db.ErrConflict) ||
		errors.Is(err, db.ErrMissingReference)
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
