package admission

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/septivank/submetering-worker/internal/baseline"
	"github.com/septivank/submetering-worker/internal/consumption"
	"github.com/septivank/submetering-worker/internal/db"
	"github.com/septivank/submetering-worker/internal/metrics"
	"github.com/septivank/submetering-worker/internal/validator"
)

// Photo is an image payload attached to a reading
type Photo struct {
	Data []byte
	Name string
}

// Input is a reading as submitted by a user
type Input struct {
	MeterID         uuid.UUID
	BillingPeriodID uuid.UUID
	Value           string
	DateTaken       *time.Time
	Note            string
	Photo           *Photo
	// Confirmed acknowledges a value below the baseline.
	Confirmed bool
	// CreatedBy is the current user token, stamped on new readings only.
	CreatedBy *string
}

// Result is a persisted reading together with what it was measured against
type Result struct {
	Reading      *db.Reading
	Baseline     baseline.Result
	Consumption  decimal.Decimal
	Created      bool
	PhotoDropped bool
}

// Service validates and persists readings
type Service struct {
	periods   PeriodStore
	meters    MeterStore
	readings  ReadingStore
	photos    PhotoStore
	validator *validator.Validator
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a reading admission service. photos may be nil, in
// which case photo payloads are dropped like failed uploads.
func NewService(
	periods PeriodStore,
	meters MeterStore,
	readings ReadingStore,
	photos PhotoStore,
	validator *validator.Validator,
	logger *zap.Logger,
) *Service {
	return &Service{
		periods:   periods,
		meters:    meters,
		readings:  readings,
		photos:    photos,
		validator: validator,
		logger:    logger,
		now:       time.Now,
	}
}

// Preview is what a submit for a meter and period would be measured against
type Preview struct {
	Baseline baseline.Result
	// Existing is the reading a submit would overwrite, if any.
	Existing *db.Reading
}

// Preview resolves the baseline a new reading of meterID in periodID would
// be measured against.
func (s *Service) Preview(ctx context.Context, meterID, periodID uuid.UUID) (*Preview, error) {
	if meterID == uuid.Nil || periodID == uuid.Nil {
		return nil, ErrMissingSelection
	}
	base, idx, err := s.resolve(ctx, meterID, periodID)
	if err != nil {
		return nil, err
	}
	p := &Preview{Baseline: base}
	if r, ok := idx.Find(meterID, periodID); ok {
		p.Existing = &r
	}
	return p, nil
}

// Admit validates in and creates a reading, or updates existing when given.
// Without existing, a reading already stored for the meter and period is
// updated in place. A value below the baseline is admitted only with
// in.Confirmed set.
func (s *Service) Admit(ctx context.Context, in Input, existing *db.Reading) (*Result, error) {
	res, err := s.admit(ctx, in, existing)
	if err != nil {
		outcome := Kind(err)
		if outcome == "" {
			outcome = "error"
		}
		metrics.ObserveAdmission(outcome)
		return nil, err
	}
	if res.Created {
		metrics.ObserveAdmission("created")
	} else {
		metrics.ObserveAdmission("updated")
	}
	return res, nil
}

func (s *Service) admit(ctx context.Context, in Input, existing *db.Reading) (*Result, error) {
	if in.MeterID == uuid.Nil || in.BillingPeriodID == uuid.Nil {
		return nil, ErrMissingSelection
	}

	value, vr := s.validator.ParseValue(in.Value)
	if !vr.IsValid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidValue, vr.Reason)
	}

	base, idx, err := s.resolve(ctx, in.MeterID, in.BillingPeriodID)
	if err != nil {
		return nil, err
	}

	if current, ok := idx.Find(in.MeterID, in.BillingPeriodID); ok {
		switch {
		case existing == nil:
			s.logger.Info("reading already recorded for meter and period, updating it",
				zap.String("reading_id", current.ID.String()))
			existing = &current
		case existing.ID != current.ID:
			return nil, fmt.Errorf("%w: reading %s", ErrDuplicateReading, current.ID)
		}
	}

	if consumption.IsDecrease(value, base) {
		if !in.Confirmed {
			return nil, &ConfirmationError{Value: value, Baseline: base}
		}
		s.logger.Warn("admitting confirmed decrease",
			zap.String("meter_id", in.MeterID.String()),
			zap.String("value", value.String()),
			zap.String("baseline", base.Value.String()),
			zap.String("provenance", base.Provenance.String()),
		)
	}

	var previousPhoto *string
	if existing != nil {
		previousPhoto = existing.PhotoURL
	}
	photoURL, dropped := s.storePhoto(ctx, in.MeterID, in.Photo, previousPhoto)

	var note *string
	if n := strings.TrimSpace(in.Note); n != "" {
		note = &n
	}

	result := &Result{
		Baseline:     base,
		Consumption:  consumption.Compute(value, base),
		PhotoDropped: dropped,
	}

	if existing != nil {
		r := *existing
		r.MeterID = in.MeterID
		r.BillingPeriodID = in.BillingPeriodID
		r.Value = value
		r.Note = note
		r.PhotoURL = photoURL
		if in.DateTaken != nil {
			r.DateTaken = *in.DateTaken
		}
		if err := s.readings.UpdateReading(ctx, &r); err != nil {
			return nil, storageErr("update reading", err)
		}
		result.Reading = &r
		return result, nil
	}

	r := &db.Reading{
		MeterID:         in.MeterID,
		BillingPeriodID: in.BillingPeriodID,
		Value:           value,
		DateTaken:       s.now(),
		PhotoURL:        photoURL,
		Note:            note,
		CreatedBy:       in.CreatedBy,
	}
	if in.DateTaken != nil {
		r.DateTaken = *in.DateTaken
	}
	if err := s.readings.CreateReading(ctx, r); err != nil {
		return nil, storageErr("create reading", err)
	}
	result.Reading = r
	result.Created = true
	return result, nil
}

// Delete removes a reading
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return ErrMissingSelection
	}
	if err := s.readings.DeleteReading(ctx, id); err != nil {
		return storageErr("delete reading", err)
	}
	return nil
}

// resolve fetches the meter's snapshot and resolves its baseline. The index
// of the meter's readings is returned alongside.
func (s *Service) resolve(ctx context.Context, meterID, periodID uuid.UUID) (baseline.Result, *baseline.ReadingIndex, error) {
	meter, err := s.meters.GetMeter(ctx, meterID)
	if err != nil {
		return baseline.Result{}, nil, storageErr("get meter", err)
	}
	if meter == nil {
		return baseline.Result{}, nil, fmt.Errorf("%w: meter %s not found", ErrMissingSelection, meterID)
	}

	periods, err := s.periods.ListPeriods(ctx)
	if err != nil {
		return baseline.Result{}, nil, storageErr("list periods", err)
	}
	target, ok := baseline.FindPeriod(periods, periodID)
	if !ok {
		return baseline.Result{}, nil, fmt.Errorf("%w: billing period %s not found", ErrMissingSelection, periodID)
	}

	readings, err := s.readings.ListReadingsForMeter(ctx, meterID)
	if err != nil {
		return baseline.Result{}, nil, storageErr("list readings", err)
	}
	idx := baseline.NewReadingIndex(readings)
	for _, d := range idx.Duplicates() {
		s.logger.Warn("duplicate readings for meter and period",
			zap.String("meter_id", d.MeterID.String()),
			zap.String("billing_period_id", d.PeriodID.String()),
			zap.String("kept_reading_id", d.Kept.String()),
			zap.Int("dropped", len(d.Dropped)),
		)
	}

	return baseline.Resolve(*meter, target, periods, idx), idx, nil
}

// storePhoto uploads the payload. Upload failure never fails the admission:
// the reading keeps previous (nil for new readings).
func (s *Service) storePhoto(ctx context.Context, meterID uuid.UUID, photo *Photo, previous *string) (*string, bool) {
	if photo == nil || len(photo.Data) == 0 {
		return previous, false
	}
	if s.photos == nil {
		s.logger.Warn("photo storage not configured, dropping photo", zap.String("meter_id", meterID.String()))
		metrics.ObservePhotoUploadFailure()
		return previous, true
	}

	name := PhotoObjectName(meterID, photo.Name, s.now())
	url, err := s.photos.Upload(ctx, photo.Data, name)
	if err != nil {
		s.logger.Warn("photo upload failed, continuing without photo",
			zap.Error(err),
			zap.String("meter_id", meterID.String()),
			zap.String("object", name),
		)
		metrics.ObservePhotoUploadFailure()
		return previous, true
	}
	return &url, false
}

// PhotoObjectName names an uploaded photo readings/<meter>-<unix ms>.<ext>
func PhotoObjectName(meterID uuid.UUID, original string, at time.Time) string {
	ext := strings.TrimPrefix(path.Ext(original), ".")
	if ext == "" {
		ext = "jpg"
	}
	return fmt.Sprintf("readings/%s-%d.%s", meterID, at.UnixMilli(), strings.ToLower(ext))
}
