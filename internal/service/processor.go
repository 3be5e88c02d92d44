package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/septivank/submetering-worker/internal/admission"
	"github.com/septivank/submetering-worker/internal/db"
	"github.com/septivank/submetering-worker/internal/logging"
	"github.com/septivank/submetering-worker/internal/metrics"
	"github.com/septivank/submetering-worker/internal/mq"
	"github.com/septivank/submetering-worker/internal/ocr"
	"github.com/septivank/submetering-worker/internal/validator"
)

// EventPublisher publishes outcome events
type EventPublisher interface {
	Publish(ctx context.Context, routingKey, correlationID string, event any) error
}

// ReadingFinder loads an existing reading for edits
type ReadingFinder interface {
	GetReading(ctx context.Context, id uuid.UUID) (*db.Reading, error)
}

// ProcessorService dispatches commands from the queue. Domain rejections are
// answered with a rejection event and acknowledged; infrastructure failures
// are returned so the message is dead-lettered.
type ProcessorService struct {
	admission *admission.Service
	readings  ReadingFinder
	meters    *MeterService
	meterList MeterStore
	periods   *PeriodService
	reports   *ReportService
	publisher EventPublisher
	validator *validator.Validator
	logger    *zap.Logger
}

// NewProcessorService creates a new processor service
func NewProcessorService(
	admissionService *admission.Service,
	readings ReadingFinder,
	meters MeterStore,
	periods PeriodStore,
	reports *ReportService,
	publisher EventPublisher,
	validator *validator.Validator,
	logger *zap.Logger,
) *ProcessorService {
	return &ProcessorService{
		admission: admissionService,
		readings:  readings,
		meters:    NewMeterService(meters, periods, logger),
		meterList: meters,
		periods:   NewPeriodService(periods, logger),
		reports:   reports,
		publisher: publisher,
		validator: validator,
		logger:    logger,
	}
}

// ProcessMessage processes one command message
func (s *ProcessorService) ProcessMessage(ctx context.Context, msg mq.Message) error {
	var cmd CommandMessage
	if err := json.Unmarshal(msg.Body, &cmd); err != nil {
		metrics.ObserveCommand("unknown", false)
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}
	if cmd.RequestID == "" {
		cmd.RequestID = msg.MessageID
	}
	if cmd.Type == "" {
		cmd.Type = msg.RoutingKey
	}

	reqLogger := logging.WithCommand(s.logger, cmd.RequestID, cmd.Type)
	reqLogger.Info("processing command")

	label := cmd.Type
	var err error
	switch cmd.Type {
	case CommandSubmitReading:
		err = s.submitReading(ctx, cmd, reqLogger)
	case CommandPreviewReading:
		err = s.previewReading(ctx, cmd, reqLogger)
	case CommandDeleteReading:
		err = s.deleteReading(ctx, cmd, reqLogger)
	case CommandUpsertMeter:
		err = s.upsertMeter(ctx, cmd, reqLogger)
	case CommandAssignMeterParent:
		err = s.assignParent(ctx, cmd, reqLogger)
	case CommandUpsertPeriod:
		err = s.upsertPeriod(ctx, cmd, reqLogger)
	case CommandBuildReport:
		err = s.buildReport(ctx, cmd, reqLogger)
	default:
		label = "unknown"
		err = fmt.Errorf("unknown command type %q", cmd.Type)
	}

	metrics.ObserveCommand(label, err == nil)
	if err != nil {
		reqLogger.Error("command failed", zap.Error(err))
		return err
	}
	reqLogger.Info("command processed successfully")
	return nil
}

func (s *ProcessorService) submitReading(ctx context.Context, cmd CommandMessage, logger *zap.Logger) error {
	var p SubmitReadingPayload
	if err := json.Unmarshal(cmd.Payload, &p); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", cmd.Type, err)
	}

	suggestion := s.ocrSuggestion(ctx, p, logger)

	in := admission.Input{
		MeterID:         p.MeterID,
		BillingPeriodID: p.BillingPeriodID,
		Value:           p.Value,
		Note:            p.Note,
		Confirmed:       p.Confirmed,
		CreatedBy:       cmd.SubmittedBy,
	}
	if len(p.Photo) > 0 {
		in.Photo = &admission.Photo{Data: p.Photo, Name: p.PhotoName}
	}
	if p.DateTaken != "" {
		taken, vr := s.validator.DateTaken(p.DateTaken, cmd.ReceivedAt)
		if !vr.IsValid {
			logger.Warn("date taken replaced by received time", zap.String("reason", vr.Reason))
		}
		in.DateTaken = &taken
	}

	var existing *db.Reading
	if p.ReadingID != nil {
		r, err := s.readings.GetReading(ctx, *p.ReadingID)
		if err != nil {
			return fmt.Errorf("failed to get reading %s: %w", *p.ReadingID, err)
		}
		if r == nil {
			return s.rejectReading(ctx, cmd, p, fmt.Errorf("%w: reading %s not found", admission.ErrMissingSelection, *p.ReadingID), suggestion, logger)
		}
		existing = r
	}

	res, err := s.admission.Admit(ctx, in, existing)
	if err != nil {
		if admission.IsRejection(err) {
			return s.rejectReading(ctx, cmd, p, err, suggestion, logger)
		}
		return fmt.Errorf("failed to admit reading: %w", err)
	}

	ev := ReadingAdmittedEvent{
		ReadingID:           res.Reading.ID,
		MeterID:             res.Reading.MeterID,
		BillingPeriodID:     res.Reading.BillingPeriodID,
		Value:               res.Reading.Value,
		BaselineProvenance:  res.Baseline.Provenance.String(),
		Consumption:         res.Consumption,
		NegativeConsumption: res.Consumption.IsNegative(),
		PhotoURL:            res.Reading.PhotoURL,
		PhotoDropped:        res.PhotoDropped,
		Created:             res.Created,
		DateTaken:           res.Reading.DateTaken,
		OCR:                 suggestion,
	}
	if res.Baseline.HasValue() {
		v := res.Baseline.Value
		ev.BaselineValue = &v
	}

	logger.Info("reading admitted",
		zap.String("reading_id", res.Reading.ID.String()),
		zap.Bool("created", res.Created),
		zap.String("consumption", res.Consumption.String()),
		zap.Bool("photo_dropped", res.PhotoDropped),
	)
	s.publish(ctx, EventReadingAdmitted, cmd.RequestID, ev, logger)
	return nil
}

func (s *ProcessorService) rejectReading(
	ctx context.Context,
	cmd CommandMessage,
	p SubmitReadingPayload,
	cause error,
	suggestion *OCRSuggestion,
	logger *zap.Logger,
) error {
	ev := ReadingRejectedEvent{
		MeterID:         p.MeterID,
		BillingPeriodID: p.BillingPeriodID,
		Kind:            admission.Kind(cause),
		Reason:          cause.Error(),
		OCR:             suggestion,
	}
	var confirm *admission.ConfirmationError
	if errors.As(cause, &confirm) && confirm.Baseline.HasValue() {
		v := confirm.Baseline.Value
		ev.BaselineValue = &v
	}

	logger.Info("reading rejected", zap.String("kind", ev.Kind), zap.String("reason", ev.Reason))
	s.publish(ctx, EventReadingRejected, cmd.RequestID, ev, logger)
	return nil
}

// previewReading answers with the previous value a submit would be measured
// against, so it can be shown before the user types the new one
func (s *ProcessorService) previewReading(ctx context.Context, cmd CommandMessage, logger *zap.Logger) error {
	var p PreviewReadingPayload
	if err := json.Unmarshal(cmd.Payload, &p); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", cmd.Type, err)
	}

	preview, err := s.admission.Preview(ctx, p.MeterID, p.BillingPeriodID)
	if err != nil {
		if !admission.IsRejection(err) {
			return fmt.Errorf("failed to preview baseline: %w", err)
		}
		return s.rejectReading(ctx, cmd, SubmitReadingPayload{MeterID: p.MeterID, BillingPeriodID: p.BillingPeriodID}, err, nil, logger)
	}

	ev := ReadingBaselineEvent{
		MeterID:            p.MeterID,
		BillingPeriodID:    p.BillingPeriodID,
		BaselineProvenance: preview.Baseline.Provenance.String(),
	}
	if preview.Baseline.HasValue() {
		v := preview.Baseline.Value
		ev.BaselineValue = &v
	}
	if preview.Existing != nil {
		id, v := preview.Existing.ID, preview.Existing.Value
		ev.ExistingReadingID = &id
		ev.ExistingValue = &v
	}

	s.publish(ctx, EventReadingBaseline, cmd.RequestID, ev, logger)
	return nil
}

// ocrSuggestion parses recognised photo text into a pre-fill hint. It never
// changes what is submitted.
func (s *ProcessorService) ocrSuggestion(ctx context.Context, p SubmitReadingPayload, logger *zap.Logger) *OCRSuggestion {
	if p.OCRText == "" {
		return nil
	}
	result := ocr.ParseText(p.OCRText, p.OCRConfidence)
	if result.Empty() {
		return nil
	}
	suggestion := newOCRSuggestion(result)

	if result.SerialNumber != nil && p.MeterID == uuid.Nil {
		meters, err := s.meterList.ListMeters(ctx)
		if err != nil {
			logger.Warn("failed to list meters for serial number match", zap.Error(err))
			return suggestion
		}
		if m, ok := ocr.MatchMeter(*result.SerialNumber, meters); ok {
			id := m.ID
			suggestion.SuggestedMeterID = &id
		}
	}
	return suggestion
}

func (s *ProcessorService) deleteReading(ctx context.Context, cmd CommandMessage, logger *zap.Logger) error {
	var p DeleteReadingPayload
	if err := json.Unmarshal(cmd.Payload, &p); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", cmd.Type, err)
	}

	if err := s.admission.Delete(ctx, p.ReadingID); err != nil {
		if errors.Is(err, admission.ErrMissingSelection) {
			logger.Warn("delete without reading id ignored")
			return nil
		}
		return fmt.Errorf("failed to delete reading: %w", err)
	}

	logger.Info("reading deleted", zap.String("reading_id", p.ReadingID.String()))
	s.publish(ctx, EventReadingDeleted, cmd.RequestID, ReadingDeletedEvent{ReadingID: p.ReadingID}, logger)
	return nil
}

func (s *ProcessorService) upsertMeter(ctx context.Context, cmd CommandMessage, logger *zap.Logger) error {
	var p UpsertMeterPayload
	if err := json.Unmarshal(cmd.Payload, &p); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", cmd.Type, err)
	}

	res, err := s.meters.Upsert(ctx, MeterInput{
		ID:                  p.ID,
		SerialNumber:        p.SerialNumber,
		MediaType:           p.MediaType,
		ParentMeterID:       p.ParentMeterID,
		TenantID:            p.TenantID,
		LocationDescription: p.LocationDescription,
		Notes:               p.Notes,
		StartPeriodID:       p.StartPeriodID,
		StartValue:          p.StartValue,
	})
	if err != nil {
		if !IsMeterRejection(err) {
			return err
		}
		ev := MeterRejectedEvent{MeterID: p.ID, SerialNumber: p.SerialNumber, Reason: err.Error()}
		logger.Info("meter rejected", zap.String("reason", ev.Reason))
		s.publish(ctx, EventMeterRejected, cmd.RequestID, ev, logger)
		return nil
	}

	s.publish(ctx, EventMeterUpserted, cmd.RequestID, newMeterUpsertedEvent(res), logger)
	return nil
}

func (s *ProcessorService) upsertPeriod(ctx context.Context, cmd CommandMessage, logger *zap.Logger) error {
	var p UpsertPeriodPayload
	if err := json.Unmarshal(cmd.Payload, &p); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", cmd.Type, err)
	}

	bp := db.BillingPeriod{
		Month:                   p.Month,
		Year:                    p.Year,
		Status:                  p.Status,
		UnitPriceGas:            p.UnitPriceGas,
		UnitPriceElectricity:    p.UnitPriceElectricity,
		UnitPriceWater:          p.UnitPriceWater,
		TotalInvoiceGas:         p.TotalInvoiceGas,
		TotalInvoiceElectricity: p.TotalInvoiceElectricity,
		TotalInvoiceWater:       p.TotalInvoiceWater,
	}
	if p.ID != nil {
		bp.ID = *p.ID
	}

	res, err := s.periods.Upsert(ctx, bp)
	if err != nil {
		if !IsPeriodRejection(err) {
			return err
		}
		ev := PeriodRejectedEvent{Month: p.Month, Year: p.Year, Reason: err.Error()}
		logger.Info("billing period rejected", zap.String("reason", ev.Reason))
		s.publish(ctx, EventPeriodRejected, cmd.RequestID, ev, logger)
		return nil
	}

	s.publish(ctx, EventPeriodUpserted, cmd.RequestID, PeriodUpsertedEvent{
		BillingPeriodID: res.Period.ID,
		Month:           res.Period.Month,
		Year:            res.Period.Year,
		Status:          string(res.Period.Status),
		Created:         res.Created,
	}, logger)
	return nil
}

func (s *ProcessorService) assignParent(ctx context.Context, cmd CommandMessage, logger *zap.Logger) error {
	var p AssignMeterParentPayload
	if err := json.Unmarshal(cmd.Payload, &p); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", cmd.Type, err)
	}

	ev := MeterParentEvent{MeterID: p.MeterID, ParentMeterID: p.ParentMeterID}
	if err := s.meters.AssignParent(ctx, p.MeterID, p.ParentMeterID); err != nil {
		if !IsMeterRejection(err) {
			return err
		}
		ev.Reason = err.Error()
		logger.Info("meter parent rejected", zap.String("reason", ev.Reason))
		s.publish(ctx, EventMeterParentRejected, cmd.RequestID, ev, logger)
		return nil
	}

	s.publish(ctx, EventMeterParentAssigned, cmd.RequestID, ev, logger)
	return nil
}

func (s *ProcessorService) buildReport(ctx context.Context, cmd CommandMessage, logger *zap.Logger) error {
	var p BuildReportPayload
	if err := json.Unmarshal(cmd.Payload, &p); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", cmd.Type, err)
	}

	report, err := s.reports.Build(ctx, p.Month, p.Year)
	if err != nil {
		if errors.Is(err, ErrPeriodNotFound) {
			s.publish(ctx, EventReportRejected, cmd.RequestID, ReportRejectedEvent{
				Month:  p.Month,
				Year:   p.Year,
				Reason: err.Error(),
			}, logger)
			return nil
		}
		return err
	}

	s.publish(ctx, EventReportReady, cmd.RequestID, newReportReadyEvent(report), logger)
	return nil
}

// publish sends an event after the work is committed. A failed publish is
// logged and does not fail the command.
func (s *ProcessorService) publish(ctx context.Context, routingKey, requestID string, event any, logger *zap.Logger) {
	if err := s.publisher.Publish(ctx, routingKey, requestID, event); err != nil {
		logger.Error("failed to publish event",
			zap.Error(err),
			zap.String("routing_key", routingKey),
		)
	}
}
