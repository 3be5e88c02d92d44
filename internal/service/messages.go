package service

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/septivank/submetering-worker/internal/billing"
	"github.com/septivank/submetering-worker/internal/db"
	"github.com/septivank/submetering-worker/internal/ocr"
)

// Command types accepted on the command queue
const (
	CommandSubmitReading     = "reading.submit"
	CommandPreviewReading    = "reading.preview"
	CommandDeleteReading     = "reading.delete"
	CommandUpsertMeter       = "meter.upsert"
	CommandAssignMeterParent = "meter.assign_parent"
	CommandUpsertPeriod      = "period.upsert"
	CommandBuildReport       = "billing.report"
)

// Event routing keys published after processing
const (
	EventReadingAdmitted     = "reading.admitted"
	EventReadingRejected     = "reading.rejected"
	EventReadingBaseline     = "reading.baseline"
	EventReadingDeleted      = "reading.deleted"
	EventMeterUpserted       = "meter.upserted"
	EventMeterRejected       = "meter.rejected"
	EventMeterParentAssigned = "meter.parent_assigned"
	EventMeterParentRejected = "meter.parent_rejected"
	EventPeriodUpserted      = "period.upserted"
	EventPeriodRejected      = "period.rejected"
	EventReportReady         = "billing.report.ready"
	EventReportRejected      = "billing.report.rejected"
)

// CommandMessage is the envelope of every command
type CommandMessage struct {
	RequestID   string          `json:"request_id"`
	Type        string          `json:"type"`
	SubmittedBy *string         `json:"submitted_by"`
	ReceivedAt  time.Time       `json:"received_at"`
	Payload     json.RawMessage `json:"payload"`
}

// SubmitReadingPayload creates a reading, or edits one when ReadingID is set
type SubmitReadingPayload struct {
	ReadingID       *uuid.UUID `json:"reading_id"`
	MeterID         uuid.UUID  `json:"meter_id"`
	BillingPeriodID uuid.UUID  `json:"billing_period_id"`
	Value           string     `json:"value"`
	DateTaken       string     `json:"date_taken"`
	Note            string     `json:"note"`
	Photo           []byte     `json:"photo"`
	PhotoName       string     `json:"photo_name"`
	Confirmed       bool       `json:"confirmed"`
	OCRText         string     `json:"ocr_text"`
	OCRConfidence   float64    `json:"ocr_confidence"`
}

// PreviewReadingPayload asks for the baseline of a meter and period
type PreviewReadingPayload struct {
	MeterID         uuid.UUID `json:"meter_id"`
	BillingPeriodID uuid.UUID `json:"billing_period_id"`
}

// DeleteReadingPayload removes a reading
type DeleteReadingPayload struct {
	ReadingID uuid.UUID `json:"reading_id"`
}

// AssignMeterParentPayload sets or clears a meter's parent
type AssignMeterParentPayload struct {
	MeterID       uuid.UUID  `json:"meter_id"`
	ParentMeterID *uuid.UUID `json:"parent_meter_id"`
}

// UpsertMeterPayload creates a meter, or updates one when ID is set.
// StartPeriodID and StartValue are set together or not at all.
type UpsertMeterPayload struct {
	ID                  *uuid.UUID       `json:"id"`
	SerialNumber        string           `json:"serial_number"`
	MediaType           db.MediaType     `json:"media_type"`
	ParentMeterID       *uuid.UUID       `json:"parent_meter_id"`
	TenantID            *uuid.UUID       `json:"tenant_id"`
	LocationDescription string           `json:"location_description"`
	Notes               string           `json:"notes"`
	StartPeriodID       *uuid.UUID       `json:"start_period_id"`
	StartValue          *decimal.Decimal `json:"start_value"`
}

// UpsertPeriodPayload creates or updates a billing period. Without ID the
// period is matched by month and year.
type UpsertPeriodPayload struct {
	ID     *uuid.UUID      `json:"id"`
	Month  int             `json:"month"`
	Year   int             `json:"year"`
	Status db.PeriodStatus `json:"status"`

	UnitPriceGas         decimal.NullDecimal `json:"unit_price_gas"`
	UnitPriceElectricity decimal.NullDecimal `json:"unit_price_electricity"`
	UnitPriceWater       decimal.NullDecimal `json:"unit_price_water"`

	TotalInvoiceGas         decimal.NullDecimal `json:"total_invoice_gas"`
	TotalInvoiceElectricity decimal.NullDecimal `json:"total_invoice_electricity"`
	TotalInvoiceWater       decimal.NullDecimal `json:"total_invoice_water"`
}

// BuildReportPayload selects the billing period by calendar month
type BuildReportPayload struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// OCRSuggestion is a pre-fill hint derived from recognised photo text
type OCRSuggestion struct {
	SerialNumber     *string          `json:"serial_number,omitempty"`
	Value            *decimal.Decimal `json:"value,omitempty"`
	Confidence       float64          `json:"confidence"`
	SuggestedMeterID *uuid.UUID       `json:"suggested_meter_id,omitempty"`
}

func newOCRSuggestion(r ocr.Result) *OCRSuggestion {
	return &OCRSuggestion{
		SerialNumber: r.SerialNumber,
		Value:        r.Value,
		Confidence:   r.Confidence,
	}
}

// ReadingAdmittedEvent is published after a reading was stored
type ReadingAdmittedEvent struct {
	ReadingID           uuid.UUID        `json:"reading_id"`
	MeterID             uuid.UUID        `json:"meter_id"`
	BillingPeriodID     uuid.UUID        `json:"billing_period_id"`
	Value               decimal.Decimal  `json:"value"`
	BaselineValue       *decimal.Decimal `json:"baseline_value"`
	BaselineProvenance  string           `json:"baseline_provenance"`
	Consumption         decimal.Decimal  `json:"consumption"`
	NegativeConsumption bool             `json:"negative_consumption"`
	PhotoURL            *string          `json:"photo_url"`
	PhotoDropped        bool             `json:"photo_dropped"`
	Created             bool             `json:"created"`
	DateTaken           time.Time        `json:"date_taken"`
	OCR                 *OCRSuggestion   `json:"ocr,omitempty"`
}

// ReadingRejectedEvent tells the submitter what to correct
type ReadingRejectedEvent struct {
	MeterID         uuid.UUID        `json:"meter_id"`
	BillingPeriodID uuid.UUID        `json:"billing_period_id"`
	Kind            string           `json:"kind"`
	Reason          string           `json:"reason"`
	BaselineValue   *decimal.Decimal `json:"baseline_value,omitempty"`
	OCR             *OCRSuggestion   `json:"ocr,omitempty"`
}

// ReadingBaselineEvent answers a preview with the previous value
type ReadingBaselineEvent struct {
	MeterID            uuid.UUID        `json:"meter_id"`
	BillingPeriodID    uuid.UUID        `json:"billing_period_id"`
	BaselineValue      *decimal.Decimal `json:"baseline_value"`
	BaselineProvenance string           `json:"baseline_provenance"`
	ExistingReadingID  *uuid.UUID       `json:"existing_reading_id,omitempty"`
	ExistingValue      *decimal.Decimal `json:"existing_value,omitempty"`
}

// ReadingDeletedEvent confirms a deletion
type ReadingDeletedEvent struct {
	ReadingID uuid.UUID `json:"reading_id"`
}

// MeterUpsertedEvent is published after a meter was stored
type MeterUpsertedEvent struct {
	MeterID       uuid.UUID        `json:"meter_id"`
	SerialNumber  string           `json:"serial_number"`
	MediaType     string           `json:"media_type"`
	ParentMeterID *uuid.UUID       `json:"parent_meter_id"`
	TenantID      *uuid.UUID       `json:"tenant_id"`
	StartPeriodID *uuid.UUID       `json:"start_period_id"`
	StartValue    *decimal.Decimal `json:"start_value"`
	Depth         int              `json:"depth"`
	Created       bool             `json:"created"`
}

func newMeterUpsertedEvent(res *MeterResult) MeterUpsertedEvent {
	m := res.Meter
	ev := MeterUpsertedEvent{
		MeterID:       m.ID,
		SerialNumber:  m.SerialNumber,
		MediaType:     string(m.MediaType),
		ParentMeterID: m.ParentMeterID,
		TenantID:      m.TenantID,
		StartPeriodID: m.StartPeriodID,
		Depth:         res.Depth,
		Created:       res.Created,
	}
	if m.StartValue.Valid {
		v := m.StartValue.Decimal
		ev.StartValue = &v
	}
	return ev
}

// MeterRejectedEvent reports a meter that was not stored
type MeterRejectedEvent struct {
	MeterID      *uuid.UUID `json:"meter_id"`
	SerialNumber string     `json:"serial_number"`
	Reason       string     `json:"reason"`
}

// PeriodUpsertedEvent is published after a billing period was stored
type PeriodUpsertedEvent struct {
	BillingPeriodID uuid.UUID `json:"billing_period_id"`
	Month           int       `json:"month"`
	Year            int       `json:"year"`
	Status          string    `json:"status"`
	Created         bool      `json:"created"`
}

// PeriodRejectedEvent reports a billing period that was not stored
type PeriodRejectedEvent struct {
	Month  int    `json:"month"`
	Year   int    `json:"year"`
	Reason string `json:"reason"`
}

// MeterParentEvent reports a parent assignment outcome
type MeterParentEvent struct {
	MeterID       uuid.UUID  `json:"meter_id"`
	ParentMeterID *uuid.UUID `json:"parent_meter_id"`
	Reason        string     `json:"reason,omitempty"`
}

// ReportRowJSON is one allocation row on the wire
type ReportRowJSON struct {
	TenantID           *uuid.UUID       `json:"tenant_id"`
	TenantName         *string          `json:"tenant_name"`
	TaxID              *string          `json:"tax_id"`
	MeterID            uuid.UUID        `json:"meter_id"`
	SerialNumber       string           `json:"serial_number"`
	MediaType          string           `json:"media_type"`
	PreviousValue      *decimal.Decimal `json:"previous_value"`
	BaselineProvenance string           `json:"baseline_provenance"`
	CurrentValue       decimal.Decimal  `json:"current_value"`
	Consumption        decimal.Decimal  `json:"consumption"`
	UnitPrice          decimal.Decimal  `json:"unit_price"`
	Total              decimal.Decimal  `json:"total"`
	Warnings           []string         `json:"warnings,omitempty"`
}

// ReportReadyEvent carries a complete billing report
type ReportReadyEvent struct {
	BillingPeriodID    uuid.UUID        `json:"billing_period_id"`
	Month              int              `json:"month"`
	Year               int              `json:"year"`
	Rows               []ReportRowJSON  `json:"rows"`
	Total              decimal.Decimal  `json:"total"`
	TotalConsumption   decimal.Decimal  `json:"total_consumption"`
	MeteredConsumption decimal.Decimal  `json:"metered_consumption"`
	TenantCount        int              `json:"tenant_count"`
	Media              []MediaTotalJSON `json:"media"`
}

// MediaTotalJSON sets one media type's allocation against its invoice
type MediaTotalJSON struct {
	MediaType    string           `json:"media_type"`
	Consumption  decimal.Decimal  `json:"consumption"`
	Allocated    decimal.Decimal  `json:"allocated"`
	InvoiceTotal *decimal.Decimal `json:"invoice_total"`
	Unallocated  *decimal.Decimal `json:"unallocated"`
}

// ReportRejectedEvent reports a report request that cannot be served
type ReportRejectedEvent struct {
	Month  int    `json:"month"`
	Year   int    `json:"year"`
	Reason string `json:"reason"`
}

func newReportReadyEvent(r *Report) ReportReadyEvent {
	ev := ReportReadyEvent{
		BillingPeriodID:    r.Period.ID,
		Month:              r.Period.Month,
		Year:               r.Period.Year,
		Rows:               make([]ReportRowJSON, 0, len(r.Rows)),
		Total:              r.Summary.Total,
		TotalConsumption:   r.Summary.Consumption,
		MeteredConsumption: r.MeteredConsumption,
		TenantCount:        r.Summary.TenantCount,
	}
	for _, row := range r.Rows {
		ev.Rows = append(ev.Rows, newReportRowJSON(row))
	}
	for _, m := range r.Media {
		j := MediaTotalJSON{
			MediaType:   string(m.MediaType),
			Consumption: m.Consumption,
			Allocated:   m.Allocated,
		}
		if m.Invoice.Valid {
			invoice, rest := m.Invoice.Decimal, m.Unallocated().Decimal
			j.InvoiceTotal = &invoice
			j.Unallocated = &rest
		}
		ev.Media = append(ev.Media, j)
	}
	return ev
}

func newReportRowJSON(row billing.Row) ReportRowJSON {
	j := ReportRowJSON{
		TenantID:           row.Meter.TenantID,
		MeterID:            row.Meter.ID,
		SerialNumber:       row.Meter.SerialNumber,
		MediaType:          string(row.Meter.MediaType),
		BaselineProvenance: row.Baseline.Provenance.String(),
		CurrentValue:       row.CurrentReading.Value,
		Consumption:        row.Consumption,
		UnitPrice:          row.UnitPrice,
		Total:              row.Total,
	}
	if row.Tenant != nil {
		name := row.Tenant.CompanyName
		j.TenantName = &name
		j.TaxID = row.Tenant.ICO
	}
	if row.Baseline.HasValue() {
		v := row.Baseline.Value
		j.PreviousValue = &v
	}
	for _, w := range row.Warnings {
		j.Warnings = append(j.Warnings, w.Reason)
	}
	return j
}
