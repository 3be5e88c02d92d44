package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MediaType is the utility measured by a meter
type MediaType string

const (
	MediaGas         MediaType = "gas"
	MediaElectricity MediaType = "electricity"
	MediaWater       MediaType = "water"
)

// Valid reports whether m is one of the known media types
func (m MediaType) Valid() bool {
	switch m {
	case MediaGas, MediaElectricity, MediaWater:
		return true
	}
	return false
}

// PeriodStatus is the lifecycle state of a billing period
type PeriodStatus string

const (
	PeriodOpen   PeriodStatus = "open"
	PeriodClosed PeriodStatus = "closed"
)

// BillingPeriod represents a billing_periods row
type BillingPeriod struct {
	ID     uuid.UUID
	Month  int
	Year   int
	Status PeriodStatus

	UnitPriceGas         decimal.NullDecimal
	UnitPriceElectricity decimal.NullDecimal
	UnitPriceWater       decimal.NullDecimal

	TotalInvoiceGas         decimal.NullDecimal
	TotalInvoiceElectricity decimal.NullDecimal
	TotalInvoiceWater       decimal.NullDecimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Tenant represents a tenants row
type Tenant struct {
	ID           uuid.UUID
	CompanyName  string
	ICO          *string
	ContactEmail *string
	ContactPhone *string
	Address      *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Meter represents a meters row
type Meter struct {
	ID                  uuid.UUID
	SerialNumber        string
	MediaType           MediaType
	ParentMeterID       *uuid.UUID
	TenantID            *uuid.UUID
	LocationDescription *string
	Notes               *string
	StartPeriodID       *uuid.UUID
	StartValue          decimal.NullDecimal
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// HasStartAnchor reports whether both start_period_id and start_value are set
func (m Meter) HasStartAnchor() bool {
	return m.StartPeriodID != nil && m.StartValue.Valid
}

// MeterWithTenant is a meter joined with its optional owning tenant
type MeterWithTenant struct {
	Meter
	Tenant *Tenant
}

// Reading represents a readings row
type Reading struct {
	ID              uuid.UUID
	MeterID         uuid.UUID
	BillingPeriodID uuid.UUID
	Value           decimal.Decimal
	DateTaken       time.Time
	PhotoURL        *string
	Note            *string
	CreatedBy       *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
