package admission

import (
	"context"

	"github.com/google/uuid"

	"github.com/septivank/submetering-worker/internal/db"
)

// PeriodStore lists billing periods
type PeriodStore interface {
	ListPeriods(ctx context.Context) ([]db.BillingPeriod, error)
}

// MeterStore loads a meter; a missing meter is (nil, nil)
type MeterStore interface {
	GetMeter(ctx context.Context, id uuid.UUID) (*db.Meter, error)
}

// ReadingStore persists readings. Lookups return (nil, nil) when nothing matches.
type ReadingStore interface {
	GetReading(ctx context.Context, id uuid.UUID) (*db.Reading, error)
	ListReadingsForMeter(ctx context.Context, meterID uuid.UUID) ([]db.Reading, error)
	CreateReading(ctx context.Context, r *db.Reading) error
	UpdateReading(ctx context.Context, r *db.Reading) error
	DeleteReading(ctx context.Context, id uuid.UUID) error
}

// PhotoStore keeps reading photos and returns their public URL
type PhotoStore interface {
	Upload(ctx context.Context, data []byte, name string) (string, error)
}
