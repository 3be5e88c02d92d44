package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/septivank/submetering-worker/internal/db"
)

// querier is satisfied by both the pool and a transaction
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository handles database operations
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// classify marks constraint violations with the db sentinel errors so callers
// can tell a conflicting write from an outage
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		return fmt.Errorf("%w: %w", db.ErrConflict, err)
	case "23503":
		return fmt.Errorf("%w: %w", db.ErrMissingReference, err)
	}
	return err
}

// Snapshot is a transactionally consistent view of everything a billing
// report needs
type Snapshot struct {
	Periods  []db.BillingPeriod
	Meters   []db.MeterWithTenant
	Readings []db.Reading
}

// LoadSnapshot reads periods, meters with tenants and readings inside one
// read-only REPEATABLE READ transaction
func (r *Repository) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	periods, err := listPeriods(ctx, tx)
	if err != nil {
		return nil, err
	}
	meters, err := listMetersWithTenant(ctx, tx)
	if err != nil {
		return nil, err
	}
	readings, err := listReadings(ctx, tx, "", nil)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit snapshot transaction: %w", err)
	}

	return &Snapshot{Periods: periods, Meters: meters, Readings: readings}, nil
}

const periodColumns = `
	id, month, year, status,
	unit_price_gas, unit_price_electricity, unit_price_water,
	total_invoice_gas, total_invoice_electricity, total_invoice_water,
	created_at, updated_at`

func scanPeriod(row pgx.Row, p *db.BillingPeriod) error {
	return row.Scan(
		&p.ID,
		&p.Month,
		&p.Year,
		&p.Status,
		&p.UnitPriceGas,
		&p.UnitPriceElectricity,
		&p.UnitPriceWater,
		&p.TotalInvoiceGas,
		&p.TotalInvoiceElectricity,
		&p.TotalInvoiceWater,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
}

// ListPeriods returns every billing period, newest first
func (r *Repository) ListPeriods(ctx context.Context) ([]db.BillingPeriod, error) {
	return listPeriods(ctx, r.pool)
}

func listPeriods(ctx context.Context, q querier) ([]db.BillingPeriod, error) {
	query := `SELECT` + periodColumns + `
		FROM billing_periods
		ORDER BY year DESC, month DESC
	`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query billing periods: %w", err)
	}
	defer rows.Close()

	var periods []db.BillingPeriod
	for rows.Next() {
		var p db.BillingPeriod
		if err := scanPeriod(rows, &p); err != nil {
			return nil, fmt.Errorf("failed to scan billing period: %w", err)
		}
		periods = append(periods, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return periods, nil
}

// GetPeriod returns a billing period by id, or nil
func (r *Repository) GetPeriod(ctx context.Context, id uuid.UUID) (*db.BillingPeriod, error) {
	query := `SELECT` + periodColumns + `
		FROM billing_periods
		WHERE id = $1
	`

	var p db.BillingPeriod
	err := scanPeriod(r.pool.QueryRow(ctx, query, id), &p)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query billing period: %w", err)
	}
	return &p, nil
}

// FindPeriodByMonthYear returns the period for (month, year), or nil
func (r *Repository) FindPeriodByMonthYear(ctx context.Context, month, year int) (*db.BillingPeriod, error) {
	query := `SELECT` + periodColumns + `
		FROM billing_periods
		WHERE month = $1 AND year = $2
	`

	var p db.BillingPeriod
	err := scanPeriod(r.pool.QueryRow(ctx, query, month, year), &p)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query billing period: %w", err)
	}
	return &p, nil
}

// UpsertPeriod inserts p, or overwrites the period with the same id
func (r *Repository) UpsertPeriod(ctx context.Context, p *db.BillingPeriod) error {
	query := `
		INSERT INTO billing_periods (
			id, month, year, status,
			unit_price_gas, unit_price_electricity, unit_price_water,
			total_invoice_gas, total_invoice_electricity, total_invoice_water,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (id) DO UPDATE SET
			month = EXCLUDED.month,
			year = EXCLUDED.year,
			status = EXCLUDED.status,
			unit_price_gas = EXCLUDED.unit_price_gas,
			unit_price_electricity = EXCLUDED.unit_price_electricity,
			unit_price_water = EXCLUDED.unit_price_water,
			total_invoice_gas = EXCLUDED.total_invoice_gas,
			total_invoice_electricity = EXCLUDED.total_invoice_electricity,
			total_invoice_water = EXCLUDED.total_invoice_water,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		p.ID,
		p.Month,
		p.Year,
		p.Status,
		p.UnitPriceGas,
		p.UnitPriceElectricity,
		p.UnitPriceWater,
		p.TotalInvoiceGas,
		p.TotalInvoiceElectricity,
		p.TotalInvoiceWater,
		time.Now(),
	).Scan(&p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert billing period: %w", classify(err))
	}
	return nil
}

const meterColumns = `
	m.id, m.serial_number, m.media_type, m.parent_meter_id, m.tenant_id,
	m.location_description, m.notes, m.start_period_id, m.start_value,
	m.created_at, m.updated_at`

func scanMeterInto(m *db.Meter) []any {
	return []any{
		&m.ID,
		&m.SerialNumber,
		&m.MediaType,
		&m.ParentMeterID,
		&m.TenantID,
		&m.LocationDescription,
		&m.Notes,
		&m.StartPeriodID,
		&m.StartValue,
		&m.CreatedAt,
		&m.UpdatedAt,
	}
}

// GetMeter returns a meter by id, or nil
func (r *Repository) GetMeter(ctx context.Context, id uuid.UUID) (*db.Meter, error) {
	query := `SELECT` + meterColumns + `
		FROM meters m
		WHERE m.id = $1
	`

	var m db.Meter
	err := r.pool.QueryRow(ctx, query, id).Scan(scanMeterInto(&m)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query meter: %w", err)
	}
	return &m, nil
}

// ListMeters returns every meter ordered by serial number
func (r *Repository) ListMeters(ctx context.Context) ([]db.Meter, error) {
	query := `SELECT` + meterColumns + `
		FROM meters m
		ORDER BY m.serial_number, m.id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query meters: %w", err)
	}
	defer rows.Close()

	var meters []db.Meter
	for rows.Next() {
		var m db.Meter
		if err := rows.Scan(scanMeterInto(&m)...); err != nil {
			return nil, fmt.Errorf("failed to scan meter: %w", err)
		}
		meters = append(meters, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return meters, nil
}

// ListMetersWithTenant returns every meter joined with its tenant, ordered by
// serial number so reports come out in a canonical order
func (r *Repository) ListMetersWithTenant(ctx context.Context) ([]db.MeterWithTenant, error) {
	return listMetersWithTenant(ctx, r.pool)
}

func listMetersWithTenant(ctx context.Context, q querier) ([]db.MeterWithTenant, error) {
	query := `SELECT` + meterColumns + `,
			t.id, t.company_name, t.ico, t.contact_email, t.contact_phone, t.address,
			t.created_at, t.updated_at
		FROM meters m
		LEFT JOIN tenants t ON t.id = m.tenant_id
		ORDER BY m.serial_number, m.id
	`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query meters: %w", err)
	}
	defer rows.Close()

	var meters []db.MeterWithTenant
	for rows.Next() {
		var (
			m          db.MeterWithTenant
			tenantID   *uuid.UUID
			name       *string
			t          db.Tenant
			tCreatedAt *time.Time
			tUpdatedAt *time.Time
		)
		dest := append(scanMeterInto(&m.Meter),
			&tenantID, &name, &t.ICO, &t.ContactEmail, &t.ContactPhone, &t.Address,
			&tCreatedAt, &tUpdatedAt,
		)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan meter: %w", err)
		}
		if tenantID != nil {
			t.ID = *tenantID
			if name != nil {
				t.CompanyName = *name
			}
			if tCreatedAt != nil {
				t.CreatedAt = *tCreatedAt
			}
			if tUpdatedAt != nil {
				t.UpdatedAt = *tUpdatedAt
			}
			m.Tenant = &t
		}
		meters = append(meters, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return meters, nil
}

// UpdateMeterParent sets or clears a meter's parent
func (r *Repository) UpdateMeterParent(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) error {
	query := `
		UPDATE meters
		SET parent_meter_id = $1, updated_at = $2
		WHERE id = $3
	`

	tag, err := r.pool.Exec(ctx, query, parentID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update meter parent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to update meter parent: meter %s: %w", id, pgx.ErrNoRows)
	}
	return nil
}

// UpsertMeter inserts m, or overwrites the meter with the same id
func (r *Repository) UpsertMeter(ctx context.Context, m *db.Meter) error {
	query := `
		INSERT INTO meters (
			id, serial_number, media_type, parent_meter_id, tenant_id,
			location_description, notes, start_period_id, start_value,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (id) DO UPDATE SET
			serial_number = EXCLUDED.serial_number,
			media_type = EXCLUDED.media_type,
			parent_meter_id = EXCLUDED.parent_meter_id,
			tenant_id = EXCLUDED.tenant_id,
			location_description = EXCLUDED.location_description,
			notes = EXCLUDED.notes,
			start_period_id = EXCLUDED.start_period_id,
			start_value = EXCLUDED.start_value,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		m.ID,
		m.SerialNumber,
		m.MediaType,
		m.ParentMeterID,
		m.TenantID,
		m.LocationDescription,
		m.Notes,
		m.StartPeriodID,
		m.StartValue,
		time.Now(),
	).Scan(&m.CreatedAt, &m.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert meter: %w", classify(err))
	}
	return nil
}

const readingColumns = `
	id, meter_id, billing_period_id, value, date_taken,
	photo_url, note, created_by, created_at, updated_at`

func scanReading(row pgx.Row, rd *db.Reading) error {
	return row.Scan(
		&rd.ID,
		&rd.MeterID,
		&rd.BillingPeriodID,
		&rd.Value,
		&rd.DateTaken,
		&rd.PhotoURL,
		&rd.Note,
		&rd.CreatedBy,
		&rd.CreatedAt,
		&rd.UpdatedAt,
	)
}

func listReadings(ctx context.Context, q querier, where string, args []any) ([]db.Reading, error) {
	query := `SELECT` + readingColumns + `
		FROM readings ` + where + `
		ORDER BY date_taken, id
	`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var readings []db.Reading
	for rows.Next() {
		var rd db.Reading
		if err := scanReading(rows, &rd); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, rd)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return readings, nil
}

// GetReading returns a reading by id, or nil
func (r *Repository) GetReading(ctx context.Context, id uuid.UUID) (*db.Reading, error) {
	query := `SELECT` + readingColumns + `
		FROM readings
		WHERE id = $1
	`

	var rd db.Reading
	err := scanReading(r.pool.QueryRow(ctx, query, id), &rd)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query reading: %w", err)
	}
	return &rd, nil
}

// ListReadingsForMeter returns every reading of a meter
func (r *Repository) ListReadingsForMeter(ctx context.Context, meterID uuid.UUID) ([]db.Reading, error) {
	return listReadings(ctx, r.pool, "WHERE meter_id = $1", []any{meterID})
}

// CreateReading inserts a reading and fills its generated fields. A second
// reading for the same meter and period fails with db.ErrConflict.
func (r *Repository) CreateReading(ctx context.Context, rd *db.Reading) error {
	query := `
		INSERT INTO readings (
			meter_id, billing_period_id, value, date_taken,
			photo_url, note, created_by, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING id, created_at, updated_at
	`

	now := time.Now()
	err := r.pool.QueryRow(ctx, query,
		rd.MeterID,
		rd.BillingPeriodID,
		rd.Value,
		rd.DateTaken,
		rd.PhotoURL,
		rd.Note,
		rd.CreatedBy,
		now,
	).Scan(&rd.ID, &rd.CreatedAt, &rd.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", classify(err))
	}

	return nil
}

// UpdateReading writes the mutable fields of a reading
func (r *Repository) UpdateReading(ctx context.Context, rd *db.Reading) error {
	query := `
		UPDATE readings
		SET meter_id = $1, billing_period_id = $2, value = $3, date_taken = $4,
			photo_url = $5, note = $6, updated_at = $7
		WHERE id = $8
		RETURNING updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		rd.MeterID,
		rd.BillingPeriodID,
		rd.Value,
		rd.DateTaken,
		rd.PhotoURL,
		rd.Note,
		time.Now(),
		rd.ID,
	).Scan(&rd.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to update reading: %w", classify(err))
	}

	return nil
}

// DeleteReading removes a reading; deleting a missing reading is not an error
func (r *Repository) DeleteReading(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM readings WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete reading: %w", err)
	}
	return nil
}
