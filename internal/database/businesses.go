package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"agendafacil/internal/model"
)

// UpsertBusiness inserts or replaces a business, including its schedule.
func (db *DB) UpsertBusiness(ctx context.Context, b *model.Business) error {
	hours, err := encodeHours(b.WorkingHours)
	if err != nil {
		return err
	}
	now := time.Now()
	_, err = db.ExecContext(ctx, `
		INSERT INTO businesses (id, name, slug, kind, phone, address, working_hours, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			slug = excluded.slug,
			kind = excluded.kind,
			phone = excluded.phone,
			address = excluded.address,
			working_hours = excluded.working_hours,
			updated_at = excluded.updated_at`,
		b.ID, b.Name, b.Slug, b.Kind, b.Phone, b.Address, hours, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert business %s: %w", b.ID, err)
	}
	return nil
}

func (db *DB) GetBusiness(ctx context.Context, id string) (*model.Business, error) {
	var (
		b                                 model.Business
		slug, kind, phone, address, hours sql.NullString
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, name, slug, kind, phone, address, working_hours
		FROM businesses WHERE id = ?`, id,
	).Scan(&b.ID, &b.Name, &slug, &kind, &phone, &address, &hours)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get business %s: %w", id, err)
	}
	b.Slug, b.Kind, b.Phone, b.Address = slug.String, kind.String, phone.String, address.String

	raw, err := model.ParseRawWorkingHours([]byte(hours.String))
	if err != nil {
		return nil, fmt.Errorf("business %s: %w", id, err)
	}
	if raw != nil {
		b.WorkingHours = model.MigrateLegacyFormat(raw)
	}
	return &b, nil
}

// GetWorkingHours returns the stored schedule as is, possibly in the legacy
// single-range shape. A business without a schedule yields nil.
func (db *DB) GetWorkingHours(ctx context.Context, businessID string) (model.RawWorkingHours, error) {
	var hours sql.NullString
	err := db.QueryRowContext(ctx, `SELECT working_hours FROM businesses WHERE id = ?`, businessID).Scan(&hours)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get working hours %s: %w", businessID, err)
	}
	return model.ParseRawWorkingHours([]byte(hours.String))
}

// SaveWorkingHours writes the schedule in the shift-list format.
func (db *DB) SaveWorkingHours(ctx context.Context, businessID string, wh model.WorkingHours) error {
	hours, err := encodeHours(wh)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `UPDATE businesses SET working_hours = ?, updated_at = ? WHERE id = ?`, hours, time.Now(), businessID)
	if err != nil {
		return fmt.Errorf("save working hours %s: %w", businessID, err)
	}
	return expectOne(res)
}

func (db *DB) UpsertService(ctx context.Context, svc *model.Service) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO services (id, business_id, name, duration_minutes, price, is_active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(business_id, id) DO UPDATE SET
			name = excluded.name,
			duration_minutes = excluded.duration_minutes,
			price = excluded.price,
			is_active = excluded.is_active`,
		svc.ID, svc.BusinessID, svc.Name, svc.DurationMinutes, svc.Price, boolInt(svc.Active),
	)
	if err != nil {
		return fmt.Errorf("upsert service %s: %w", svc.ID, err)
	}
	return nil
}

func (db *DB) GetService(ctx context.Context, businessID, serviceID string) (*model.Service, error) {
	var svc model.Service
	err := db.QueryRowContext(ctx, `
		SELECT id, business_id, name, duration_minutes, price, is_active
		FROM services WHERE business_id = ? AND id = ?`, businessID, serviceID,
	).Scan(&svc.ID, &svc.BusinessID, &svc.Name, &svc.DurationMinutes, &svc.Price, &svc.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get service %s: %w", serviceID, err)
	}
	return &svc, nil
}

func (db *DB) UpsertProfessional(ctx context.Context, p *model.Professional) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO professionals (id, business_id, name, specialty, is_active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(business_id, id) DO UPDATE SET
			name = excluded.name,
			specialty = excluded.specialty,
			is_active = excluded.is_active`,
		p.ID, p.BusinessID, p.Name, nullString(p.Specialty), boolInt(p.Active),
	)
	if err != nil {
		return fmt.Errorf("upsert professional %s: %w", p.ID, err)
	}
	return nil
}

func (db *DB) GetProfessional(ctx context.Context, businessID, professionalID string) (*model.Professional, error) {
	var (
		p         model.Professional
		specialty sql.NullString
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, business_id, name, specialty, is_active
		FROM professionals WHERE business_id = ? AND id = ?`, businessID, professionalID,
	).Scan(&p.ID, &p.BusinessID, &p.Name, &specialty, &p.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get professional %s: %w", professionalID, err)
	}
	p.Specialty = specialty.String
	return &p, nil
}

func encodeHours(wh model.WorkingHours) (sql.NullString, error) {
	if wh == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(wh)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode working hours: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}
