package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"agendafacil/internal/model"
)

func (s *Store) UpsertBusiness(ctx context.Context, b *model.Business) error {
	hours, err := encodeHours(b.WorkingHours)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO businesses (id, name, slug, kind, phone, address, working_hours)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			slug = EXCLUDED.slug,
			kind = EXCLUDED.kind,
			phone = EXCLUDED.phone,
			address = EXCLUDED.address,
			working_hours = EXCLUDED.working_hours,
			updated_at = now()
	`, b.ID, b.Name, nullable(b.Slug), nullable(b.Kind), nullable(b.Phone), nullable(b.Address), hours)
	if err != nil {
		return fmt.Errorf("upsert business %s: %w", b.ID, err)
	}
	return nil
}

func (s *Store) GetBusiness(ctx context.Context, id string) (*model.Business, error) {
	var (
		b                          model.Business
		slug, kind, phone, address *string
		hours                      []byte
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, name, slug, kind, phone, address, working_hours
		FROM businesses WHERE id = $1
	`, id).Scan(&b.ID, &b.Name, &slug, &kind, &phone, &address, &hours)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get business %s: %w", id, err)
	}
	b.Slug, b.Kind, b.Phone, b.Address = deref(slug), deref(kind), deref(phone), deref(address)
	raw, err := model.ParseRawWorkingHours(hours)
	if err != nil {
		return nil, fmt.Errorf("business %s: %w", id, err)
	}
	if raw != nil {
		b.WorkingHours = model.MigrateLegacyFormat(raw)
	}
	return &b, nil
}

func (s *Store) GetWorkingHours(ctx context.Context, businessID string) (model.RawWorkingHours, error) {
	var hours []byte
	err := s.db.QueryRow(ctx, `SELECT working_hours FROM businesses WHERE id = $1`, businessID).Scan(&hours)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get working hours %s: %w", businessID, err)
	}
	return model.ParseRawWorkingHours(hours)
}

func (s *Store) SaveWorkingHours(ctx context.Context, businessID string, wh model.WorkingHours) error {
	hours, err := encodeHours(wh)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `UPDATE businesses SET working_hours = $2, updated_at = now() WHERE id = $1`, businessID, hours)
	if err != nil {
		return fmt.Errorf("save working hours %s: %w", businessID, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *Store) UpsertService(ctx context.Context, svc *model.Service) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO services (id, business_id, name, duration_minutes, price, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (business_id, id) DO UPDATE SET
			name = EXCLUDED.name,
			duration_minutes = EXCLUDED.duration_minutes,
			price = EXCLUDED.price,
			is_active = EXCLUDED.is_active
	`, svc.ID, svc.BusinessID, svc.Name, svc.DurationMinutes, svc.Price, svc.Active)
	if err != nil {
		return fmt.Errorf("upsert service %s: %w", svc.ID, err)
	}
	return nil
}

func (s *Store) GetService(ctx context.Context, businessID, serviceID string) (*model.Service, error) {
	var svc model.Service
	err := s.db.QueryRow(ctx, `
		SELECT id, business_id, name, duration_minutes, price::float8, is_active
		FROM services WHERE business_id = $1 AND id = $2
	`, businessID, serviceID).Scan(&svc.ID, &svc.BusinessID, &svc.Name, &svc.DurationMinutes, &svc.Price, &svc.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get service %s: %w", serviceID, err)
	}
	return &svc, nil
}

func (s *Store) UpsertProfessional(ctx context.Context, p *model.Professional) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO professionals (id, business_id, name, specialty, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (business_id, id) DO UPDATE SET
			name = EXCLUDED.name,
			specialty = EXCLUDED.specialty,
			is_active = EXCLUDED.is_active
	`, p.ID, p.BusinessID, p.Name, nullable(p.Specialty), p.Active)
	if err != nil {
		return fmt.Errorf("upsert professional %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) GetProfessional(ctx context.Context, businessID, professionalID string) (*model.Professional, error) {
	var (
		p         model.Professional
		specialty *string
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, business_id, name, specialty, is_active
		FROM professionals WHERE business_id = $1 AND id = $2
	`, businessID, professionalID).Scan(&p.ID, &p.BusinessID, &p.Name, &specialty, &p.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get professional %s: %w", professionalID, err)
	}
	p.Specialty = deref(specialty)
	return &p, nil
}

const blockColumns = `id, business_id, to_char(date, 'YYYY-MM-DD'), to_char(start_time, 'HH24:MI:SS'),
	to_char(end_time, 'HH24:MI:SS'), description, created_at`

func (s *Store) GetBlocks(ctx context.Context, businessID string, date time.Time) ([]model.Block, error) {
	return s.ListBlocks(ctx, businessID, date, date)
}

func (s *Store) ListBlocks(ctx context.Context, businessID string, from, to time.Time) ([]model.Block, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+blockColumns+`
		FROM blocks
		WHERE business_id = $1 AND date BETWEEN $2::date AND $3::date
		ORDER BY date, start_time
	`, businessID, model.FormatDate(from), model.FormatDate(to))
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	blocks := []model.Block{}
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, *b)
	}
	return blocks, rows.Err()
}

func (s *Store) GetBlock(ctx context.Context, businessID, id string) (*model.Block, error) {
	b, err := scanBlock(s.db.QueryRow(ctx, `SELECT `+blockColumns+` FROM blocks WHERE business_id = $1 AND id = $2`, businessID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	return b, err
}

func (s *Store) CreateBlock(ctx context.Context, b *model.Block) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO blocks (id, business_id, date, start_time, end_time, description)
		VALUES ($1, $2, $3::date, $4::time, $5::time, $6)
	`, b.ID, b.BusinessID, model.FormatDate(b.Date), b.Start.StorageString(), b.End.StorageString(), nullable(b.Description))
	if err != nil {
		return fmt.Errorf("create block: %w", err)
	}
	return nil
}

func (s *Store) UpsertBlock(ctx context.Context, b *model.Block) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO blocks (id, business_id, date, start_time, end_time, description)
		VALUES ($1, $2, $3::date, $4::time, $5::time, $6)
		ON CONFLICT (id) DO UPDATE SET
			date = EXCLUDED.date,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			description = EXCLUDED.description
	`, b.ID, b.BusinessID, model.FormatDate(b.Date), b.Start.StorageString(), b.End.StorageString(), nullable(b.Description))
	if err != nil {
		return fmt.Errorf("upsert block: %w", err)
	}
	return nil
}

func (s *Store) UpdateBlock(ctx context.Context, b *model.Block) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE blocks SET date = $3::date, start_time = $4::time, end_time = $5::time, description = $6
		WHERE business_id = $1 AND id = $2
	`, b.BusinessID, b.ID, model.FormatDate(b.Date), b.Start.StorageString(), b.End.StorageString(), nullable(b.Description))
	if err != nil {
		return fmt.Errorf("update block: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteBlock(ctx context.Context, businessID, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM blocks WHERE business_id = $1 AND id = $2`, businessID, id)
	if err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

const bookingColumns = `id, business_id, professional_id, service_id, to_char(date, 'YYYY-MM-DD'),
	to_char(time, 'HH24:MI:SS'), client_name, client_phone, client_email, status, created_at, updated_at`

func (s *Store) GetBookings(ctx context.Context, businessID string, date time.Time, professionalID string) ([]model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE business_id = $1 AND date = $2::date`
	args := []any{businessID, model.FormatDate(date)}
	if professionalID != "" {
		query += ` AND professional_id = $3`
		args = append(args, professionalID)
	}
	return s.queryBookings(ctx, query+` ORDER BY time, id`, args...)
}

func (s *Store) ListBookings(ctx context.Context, businessID string, from, to time.Time) ([]model.Booking, error) {
	return s.queryBookings(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE business_id = $1 AND date BETWEEN $2::date AND $3::date
		ORDER BY date, time, id
	`, businessID, model.FormatDate(from), model.FormatDate(to))
}

// CountBookingsByDate counts pending and confirmed bookings per day after
// status normalization.
func (s *Store) CountBookingsByDate(ctx context.Context, businessID string, from, to time.Time) (map[string]int, error) {
	bookings, err := s.ListBookings(ctx, businessID, from, to)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for i := range bookings {
		switch bookings[i].Status {
		case model.StatusPending, model.StatusConfirmed:
			counts[model.FormatDate(bookings[i].Date)]++
		}
	}
	return counts, nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	b, err := scanBooking(s.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %s: %w", id, err)
	}
	return b, nil
}

func (s *Store) InsertBooking(ctx context.Context, b *model.Booking) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO bookings
			(id, business_id, professional_id, service_id, date, time,
			 client_name, client_phone, client_email, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::date, $6::time, $7, $8, $9, $10, $11, $12)
	`, b.ID, b.BusinessID, nullable(b.ProfessionalID), b.ServiceID, model.FormatDate(b.Date), b.Time.StorageString(),
		b.ClientName, b.ClientPhone, nullable(b.ClientEmail), string(b.Status), b.CreatedAt, b.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrSlotConflict
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// UpdateBookingStatus locks the row, compares its normalized status with
// from and applies to.
func (s *Store) UpdateBookingStatus(ctx context.Context, id string, from, to model.Status) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var raw string
	err = tx.QueryRow(ctx, `SELECT status FROM bookings WHERE id = $1 FOR UPDATE`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get booking status: %w", err)
	}
	if readStatus(raw) != from {
		return model.ErrConcurrentModification
	}

	if _, err := tx.Exec(ctx, `UPDATE bookings SET status = $2, updated_at = now() WHERE id = $1`, id, string(to)); err != nil {
		if isUniqueViolation(err) {
			return model.ErrSlotConflict
		}
		return fmt.Errorf("update booking status: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) queryBookings(ctx context.Context, query string, args ...any) ([]model.Booking, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	bookings := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func scanBlock(row pgx.Row) (*model.Block, error) {
	var (
		b                model.Block
		date, start, end string
		description      *string
	)
	if err := row.Scan(&b.ID, &b.BusinessID, &date, &start, &end, &description, &b.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if b.Date, err = model.ParseDate(date); err != nil {
		return nil, fmt.Errorf("block %s: %w", b.ID, err)
	}
	if b.Start, err = model.ParseTimeOfDay(start); err != nil {
		return nil, fmt.Errorf("block %s: %w", b.ID, err)
	}
	if b.End, err = model.ParseTimeOfDay(end); err != nil {
		return nil, fmt.Errorf("block %s: %w", b.ID, err)
	}
	b.Description = deref(description)
	return &b, nil
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var (
		b                   model.Booking
		professional, email *string
		date, at, status    string
	)
	err := row.Scan(
		&b.ID, &b.BusinessID, &professional, &b.ServiceID, &date, &at,
		&b.ClientName, &b.ClientPhone, &email, &status, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if b.Date, err = model.ParseDate(date); err != nil {
		return nil, fmt.Errorf("booking %s: %w", b.ID, err)
	}
	if b.Time, err = model.ParseTimeOfDay(at); err != nil {
		return nil, fmt.Errorf("booking %s: %w", b.ID, err)
	}
	b.ProfessionalID = deref(professional)
	b.ClientEmail = deref(email)
	b.Status = readStatus(status)
	return &b, nil
}

func readStatus(raw string) model.Status {
	st, err := model.NormalizeStatus(raw)
	if err != nil {
		return model.StatusPending
	}
	return st
}

func encodeHours(wh model.WorkingHours) ([]byte, error) {
	if wh == nil {
		return nil, nil
	}
	data, err := json.Marshal(wh)
	if err != nil {
		return nil, fmt.Errorf("encode working hours: %w", err)
	}
	return data, nil
}
