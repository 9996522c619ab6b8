package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agendafacil/internal/model"
)

const bookingColumns = `id, business_id, professional_id, service_id, date, time,
	client_name, client_phone, client_email, status, created_at, updated_at`

// GetBookings returns every booking on date regardless of status, narrowed
// to one professional when professionalID is set.
func (db *DB) GetBookings(ctx context.Context, businessID string, date time.Time, professionalID string) ([]model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE business_id = ? AND date = ?`
	args := []any{businessID, model.FormatDate(date)}
	if professionalID != "" {
		query += ` AND professional_id = ?`
		args = append(args, professionalID)
	}
	query += ` ORDER BY time, id`
	return db.queryBookings(ctx, query, args...)
}

func (db *DB) ListBookings(ctx context.Context, businessID string, from, to time.Time) ([]model.Booking, error) {
	return db.queryBookings(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE business_id = ? AND date >= ? AND date <= ?
		ORDER BY date, time, id`,
		businessID, model.FormatDate(from), model.FormatDate(to),
	)
}

// CountBookingsByDate counts pending and confirmed bookings per day.
func (db *DB) CountBookingsByDate(ctx context.Context, businessID string, from, to time.Time) (map[string]int, error) {
	bookings, err := db.ListBookings(ctx, businessID, from, to)
	if err != nil {
		return nil, err
	}
	// statuses are normalized on read, so counting happens here rather than
	// with a GROUP BY over raw values
	counts := make(map[string]int)
	for i := range bookings {
		switch bookings[i].Status {
		case model.StatusPending, model.StatusConfirmed:
			counts[model.FormatDate(bookings[i].Date)]++
		}
	}
	return counts, nil
}

func (db *DB) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %s: %w", id, err)
	}
	return b, nil
}

// InsertBooking stores b. A unique index violation is reported as
// model.ErrSlotConflict.
func (db *DB) InsertBooking(ctx context.Context, b *model.Booking) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.BusinessID, nullString(b.ProfessionalID), b.ServiceID,
		model.FormatDate(b.Date), b.Time.StorageString(),
		b.ClientName, b.ClientPhone, nullString(b.ClientEmail),
		string(b.Status), b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrSlotConflict
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// UpdateBookingStatus moves a booking from one status to another. The stored
// value is compared after normalization so legacy free-form statuses still
// match.
func (db *DB) UpdateBookingStatus(ctx context.Context, id string, from, to model.Status) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT status FROM bookings WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get booking status: %w", err)
	}
	if readStatus(raw) != from {
		return model.ErrConcurrentModification
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE bookings SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), time.Now(), id, raw,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrSlotConflict
		}
		return fmt.Errorf("update booking status: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return model.ErrConcurrentModification
	}
	return tx.Commit()
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...any) ([]model.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
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

func scanBooking(s scanner) (*model.Booking, error) {
	var (
		b                    model.Booking
		professional, email  sql.NullString
		date, at, status     string
		createdAt, updatedAt sql.NullTime
	)
	err := s.Scan(
		&b.ID, &b.BusinessID, &professional, &b.ServiceID, &date, &at,
		&b.ClientName, &b.ClientPhone, &email, &status, &createdAt, &updatedAt,
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
	b.ProfessionalID = professional.String
	b.ClientEmail = email.String
	b.Status = readStatus(status)
	b.CreatedAt = createdAt.Time
	b.UpdatedAt = updatedAt.Time
	return &b, nil
}

// readStatus normalizes a stored status. Unrecognized values are treated as
// pending so the slot stays held until a manager looks at it.
func readStatus(raw string) model.Status {
	st, err := model.NormalizeStatus(raw)
	if err != nil {
		return model.StatusPending
	}
	return st
}
