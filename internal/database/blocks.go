package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agendafacil/internal/model"
)

const blockColumns = `id, business_id, date, start_time, end_time, description, created_at`

func (db *DB) GetBlocks(ctx context.Context, businessID string, date time.Time) ([]model.Block, error) {
	return db.ListBlocks(ctx, businessID, date, date)
}

// ListBlocks returns blocks with from <= date <= to ordered by date and start.
func (db *DB) ListBlocks(ctx context.Context, businessID string, from, to time.Time) ([]model.Block, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+blockColumns+`
		FROM blocks
		WHERE business_id = ? AND date >= ? AND date <= ?
		ORDER BY date, start_time`,
		businessID, model.FormatDate(from), model.FormatDate(to),
	)
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

func (db *DB) GetBlock(ctx context.Context, businessID, id string) (*model.Block, error) {
	row := db.QueryRowContext(ctx, `SELECT `+blockColumns+` FROM blocks WHERE business_id = ? AND id = ?`, businessID, id)
	b, err := scanBlock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	return b, err
}

func (db *DB) CreateBlock(ctx context.Context, b *model.Block) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO blocks (id, business_id, date, start_time, end_time, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.BusinessID, model.FormatDate(b.Date), b.Start.StorageString(), b.End.StorageString(), nullString(b.Description), b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create block: %w", err)
	}
	return nil
}

// UpsertBlock creates or replaces a block by id. Config sync uses it for
// holidays so re-running the sync is idempotent.
func (db *DB) UpsertBlock(ctx context.Context, b *model.Block) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO blocks (id, business_id, date, start_time, end_time, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			description = excluded.description`,
		b.ID, b.BusinessID, model.FormatDate(b.Date), b.Start.StorageString(), b.End.StorageString(), nullString(b.Description), b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert block: %w", err)
	}
	return nil
}

func (db *DB) UpdateBlock(ctx context.Context, b *model.Block) error {
	res, err := db.ExecContext(ctx, `
		UPDATE blocks SET date = ?, start_time = ?, end_time = ?, description = ?
		WHERE business_id = ? AND id = ?`,
		model.FormatDate(b.Date), b.Start.StorageString(), b.End.StorageString(), nullString(b.Description), b.BusinessID, b.ID,
	)
	if err != nil {
		return fmt.Errorf("update block: %w", err)
	}
	return expectOne(res)
}

func (db *DB) DeleteBlock(ctx context.Context, businessID, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM blocks WHERE business_id = ? AND id = ?`, businessID, id)
	if err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	return expectOne(res)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBlock(s scanner) (*model.Block, error) {
	var (
		b                model.Block
		date, start, end string
		description      sql.NullString
		createdAt        sql.NullTime
	)
	if err := s.Scan(&b.ID, &b.BusinessID, &date, &start, &end, &description, &createdAt); err != nil {
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
	b.Description = description.String
	b.CreatedAt = createdAt.Time
	return &b, nil
}
