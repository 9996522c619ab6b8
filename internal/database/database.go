// Package database is the SQLite record store. Slot uniqueness is enforced by
// partial unique indexes over the statuses that hold a slot.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"agendafacil/internal/model"
)

// DB wraps sql.DB for the booking store.
type DB struct {
	*sql.DB
	holding []model.Status
}

// NewDB opens the database at path and runs migrations. holding lists the
// statuses covered by the slot unique indexes.
func NewDB(path string, holding []model.Status) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	d := New(db, holding)
	if err := d.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// New wraps an already opened connection without migrating it.
func New(db *sql.DB, holding []model.Status) *DB {
	return &DB{DB: db, holding: holding}
}

// Migrate creates tables and rebuilds the slot indexes for the configured
// holding statuses.
func (db *DB) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS businesses (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT,
			kind TEXT,
			phone TEXT,
			address TEXT,
			working_hours TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS services (
			id TEXT NOT NULL,
			business_id TEXT NOT NULL,
			name TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL DEFAULT 0,
			price REAL NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			PRIMARY KEY (business_id, id),
			FOREIGN KEY (business_id) REFERENCES businesses(id)
		)`,

		`CREATE TABLE IF NOT EXISTS professionals (
			id TEXT NOT NULL,
			business_id TEXT NOT NULL,
			name TEXT NOT NULL,
			specialty TEXT,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			PRIMARY KEY (business_id, id),
			FOREIGN KEY (business_id) REFERENCES businesses(id)
		)`,

		`CREATE TABLE IF NOT EXISTS blocks (
			id TEXT PRIMARY KEY,
			business_id TEXT NOT NULL,
			date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			description TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (business_id) REFERENCES businesses(id)
		)`,

		`CREATE TABLE IF NOT EXISTS bookings (
			id TEXT PRIMARY KEY,
			business_id TEXT NOT NULL,
			professional_id TEXT,
			service_id TEXT NOT NULL,
			date TEXT NOT NULL,
			time TEXT NOT NULL,
			client_name TEXT NOT NULL,
			client_phone TEXT NOT NULL,
			client_email TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (business_id) REFERENCES businesses(id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_blocks_business_date ON blocks(business_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_business_date ON bookings(business_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
	}
	for _, q := range queries {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return db.rebuildSlotIndexes(ctx)
}

// rebuildSlotIndexes drops the unique slot indexes, rewrites legacy statuses
// to their canonical value and recreates the indexes over the configured
// holding statuses, so a change of holding statuses takes effect on restart.
func (db *DB) rebuildSlotIndexes(ctx context.Context) error {
	for _, q := range []string{
		`DROP INDEX IF EXISTS ux_bookings_professional_slot`,
		`DROP INDEX IF EXISTS ux_bookings_service_slot`,
	} {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	if err := db.canonicalizeStatuses(ctx); err != nil {
		return err
	}
	in := holdingList(db.holding)
	if err := db.checkHeldSlots(ctx, in); err != nil {
		return err
	}
	for _, q := range []string{
		`CREATE UNIQUE INDEX ux_bookings_professional_slot
			ON bookings(business_id, professional_id, date, time)
			WHERE professional_id IS NOT NULL AND status IN (` + in + `)`,
		`CREATE UNIQUE INDEX ux_bookings_service_slot
			ON bookings(business_id, service_id, date, time)
			WHERE professional_id IS NULL AND status IN (` + in + `)`,
	} {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

// canonicalizeStatuses rewrites free-form statuses of older rows so the
// partial indexes see the same status the store reads.
func (db *DB) canonicalizeStatuses(ctx context.Context) error {
	rows, err := db.QueryContext(ctx, `SELECT DISTINCT status FROM bookings`)
	if err != nil {
		return fmt.Errorf("list booking statuses: %w", err)
	}
	var raws []string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan booking status: %w", err)
		}
		raws = append(raws, raw)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, raw := range raws {
		st := readStatus(raw)
		if string(st) == raw {
			continue
		}
		if _, err := db.ExecContext(ctx, `UPDATE bookings SET status = ? WHERE status = ?`, string(st), raw); err != nil {
			return fmt.Errorf("normalize status %q: %w", raw, err)
		}
	}
	return nil
}

// checkHeldSlots reports bookings that would break the unique slot indexes,
// which happens when pending bookings start holding their slot.
func (db *DB) checkHeldSlots(ctx context.Context, in string) error {
	rows, err := db.QueryContext(ctx, `
		SELECT business_id, COALESCE(professional_id, service_id), date, time, COUNT(*)
		FROM bookings
		WHERE status IN (`+in+`)
		GROUP BY business_id, professional_id IS NULL, COALESCE(professional_id, service_id), date, time
		HAVING COUNT(*) > 1
		ORDER BY business_id, date, time`)
	if err != nil {
		return fmt.Errorf("check held slots: %w", err)
	}
	defer rows.Close()

	var dups []string
	for rows.Next() {
		var businessID, scope, date, at string
		var n int
		if err := rows.Scan(&businessID, &scope, &date, &at, &n); err != nil {
			return fmt.Errorf("scan held slot: %w", err)
		}
		dups = append(dups, fmt.Sprintf("%s/%s %s %s (%d bookings)", businessID, scope, date, at, n))
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(dups) > 0 {
		return &model.DuplicateSlotsError{Slots: dups}
	}
	return nil
}

func holdingList(holding []model.Status) string {
	quoted := make([]string, 0, len(holding))
	for _, st := range holding {
		quoted = append(quoted, "'"+string(st)+"'")
	}
	if len(quoted) == 0 {
		quoted = append(quoted, "'"+string(model.StatusConfirmed)+"'")
	}
	return strings.Join(quoted, ", ")
}

func trimSQL(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
