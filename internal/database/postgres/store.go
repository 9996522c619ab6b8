// Package postgres is the PostgreSQL record store for multi-instance
// deployments.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"agendafacil/internal/model"
)

//go:embed schema.sql
var schema string

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Store struct {
	db      querier
	holding []model.Status
}

// Open connects to databaseURL and verifies the connection.
func Open(ctx context.Context, databaseURL string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// NewStore wraps a pool; holding lists the statuses covered by the slot
// unique indexes.
func NewStore(pool *pgxpool.Pool, holding []model.Status) *Store {
	if pool == nil {
		panic("postgres: pgx pool required")
	}
	return &Store{db: pool, holding: holding}
}

func newStoreWithQuerier(q querier, holding []model.Status) *Store {
	return &Store{db: q, holding: holding}
}

// Migrate applies the schema, rewrites legacy statuses to their canonical
// value and rebuilds the slot indexes over the holding statuses.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	for _, q := range []string{
		`DROP INDEX IF EXISTS ux_bookings_professional_slot`,
		`DROP INDEX IF EXISTS ux_bookings_service_slot`,
	} {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return fmt.Errorf("drop slot index: %w", err)
		}
	}
	if err := s.canonicalizeStatuses(ctx); err != nil {
		return err
	}
	in := holdingList(s.holding)
	if err := s.checkHeldSlots(ctx, in); err != nil {
		return err
	}
	for _, q := range []string{
		`CREATE UNIQUE INDEX ux_bookings_professional_slot ON bookings(business_id, professional_id, date, time)
			WHERE professional_id IS NOT NULL AND status IN (` + in + `)`,
		`CREATE UNIQUE INDEX ux_bookings_service_slot ON bookings(business_id, service_id, date, time)
			WHERE professional_id IS NULL AND status IN (` + in + `)`,
	} {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return fmt.Errorf("rebuild slot index: %w", err)
		}
	}
	return nil
}

func (s *Store) canonicalizeStatuses(ctx context.Context) error {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT status FROM bookings`)
	if err != nil {
		return fmt.Errorf("list booking statuses: %w", err)
	}
	var raws []string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			rows.Close()
			return fmt.Errorf("scan booking status: %w", err)
		}
		raws = append(raws, raw)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, raw := range raws {
		st := readStatus(raw)
		if string(st) == raw {
			continue
		}
		if _, err := s.db.Exec(ctx, `UPDATE bookings SET status = $1 WHERE status = $2`, string(st), raw); err != nil {
			return fmt.Errorf("normalize status %q: %w", raw, err)
		}
	}
	return nil
}

func (s *Store) checkHeldSlots(ctx context.Context, in string) error {
	rows, err := s.db.Query(ctx, `
		SELECT business_id, COALESCE(professional_id, service_id),
			to_char(date, 'YYYY-MM-DD'), to_char(time, 'HH24:MI:SS'), COUNT(*)
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
		var n int64
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

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
