// Package sqlite is the embedded store backend. It keeps the same tables as
// the BigQuery backend in a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/finance-ledger/internal/store"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite connection and implements store.Store.
type DB struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Store = (*DB)(nil)

// Schema returns the statements that create the tables. Each string is a
// single statement and all of them are safe to re-run.
func Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			type       TEXT NOT NULL,
			balance    TEXT NOT NULL DEFAULT '0',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id             TEXT PRIMARY KEY,
			description    TEXT NOT NULL DEFAULT '',
			amount         TEXT NOT NULL,
			type           TEXT NOT NULL,
			status         TEXT NOT NULL,
			kind           TEXT NOT NULL DEFAULT 'regular',
			account_id     TEXT,
			credit_card_id TEXT,
			bill_id        TEXT,
			date           TEXT NOT NULL,
			created_at     TEXT NOT NULL,
			updated_at     TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_card ON transactions(credit_card_id, type)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_bill ON transactions(bill_id)`,

		`CREATE TABLE IF NOT EXISTS credit_cards (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			card_limit  TEXT NOT NULL,
			used_amount TEXT NOT NULL DEFAULT '0',
			due_day     INTEGER NOT NULL,
			closing_day INTEGER NOT NULL,
			status      TEXT NOT NULL,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS bills (
			id                    TEXT PRIMARY KEY,
			description           TEXT NOT NULL DEFAULT '',
			amount                TEXT NOT NULL,
			due_date              TEXT NOT NULL,
			status                TEXT NOT NULL,
			credit_card_id        TEXT,
			invoice_settlement_id TEXT,
			created_at            TEXT NOT NULL,
			updated_at            TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bills_card ON bills(credit_card_id, status)`,
	}
}

// Open opens (or creates) the database at path and ensures the schema exists.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}
	// One writer at a time; SQLite serializes anyway and this avoids SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	for _, stmt := range Schema() {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("Open: create schema: %w", err)
		}
	}

	return &DB{db: conn, now: time.Now}, nil
}

// Close implements store.Store.
func (db *DB) Close() error {
	return db.db.Close()
}

// ─── Column helpers ─────────────────────────────────────────────────────────

// timeLayout has fixed-width fractions so stored values sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}

// nullable stores empty ids as NULL.
func nullable(id string) sql.NullString {
	return sql.NullString{String: id, Valid: id != ""}
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// execOne runs a single-row write and reports whether a row matched.
func (db *DB) execOne(ctx context.Context, query string, args ...interface{}) (bool, error) {
	res, err := db.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
