// Package sqlite backs the ledger with a single SQLite file, for local and
// single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"
	"github.com/sheikh-saqib/voucher-ledger/internal/storage/sqlstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS voucher_counters (
	voucher_type   TEXT    NOT NULL,
	financial_year TEXT    NOT NULL,
	last_number    INTEGER NOT NULL,
	PRIMARY KEY (voucher_type, financial_year)
);

CREATE TABLE IF NOT EXISTS vouchers (
	id               TEXT PRIMARY KEY,
	voucher_type     TEXT      NOT NULL,
	financial_year   TEXT      NOT NULL,
	sequence         INTEGER   NOT NULL,
	voucher_date     TEXT      NOT NULL,
	reference_number TEXT      NOT NULL DEFAULT '',
	reference_date   TEXT,
	party_ledger_id  TEXT      NOT NULL DEFAULT '',
	narration        TEXT      NOT NULL DEFAULT '',
	idempotency_key  TEXT UNIQUE,
	created_at       TIMESTAMP NOT NULL,
	created_by       TEXT      NOT NULL DEFAULT '',
	UNIQUE (voucher_type, financial_year, sequence)
);

CREATE INDEX IF NOT EXISTS vouchers_date_idx ON vouchers (voucher_date, sequence);

CREATE TABLE IF NOT EXISTS journal_entries (
	id             TEXT PRIMARY KEY,
	voucher_id     TEXT    NOT NULL REFERENCES vouchers (id),
	line_no        INTEGER NOT NULL,
	ledger_id      TEXT    NOT NULL,
	side           TEXT    NOT NULL CHECK (side IN ('Dr', 'Cr')),
	amount_minor   INTEGER NOT NULL CHECK (amount_minor > 0),
	cost_center_id TEXT    NOT NULL DEFAULT '',
	narration      TEXT    NOT NULL DEFAULT '',
	voucher_date   TEXT    NOT NULL,
	UNIQUE (voucher_id, line_no)
);

CREATE INDEX IF NOT EXISTS journal_entries_ledger_idx ON journal_entries (ledger_id, voucher_date);
`

type dialect struct{}

func (dialect) Name() string               { return "sqlite" }
func (dialect) Schema() string             { return schema }
func (dialect) Rebind(query string) string { return sqlstore.QuestionRebind(query) }

// IsConflict treats a busy database the same as a lost uniqueness race: both
// clear up on retry.
func (dialect) IsConflict(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return true
	}
	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return true
	}
	return false
}

func Dialect() sqlstore.Dialect {
	return dialect{}
}

// Open opens (creating if needed) the database file at path. Writers take the
// lock at BEGIN so two posts never deadlock upgrading a read lock.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// New opens path and applies the schema.
func New(path string) (*sqlstore.Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	store := sqlstore.New(db, dialect{})
	if err := store.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
