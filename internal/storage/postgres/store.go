package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sheikh-saqib/voucher-ledger/internal/storage/sqlstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS voucher_counters (
	voucher_type   TEXT   NOT NULL,
	financial_year TEXT   NOT NULL,
	last_number    BIGINT NOT NULL,
	PRIMARY KEY (voucher_type, financial_year)
);

CREATE TABLE IF NOT EXISTS vouchers (
	id               TEXT PRIMARY KEY,
	voucher_type     TEXT        NOT NULL,
	financial_year   TEXT        NOT NULL,
	sequence         BIGINT      NOT NULL,
	voucher_date     DATE        NOT NULL,
	reference_number TEXT        NOT NULL DEFAULT '',
	reference_date   DATE,
	party_ledger_id  TEXT        NOT NULL DEFAULT '',
	narration        TEXT        NOT NULL DEFAULT '',
	idempotency_key  TEXT UNIQUE,
	created_at       TIMESTAMPTZ NOT NULL,
	created_by       TEXT        NOT NULL DEFAULT '',
	UNIQUE (voucher_type, financial_year, sequence)
);

CREATE INDEX IF NOT EXISTS vouchers_date_idx ON vouchers (voucher_date, sequence);

CREATE TABLE IF NOT EXISTS journal_entries (
	id             TEXT PRIMARY KEY,
	voucher_id     TEXT    NOT NULL REFERENCES vouchers (id),
	line_no        INTEGER NOT NULL,
	ledger_id      TEXT    NOT NULL,
	side           CHAR(2) NOT NULL CHECK (side IN ('Dr', 'Cr')),
	amount_minor   BIGINT  NOT NULL CHECK (amount_minor > 0),
	cost_center_id TEXT    NOT NULL DEFAULT '',
	narration      TEXT    NOT NULL DEFAULT '',
	voucher_date   DATE    NOT NULL,
	UNIQUE (voucher_id, line_no)
);

CREATE INDEX IF NOT EXISTS journal_entries_ledger_idx ON journal_entries (ledger_id, voucher_date);
`

// SQLSTATEs that mean another transaction won the race.
const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

type dialect struct{}

func (dialect) Name() string               { return "postgres" }
func (dialect) Schema() string             { return schema }
func (dialect) Rebind(query string) string { return sqlstore.DollarRebind(query) }

func (dialect) IsConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case uniqueViolation, serializationFailure, deadlockDetected:
		return true
	}
	return false
}

// Dialect returns the Postgres flavour of sqlstore.Dialect.
func Dialect() sqlstore.Dialect {
	return dialect{}
}

// Open connects to dsn and checks the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}
	return db, nil
}

func NewPostgresLedgerStore(db *sql.DB) *sqlstore.Store {
	return sqlstore.New(db, dialect{})
}
