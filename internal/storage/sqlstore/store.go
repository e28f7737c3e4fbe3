package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	interfaces "github.com/sheikh-saqib/voucher-ledger/internal/interfaces"
	"github.com/sheikh-saqib/voucher-ledger/internal/models"
)

// Store is a LedgerStore over a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Migrate creates the schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.Schema()); err != nil {
		return fmt.Errorf("failed to apply %s schema: %w", s.dialect.Name(), err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) q(query string) string {
	return s.dialect.Rebind(query)
}

// inTx runs fn in a transaction, committing on success and rolling back on
// error or panic.
func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const (
	nextSequenceSQL = `INSERT INTO voucher_counters (voucher_type, financial_year, last_number)
	VALUES (?, ?, 1)
	ON CONFLICT (voucher_type, financial_year)
	DO UPDATE SET last_number = voucher_counters.last_number + 1
	RETURNING last_number`

	insertVoucherSQL = `INSERT INTO vouchers (id, voucher_type, financial_year, sequence, voucher_date,
	reference_number, reference_date, party_ledger_id, narration, idempotency_key, created_at, created_by)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	insertEntrySQL = `INSERT INTO journal_entries (id, voucher_id, line_no, ledger_id, side, amount_minor,
	cost_center_id, narration, voucher_date)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	voucherColumns = `v.id, v.voucher_type, v.financial_year, v.sequence, v.voucher_date, v.reference_number,
	v.reference_date, v.party_ledger_id, v.narration, v.idempotency_key, v.created_at, v.created_by`

	entryColumns = `e.id, e.voucher_id, e.line_no, e.ledger_id, e.side, e.amount_minor, e.cost_center_id, e.narration`
)

// CreateVoucher bumps the (type, financial year) counter row and inserts the
// header and entries in one transaction. The counter upsert takes a row lock,
// so concurrent posts to the same series queue behind each other instead of
// reading the same last number.
func (s *Store) CreateVoucher(ctx context.Context, v models.Voucher) (models.Voucher, error) {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var seq int64
		if err := tx.QueryRowContext(ctx, s.q(nextSequenceSQL), v.TypeCode, v.FinancialYear).Scan(&seq); err != nil {
			return fmt.Errorf("failed to assign voucher number: %w", err)
		}
		v.Sequence = seq

		_, err := tx.ExecContext(ctx, s.q(insertVoucherSQL),
			v.ID, v.TypeCode, v.FinancialYear, v.Sequence, dateArg(v.Date),
			v.ReferenceNumber, dateArg(v.ReferenceDate), v.PartyLedgerID, v.Narration,
			nullString(v.IdempotencyKey), v.CreatedAt.UTC(), v.CreatedBy)
		if err != nil {
			return fmt.Errorf("failed to insert voucher: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, s.q(insertEntrySQL))
		if err != nil {
			return fmt.Errorf("failed to prepare entry insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range v.Entries {
			_, err := stmt.ExecContext(ctx, e.ID, v.ID, e.Line, e.LedgerID, string(e.Side),
				models.ToMinor(e.Amount), e.CostCenterID, e.Narration, dateArg(v.Date))
			if err != nil {
				return fmt.Errorf("failed to insert entry %d: %w", e.Line, err)
			}
		}
		return nil
	})
	if err != nil {
		if s.dialect.IsConflict(err) {
			return models.Voucher{}, fmt.Errorf("%w: %v", interfaces.ErrConflict, err)
		}
		return models.Voucher{}, err
	}
	return v, nil
}

func (s *Store) GetVoucher(ctx context.Context, id string) (models.Voucher, error) {
	return s.getOne(ctx, "v.id = ?", id)
}

func (s *Store) FindByIdempotencyKey(ctx context.Context, key string) (models.Voucher, error) {
	if key == "" {
		return models.Voucher{}, interfaces.ErrNotFound
	}
	return s.getOne(ctx, "v.idempotency_key = ?", key)
}

func (s *Store) getOne(ctx context.Context, cond string, arg any) (models.Voucher, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+voucherColumns+` FROM vouchers v WHERE `+cond), arg)
	v, err := scanVoucher(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Voucher{}, interfaces.ErrNotFound
	}
	if err != nil {
		return models.Voucher{}, fmt.Errorf("failed to load voucher: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT `+entryColumns+` FROM journal_entries e WHERE e.voucher_id = ? ORDER BY e.line_no`), v.ID)
	if err != nil {
		return models.Voucher{}, fmt.Errorf("failed to load entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return models.Voucher{}, err
		}
		v.Entries = append(v.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return models.Voucher{}, err
	}
	return v, nil
}

// voucherFilter renders q as a WHERE clause over the vouchers table aliased v.
func voucherFilter(q models.VoucherQuery) (string, []any) {
	conds := []string{"1 = 1"}
	var args []any
	if !q.From.IsZero() {
		conds = append(conds, "v.voucher_date >= ?")
		args = append(args, q.From.String())
	}
	if !q.To.IsZero() {
		conds = append(conds, "v.voucher_date <= ?")
		args = append(args, q.To.String())
	}
	if q.TypeCode != "" {
		conds = append(conds, "v.voucher_type = ?")
		args = append(args, q.TypeCode)
	}
	if q.FinancialYear != "" {
		conds = append(conds, "v.financial_year = ?")
		args = append(args, q.FinancialYear)
	}
	return strings.Join(conds, " AND "), args
}

func (s *Store) ListVouchers(ctx context.Context, q models.VoucherQuery) ([]models.Voucher, error) {
	where, args := voucherFilter(q)

	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT `+voucherColumns+` FROM vouchers v WHERE `+where+
			` ORDER BY v.voucher_date, v.sequence, v.voucher_type`), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list vouchers: %w", err)
	}
	defer rows.Close()

	var vouchers []models.Voucher
	index := make(map[string]int)
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		index[v.ID] = len(vouchers)
		vouchers = append(vouchers, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(vouchers) == 0 {
		return nil, nil
	}

	erows, err := s.db.QueryContext(ctx,
		s.q(`SELECT `+entryColumns+` FROM journal_entries e JOIN vouchers v ON v.id = e.voucher_id WHERE `+where+
			` ORDER BY e.voucher_id, e.line_no`), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer erows.Close()

	for erows.Next() {
		e, err := scanEntry(erows)
		if err != nil {
			return nil, err
		}
		// a voucher committed between the two queries is skipped
		if i, ok := index[e.VoucherID]; ok {
			vouchers[i].Entries = append(vouchers[i].Entries, e)
		}
	}
	return vouchers, erows.Err()
}

func (s *Store) LedgerMovement(ctx context.Context, ledgerID string, from, to models.Date) (models.Movement, error) {
	query := `SELECT
		CAST(COALESCE(SUM(CASE WHEN side = 'Dr' THEN amount_minor ELSE 0 END), 0) AS BIGINT),
		CAST(COALESCE(SUM(CASE WHEN side = 'Cr' THEN amount_minor ELSE 0 END), 0) AS BIGINT)
	FROM journal_entries WHERE ledger_id = ?`
	args := []any{ledgerID}
	if !from.IsZero() {
		query += ` AND voucher_date >= ?`
		args = append(args, from.String())
	}
	if !to.IsZero() {
		query += ` AND voucher_date <= ?`
		args = append(args, to.String())
	}

	var debit, credit int64
	if err := s.db.QueryRowContext(ctx, s.q(query), args...).Scan(&debit, &credit); err != nil {
		return models.Movement{}, fmt.Errorf("failed to sum entries for ledger %s: %w", ledgerID, err)
	}
	return models.Movement{Debit: models.FromMinor(debit), Credit: models.FromMinor(credit)}, nil
}

// LedgerMovements aggregates in a single statement, which reads from one
// snapshot on both postgres and sqlite.
func (s *Store) LedgerMovements(ctx context.Context, from, to models.Date) (map[string]models.PeriodMovement, error) {
	var args []any
	before := "0"
	if !from.IsZero() {
		before = "CASE WHEN voucher_date < ? THEN 1 ELSE 0 END"
		args = append(args, from.String())
	}
	where := ""
	if !to.IsZero() {
		where = " WHERE voucher_date <= ?"
		args = append(args, to.String())
	}
	query := fmt.Sprintf(`SELECT ledger_id, side, %s AS before_period,
		CAST(SUM(amount_minor) AS BIGINT)
	FROM journal_entries%s
	GROUP BY ledger_id, side, before_period`, before, where)

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to sum ledger entries: %w", err)
	}
	defer rows.Close()

	result := make(map[string]models.PeriodMovement)
	for rows.Next() {
		var (
			ledgerID, side string
			beforePeriod   int
			minor          int64
		)
		if err := rows.Scan(&ledgerID, &side, &beforePeriod, &minor); err != nil {
			return nil, fmt.Errorf("failed to scan ledger sum: %w", err)
		}
		pm := result[ledgerID]
		amount := models.FromMinor(minor)
		if beforePeriod == 1 {
			pm.Prior = pm.Prior.Post(models.Side(strings.TrimSpace(side)), amount)
		} else {
			pm.Period = pm.Period.Post(models.Side(strings.TrimSpace(side)), amount)
		}
		result[ledgerID] = pm
	}
	return result, rows.Err()
}

func (s *Store) HasEntries(ctx context.Context, ledgerID string) (bool, error) {
	const query = `SELECT 1 FROM journal_entries WHERE ledger_id = ? LIMIT 1`

	var exists int
	err := s.db.QueryRowContext(ctx, s.q(query), ledgerID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVoucher(row scanner) (models.Voucher, error) {
	var (
		v              models.Voucher
		date, refDate  dateValue
		idempotencyKey sql.NullString
		createdAt      timeValue
	)
	err := row.Scan(&v.ID, &v.TypeCode, &v.FinancialYear, &v.Sequence, &date, &v.ReferenceNumber,
		&refDate, &v.PartyLedgerID, &v.Narration, &idempotencyKey, &createdAt, &v.CreatedBy)
	if err != nil {
		return models.Voucher{}, err
	}
	v.Date = date.Date
	v.ReferenceDate = refDate.Date
	v.IdempotencyKey = idempotencyKey.String
	v.CreatedAt = createdAt.Time.UTC()
	return v, nil
}

func scanEntry(row scanner) (models.JournalEntry, error) {
	var (
		e     models.JournalEntry
		side  string
		minor int64
	)
	if err := row.Scan(&e.ID, &e.VoucherID, &e.Line, &e.LedgerID, &side, &minor, &e.CostCenterID, &e.Narration); err != nil {
		return models.JournalEntry{}, fmt.Errorf("failed to scan entry: %w", err)
	}
	e.Side = models.Side(strings.TrimSpace(side))
	e.Amount = models.FromMinor(minor)
	return e, nil
}

var _ interfaces.LedgerStore = (*Store)(nil)
