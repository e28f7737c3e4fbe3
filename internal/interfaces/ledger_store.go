package interfaces

import (
	"context"
	"errors"

	"github.com/sheikh-saqib/voucher-ledger/internal/models"
)

var (
	// ErrNotFound is returned when a voucher does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a write lost a race for a voucher number or
	// idempotency key. The write left no trace and may be retried.
	ErrConflict = errors.New("write conflict")
)

// LedgerStore persists vouchers and answers aggregate queries over their entries.
// Posted vouchers are append-only.
type LedgerStore interface {
	// CreateVoucher assigns the next sequence for (type, financial year) and
	// writes the header and entries as one atomic unit. The returned voucher
	// carries the assigned sequence; Number is left for the caller to format.
	CreateVoucher(ctx context.Context, v models.Voucher) (models.Voucher, error)
	GetVoucher(ctx context.Context, id string) (models.Voucher, error)
	FindByIdempotencyKey(ctx context.Context, key string) (models.Voucher, error)
	// ListVouchers returns matching vouchers with entries, ordered by date then sequence.
	ListVouchers(ctx context.Context, q models.VoucherQuery) ([]models.Voucher, error)
	// LedgerMovement sums entries against a ledger with from <= date <= to.
	// A zero bound is open.
	LedgerMovement(ctx context.Context, ledgerID string, from, to models.Date) (models.Movement, error)
	// LedgerMovements sums the entries of every ledger in one consistent read,
	// so a voucher committed meanwhile is counted for all of its ledgers or for
	// none. Entries dated before from go to Prior, entries in [from, to] to
	// Period, and later entries are skipped. Ledgers without entries are absent.
	LedgerMovements(ctx context.Context, from, to models.Date) (map[string]models.PeriodMovement, error)
	HasEntries(ctx context.Context, ledgerID string) (bool, error)
}
