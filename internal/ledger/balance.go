package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/voucher-ledger/internal/models"
)

// Period bounds a balance query. Both ends are inclusive; a zero From means
// the start of history and a zero To means no upper bound.
type Period struct {
	From models.Date
	To   models.Date
}

// AsOf is the period from the start of history up to and including d.
func AsOf(d models.Date) Period {
	return Period{To: d}
}

// LedgerBalance is the derived position of one ledger over a period.
type LedgerBalance struct {
	LedgerID   string             `json:"ledger_id"`
	LedgerName string             `json:"ledger_name"`
	Group      string             `json:"account_group"`
	Nature     models.Nature      `json:"nature"`
	Opening    models.SidedAmount `json:"opening"`
	Debit      decimal.Decimal    `json:"total_debit"`
	Credit     decimal.Decimal    `json:"total_credit"`
	Closing    models.SidedAmount `json:"closing"`
}

// Signed returns the closing balance relative to the ledger's nature:
// positive when it sits on the normal side.
func (b LedgerBalance) Signed() decimal.Decimal {
	v := b.Closing.DebitPositive()
	if b.Nature.NormalSide() == models.Credit {
		return v.Neg()
	}
	return v
}

// ComputeBalance combines a ledger's recorded opening balance with the
// movement before the period (prior) and within it (period). It is pure.
func ComputeBalance(l models.Ledger, prior, period models.Movement) LedgerBalance {
	normal := l.Nature.NormalSide()
	opening := l.OpeningDebitPositive().Add(prior.Net())
	closing := opening.Add(period.Net())

	return LedgerBalance{
		LedgerID:   l.ID,
		LedgerName: l.Name,
		Group:      l.Group,
		Nature:     l.Nature,
		Opening:    models.FromDebitPositive(opening, normal),
		Debit:      period.Debit,
		Credit:     period.Credit,
		Closing:    models.FromDebitPositive(closing, normal),
	}
}

// Balance computes the opening, period movement and closing balance of a
// ledger by aggregating posted entries. It reads only committed data and is
// safe to call concurrently with posting.
func (l *Ledger) Balance(ctx context.Context, ledgerID string, p Period) (LedgerBalance, error) {
	ldg, ok := l.catalog.Ledger(ledgerID)
	if !ok {
		return LedgerBalance{}, fmt.Errorf("%w: %q", ErrUnknownLedger, ledgerID)
	}
	if !p.From.IsZero() && !p.To.IsZero() && p.To.Before(p.From) {
		return LedgerBalance{}, fmt.Errorf("%w: %s is before %s", ErrInvalidPeriod, p.To, p.From)
	}

	var prior models.Movement
	if !p.From.IsZero() {
		mv, err := l.store.LedgerMovement(ctx, ledgerID, models.Date{}, p.From.AddDays(-1))
		if err != nil {
			return LedgerBalance{}, fmt.Errorf("failed to sum entries before %s for %s: %w", p.From, ledgerID, err)
		}
		prior = mv
	}

	period, err := l.store.LedgerMovement(ctx, ledgerID, p.From, p.To)
	if err != nil {
		return LedgerBalance{}, fmt.Errorf("failed to sum entries for %s: %w", ledgerID, err)
	}

	return ComputeBalance(ldg, prior, period), nil
}

// Balances computes the balance of every catalog ledger over p from a single
// consistent read of the journal, in catalog order. A voucher committed while
// it runs is reflected in all of its ledgers or in none.
func (l *Ledger) Balances(ctx context.Context, p Period) ([]LedgerBalance, error) {
	if !p.From.IsZero() && !p.To.IsZero() && p.To.Before(p.From) {
		return nil, fmt.Errorf("%w: %s is before %s", ErrInvalidPeriod, p.To, p.From)
	}

	movements, err := l.store.LedgerMovements(ctx, p.From, p.To)
	if err != nil {
		return nil, fmt.Errorf("failed to sum ledger entries: %w", err)
	}

	ledgers := l.catalog.Ledgers()
	balances := make([]LedgerBalance, len(ledgers))
	for i, ldg := range ledgers {
		mv := movements[ldg.ID]
		balances[i] = ComputeBalance(ldg, mv.Prior, mv.Period)
	}
	return balances, nil
}
