package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/voucher-ledger/internal/models"
	"github.com/sheikh-saqib/voucher-ledger/internal/storage/memory"
)

func TestComputeBalance(t *testing.T) {
	cash := models.Ledger{
		ID: "cash", Name: "Cash", Nature: models.Asset,
		Opening: models.SidedAmount{Side: models.Debit, Amount: dec("5000")},
	}
	sales := models.Ledger{ID: "sales", Name: "Sales", Nature: models.Income}

	tests := []struct {
		name        string
		ledger      models.Ledger
		prior       models.Movement
		period      models.Movement
		opening     string
		openingSide models.Side
		closing     string
		closingSide models.Side
	}{
		{
			name:        "asset receives cash",
			ledger:      cash,
			period:      models.Movement{Debit: dec("1000")},
			opening:     "5000.00",
			openingSide: models.Debit,
			closing:     "6000.00",
			closingSide: models.Debit,
		},
		{
			name:        "prior movement rolls into opening",
			ledger:      cash,
			prior:       models.Movement{Credit: dec("1500")},
			period:      models.Movement{Debit: dec("100"), Credit: dec("50")},
			opening:     "3500.00",
			openingSide: models.Debit,
			closing:     "3550.00",
			closingSide: models.Debit,
		},
		{
			name:        "asset overdrawn flips side",
			ledger:      cash,
			period:      models.Movement{Credit: dec("5200")},
			opening:     "5000.00",
			openingSide: models.Debit,
			closing:     "200.00",
			closingSide: models.Credit,
		},
		{
			name:        "income accrues on credit",
			ledger:      sales,
			period:      models.Movement{Credit: dec("1000")},
			opening:     "0.00",
			openingSide: models.Credit,
			closing:     "1000.00",
			closingSide: models.Credit,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := ComputeBalance(tc.ledger, tc.prior, tc.period)
			assert.Equal(t, tc.opening, b.Opening.Amount.StringFixed(2))
			assert.Equal(t, tc.openingSide, b.Opening.Side)
			assert.Equal(t, tc.closing, b.Closing.Amount.StringFixed(2))
			assert.Equal(t, tc.closingSide, b.Closing.Side)

			again := ComputeBalance(tc.ledger, tc.prior, tc.period)
			assert.True(t, b.Closing.Amount.Equal(again.Closing.Amount))
		})
	}
}

func TestBalanceScenario(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, memory.NewMemoryLedgerStore(), nil)

	_, err := l.PostVoucher(ctx, request("RCT", "2025-04-10", dr("cash", "1000"), cr("sales", "1000")))
	require.NoError(t, err)
	_, err = l.PostVoucher(ctx, request("PMT", "2025-04-20", dr("feed", "300"), cr("cash", "300")))
	require.NoError(t, err)

	asOf := models.MustDate("2025-04-10")
	cash, err := l.Balance(ctx, "cash", AsOf(asOf))
	require.NoError(t, err)
	assert.Equal(t, "5000.00", cash.Opening.Amount.StringFixed(2))
	assert.Equal(t, "6000.00", cash.Closing.Amount.StringFixed(2))
	assert.Equal(t, models.Debit, cash.Closing.Side)
	assert.Equal(t, "6000.00", cash.Signed().StringFixed(2))

	sales, err := l.Balance(ctx, "sales", AsOf(asOf))
	require.NoError(t, err)
	assert.Equal(t, "1000.00", sales.Closing.Amount.StringFixed(2))
	assert.Equal(t, models.Credit, sales.Closing.Side)
	assert.Equal(t, "1000.00", sales.Signed().StringFixed(2))

	// the April 20 payment lands in the period, the receipt in the opening
	p := Period{From: models.MustDate("2025-04-11"), To: models.MustDate("2025-04-30")}
	cash, err = l.Balance(ctx, "cash", p)
	require.NoError(t, err)
	assert.Equal(t, "6000.00", cash.Opening.Amount.StringFixed(2))
	assert.Equal(t, "300.00", cash.Credit.StringFixed(2))
	assert.Equal(t, "5700.00", cash.Closing.Amount.StringFixed(2))

	// balance before any entry is the recorded opening
	early, err := l.Balance(ctx, "cash", AsOf(models.MustDate("2025-04-01")))
	require.NoError(t, err)
	assert.Equal(t, "5000.00", early.Closing.Amount.StringFixed(2))
}

func TestBalanceErrors(t *testing.T) {
	l := newTestLedger(t, memory.NewMemoryLedgerStore(), nil)

	_, err := l.Balance(context.Background(), "goats", Period{})
	assert.ErrorIs(t, err, ErrUnknownLedger)

	_, err = l.Balance(context.Background(), "cash", Period{
		From: models.MustDate("2025-05-01"),
		To:   models.MustDate("2025-04-01"),
	})
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestBalancesMatchPerLedgerBalance(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, memory.NewMemoryLedgerStore(), nil)

	_, err := l.PostVoucher(ctx, request("RCT", "2025-04-10", dr("cash", "1000"), cr("sales", "1000")))
	require.NoError(t, err)
	_, err = l.PostVoucher(ctx, request("PMT", "2025-04-20", dr("feed", "300"), cr("cash", "300")))
	require.NoError(t, err)
	_, err = l.PostVoucher(ctx, request("PMT", "2025-05-02", dr("feed", "50"), cr("cash", "50")))
	require.NoError(t, err)

	p := Period{From: models.MustDate("2025-04-11"), To: models.MustDate("2025-04-30")}
	all, err := l.Balances(ctx, p)
	require.NoError(t, err)

	ledgers := l.Catalog().Ledgers()
	require.Len(t, all, len(ledgers))
	for i, b := range all {
		assert.Equal(t, ledgers[i].ID, b.LedgerID, "catalog order")

		one, err := l.Balance(ctx, b.LedgerID, p)
		require.NoError(t, err)
		assert.True(t, one.Opening.Amount.Equal(b.Opening.Amount), b.LedgerID)
		assert.True(t, one.Debit.Equal(b.Debit), b.LedgerID)
		assert.True(t, one.Credit.Equal(b.Credit), b.LedgerID)
		assert.True(t, one.Closing.Amount.Equal(b.Closing.Amount), b.LedgerID)
		assert.Equal(t, one.Closing.Side, b.Closing.Side, b.LedgerID)
	}

	_, err = l.Balances(ctx, Period{From: p.To, To: p.From})
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}
