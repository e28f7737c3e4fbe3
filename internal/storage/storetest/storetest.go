// Package storetest is a conformance suite every interfaces.LedgerStore
// implementation runs from its own tests.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	interfaces "github.com/sheikh-saqib/voucher-ledger/internal/interfaces"
	"github.com/sheikh-saqib/voucher-ledger/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. Cleanup is registered on t.
type Factory func(t *testing.T) interfaces.LedgerStore

const fy = "2025-26"

// Voucher builds a two-line voucher moving amount from credit to debit.
func Voucher(typeCode, date, debit, credit, amount string) models.Voucher {
	id := uuid.NewString()
	amt := decimal.RequireFromString(amount)
	return models.Voucher{
		ID:            id,
		TypeCode:      typeCode,
		Date:          models.MustDate(date),
		FinancialYear: fy,
		Narration:     "test voucher",
		CreatedAt:     time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC),
		CreatedBy:     "tester",
		Entries: []models.JournalEntry{
			{ID: uuid.NewString(), VoucherID: id, Line: 1, LedgerID: debit, Side: models.Debit, Amount: amt},
			{ID: uuid.NewString(), VoucherID: id, Line: 2, LedgerID: credit, Side: models.Credit, Amount: amt},
		},
	}
}

// Run exercises every LedgerStore operation against stores from newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("create assigns increasing sequences per series", func(t *testing.T) {
		testSequences(t, newStore(t))
	})
	t.Run("round trip", func(t *testing.T) {
		testRoundTrip(t, newStore(t))
	})
	t.Run("concurrent creates get distinct numbers", func(t *testing.T) {
		testConcurrentCreates(t, newStore(t))
	})
	t.Run("idempotency key conflict", func(t *testing.T) {
		testIdempotencyConflict(t, newStore(t))
	})
	t.Run("list filters and order", func(t *testing.T) {
		testList(t, newStore(t))
	})
	t.Run("ledger movement bounds", func(t *testing.T) {
		testMovement(t, newStore(t))
	})
	t.Run("ledger movements in one read", func(t *testing.T) {
		testMovements(t, newStore(t))
	})
	t.Run("has entries", func(t *testing.T) {
		testHasEntries(t, newStore(t))
	})
}

func testSequences(t *testing.T, store interfaces.LedgerStore) {
	ctx := context.Background()

	for i, want := range []int64{1, 2, 3} {
		v, err := store.CreateVoucher(ctx, Voucher("PMT", "2025-04-0"+fmt.Sprint(i+1), "feed", "cash", "10"))
		require.NoError(t, err)
		assert.Equal(t, want, v.Sequence)
	}

	// separate series for another type and another year
	v, err := store.CreateVoucher(ctx, Voucher("RCT", "2025-04-05", "cash", "sales", "10"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Sequence)

	other := Voucher("PMT", "2026-04-05", "feed", "cash", "10")
	other.FinancialYear = "2026-27"
	v, err = store.CreateVoucher(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Sequence)
}

func testRoundTrip(t *testing.T, store interfaces.LedgerStore) {
	ctx := context.Background()

	in := Voucher("JV", "2025-05-10", "feed", "cash", "1234.56")
	in.ReferenceNumber = "INV-7"
	in.ReferenceDate = models.MustDate("2025-05-09")
	in.PartyLedgerID = "creditors"
	in.IdempotencyKey = "key-round-trip"
	in.Entries[0].CostCenterID = "barn"
	in.Entries[0].Narration = "layer feed"

	created, err := store.CreateVoucher(ctx, in)
	require.NoError(t, err)

	got, err := store.GetVoucher(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Sequence, got.Sequence)
	assert.Equal(t, "JV", got.TypeCode)
	assert.Equal(t, "2025-05-10", got.Date.String())
	assert.Equal(t, "2025-05-09", got.ReferenceDate.String())
	assert.Equal(t, "INV-7", got.ReferenceNumber)
	assert.Equal(t, "creditors", got.PartyLedgerID)
	assert.Equal(t, fy, got.FinancialYear)
	assert.Equal(t, "tester", got.CreatedBy)
	assert.True(t, in.CreatedAt.Equal(got.CreatedAt), "created_at %s", got.CreatedAt)

	require.Len(t, got.Entries, 2)
	assert.Equal(t, 1, got.Entries[0].Line)
	assert.Equal(t, models.Debit, got.Entries[0].Side)
	assert.Equal(t, "1234.56", got.Entries[0].Amount.StringFixed(2))
	assert.Equal(t, "barn", got.Entries[0].CostCenterID)
	assert.Equal(t, "layer feed", got.Entries[0].Narration)
	assert.Equal(t, models.Credit, got.Entries[1].Side)

	byKey, err := store.FindByIdempotencyKey(ctx, "key-round-trip")
	require.NoError(t, err)
	assert.Equal(t, in.ID, byKey.ID)
	assert.Equal(t, "key-round-trip", byKey.IdempotencyKey)

	_, err = store.GetVoucher(ctx, "missing")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
	_, err = store.FindByIdempotencyKey(ctx, "missing")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
	_, err = store.FindByIdempotencyKey(ctx, "")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func testConcurrentCreates(t *testing.T, store interfaces.LedgerStore) {
	ctx := context.Background()
	const n = 20

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seqs = make(map[int64]bool)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := Voucher("RCT", "2025-06-01", "cash", "sales", "5")
			// a backend may report contention as a conflict; the caller retries
			for {
				created, err := store.CreateVoucher(ctx, v)
				if err == nil {
					mu.Lock()
					seqs[created.Sequence] = true
					mu.Unlock()
					return
				}
				if !assert.ErrorIs(t, err, interfaces.ErrConflict) {
					return
				}
			}
		}()
	}
	wg.Wait()

	require.Len(t, seqs, n)
	for i := int64(1); i <= n; i++ {
		assert.True(t, seqs[i], "sequence %d missing", i)
	}
}

func testIdempotencyConflict(t *testing.T, store interfaces.LedgerStore) {
	ctx := context.Background()

	first := Voucher("PMT", "2025-04-02", "feed", "cash", "10")
	first.IdempotencyKey = "dup"
	_, err := store.CreateVoucher(ctx, first)
	require.NoError(t, err)

	second := Voucher("PMT", "2025-04-02", "feed", "cash", "99")
	second.IdempotencyKey = "dup"
	_, err = store.CreateVoucher(ctx, second)
	require.ErrorIs(t, err, interfaces.ErrConflict)

	// the losing write must leave nothing behind
	_, err = store.GetVoucher(ctx, second.ID)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
	mv, err := store.LedgerMovement(ctx, "feed", models.Date{}, models.Date{})
	require.NoError(t, err)
	assert.Equal(t, "10.00", mv.Debit.StringFixed(2))

	next, err := store.CreateVoucher(ctx, Voucher("PMT", "2025-04-03", "feed", "cash", "1"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), next.Sequence)
}

func testList(t *testing.T, store interfaces.LedgerStore) {
	ctx := context.Background()

	mustCreate := func(v models.Voucher) models.Voucher {
		created, err := store.CreateVoucher(ctx, v)
		require.NoError(t, err)
		return created
	}
	// posted out of date order on purpose
	r2 := mustCreate(Voucher("RCT", "2025-04-15", "cash", "sales", "200"))
	p1 := mustCreate(Voucher("PMT", "2025-04-10", "feed", "cash", "50"))
	r3 := mustCreate(Voucher("RCT", "2025-04-15", "cash", "sales", "30"))
	j1 := mustCreate(Voucher("JV", "2025-05-01", "feed", "creditors", "70"))

	all, err := store.ListVouchers(ctx, models.VoucherQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{p1.ID, r2.ID, r3.ID, j1.ID}, ids(all))
	for _, v := range all {
		assert.Len(t, v.Entries, 2)
	}

	april, err := store.ListVouchers(ctx, models.VoucherQuery{
		From: models.MustDate("2025-04-01"),
		To:   models.MustDate("2025-04-30"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{p1.ID, r2.ID, r3.ID}, ids(april))

	receipts, err := store.ListVouchers(ctx, models.VoucherQuery{TypeCode: "RCT", FinancialYear: fy})
	require.NoError(t, err)
	assert.Equal(t, []string{r2.ID, r3.ID}, ids(receipts))

	none, err := store.ListVouchers(ctx, models.VoucherQuery{FinancialYear: "1999-00"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testMovement(t *testing.T, store interfaces.LedgerStore) {
	ctx := context.Background()

	for _, v := range []models.Voucher{
		Voucher("RCT", "2025-04-01", "cash", "sales", "100"),
		Voucher("PMT", "2025-04-15", "feed", "cash", "40"),
		Voucher("RCT", "2025-04-30", "cash", "sales", "25.50"),
		Voucher("PMT", "2025-05-01", "feed", "cash", "10"),
	} {
		_, err := store.CreateVoucher(ctx, v)
		require.NoError(t, err)
	}

	tests := []struct {
		name          string
		from, to      string
		debit, credit string
	}{
		{name: "open bounds", debit: "125.50", credit: "50.00"},
		{name: "inclusive both ends", from: "2025-04-01", to: "2025-04-30", debit: "125.50", credit: "40.00"},
		{name: "before start", to: "2025-03-31", debit: "0.00", credit: "0.00"},
		{name: "single day", from: "2025-04-15", to: "2025-04-15", debit: "0.00", credit: "40.00"},
		{name: "from only", from: "2025-04-16", debit: "25.50", credit: "10.00"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var from, to models.Date
			if tc.from != "" {
				from = models.MustDate(tc.from)
			}
			if tc.to != "" {
				to = models.MustDate(tc.to)
			}
			mv, err := store.LedgerMovement(ctx, "cash", from, to)
			require.NoError(t, err)
			assert.Equal(t, tc.debit, mv.Debit.StringFixed(2))
			assert.Equal(t, tc.credit, mv.Credit.StringFixed(2))
		})
	}

	mv, err := store.LedgerMovement(ctx, "unused", models.Date{}, models.Date{})
	require.NoError(t, err)
	assert.True(t, mv.Debit.IsZero())
	assert.True(t, mv.Credit.IsZero())
}

func testMovements(t *testing.T, store interfaces.LedgerStore) {
	ctx := context.Background()

	for _, v := range []models.Voucher{
		Voucher("RCT", "2025-04-01", "cash", "sales", "100"),
		Voucher("PMT", "2025-04-15", "feed", "cash", "40"),
		Voucher("RCT", "2025-04-30", "cash", "sales", "25.50"),
		Voucher("PMT", "2025-05-01", "feed", "cash", "10"),
	} {
		_, err := store.CreateVoucher(ctx, v)
		require.NoError(t, err)
	}

	type sums struct{ priorDr, priorCr, dr, cr string }
	flatten := func(got map[string]models.PeriodMovement) map[string]sums {
		out := make(map[string]sums, len(got))
		for id, pm := range got {
			out[id] = sums{
				pm.Prior.Debit.StringFixed(2), pm.Prior.Credit.StringFixed(2),
				pm.Period.Debit.StringFixed(2), pm.Period.Credit.StringFixed(2),
			}
		}
		return out
	}

	tests := []struct {
		name     string
		from, to string
		want     map[string]sums
	}{
		{
			name: "open bounds",
			want: map[string]sums{
				"cash":  {"0.00", "0.00", "125.50", "50.00"},
				"sales": {"0.00", "0.00", "0.00", "125.50"},
				"feed":  {"0.00", "0.00", "50.00", "0.00"},
			},
		},
		{
			name: "prior, period and later entries",
			from: "2025-04-15", to: "2025-04-30",
			want: map[string]sums{
				"cash":  {"100.00", "0.00", "25.50", "40.00"},
				"sales": {"0.00", "100.00", "0.00", "25.50"},
				"feed":  {"0.00", "0.00", "40.00", "0.00"},
			},
		},
		{
			name: "everything before the period",
			from: "2025-06-01",
			want: map[string]sums{
				"cash":  {"125.50", "50.00", "0.00", "0.00"},
				"sales": {"0.00", "125.50", "0.00", "0.00"},
				"feed":  {"50.00", "0.00", "0.00", "0.00"},
			},
		},
		{name: "nothing yet", to: "2025-03-31", want: map[string]sums{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var from, to models.Date
			if tc.from != "" {
				from = models.MustDate(tc.from)
			}
			if tc.to != "" {
				to = models.MustDate(tc.to)
			}
			got, err := store.LedgerMovements(ctx, from, to)
			require.NoError(t, err)
			assert.Equal(t, tc.want, flatten(got))
		})
	}
}

func testHasEntries(t *testing.T, store interfaces.LedgerStore) {
	ctx := context.Background()

	has, err := store.HasEntries(ctx, "cash")
	require.NoError(t, err)
	assert.False(t, has)

	_, err = store.CreateVoucher(ctx, Voucher("RCT", "2025-04-01", "cash", "sales", "1"))
	require.NoError(t, err)

	for ledger, want := range map[string]bool{"cash": true, "sales": true, "cas": false, "feed": false} {
		has, err := store.HasEntries(ctx, ledger)
		require.NoError(t, err)
		assert.Equal(t, want, has, ledger)
	}
}

func ids(vs []models.Voucher) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.ID)
	}
	return out
}
