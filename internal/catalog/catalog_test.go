package catalog

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/voucher-ledger/internal/models"
)

const baseYAML = `
account_groups:
  - {name: Cash-in-Hand, nature: Asset}
  - {name: Sales Accounts, nature: Income}
ledgers:
  - {id: cash, name: Cash, group: Cash-in-Hand, opening_balance: 150.505}
  - {id: sales, name: Sales, group: Sales Accounts}
  - {id: misc, name: Misc Income, group: Sales Accounts}
voucher_types:
  - {code: RCT, name: Receipt, abbreviation: rct}
  - {code: JV, name: Journal, abbreviation: JV, number_width: 6}
cost_centers:
  - {id: barn, name: Layer Barn}
financial_years:
  - {code: 2025-26, start: "2025-04-01", end: "2026-03-31"}
`

type fakeEntries map[string]bool

func (f fakeEntries) HasEntries(ctx context.Context, ledgerID string) (bool, error) {
	return f[ledgerID], nil
}

// lateEntries reports no entries on its first call and entries from then on,
// as if a voucher were posted while a reload was in progress.
type lateEntries struct {
	calls int
}

func (l *lateEntries) HasEntries(ctx context.Context, ledgerID string) (bool, error) {
	l.calls++
	return l.calls > 1, nil
}

func writeCatalog(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestParse(t *testing.T) {
	snap, err := Parse([]byte(baseYAML))
	require.NoError(t, err)
	c := New(snap)

	cash, ok := c.Ledger("cash")
	require.True(t, ok)
	assert.Equal(t, models.Asset, cash.Nature, "nature comes from the group")
	assert.Equal(t, models.Debit, cash.Opening.Side, "opening side defaults to the normal side")
	assert.Equal(t, "150.51", cash.Opening.Amount.StringFixed(2))

	rct, ok := c.VoucherType("RCT")
	require.True(t, ok)
	assert.Equal(t, "RCT", rct.Abbreviation)
	assert.Equal(t, models.DefaultNumberWidth, rct.NumberWidth)
	jv, _ := c.VoucherType("JV")
	assert.Equal(t, 6, jv.NumberWidth)

	fy, ok := c.FinancialYear("2025-26")
	require.True(t, ok)
	assert.True(t, fy.Contains(models.MustDate("2026-03-31")))
	assert.False(t, fy.Contains(models.MustDate("2026-04-01")))

	_, ok = c.CostCenter("barn")
	assert.True(t, ok)

	var names []string
	for _, l := range c.Ledgers() {
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{"Cash", "Misc Income", "Sales"}, names)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{name: "unknown field", yaml: "ledgerz: []", want: "field ledgerz not found"},
		{name: "bad nature", yaml: "account_groups: [{name: X, nature: Equity}]", want: `invalid nature "Equity"`},
		{name: "unknown group", yaml: "ledgers: [{id: a, name: A, group: Nowhere}]", want: `unknown account group "Nowhere"`},
		{name: "negative opening", yaml: baseGroups + "ledgers: [{id: a, name: A, group: G, opening_balance: -5}]", want: "must not be negative"},
		{name: "long abbreviation", yaml: "voucher_types: [{code: P, name: P, abbreviation: PAYM}]", want: "must be 2 or 3 letters"},
		{name: "inverted year", yaml: `financial_years: [{code: x, start: "2026-01-01", end: "2025-01-01"}]`, want: "ends before it starts"},
		{name: "duplicate ledger", yaml: baseGroups + "ledgers: [{id: a, name: A, group: G}, {id: a, name: B, group: G}]", want: `ledger "a" defined twice`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

const baseGroups = "account_groups: [{name: G, nature: Asset}]\n"

func TestParseEmpty(t *testing.T) {
	snap, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, New(snap).Ledgers())
}

func TestReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	writeCatalog(t, path, baseYAML)

	snap, err := LoadFile(path)
	require.NoError(t, err)
	c := New(snap)
	guard := EntriesGuard(fakeEntries{"cash": true})

	// adding a ledger and dropping an unused one is fine
	writeCatalog(t, path, strings.Replace(baseYAML,
		"  - {id: misc, name: Misc Income, group: Sales Accounts}\n",
		"  - {id: eggs, name: Egg Sales, group: Sales Accounts}\n", 1))
	require.NoError(t, c.Reload(ctx, path, guard))
	_, ok := c.Ledger("eggs")
	assert.True(t, ok)
	_, ok = c.Ledger("misc")
	assert.False(t, ok)

	// removing a ledger with entries is refused and the old snapshot stays
	writeCatalog(t, path, strings.Replace(baseYAML,
		"  - {id: cash, name: Cash, group: Cash-in-Hand, opening_balance: 150.505}\n", "", 1))
	err = c.Reload(ctx, path, guard)
	require.ErrorIs(t, err, ErrReloadRejected)
	assert.Contains(t, err.Error(), "cash")
	_, ok = c.Ledger("cash")
	assert.True(t, ok)
	_, ok = c.Ledger("eggs")
	assert.True(t, ok)

	// so is changing its nature
	writeCatalog(t, path, strings.Replace(baseYAML, "{id: cash, name: Cash, group: Cash-in-Hand",
		"{id: cash, name: Cash, group: Sales Accounts", 1))
	require.ErrorIs(t, c.Reload(ctx, path, guard), ErrReloadRejected)

	// a broken file keeps the current snapshot
	writeCatalog(t, path, "ledgers: [")
	assert.Error(t, c.Reload(ctx, path, guard))
	_, ok = c.Ledger("cash")
	assert.True(t, ok)
}

func TestReloadRollsBackWhenEntriesArriveDuringSwap(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	writeCatalog(t, path, baseYAML)

	snap, err := LoadFile(path)
	require.NoError(t, err)
	c := New(snap)

	writeCatalog(t, path, strings.Replace(baseYAML,
		"  - {id: misc, name: Misc Income, group: Sales Accounts}\n", "", 1))
	entries := &lateEntries{}
	err = c.Reload(ctx, path, EntriesGuard(entries))
	require.ErrorIs(t, err, ErrReloadRejected)
	assert.Equal(t, 2, entries.calls)
	assert.Same(t, snap, c.Snapshot())
	_, ok := c.Ledger("misc")
	assert.True(t, ok)
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	writeCatalog(t, path, baseYAML)

	snap, err := LoadFile(path)
	require.NoError(t, err)
	c := New(snap)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx, path, nil, slog.New(slog.DiscardHandler))
	}()

	// give the watcher time to register before writing
	time.Sleep(100 * time.Millisecond)
	writeCatalog(t, path, baseYAML+"  - {code: 2026-27, start: \"2026-04-01\", end: \"2027-03-31\"}\n")

	assert.Eventually(t, func() bool {
		_, ok := c.FinancialYear("2026-27")
		return ok
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
