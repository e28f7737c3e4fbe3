// Package catalogtest provides a small farm catalog for tests.
package catalogtest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/voucher-ledger/internal/catalog"
)

// FarmYAML mirrors the catalog.yaml shipped with the service.
const FarmYAML = `
account_groups:
  - {name: Cash-in-Hand, nature: Asset}
  - {name: Bank Accounts, nature: Asset}
  - {name: Sundry Debtors, nature: Asset}
  - {name: Sundry Creditors, nature: Liability}
  - {name: Capital Account, nature: Liability}
  - {name: Sales Accounts, nature: Income}
  - {name: Purchase Accounts, nature: Expense}
  - {name: Direct Expenses, nature: Expense}
ledgers:
  - {id: cash, name: Cash, group: Cash-in-Hand, opening_balance: 5000}
  - {id: bank, name: Farm Bank Account, group: Bank Accounts, opening_balance: 20000}
  - {id: debtors, name: Sundry Debtors, group: Sundry Debtors}
  - {id: creditors, name: Sundry Creditors, group: Sundry Creditors}
  - {id: capital, name: Capital, group: Capital Account, opening_balance: 25000, opening_side: Cr}
  - {id: sales, name: Sales, group: Sales Accounts}
  - {id: purchases, name: Purchases, group: Purchase Accounts}
  - {id: feed, name: Feed Expense, group: Direct Expenses}
voucher_types:
  - {code: PMT, name: Payment, abbreviation: PMT}
  - {code: RCT, name: Receipt, abbreviation: RCT}
  - {code: JV, name: Journal, abbreviation: JV}
  - {code: SAL, name: Sales, abbreviation: SAL}
  - {code: PUR, name: Purchase, abbreviation: PUR}
cost_centers:
  - {id: barn, name: Layer Barn}
  - {id: hatchery, name: Hatchery}
financial_years:
  - {code: 2025-26, start: "2025-04-01", end: "2026-03-31"}
  - {code: 2026-27, start: "2026-04-01", end: "2027-03-31"}
`

// FY is the financial year most fixtures post into.
const FY = "2025-26"

// Farm returns a catalog loaded from FarmYAML.
func Farm(t testing.TB) *catalog.Catalog {
	t.Helper()
	snap, err := catalog.Parse([]byte(FarmYAML))
	require.NoError(t, err)
	return catalog.New(snap)
}
