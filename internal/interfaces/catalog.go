package interfaces

import "github.com/sheikh-saqib/voucher-ledger/internal/models"

// Catalog is the read-only view of master data owned outside this core.
type Catalog interface {
	Ledger(id string) (models.Ledger, bool)
	// Ledgers returns every ledger ordered by account group then name.
	Ledgers() []models.Ledger
	AccountGroup(name string) (models.AccountGroup, bool)
	VoucherType(code string) (models.VoucherType, bool)
	CostCenter(id string) (models.CostCenter, bool)
	FinancialYear(code string) (models.FinancialYear, bool)
}
