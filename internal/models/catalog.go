package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountGroup buckets ledgers for reporting. Its nature is inherited by
// every ledger in the group.
type AccountGroup struct {
	Name   string `json:"name" yaml:"name"`
	Nature Nature `json:"nature" yaml:"nature"`
}

// Ledger is a named account that accumulates debits and credits.
type Ledger struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Group     string      `json:"account_group"`
	Nature    Nature      `json:"nature"`
	Opening   SidedAmount `json:"opening_balance"`
	CreatedAt time.Time   `json:"created_at"`
}

// OpeningDebitPositive is the opening balance signed with debits positive.
func (l Ledger) OpeningDebitPositive() decimal.Decimal {
	return l.Opening.DebitPositive()
}

// VoucherType is the lookup entry that drives numbering and display.
type VoucherType struct {
	Code         string `json:"code" yaml:"code"`
	Name         string `json:"name" yaml:"name"`
	Abbreviation string `json:"abbreviation" yaml:"abbreviation"`
	NumberWidth  int    `json:"number_width" yaml:"number_width"`
}

// DefaultNumberWidth is used when a voucher type does not set one.
const DefaultNumberWidth = 4

// CostCenter is an optional analysis tag on journal entries.
type CostCenter struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// FinancialYear scopes voucher numbering and reports. Both bounds are inclusive.
type FinancialYear struct {
	Code  string `json:"code"`
	Start Date   `json:"start_date"`
	End   Date   `json:"end_date"`
}

// Contains reports whether d falls inside the year.
func (fy FinancialYear) Contains(d Date) bool {
	return !d.Before(fy.Start) && !d.After(fy.End)
}
