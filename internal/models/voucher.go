package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Voucher is a single balanced financial transaction. It is immutable once
// posted; corrections are made with new vouchers.
type Voucher struct {
	ID              string         `json:"voucher_id"`
	TypeCode        string         `json:"voucher_type_code"`
	Date            Date           `json:"voucher_date"`
	Sequence        int64          `json:"sequence"`
	Number          string         `json:"voucher_number"`
	ReferenceNumber string         `json:"reference_number,omitempty"`
	ReferenceDate   Date           `json:"reference_date"`
	PartyLedgerID   string         `json:"party_ledger_id,omitempty"`
	Narration       string         `json:"narration,omitempty"`
	FinancialYear   string         `json:"financial_year"`
	IdempotencyKey  string         `json:"-"`
	CreatedAt       time.Time      `json:"created_at"`
	CreatedBy       string         `json:"created_by,omitempty"`
	Entries         []JournalEntry `json:"entries"`
}

// JournalEntry is one debit or credit line of a voucher.
type JournalEntry struct {
	ID           string          `json:"id"`
	VoucherID    string          `json:"voucher_id"`
	Line         int             `json:"line"`
	LedgerID     string          `json:"ledger_id"`
	Side         Side            `json:"side"`
	Amount       decimal.Decimal `json:"amount"`
	CostCenterID string          `json:"cost_center_id,omitempty"`
	Narration    string          `json:"narration,omitempty"`
}

// Debit returns the entry amount if it is a debit, zero otherwise.
func (e JournalEntry) Debit() decimal.Decimal {
	if e.Side == Debit {
		return e.Amount
	}
	return decimal.Zero
}

// Credit returns the entry amount if it is a credit, zero otherwise.
func (e JournalEntry) Credit() decimal.Decimal {
	if e.Side == Credit {
		return e.Amount
	}
	return decimal.Zero
}

// Totals sums the debit and credit columns of the voucher.
func (v Voucher) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, e := range v.Entries {
		debit = debit.Add(e.Debit())
		credit = credit.Add(e.Credit())
	}
	return debit, credit
}

// TotalAmount is the debit total, which equals the credit total for a posted voucher.
func (v Voucher) TotalAmount() decimal.Decimal {
	debit, _ := v.Totals()
	return debit
}

// FormatNumber renders a sequence zero-padded to the voucher type's width.
func FormatNumber(vt VoucherType, seq int64) string {
	width := vt.NumberWidth
	if width <= 0 {
		width = DefaultNumberWidth
	}
	s := strconv.FormatInt(seq, 10)
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// CounterKey identifies a numbering series.
type CounterKey struct {
	TypeCode      string
	FinancialYear string
}

func (k CounterKey) String() string {
	return fmt.Sprintf("%s/%s", k.TypeCode, k.FinancialYear)
}

// VoucherQuery filters vouchers for listing. Zero values mean "any".
type VoucherQuery struct {
	From          Date
	To            Date
	TypeCode      string
	FinancialYear string
}

// Matches applies the query to a voucher header.
func (q VoucherQuery) Matches(v Voucher) bool {
	if !q.From.IsZero() && v.Date.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && v.Date.After(q.To) {
		return false
	}
	if q.TypeCode != "" && v.TypeCode != q.TypeCode {
		return false
	}
	if q.FinancialYear != "" && v.FinancialYear != q.FinancialYear {
		return false
	}
	return true
}

// Movement is the sum of debits and credits posted to a ledger over a range.
type Movement struct {
	Debit  decimal.Decimal `json:"debit"`
	Credit decimal.Decimal `json:"credit"`
}

// Net returns debit minus credit.
func (m Movement) Net() decimal.Decimal {
	return m.Debit.Sub(m.Credit)
}

// Add accumulates an entry into the movement.
func (m Movement) Add(e JournalEntry) Movement {
	return Movement{Debit: m.Debit.Add(e.Debit()), Credit: m.Credit.Add(e.Credit())}
}

// Post accumulates amount on side.
func (m Movement) Post(side Side, amount decimal.Decimal) Movement {
	if side == Debit {
		m.Debit = m.Debit.Add(amount)
	} else {
		m.Credit = m.Credit.Add(amount)
	}
	return m
}

// PeriodMovement splits a ledger's entries into those dated before a period
// and those inside it.
type PeriodMovement struct {
	Prior  Movement `json:"prior"`
	Period Movement `json:"period"`
}
