package events

import (
	"time"

	"github.com/shopspring/decimal"
)

type VoucherPosted struct {
	VoucherID     string          `json:"voucher_id"`
	TypeCode      string          `json:"voucher_type_code"`
	VoucherNumber string          `json:"voucher_number"`
	VoucherDate   string          `json:"voucher_date"`
	FinancialYear string          `json:"financial_year"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	EntryCount    int             `json:"entry_count"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

type IntegrityAlertRaised struct {
	Report        string          `json:"report"`
	AsOnDate      string          `json:"as_on_date"`
	FinancialYear string          `json:"financial_year"`
	TotalDebit    decimal.Decimal `json:"total_debit"`
	TotalCredit   decimal.Decimal `json:"total_credit"`
	Difference    decimal.Decimal `json:"difference"`
	OccurredAt    time.Time       `json:"occurred_at"`
}
