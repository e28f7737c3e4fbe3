package reports

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/voucher-ledger/internal/models"
)

type DayBookQuery struct {
	From          models.Date
	To            models.Date
	TypeCode      string
	FinancialYear string
}

type DayBookEntry struct {
	VoucherID       string          `json:"voucher_id"`
	VoucherDate     models.Date     `json:"voucher_date"`
	VoucherType     string          `json:"voucher_type_code"`
	Abbreviation    string          `json:"abbreviation"`
	VoucherNumber   string          `json:"voucher_number"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	PartyName       string          `json:"party_name,omitempty"`
	Narration       string          `json:"narration,omitempty"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
}

type DayBook struct {
	From          models.Date     `json:"from_date"`
	To            models.Date     `json:"to_date"`
	TypeCode      string          `json:"voucher_type_code,omitempty"`
	FinancialYear string          `json:"financial_year,omitempty"`
	Entries       []DayBookEntry  `json:"entries"`
	Total         decimal.Decimal `json:"total"`
}

// DayBook lists vouchers in [From, To] in date order, breaking ties by
// voucher number, with each voucher's debit total and a grand total.
func (g *Generator) DayBook(ctx context.Context, q DayBookQuery) (*DayBook, error) {
	if q.From.IsZero() || q.To.IsZero() {
		return nil, fmt.Errorf("%w: from_date and to_date are required", ErrInvalidQuery)
	}
	if q.To.Before(q.From) {
		return nil, fmt.Errorf("%w: to_date %s is before from_date %s", ErrInvalidQuery, q.To, q.From)
	}
	catalog := g.src.Catalog()
	if q.TypeCode != "" {
		if _, ok := catalog.VoucherType(q.TypeCode); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownVoucherType, q.TypeCode)
		}
	}
	if q.FinancialYear != "" {
		if _, ok := catalog.FinancialYear(q.FinancialYear); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFinancialYear, q.FinancialYear)
		}
	}

	vouchers, err := g.src.ListVouchers(ctx, models.VoucherQuery{
		From:          q.From,
		To:            q.To,
		TypeCode:      q.TypeCode,
		FinancialYear: q.FinancialYear,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list vouchers: %w", err)
	}

	sort.SliceStable(vouchers, func(i, j int) bool {
		a, b := vouchers[i], vouchers[j]
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.Before(b.Date)
		}
		if a.Sequence != b.Sequence {
			return a.Sequence < b.Sequence
		}
		return a.TypeCode < b.TypeCode
	})

	book := &DayBook{
		From:          q.From,
		To:            q.To,
		TypeCode:      q.TypeCode,
		FinancialYear: q.FinancialYear,
		Entries:       make([]DayBookEntry, 0, len(vouchers)),
		Total:         decimal.Zero,
	}
	for _, v := range vouchers {
		vt, _ := catalog.VoucherType(v.TypeCode)
		entry := DayBookEntry{
			VoucherID:       v.ID,
			VoucherDate:     v.Date,
			VoucherType:     v.TypeCode,
			Abbreviation:    vt.Abbreviation,
			VoucherNumber:   v.Number,
			ReferenceNumber: v.ReferenceNumber,
			Narration:       v.Narration,
			TotalAmount:     v.TotalAmount(),
		}
		if party, ok := catalog.Ledger(v.PartyLedgerID); ok {
			entry.PartyName = party.Name
		}
		book.Entries = append(book.Entries, entry)
		book.Total = book.Total.Add(entry.TotalAmount)
	}
	return book, nil
}
