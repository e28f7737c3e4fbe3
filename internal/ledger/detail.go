package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/voucher-ledger/internal/models"
)

// VoucherDetail is a posted voucher with master-data names resolved for display.
type VoucherDetail struct {
	ID              string          `json:"voucher_id"`
	TypeCode        string          `json:"voucher_type_code"`
	TypeName        string          `json:"voucher_type_name"`
	Abbreviation    string          `json:"abbreviation"`
	Number          string          `json:"voucher_number"`
	Date            models.Date     `json:"voucher_date"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	ReferenceDate   models.Date     `json:"reference_date"`
	PartyLedgerID   string          `json:"party_ledger_id,omitempty"`
	PartyName       string          `json:"party_name,omitempty"`
	Narration       string          `json:"narration,omitempty"`
	FinancialYear   string          `json:"financial_year"`
	CreatedAt       string          `json:"created_at"`
	CreatedBy       string          `json:"created_by,omitempty"`
	TotalDebit      decimal.Decimal `json:"total_debit"`
	TotalCredit     decimal.Decimal `json:"total_credit"`
	Entries         []EntryDetail   `json:"entries"`
}

type EntryDetail struct {
	Line           int             `json:"line"`
	LedgerID       string          `json:"ledger_id"`
	LedgerName     string          `json:"ledger_name"`
	DebitAmount    decimal.Decimal `json:"debit_amount"`
	CreditAmount   decimal.Decimal `json:"credit_amount"`
	CostCenterID   string          `json:"cost_center_id,omitempty"`
	CostCenterName string          `json:"cost_center_name,omitempty"`
	Narration      string          `json:"narration,omitempty"`
}

// VoucherDetail fetches a voucher and resolves ledger, party and cost-center
// names. Entry narration falls back to the voucher narration.
func (l *Ledger) VoucherDetail(ctx context.Context, id string) (VoucherDetail, error) {
	v, err := l.GetVoucher(ctx, id)
	if err != nil {
		return VoucherDetail{}, err
	}
	return l.describe(v), nil
}

func (l *Ledger) describe(v models.Voucher) VoucherDetail {
	vt, _ := l.catalog.VoucherType(v.TypeCode)
	debit, credit := v.Totals()

	d := VoucherDetail{
		ID:              v.ID,
		TypeCode:        v.TypeCode,
		TypeName:        vt.Name,
		Abbreviation:    vt.Abbreviation,
		Number:          v.Number,
		Date:            v.Date,
		ReferenceNumber: v.ReferenceNumber,
		ReferenceDate:   v.ReferenceDate,
		PartyLedgerID:   v.PartyLedgerID,
		Narration:       v.Narration,
		FinancialYear:   v.FinancialYear,
		CreatedAt:       v.CreatedAt.UTC().Format(time.RFC3339),
		CreatedBy:       v.CreatedBy,
		TotalDebit:      debit,
		TotalCredit:     credit,
		Entries:         make([]EntryDetail, len(v.Entries)),
	}
	if party, ok := l.catalog.Ledger(v.PartyLedgerID); ok {
		d.PartyName = party.Name
	}

	for i, e := range v.Entries {
		ed := EntryDetail{
			Line:         e.Line,
			LedgerID:     e.LedgerID,
			DebitAmount:  e.Debit(),
			CreditAmount: e.Credit(),
			CostCenterID: e.CostCenterID,
			Narration:    e.Narration,
		}
		if ldg, ok := l.catalog.Ledger(e.LedgerID); ok {
			ed.LedgerName = ldg.Name
		}
		if cc, ok := l.catalog.CostCenter(e.CostCenterID); ok {
			ed.CostCenterName = cc.Name
		}
		if ed.Narration == "" {
			ed.Narration = v.Narration
		}
		d.Entries[i] = ed
	}
	return d
}
