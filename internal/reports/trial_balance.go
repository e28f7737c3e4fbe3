package reports

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/voucher-ledger/internal/ledger"
	"github.com/sheikh-saqib/voucher-ledger/internal/models"
)

type TrialBalanceRow struct {
	LedgerID       string          `json:"ledger_id"`
	LedgerName     string          `json:"ledger_name"`
	AccountGroup   string          `json:"account_group"`
	Nature         models.Nature   `json:"nature"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	OpeningSide    models.Side     `json:"opening_side"`
	TotalDebit     decimal.Decimal `json:"total_debit"`
	TotalCredit    decimal.Decimal `json:"total_credit"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	ClosingSide    models.Side     `json:"closing_side"`
}

// TrialBalanceTotals holds the grand totals. TotalDebit and TotalCredit are
// period movements; the opening and closing columns are split by side.
type TrialBalanceTotals struct {
	TotalDebit    decimal.Decimal `json:"total_debit"`
	TotalCredit   decimal.Decimal `json:"total_credit"`
	OpeningDebit  decimal.Decimal `json:"opening_debit"`
	OpeningCredit decimal.Decimal `json:"opening_credit"`
	ClosingDebit  decimal.Decimal `json:"closing_debit"`
	ClosingCredit decimal.Decimal `json:"closing_credit"`
}

type TrialBalance struct {
	AsOnDate      models.Date        `json:"as_on_date"`
	FinancialYear string             `json:"financial_year"`
	PeriodFrom    models.Date        `json:"period_from"`
	PeriodTo      models.Date        `json:"period_to"`
	Rows          []TrialBalanceRow  `json:"rows"`
	Totals        TrialBalanceTotals `json:"totals"`
	Balanced      bool               `json:"balanced"`
	Alert         *IntegrityAlert    `json:"integrity_alert,omitempty"`
}

// TrialBalance lists every ledger's opening balance, movement and closing
// balance for the financial year up to asOn. The period runs from the start
// of the year to asOn, capped at the year end.
//
// Every row comes from one read of the journal, so posting that runs alongside
// cannot unbalance the totals.
//
// When the grand-total debits and credits disagree the report is still
// returned, with Balanced false and Alert set; the alert is also logged and
// published.
func (g *Generator) TrialBalance(ctx context.Context, asOn models.Date, fyCode string) (*TrialBalance, error) {
	if asOn.IsZero() {
		return nil, fmt.Errorf("%w: as_on_date is required", ErrInvalidQuery)
	}
	catalog := g.src.Catalog()
	fy, ok := catalog.FinancialYear(fyCode)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFinancialYear, fyCode)
	}
	if asOn.Before(fy.Start) {
		return nil, fmt.Errorf("%w: as_on_date %s is before the start of %s (%s)", ErrInvalidQuery, asOn, fy.Code, fy.Start)
	}
	to := asOn
	if to.After(fy.End) {
		to = fy.End
	}
	period := ledger.Period{From: fy.Start, To: to}

	balances, err := g.src.Balances(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("failed to compute trial balance: %w", err)
	}

	tb := &TrialBalance{
		AsOnDate:      asOn,
		FinancialYear: fy.Code,
		PeriodFrom:    period.From,
		PeriodTo:      period.To,
		Rows:          make([]TrialBalanceRow, len(balances)),
		Totals: TrialBalanceTotals{
			TotalDebit:    decimal.Zero,
			TotalCredit:   decimal.Zero,
			OpeningDebit:  decimal.Zero,
			OpeningCredit: decimal.Zero,
			ClosingDebit:  decimal.Zero,
			ClosingCredit: decimal.Zero,
		},
	}
	for i, b := range balances {
		tb.Rows[i] = TrialBalanceRow{
			LedgerID:       b.LedgerID,
			LedgerName:     b.LedgerName,
			AccountGroup:   b.Group,
			Nature:         b.Nature,
			OpeningBalance: b.Opening.Amount,
			OpeningSide:    b.Opening.Side,
			TotalDebit:     b.Debit,
			TotalCredit:    b.Credit,
			ClosingBalance: b.Closing.Amount,
			ClosingSide:    b.Closing.Side,
		}
		t := &tb.Totals
		t.TotalDebit = t.TotalDebit.Add(b.Debit)
		t.TotalCredit = t.TotalCredit.Add(b.Credit)
		if b.Opening.Side == models.Debit {
			t.OpeningDebit = t.OpeningDebit.Add(b.Opening.Amount)
		} else {
			t.OpeningCredit = t.OpeningCredit.Add(b.Opening.Amount)
		}
		if b.Closing.Side == models.Debit {
			t.ClosingDebit = t.ClosingDebit.Add(b.Closing.Amount)
		} else {
			t.ClosingCredit = t.ClosingCredit.Add(b.Closing.Amount)
		}
	}

	tb.Balanced = models.WithinTolerance(tb.Totals.TotalDebit, tb.Totals.TotalCredit)
	if !tb.Balanced {
		diff := tb.Totals.TotalDebit.Sub(tb.Totals.TotalCredit)
		tb.Alert = &IntegrityAlert{
			Report:        "trial_balance",
			AsOnDate:      asOn,
			FinancialYear: fy.Code,
			TotalDebit:    tb.Totals.TotalDebit,
			TotalCredit:   tb.Totals.TotalCredit,
			Difference:    diff,
			Message: fmt.Sprintf("trial balance for %s as on %s does not balance: debit %s, credit %s, difference %s",
				fy.Code, asOn, tb.Totals.TotalDebit.StringFixed(models.AmountPlaces),
				tb.Totals.TotalCredit.StringFixed(models.AmountPlaces), diff.StringFixed(models.AmountPlaces)),
		}
		g.raise(ctx, tb.Alert)
	}
	return tb, nil
}
