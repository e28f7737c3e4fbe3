package reports

import (
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/voucher-ledger/internal/models"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	headStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#5F5FD7", Dark: "#87AFFF"})
	totalStyle = lipgloss.NewStyle().Bold(true)
	alertStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.AdaptiveColor{Light: "#D70000", Dark: "#AF0000"}).
			Padding(0, 1)
	okStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00AF5F", Dark: "#00D787"})
)

// Renderer writes reports as aligned text tables. Styling is only applied
// when Styled is set, so output piped to files stays plain.
type Renderer struct {
	Styled bool
}

func (r Renderer) style(s lipgloss.Style, text string) string {
	if !r.Styled {
		return text
	}
	return s.Render(text)
}

type column struct {
	title string
	width int
	right bool
}

func (r Renderer) row(w io.Writer, cols []column, cells []string, s *lipgloss.Style) error {
	parts := make([]string, len(cols))
	for i, c := range cols {
		cell := runewidth.Truncate(cells[i], c.width, "…")
		if c.right {
			parts[i] = runewidth.FillLeft(cell, c.width)
		} else {
			parts[i] = runewidth.FillRight(cell, c.width)
		}
	}
	line := strings.Join(parts, "  ")
	if s != nil {
		line = r.style(*s, line)
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

func (r Renderer) header(w io.Writer, cols []column) error {
	titles := make([]string, len(cols))
	total := 0
	for i, c := range cols {
		titles[i] = c.title
		total += c.width
	}
	if err := r.row(w, cols, titles, &headStyle); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, strings.Repeat("─", total+2*(len(cols)-1)))
	return err
}

// Money formats an amount with thousands separators and two decimals.
func Money(d decimal.Decimal) string {
	sign := ""
	if d.Round(models.AmountPlaces).IsNegative() {
		sign, d = "-", d.Neg()
	}
	whole, frac, _ := strings.Cut(d.StringFixed(models.AmountPlaces), ".")
	n, _ := new(big.Int).SetString(whole, 10)
	return sign + humanize.BigComma(n) + "." + frac
}

func sided(d decimal.Decimal, side models.Side) string {
	if d.IsZero() {
		return "-"
	}
	return Money(d) + " " + string(side)
}

// TrialBalance renders tb. An integrity alert is printed as a banner above
// the table.
func (r Renderer) TrialBalance(w io.Writer, tb *TrialBalance) error {
	if tb.Alert != nil {
		if _, err := fmt.Fprintln(w, r.style(alertStyle, "INTEGRITY ALERT: "+tb.Alert.Message)); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	title := fmt.Sprintf("Trial Balance %s as on %s (period %s to %s)", tb.FinancialYear, tb.AsOnDate, tb.PeriodFrom, tb.PeriodTo)
	if _, err := fmt.Fprintln(w, r.style(titleStyle, title)); err != nil {
		return err
	}

	cols := []column{
		{title: "Ledger", width: 28},
		{title: "Group", width: 20},
		{title: "Opening", width: 16, right: true},
		{title: "Debit", width: 14, right: true},
		{title: "Credit", width: 14, right: true},
		{title: "Closing", width: 16, right: true},
	}
	if err := r.header(w, cols); err != nil {
		return err
	}
	for _, row := range tb.Rows {
		err := r.row(w, cols, []string{
			row.LedgerName,
			row.AccountGroup,
			sided(row.OpeningBalance, row.OpeningSide),
			Money(row.TotalDebit),
			Money(row.TotalCredit),
			sided(row.ClosingBalance, row.ClosingSide),
		}, nil)
		if err != nil {
			return err
		}
	}
	t := tb.Totals
	if err := r.row(w, cols, []string{"Total", "", "", Money(t.TotalDebit), Money(t.TotalCredit), ""}, &totalStyle); err != nil {
		return err
	}
	status := r.style(okStyle, "balanced")
	if !tb.Balanced {
		status = r.style(alertStyle, "NOT BALANCED")
	}
	_, err := fmt.Fprintf(w, "\nClosing Dr %s  Cr %s  %s\n", Money(t.ClosingDebit), Money(t.ClosingCredit), status)
	return err
}

// DayBook renders book.
func (r Renderer) DayBook(w io.Writer, book *DayBook) error {
	title := fmt.Sprintf("Day Book %s to %s", book.From, book.To)
	if book.TypeCode != "" {
		title += " (" + book.TypeCode + ")"
	}
	if _, err := fmt.Fprintln(w, r.style(titleStyle, title)); err != nil {
		return err
	}

	cols := []column{
		{title: "Date", width: 10},
		{title: "Type", width: 4},
		{title: "No.", width: 8},
		{title: "Ref", width: 12},
		{title: "Party", width: 22},
		{title: "Narration", width: 30},
		{title: "Amount", width: 14, right: true},
	}
	if err := r.header(w, cols); err != nil {
		return err
	}
	for _, e := range book.Entries {
		err := r.row(w, cols, []string{
			e.VoucherDate.String(),
			e.Abbreviation,
			e.VoucherNumber,
			e.ReferenceNumber,
			e.PartyName,
			e.Narration,
			Money(e.TotalAmount),
		}, nil)
		if err != nil {
			return err
		}
	}
	return r.row(w, cols, []string{"Total", "", "", "", "", fmt.Sprintf("%d vouchers", len(book.Entries)), Money(book.Total)}, &totalStyle)
}
