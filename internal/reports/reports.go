// Package reports derives the Trial Balance and Day Book from posted vouchers.
// Reports are read-only: cancelling one mid-way leaves nothing behind.
package reports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	interfaces "github.com/sheikh-saqib/voucher-ledger/internal/interfaces"
	"github.com/sheikh-saqib/voucher-ledger/internal/ledger"
	"github.com/sheikh-saqib/voucher-ledger/internal/models"
	"github.com/sheikh-saqib/voucher-ledger/internal/models/events"
)

const TopicIntegrityAlert = "ledger.integrity_alert"

var (
	ErrInvalidQuery         = errors.New("invalid report query")
	ErrUnknownFinancialYear = errors.New("unknown financial year")
	ErrUnknownVoucherType   = errors.New("unknown voucher type")
)

// Source is what the generators read from. *ledger.Ledger implements it.
type Source interface {
	Catalog() interfaces.Catalog
	Balances(ctx context.Context, p ledger.Period) ([]ledger.LedgerBalance, error)
	ListVouchers(ctx context.Context, q models.VoucherQuery) ([]models.Voucher, error)
}

type Options struct {
	AlertTopic string
	Logger     *slog.Logger
	Now        func() time.Time
}

// Generator builds reports. It holds no per-report state.
type Generator struct {
	src        Source
	publisher  interfaces.EventPublisher
	alertTopic string
	log        *slog.Logger
	now        func() time.Time
}

// NewGenerator returns a report generator. publisher may be nil.
func NewGenerator(src Source, publisher interfaces.EventPublisher, opts Options) *Generator {
	g := &Generator{
		src:        src,
		publisher:  publisher,
		alertTopic: opts.AlertTopic,
		log:        opts.Logger,
		now:        opts.Now,
	}
	if g.alertTopic == "" {
		g.alertTopic = TopicIntegrityAlert
	}
	if g.log == nil {
		g.log = slog.Default()
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g
}

// IntegrityAlert reports that grand-total debits and credits disagree. Every
// posted voucher balances on its own, so a mismatch means history is corrupt.
type IntegrityAlert struct {
	Report        string          `json:"report"`
	AsOnDate      models.Date     `json:"as_on_date"`
	FinancialYear string          `json:"financial_year"`
	TotalDebit    decimal.Decimal `json:"total_debit"`
	TotalCredit   decimal.Decimal `json:"total_credit"`
	Difference    decimal.Decimal `json:"difference"`
	Message       string          `json:"message"`
}

func (a *IntegrityAlert) Error() string {
	return a.Message
}

func (g *Generator) raise(ctx context.Context, alert *IntegrityAlert) {
	g.log.Error("ledger integrity alert",
		"report", alert.Report,
		"as_on_date", alert.AsOnDate.String(),
		"financial_year", alert.FinancialYear,
		"total_debit", alert.TotalDebit.StringFixed(models.AmountPlaces),
		"total_credit", alert.TotalCredit.StringFixed(models.AmountPlaces),
		"difference", alert.Difference.StringFixed(models.AmountPlaces))

	if g.publisher == nil {
		return
	}
	event := events.IntegrityAlertRaised{
		Report:        alert.Report,
		AsOnDate:      alert.AsOnDate.String(),
		FinancialYear: alert.FinancialYear,
		TotalDebit:    alert.TotalDebit,
		TotalCredit:   alert.TotalCredit,
		Difference:    alert.Difference,
		OccurredAt:    g.now().UTC(),
	}
	key := fmt.Sprintf("%s/%s", alert.FinancialYear, alert.AsOnDate)
	if err := g.publisher.Publish(ctx, g.alertTopic, key, event); err != nil {
		g.log.Error("failed to publish integrity alert", "topic", g.alertTopic, "error", err)
	}
}
