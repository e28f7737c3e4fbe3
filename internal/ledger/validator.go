package ledger

import (
	"strings"

	"github.com/shopspring/decimal"

	interfaces "github.com/sheikh-saqib/voucher-ledger/internal/interfaces"
	"github.com/sheikh-saqib/voucher-ledger/internal/models"
)

// EntryRequest is one proposed line. Exactly one of DebitAmount and
// CreditAmount must be non-zero.
type EntryRequest struct {
	LedgerID     string          `json:"ledger_id"`
	DebitAmount  decimal.Decimal `json:"debit_amount"`
	CreditAmount decimal.Decimal `json:"credit_amount"`
	Narration    string          `json:"narration,omitempty"`
	CostCenterID string          `json:"cost_center_id,omitempty"`
}

// VoucherRequest is a proposed voucher as submitted by a client.
type VoucherRequest struct {
	TypeCode        string         `json:"voucher_type_code"`
	Date            models.Date    `json:"voucher_date"`
	ReferenceNumber string         `json:"reference_number,omitempty"`
	ReferenceDate   models.Date    `json:"reference_date"`
	PartyLedgerID   string         `json:"party_ledger_id,omitempty"`
	Narration       string         `json:"narration,omitempty"`
	FinancialYear   string         `json:"financial_year"`
	Entries         []EntryRequest `json:"entries"`

	IdempotencyKey string `json:"-"`
	CreatedBy      string `json:"-"`
}

// Validator enforces the structural and double-entry rules on a proposed
// voucher. It has no side effects and is safe for concurrent use.
type Validator struct {
	catalog interfaces.Catalog
}

func NewValidator(catalog interfaces.Catalog) *Validator {
	return &Validator{catalog: catalog}
}

// Validate runs the checks in a fixed order and returns the first failure as
// a *ValidationError. On success the voucher has tagged entries and is ready
// for posting; identity and numbering are left to the posting engine.
func (val *Validator) Validate(req VoucherRequest) (models.Voucher, error) {
	typeCode := strings.TrimSpace(req.TypeCode)
	if _, ok := val.catalog.VoucherType(typeCode); !ok {
		return models.Voucher{}, newValidationError(ReasonUnknownVoucherType, "voucher type %q is not defined", req.TypeCode)
	}

	if err := val.checkHeader(req); err != nil {
		return models.Voucher{}, err
	}

	withLedger := 0
	for _, e := range req.Entries {
		if strings.TrimSpace(e.LedgerID) != "" {
			withLedger++
		}
	}
	if withLedger < 2 {
		return models.Voucher{}, newValidationError(ReasonInsufficientEntries, "got %d entries with a ledger", withLedger)
	}

	entries := make([]models.JournalEntry, len(req.Entries))
	for i, e := range req.Entries {
		side, amount, err := entrySide(i, e)
		if err != nil {
			return models.Voucher{}, err
		}
		entries[i] = models.JournalEntry{
			Line:         i + 1,
			LedgerID:     strings.TrimSpace(e.LedgerID),
			Side:         side,
			Amount:       amount,
			CostCenterID: strings.TrimSpace(e.CostCenterID),
			Narration:    strings.TrimSpace(e.Narration),
		}
	}

	for i, e := range entries {
		if _, ok := val.catalog.Ledger(e.LedgerID); !ok {
			verr := newValidationError(ReasonUnknownLedger, "entry %d references ledger %q", i+1, e.LedgerID)
			verr.EntryIndex = i
			verr.LedgerID = e.LedgerID
			return models.Voucher{}, verr
		}
	}
	party := strings.TrimSpace(req.PartyLedgerID)
	if party != "" {
		if _, ok := val.catalog.Ledger(party); !ok {
			verr := newValidationError(ReasonUnknownLedger, "party ledger %q", party)
			verr.LedgerID = party
			return models.Voucher{}, verr
		}
	}
	for i, e := range entries {
		if e.CostCenterID == "" {
			continue
		}
		if _, ok := val.catalog.CostCenter(e.CostCenterID); !ok {
			verr := newValidationError(ReasonUnknownCostCenter, "entry %d references cost center %q", i+1, e.CostCenterID)
			verr.EntryIndex = i
			return models.Voucher{}, verr
		}
	}

	v := models.Voucher{
		TypeCode:        typeCode,
		Date:            req.Date,
		ReferenceNumber: strings.TrimSpace(req.ReferenceNumber),
		ReferenceDate:   req.ReferenceDate,
		PartyLedgerID:   party,
		Narration:       strings.TrimSpace(req.Narration),
		FinancialYear:   strings.TrimSpace(req.FinancialYear),
		IdempotencyKey:  req.IdempotencyKey,
		CreatedBy:       req.CreatedBy,
		Entries:         entries,
	}

	debit, credit := v.Totals()
	if !models.WithinTolerance(debit, credit) {
		diff := debit.Sub(credit)
		verr := newValidationError(ReasonUnbalancedVoucher, "debit %s, credit %s, difference %s",
			debit.StringFixed(models.AmountPlaces), credit.StringFixed(models.AmountPlaces), diff.StringFixed(models.AmountPlaces))
		verr.Difference = diff
		verr.TotalDebit = debit
		verr.TotalCredit = credit
		return models.Voucher{}, verr
	}

	return v, nil
}

func (val *Validator) checkHeader(req VoucherRequest) error {
	if req.Date.IsZero() {
		return newValidationError(ReasonInvalidVoucherHeader, "voucher date is required")
	}
	fyCode := strings.TrimSpace(req.FinancialYear)
	if fyCode == "" {
		return newValidationError(ReasonInvalidVoucherHeader, "financial year is required")
	}
	fy, ok := val.catalog.FinancialYear(fyCode)
	if !ok {
		return newValidationError(ReasonInvalidVoucherHeader, "financial year %q is not defined", fyCode)
	}
	if !fy.Contains(req.Date) {
		return newValidationError(ReasonInvalidVoucherHeader, "voucher date %s is outside financial year %s (%s to %s)",
			req.Date, fy.Code, fy.Start, fy.End)
	}
	return nil
}

// entrySide collapses the two amount columns into a tagged amount.
func entrySide(i int, e EntryRequest) (models.Side, decimal.Decimal, error) {
	debit := models.RoundAmount(e.DebitAmount)
	credit := models.RoundAmount(e.CreditAmount)

	fail := func(reason Reason, format string, args ...any) (models.Side, decimal.Decimal, error) {
		verr := newValidationError(reason, format, args...)
		verr.EntryIndex = i
		verr.LedgerID = e.LedgerID
		return "", decimal.Zero, verr
	}

	side, amount := models.Debit, debit
	switch {
	case debit.IsNegative() || credit.IsNegative():
		return fail(ReasonAmbiguousEntrySide, "entry %d has a negative amount", i+1)
	case !debit.IsZero() && !credit.IsZero():
		return fail(ReasonAmbiguousEntrySide, "entry %d has both debit and credit", i+1)
	case debit.IsZero() && credit.IsZero():
		return fail(ReasonAmbiguousEntrySide, "entry %d has neither debit nor credit", i+1)
	case debit.IsZero():
		side, amount = models.Credit, credit
	}

	if amount.GreaterThan(models.MaxAmount) {
		return fail(ReasonAmountOutOfRange, "entry %d amount %s exceeds %s",
			i+1, amount.StringFixed(models.AmountPlaces), models.MaxAmount.StringFixed(models.AmountPlaces))
	}
	return side, amount, nil
}
