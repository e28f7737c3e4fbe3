package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Reason names the rule a rejected voucher broke. The values are part of the
// API contract and are returned verbatim to clients.
type Reason string

const (
	ReasonUnknownVoucherType   Reason = "UnknownVoucherType"
	ReasonInvalidVoucherHeader Reason = "InvalidVoucherHeader"
	ReasonInsufficientEntries  Reason = "InsufficientEntries"
	ReasonAmbiguousEntrySide   Reason = "AmbiguousEntrySide"
	ReasonAmountOutOfRange     Reason = "AmountOutOfRange"
	ReasonUnknownLedger        Reason = "UnknownLedger"
	ReasonUnknownCostCenter    Reason = "UnknownCostCenter"
	ReasonUnbalancedVoucher    Reason = "UnbalancedVoucher"
)

var (
	ErrUnknownVoucherType   = errors.New("unknown voucher type")
	ErrInvalidVoucherHeader = errors.New("invalid voucher header")
	ErrInsufficientEntries  = errors.New("voucher needs at least two entries")
	ErrAmbiguousEntrySide   = errors.New("entry must carry exactly one of debit or credit")
	ErrAmountOutOfRange     = errors.New("entry amount exceeds the maximum")
	ErrUnknownLedger        = errors.New("unknown ledger")
	ErrUnknownCostCenter    = errors.New("unknown cost center")
	ErrUnbalancedVoucher    = errors.New("voucher debits and credits do not balance")

	// ErrConcurrencyConflict means voucher numbering kept losing races and the
	// post was abandoned. Nothing was written; the caller may retry later.
	ErrConcurrencyConflict = errors.New("voucher number conflict")

	ErrInvalidPeriod = errors.New("invalid period")
)

var reasonErrors = map[Reason]error{
	ReasonUnknownVoucherType:   ErrUnknownVoucherType,
	ReasonInvalidVoucherHeader: ErrInvalidVoucherHeader,
	ReasonInsufficientEntries:  ErrInsufficientEntries,
	ReasonAmbiguousEntrySide:   ErrAmbiguousEntrySide,
	ReasonAmountOutOfRange:     ErrAmountOutOfRange,
	ReasonUnknownLedger:        ErrUnknownLedger,
	ReasonUnknownCostCenter:    ErrUnknownCostCenter,
	ReasonUnbalancedVoucher:    ErrUnbalancedVoucher,
}

// ValidationError is a voucher rejection. It never reaches storage and carries
// enough detail for the caller to correct and resubmit.
type ValidationError struct {
	Reason  Reason
	Details string

	// EntryIndex is the zero-based offending entry, or -1.
	EntryIndex int
	LedgerID   string

	// Set for ReasonUnbalancedVoucher. Difference is debit minus credit.
	Difference  decimal.Decimal
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

func newValidationError(reason Reason, format string, args ...any) *ValidationError {
	return &ValidationError{
		Reason:     reason,
		Details:    fmt.Sprintf(format, args...),
		EntryIndex: -1,
	}
}

func (e *ValidationError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Unwrap().Error(), e.Details)
	}
	return e.Unwrap().Error()
}

// Unwrap exposes the sentinel for the reason so errors.Is works.
func (e *ValidationError) Unwrap() error {
	if err, ok := reasonErrors[e.Reason]; ok {
		return err
	}
	return errors.New(string(e.Reason))
}

// PersistenceError is a fatal storage failure for one request. The voucher
// was not created and no entries exist for it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
