package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AmountPlaces is the number of decimal places money is kept at.
const AmountPlaces = 2

// Tolerance absorbs rounding when comparing debit and credit totals.
var Tolerance = decimal.New(1, -AmountPlaces)

// MaxAmount is the largest amount one entry may carry. Stores keep amounts as
// int64 minor units, and this bound leaves room to sum millions of entries.
var MaxAmount = decimal.RequireFromString("9999999999.99")

// DateLayout is the wire and storage format of voucher dates.
const DateLayout = "2006-01-02"

// Side is the debit or credit column of an entry or balance.
type Side string

const (
	Debit  Side = "Dr"
	Credit Side = "Cr"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Debit {
		return Credit
	}
	return Debit
}

func (s Side) Valid() bool {
	return s == Debit || s == Credit
}

// ParseSide accepts "Dr"/"Cr" as well as the spelled out forms.
func ParseSide(v string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "dr", "debit":
		return Debit, nil
	case "cr", "credit":
		return Credit, nil
	}
	return "", fmt.Errorf("invalid side %q", v)
}

// UnmarshalText lets YAML and JSON documents spell sides either way.
func (s *Side) UnmarshalText(b []byte) error {
	side, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = side
	return nil
}

// Nature classifies a ledger and decides which side is its normal balance.
type Nature string

const (
	Asset     Nature = "Asset"
	Liability Nature = "Liability"
	Income    Nature = "Income"
	Expense   Nature = "Expense"
)

// NormalSide is Debit for Asset and Expense ledgers and Credit otherwise.
func (n Nature) NormalSide() Side {
	switch n {
	case Asset, Expense:
		return Debit
	default:
		return Credit
	}
}

func (n Nature) Valid() bool {
	switch n {
	case Asset, Liability, Income, Expense:
		return true
	}
	return false
}

// SidedAmount is a non-negative magnitude tagged with the side it sits on.
type SidedAmount struct {
	Side   Side            `json:"side" yaml:"side"`
	Amount decimal.Decimal `json:"amount" yaml:"amount"`
}

// DebitPositive returns the amount signed so that debits are positive.
func (a SidedAmount) DebitPositive() decimal.Decimal {
	if a.Side == Credit {
		return a.Amount.Neg()
	}
	return a.Amount
}

// FromDebitPositive turns a signed value back into a magnitude and side.
// Zero is reported on the fallback side.
func FromDebitPositive(v decimal.Decimal, fallback Side) SidedAmount {
	switch v.Sign() {
	case 1:
		return SidedAmount{Side: Debit, Amount: v}
	case -1:
		return SidedAmount{Side: Credit, Amount: v.Neg()}
	}
	return SidedAmount{Side: fallback, Amount: decimal.Zero}
}

// RoundAmount normalises a money value to AmountPlaces.
func RoundAmount(v decimal.Decimal) decimal.Decimal {
	return v.Round(AmountPlaces)
}

// ToMinor converts a money value to integer minor units. v must not exceed
// MaxAmount.
func ToMinor(v decimal.Decimal) int64 {
	return RoundAmount(v).Shift(AmountPlaces).IntPart()
}

// FromMinor converts integer minor units back to a money value.
func FromMinor(v int64) decimal.Decimal {
	return decimal.New(v, -AmountPlaces)
}

// WithinTolerance reports whether a and b differ by at most Tolerance.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}

// Date is a calendar day. It marshals as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day in UTC.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(v string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(v))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", v)
	}
	return NewDate(t), nil
}

// MustDate is ParseDate for literals known to be valid.
func MustDate(v string) Date {
	d, err := ParseDate(v)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// AddDays returns the day n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{d.Time.AddDate(0, 0, n)}
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
