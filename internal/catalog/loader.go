package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/sheikh-saqib/voucher-ledger/internal/models"
)

// File is the YAML layout of a catalog document.
type File struct {
	AccountGroups  []models.AccountGroup `yaml:"account_groups"`
	Ledgers        []LedgerSpec          `yaml:"ledgers"`
	VoucherTypes   []models.VoucherType  `yaml:"voucher_types"`
	CostCenters    []models.CostCenter   `yaml:"cost_centers"`
	FinancialYears []FinancialYearSpec   `yaml:"financial_years"`
}

type LedgerSpec struct {
	ID          string          `yaml:"id"`
	Name        string          `yaml:"name"`
	Group       string          `yaml:"group"`
	Opening     decimal.Decimal `yaml:"opening_balance"`
	OpeningSide string          `yaml:"opening_side"`
	CreatedAt   string          `yaml:"created_at"`
}

// Dates are plain strings so YAML timestamp resolution never gets involved.
type FinancialYearSpec struct {
	Code  string `yaml:"code"`
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// LoadFile reads and parses a catalog YAML file.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	snap, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}

// Parse builds a snapshot from a YAML document, rejecting unknown fields and
// inconsistent references.
func Parse(data []byte) (*Snapshot, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return Build(f)
}

// Build validates a File and turns it into a snapshot.
func Build(f File) (*Snapshot, error) {
	snap := newSnapshot()
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	for _, g := range f.AccountGroups {
		switch {
		case g.Name == "":
			addf("account group without a name")
		case !g.Nature.Valid():
			addf("account group %q: invalid nature %q", g.Name, g.Nature)
		case hasKey(snap.groups, g.Name):
			addf("account group %q defined twice", g.Name)
		default:
			snap.groups[g.Name] = g
		}
	}

	for _, spec := range f.Ledgers {
		l, err := buildLedger(spec, snap.groups)
		if err != nil {
			addf("%v", err)
			continue
		}
		if hasKey(snap.ledgers, l.ID) {
			addf("ledger %q defined twice", l.ID)
			continue
		}
		snap.ledgers[l.ID] = l
	}

	for _, vt := range f.VoucherTypes {
		vt.Abbreviation = strings.ToUpper(strings.TrimSpace(vt.Abbreviation))
		switch {
		case vt.Code == "":
			addf("voucher type without a code")
		case len(vt.Abbreviation) < 2 || len(vt.Abbreviation) > 3:
			addf("voucher type %q: abbreviation %q must be 2 or 3 letters", vt.Code, vt.Abbreviation)
		case hasKey(snap.voucherTypes, vt.Code):
			addf("voucher type %q defined twice", vt.Code)
		default:
			if vt.NumberWidth <= 0 {
				vt.NumberWidth = models.DefaultNumberWidth
			}
			snap.voucherTypes[vt.Code] = vt
		}
	}

	for _, cc := range f.CostCenters {
		if cc.ID == "" || hasKey(snap.costCenters, cc.ID) {
			addf("cost center %q is empty or duplicated", cc.ID)
			continue
		}
		snap.costCenters[cc.ID] = cc
	}

	for _, spec := range f.FinancialYears {
		fy, err := buildFinancialYear(spec)
		if err != nil {
			addf("%v", err)
			continue
		}
		if hasKey(snap.financialYears, fy.Code) {
			addf("financial year %q defined twice", fy.Code)
			continue
		}
		snap.financialYears[fy.Code] = fy
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid catalog: %s", strings.Join(problems, "; "))
	}
	snap.order()
	return snap, nil
}

func buildLedger(spec LedgerSpec, groups map[string]models.AccountGroup) (models.Ledger, error) {
	if spec.ID == "" || spec.Name == "" {
		return models.Ledger{}, fmt.Errorf("ledger %q needs an id and a name", spec.ID)
	}
	group, ok := groups[spec.Group]
	if !ok {
		return models.Ledger{}, fmt.Errorf("ledger %q: unknown account group %q", spec.ID, spec.Group)
	}
	if spec.Opening.IsNegative() {
		return models.Ledger{}, fmt.Errorf("ledger %q: opening balance must not be negative, use opening_side", spec.ID)
	}

	side := group.Nature.NormalSide()
	if spec.OpeningSide != "" {
		parsed, err := models.ParseSide(spec.OpeningSide)
		if err != nil {
			return models.Ledger{}, fmt.Errorf("ledger %q: %w", spec.ID, err)
		}
		side = parsed
	}

	var created time.Time
	if spec.CreatedAt != "" {
		t, err := time.Parse(time.RFC3339, spec.CreatedAt)
		if err != nil {
			return models.Ledger{}, fmt.Errorf("ledger %q: invalid created_at: %w", spec.ID, err)
		}
		created = t
	}

	return models.Ledger{
		ID:        spec.ID,
		Name:      spec.Name,
		Group:     group.Name,
		Nature:    group.Nature,
		Opening:   models.SidedAmount{Side: side, Amount: models.RoundAmount(spec.Opening)},
		CreatedAt: created,
	}, nil
}

func buildFinancialYear(spec FinancialYearSpec) (models.FinancialYear, error) {
	if spec.Code == "" {
		return models.FinancialYear{}, errors.New("financial year without a code")
	}
	start, err := models.ParseDate(spec.Start)
	if err != nil {
		return models.FinancialYear{}, fmt.Errorf("financial year %q: %w", spec.Code, err)
	}
	end, err := models.ParseDate(spec.End)
	if err != nil {
		return models.FinancialYear{}, fmt.Errorf("financial year %q: %w", spec.Code, err)
	}
	if end.Before(start) {
		return models.FinancialYear{}, fmt.Errorf("financial year %q ends before it starts", spec.Code)
	}
	return models.FinancialYear{Code: spec.Code, Start: start, End: end}, nil
}

func hasKey[V any](m map[string]V, k string) bool {
	_, ok := m[k]
	return ok
}
