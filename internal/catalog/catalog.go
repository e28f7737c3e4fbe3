// Package catalog holds the master data the accounting core reads: account
// groups, ledgers, voucher types, cost centers and financial years.
//
// The data is owned by the master-data modules and is read-only here. A
// Catalog serves an immutable snapshot that is swapped atomically when the
// backing file changes, so readers never see a half-applied reload.
package catalog

import (
	"sort"
	"sync/atomic"

	interfaces "github.com/sheikh-saqib/voucher-ledger/internal/interfaces"
	"github.com/sheikh-saqib/voucher-ledger/internal/models"
)

// Snapshot is one consistent version of the master data.
type Snapshot struct {
	groups         map[string]models.AccountGroup
	ledgers        map[string]models.Ledger
	ordered        []models.Ledger
	voucherTypes   map[string]models.VoucherType
	costCenters    map[string]models.CostCenter
	financialYears map[string]models.FinancialYear
}

func newSnapshot() *Snapshot {
	return &Snapshot{
		groups:         make(map[string]models.AccountGroup),
		ledgers:        make(map[string]models.Ledger),
		voucherTypes:   make(map[string]models.VoucherType),
		costCenters:    make(map[string]models.CostCenter),
		financialYears: make(map[string]models.FinancialYear),
	}
}

// order sorts ledgers by group then name for reports.
func (s *Snapshot) order() {
	s.ordered = make([]models.Ledger, 0, len(s.ledgers))
	for _, l := range s.ledgers {
		s.ordered = append(s.ordered, l)
	}
	sort.Slice(s.ordered, func(i, j int) bool {
		a, b := s.ordered[i], s.ordered[j]
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
}

// LedgerIDs lists every ledger id in the snapshot.
func (s *Snapshot) LedgerIDs() []string {
	ids := make([]string, 0, len(s.ordered))
	for _, l := range s.ordered {
		ids = append(ids, l.ID)
	}
	return ids
}

// Catalog serves lookups from the current snapshot.
type Catalog struct {
	current atomic.Pointer[Snapshot]
}

// New returns a catalog serving snap.
func New(snap *Snapshot) *Catalog {
	c := &Catalog{}
	c.current.Store(snap)
	return c
}

// Snapshot returns the snapshot currently being served.
func (c *Catalog) Snapshot() *Snapshot {
	return c.current.Load()
}

// Replace swaps in a new snapshot.
func (c *Catalog) Replace(snap *Snapshot) {
	c.current.Store(snap)
}

func (c *Catalog) Ledger(id string) (models.Ledger, bool) {
	l, ok := c.current.Load().ledgers[id]
	return l, ok
}

func (c *Catalog) Ledgers() []models.Ledger {
	ordered := c.current.Load().ordered
	out := make([]models.Ledger, len(ordered))
	copy(out, ordered)
	return out
}

func (c *Catalog) AccountGroup(name string) (models.AccountGroup, bool) {
	g, ok := c.current.Load().groups[name]
	return g, ok
}

func (c *Catalog) VoucherType(code string) (models.VoucherType, bool) {
	vt, ok := c.current.Load().voucherTypes[code]
	return vt, ok
}

func (c *Catalog) CostCenter(id string) (models.CostCenter, bool) {
	cc, ok := c.current.Load().costCenters[id]
	return cc, ok
}

func (c *Catalog) FinancialYear(code string) (models.FinancialYear, bool) {
	fy, ok := c.current.Load().financialYears[code]
	return fy, ok
}

var _ interfaces.Catalog = (*Catalog)(nil)
