package memory

import (
	"context"
	"sort"
	"sync"

	interfaces "github.com/sheikh-saqib/voucher-ledger/internal/interfaces"
	"github.com/sheikh-saqib/voucher-ledger/internal/models"
)

// MemoryLedgerStore is an in-memory implementation of interfaces.LedgerStore.
// Vouchers are kept in posting order and never modified after they are appended.
type MemoryLedgerStore struct {
	mu sync.RWMutex // guards every field below

	vouchers   []models.Voucher // append-only journal
	byID       map[string]int   // voucher id -> index in vouchers
	byKey      map[string]int   // idempotency key -> index in vouchers
	counters   map[models.CounterKey]int64
	byLedger   map[string][]models.JournalEntry
	entryDates map[string]models.Date
}

// NewMemoryLedgerStore creates an empty store.
func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		byID:       make(map[string]int),
		byKey:      make(map[string]int),
		counters:   make(map[models.CounterKey]int64),
		byLedger:   make(map[string][]models.JournalEntry),
		entryDates: make(map[string]models.Date),
	}
}

// CreateVoucher assigns the next sequence and appends the voucher under a single
// lock, so numbering and the write are one atomic step.
func (m *MemoryLedgerStore) CreateVoucher(ctx context.Context, v models.Voucher) (models.Voucher, error) {
	if err := ctx.Err(); err != nil {
		return models.Voucher{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if v.IdempotencyKey != "" {
		if _, exists := m.byKey[v.IdempotencyKey]; exists {
			return models.Voucher{}, interfaces.ErrConflict
		}
	}
	if _, exists := m.byID[v.ID]; exists {
		return models.Voucher{}, interfaces.ErrConflict
	}

	key := models.CounterKey{TypeCode: v.TypeCode, FinancialYear: v.FinancialYear}
	m.counters[key]++
	v.Sequence = m.counters[key]

	// copy entries so later caller mutations can't reach stored state
	v.Entries = append([]models.JournalEntry(nil), v.Entries...)

	m.vouchers = append(m.vouchers, v)
	idx := len(m.vouchers) - 1
	m.byID[v.ID] = idx
	if v.IdempotencyKey != "" {
		m.byKey[v.IdempotencyKey] = idx
	}
	m.entryDates[v.ID] = v.Date
	for _, e := range v.Entries {
		m.byLedger[e.LedgerID] = append(m.byLedger[e.LedgerID], e)
	}
	return cloneVoucher(v), nil
}

func (m *MemoryLedgerStore) GetVoucher(ctx context.Context, id string) (models.Voucher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.byID[id]
	if !ok {
		return models.Voucher{}, interfaces.ErrNotFound
	}
	return cloneVoucher(m.vouchers[idx]), nil
}

func (m *MemoryLedgerStore) FindByIdempotencyKey(ctx context.Context, key string) (models.Voucher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.byKey[key]
	if !ok || key == "" {
		return models.Voucher{}, interfaces.ErrNotFound
	}
	return cloneVoucher(m.vouchers[idx]), nil
}

func (m *MemoryLedgerStore) ListVouchers(ctx context.Context, q models.VoucherQuery) ([]models.Voucher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []models.Voucher
	for _, v := range m.vouchers {
		if q.Matches(v) {
			result = append(result, cloneVoucher(v))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date.Time) {
			return result[i].Date.Before(result[j].Date)
		}
		if result[i].Sequence != result[j].Sequence {
			return result[i].Sequence < result[j].Sequence
		}
		return result[i].TypeCode < result[j].TypeCode
	})
	return result, ctx.Err()
}

func (m *MemoryLedgerStore) LedgerMovement(ctx context.Context, ledgerID string, from, to models.Date) (models.Movement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := models.VoucherQuery{From: from, To: to}
	var mv models.Movement
	for _, e := range m.byLedger[ledgerID] {
		if q.Matches(models.Voucher{Date: m.entryDates[e.VoucherID]}) {
			mv = mv.Add(e)
		}
	}
	return mv, ctx.Err()
}

func (m *MemoryLedgerStore) LedgerMovements(ctx context.Context, from, to models.Date) (map[string]models.PeriodMovement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]models.PeriodMovement)
	for ledgerID, entries := range m.byLedger {
		for _, e := range entries {
			date := m.entryDates[e.VoucherID]
			if !to.IsZero() && date.After(to) {
				continue
			}
			pm := result[ledgerID]
			if !from.IsZero() && date.Before(from) {
				pm.Prior = pm.Prior.Add(e)
			} else {
				pm.Period = pm.Period.Add(e)
			}
			result[ledgerID] = pm
		}
	}
	return result, ctx.Err()
}

func (m *MemoryLedgerStore) HasEntries(ctx context.Context, ledgerID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byLedger[ledgerID]) > 0, nil
}

func cloneVoucher(v models.Voucher) models.Voucher {
	v.Entries = append([]models.JournalEntry(nil), v.Entries...)
	return v
}

// Compile-time check: ensure MemoryLedgerStore implements LedgerStore interface
var _ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
