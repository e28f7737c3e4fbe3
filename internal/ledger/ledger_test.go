package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/voucher-ledger/internal/catalog/catalogtest"
	interfaces "github.com/sheikh-saqib/voucher-ledger/internal/interfaces"
	"github.com/sheikh-saqib/voucher-ledger/internal/models"
	"github.com/sheikh-saqib/voucher-ledger/internal/models/events"
	"github.com/sheikh-saqib/voucher-ledger/internal/storage/memory"
)

// flakyStore fails the first conflicts CreateVoucher calls with ErrConflict,
// or every call with err when set.
type flakyStore struct {
	*memory.MemoryLedgerStore

	mu        sync.Mutex
	conflicts int
	err       error
	calls     int
}

func (f *flakyStore) CreateVoucher(ctx context.Context, v models.Voucher) (models.Voucher, error) {
	f.mu.Lock()
	f.calls++
	if f.err != nil {
		f.mu.Unlock()
		return models.Voucher{}, f.err
	}
	if f.conflicts > 0 {
		f.conflicts--
		f.mu.Unlock()
		return models.Voucher{}, interfaces.ErrConflict
	}
	f.mu.Unlock()
	return f.MemoryLedgerStore.CreateVoucher(ctx, v)
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []any
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return p.err
}

func newTestLedger(t *testing.T, store interfaces.LedgerStore, pub interfaces.EventPublisher) *Ledger {
	t.Helper()
	return NewLedger(store, catalogtest.Farm(t), pub, Options{
		Backoff: time.Microsecond,
		Now:     func() time.Time { return time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC) },
	})
}

func TestPostVoucher(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	l := newTestLedger(t, memory.NewMemoryLedgerStore(), pub)

	res, err := l.PostVoucher(ctx, request("RCT", "2025-04-10", dr("cash", "1000"), cr("sales", "1000")))
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.NotEmpty(t, res.Voucher.ID)
	assert.Equal(t, int64(1), res.Voucher.Sequence)
	assert.Equal(t, "0001", res.Voucher.Number)
	for _, e := range res.Voucher.Entries {
		assert.Equal(t, res.Voucher.ID, e.VoucherID)
		assert.NotEmpty(t, e.ID)
	}

	second, err := l.PostVoucher(ctx, request("RCT", "2025-04-11", dr("cash", "5"), cr("sales", "5")))
	require.NoError(t, err)
	assert.Equal(t, "0002", second.Voucher.Number)

	stored, err := l.GetVoucher(ctx, res.Voucher.ID)
	require.NoError(t, err)
	assert.Equal(t, "0001", stored.Number)

	require.Len(t, pub.events, 2)
	assert.Equal(t, TopicVoucherPosted, pub.topics[0])
	posted, ok := pub.events[0].(events.VoucherPosted)
	require.True(t, ok)
	assert.Equal(t, res.Voucher.ID, posted.VoucherID)
	assert.Equal(t, "2025-04-10", posted.VoucherDate)
	assert.Equal(t, "1000.00", posted.TotalAmount.StringFixed(2))
	assert.Equal(t, 2, posted.EntryCount)
}

func TestPostVoucherRejectsBeforeStorage(t *testing.T) {
	store := &flakyStore{MemoryLedgerStore: memory.NewMemoryLedgerStore()}
	l := newTestLedger(t, store, nil)

	_, err := l.PostVoucher(context.Background(), request("JV", "2025-04-10",
		EntryRequest{LedgerID: "cash", DebitAmount: dec("5"), CreditAmount: dec("5")}, cr("sales", "5")))

	assertRejected(t, err, ReasonAmbiguousEntrySide)
	assert.Zero(t, store.calls)
}

func TestPostVoucherRetriesConflicts(t *testing.T) {
	store := &flakyStore{MemoryLedgerStore: memory.NewMemoryLedgerStore(), conflicts: 2}
	l := newTestLedger(t, store, nil)

	res, err := l.PostVoucher(context.Background(), request("PMT", "2025-04-10", dr("feed", "40"), cr("cash", "40")))
	require.NoError(t, err)
	assert.Equal(t, 3, store.calls)
	assert.Equal(t, int64(1), res.Voucher.Sequence)
}

func TestPostVoucherGivesUp(t *testing.T) {
	store := &flakyStore{MemoryLedgerStore: memory.NewMemoryLedgerStore(), conflicts: 100}
	l := newTestLedger(t, store, nil)

	_, err := l.PostVoucher(context.Background(), request("PMT", "2025-04-10", dr("feed", "40"), cr("cash", "40")))
	require.ErrorIs(t, err, ErrConcurrencyConflict)
	assert.Equal(t, DefaultMaxAttempts, store.calls)

	vouchers, err := l.ListVouchers(context.Background(), models.VoucherQuery{})
	require.NoError(t, err)
	assert.Empty(t, vouchers)
}

func TestPostVoucherPersistenceError(t *testing.T) {
	boom := errors.New("disk full")
	store := &flakyStore{MemoryLedgerStore: memory.NewMemoryLedgerStore(), err: boom}
	l := newTestLedger(t, store, nil)

	_, err := l.PostVoucher(context.Background(), request("PMT", "2025-04-10", dr("feed", "40"), cr("cash", "40")))

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, store.calls, "only conflicts are retried")
}

func TestPostVoucherIdempotent(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	l := newTestLedger(t, memory.NewMemoryLedgerStore(), pub)

	req := request("SAL", "2025-04-12", dr("debtors", "250"), cr("sales", "250"))
	req.IdempotencyKey = "order-17"

	first, err := l.PostVoucher(ctx, req)
	require.NoError(t, err)
	again, err := l.PostVoucher(ctx, req)
	require.NoError(t, err)

	assert.False(t, first.Replayed)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Voucher.ID, again.Voucher.ID)
	assert.Equal(t, first.Voucher.Number, again.Voucher.Number)
	assert.Len(t, pub.events, 1, "a replay publishes nothing")

	mv, err := l.store.LedgerMovement(ctx, "sales", models.Date{}, models.Date{})
	require.NoError(t, err)
	assert.Equal(t, "250.00", mv.Credit.StringFixed(2))
}

func TestPostVoucherIdempotentRace(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, memory.NewMemoryLedgerStore(), nil)

	req := request("SAL", "2025-04-12", dr("debtors", "250"), cr("sales", "250"))
	req.IdempotencyKey = "order-18"

	const n = 8
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.PostVoucher(ctx, req)
			if assert.NoError(t, err) {
				ids[i] = res.Voucher.ID
			}
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	vouchers, err := l.ListVouchers(ctx, models.VoucherQuery{})
	require.NoError(t, err)
	assert.Len(t, vouchers, 1)
}

func TestPostVoucherPublishFailureKeepsVoucher(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	l := newTestLedger(t, memory.NewMemoryLedgerStore(), pub)

	res, err := l.PostVoucher(context.Background(), request("PMT", "2025-04-10", dr("feed", "40"), cr("cash", "40")))
	require.NoError(t, err)

	_, err = l.GetVoucher(context.Background(), res.Voucher.ID)
	assert.NoError(t, err)
}

func TestConcurrentPostsNumberUniquely(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, memory.NewMemoryLedgerStore(), nil)

	const n = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = make(map[string]bool)
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.PostVoucher(ctx, request("RCT", "2025-05-01", dr("cash", "1"), cr("sales", "1")))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			numbers[res.Voucher.Number] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, numbers, n)
	assert.True(t, numbers["0001"])
	assert.True(t, numbers["0050"])
}

func TestVoucherDetail(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, memory.NewMemoryLedgerStore(), nil)

	req := request("PUR", "2025-04-20", dr("purchases", "900"), cr("creditors", "900"))
	req.PartyLedgerID = "creditors"
	req.Narration = "layer mash"
	req.Entries[0].CostCenterID = "barn"
	req.Entries[1].Narration = "due in 30 days"
	res, err := l.PostVoucher(ctx, req)
	require.NoError(t, err)

	d, err := l.VoucherDetail(ctx, res.Voucher.ID)
	require.NoError(t, err)

	assert.Equal(t, "Purchase", d.TypeName)
	assert.Equal(t, "PUR", d.Abbreviation)
	assert.Equal(t, "0001", d.Number)
	assert.Equal(t, "Sundry Creditors", d.PartyName)
	assert.Equal(t, "2025-04-10T09:00:00Z", d.CreatedAt)
	require.Len(t, d.Entries, 2)
	assert.Equal(t, "Purchases", d.Entries[0].LedgerName)
	assert.Equal(t, "Layer Barn", d.Entries[0].CostCenterName)
	assert.Equal(t, "layer mash", d.Entries[0].Narration, "falls back to the voucher narration")
	assert.Equal(t, "due in 30 days", d.Entries[1].Narration)
	assert.True(t, d.Entries[1].CreditAmount.Equal(dec("900")))
	assert.True(t, d.Entries[1].DebitAmount.IsZero())

	_, err = l.VoucherDetail(ctx, "missing")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}
