package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	interfaces "github.com/sheikh-saqib/voucher-ledger/internal/interfaces"
	"github.com/sheikh-saqib/voucher-ledger/internal/models"
	"github.com/sheikh-saqib/voucher-ledger/internal/models/events"
)

const (
	DefaultMaxAttempts = 5
	DefaultBackoff     = 10 * time.Millisecond
	TopicVoucherPosted = "voucher.posted"
)

// Options tunes the posting engine. Zero values fall back to defaults.
type Options struct {
	MaxAttempts int
	Backoff     time.Duration
	PostedTopic string
	Logger      *slog.Logger
	Now         func() time.Time
}

// Ledger is the accounting core: it validates and posts vouchers and derives
// balances from the persisted journal. It keeps no mutable state of its own;
// voucher numbering is owned by the store.
type Ledger struct {
	store     interfaces.LedgerStore
	catalog   interfaces.Catalog
	publisher interfaces.EventPublisher
	validator *Validator

	maxAttempts int
	backoff     time.Duration
	topic       string
	log         *slog.Logger
	now         func() time.Time
}

// NewLedger wires the core to its store, master data and event sink.
// publisher may be nil.
func NewLedger(store interfaces.LedgerStore, catalog interfaces.Catalog, publisher interfaces.EventPublisher, opts Options) *Ledger {
	l := &Ledger{
		store:       store,
		catalog:     catalog,
		publisher:   publisher,
		validator:   NewValidator(catalog),
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
		topic:       opts.PostedTopic,
		log:         opts.Logger,
		now:         opts.Now,
	}
	if l.maxAttempts <= 0 {
		l.maxAttempts = DefaultMaxAttempts
	}
	if l.backoff <= 0 {
		l.backoff = DefaultBackoff
	}
	if l.topic == "" {
		l.topic = TopicVoucherPosted
	}
	if l.log == nil {
		l.log = slog.Default()
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// Catalog exposes the master data the ledger was built with.
func (l *Ledger) Catalog() interfaces.Catalog {
	return l.catalog
}

// Validate runs the voucher rules without touching storage. Clients use it for
// advisory pre-validation; PostVoucher always runs it again.
func (l *Ledger) Validate(req VoucherRequest) (models.Voucher, error) {
	return l.validator.Validate(req)
}

// PostResult is the outcome of a successful post.
type PostResult struct {
	Voucher  models.Voucher
	Replayed bool
}

// PostVoucher validates req and persists it with the next voucher number for
// its (type, financial year). Numbering conflicts are retried up to the
// configured attempts and then reported as ErrConcurrencyConflict. A request
// repeated with the same idempotency key returns the original voucher.
func (l *Ledger) PostVoucher(ctx context.Context, req VoucherRequest) (PostResult, error) {
	v, err := l.validator.Validate(req)
	if err != nil {
		return PostResult{}, err
	}

	if v.IdempotencyKey != "" {
		existing, found, err := l.replay(ctx, v.IdempotencyKey)
		if err != nil {
			return PostResult{}, err
		}
		if found {
			return PostResult{Voucher: existing, Replayed: true}, nil
		}
	}

	var saved models.Voucher
	for attempt := 1; ; attempt++ {
		saved, err = l.store.CreateVoucher(ctx, l.stamp(v))
		if err == nil {
			break
		}
		if !errors.Is(err, interfaces.ErrConflict) {
			return PostResult{}, &PersistenceError{Op: "create voucher", Err: err}
		}

		if v.IdempotencyKey != "" {
			existing, found, rerr := l.replay(ctx, v.IdempotencyKey)
			if rerr != nil {
				return PostResult{}, rerr
			}
			if found {
				return PostResult{Voucher: existing, Replayed: true}, nil
			}
		}

		if attempt >= l.maxAttempts {
			l.log.Warn("voucher numbering conflict, giving up",
				"voucher_type", v.TypeCode, "financial_year", v.FinancialYear, "attempts", attempt)
			return PostResult{}, fmt.Errorf("%w: %s after %d attempts", ErrConcurrencyConflict,
				models.CounterKey{TypeCode: v.TypeCode, FinancialYear: v.FinancialYear}, attempt)
		}
		l.log.Debug("voucher numbering conflict, retrying",
			"voucher_type", v.TypeCode, "financial_year", v.FinancialYear, "attempt", attempt)
		if err := l.sleep(ctx, attempt); err != nil {
			return PostResult{}, &PersistenceError{Op: "create voucher", Err: err}
		}
	}

	saved = l.formatNumber(saved)
	l.log.Info("voucher posted",
		"voucher_id", saved.ID,
		"voucher_type", saved.TypeCode,
		"voucher_number", saved.Number,
		"voucher_date", saved.Date.String(),
		"financial_year", saved.FinancialYear,
		"entries", len(saved.Entries))
	l.publishPosted(ctx, saved)

	return PostResult{Voucher: saved}, nil
}

// GetVoucher loads a posted voucher with its number formatted.
func (l *Ledger) GetVoucher(ctx context.Context, id string) (models.Voucher, error) {
	v, err := l.store.GetVoucher(ctx, id)
	if err != nil {
		return models.Voucher{}, err
	}
	return l.formatNumber(v), nil
}

// ListVouchers returns posted vouchers matching q with numbers formatted.
func (l *Ledger) ListVouchers(ctx context.Context, q models.VoucherQuery) ([]models.Voucher, error) {
	vouchers, err := l.store.ListVouchers(ctx, q)
	if err != nil {
		return nil, err
	}
	for i := range vouchers {
		vouchers[i] = l.formatNumber(vouchers[i])
	}
	return vouchers, nil
}

func (l *Ledger) replay(ctx context.Context, key string) (models.Voucher, bool, error) {
	existing, err := l.store.FindByIdempotencyKey(ctx, key)
	if errors.Is(err, interfaces.ErrNotFound) {
		return models.Voucher{}, false, nil
	}
	if err != nil {
		return models.Voucher{}, false, &PersistenceError{Op: "idempotency lookup", Err: err}
	}
	l.log.Info("voucher replayed", "voucher_id", existing.ID, "idempotency_key", key)
	return l.formatNumber(existing), true, nil
}

// stamp gives the voucher and its entries fresh identities for one attempt.
func (l *Ledger) stamp(v models.Voucher) models.Voucher {
	v.ID = uuid.NewString()
	v.CreatedAt = l.now().UTC()
	entries := make([]models.JournalEntry, len(v.Entries))
	for i, e := range v.Entries {
		e.ID = uuid.NewString()
		e.VoucherID = v.ID
		entries[i] = e
	}
	v.Entries = entries
	return v
}

func (l *Ledger) formatNumber(v models.Voucher) models.Voucher {
	vt, ok := l.catalog.VoucherType(v.TypeCode)
	if !ok {
		vt = models.VoucherType{Code: v.TypeCode}
	}
	v.Number = models.FormatNumber(vt, v.Sequence)
	return v
}

func (l *Ledger) sleep(ctx context.Context, attempt int) error {
	d := l.backoff*time.Duration(attempt) + rand.N(l.backoff)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (l *Ledger) publishPosted(ctx context.Context, v models.Voucher) {
	if l.publisher == nil {
		return
	}
	event := events.VoucherPosted{
		VoucherID:     v.ID,
		TypeCode:      v.TypeCode,
		VoucherNumber: v.Number,
		VoucherDate:   v.Date.String(),
		FinancialYear: v.FinancialYear,
		TotalAmount:   v.TotalAmount(),
		EntryCount:    len(v.Entries),
		OccurredAt:    v.CreatedAt,
	}
	// the voucher is committed; a lost event must not fail the post
	if err := l.publisher.Publish(ctx, l.topic, v.ID, event); err != nil {
		l.log.Error("failed to publish voucher event", "voucher_id", v.ID, "topic", l.topic, "error", err)
	}
}
