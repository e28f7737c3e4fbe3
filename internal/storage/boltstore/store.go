// Package boltstore stores vouchers in a single bbolt file. bbolt allows one
// writer at a time, so numbering and the voucher write share one Update and
// need no further locking.
package boltstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	interfaces "github.com/sheikh-saqib/voucher-ledger/internal/interfaces"
	"github.com/sheikh-saqib/voucher-ledger/internal/models"
	bolt "go.etcd.io/bbolt"
)

// Bucket names.
const (
	BucketVouchers    = "vouchers"
	BucketIdempotency = "idempotency_keys"
	BucketCounters    = "voucher_counters"
	BucketLedgerIndex = "ledger_entries"
	BucketDateIndex   = "voucher_dates"
)

const sep = 0x00

// record is the stored form of a voucher. The idempotency key is hidden from
// API JSON but has to survive a round trip here.
type record struct {
	models.Voucher
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// posting is the value kept in the ledger index for one entry.
type posting struct {
	Side  models.Side `json:"side"`
	Minor int64       `json:"amount_minor"`
}

type Store struct {
	db *bolt.DB
}

// New opens the database at path and creates the buckets.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := []string{BucketVouchers, BucketIdempotency, BucketCounters, BucketLedgerIndex, BucketDateIndex}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateVoucher takes the next sequence from the counter bucket for the
// voucher's series and writes the voucher with both indexes in the same
// Update. A failure anywhere rolls the sequence back too.
func (s *Store) CreateVoucher(ctx context.Context, v models.Voucher) (models.Voucher, error) {
	if err := ctx.Err(); err != nil {
		return models.Voucher{}, err
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		vouchers := tx.Bucket([]byte(BucketVouchers))
		keys := tx.Bucket([]byte(BucketIdempotency))

		if vouchers.Get([]byte(v.ID)) != nil {
			return fmt.Errorf("%w: voucher %s exists", interfaces.ErrConflict, v.ID)
		}
		if v.IdempotencyKey != "" && keys.Get([]byte(v.IdempotencyKey)) != nil {
			return fmt.Errorf("%w: idempotency key already used", interfaces.ErrConflict)
		}

		counterKey := models.CounterKey{TypeCode: v.TypeCode, FinancialYear: v.FinancialYear}
		counter, err := tx.Bucket([]byte(BucketCounters)).CreateBucketIfNotExists([]byte(counterKey.String()))
		if err != nil {
			return fmt.Errorf("failed to open counter %s: %w", counterKey, err)
		}
		seq, err := counter.NextSequence()
		if err != nil {
			return err
		}
		v.Sequence = int64(seq)

		data, err := json.Marshal(record{Voucher: v, IdempotencyKey: v.IdempotencyKey})
		if err != nil {
			return fmt.Errorf("failed to marshal voucher: %w", err)
		}
		if err := vouchers.Put([]byte(v.ID), data); err != nil {
			return err
		}
		if v.IdempotencyKey != "" {
			if err := keys.Put([]byte(v.IdempotencyKey), []byte(v.ID)); err != nil {
				return err
			}
		}
		if err := tx.Bucket([]byte(BucketDateIndex)).Put(dateKey(v), nil); err != nil {
			return err
		}

		index := tx.Bucket([]byte(BucketLedgerIndex))
		for _, e := range v.Entries {
			p, err := json.Marshal(posting{Side: e.Side, Minor: models.ToMinor(e.Amount)})
			if err != nil {
				return err
			}
			if err := index.Put(ledgerKey(e.LedgerID, v.Date, v.ID, e.Line), p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Voucher{}, err
	}
	return v, nil
}

func (s *Store) GetVoucher(ctx context.Context, id string) (models.Voucher, error) {
	var v models.Voucher
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		v, err = getVoucher(tx, id)
		return err
	})
	return v, err
}

func (s *Store) FindByIdempotencyKey(ctx context.Context, key string) (models.Voucher, error) {
	if key == "" {
		return models.Voucher{}, interfaces.ErrNotFound
	}

	var v models.Voucher
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket([]byte(BucketIdempotency)).Get([]byte(key))
		if id == nil {
			return interfaces.ErrNotFound
		}
		var err error
		v, err = getVoucher(tx, string(id))
		return err
	})
	return v, err
}

// ListVouchers walks the date index, which is already in (date, sequence,
// type) order, starting at q.From.
func (s *Store) ListVouchers(ctx context.Context, q models.VoucherQuery) ([]models.Voucher, error) {
	var result []models.Voucher
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(BucketDateIndex)).Cursor()

		var start []byte
		if !q.From.IsZero() {
			start = []byte(q.From.String())
		}

		for k, _ := c.Seek(start); k != nil; k, _ = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			date, id := splitDateKey(k)
			if !q.To.IsZero() && date > q.To.String() {
				break
			}
			v, err := getVoucher(tx, id)
			if err != nil {
				return err
			}
			if q.Matches(v) {
				result = append(result, v)
			}
		}
		return nil
	})
	return result, err
}

func (s *Store) LedgerMovement(ctx context.Context, ledgerID string, from, to models.Date) (models.Movement, error) {
	var mv models.Movement
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(BucketLedgerIndex)).Cursor()
		prefix := ledgerPrefix(ledgerID)

		start := prefix
		if !from.IsZero() {
			start = append(append([]byte(nil), prefix...), from.String()...)
		}

		for k, v := c.Seek(start); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			date := string(k[len(prefix) : len(prefix)+len(models.DateLayout)])
			if !to.IsZero() && date > to.String() {
				break
			}
			p, err := decodePosting(v)
			if err != nil {
				return err
			}
			mv = mv.Post(p.Side, models.FromMinor(p.Minor))
		}
		return nil
	})
	if err != nil {
		return models.Movement{}, err
	}
	return mv, nil
}

// LedgerMovements walks the whole ledger index inside one read transaction.
func (s *Store) LedgerMovements(ctx context.Context, from, to models.Date) (map[string]models.PeriodMovement, error) {
	result := make(map[string]models.PeriodMovement)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(BucketLedgerIndex)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			ledgerID, date := splitLedgerKey(k)
			if !to.IsZero() && date > to.String() {
				continue
			}
			p, err := decodePosting(v)
			if err != nil {
				return err
			}
			pm := result[ledgerID]
			if !from.IsZero() && date < from.String() {
				pm.Prior = pm.Prior.Post(p.Side, models.FromMinor(p.Minor))
			} else {
				pm.Period = pm.Period.Post(p.Side, models.FromMinor(p.Minor))
			}
			result[ledgerID] = pm
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) HasEntries(ctx context.Context, ledgerID string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		prefix := ledgerPrefix(ledgerID)
		k, _ := tx.Bucket([]byte(BucketLedgerIndex)).Cursor().Seek(prefix)
		found = k != nil && bytes.HasPrefix(k, prefix)
		return nil
	})
	return found, err
}

func getVoucher(tx *bolt.Tx, id string) (models.Voucher, error) {
	data := tx.Bucket([]byte(BucketVouchers)).Get([]byte(id))
	if data == nil {
		return models.Voucher{}, interfaces.ErrNotFound
	}
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return models.Voucher{}, fmt.Errorf("failed to unmarshal voucher %s: %w", id, err)
	}
	v := r.Voucher
	v.IdempotencyKey = r.IdempotencyKey
	return v, nil
}

// dateKey is date, sequence, type, id. Sequences are fixed width so byte
// order matches numeric order.
func dateKey(v models.Voucher) []byte {
	k := make([]byte, 0, 64)
	k = append(k, v.Date.String()...)
	k = append(k, sep)
	k = binary.BigEndian.AppendUint64(k, uint64(v.Sequence))
	k = append(k, v.TypeCode...)
	k = append(k, sep)
	k = append(k, v.ID...)
	return k
}

func splitDateKey(k []byte) (date, id string) {
	date = string(k[:len(models.DateLayout)])
	if i := bytes.LastIndexByte(k, sep); i >= 0 {
		id = string(k[i+1:])
	}
	return date, id
}

func decodePosting(v []byte) (posting, error) {
	var p posting
	if err := json.Unmarshal(v, &p); err != nil {
		return posting{}, fmt.Errorf("corrupt ledger index entry: %w", err)
	}
	return p, nil
}

func splitLedgerKey(k []byte) (ledgerID, date string) {
	i := bytes.IndexByte(k, sep)
	return string(k[:i]), string(k[i+1 : i+1+len(models.DateLayout)])
}

func ledgerPrefix(ledgerID string) []byte {
	k := make([]byte, 0, len(ledgerID)+1)
	k = append(k, ledgerID...)
	return append(k, sep)
}

func ledgerKey(ledgerID string, date models.Date, voucherID string, line int) []byte {
	k := ledgerPrefix(ledgerID)
	k = append(k, date.String()...)
	k = append(k, sep)
	k = append(k, voucherID...)
	k = append(k, sep)
	return binary.BigEndian.AppendUint32(k, uint32(line))
}

var _ interfaces.LedgerStore = (*Store)(nil)
