package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/lib/pq"
	interfaces "github.com/sheikh-saqib/voucher-ledger/internal/interfaces"
	"github.com/sheikh-saqib/voucher-ledger/internal/storage/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsConflict(t *testing.T) {
	d := Dialect()

	assert.True(t, d.IsConflict(&pq.Error{Code: "23505"}))
	assert.True(t, d.IsConflict(fmt.Errorf("insert: %w", &pq.Error{Code: "40001"})))
	assert.False(t, d.IsConflict(&pq.Error{Code: "23503"}))
	assert.False(t, d.IsConflict(errors.New("connection refused")))
}

func TestRebind(t *testing.T) {
	got := Dialect().Rebind("SELECT 1 FROM t WHERE a = ? AND b = ?")
	assert.Equal(t, "SELECT 1 FROM t WHERE a = $1 AND b = $2", got)
}

// TestPostgresStore needs a disposable database; every table is dropped first.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("LEDGER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LEDGER_TEST_POSTGRES_DSN not set")
	}

	storetest.Run(t, func(t *testing.T) interfaces.LedgerStore {
		ctx := context.Background()
		db, err := Open(ctx, dsn)
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })

		_, err = db.ExecContext(ctx, `DROP TABLE IF EXISTS journal_entries, vouchers, voucher_counters`)
		require.NoError(t, err)

		store := NewPostgresLedgerStore(db)
		require.NoError(t, store.Migrate(ctx))
		return store
	})
}
