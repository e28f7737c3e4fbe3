package sqlite

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/mattn/go-sqlite3"
	interfaces "github.com/sheikh-saqib/voucher-ledger/internal/interfaces"
	"github.com/sheikh-saqib/voucher-ledger/internal/storage/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) interfaces.LedgerStore {
		store, err := New(filepath.Join(t.TempDir(), "ledger.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

func TestIsConflict(t *testing.T) {
	d := Dialect()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "busy", err: sqlite3.Error{Code: sqlite3.ErrBusy}, want: true},
		{name: "unique", err: sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, want: true},
		{name: "not null", err: sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintNotNull}},
		{name: "plain", err: errors.New("boom")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, d.IsConflict(tc.err))
		})
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Migrate(t.Context()))
}
