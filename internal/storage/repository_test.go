package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := Open(DBConfig{Driver: DriverSQLite})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() { _ = Close(db) })
	return NewRepository(db)
}

func account(number uint, kind string) *AccountRecord {
	return &AccountRecord{ID: uuid.New(), Number: number, Kind: kind, Balance: decimal.Zero}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(DBConfig{Driver: "oracle"})
	assert.ErrorContains(t, err, "unsupported")
	_, err = Open(DBConfig{Driver: DriverPostgres})
	assert.ErrorContains(t, err, "dsn")
}

func TestRepositoryAccounts(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	require.NoError(t, r.CreateAccount(ctx, account(2, "savings")))
	require.NoError(t, r.CreateAccount(ctx, account(1, "simple")))
	err := r.CreateAccount(ctx, account(1, "bonus"))
	assert.ErrorIs(t, err, ErrDuplicate)

	rec, err := r.FindByNumber(ctx, 1, true)
	require.NoError(t, err)
	assert.Equal(t, "simple", rec.Kind)

	rec.Balance = decimal.RequireFromString("12.34")
	require.NoError(t, r.SaveAccount(ctx, rec))
	again, err := r.FindByNumber(ctx, 1, false)
	require.NoError(t, err)
	assert.True(t, again.Balance.Equal(decimal.RequireFromString("12.34")), again.Balance.String())

	_, err = r.FindByNumber(ctx, 3, false)
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := r.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, uint(1), all[0].Number)

	savings, err := r.ListByKind(ctx, "savings", true)
	require.NoError(t, err)
	require.Len(t, savings, 1)
	assert.Equal(t, uint(2), savings[0].Number)
}

func TestRepositoryWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	require.NoError(t, r.CreateAccount(ctx, account(1, "simple")))

	boom := errors.New("boom")
	err := r.WithTx(ctx, func(tx *Repository) error {
		rec, err := tx.FindByNumber(ctx, 1, true)
		if err != nil {
			return err
		}
		rec.Balance = decimal.NewFromInt(500)
		if err := tx.SaveAccount(ctx, rec); err != nil {
			return err
		}
		if err := tx.AppendTransaction(ctx, &TransactionRecord{AccountID: rec.ID, AccountNumber: 1, Kind: "deposit", Amount: rec.Balance, BalanceAfter: rec.Balance}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	rec, err := r.FindByNumber(ctx, 1, false)
	require.NoError(t, err)
	assert.True(t, rec.Balance.IsZero())
	txs, err := r.ListTransactions(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestRepositoryListTransactions(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	a := account(1, "simple")
	require.NoError(t, r.CreateAccount(ctx, a))
	for i := 1; i <= 5; i++ {
		amt := decimal.NewFromInt(int64(i))
		require.NoError(t, r.AppendTransaction(ctx, &TransactionRecord{AccountID: a.ID, AccountNumber: 1, Kind: "deposit", Amount: amt, BalanceAfter: amt}))
	}

	all, err := r.ListTransactions(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.True(t, all[0].Amount.Equal(decimal.NewFromInt(1)))

	last, err := r.ListTransactions(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.True(t, last[0].Amount.Equal(decimal.NewFromInt(4)))
	assert.True(t, last[1].Amount.Equal(decimal.NewFromInt(5)))
}

func TestRepositoryExportImport(t *testing.T) {
	ctx := context.Background()
	src := newTestRepo(t)
	a := account(7, "bonus")
	a.Points = 10
	require.NoError(t, src.CreateAccount(ctx, a))
	require.NoError(t, src.AppendTransaction(ctx, &TransactionRecord{AccountID: a.ID, AccountNumber: 7, Kind: "deposit", Amount: decimal.NewFromInt(3), BalanceAfter: decimal.NewFromInt(3)}))

	snap, err := src.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, SnapshotVersion, snap.Meta.Version)

	dst := newTestRepo(t)
	require.NoError(t, dst.CreateAccount(ctx, account(8, "simple")))
	require.NoError(t, dst.Import(ctx, snap))

	all, err := dst.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, uint(7), all[0].Number)
	assert.Equal(t, 10, all[0].Points)

	txs, err := dst.ListTransactions(ctx, 7, 0)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}
