// internal/storage/jsonstore_test.go
//
// 驗證 JSON 快照的寫入與讀回：檔案原子寫入、Meta 欄位、帳戶與日誌內容一致。
package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")

	id := uuid.New()
	orig := Snapshot{
		Meta: Meta{Note: "test"},
		Accounts: []AccountRecord{
			{ID: id, Number: 1, Kind: "simple", Balance: decimal.RequireFromString("100.50")},
			{ID: uuid.New(), Number: 2, Kind: "bonus", Balance: decimal.Zero, Points: 10},
		},
		Transactions: []TransactionRecord{
			{ID: 1, AccountID: id, AccountNumber: 1, Kind: "deposit", Amount: decimal.RequireFromString("100.50"), BalanceAfter: decimal.RequireFromString("100.50")},
		},
	}

	require.NoError(t, SaveSnapshot(path, orig))
	_, err := os.Stat(path)
	require.NoError(t, err, "snapshot not written")
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "tmp file should be renamed away")

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, "json_snapshot", loaded.Meta.Storage)
	assert.Equal(t, SnapshotVersion, loaded.Meta.Version)

	opt := cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })
	if diff := cmp.Diff(orig.Accounts, loaded.Accounts, opt); diff != "" {
		t.Fatalf("accounts mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(orig.Transactions, loaded.Transactions, opt); diff != "" {
		t.Fatalf("transactions mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadSnapshotRejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"_meta":{"version":99},"accounts":[]}`), 0o644))
	_, err := LoadSnapshot(path)
	assert.ErrorContains(t, err, "unsupported version")

	_, err = LoadSnapshot(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, os.IsNotExist(err))
}
