package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb, err := ConnectRedis(ctx, mr.Addr(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	c := NewCache(rdb, time.Minute, nil)
	_, ok := c.GetAccount(ctx, 1)
	assert.False(t, ok)

	rec := &AccountRecord{ID: uuid.New(), Number: 1, Kind: "bonus", Balance: decimal.RequireFromString("9.99"), Points: 11}
	c.PutAccount(ctx, rec, c.Generation(ctx, 1))
	assert.True(t, mr.Exists("bankapp:account:1"))
	assert.Equal(t, time.Minute, mr.TTL("bankapp:account:1"))

	got, ok := c.GetAccount(ctx, 1)
	require.True(t, ok)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, 11, got.Points)
	assert.True(t, got.Balance.Equal(rec.Balance))

	c.Invalidate(ctx, 1, 2)
	_, ok = c.GetAccount(ctx, 1)
	assert.False(t, ok)
}

func TestCacheSkipsFillAfterInvalidate(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb, err := ConnectRedis(ctx, mr.Addr(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	c := NewCache(rdb, time.Minute, nil)
	gen := c.Generation(ctx, 3)
	assert.Zero(t, gen)

	// 讀取資料庫期間有異動提交
	c.Invalidate(ctx, 3)
	assert.Equal(t, int64(1), c.Generation(ctx, 3))
	assert.Equal(t, generationTTL, mr.TTL("bankapp:account:gen:3"))

	c.PutAccount(ctx, &AccountRecord{Number: 3, Balance: decimal.Zero}, gen)
	assert.False(t, mr.Exists("bankapp:account:3"), "stale record must not be cached")

	c.PutAccount(ctx, &AccountRecord{Number: 3, Balance: decimal.NewFromInt(7)}, c.Generation(ctx, 3))
	got, ok := c.GetAccount(ctx, 3)
	require.True(t, ok)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(7)))

	// 世代讀取失敗時不回填
	c.PutAccount(ctx, &AccountRecord{Number: 4}, -1)
	assert.False(t, mr.Exists("bankapp:account:4"))
}

func TestCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb, err := ConnectRedis(ctx, mr.Addr(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	require.NoError(t, mr.Set("bankapp:account:5", "not json"))
	_, ok := NewCache(rdb, 0, nil).GetAccount(ctx, 5)
	assert.False(t, ok)
}

func TestNilCacheIsNoop(t *testing.T) {
	var c *Cache
	ctx := context.Background()
	c.PutAccount(ctx, &AccountRecord{Number: 1}, c.Generation(ctx, 1))
	c.Invalidate(ctx, 1)
	_, ok := c.GetAccount(ctx, 1)
	assert.False(t, ok)
}

func TestConnectRedisFails(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err := ConnectRedis(context.Background(), addr, 0)
	assert.Error(t, err)
}
