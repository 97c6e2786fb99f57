// internal/storage/cache.go
//
// 帳戶明細的 Redis 快取。查詢帳戶時先讀快取，任何餘額變更提交後由 bank 層失效。
// 每個帳號另有一個世代計數器，失效時遞增；回填以 WATCH 比對世代，
// 讀取資料庫期間若已失效，舊資料不會寫回快取。
// 未設定 Redis 時 Cache 為 nil，所有方法皆為 no-op。
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// generationTTL 須遠長於一次資料庫讀取。
const generationTTL = 24 * time.Hour

var errStaleFill = errors.New("cache generation changed")

// Cache 以帳號為鍵快取 AccountRecord。
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

// ConnectRedis 建立 Redis 連線並 Ping 確認可用。
func ConnectRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return rdb, nil
}

// NewCache 建立快取；ttl <= 0 時使用 5 分鐘。
func NewCache(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{rdb: rdb, ttl: ttl, prefix: "bankapp:account:", logger: logger}
}

func (c *Cache) key(number uint) string {
	return fmt.Sprintf("%s%d", c.prefix, number)
}

// GetAccount 讀取快取；未命中或錯誤時回傳 false。
func (c *Cache) GetAccount(ctx context.Context, number uint) (*AccountRecord, bool) {
	if c == nil {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, c.key(number)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache get failed", "number", number, "error", err)
		}
		return nil, false
	}
	var rec AccountRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		c.logger.Warn("cache entry corrupt", "number", number, "error", err)
		return nil, false
	}
	return &rec, true
}

func (c *Cache) genKey(number uint) string {
	return fmt.Sprintf("%sgen:%d", c.prefix, number)
}

// Generation 回傳帳號目前的失效世代，於讀取資料庫前呼叫並交給 PutAccount。
// 讀取失敗時回傳 -1，PutAccount 會略過回填。
func (c *Cache) Generation(ctx context.Context, number uint) int64 {
	if c == nil {
		return 0
	}
	gen, err := c.rdb.Get(ctx, c.genKey(number)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warn("cache generation read failed", "number", number, "error", err)
		return -1
	}
	return gen
}

// PutAccount 在世代仍為 gen 時寫入快取。
func (c *Cache) PutAccount(ctx context.Context, rec *AccountRecord, gen int64) {
	if c == nil || rec == nil || gen < 0 {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	gk := c.genKey(rec.Number)
	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, gk).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, c.key(rec.Number), data, c.ttl)
			return nil
		})
		return err
	}, gk)
	switch {
	case err == nil:
	case errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
		c.logger.Debug("cache fill skipped", "number", rec.Number)
	default:
		c.logger.Warn("cache set failed", "number", rec.Number, "error", err)
	}
}

// Invalidate 移除指定帳號的快取並遞增其世代。
func (c *Cache) Invalidate(ctx context.Context, numbers ...uint) {
	if c == nil || len(numbers) == 0 {
		return
	}
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, n := range numbers {
			p.Incr(ctx, c.genKey(n))
			p.Expire(ctx, c.genKey(n), generationTTL)
			p.Del(ctx, c.key(n))
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("cache invalidate failed", "numbers", numbers, "error", err)
	}
}
