// cmd/server/app.go
//
// App 依設定組裝各模組：資料庫 → (Redis 快取) → (NATS 事件) → 指標 → bank。
// 快取與事件為選配，未設定位址時不建立連線。

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bankapp/internal/bank"
	"bankapp/internal/config"
	"bankapp/internal/events"
	"bankapp/internal/metrics"
	"bankapp/internal/storage"
)

// App 持有執行期依賴，Close 依反向順序釋放。
type App struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *gorm.DB
	rdb       *redis.Client
	publisher events.Publisher
	registry  *prometheus.Registry
	bank      *bank.Bank
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	rules, err := rulesFrom(cfg.Rules)
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(storage.DBConfig{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
		LogSQL: cfg.Database.LogSQL,
	})
	if err != nil {
		return nil, err
	}
	app := &App{cfg: cfg, logger: logger, db: db, publisher: events.Nop{}}

	opts := []bank.Option{bank.WithRules(rules), bank.WithLogger(logger)}

	if cfg.Redis.Addr != "" {
		rdb, err := storage.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.rdb = rdb
		opts = append(opts, bank.WithCache(storage.NewCache(rdb, cfg.Redis.TTL, logger)))
		logger.Info("Account cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.TTL)
	}

	if cfg.NATS.URL != "" {
		pub, err := events.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.publisher = pub
		opts = append(opts, bank.WithPublisher(pub))
		logger.Info("Publishing account events", "url", cfg.NATS.URL, "prefix", cfg.NATS.SubjectPrefix)
	}

	app.registry = metrics.NewRegistry()
	opts = append(opts, bank.WithMetrics(metrics.New(app.registry)))

	app.bank = bank.NewBank(storage.NewRepository(db), opts...)
	return app, nil
}

// Close 釋放所有連線，可重複呼叫。
func (a *App) Close() {
	if a.publisher != nil {
		a.publisher.Close()
		a.publisher = nil
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
		a.rdb = nil
	}
	if a.db != nil {
		if err := storage.Close(a.db); err != nil {
			a.logger.Warn("Failed to close database", "error", err)
		}
		a.db = nil
	}
}

// rulesFrom 將設定中的字串金額轉為 bank.Rules；未填的欄位沿用預設值。
func rulesFrom(rc config.RulesConfig) (bank.Rules, error) {
	rules := bank.DefaultRules()
	for name, raw := range rc.Floors {
		kind, err := bank.ParseKind(name)
		if err != nil {
			return rules, fmt.Errorf("rules.floors: %w", err)
		}
		floor, err := decimal.NewFromString(raw)
		if err != nil {
			return rules, fmt.Errorf("rules.floors.%s: %w", name, err)
		}
		if floor.IsPositive() {
			return rules, fmt.Errorf("rules.floors.%s must not be positive", name)
		}
		rules.Floors[kind] = floor
	}
	cutoffs := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"deposit_cutoff", rc.DepositCutoff, &rules.DepositCutoff},
		{"transfer_cutoff", rc.TransferCutoff, &rules.TransferCutoff},
	}
	for _, c := range cutoffs {
		if c.raw == "" {
			continue
		}
		v, err := decimal.NewFromString(c.raw)
		if err != nil {
			return rules, fmt.Errorf("rules.%s: %w", c.name, err)
		}
		if !v.IsPositive() {
			return rules, fmt.Errorf("rules.%s must be positive", c.name)
		}
		*c.dst = v
	}
	rules.InitialPoints = rc.InitialPoints
	return rules, nil
}

// newLogger 依設定建立 slog logger；override 非空時取代設定檔中的等級。
func newLogger(lc config.LogConfig, override string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	name := lc.Level
	if override != "" {
		name = override
	}
	level := slog.LevelInfo
	switch strings.ToLower(name) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
