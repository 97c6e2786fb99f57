// internal/config/loader.go
//
// 設定載入順序：.env → 預設值 → YAML 檔 → BANKAPP_* 環境變數，最後驗證。

package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultConfigFile 為工作目錄下的預設設定檔
	DefaultConfigFile = "bankapp.yaml"
	// EnvPrefix 為環境變數前綴
	EnvPrefix = "BANKAPP_"
)

// Loader 依序疊加設定：預設值 → .env → YAML 檔 → BANKAPP_* 環境變數。
type Loader struct {
	logger *slog.Logger
	lookup func(string) (string, bool)
}

// NewLoader 建立 Loader。
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger, lookup: os.LookupEnv}
}

// Load 載入設定；path 為空時依序嘗試 BANKAPP_CONFIG 與 bankapp.yaml。
func (l *Loader) Load(path string) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		l.logger.Debug("Loaded .env")
	} else if !errors.Is(err, fs.ErrNotExist) {
		l.logger.Warn("Failed to load .env", slog.String("error", err.Error()))
	}

	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		if v, ok := l.lookup(EnvPrefix + "CONFIG"); ok && v != "" {
			path, explicit = v, true
		} else {
			path = DefaultConfigFile
		}
	}
	loaded, err := LoadFromFile(path, cfg)
	switch {
	case err == nil:
		cfg = loaded
		l.logger.Debug("Loaded config file", slog.String("path", path))
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		l.logger.Debug("No config file found, using defaults")
	default:
		return nil, err
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv 以環境變數覆寫個別欄位。
func (l *Loader) applyEnv(cfg *Config) error {
	str := map[string]*string{
		"SERVER_ADDR":           &cfg.Server.Addr,
		"SERVER_MODE":           &cfg.Server.Mode,
		"DATABASE_DRIVER":       &cfg.Database.Driver,
		"DATABASE_DSN":          &cfg.Database.DSN,
		"REDIS_ADDR":            &cfg.Redis.Addr,
		"NATS_URL":              &cfg.NATS.URL,
		"NATS_SUBJECT_PREFIX":   &cfg.NATS.SubjectPrefix,
		"LOG_LEVEL":             &cfg.Log.Level,
		"LOG_FORMAT":            &cfg.Log.Format,
		"RULES_DEPOSIT_CUTOFF":  &cfg.Rules.DepositCutoff,
		"RULES_TRANSFER_CUTOFF": &cfg.Rules.TransferCutoff,
	}
	for key, dst := range str {
		if v, ok := l.lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	if v, ok := l.lookup(EnvPrefix + "REDIS_DB"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.New(EnvPrefix + "REDIS_DB must be an integer")
		}
		cfg.Redis.DB = n
	}
	if v, ok := l.lookup(EnvPrefix + "REDIS_TTL"); ok {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return errors.New(EnvPrefix + "REDIS_TTL must be a duration")
		}
		cfg.Redis.TTL = ttl
	}
	if v, ok := l.lookup(EnvPrefix + "DATABASE_LOG_SQL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.New(EnvPrefix + "DATABASE_LOG_SQL must be a boolean")
		}
		cfg.Database.LogSQL = b
	}
	return nil
}
