// internal/config/config.go
//
// Package config 提供 bankapp 的設定結構、預設值與驗證。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 為完整設定。
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	NATS     NATSConfig     `yaml:"nats"`
	Rules    RulesConfig    `yaml:"rules"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig 設定 HTTP 伺服器。
type ServerConfig struct {
	// Addr 為監聽位址（預設 :8080）
	Addr string `yaml:"addr"`
	// Mode 為 gin 模式：debug、release 或 test
	Mode string `yaml:"mode"`
	// ShutdownTimeout 為收到訊號後等待進行中請求的時間
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig 設定資料庫。
type DatabaseConfig struct {
	// Driver 為 sqlite 或 postgres
	Driver string `yaml:"driver"`
	// DSN 為連線字串；sqlite 可為檔案路徑
	DSN string `yaml:"dsn"`
	// LogSQL 輸出所有 SQL
	LogSQL bool `yaml:"log_sql"`
}

// RedisConfig 設定帳戶快取；Addr 為空時停用。
type RedisConfig struct {
	Addr string        `yaml:"addr"`
	DB   int           `yaml:"db"`
	TTL  time.Duration `yaml:"ttl"`
}

// NATSConfig 設定事件發佈；URL 為空時停用。
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// RulesConfig 為帳務規則；金額以字串表示避免浮點誤差。
type RulesConfig struct {
	// Floors 為各帳戶類型的餘額下限
	Floors         map[string]string `yaml:"floors"`
	DepositCutoff  string            `yaml:"deposit_cutoff"`
	TransferCutoff string            `yaml:"transfer_cutoff"`
	InitialPoints  int               `yaml:"initial_points"`
}

// LogConfig 設定 slog。
type LogConfig struct {
	// Level 為 debug、info、warn 或 error
	Level string `yaml:"level"`
	// Format 為 text 或 json
	Format string `yaml:"format"`
}

// DefaultConfig 回傳預設設定：本機 sqlite 檔案、無快取、無事件。
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			Mode:            "release",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "bankapp.db",
		},
		Redis: RedisConfig{
			TTL: 5 * time.Minute,
		},
		NATS: NATSConfig{
			SubjectPrefix: "bank.accounts",
		},
		Rules: RulesConfig{
			Floors: map[string]string{
				"simple":  "0",
				"bonus":   "-1000",
				"savings": "0",
			},
			DepositCutoff:  "100",
			TransferCutoff: "200",
			InitialPoints:  10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate 檢查設定是否合法。
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode must be debug, release or test, got %q", c.Server.Mode)
	}
	switch c.Database.Driver {
	case "sqlite":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Rules.InitialPoints < 0 {
		return fmt.Errorf("rules.initial_points must not be negative")
	}
	for kind := range c.Rules.Floors {
		switch kind {
		case "simple", "bonus", "savings":
		default:
			return fmt.Errorf("rules.floors: unknown account type %q", kind)
		}
	}
	return nil
}

// LoadFromFile 讀取 YAML 檔並疊加在 base 之上；base 為 nil 時以預設值為底。
func LoadFromFile(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := base
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// SaveToFile 以 YAML 寫出設定，必要時建立目錄。
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
