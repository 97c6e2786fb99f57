// internal/storage/db.go

package storage

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 支援的資料庫驅動。
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DBConfig 描述資料庫連線。
type DBConfig struct {
	Driver string
	DSN    string
	LogSQL bool
}

// Open 依 Driver 建立 gorm 連線。sqlite 未指定 DSN 時使用記憶體資料庫。
// sqlite 限制為單一連線：記憶體資料庫每條連線各自獨立，且 sqlite 只允許單一寫入者。
func Open(cfg DBConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres requires a dsn")
		}
		dialector = postgres.Open(cfg.DSN)
	case DriverSQLite, "":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = ":memory:"
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	level := logger.Silent
	if cfg.LogSQL {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialector.Name(), err)
	}

	if dialector.Name() == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Migrate 建立或更新資料表結構。
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&AccountRecord{}, &TransactionRecord{})
}

// Close 關閉底層連線池。
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
