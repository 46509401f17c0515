package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func Open(ctx context.Context, cfg Config) (*gorm.DB, error) {
	_ = ctx
	if strings.TrimSpace(cfg.Driver) == "" {
		cfg.Driver = "sqlite"
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "sqlite":
		dsn, err := ResolveSQLiteDSN(cfg.DSN)
		if err != nil {
			return nil, err
		}
		gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
		if err != nil {
			return nil, err
		}
		if err := applySQLitePragmas(gdb, cfg.SQLite); err != nil {
			return nil, err
		}

		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		if cfg.Pool.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.Pool.MaxOpenConns)
		}
		if cfg.Pool.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.Pool.MaxIdleConns)
		}
		if cfg.Pool.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(cfg.Pool.ConnMaxLifetime)
		}
		if cfg.AutoMigrate {
			if err := AutoMigrate(gdb); err != nil {
				return nil, err
			}
		}
		return gdb, nil
	default:
		return nil, fmt.Errorf("unsupported db.driver: %s (only sqlite is implemented)", cfg.Driver)
	}
}

func applySQLitePragmas(gdb *gorm.DB, cfg SQLiteConfig) error {
	if gdb == nil {
		return fmt.Errorf("nil gorm db")
	}
	if cfg.WAL {
		if err := gdb.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
			return err
		}
	}
	if cfg.BusyTimeoutMs > 0 {
		if err := gdb.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", cfg.BusyTimeoutMs)).Error; err != nil {
			return err
		}
	}
	if cfg.ForeignKeys {
		if err := gdb.Exec("PRAGMA foreign_keys=ON;").Error; err != nil {
			return err
		}
	}
	return nil
}
