package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/replyloop/replyloop/credentials"
	"github.com/replyloop/replyloop/db"
	"github.com/replyloop/replyloop/internal/pathutil"
	"github.com/replyloop/replyloop/ledger"
	"github.com/replyloop/replyloop/pipeline"
)

func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	viper.SetDefault("db.driver", "sqlite")
	viper.SetDefault("db.automigrate", true)
	viper.SetDefault("db.pool.max_open_conns", 1)
	viper.SetDefault("db.pool.max_idle_conns", 1)
	viper.SetDefault("db.sqlite.busy_timeout_ms", 5000)
	viper.SetDefault("db.sqlite.wal", true)
	viper.SetDefault("db.sqlite.foreign_keys", true)

	viper.SetDefault("shopify.api_version", "2024-10")
	viper.SetDefault("shopify.timeout", "8s")

	viper.SetDefault("audit.jsonl.enabled", true)
	viper.SetDefault("audit.sqlite.enabled", true)

	viper.SetDefault("server.addr", ":8787")
}

func dbConfigFromViper() db.Config {
	cfg := db.DefaultConfig()

	cfg.Driver = viper.GetString("db.driver")
	cfg.DSN = viper.GetString("db.dsn")
	cfg.AutoMigrate = viper.GetBool("db.automigrate")

	cfg.Pool.MaxOpenConns = viper.GetInt("db.pool.max_open_conns")
	cfg.Pool.MaxIdleConns = viper.GetInt("db.pool.max_idle_conns")
	cfg.Pool.ConnMaxLifetime = viper.GetDuration("db.pool.conn_max_lifetime")
	if cfg.Pool.ConnMaxLifetime < 0 {
		cfg.Pool.ConnMaxLifetime = 0
	}

	cfg.SQLite.BusyTimeoutMs = viper.GetInt("db.sqlite.busy_timeout_ms")
	cfg.SQLite.WAL = viper.GetBool("db.sqlite.wal")
	cfg.SQLite.ForeignKeys = viper.GetBool("db.sqlite.foreign_keys")

	// Ensure reasonable defaults even if config has zeros.
	if cfg.Pool.MaxOpenConns <= 0 {
		cfg.Pool.MaxOpenConns = 1
	}
	if cfg.Pool.MaxIdleConns <= 0 {
		cfg.Pool.MaxIdleConns = 1
	}
	if cfg.SQLite.BusyTimeoutMs <= 0 {
		cfg.SQLite.BusyTimeoutMs = 5000
	}

	return cfg
}

func auditSinkFromViper(log *slog.Logger) ledger.Sink {
	var sinks ledger.MultiSink

	if viper.GetBool("audit.jsonl.enabled") {
		path := strings.TrimSpace(viper.GetString("audit.jsonl.path"))
		if path == "" {
			home, err := os.UserHomeDir()
			if err == nil && strings.TrimSpace(home) != "" {
				path = filepath.Join(home, ".replyloop", "audit.jsonl")
			}
		}
		path = pathutil.ExpandHomePath(path)
		if path != "" {
			s, err := ledger.NewJSONLAuditSink(path, viper.GetInt64("audit.jsonl.rotate_max_bytes"))
			if err != nil {
				log.Warn("audit_jsonl_sink_error", "error", err.Error())
			} else {
				sinks = append(sinks, s)
			}
		}
	}

	if viper.GetBool("audit.sqlite.enabled") {
		dsn, err := db.ResolveSQLiteDSN(viper.GetString("db.dsn"))
		if err != nil {
			log.Warn("audit_sqlite_dsn_error", "error", err.Error())
		} else {
			s, err := ledger.NewSQLiteAuditSink(dsn, viper.GetInt("db.sqlite.busy_timeout_ms"))
			if err != nil {
				log.Warn("audit_sqlite_sink_error", "error", err.Error())
			} else {
				sinks = append(sinks, s)
			}
		}
	}

	if len(sinks) == 0 {
		return nil
	}
	return sinks
}

func depsFromViper(ctx context.Context, log *slog.Logger) (*pipeline.Deps, error) {
	setDefaults()

	gdb, err := db.Open(ctx, dbConfigFromViper())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	secret := strings.TrimSpace(viper.GetString("credentials.secret"))
	if secret == "" {
		return nil, fmt.Errorf("credentials.secret is not set (env REPLYLOOP_CREDENTIALS_SECRET)")
	}

	return &pipeline.Deps{
		Credentials: credentials.NewResolver(gdb, secret),
		Ledger:      ledger.NewGormStore(gdb),
		Audit:       auditSinkFromViper(log),
		APIVersion:  viper.GetString("shopify.api_version"),
		Timeout:     viper.GetDuration("shopify.timeout"),
		Log:         log,
	}, nil
}
