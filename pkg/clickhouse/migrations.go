package clickhouse

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/pressly/goose/v3"

	"github.com/voltaicdata/voltaic"
)

const migrationsDir = "db/clickhouse/migrations"

func CreateDatabase(ctx context.Context, log *slog.Logger, conn Connection, database string) error {
	log.Info("creating ClickHouse database", "database", database)
	return conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database))
}

// MigrationConfig holds the connection settings goose migrates against.
type MigrationConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Secure   bool
}

// slogGooseLogger adapts slog.Logger to the goose.Logger interface.
type slogGooseLogger struct {
	log *slog.Logger
}

func (l *slogGooseLogger) Fatalf(format string, v ...any) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *slogGooseLogger) Printf(format string, v ...any) {
	l.log.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Up runs all pending migrations.
func Up(ctx context.Context, log *slog.Logger, cfg MigrationConfig) error {
	log.Info("running ClickHouse migrations (up)")
	if err := withGoose(cfg, log, func(db *sql.DB) error {
		return goose.UpContext(ctx, db, migrationsDir)
	}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("ClickHouse migrations completed successfully")
	return nil
}

// Down rolls back the most recent migration.
func Down(ctx context.Context, log *slog.Logger, cfg MigrationConfig) error {
	log.Info("rolling back ClickHouse migration (down)")
	if err := withGoose(cfg, log, func(db *sql.DB) error {
		return goose.DownContext(ctx, db, migrationsDir)
	}); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	log.Info("ClickHouse migration rolled back successfully")
	return nil
}

// Status prints the status of all migrations.
func Status(ctx context.Context, log *slog.Logger, cfg MigrationConfig) error {
	log.Info("checking ClickHouse migration status")
	return withGoose(cfg, log, func(db *sql.DB) error {
		return goose.StatusContext(ctx, db, migrationsDir)
	})
}

// Version prints the current migration version.
func Version(ctx context.Context, log *slog.Logger, cfg MigrationConfig) error {
	return withGoose(cfg, log, func(db *sql.DB) error {
		return goose.VersionContext(ctx, db, migrationsDir)
	})
}

// withGoose opens a database/sql connection for goose, points goose at the
// embedded migration files, and runs fn against it.
func withGoose(cfg MigrationConfig, log *slog.Logger, fn func(db *sql.DB) error) error {
	options := &clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	}
	if cfg.Secure {
		options.TLS = &tls.Config{}
	}
	db := clickhouse.OpenDB(options)
	defer db.Close()

	goose.SetLogger(&slogGooseLogger{log: log})
	goose.SetBaseFS(voltaic.ClickHouseMigrationsFS)
	if err := goose.SetDialect("clickhouse"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return fn(db)
}
