package repository

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/docscan/internal/common"
)

// DB is a SQL connection wrapped for ent's dialect-aware builders.
type DB struct {
	drv     *entsql.Driver
	dialect string
	pool    *pgxpool.Pool
}

func (d *DB) Dialect() string { return d.dialect }

// Open connects to Postgres through a pgx pool or to SQLite through modernc, depending on cfg.Driver.
func Open(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	switch cfg.Driver {
	case common.StorePostgres:
		return openPostgres(ctx, cfg, logger)
	case common.StoreSQLite:
		return openSQLite(ctx, cfg, logger)
	default:
		return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unsupported sql driver %q", cfg.Driver), common.ErrInvalidInput)
	}
}

func openPostgres(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "driver", cfg.Driver)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "docscan"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", cfg.StatementTimeout.Milliseconds())
	}

	ctx, cancel := common.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	// Wrap pool as *sql.DB for ent
	db := stdlib.OpenDBFromPool(pool)
	logger.Info("successfully connected to database")
	return &DB{drv: entsql.OpenDB(dialect.Postgres, db), dialect: dialect.Postgres, pool: pool}, nil
}

func openSQLite(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = ":memory:"
	}
	logger.Info("opening sqlite database", "dsn", dsn)
	db, err := stdsql.Open("sqlite", dsn)
	if err != nil {
		logger.Error("failed to open sqlite database", "error", err)
		return nil, err
	}
	// an in-memory database lives on a single connection
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{drv: entsql.OpenDB(dialect.SQLite, db), dialect: dialect.SQLite}, nil
}

// Close closes the database connections gracefully
func Close(db *DB, logger *slog.Logger) {
	if db == nil {
		return
	}
	logger.Info("closing database connections")
	if err := db.drv.Close(); err != nil {
		logger.Error("failed to close sql driver", "error", err)
	}
	if db.pool != nil {
		db.pool.Close()
	}
	logger.Info("database connections closed")
}

// HealthCheck pings the database to catch DSN issues early.
func HealthCheck(ctx context.Context, db *DB, timeout time.Duration, logger *slog.Logger) error {
	logger.Debug("pinging database")
	ctx, cancel := common.WithTimeout(ctx, timeout)
	defer cancel()
	if db.pool != nil {
		return db.pool.Ping(ctx)
	}
	return db.drv.DB().PingContext(ctx)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS analysis_events (
		analysis_id        TEXT PRIMARY KEY,
		seller_id          TEXT NOT NULL,
		uploader_id        TEXT NOT NULL DEFAULT '',
		uploader_type      TEXT NOT NULL,
		upload_id          TEXT,
		content_hash       TEXT NOT NULL,
		status             TEXT NOT NULL,
		cached_ocr_data    TEXT,
		record_id          TEXT,
		billed_to_seller   BOOLEAN NOT NULL DEFAULT FALSE,
		billed_to_customer BOOLEAN NOT NULL DEFAULT FALSE,
		created_at         BIGINT NOT NULL,
		updated_at         BIGINT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS analysis_events_seller_upload
		ON analysis_events (seller_id, upload_id) WHERE upload_id IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS analysis_events_seller_hash
		ON analysis_events (seller_id, content_hash)`,
	`CREATE TABLE IF NOT EXISTS seller_usage (
		seller_id          TEXT PRIMARY KEY,
		ocr_scans          BIGINT NOT NULL DEFAULT 0,
		customer_ocr_scans BIGINT NOT NULL DEFAULT 0
	)`,
}

// Migrate creates the tables and the unique indexes the dedupe insert relies on.
func Migrate(ctx context.Context, db *DB, logger *slog.Logger) error {
	for _, stmt := range schema {
		var res stdsql.Result
		if err := db.drv.Exec(ctx, stmt, []any{}, &res); err != nil {
			logger.Error("migration failed", "error", err)
			return dbError("migrate", err)
		}
	}
	logger.Debug("schema is up to date", "dialect", db.dialect)
	return nil
}

func dbError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, common.ErrDatabase, err)
}
