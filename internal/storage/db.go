package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"       // PostgreSQL driver
	_ "modernc.org/sqlite"      // embedded SQLite driver
)

// DB wraps the database connection and provides health checks. One DB handle
// is constructed by the process entry point and passed into every component;
// there is no package-level singleton.
type DB struct {
	conn   *sqlx.DB
	driver string
}

// DBConfig holds database configuration
type DBConfig struct {
	// DSN selects the backend: "postgres://..." opens PostgreSQL, anything
	// else is treated as a SQLite file path (":memory:" works for tests).
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultDBConfig returns default database configuration
func DefaultDBConfig() DBConfig {
	return DBConfig{
		DSN:             "gateway.db",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}

// NewDB opens the database, configures the pool, and ensures the schema.
func NewDB(cfg DBConfig) (*DB, error) {
	driver := "sqlite"
	if strings.HasPrefix(cfg.DSN, "postgres://") || strings.HasPrefix(cfg.DSN, "postgresql://") {
		driver = "postgres"
	}

	conn, err := sqlx.Connect(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	db := &DB{conn: conn, driver: driver}

	if driver == "sqlite" {
		if err := db.configureSQLite(); err != nil {
			conn.Close()
			return nil, err
		}
		// The embedded driver serializes writes itself; a single connection
		// avoids SQLITE_BUSY under concurrent appends.
		conn.SetMaxOpenConns(1)
	}

	if err := db.ensureSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return db, nil
}

func (db *DB) configureSQLite() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.conn.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	return nil
}

// ensureSchema creates the tables on first start. Timestamps are stored as
// Unix milliseconds (BIGINT) so window queries behave identically on both
// backends; the SQLite driver does not round-trip native time values.
func (db *DB) ensureSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS plans (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			max_requests_per_month INTEGER NOT NULL,
			max_tokens_per_month INTEGER NOT NULL,
			max_tokens_per_request INTEGER NOT NULL,
			max_file_size_mb INTEGER NOT NULL,
			allow_streaming BOOLEAN NOT NULL,
			allow_vision BOOLEAN NOT NULL,
			allow_document_generation BOOLEAN NOT NULL,
			price_per_month_vnd DOUBLE PRECISION NOT NULL,
			price_per_year_vnd DOUBLE PRECISION NOT NULL,
			is_active BOOLEAN NOT NULL,
			sort_order INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS subscribers (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			full_name TEXT NOT NULL DEFAULT '',
			company TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			api_key_hash TEXT NOT NULL UNIQUE,
			role TEXT NOT NULL DEFAULT 'user',
			is_active BOOLEAN NOT NULL,
			plan_id TEXT NOT NULL,
			subscription_start_ms BIGINT NOT NULL,
			subscription_end_ms BIGINT,
			created_ms BIGINT NOT NULL,
			last_login_ms BIGINT,
			last_login_ip TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS usage_events (
			id TEXT PRIMARY KEY,
			subscriber_id TEXT NOT NULL,
			endpoint TEXT NOT NULL,
			kind TEXT NOT NULL,
			ts_ms BIGINT NOT NULL,
			prompt_tokens INTEGER NOT NULL,
			completion_tokens INTEGER NOT NULL,
			total_tokens INTEGER NOT NULL,
			estimated_cost DOUBLE PRECISION NOT NULL,
			response_time_ms INTEGER NOT NULL,
			is_success BOOLEAN NOT NULL,
			error_message TEXT NOT NULL DEFAULT '',
			client_ip TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_events_subscriber_ts
			ON usage_events (subscriber_id, ts_ms)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_events_ts
			ON usage_events (ts_ms)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks if the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Health returns the health status of the database
func (db *DB) Health(ctx context.Context) error {
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var result int
	if err := db.conn.GetContext(ctx, &result, "SELECT 1"); err != nil {
		return fmt.Errorf("health check query failed: %w", err)
	}
	return nil
}

// Driver returns the active driver name ("sqlite" or "postgres").
func (db *DB) Driver() string {
	return db.driver
}

// Conn returns the underlying sqlx connection
// Use this for custom queries not covered by repositories
func (db *DB) Conn() *sqlx.DB {
	return db.conn
}

// Repository factory methods

// NewPlanRepository creates a new plan repository
func (db *DB) NewPlanRepository() *PlanRepository {
	return NewPlanRepository(db)
}

// NewUsageRepository creates a new usage repository
func (db *DB) NewUsageRepository() *UsageRepository {
	return NewUsageRepository(db)
}

// NewSubscriberRepository creates a new subscriber repository
func (db *DB) NewSubscriberRepository() *SubscriberRepository {
	return NewSubscriberRepository(db)
}
