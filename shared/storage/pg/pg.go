// Package pg provides core PostgreSQL primitives for storage layers.
//
// Core Components:
//   - Querier: interface for transaction-agnostic database operations
//   - Connect: pooled connection with retry until the database answers
//   - WithTx: helper for managing database transactions
//   - Migrate: goose migrations from an embedded filesystem
//   - Error helpers: classification of driver errors
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/itchan-dev/authd/shared/config"
	"github.com/itchan-dev/authd/shared/logger"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

// =========================================================================
// Core Interfaces
// =========================================================================

// Querier is satisfied by both *sql.DB and *sql.Tx, so core query logic can
// run either on the pool or inside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// =========================================================================
// Connection Management
// =========================================================================

// ConnectionConfig holds database connection pool settings.
type ConnectionConfig struct {
	MaxOpenConns    int           // Maximum number of open connections to the database
	MaxIdleConns    int           // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration // Maximum amount of time a connection may be reused
	ConnMaxIdleTime time.Duration // Maximum amount of time a connection may be idle
	ConnectTimeout  time.Duration // Total time spent retrying the initial ping
}

// DefaultConnectionConfig returns pool settings suitable for the API server.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
		ConnectTimeout:  30 * time.Second,
	}
}

// LightweightConnectionConfig returns conservative settings for one-shot
// tools such as the bootstrap command.
func LightweightConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
		ConnectTimeout:  30 * time.Second,
	}
}

// ConnString builds a lib/pq keyword/value connection string.
func ConnString(cfg config.Pg) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Dbname)
}

// Connect opens the pool and pings it with exponential backoff, so instances
// started alongside the database wait for it instead of crashing.
func Connect(ctx context.Context, cfg config.Pg, connCfg ConnectionConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(connCfg.MaxOpenConns)
	db.SetMaxIdleConns(connCfg.MaxIdleConns)
	db.SetConnMaxLifetime(connCfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(connCfg.ConnMaxIdleTime)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = connCfg.ConnectTimeout

	attempt := 0
	ping := func() error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	}
	notify := func(err error, delay time.Duration) {
		logger.Log.Warn("database not ready, retrying",
			"component", "pg",
			"attempt", attempt,
			"delay", delay,
			"error", err)
	}

	if err := backoff.RetryNotify(ping, backoff.WithContext(bo, ctx), notify); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database after %d attempts: %w", attempt, err)
	}

	return db, nil
}

// =========================================================================
// Transaction Helpers
// =========================================================================

// WithTx executes fn within a database transaction. A returned error rolls
// the transaction back; otherwise it is committed.
func WithTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // No-op if transaction is already committed

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// =========================================================================
// Migrations
// =========================================================================

// gooseUp is a seam for tests.
var gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
	return goose.UpContext(ctx, db, dir)
}

// Migrate applies every pending migration found in dir of fsys.
func Migrate(ctx context.Context, db *sql.DB, fsys fs.FS, dir string) error {
	goose.SetBaseFS(fsys)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := gooseUp(ctx, db, dir); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// gooseLogger routes goose output through the service logger.
type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...interface{}) {
	logger.Log.Info(fmt.Sprintf(format, v...), "component", "migrations")
}

func (gooseLogger) Fatalf(format string, v ...interface{}) {
	logger.Log.Error(fmt.Sprintf(format, v...), "component", "migrations")
}

// =========================================================================
// Error Helpers
// =========================================================================

const uniqueViolation = "23505"

// IsUniqueViolation reports whether err comes from a UNIQUE or PRIMARY KEY
// constraint.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
