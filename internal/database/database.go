package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Options selects the engine and storage location.
type Options struct {
	Driver           string
	DSN              string
	BusyTimeout      time.Duration
	EnforceUniqueSKU bool
	Logger           *slog.Logger
}

// DB is the process-wide storage handle. It is opened once at startup and
// closed on shutdown; every repository call shares its connection pool.
type DB struct {
	*sql.DB
	Dialect     Dialect
	BusyTimeout time.Duration
	UniqueSKU   bool
}

// OpenDB opens the connection pool described by opts and makes sure the
// items table exists.
func OpenDB(ctx context.Context, opts Options) (*DB, error) {
	dialect, err := ParseDialect(opts.Driver)
	if err != nil {
		return nil, err
	}

	dsn := opts.DSN
	switch dialect {
	case SQLite:
		dsn = sqliteDSN(dsn, opts.BusyTimeout)
	case MySQL:
		dsn = mysqlDSN(dsn)
	}

	pool, err := OpenDBWithDSN(ctx, dialect, dsn)
	if err != nil {
		return nil, err
	}

	db := &DB{
		DB:          pool,
		Dialect:     dialect,
		BusyTimeout: opts.BusyTimeout,
		UniqueSKU:   opts.EnforceUniqueSKU,
	}
	if err := db.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("database ready",
		slog.String("driver", string(dialect)),
		slog.Bool("unique_sku", opts.EnforceUniqueSKU))
	return db, nil
}

// OpenDBWithDSN creates and configures a connection pool for any DSN of the
// given dialect and verifies it with a ping.
func OpenDBWithDSN(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	switch dialect {
	case SQLite:
		// A single writer connection; cross-process contention is handled by
		// busy_timeout and WithRetry.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	default:
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	return db, nil
}

// EnsureSchema creates the items table and its indexes if they are missing.
// Safe to call any number of times.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range db.Dialect.SchemaStatements(db.UniqueSKU) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// WithRetry runs fn, retrying with exponential backoff while the engine
// reports a busy or lock-timeout condition. Other errors return immediately.
func (db *DB) WithRetry(ctx context.Context, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	b.MaxElapsedTime = db.BusyTimeout
	if b.MaxElapsedTime <= 0 {
		b.MaxElapsedTime = 2 * time.Second
	}

	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if db.Dialect.IsBusy(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(b, ctx))
}

func sqliteDSN(path string, busy time.Duration) string {
	if busy <= 0 {
		busy = 2 * time.Second
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		path, sep, busy.Milliseconds())
}

// mysqlDSN makes RowsAffected count matched rows rather than changed rows,
// so an update that rewrites identical values is not mistaken for a miss.
func mysqlDSN(dsn string) string {
	if strings.Contains(dsn, "clientFoundRows") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&clientFoundRows=true"
	}
	return dsn + "?clientFoundRows=true"
}
