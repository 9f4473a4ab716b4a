package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect captures the few places where the supported engines disagree:
// DDL, identity reset and error classification.
type Dialect string

const (
	SQLite Dialect = "sqlite"
	MySQL  Dialect = "mysql"
)

// ParseDialect maps a DB_DRIVER value to a Dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch Dialect(strings.ToLower(driver)) {
	case SQLite:
		return SQLite, nil
	case MySQL:
		return MySQL, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", driver)
}

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string { return string(d) }

// SchemaStatements returns the idempotent DDL for the items table.
func (d Dialect) SchemaStatements(uniqueSKU bool) []string {
	if d == MySQL {
		skuKey := "KEY ix_items_sku (sku)"
		if uniqueSKU {
			skuKey = "UNIQUE KEY ux_items_sku (sku)"
		}
		return []string{`
		CREATE TABLE IF NOT EXISTS items (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(255) COLLATE utf8mb4_bin NOT NULL,
			sku VARCHAR(128) COLLATE utf8mb4_bin NOT NULL,
			category VARCHAR(255) NULL,
			cost_price DOUBLE NOT NULL DEFAULT 0 CHECK (cost_price >= 0),
			selling_price DOUBLE NOT NULL DEFAULT 0 CHECK (selling_price >= 0),
			quantity INT NOT NULL DEFAULT 0 CHECK (quantity >= 0),
			created_at CHAR(27) NOT NULL,
			updated_at CHAR(27) NOT NULL,
			` + skuKey + `,
			KEY ix_items_updated_at (updated_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`}
	}

	stmts := []string{`
		CREATE TABLE IF NOT EXISTS items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			sku TEXT NOT NULL,
			category TEXT,
			cost_price REAL NOT NULL DEFAULT 0 CHECK (cost_price >= 0),
			selling_price REAL NOT NULL DEFAULT 0 CHECK (selling_price >= 0),
			quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ix_items_updated_at ON items (updated_at)`,
	}
	if uniqueSKU {
		return append(stmts,
			`DROP INDEX IF EXISTS ix_items_sku`,
			`CREATE UNIQUE INDEX IF NOT EXISTS ux_items_sku ON items (sku)`,
		)
	}
	return append(stmts,
		`DROP INDEX IF EXISTS ux_items_sku`,
		`CREATE INDEX IF NOT EXISTS ix_items_sku ON items (sku)`,
	)
}

// ResetStatements empties the items table and restarts the id counter at 1.
func (d Dialect) ResetStatements() []string {
	if d == MySQL {
		return []string{`TRUNCATE TABLE items`}
	}
	return []string{
		`DELETE FROM items`,
		`DELETE FROM sqlite_sequence WHERE name = 'items'`,
	}
}

// IsBusy reports whether err is a transient lock condition worth retrying.
func (d Dialect) IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		// 1205 lock wait timeout, 1213 deadlock
		return me.Number == 1205 || me.Number == 1213
	}
	return strings.Contains(err.Error(), "database is locked")
}

// IsDuplicate reports whether err is a unique-constraint violation.
func (d Dialect) IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		if se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return true
		}
		return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE")
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
