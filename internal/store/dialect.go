package store

import (
	"fmt"
	"sort"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"
)

// Dialect describes how the record table is created and paged on one
// database engine.
type Dialect struct {
	// Name is the configured driver name (store.driver).
	Name string
	// DriverName is the database/sql driver registered by the imported
	// package.
	DriverName string
	// CreateTable creates the records table if it does not exist.
	CreateTable []string
	// Page renders the paging clause for a query that already has an
	// ORDER BY. Both values are bound as parameters.
	Page string
	// Single-connection engines (SQLite) serialize writes.
	MaxOpenConns int
}

var dialects = map[string]Dialect{
	"sqlite": {
		Name:       "sqlite",
		DriverName: "sqlite",
		CreateTable: []string{
			`CREATE TABLE IF NOT EXISTS records (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				owner_id TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_records_owner ON records(owner_id, created_at)`,
		},
		Page:         "LIMIT ? OFFSET ?",
		MaxOpenConns: 1,
	},
	"postgres": {
		Name:       "postgres",
		DriverName: "pgx",
		CreateTable: []string{
			`CREATE TABLE IF NOT EXISTS records (
				id VARCHAR(64) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				owner_id VARCHAR(255) NOT NULL,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_records_owner ON records(owner_id, created_at)`,
		},
		Page: "LIMIT ? OFFSET ?",
	},
	"mysql": {
		Name:       "mysql",
		DriverName: "mysql",
		CreateTable: []string{
			`CREATE TABLE IF NOT EXISTS records (
				id VARCHAR(64) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				owner_id VARCHAR(255) NOT NULL,
				created_at DATETIME(6) NOT NULL,
				updated_at DATETIME(6) NOT NULL,
				INDEX idx_records_owner (owner_id, created_at)
			)`,
		},
		Page: "LIMIT ? OFFSET ?",
	},
	"sqlserver": {
		Name:       "sqlserver",
		DriverName: "sqlserver",
		CreateTable: []string{
			`IF OBJECT_ID(N'records', N'U') IS NULL
			CREATE TABLE records (
				id NVARCHAR(64) PRIMARY KEY,
				name NVARCHAR(255) NOT NULL,
				owner_id NVARCHAR(255) NOT NULL,
				created_at DATETIME2 NOT NULL,
				updated_at DATETIME2 NOT NULL,
				INDEX idx_records_owner (owner_id, created_at)
			)`,
		},
		// OFFSET comes first in T-SQL, so the arguments are swapped by
		// pageArgs.
		Page: "OFFSET ? ROWS FETCH NEXT ? ROWS ONLY",
	},
}

// aliases maps alternative spellings to a dialect name.
var aliases = map[string]string{
	"sqlite3":    "sqlite",
	"pgx":        "postgres",
	"postgresql": "postgres",
	"mssql":      "sqlserver",
}

// LookupDialect returns the dialect for a configured driver name.
func LookupDialect(driver string) (Dialect, error) {
	name := strings.ToLower(strings.TrimSpace(driver))
	if alias, ok := aliases[name]; ok {
		name = alias
	}
	d, ok := dialects[name]
	if !ok {
		return Dialect{}, fmt.Errorf("unsupported driver: %s (available: %v)", driver, AvailableDrivers())
	}
	return d, nil
}

// AvailableDrivers returns the supported driver names in sorted order.
func AvailableDrivers() []string {
	names := make([]string, 0, len(dialects))
	for n := range dialects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (d Dialect) pageArgs(limit, offset int) []interface{} {
	if d.Name == "sqlserver" {
		return []interface{}{offset, limit}
	}
	return []interface{}{limit, offset}
}
