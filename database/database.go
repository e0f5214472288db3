// Package database provides database connectivity and schema management.
package database

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3" // Import sqlite3 driver

	"watchlist/models"
)

// DB wraps the SQL database connection
type DB struct {
	*sql.DB
}

// NewDB creates a new SQLite database connection
func NewDB(dataSourceName string) (*DB, error) {
	dsn := dataSourceName
	if dsn != ":memory:" && !strings.Contains(dsn, "?") {
		dsn += "?_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer at a time; also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}

// InitSchema creates one table per category plus the activity log
func (db *DB) InitSchema() error {
	for _, stmt := range SchemaStatements("INTEGER PRIMARY KEY AUTOINCREMENT", "DATETIME") {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// SchemaStatements renders the DDL shared by the SQLite and Postgres backends.
// serial and timestamp carry the dialect-specific column types.
func SchemaStatements(serial, timestamp string) []string {
	var stmts []string
	for _, c := range models.Categories {
		table := c.Table()
		stmts = append(stmts,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		genre TEXT NOT NULL DEFAULT '',
		year INTEGER NOT NULL DEFAULT 0,
		%s
		poster TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'to_watch' CHECK (status IN ('to_watch', 'watching', 'watched')),
		priority INTEGER NOT NULL DEFAULT 0 CHECK (priority BETWEEN 0 AND 5),
		last_priority INTEGER NOT NULL DEFAULT 0 CHECK (last_priority BETWEEN 0 AND 5),
		created_at %s DEFAULT CURRENT_TIMESTAMP,
		updated_at %s DEFAULT CURRENT_TIMESTAMP
	)`, table, extraColumnsDDL(c), timestamp, timestamp),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_priority ON %s(priority)`, table, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_status ON %s(status)`, table, table),
		)
	}

	stmts = append(stmts,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS item_events (
		id %s,
		category TEXT NOT NULL,
		item_id INTEGER NOT NULL,
		type TEXT NOT NULL,
		message TEXT NOT NULL,
		details TEXT,
		created_at %s DEFAULT CURRENT_TIMESTAMP
	)`, serial, timestamp),
		`CREATE INDEX IF NOT EXISTS idx_item_events_item ON item_events(category, item_id)`,
		`CREATE INDEX IF NOT EXISTS idx_item_events_created_at ON item_events(created_at)`,
	)
	return stmts
}

func extraColumnsDDL(c models.Category) string {
	if c == models.CategoryMovie {
		return "runtime INTEGER NOT NULL DEFAULT 0,"
	}
	return "seasons INTEGER NOT NULL DEFAULT 0,\n\t\tepisodes INTEGER NOT NULL DEFAULT 0,"
}
