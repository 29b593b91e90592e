package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS pdf_templates (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    file_name TEXT NOT NULL,
    fields TEXT NOT NULL DEFAULT '[]',
    active INTEGER NOT NULL DEFAULT 1,
    created_by TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// OpenSQLite opens (or creates) a SQLite database at path and ensures the
// schema exists. The driver is pure Go, so the same binary serves both
// backends.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	sdb, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite handles one writer at a time; serialize access through a
	// single connection to avoid SQLITE_BUSY under concurrent saves.
	sdb.SetMaxOpenConns(1)

	if err := sdb.PingContext(ctx); err != nil {
		sdb.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	if _, err := sdb.ExecContext(ctx, sqliteSchema); err != nil {
		sdb.Close()
		return nil, fmt.Errorf("ensure sqlite schema: %w", err)
	}

	return sdb, nil
}
