package db

import (
	"database/sql"
	"fmt"

	"backend-groupride/internal/config"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens the on-device ride database at cfg.SQLitePath.
func OpenSQLite(cfg config.Config) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// A single writer keeps appends serialized inside SQLite.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable wal: %w", err)
	}
	return conn, nil
}
