// Package db opens the DuckDB database used for price analytics.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// dsnOptions keeps queries away from files and URLs outside the database.
// The SQL console is reachable over HTTP, so table functions such as
// read_text must not see the host filesystem.
const dsnOptions = "enable_external_access=false"

// Config holds database configuration. An empty DBName opens an in-memory
// database and ignores DataDir.
type Config struct {
	DataDir string
	DBName  string
}

// Path returns the database file path, or "" for an in-memory database.
func (c Config) Path() string {
	if c.DBName == "" {
		return ""
	}
	return filepath.Join(c.DataDir, "duckdb", c.DBName+".duckdb")
}

// Open opens the DuckDB database described by cfg with external access
// disabled and checks the connection.
func Open(cfg Config) (*sql.DB, error) {
	path := cfg.Path()
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
		}
	}

	conn, err := sql.Open("duckdb", path+"?"+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return conn, nil
}
