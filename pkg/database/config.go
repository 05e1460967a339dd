package database

import (
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Config holds database configuration.
// ARCHITECTURAL DISCOVERY: configuration struct provides all database settings
// needed for production deployment without hardcoded values.
type Config struct {
	DatabasePath    string        `json:"database_path"`
	MaxConnections  int           `json:"max_connections"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	MigrationsPath  string        `json:"migrations_path"`
}

// DefaultConfig returns production-ready database configuration.
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:    "./data/rooms.db",
		MaxConnections:  10, // SQLite's single-writer model caps useful concurrency well below this
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: time.Minute * 10,
		MigrationsPath:  "./migrations",
	}
}

// Validate ensures the configuration is usable before a Manager opens it.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return errors.New("database path cannot be empty")
	}
	if c.MaxConnections <= 0 {
		return errors.New("max connections must be greater than 0")
	}
	if c.ConnMaxLifetime <= 0 {
		return errors.New("connection max lifetime must be greater than 0")
	}
	if c.ConnMaxIdleTime <= 0 {
		return errors.New("connection max idle time must be greater than 0")
	}
	if c.MigrationsPath == "" {
		return errors.New("migrations path cannot be empty")
	}
	return nil
}

// sqliteOptimizations mirrors the pragmas the single-writer Manager relies
// on: WAL so readers never block on the writer, a bounded busy_timeout so a
// momentary lock contention surfaces as a slow call rather than a failure.
const sqliteOptimizations = `
	PRAGMA journal_mode = WAL;
	PRAGMA synchronous = NORMAL;
	PRAGMA cache_size = -64000;
	PRAGMA temp_store = MEMORY;
	PRAGMA foreign_keys = ON;
	PRAGMA busy_timeout = 5000;
`

func applySQLiteOptimizations(db *sql.DB) error {
	_, err := db.Exec(sqliteOptimizations)
	return err
}

// Open connects to a SQLite database at cfg.DatabasePath, applies the pool
// limits and WAL pragmas every caller of this database needs, and returns
// the raw handle — internal/store's single-writer Manager takes it from
// here, since connection lifecycle is this package's concern and write
// serialization is the store's.
func Open(cfg *Config) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := applySQLiteOptimizations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
