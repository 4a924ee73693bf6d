package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Database is the audit store handle. It composes:
// - SQLite connection with WAL mode
// - Embedded migration runner
// - Async writer hookup for non-blocking audit writes
//
// One Database per audit file; repositories share its connection.
//
// Usage:
//
//	store, err := NewDatabase("horde_audit.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	repo := NewRepository(store, nil)
type Database struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// DatabaseConfig holds configuration for the audit store.
type DatabaseConfig struct {
	// Path is the database file path
	Path string
	// ConnectionConfig allows customizing the SQLite connection
	ConnectionConfig *ConnectionConfig
}

// DefaultDatabaseConfig returns sensible defaults for the audit store.
func DefaultDatabaseConfig(path string) DatabaseConfig {
	return DatabaseConfig{
		Path:             path,
		ConnectionConfig: nil, // Use defaults
	}
}

// NewDatabase creates a new audit store with default configuration.
// It opens the connection with WAL mode and foreign keys enabled and
// applies any pending schema migrations.
//
// The database file and its parent directories are created if they don't exist.
func NewDatabase(path string) (*Database, error) {
	return NewDatabaseWithConfig(DefaultDatabaseConfig(path))
}

// NewDatabaseWithConfig creates a new audit store with custom configuration.
func NewDatabaseWithConfig(config DatabaseConfig) (*Database, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Ensure parent directory exists
	dir := filepath.Dir(config.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	var connConfig ConnectionConfig
	if config.ConnectionConfig != nil {
		connConfig = *config.ConnectionConfig
	} else {
		connConfig = DefaultConnectionConfig(config.Path)
	}

	conn, err := NewSQLiteConnection(connConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	database := &Database{
		db:   conn,
		path: config.Path,
	}

	if err := database.Migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return database, nil
}

// Migrate applies all pending schema migrations from the embedded
// migration files. Safe to call multiple times; only unapplied
// migrations run.
//
// A separate connection is used because golang-migrate takes ownership
// of the connection it is given.
func (d *Database) Migrate() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	conn, err := NewSQLiteConnectionWithDefaults(d.path)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	// MigrateUp closes conn via the migrator
	return MigrateUp(conn)
}

// DB returns the underlying sql.DB for repository use.
func (d *Database) DB() *sql.DB {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.path
}

// Close closes the underlying connection. The Database must not be
// used after Close returns.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}
