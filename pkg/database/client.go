// Package database provides the embedded SQLite client and migration utilities.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite" // register the pure-Go sqlite driver
)

//go:embed migrations
var migrationsFS embed.FS

// Config holds the embedded database settings.
type Config struct {
	// Path is the database file location. ":memory:" opens a private
	// in-memory database (used by tests).
	Path string

	// BusyTimeoutMS is how long a blocked writer waits before failing.
	BusyTimeoutMS int
}

// Client wraps the SQLite connection.
type Client struct {
	db   *sql.DB
	path string
}

// DB returns the underlying connection for health checks and direct queries.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Path returns the database file location.
func (c *Client) Path() string {
	return c.path
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.db.Close()
}

// NewClient opens the database, applies pragmas, and runs pending migrations.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Path == "" {
		return nil, errors.New("database path must not be empty")
	}
	if cfg.BusyTimeoutMS <= 0 {
		cfg.BusyTimeoutMS = 5000
	}

	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers; keeping a single pooled connection avoids
	// SQLITE_BUSY churn under concurrent component writes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Client{db: db, path: cfg.Path}, nil
}

// dsn builds the driver connection string with the pragmas every connection
// needs: WAL journaling, foreign keys, and the busy timeout.
func dsn(cfg Config) string {
	pragmas := []string{
		"_pragma=journal_mode(WAL)",
		"_pragma=foreign_keys(1)",
		fmt.Sprintf("_pragma=busy_timeout(%d)", cfg.BusyTimeoutMS),
	}
	if cfg.Path == ":memory:" {
		return ":memory:?" + strings.Join(pragmas, "&")
	}
	return "file:" + cfg.Path + "?" + strings.Join(pragmas, "&")
}

// runMigrations applies pending schema migrations using golang-migrate with
// the migration files embedded at compile time.
func runMigrations(db *sql.DB) error {
	hasMigrations, err := hasEmbeddedMigrations()
	if err != nil {
		return fmt.Errorf("failed to check embedded migrations: %w", err)
	}
	if !hasMigrations {
		return errors.New("no embedded migration files found")
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite migrate driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "scout", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Close only the source. m.Close() would also close the database driver,
	// which closes the shared *sql.DB.
	if err := sourceDriver.Close(); err != nil {
		return fmt.Errorf("failed to close migration source: %w", err)
	}

	return nil
}

// hasEmbeddedMigrations checks that the embedded FS contains .sql files.
func hasEmbeddedMigrations() (bool, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read embedded migrations: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			return true, nil
		}
	}
	return false, nil
}
