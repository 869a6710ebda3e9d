package sqlite

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/yegors/aeris/pkg/logger"
	_ "modernc.org/sqlite"
)

// Import logger functions
var (
	String = logger.String
	Error  = logger.Error
)

// Storage owns the SQLite connection shared by the key/value and lookup log stores
type Storage struct {
	db     *sqlx.DB
	clock  clockwork.Clock
	logger *logger.Logger
}

// Open opens (or creates) the database at dbPath and initializes the schema.
// ":memory:" is accepted for tests.
func Open(dbPath string, clock clockwork.Clock, log *logger.Logger) (*Storage, error) {
	storageLogger := log.Named("sqlite")
	storageLogger.Info("Initializing SQLite storage", String("path", dbPath))

	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer at a time
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := initDatabase(db, storageLogger); err != nil {
		db.Close()
		return nil, err
	}

	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Storage{db: db, clock: clock, logger: storageLogger}, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks the connection
func (s *Storage) Ping() error {
	return s.db.Ping()
}

func initDatabase(db *sqlx.DB, log *logger.Logger) error {
	log.Debug("Initializing database schema")

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			scope TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (scope, key)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create kv table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS lookups (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			flight TEXT NOT NULL,
			status_code INTEGER NOT NULL,
			flight_status TEXT,
			error TEXT,
			has_position BOOLEAN NOT NULL DEFAULT 0,
			cached BOOLEAN NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL,
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create lookups table: %w", err)
	}

	// Databases created before the cached flag existed
	if err := addColumnIfMissing(db, "lookups", "cached", "BOOLEAN NOT NULL DEFAULT 0"); err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_lookups_created_at ON lookups(created_at)`)
	if err != nil {
		return fmt.Errorf("failed to create created_at index: %w", err)
	}

	return nil
}

func addColumnIfMissing(db *sqlx.DB, table, column, definition string) error {
	var columns []string
	if err := db.Select(&columns, `SELECT name FROM pragma_table_info(?)`, table); err != nil {
		return fmt.Errorf("failed to inspect %s table: %w", table, err)
	}
	for _, c := range columns {
		if c == column {
			return nil
		}
	}
	if _, err := db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition)); err != nil {
		return fmt.Errorf("failed to add %s.%s: %w", table, column, err)
	}
	return nil
}
