// Package store persists player language preferences and runtime-created
// translations in a relational database. SQLite is the bundled driver; the
// schema is plain SQL and table names are configurable.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Tables holds the configurable table names.
type Tables struct {
	PlayerLanguage      string
	DynamicTranslations string
}

// DefaultTables returns the default table names.
func DefaultTables() Tables {
	return Tables{
		PlayerLanguage:      "player_language",
		DynamicTranslations: "dynamic_translations",
	}
}

// Open opens (and creates if needed) the SQLite database at path with WAL
// journaling and initializes the schema.
func Open(path string, tables Tables) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := InitSchema(db, tables); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// InitSchema creates the tables and indices when absent.
func InitSchema(db *sql.DB, tables Tables) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			uuid TEXT PRIMARY KEY,
			language TEXT NOT NULL,
			auto_detected INTEGER NOT NULL DEFAULT 0,
			first_join TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`, tables.PlayerLanguage),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_language ON %s (language)`,
			tables.PlayerLanguage, tables.PlayerLanguage),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			namespace TEXT NOT NULL,
			translation_key TEXT NOT NULL,
			language TEXT NOT NULL,
			text TEXT NOT NULL,
			plural_zero TEXT,
			plural_one TEXT,
			plural_two TEXT,
			plural_few TEXT,
			plural_many TEXT,
			plural_other TEXT,
			source TEXT NOT NULL DEFAULT 'dynamic',
			status TEXT NOT NULL DEFAULT 'active',
			sync_status TEXT NOT NULL DEFAULT 'pending',
			crowdin_hash TEXT,
			last_synced_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE (namespace, translation_key, language)
		)`, tables.DynamicTranslations),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_namespace ON %s (namespace)`,
			tables.DynamicTranslations, tables.DynamicTranslations),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_language ON %s (language)`,
			tables.DynamicTranslations, tables.DynamicTranslations),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_sync_status ON %s (sync_status)`,
			tables.DynamicTranslations, tables.DynamicTranslations),
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}
	}
	return nil
}
