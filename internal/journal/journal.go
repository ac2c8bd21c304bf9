package journal

import (
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migrations[i] upgrades a journal from user_version i+1 to i+2.
var migrations = []string{
	`ALTER TABLE runs ADD COLUMN initial_state TEXT NOT NULL DEFAULT '{}'`,
}

// schemaVersion is the user_version of a fully migrated journal.
var schemaVersion = 1 + len(migrations)

// Journal is an append-only SQLite log of runs. Each run holds the events
// dispatched to a pipe engine and the actions its pipes forwarded.
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal at path and migrates it to the current
// schema. Opening an up-to-date journal changes nothing.
func Open(path string) (*Journal, error) {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_synchronous", "NORMAL")
	params.Set("_busy_timeout", "5000")
	params.Set("_foreign_keys", "on")

	db, err := sql.Open("sqlite3", "file:"+path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	// One connection: pragmas apply per connection and SQLite has a single
	// writer anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal %s: %w", path, err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("schema version %d is newer than supported version %d", version, schemaVersion)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if version == 0 {
		if _, err := tx.Exec(schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		version = 1
	}
	for ; version < schemaVersion; version++ {
		if _, err := tx.Exec(migrations[version-1]); err != nil {
			return fmt.Errorf("migration to version %d: %w", version+1, err)
		}
	}
	// PRAGMA does not take bind parameters.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return tx.Commit()
}

func (j *Journal) pragma(name string) (string, error) {
	var value string
	err := j.db.QueryRow("PRAGMA " + name).Scan(&value)
	return value, err
}
