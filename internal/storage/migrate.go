package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

// Schema scripts ship embedded in the binary as ordered pairs of
// NNNN_name.up.sql / NNNN_name.down.sql files.
//
//go:embed migrations/*.sql
var migrationFS embed.FS

// MigrateUp applies every up script in ascending order. Scripts use
// IF NOT EXISTS guards, so running against an initialized database is
// a no-op.
func MigrateUp(db *sql.DB) error {
	return runScripts(db, ".up.sql", false)
}

// MigrateDown rolls the schema back, newest script first.
func MigrateDown(db *sql.DB) error {
	return runScripts(db, ".down.sql", true)
}

func runScripts(db *sql.DB, suffix string, newestFirst bool) error {
	names, err := fs.Glob(migrationFS, "migrations/*"+suffix)
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}
	if newestFirst {
		sort.Sort(sort.Reverse(sort.StringSlice(names)))
	} else {
		sort.Strings(names)
	}

	for _, name := range names {
		script, err := migrationFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := db.Exec(string(script)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}
