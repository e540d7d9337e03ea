package storage

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	cp "github.com/otiai10/copy"
)

const migrationTable = "schema_migrations"

// applyMigrations executes embedded migration files at most once each,
// in lexical order. When the database file already exists and has
// pending migrations, a .bak copy is taken first so a bad upgrade never
// costs the run history.
func applyMigrations(sqlDB *sql.DB, migrationFS fs.FS, dbPath string) error {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := sqlDB.Exec(fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (name TEXT PRIMARY KEY, applied_at TEXT NOT NULL)`,
		migrationTable)); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	pending := make([]string, 0, len(files))
	for _, f := range files {
		applied, err := isApplied(sqlDB, f)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", f, err)
		}
		if !applied {
			pending = append(pending, f)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	if info, err := os.Stat(dbPath); err == nil && info.Size() > 0 {
		if err := cp.Copy(dbPath, dbPath+".bak"); err != nil {
			return fmt.Errorf("back up database before migration: %w", err)
		}
	}

	for _, f := range pending {
		content, err := fs.ReadFile(migrationFS, f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		upSQL := extractUp(string(content))
		if strings.TrimSpace(upSQL) == "" {
			continue
		}

		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", f, err)
		}
		if _, err := tx.Exec(upSQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
		if _, err := tx.Exec(
			fmt.Sprintf("INSERT OR IGNORE INTO %s (name, applied_at) VALUES (?, ?)", migrationTable),
			f, time.Now().UTC().Format(TimeFormat),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", f, err)
		}
	}
	return nil
}

func isApplied(sqlDB *sql.DB, name string) (bool, error) {
	var n int
	err := sqlDB.QueryRow(
		fmt.Sprintf("SELECT COUNT(1) FROM %s WHERE name = ?", migrationTable), name,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// extractUp returns the SQL in the "-- +migrate Up" section.
func extractUp(content string) string {
	upIdx := strings.Index(content, "-- +migrate Up")
	if upIdx == -1 {
		return content
	}
	rest := content[upIdx+len("-- +migrate Up"):]
	if downIdx := strings.Index(rest, "-- +migrate Down"); downIdx != -1 {
		return rest[:downIdx]
	}
	return rest
}
