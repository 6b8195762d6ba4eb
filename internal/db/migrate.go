package db

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
)

func ApplyMigrationFile(db *sql.DB, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	if _, err := db.Exec(string(b)); err != nil && !isDuplicateObjectErr(err) {
		return fmt.Errorf("apply migration: %w", err)
	}

	// Backward-compatible patching for early schema revisions.
	for _, stmt := range []string{
		`ALTER TABLE events ADD COLUMN summary TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE events ADD COLUMN priority TEXT NOT NULL DEFAULT 'medium'`,
		`ALTER TABLE events ADD COLUMN required_rank INTEGER NOT NULL DEFAULT 1`,
		`ALTER TABLE users ADD COLUMN last_activity_at TIMESTAMP`,
	} {
		if _, err := db.Exec(stmt); err != nil && !isDuplicateObjectErr(err) {
			return fmt.Errorf("apply compatibility migration %q: %w", stmt, err)
		}
	}
	return nil
}

func isDuplicateObjectErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate column") || strings.Contains(msg, "already exists")
}
