package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate creates the live and archive tables with their indexes.  It is
// idempotent.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Reset drops both tables.  Only test-mode startups call it.
func Reset(ctx context.Context, db *sql.DB) error {
	for _, table := range []string{"scan_results", "old_scan_results"} {
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return nil
}
