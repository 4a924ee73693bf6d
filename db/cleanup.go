package db

import (
	"context"
	"fmt"
	"time"
)

// CleanupResult contains statistics about a retention cleanup run.
type CleanupResult struct {
	// GenerationsDeleted is the number of records deleted from generations
	GenerationsDeleted int64
	// GenerationEventsDeleted is the number of records deleted from generation_events
	GenerationEventsDeleted int64
	// TotalDeleted is the sum of all deleted records
	TotalDeleted int64
	// Duration is how long the cleanup took
	Duration time.Duration
}

// tablesToClean defines the tables that have retention policies.
// All tables must have a created_at column with DATETIME type.
var tablesToClean = []string{
	"generation_events",
	"generations",
}

// Cleanup deletes records older than retentionDays from all
// retention-managed tables and runs VACUUM to reclaim disk space.
//
// Runs in a transaction; if any deletion fails, the entire operation
// is rolled back.
//
// Example:
//
//	result, err := store.Cleanup(30) // Delete records older than 30 days
//	if err != nil {
//	    log.Printf("Cleanup failed: %v", err)
//	}
func (d *Database) Cleanup(retentionDays int) (CleanupResult, error) {
	return d.CleanupWithContext(context.Background(), retentionDays)
}

// CleanupWithContext is the context-aware version of Cleanup. It
// returns early if the context is cancelled, rolling back any pending
// changes.
func (d *Database) CleanupWithContext(ctx context.Context, retentionDays int) (CleanupResult, error) {
	start := time.Now()
	result := CleanupResult{}

	if retentionDays <= 0 {
		return result, fmt.Errorf("retention days must be positive, got %d", retentionDays)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return result, fmt.Errorf("database connection is nil")
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin cleanup transaction: %w", err)
	}
	defer tx.Rollback()

	cutoff := fmt.Sprintf("-%d days", retentionDays)

	for _, table := range tablesToClean {
		query := fmt.Sprintf("DELETE FROM %s WHERE created_at < datetime('now', ?)", table)
		res, err := tx.ExecContext(ctx, query, cutoff)
		if err != nil {
			return result, fmt.Errorf("failed to clean %s: %w", table, err)
		}

		deleted, err := res.RowsAffected()
		if err != nil {
			return result, fmt.Errorf("failed to count deletions for %s: %w", table, err)
		}

		switch table {
		case "generations":
			result.GenerationsDeleted = deleted
		case "generation_events":
			result.GenerationEventsDeleted = deleted
		}
		result.TotalDeleted += deleted
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("failed to commit cleanup: %w", err)
	}

	// VACUUM cannot run inside a transaction
	if _, err := d.db.ExecContext(ctx, "VACUUM"); err != nil {
		return result, fmt.Errorf("cleanup succeeded but VACUUM failed: %w", err)
	}

	result.Duration = time.Since(start)
	return result, nil
}
