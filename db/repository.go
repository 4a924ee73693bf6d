package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// GenerationRecord represents a row in the generations table.
// One record is written per generation lifecycle, after it reaches a
// terminal state.
type GenerationRecord struct {
	ID           int64     // Auto-incremented primary key
	GenerationID string    // Local generation UUID
	JobID        string    // Server-assigned job ID, empty if never submitted
	Kind         string    // "image", "text", or "alchemy"
	Model        string    // Model that served the job, if known
	FinalState   string    // Terminal progress state reached
	FailureCount int       // Number of errors encountered along the way
	ErrorDetail  string    // Last failure message, empty on clean completion
	Kudos        float64   // Kudos the job consumed
	ResultCount  int       // Number of results actually produced
	DurationMS   int       // Wall time from start to terminal state
	CreatedAt    time.Time // Timestamp when record was created
}

// GenerationEvent represents a row in the generation_events table,
// one per state transition.
type GenerationEvent struct {
	ID           int64     // Auto-incremented primary key
	GenerationID string    // Local generation UUID
	State        string    // Progress state entered
	Detail       string    // Optional detail (error message, job ID)
	CreatedAt    time.Time // Timestamp when event occurred
}

// Repository provides audit-store operations for generation records
// and their transition events.
//
// The Repository works with both synchronous and asynchronous writes:
// pass an AsyncWriter to queue inserts off the caller's goroutine.
type Repository struct {
	db          *Database
	asyncWriter *AsyncWriter
}

// NewRepository creates a new Repository instance.
// The asyncWriter parameter is optional; if nil, all writes are synchronous.
func NewRepository(db *Database, asyncWriter *AsyncWriter) *Repository {
	return &Repository{
		db:          db,
		asyncWriter: asyncWriter,
	}
}

// InsertGeneration inserts a finished generation record.
// If an asyncWriter is configured, the write is queued and the returned
// ID is 0.
func (r *Repository) InsertGeneration(ctx context.Context, record GenerationRecord) (int64, error) {
	if r.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}

	if r.asyncWriter != nil {
		return 0, r.asyncWriter.Queue(AuditWrite{Record: record, QueuedAt: time.Now()})
	}

	return r.insertGenerationSync(ctx, record)
}

func (r *Repository) insertGenerationSync(ctx context.Context, record GenerationRecord) (int64, error) {
	query := `
		INSERT INTO generations (
			generation_id, job_id, kind, model, final_state,
			failure_count, error_detail, kudos, result_count, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.DB().ExecContext(ctx, query,
		record.GenerationID,
		record.JobID,
		record.Kind,
		record.Model,
		record.FinalState,
		record.FailureCount,
		record.ErrorDetail,
		record.Kudos,
		record.ResultCount,
		record.DurationMS,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert generation record: %w", err)
	}

	return result.LastInsertId()
}

// InsertGenerationEvent inserts a single transition event.
// If an asyncWriter is configured, the write is queued and the returned
// ID is 0.
func (r *Repository) InsertGenerationEvent(ctx context.Context, event GenerationEvent) (int64, error) {
	if r.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}

	if r.asyncWriter != nil {
		return 0, r.asyncWriter.Queue(AuditWrite{Record: event, QueuedAt: time.Now()})
	}

	return r.insertGenerationEventSync(ctx, event)
}

func (r *Repository) insertGenerationEventSync(ctx context.Context, event GenerationEvent) (int64, error) {
	query := `INSERT INTO generation_events (generation_id, state, detail) VALUES (?, ?, ?)`

	result, err := r.db.DB().ExecContext(ctx, query, event.GenerationID, event.State, event.Detail)
	if err != nil {
		return 0, fmt.Errorf("failed to insert generation event: %w", err)
	}

	return result.LastInsertId()
}

// handleAuditWrite dispatches a queued write to the matching sync insert.
// Used as the AsyncWriter handler.
func (r *Repository) handleAuditWrite(op AuditWrite) error {
	switch record := op.Record.(type) {
	case GenerationRecord:
		_, err := r.insertGenerationSync(context.Background(), record)
		return err
	case GenerationEvent:
		_, err := r.insertGenerationEventSync(context.Background(), record)
		return err
	default:
		return fmt.Errorf("unknown audit record type %T", op.Record)
	}
}

// ListRecentGenerations returns the most recent generation records,
// newest first, up to limit.
func (r *Repository) ListRecentGenerations(ctx context.Context, limit int) ([]GenerationRecord, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, generation_id, job_id, kind, model, final_state,
		       failure_count, error_detail, kudos, result_count, duration_ms, created_at
		FROM generations
		ORDER BY created_at DESC, id DESC
		LIMIT ?`

	rows, err := r.db.DB().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}
	defer rows.Close()

	var records []GenerationRecord
	for rows.Next() {
		var rec GenerationRecord
		if err := rows.Scan(
			&rec.ID, &rec.GenerationID, &rec.JobID, &rec.Kind, &rec.Model,
			&rec.FinalState, &rec.FailureCount, &rec.ErrorDetail,
			&rec.Kudos, &rec.ResultCount, &rec.DurationMS, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan generation record: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// ListGenerationEvents returns all transition events for a generation,
// oldest first.
func (r *Repository) ListGenerationEvents(ctx context.Context, generationID string) ([]GenerationEvent, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	query := `
		SELECT id, generation_id, state, detail, created_at
		FROM generation_events
		WHERE generation_id = ?
		ORDER BY id ASC`

	rows, err := r.db.DB().QueryContext(ctx, query, generationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query generation events: %w", err)
	}
	defer rows.Close()

	var events []GenerationEvent
	for rows.Next() {
		var ev GenerationEvent
		if err := rows.Scan(&ev.ID, &ev.GenerationID, &ev.State, &ev.Detail, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan generation event: %w", err)
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}

// CountByFinalState returns how many generations ended in each terminal state.
func (r *Repository) CountByFinalState(ctx context.Context) (map[string]int64, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	rows, err := r.db.DB().QueryContext(ctx,
		`SELECT final_state, COUNT(*) FROM generations GROUP BY final_state`)
	if err != nil {
		return nil, fmt.Errorf("failed to query state counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var state string
		var count int64
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("failed to scan state count: %w", err)
		}
		counts[state] = count
	}

	return counts, rows.Err()
}

// TotalKudosSpent returns the sum of kudos across all recorded generations.
func (r *Repository) TotalKudosSpent(ctx context.Context) (float64, error) {
	if r.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}

	var total sql.NullFloat64
	err := r.db.DB().QueryRowContext(ctx, `SELECT SUM(kudos) FROM generations`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to query kudos total: %w", err)
	}
	return total.Float64, nil
}
