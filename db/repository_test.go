package db

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Database {
	t.Helper()

	store, err := NewDatabase(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func TestNewDatabaseAppliesMigrations(t *testing.T) {
	store := newTestStore(t)

	for _, table := range []string{"generations", "generation_events"} {
		var name string
		err := store.DB().QueryRow(
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s not created: %v", table, err)
		}
	}
}

func TestNewDatabaseCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "audit.db")

	store, err := NewDatabase(path)
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	store.Close()
}

func TestNewDatabaseRequiresPath(t *testing.T) {
	if _, err := NewDatabase(""); err == nil {
		t.Fatal("NewDatabase(\"\") expected error, got nil")
	}
}

func TestRepositoryInsertAndListGenerations(t *testing.T) {
	store := newTestStore(t)
	repo := NewRepository(store, nil)
	ctx := context.Background()

	records := []GenerationRecord{
		{
			GenerationID: "gen-1",
			JobID:        "job-1",
			Kind:         "image",
			Model:        "stable_diffusion",
			FinalState:   "submit_complete",
			Kudos:        12.5,
			ResultCount:  2,
			DurationMS:   8400,
		},
		{
			GenerationID: "gen-2",
			Kind:         "text",
			FinalState:   "reported_failed",
			FailureCount: 3,
			ErrorDetail:  "model timed out",
		},
	}

	for _, rec := range records {
		id, err := repo.InsertGeneration(ctx, rec)
		if err != nil {
			t.Fatalf("InsertGeneration(%s) error = %v", rec.GenerationID, err)
		}
		if id == 0 {
			t.Errorf("InsertGeneration(%s) returned id 0 for sync write", rec.GenerationID)
		}
	}

	listed, err := repo.ListRecentGenerations(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecentGenerations() error = %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("ListRecentGenerations() returned %d records, want 2", len(listed))
	}

	// Newest first
	if listed[0].GenerationID != "gen-2" {
		t.Errorf("first record = %s, want gen-2", listed[0].GenerationID)
	}
	if listed[1].Kudos != 12.5 {
		t.Errorf("gen-1 kudos = %v, want 12.5", listed[1].Kudos)
	}
	if listed[0].FailureCount != 3 {
		t.Errorf("gen-2 failure count = %d, want 3", listed[0].FailureCount)
	}
}

func TestRepositoryGenerationEvents(t *testing.T) {
	store := newTestStore(t)
	repo := NewRepository(store, nil)
	ctx := context.Background()

	states := []string{"not_started", "generating", "pending_submit", "submitting", "submit_complete"}
	for _, state := range states {
		if _, err := repo.InsertGenerationEvent(ctx, GenerationEvent{
			GenerationID: "gen-1",
			State:        state,
		}); err != nil {
			t.Fatalf("InsertGenerationEvent(%s) error = %v", state, err)
		}
	}

	// Events for another generation must not leak into the listing
	if _, err := repo.InsertGenerationEvent(ctx, GenerationEvent{
		GenerationID: "gen-other",
		State:        "generating",
	}); err != nil {
		t.Fatalf("InsertGenerationEvent(other) error = %v", err)
	}

	events, err := repo.ListGenerationEvents(ctx, "gen-1")
	if err != nil {
		t.Fatalf("ListGenerationEvents() error = %v", err)
	}
	if len(events) != len(states) {
		t.Fatalf("ListGenerationEvents() returned %d events, want %d", len(events), len(states))
	}
	for i, ev := range events {
		if ev.State != states[i] {
			t.Errorf("event[%d].State = %s, want %s", i, ev.State, states[i])
		}
	}
}

func TestRepositoryCountByFinalState(t *testing.T) {
	store := newTestStore(t)
	repo := NewRepository(store, nil)
	ctx := context.Background()

	for _, state := range []string{"submit_complete", "submit_complete", "abandoned"} {
		if _, err := repo.InsertGeneration(ctx, GenerationRecord{
			GenerationID: "gen",
			Kind:         "image",
			FinalState:   state,
		}); err != nil {
			t.Fatalf("InsertGeneration() error = %v", err)
		}
	}

	counts, err := repo.CountByFinalState(ctx)
	if err != nil {
		t.Fatalf("CountByFinalState() error = %v", err)
	}
	if counts["submit_complete"] != 2 {
		t.Errorf("submit_complete count = %d, want 2", counts["submit_complete"])
	}
	if counts["abandoned"] != 1 {
		t.Errorf("abandoned count = %d, want 1", counts["abandoned"])
	}
}

func TestRepositoryTotalKudosSpent(t *testing.T) {
	store := newTestStore(t)
	repo := NewRepository(store, nil)
	ctx := context.Background()

	total, err := repo.TotalKudosSpent(ctx)
	if err != nil {
		t.Fatalf("TotalKudosSpent() on empty store error = %v", err)
	}
	if total != 0 {
		t.Errorf("TotalKudosSpent() on empty store = %v, want 0", total)
	}

	for _, kudos := range []float64{10, 2.5} {
		if _, err := repo.InsertGeneration(ctx, GenerationRecord{
			GenerationID: "gen",
			Kind:         "text",
			FinalState:   "submit_complete",
			Kudos:        kudos,
		}); err != nil {
			t.Fatalf("InsertGeneration() error = %v", err)
		}
	}

	total, err = repo.TotalKudosSpent(ctx)
	if err != nil {
		t.Fatalf("TotalKudosSpent() error = %v", err)
	}
	if total != 12.5 {
		t.Errorf("TotalKudosSpent() = %v, want 12.5", total)
	}
}
