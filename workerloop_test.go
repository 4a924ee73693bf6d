package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hordesdk/core"
	"hordesdk/db"
	"hordesdk/hordeapi"
	"hordesdk/postprocess"
)

// stubHorde is a minimal in-process horde: accepts async submissions,
// reports jobs done immediately, and serves one result per expected
// generation.
type stubHorde struct {
	t        *testing.T
	imgB64   string
	failNext bool
	deletes  int
}

func (h *stubHorde) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v2/generate/async":
			if h.failNext {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]string{"message": "prompt rejected", "rc": "CorruptPrompt"})
				return
			}
			var body struct {
				Params *struct {
					N int `json:"n"`
				} `json:"params"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]any{"id": "job-1", "kudos": 10.0})

		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v2/generate/check/"):
			json.NewEncoder(w).Encode(map[string]any{
				"done": true, "finished": 1, "is_possible": true,
			})

		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v2/generate/status/"):
			json.NewEncoder(w).Encode(map[string]any{
				"done": true, "finished": 1, "is_possible": true, "kudos": 2.0,
				"generations": []map[string]any{
					{"id": "gen-1", "img": h.imgB64, "seed": "1234", "model": "test_model", "state": "ok"},
				},
			})

		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/v2/generate/status/"):
			h.deletes++
			json.NewEncoder(w).Encode(map[string]any{"done": false})

		case r.Method == http.MethodPost && r.URL.Path == "/v2/generate/text/async":
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]any{"id": "text-job-1", "kudos": 1.0})

		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v2/generate/text/status/"):
			json.NewEncoder(w).Encode(map[string]any{
				"done": true, "finished": 1, "is_possible": true, "kudos": 1.0,
				"generations": []map[string]any{
					{"text": "Queues drain at dawn.", "seed": 7, "model": "test_text_model", "state": "ok"},
				},
			})

		default:
			h.t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}
}

func tinyPNGBase64(t *testing.T) string {
	t.Helper()

	data, err := postprocess.EncodePNG(image.NewRGBA(image.Rect(0, 0, 4, 4)))
	if err != nil {
		t.Fatalf("EncodePNG() error = %v", err)
	}
	return base64.StdEncoding.EncodeToString(data)
}

func newTestLoop(t *testing.T, horde *stubHorde, jobs []JobSpec) (*WorkerLoop, *db.Repository, string) {
	t.Helper()

	server := httptest.NewServer(horde.handler())
	t.Cleanup(server.Close)

	store, err := db.NewDatabase(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	repo := db.NewRepository(store, nil)

	outputDir := t.TempDir()
	loop, err := NewWorkerLoop(WorkerLoopConfig{
		Config: &core.Config{
			HordeURL:     server.URL,
			HordeAPIKey:  hordeapi.AnonymousAPIKey,
			PollInterval: 10 * time.Millisecond,
			JobTimeout:   5 * time.Second,
		},
		Jobs: WorkerConfig{OutputDir: outputDir, Jobs: jobs},
		Client: hordeapi.NewClient(hordeapi.ClientConfig{
			BaseURL: server.URL,
			APIKey:  hordeapi.AnonymousAPIKey,
		}),
		Repo: repo,
	})
	if err != nil {
		t.Fatalf("NewWorkerLoop() error = %v", err)
	}

	return loop, repo, outputDir
}

func TestWorkerLoopImageJob(t *testing.T) {
	horde := &stubHorde{t: t, imgB64: tinyPNGBase64(t)}
	loop, repo, outputDir := newTestLoop(t, horde, []JobSpec{
		{Name: "sunset", Kind: "image", Prompt: "a sunset", N: 1},
	})

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 || !strings.HasPrefix(entries[0].Name(), "sunset-0") {
		t.Errorf("output entries = %v, want single sunset-0.* file", entries)
	}

	records, err := repo.ListRecentGenerations(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRecentGenerations() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.FinalState != "submit_complete" {
		t.Errorf("FinalState = %s, want submit_complete", rec.FinalState)
	}
	if rec.JobID != "job-1" || rec.Kind != "image" || rec.Model != "test_model" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Kudos != 12 {
		t.Errorf("Kudos = %v, want 12", rec.Kudos)
	}

	// A completed job's follow-up was resolved, nothing to cancel
	if horde.deletes != 0 {
		t.Errorf("deletes = %d, want 0", horde.deletes)
	}

	events, err := repo.ListGenerationEvents(context.Background(), rec.GenerationID)
	if err != nil {
		t.Fatalf("ListGenerationEvents() error = %v", err)
	}
	var sawSubmitting bool
	for _, ev := range events {
		if ev.State == "submitting" {
			sawSubmitting = true
		}
	}
	if !sawSubmitting {
		t.Errorf("transition events missing submitting: %+v", events)
	}
}

func TestWorkerLoopTextJobOnHorde(t *testing.T) {
	horde := &stubHorde{t: t}
	loop, repo, outputDir := newTestLoop(t, horde, []JobSpec{
		{Name: "haiku", Kind: "text", Prompt: "write a haiku", MaxTokens: 80},
	})

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(outputDir, "haiku-0.txt"))
	if err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	if string(data) != "Queues drain at dawn." {
		t.Errorf("output = %q", string(data))
	}

	records, _ := repo.ListRecentGenerations(context.Background(), 10)
	if len(records) != 1 || records[0].FinalState != "submit_complete" || records[0].Kind != "text" {
		t.Errorf("records = %+v", records)
	}
}

type stubProvider struct {
	response string
}

func (p *stubProvider) Complete(ctx context.Context, prompt string) (string, error) {
	return p.response, nil
}

func (p *stubProvider) Model() string { return "stub/model" }

func TestWorkerLoopLocalTextJob(t *testing.T) {
	horde := &stubHorde{t: t}
	loop, repo, outputDir := newTestLoop(t, horde, []JobSpec{
		{Name: "local", Kind: "text", Prompt: "hello", LocalInference: true},
	})
	loop.provider = &stubProvider{response: "local completion"}

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(outputDir, "local-0.txt"))
	if err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	if string(data) != "local completion" {
		t.Errorf("output = %q", string(data))
	}

	records, _ := repo.ListRecentGenerations(context.Background(), 10)
	if len(records) != 1 || records[0].Model != "stub/model" || records[0].JobID != "" {
		t.Errorf("records = %+v", records)
	}
}

func TestWorkerLoopRecordsRejectedJob(t *testing.T) {
	horde := &stubHorde{t: t, failNext: true}
	loop, repo, _ := newTestLoop(t, horde, []JobSpec{
		{Name: "bad", Kind: "image", Prompt: "rejected", N: 1},
	})

	if err := loop.Run(context.Background()); err == nil {
		t.Fatal("Run() expected error for rejected job, got nil")
	}

	records, _ := repo.ListRecentGenerations(context.Background(), 10)
	if len(records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(records))
	}
	if records[0].FinalState != "reported_failed" {
		t.Errorf("FinalState = %s, want reported_failed", records[0].FinalState)
	}
	if records[0].ErrorDetail == "" {
		t.Error("ErrorDetail empty for failed job")
	}
}

func TestWorkerLoopTransportFailureIsBounded(t *testing.T) {
	// A closed server makes every submission fail at the transport
	// level; the generating error limit must end the retry loop.
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	store, err := db.NewDatabase(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	repo := db.NewRepository(store, nil)

	loop, err := NewWorkerLoop(WorkerLoopConfig{
		Config: &core.Config{
			HordeURL:     server.URL,
			HordeAPIKey:  hordeapi.AnonymousAPIKey,
			PollInterval: 5 * time.Millisecond,
			JobTimeout:   time.Second,
		},
		Jobs: WorkerConfig{OutputDir: t.TempDir(), Jobs: []JobSpec{
			{Name: "stranded", Kind: "image", Prompt: "a sunset", N: 1},
		}},
		Client: hordeapi.NewClient(hordeapi.ClientConfig{
			BaseURL: server.URL,
			APIKey:  hordeapi.AnonymousAPIKey,
		}),
		Repo: repo,
	})
	if err != nil {
		t.Fatalf("NewWorkerLoop() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("Run() error = nil, want submission failure")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() still retrying, want the error limit to end the loop")
	}

	records, err := repo.ListRecentGenerations(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRecentGenerations() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(records))
	}
	if records[0].FinalState != "reported_failed" {
		t.Errorf("FinalState = %s, want reported_failed", records[0].FinalState)
	}
	// Generating allows three errors; one per failed submission attempt
	if records[0].FailureCount != 3 {
		t.Errorf("FailureCount = %d, want 3", records[0].FailureCount)
	}
}

func TestWorkerLoopNoJobs(t *testing.T) {
	horde := &stubHorde{t: t}
	loop, _, _ := newTestLoop(t, horde, nil)

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run() with no jobs error = %v", err)
	}
}
