package hordeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeHorde is a minimal in-process stand-in for the generate endpoints:
// it accepts async jobs, reports them done after a configurable number
// of checks, and counts job deletions.
type fakeHorde struct {
	srv *httptest.Server

	// checksUntilDone is how many check/status polls report the job
	// still running before it completes.
	checksUntilDone int

	// failDeletes makes every DELETE return a server error.
	failDeletes bool

	// failAsync rejects every job submission with a 400.
	failAsync bool

	// neverPossible makes every check report is_possible=false.
	neverPossible bool

	mu       sync.Mutex
	nextJob  int
	expected map[string]int
	polls    map[string]int
	deletes  map[string]int
}

func newFakeHorde(t *testing.T) *fakeHorde {
	t.Helper()
	f := &fakeHorde{
		expected: make(map[string]int),
		polls:    make(map[string]int),
		deletes:  make(map[string]int),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeHorde) client() *Client {
	config := DefaultClientConfig()
	config.BaseURL = f.srv.URL
	config.APIKey = "unit-test-key"
	return NewClient(config)
}

func (f *fakeHorde) deleteCount(jobID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deletes[jobID]
}

func (f *fakeHorde) totalDeletes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.deletes {
		total += n
	}
	return total
}

func (f *fakeHorde) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v2/generate/async":
		f.handleAsync(w, r)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v2/generate/check/"):
		f.handleProgress(w, strings.TrimPrefix(r.URL.Path, "/v2/generate/check/"), false)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v2/generate/status/"):
		f.handleProgress(w, strings.TrimPrefix(r.URL.Path, "/v2/generate/status/"), true)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/v2/generate/status/"):
		f.handleDelete(w, strings.TrimPrefix(r.URL.Path, "/v2/generate/status/"))
	default:
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"message": "no such endpoint"})
	}
}

func (f *fakeHorde) handleAsync(w http.ResponseWriter, r *http.Request) {
	if f.failAsync {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"message": "This prompt is not allowed", "rc": "CorruptPrompt"})
		return
	}
	var req ImageGenerateAsyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"message": "bad payload"})
		return
	}

	f.mu.Lock()
	f.nextJob++
	jobID := fmt.Sprintf("job-%d", f.nextJob)
	f.expected[jobID] = req.ExpectedResultCount()
	f.mu.Unlock()

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{"id": jobID, "kudos": 2.0})
}

func (f *fakeHorde) handleProgress(w http.ResponseWriter, jobID string, withResults bool) {
	f.mu.Lock()
	expected, known := f.expected[jobID]
	f.polls[jobID]++
	done := !f.neverPossible && f.polls[jobID] > f.checksUntilDone
	f.mu.Unlock()

	if !known {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"message": "unknown job"})
		return
	}

	progress := map[string]any{
		"finished":    0,
		"processing":  expected,
		"waiting":     0,
		"done":        false,
		"faulted":     false,
		"is_possible": !f.neverPossible,
	}
	if done {
		progress["finished"] = expected
		progress["processing"] = 0
		progress["done"] = true
	}
	if withResults && done {
		generations := make([]map[string]any, expected)
		for i := range generations {
			generations[i] = map[string]any{
				"id":    fmt.Sprintf("%s-gen-%d", jobID, i),
				"img":   "aGVsbG8=",
				"seed":  "1234",
				"model": "unit_test_model",
				"state": "ok",
			}
		}
		progress["generations"] = generations
	}
	json.NewEncoder(w).Encode(progress)
}

func (f *fakeHorde) handleDelete(w http.ResponseWriter, jobID string) {
	if f.failDeletes {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"message": "cancellation failed", "rc": "ServerError"})
		return
	}
	f.mu.Lock()
	f.deletes[jobID]++
	f.mu.Unlock()
	json.NewEncoder(w).Encode(map[string]any{"done": false, "is_possible": true})
}

func submitAsync(t *testing.T, session *Session) *ImageGenerateAsyncResponse {
	t.Helper()
	resp, err := session.Submit(context.Background(), &ImageGenerateAsyncRequest{Prompt: "a lighthouse"})
	if err != nil {
		t.Fatalf("Submit(async) error = %v", err)
	}
	accepted, ok := resp.(*ImageGenerateAsyncResponse)
	if !ok {
		t.Fatalf("Submit(async) returned %T, want *ImageGenerateAsyncResponse", resp)
	}
	return accepted
}

func TestSessionCleanupOnUnresolvedExit(t *testing.T) {
	horde := newFakeHorde(t)
	session := NewSession(horde.client())

	accepted := submitAsync(t, session)
	if got := session.PendingFollowUps(); got != 1 {
		t.Fatalf("PendingFollowUps() = %d, want 1", got)
	}

	if err := session.Close(context.Background(), nil); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if got := horde.deleteCount(string(accepted.ID)); got != 1 {
		t.Errorf("job %s deleted %d times, want exactly 1", accepted.ID, got)
	}
	if got := session.PendingFollowUps(); got != 0 {
		t.Errorf("PendingFollowUps() after close = %d, want 0", got)
	}
}

func TestSessionNoCleanupAfterNormalResolution(t *testing.T) {
	horde := newFakeHorde(t)
	session := NewSession(horde.client())

	accepted := submitAsync(t, session)

	resp, err := session.Submit(context.Background(), &ImageGenerateStatusRequest{ID: accepted.ID})
	if err != nil {
		t.Fatalf("Submit(status) error = %v", err)
	}
	status := resp.(*ImageGenerateStatusResponse)
	if !status.Done {
		t.Fatalf("status not done: %+v", status.JobProgress)
	}
	if got := session.PendingFollowUps(); got != 0 {
		t.Fatalf("PendingFollowUps() after resolution = %d, want 0", got)
	}

	if err := session.Close(context.Background(), nil); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := horde.totalDeletes(); got != 0 {
		t.Errorf("deletes after resolved close = %d, want 0", got)
	}
}

func TestSessionCleanupRetiredByValueMatch(t *testing.T) {
	horde := newFakeHorde(t)
	session := NewSession(horde.client())

	accepted := submitAsync(t, session)

	// The caller cancels the job itself; the delete must retire the
	// pending entry so Close does not cancel a second time.
	if _, err := session.Submit(context.Background(), &DeleteImageGenerateRequest{ID: accepted.ID}); err != nil {
		t.Fatalf("Submit(delete) error = %v", err)
	}
	if got := session.PendingFollowUps(); got != 0 {
		t.Fatalf("PendingFollowUps() after manual delete = %d, want 0", got)
	}

	if err := session.Close(context.Background(), nil); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := horde.deleteCount(string(accepted.ID)); got != 1 {
		t.Errorf("job deleted %d times, want 1", got)
	}
}

func TestSessionCleanupFailureSurfaces(t *testing.T) {
	horde := newFakeHorde(t)
	horde.failDeletes = true
	session := NewSession(horde.client())

	submitAsync(t, session)

	err := session.Close(context.Background(), nil)
	if err == nil {
		t.Fatal("Close() = nil, want error when cleanup fails")
	}
}

func TestSessionCancellationWithCleanCleanupIsSilent(t *testing.T) {
	horde := newFakeHorde(t)
	session := NewSession(horde.client())

	accepted := submitAsync(t, session)

	if err := session.Close(context.Background(), context.Canceled); err != nil {
		t.Fatalf("Close(cancelled) error = %v, want nil when cleanup succeeds", err)
	}
	if got := horde.deleteCount(string(accepted.ID)); got != 1 {
		t.Errorf("job deleted %d times, want 1", got)
	}
}

func TestSessionSubmitAfterClose(t *testing.T) {
	horde := newFakeHorde(t)
	session := NewSession(horde.client())

	if err := session.Close(context.Background(), nil); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := session.Submit(context.Background(), &FindUserRequest{}); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Submit after close error = %v, want ErrSessionClosed", err)
	}
}

func TestSessionConcurrentFollowUps(t *testing.T) {
	horde := newFakeHorde(t)
	session := NewSession(horde.client())

	const jobs = 5
	var wg sync.WaitGroup
	errs := make(chan error, jobs)

	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := session.Submit(context.Background(), &ImageGenerateAsyncRequest{Prompt: "concurrent"})
			if err != nil {
				errs <- err
				return
			}
			accepted, ok := resp.(*ImageGenerateAsyncResponse)
			if !ok {
				errs <- fmt.Errorf("unexpected response type %T", resp)
				return
			}
			if _, err := session.Submit(context.Background(), &ImageGenerateStatusRequest{ID: accepted.ID}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent submit error = %v", err)
	}

	if got := session.PendingFollowUps(); got != 0 {
		t.Errorf("PendingFollowUps() = %d, want 0 after all jobs resolved", got)
	}
	if err := session.Close(context.Background(), nil); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := horde.totalDeletes(); got != 0 {
		t.Errorf("deletes = %d, want 0", got)
	}
}
