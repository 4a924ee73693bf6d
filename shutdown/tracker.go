package shutdown

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrDrainTimeout is returned when Drain times out before all tracked
// generations finish.
var ErrDrainTimeout = errors.New("drain timeout: generations did not finish in time")

// GenerationTracker counts in-flight generations so shutdown can wait
// for work already accepted from the horde instead of abandoning it
// (abandonment counts against the worker server-side).
//
// Usage:
//
//	if !tracker.Begin() {
//	    return // shutting down, do not pick up new work
//	}
//	defer tracker.Finish()
type GenerationTracker struct {
	wg       sync.WaitGroup
	mu       sync.Mutex
	active   int64
	draining bool
}

// NewGenerationTracker creates an empty tracker.
func NewGenerationTracker() *GenerationTracker {
	return &GenerationTracker{}
}

// Begin registers a generation about to start. Returns false once
// draining has begun; the caller must then not start the work. A true
// return obliges the caller to call Finish exactly once.
func (t *GenerationTracker) Begin() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.draining {
		return false
	}
	t.wg.Add(1)
	atomic.AddInt64(&t.active, 1)
	return true
}

// Finish marks one tracked generation as complete.
func (t *GenerationTracker) Finish() {
	atomic.AddInt64(&t.active, -1)
	t.wg.Done()
}

// StartDraining stops Begin from accepting new generations. Work
// already in flight continues until Finish.
func (t *GenerationTracker) StartDraining() {
	t.mu.Lock()
	t.draining = true
	t.mu.Unlock()
}

// Drain blocks until all in-flight generations finish or the timeout
// expires, returning ErrDrainTimeout in the latter case.
func (t *GenerationTracker) Drain(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrDrainTimeout
	}
}

// Active returns the number of generations currently in flight.
func (t *GenerationTracker) Active() int64 {
	return atomic.LoadInt64(&t.active)
}

// IsDraining reports whether StartDraining has been called.
func (t *GenerationTracker) IsDraining() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.draining
}
