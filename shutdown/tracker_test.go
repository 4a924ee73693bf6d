package shutdown

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestGenerationTrackerBeginFinish(t *testing.T) {
	tracker := NewGenerationTracker()

	if !tracker.Begin() {
		t.Fatal("Begin() = false on fresh tracker")
	}
	if got := tracker.Active(); got != 1 {
		t.Errorf("Active() = %d, want 1", got)
	}
	tracker.Finish()
	if got := tracker.Active(); got != 0 {
		t.Errorf("Active() after Finish = %d, want 0", got)
	}
}

func TestGenerationTrackerRejectsDuringDrain(t *testing.T) {
	tracker := NewGenerationTracker()
	tracker.StartDraining()

	if tracker.Begin() {
		t.Error("Begin() = true while draining")
	}
	if !tracker.IsDraining() {
		t.Error("IsDraining() = false after StartDraining")
	}
}

func TestGenerationTrackerDrainWaits(t *testing.T) {
	tracker := NewGenerationTracker()

	const workers = 3
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		if !tracker.Begin() {
			t.Fatal("Begin() = false")
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			time.Sleep(10 * time.Millisecond)
			tracker.Finish()
		}()
	}

	tracker.StartDraining()
	if err := tracker.Drain(time.Second); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	wg.Wait()
	if got := tracker.Active(); got != 0 {
		t.Errorf("Active() after drain = %d, want 0", got)
	}
}

func TestGenerationTrackerDrainTimeout(t *testing.T) {
	tracker := NewGenerationTracker()
	if !tracker.Begin() {
		t.Fatal("Begin() = false")
	}
	defer tracker.Finish()

	tracker.StartDraining()
	if err := tracker.Drain(5 * time.Millisecond); !errors.Is(err, ErrDrainTimeout) {
		t.Errorf("Drain() error = %v, want ErrDrainTimeout", err)
	}
}

func TestSignalCounterForceThreshold(t *testing.T) {
	forced := false
	counter := NewSignalCounter(2, func() { forced = true })

	if got := counter.Increment(); got != 1 || forced {
		t.Fatalf("first Increment() = %d forced=%v, want 1 false", got, forced)
	}
	if got := counter.Increment(); got != 2 || !forced {
		t.Fatalf("second Increment() = %d forced=%v, want 2 true", got, forced)
	}

	counter.Reset()
	if got := counter.Count(); got != 0 {
		t.Errorf("Count() after Reset = %d, want 0", got)
	}
}
