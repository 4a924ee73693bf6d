package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"hordesdk/core"
	"hordesdk/logging"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(logging.NewNopLogger(), time.Second)
}

func TestManagerTriggerCancelsContext(t *testing.T) {
	manager := newTestManager(t)

	select {
	case <-manager.Context().Done():
		t.Fatal("context done before Trigger")
	default:
	}

	manager.Trigger()
	select {
	case <-manager.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled after Trigger")
	}
}

func TestManagerShutdownRunsCleanup(t *testing.T) {
	manager := newTestManager(t)

	cleaned := false
	manager.Register("cancel-jobs", 10, func(ctx context.Context) error {
		cleaned = true
		return nil
	})

	manager.Trigger()
	if code := manager.Shutdown(); code != core.ExitCodeSuccess {
		t.Errorf("Shutdown() = %d, want success", code)
	}
	if !cleaned {
		t.Error("cleanup step did not run")
	}
}

func TestManagerShutdownReportsCleanupFailure(t *testing.T) {
	manager := newTestManager(t)
	manager.Register("failing", 10, func(ctx context.Context) error {
		return errors.New("cannot cancel job")
	})

	if code := manager.Shutdown(); code != core.ExitCodeError {
		t.Errorf("Shutdown() = %d, want error exit code", code)
	}
}

func TestManagerShutdownIsIdempotent(t *testing.T) {
	manager := newTestManager(t)

	runs := 0
	manager.Register("once", 10, func(ctx context.Context) error {
		runs++
		return nil
	})

	first := manager.Shutdown()
	second := manager.Shutdown()
	if first != second {
		t.Errorf("exit codes differ across calls: %d then %d", first, second)
	}
	if runs != 1 {
		t.Errorf("cleanup ran %d times, want 1", runs)
	}
}

func TestManagerShutdownDrainsInFlightWork(t *testing.T) {
	manager := newTestManager(t)
	tracker := manager.Tracker()

	if !tracker.Begin() {
		t.Fatal("Begin() = false")
	}
	finished := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		tracker.Finish()
		close(finished)
	}()

	manager.Shutdown()
	select {
	case <-finished:
	default:
		t.Error("Shutdown() returned before in-flight work finished")
	}
}
