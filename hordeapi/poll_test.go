package hordeapi

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPoll(timeout time.Duration) PollConfig {
	return PollConfig{Interval: time.Millisecond, Timeout: timeout}
}

func TestAwaitJobCompletion(t *testing.T) {
	horde := newFakeHorde(t)
	horde.checksUntilDone = 2
	session := NewSession(horde.client())
	defer session.Close(context.Background(), nil)

	accepted := submitAsync(t, session)

	final, err := session.AwaitJobCompletion(context.Background(), accepted, 1, fastPoll(5*time.Second))
	if err != nil {
		t.Fatalf("AwaitJobCompletion() error = %v", err)
	}

	status, ok := final.(*ImageGenerateStatusResponse)
	if !ok {
		t.Fatalf("final response type = %T, want *ImageGenerateStatusResponse", final)
	}
	if !status.Done || len(status.Generations) != 1 {
		t.Errorf("status = done:%v generations:%d, want done with 1 generation",
			status.Done, len(status.Generations))
	}
	if got := session.PendingFollowUps(); got != 0 {
		t.Errorf("PendingFollowUps() = %d, want 0 after completed poll", got)
	}
}

func TestAwaitJobCompletionTimeoutReturnsPartial(t *testing.T) {
	horde := newFakeHorde(t)
	horde.checksUntilDone = 1 << 30
	session := NewSession(horde.client())
	defer session.Close(context.Background(), nil)

	accepted := submitAsync(t, session)

	final, err := session.AwaitJobCompletion(context.Background(), accepted, 1, fastPoll(20*time.Millisecond))
	if err != nil {
		t.Fatalf("AwaitJobCompletion() on timeout error = %v, want nil with partial result", err)
	}

	status, ok := final.(*ImageGenerateStatusResponse)
	if !ok {
		t.Fatalf("final response type = %T, want *ImageGenerateStatusResponse", final)
	}
	if status.Done {
		t.Error("timed-out job reported done")
	}
}

func TestAwaitJobCompletionNotPossible(t *testing.T) {
	horde := newFakeHorde(t)
	horde.neverPossible = true
	session := NewSession(horde.client())
	defer session.Close(context.Background(), nil)

	accepted := submitAsync(t, session)

	_, err := session.AwaitJobCompletion(context.Background(), accepted, 1, fastPoll(5*time.Second))
	if !errors.Is(err, ErrJobNotPossible) {
		t.Errorf("AwaitJobCompletion() error = %v, want ErrJobNotPossible", err)
	}
}

func TestAwaitJobCompletionCancellation(t *testing.T) {
	horde := newFakeHorde(t)
	horde.checksUntilDone = 1 << 30
	session := NewSession(horde.client())

	accepted := submitAsync(t, session)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := session.AwaitJobCompletion(ctx, accepted, 1, PollConfig{Interval: time.Hour, Timeout: time.Hour})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("AwaitJobCompletion() error = %v, want context.Canceled", err)
	}

	// The cancelled caller's close still cancels the job server-side.
	if err := session.Close(context.Background(), err); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := horde.deleteCount(string(accepted.ID)); got != 1 {
		t.Errorf("job deleted %d times, want 1", got)
	}
}
