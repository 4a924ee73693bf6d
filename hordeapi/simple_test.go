package hordeapi

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newSimpleForFake(f *fakeHorde) *SimpleClient {
	config := DefaultClientConfig()
	config.BaseURL = f.srv.URL
	config.APIKey = "unit-test-key"
	return NewSimpleClient(config)
}

func TestSimpleClientImageGenerate(t *testing.T) {
	horde := newFakeHorde(t)
	simple := newSimpleForFake(horde)

	status, err := simple.ImageGenerate(context.Background(), &ImageGenerateAsyncRequest{
		Prompt: "a tiny robot watering plants",
		Params: &ImageGenerationParams{N: 2},
	}, 5*time.Second)
	if err != nil {
		t.Fatalf("ImageGenerate() error = %v", err)
	}

	if !status.Done || len(status.Generations) != 2 {
		t.Errorf("status = done:%v generations:%d, want done with 2", status.Done, len(status.Generations))
	}
	if got := horde.totalDeletes(); got != 0 {
		t.Errorf("deletes after successful run = %d, want 0", got)
	}
}

func TestSimpleClientDefaultPollInterval(t *testing.T) {
	// The one-shot helpers use the default 4s interval, far too slow
	// for a unit test, so this covers only the config plumbing.
	config := DefaultPollConfig()
	if config.Interval != 4*time.Second {
		t.Errorf("default interval = %v, want 4s", config.Interval)
	}
	if config.Timeout != 1270*time.Second {
		t.Errorf("default timeout = %v, want 1270s", config.Timeout)
	}
}

func TestSimpleClientSurfacesAPIError(t *testing.T) {
	horde := newFakeHorde(t)
	horde.failAsync = true
	simple := newSimpleForFake(horde)

	_, err := simple.ImageGenerate(context.Background(), &ImageGenerateAsyncRequest{Prompt: "rejected"}, time.Minute)
	if err == nil {
		t.Fatal("ImageGenerate() = nil error, want API error")
	}
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error type = %T, want *RequestError in chain", err)
	}
	if reqErr.RC != "CorruptPrompt" {
		t.Errorf("RC = %q, want CorruptPrompt", reqErr.RC)
	}
	if got := horde.totalDeletes(); got != 0 {
		t.Errorf("deletes after rejected submit = %d, want 0", got)
	}
}

func TestClampTimeout(t *testing.T) {
	simple := NewSimpleClient(DefaultClientConfig())

	tests := []struct {
		name string
		in   time.Duration
		want time.Duration
	}{
		{"zero uses default", 0, DefaultPollTimeout},
		{"negative uses default", -time.Second, DefaultPollTimeout},
		{"over maximum clamps", 2 * time.Hour, DefaultPollTimeout},
		{"short passes through", 5 * time.Second, 5 * time.Second},
		{"normal passes through", 5 * time.Minute, 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := simple.clampTimeout(tt.in); got != tt.want {
				t.Errorf("clampTimeout(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSimpleClientCancelledRunCleansUp(t *testing.T) {
	horde := newFakeHorde(t)
	horde.checksUntilDone = 1 << 30
	simple := newSimpleForFake(horde)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := simple.ImageGenerate(ctx, &ImageGenerateAsyncRequest{Prompt: "never finishes"}, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ImageGenerate() error = %v, want context.Canceled", err)
	}
}
