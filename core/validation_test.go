package core

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestValidationSuiteAllPass(t *testing.T) {
	var out bytes.Buffer
	result := NewValidationSuite().
		WithOutput(&out).
		AddStep("first", func() StepOutcome { return Pass("ok") }).
		AddStep("second", func() StepOutcome { return Pass("") }).
		Validate()

	if !result.Success {
		t.Error("Success = false, want true")
	}
	if result.PassedSteps != 2 || result.FailedSteps != 0 {
		t.Errorf("passed=%d failed=%d, want 2/0", result.PassedSteps, result.FailedSteps)
	}
	if !strings.Contains(out.String(), "Validation passed") {
		t.Errorf("output missing summary: %q", out.String())
	}
}

func TestValidationSuiteFailureDoesNotStopRun(t *testing.T) {
	var ran []string
	result := NewValidationSuite().
		WithShowProgress(false).
		AddStep("failing", func() StepOutcome {
			ran = append(ran, "failing")
			return Fail("broken", errors.New("boom"))
		}).
		AddStep("after", func() StepOutcome {
			ran = append(ran, "after")
			return Pass("")
		}).
		Validate()

	if result.Success {
		t.Error("Success = true with a failed step")
	}
	if len(ran) != 2 {
		t.Errorf("ran = %v, want both steps", ran)
	}
	if result.Steps[0].Error == nil {
		t.Error("failed step lost its error")
	}
}

func TestValidationSuiteWarningsAndSkips(t *testing.T) {
	result := NewValidationSuite().
		WithShowProgress(false).
		AddStep("warn", func() StepOutcome { return Warn("degraded") }).
		AddStep("skip", func() StepOutcome { return Skip("not configured") }).
		Validate()

	if !result.Success {
		t.Error("Success = false, warnings and skips must not fail the suite")
	}
	if result.Warnings != 1 {
		t.Errorf("Warnings = %d, want 1", result.Warnings)
	}
}

func TestStepStatusString(t *testing.T) {
	statuses := map[StepStatus]string{
		StepPending: "pending",
		StepRunning: "running",
		StepPassed:  "passed",
		StepFailed:  "failed",
		StepWarning: "warning",
		StepSkipped: "skipped",
	}
	for status, want := range statuses {
		if got := status.String(); got != want {
			t.Errorf("StepStatus(%d).String() = %s, want %s", status, got, want)
		}
	}
}
