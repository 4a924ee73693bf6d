package generation

import "testing"

func TestProgressClassification(t *testing.T) {
	tests := []struct {
		state        Progress
		wantTerminal bool
		wantFailing  bool
	}{
		{ProgressNotStarted, false, false},
		{ProgressPreloading, false, false},
		{ProgressGenerating, false, false},
		{ProgressPostProcessing, false, false},
		{ProgressSafetyChecking, false, false},
		{ProgressPendingSubmit, false, false},
		{ProgressSubmitting, false, false},
		{ProgressWaitingOnNetwork, false, false},
		{ProgressError, false, true},
		{ProgressAborted, false, true},
		{ProgressUserRequestedAbort, false, true},
		{ProgressSubmitComplete, true, false},
		{ProgressReportedFailed, true, true},
		{ProgressUserAbortComplete, true, false},
		{ProgressAbandoned, true, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.wantTerminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.wantTerminal)
			}
			if got := tt.state.IsFailing(); got != tt.wantFailing {
				t.Errorf("IsFailing() = %v, want %v", got, tt.wantFailing)
			}
		})
	}
}

func TestInitialProgress(t *testing.T) {
	if InitialProgress != ProgressNotStarted {
		t.Errorf("InitialProgress = %s, want %s", InitialProgress, ProgressNotStarted)
	}
	if InitialProgress.IsTerminal() || InitialProgress.IsFailing() {
		t.Error("initial state must be neither terminal nor failing")
	}
}
