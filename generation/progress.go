// Package generation implements the per-generation progress state machine
// used by horde workers.
//
// A generation is one unit of produced work: one image, one text
// completion, or one alchemy result. The types here track a generation
// from creation through preloading, inference, post-processing, safety
// checking, and submission, enforcing which state transitions are legal
// at every step.
package generation

// Progress is the lifecycle state of a single generation.
//
// ProgressNotStarted is the sole initial state. A generation advances
// through the working states until it reaches one of the terminal states,
// after which no further transitions are permitted.
type Progress string

const (
	// ProgressNotStarted means the generation has not started.
	ProgressNotStarted Progress = "not_started"

	// ProgressError means an error occurred during the most recent step.
	// The step will be retried up to a per-state limit.
	ProgressError Progress = "error"

	// ProgressPreloading means models are being loaded to RAM/VRAM.
	// Preloading is skipped when the models are already resident.
	ProgressPreloading Progress = "preloading"

	// ProgressPreloadingComplete means preloading finished.
	ProgressPreloadingComplete Progress = "preloading_complete"

	// ProgressGenerating means inference is in progress.
	ProgressGenerating Progress = "generating"

	// ProgressPendingPostProcessing means the raw result exists and is
	// waiting for post-processing.
	ProgressPendingPostProcessing Progress = "pending_post_processing"

	// ProgressPostProcessing means the generated data is being
	// post-processed (resizing, re-encoding, upscaling).
	ProgressPostProcessing Progress = "post_processing"

	// ProgressPendingSafetyCheck means the result is waiting for a
	// content safety check.
	ProgressPendingSafetyCheck Progress = "pending_safety_check"

	// ProgressSafetyChecking means the safety check is running.
	ProgressSafetyChecking Progress = "safety_checking"

	// ProgressPendingSubmit means the result passed all local steps and
	// is waiting to be submitted to the API.
	ProgressPendingSubmit Progress = "pending_submit"

	// ProgressSubmitting means a submission attempt is in flight.
	ProgressSubmitting Progress = "submitting"

	// ProgressWaitingOnNetwork means the generation is blocked on
	// network IO. Not part of the default transition tables; reserved
	// for custom tables supplied by orchestrators that track network
	// waits as a distinct state.
	ProgressWaitingOnNetwork Progress = "waiting_on_network"

	// ProgressSubmitComplete means the generation was successfully
	// submitted. Terminal.
	ProgressSubmitComplete Progress = "submit_complete"

	// ProgressAborted means one or more steps failed too many times.
	// An attempt to notify the API will follow.
	ProgressAborted Progress = "aborted"

	// ProgressReportedFailed means the failure has been reported to the
	// API. Terminal.
	ProgressReportedFailed Progress = "reported_failed"

	// ProgressUserRequestedAbort means the submitting user asked for
	// the generation to be aborted.
	ProgressUserRequestedAbort Progress = "user_requested_abort"

	// ProgressUserAbortComplete means the user-requested abort finished
	// and the API was notified. Terminal.
	ProgressUserAbortComplete Progress = "user_abort_complete"

	// ProgressAbandoned means the generation failed and the API could
	// not be notified; it has been discarded. Terminal.
	//
	// Too many abandoned generations in a window can put a worker into
	// maintenance mode server-side.
	ProgressAbandoned Progress = "abandoned"
)

// InitialProgress is the state every generation starts in.
const InitialProgress = ProgressNotStarted

// String returns the wire representation of the state.
func (p Progress) String() string {
	return string(p)
}

// terminalStates are the finalized states. No transitions leave them.
var terminalStates = map[Progress]struct{}{
	ProgressSubmitComplete:    {},
	ProgressReportedFailed:    {},
	ProgressUserAbortComplete: {},
	ProgressAbandoned:         {},
}

// failingStates classify a generation as failing for reporting purposes.
var failingStates = map[Progress]struct{}{
	ProgressError:              {},
	ProgressAborted:            {},
	ProgressReportedFailed:     {},
	ProgressUserRequestedAbort: {},
	ProgressAbandoned:          {},
}

// IsTerminal returns true if the state is finalized: no transition may
// leave it.
func (p Progress) IsTerminal() bool {
	_, ok := terminalStates[p]
	return ok
}

// IsFailing returns true if the state classifies the generation as
// failing for reporting purposes.
func (p Progress) IsFailing() bool {
	_, ok := failingStates[p]
	return ok
}
