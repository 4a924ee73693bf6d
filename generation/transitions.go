package generation

// TransitionTable maps each progress state to the set of states directly
// reachable from it.
//
// Tables handed to a generation are cloned at construction time, so a
// table value held by a caller is never shared mutable state with a
// running generation.
type TransitionTable map[Progress][]Progress

// baseTransitions is the full pipeline including the safety check states.
//
// ProgressNotStarted must be the first state and ProgressError must not be
// reachable from it: errors are only meaningful after the first state in
// which work is actually attempted.
var baseTransitions = TransitionTable{
	ProgressNotStarted: {
		ProgressPreloading,
		ProgressGenerating,
		ProgressPendingPostProcessing,
		ProgressPostProcessing,
	},
	ProgressPreloading: {
		ProgressPreloadingComplete,
		ProgressError,
	},
	ProgressPreloadingComplete: {
		ProgressGenerating,
		ProgressPendingPostProcessing,
		ProgressPostProcessing,
		ProgressError,
	},
	ProgressGenerating: {
		ProgressPendingPostProcessing,
		ProgressPostProcessing,
		ProgressPendingSafetyCheck,
		ProgressSafetyChecking,
		ProgressError,
	},
	ProgressPendingPostProcessing: {
		ProgressPostProcessing,
		ProgressError,
	},
	ProgressPostProcessing: {
		ProgressPendingSafetyCheck,
		ProgressSafetyChecking,
		ProgressError,
	},
	ProgressPendingSafetyCheck: {
		ProgressSafetyChecking,
		ProgressError,
	},
	ProgressSafetyChecking: {
		ProgressPendingSubmit,
		ProgressError,
	},
	ProgressPendingSubmit: {
		ProgressSubmitting,
		ProgressError,
	},
	ProgressSubmitting: {
		ProgressSubmitComplete,
		ProgressError,
		ProgressAbandoned,
	},
	ProgressSubmitComplete: {},
	ProgressAborted: {
		ProgressReportedFailed,
		ProgressError,
	},
	ProgressReportedFailed: {},
	ProgressError: {
		ProgressAborted,
	},
	ProgressUserRequestedAbort: {
		ProgressUserAbortComplete,
		ProgressAbandoned,
	},
	ProgressUserAbortComplete: {},
	ProgressAbandoned:         {},
}

// BaseTransitions returns a fresh copy of the full transition table,
// including the safety check states. Used for image generation.
func BaseTransitions() TransitionTable {
	return baseTransitions.Clone()
}

// NoSafetyCheckTransitions returns a fresh copy of the transition table
// for generation kinds that never perform content safety screening:
// generating and post-processing skip straight to the submit states.
// Used for alchemy and text generation.
func NoSafetyCheckTransitions() TransitionTable {
	t := baseTransitions.Clone()
	t[ProgressGenerating] = []Progress{
		ProgressPendingPostProcessing,
		ProgressPostProcessing,
		ProgressPendingSubmit,
		ProgressSubmitting,
		ProgressError,
	}
	t[ProgressPostProcessing] = []Progress{
		ProgressPendingSubmit,
		ProgressError,
	}
	return t
}

// Clone returns a deep copy of the table. Adjacency slices are copied, so
// mutating the clone never affects the original.
func (t TransitionTable) Clone() TransitionTable {
	clone := make(TransitionTable, len(t))
	for state, targets := range t {
		copied := make([]Progress, len(targets))
		copy(copied, targets)
		clone[state] = copied
	}
	return clone
}

// Allows reports whether the table permits a direct transition from one
// state to another.
func (t TransitionTable) Allows(from, to Progress) bool {
	for _, target := range t[from] {
		if target == to {
			return true
		}
	}
	return false
}

// DefaultStateErrorLimits returns the default per-state error limits: how
// many times a step may fail before the owning job should treat the
// generation as failed. Submission and abort notification are allowed far
// more retries because they only depend on the network.
func DefaultStateErrorLimits() map[Progress]int {
	return map[Progress]int{
		ProgressPreloading:         3,
		ProgressGenerating:         3,
		ProgressSafetyChecking:     3,
		ProgressSubmitting:         10,
		ProgressUserRequestedAbort: 10,
	}
}
