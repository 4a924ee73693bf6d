package generation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"hordesdk/logging"
)

// State machine usage errors. These indicate the orchestrating code called
// transition methods out of order; they are not retried.
var (
	// ErrAlreadyInState is returned when a transition targets the
	// current state. Retrying into the same state is only meaningful
	// through the error round-trip.
	ErrAlreadyInState = errors.New("generation already in state")

	// ErrInvalidTransition is returned when the active transition table
	// does not permit the requested transition.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrErrorLimitExceeded is returned when retrying into a state
	// whose error count has reached its configured limit.
	ErrErrorLimitExceeded = errors.New("error limit exceeded for state")

	// ErrResultRequired is returned when a safety check result is set
	// before any work result exists.
	ErrResultRequired = errors.New("generation result must be set before setting safety check result")

	// ErrResultsFull is returned when more results are added than the
	// generation's batch size allows.
	ErrResultsFull = errors.New("generation result list is full")
)

// timeNow is indirected for tests.
var timeNow = time.Now

// ProgressEntry is one entry in a generation's state history: the state
// and the time it was entered.
type ProgressEntry struct {
	State Progress
	At    time.Time
}

// SingleGeneration tracks exactly one generated artifact through its
// lifecycle, generic over the result payload type T.
//
// All methods are safe for concurrent use. The state history is
// append-only and never pruned; it is the full audit trail of the
// generation's lifetime.
//
// Example:
//
//	gen, _ := NewImageGeneration()
//	_ = gen.OnPreloading()
//	_ = gen.OnPreloadingComplete()
//	_ = gen.OnGenerating()
//	_ = gen.SetWorkResult(result)
//	_ = gen.OnGenerationWorkComplete()
type SingleGeneration[T any] struct {
	mu sync.Mutex

	id   uuid.UUID
	kind Kind

	progress    Progress
	history     []ProgressEntry
	transitions TransitionTable

	// erroredStates records, per error, the state the generation was in
	// when the error occurred. errorCounts is the same data aggregated.
	erroredStates []ProgressEntry
	errorCounts   map[Progress]int
	errorLimits   map[Progress]int

	failureCount    int
	failedMessages  []string
	failureErrors   []error

	requiresGeneration     bool
	requiresPostProcessing bool

	batchIDs []uuid.UUID
	results  []T

	isNSFW *bool
	isCSAM *bool

	lenient      bool
	extraLogging bool
	logger       *logging.Logger
}

// ID returns the generation's unique identifier, stable for the lifetime
// of the object.
func (g *SingleGeneration[T]) ID() uuid.UUID {
	return g.id
}

// Kind returns the generation kind (image, alchemy, text).
func (g *SingleGeneration[T]) Kind() Kind {
	return g.kind
}

// Progress returns the current lifecycle state.
func (g *SingleGeneration[T]) Progress() Progress {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.progress
}

// History returns a copy of the full, append-only state history. The
// first entry is always ProgressNotStarted.
func (g *SingleGeneration[T]) History() []ProgressEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]ProgressEntry, len(g.history))
	copy(out, g.history)
	return out
}

// ErroredStates returns a copy of the states the generation was in each
// time an error was recorded, with timestamps.
func (g *SingleGeneration[T]) ErroredStates() []ProgressEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]ProgressEntry, len(g.erroredStates))
	copy(out, g.erroredStates)
	return out
}

// ErrorCounts returns a copy of the per-state error counts.
func (g *SingleGeneration[T]) ErrorCounts() map[Progress]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[Progress]int, len(g.errorCounts))
	for state, count := range g.errorCounts {
		out[state] = count
	}
	return out
}

// FailureCount returns the number of times OnError has been called. The
// counter is monotonically non-decreasing.
func (g *SingleGeneration[T]) FailureCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failureCount
}

// FailureMessages returns a copy of the recorded failure reasons.
func (g *SingleGeneration[T]) FailureMessages() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.failedMessages))
	copy(out, g.failedMessages)
	return out
}

// FailureErrors returns a copy of the recorded underlying errors. It
// can be shorter than FailureMessages when failures carried no error
// value.
func (g *SingleGeneration[T]) FailureErrors() []error {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]error, len(g.failureErrors))
	copy(out, g.failureErrors)
	return out
}

// RequiresGeneration reports whether this generation includes an
// inference phase. False only for purely transformative kinds (alchemy).
func (g *SingleGeneration[T]) RequiresGeneration() bool {
	return g.requiresGeneration
}

// RequiresPostProcessing reports whether a post-processing phase follows
// the generation phase.
func (g *SingleGeneration[T]) RequiresPostProcessing() bool {
	return g.requiresPostProcessing
}

// BatchIDs returns a copy of the per-result identifiers. Its length is
// the generation's batch size.
func (g *SingleGeneration[T]) BatchIDs() []uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]uuid.UUID, len(g.batchIDs))
	copy(out, g.batchIDs)
	return out
}

// BatchSize returns the number of results this generation expects.
func (g *SingleGeneration[T]) BatchSize() int {
	return len(g.batchIDs)
}

// WorkResults returns a copy of the results set so far, in batch order.
func (g *SingleGeneration[T]) WorkResults() []T {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]T, len(g.results))
	copy(out, g.results)
	return out
}

// HasWorkResult reports whether at least one work result has been set.
func (g *SingleGeneration[T]) HasWorkResult() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.results) > 0
}

// IsNSFW returns the NSFW safety check outcome. The second return is
// false until a safety check completes.
func (g *SingleGeneration[T]) IsNSFW() (bool, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.isNSFW == nil {
		return false, false
	}
	return *g.isNSFW, true
}

// IsCSAM returns the CSAM safety check outcome. The second return is
// false until a safety check completes.
func (g *SingleGeneration[T]) IsCSAM() (bool, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.isCSAM == nil {
		return false, false
	}
	return *g.isCSAM, true
}

// Step attempts an arbitrary transition to the target state.
//
// The transition succeeds only if the active transition table permits it
// from the current state, or it is the retry-back transition out of
// ProgressError. Stepping into the current state fails with
// ErrAlreadyInState. On success the target state and timestamp are
// appended to the history.
func (g *SingleGeneration[T]) Step(target Progress) error {
	return g.transition(target, "", nil)
}

// OnPreloading records that model preloading is about to begin.
func (g *SingleGeneration[T]) OnPreloading() error {
	return g.transition(ProgressPreloading, "", nil)
}

// OnPreloadingComplete records that preloading finished.
func (g *SingleGeneration[T]) OnPreloadingComplete() error {
	return g.transition(ProgressPreloadingComplete, "", nil)
}

// OnGenerating records that inference is about to begin.
func (g *SingleGeneration[T]) OnGenerating() error {
	return g.transition(ProgressGenerating, "", nil)
}

// OnGenerationWorkComplete records that the generation work finished,
// such as when inference has just produced its output.
//
// This does not finalize the generation: post-processing, safety checks
// and submission may still be pending. The target state is computed from
// the generation's configuration: post-processing when required,
// otherwise whichever of pending-safety-check or pending-submit the
// active transition table permits.
func (g *SingleGeneration[T]) OnGenerationWorkComplete() error {
	g.mu.Lock()
	requiresPP := g.requiresPostProcessing
	g.mu.Unlock()

	if requiresPP {
		return g.transition(ProgressPendingPostProcessing, "", nil)
	}
	return g.workComplete()
}

// OnPostProcessing records that post-processing is about to begin.
func (g *SingleGeneration[T]) OnPostProcessing() error {
	return g.transition(ProgressPostProcessing, "", nil)
}

// OnPostProcessingComplete records that post-processing finished and
// advances to the safety check or submit phase as the table permits.
func (g *SingleGeneration[T]) OnPostProcessingComplete() error {
	return g.workComplete()
}

// workComplete advances past the work phase: into the safety check
// pipeline when the active table includes it, straight to pending-submit
// otherwise.
func (g *SingleGeneration[T]) workComplete() error {
	g.mu.Lock()
	viaSafetyCheck := g.transitions.Allows(g.progress, ProgressPendingSafetyCheck)
	g.mu.Unlock()

	if viaSafetyCheck {
		return g.transition(ProgressPendingSafetyCheck, "", nil)
	}
	return g.transition(ProgressPendingSubmit, "", nil)
}

// OnSafetyChecking records that the safety check is about to start.
func (g *SingleGeneration[T]) OnSafetyChecking() error {
	return g.transition(ProgressSafetyChecking, "", nil)
}

// OnSafetyCheckComplete records the safety check outcome and advances to
// pending-submit.
//
// A work result must already be set; otherwise ErrResultRequired is
// returned and neither field is touched.
func (g *SingleGeneration[T]) OnSafetyCheckComplete(isNSFW, isCSAM bool) error {
	g.mu.Lock()
	if len(g.results) == 0 {
		g.mu.Unlock()
		return fmt.Errorf("generation %s: %w", g.id, ErrResultRequired)
	}
	g.isNSFW = &isNSFW
	g.isCSAM = &isCSAM
	g.mu.Unlock()

	return g.transition(ProgressPendingSubmit, "", nil)
}

// OnSubmitting records that a submission attempt is about to be made.
func (g *SingleGeneration[T]) OnSubmitting() error {
	return g.transition(ProgressSubmitting, "", nil)
}

// OnSubmitComplete records that the generation was successfully
// submitted. Terminal.
func (g *SingleGeneration[T]) OnSubmitComplete() error {
	return g.transition(ProgressSubmitComplete, "", nil)
}

// OnUserRequestedAbort records that the submitting user asked for the
// generation to be aborted. Legal from any non-terminal state.
func (g *SingleGeneration[T]) OnUserRequestedAbort() error {
	return g.transition(ProgressUserRequestedAbort, "", nil)
}

// OnUserAbortComplete records that the user-requested abort finished and
// the API was notified. Terminal.
func (g *SingleGeneration[T]) OnUserAbortComplete() error {
	return g.transition(ProgressUserAbortComplete, "", nil)
}

// OnAbort records that the generation is being abandoned because one or
// more steps failed too many times. failedMessage should state the
// reason; failureErr may be nil.
func (g *SingleGeneration[T]) OnAbort(failedMessage string, failureErr error) error {
	return g.transition(ProgressAborted, failedMessage, failureErr)
}

// OnError records an error that makes the current step impossible to
// complete, such as an OOM-killed sub-process.
//
// The generation transitions to ProgressError, the state it was in is
// appended to the error history, and the failure counter increments.
// Whether to retry (Step back to the original state) or finalize as
// aborted is a policy decision left to the owning job, which can compare
// FailureCount and ErrorCounts against the configured limits.
func (g *SingleGeneration[T]) OnError(failedMessage string, failureErr error) error {
	g.mu.Lock()
	g.failureCount++
	g.mu.Unlock()

	return g.transition(ProgressError, failedMessage, failureErr)
}

// SetWorkResult stores one computed artifact. It has no state machine
// side effect; callers pair it with a transition method.
//
// Returns ErrResultsFull if the batch already holds its expected number
// of results.
func (g *SingleGeneration[T]) SetWorkResult(result T) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.results) >= len(g.batchIDs) {
		return fmt.Errorf("generation %s: %w (have %d of %d)",
			g.id, ErrResultsFull, len(g.results), len(g.batchIDs))
	}
	g.results = append(g.results, result)
	return nil
}

// SetWorkResults stores a batch of computed artifacts in order.
func (g *SingleGeneration[T]) SetWorkResults(results []T) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.results)+len(results) > len(g.batchIDs) {
		return fmt.Errorf("generation %s: %w (adding %d to %d of %d)",
			g.id, ErrResultsFull, len(results), len(g.results), len(g.batchIDs))
	}
	g.results = append(g.results, results...)
	return nil
}

// transition is the single mutation point for the state machine. It
// validates the transition, records failure context, applies error-limit
// checks, and appends to the history.
func (g *SingleGeneration[T]) transition(next Progress, failedMessage string, failureErr error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	current := g.progress

	if failedMessage != "" {
		g.failedMessages = append(g.failedMessages, failedMessage)
		if failureErr != nil {
			g.failureErrors = append(g.failureErrors, failureErr)
		}
	}

	if current == next {
		if g.lenient {
			g.log().Debugw("generation already in state, not transitioning",
				"generation_id", g.id.String(), "state", string(current))
			return nil
		}
		return fmt.Errorf("generation %s: %w %s", g.id, ErrAlreadyInState, current)
	}

	if g.extraLogging {
		g.log().Debugw("attempting transition",
			"generation_id", g.id.String(),
			"from", string(current), "to", string(next),
			"failed_message", failedMessage)
	}

	if !g.allowedLocked(current, next) {
		return fmt.Errorf("generation %s: %w from %s to %s", g.id, ErrInvalidTransition, current, next)
	}

	// Retrying a state whose error budget is spent is refused here so
	// the owning job cannot loop a hopeless step forever.
	if limit, ok := g.errorLimits[next]; ok && g.errorCounts[next] >= limit {
		return fmt.Errorf("generation %s: %w %s (%d errors, limit %d)",
			g.id, ErrErrorLimitExceeded, next, g.errorCounts[next], limit)
	}

	now := timeNow()

	if next == ProgressError {
		g.erroredStates = append(g.erroredStates, ProgressEntry{State: current, At: now})
		g.errorCounts[current]++
	}

	g.progress = next
	g.history = append(g.history, ProgressEntry{State: next, At: now})

	return nil
}

// allowedLocked decides transition legality. Callers hold g.mu.
//
// Three rules beyond the plain table lookup:
//   - out of ProgressError, stepping back to the last non-error state is
//     the retry path and is always legal;
//   - ProgressUserRequestedAbort is accepted from any non-terminal,
//     non-failing state, since a user abort can arrive at any time;
//   - terminal states permit nothing.
func (g *SingleGeneration[T]) allowedLocked(current, next Progress) bool {
	if current.IsTerminal() {
		return false
	}

	if current == ProgressError {
		if next == g.lastNonErrorStateLocked() {
			return true
		}
		return g.transitions.Allows(current, next)
	}

	if next == ProgressUserRequestedAbort {
		return !current.IsFailing()
	}

	return g.transitions.Allows(current, next)
}

// lastNonErrorStateLocked walks the history backwards for the most recent
// state that is not ProgressError. Callers hold g.mu.
func (g *SingleGeneration[T]) lastNonErrorStateLocked() Progress {
	for i := len(g.history) - 1; i >= 0; i-- {
		if g.history[i].State != ProgressError {
			return g.history[i].State
		}
	}
	return ProgressNotStarted
}

// log returns the configured logger, or a nop logger.
func (g *SingleGeneration[T]) log() *logging.Logger {
	if g.logger != nil {
		return g.logger
	}
	return logging.NewNopLogger()
}
