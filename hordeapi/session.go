package hordeapi

import (
	"context"
	"errors"
	"sync"

	"github.com/hashicorp/go-multierror"

	"hordesdk/logging"
)

// ErrSessionClosed is returned by Submit after Close has run.
var ErrSessionClosed = errors.New("horde session is closed")

// pendingFollowUp is one unresolved asynchronous operation: the request
// that started it, the response that flagged it as open, and the cleanup
// requests to issue if it is never resolved normally.
type pendingFollowUp struct {
	request  Request
	response FollowUpRequired
	cleanup  []Request
	jobID    JobID
	expected int
}

// Session wraps a Client with follow-up bookkeeping: any response that
// leaves a job open on the server is tracked, and jobs still open when
// the session closes get a best-effort cleanup request. This keeps a
// crashed or cancelled caller from leaving orphaned jobs queued
// server-side.
//
// A session is meant to span one logical unit of work. Two independent
// units of work must not share a session, because Close conflates their
// cleanup decisions. The underlying Client may be shared freely.
//
// All methods are safe for concurrent use; five goroutines submitting
// through one session each register and retire their own entries.
//
// Example:
//
//	session := hordeapi.NewSession(client)
//	defer session.Close(context.Background(), nil)
//
//	resp, err := session.Submit(ctx, asyncReq)
type Session struct {
	client *Client
	logger *logging.Logger

	mu          sync.Mutex
	pending     []pendingFollowUp
	awaiting    map[uint64]Request
	nextAwaitID uint64
	closed      bool
}

// NewSession creates a Session over an existing client. The session
// logs through the client's logger.
func NewSession(client *Client) *Session {
	return &Session{
		client:   client,
		logger:   client.logger,
		awaiting: make(map[uint64]Request),
	}
}

// Client returns the underlying client.
func (s *Session) Client() *Client {
	return s.client
}

// PendingFollowUps returns the number of operations still awaiting
// resolution. Zero after a fully resolved unit of work.
func (s *Session) PendingFollowUps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Submit performs one request through the underlying client and applies
// the follow-up bookkeeping:
//
//   - a response that requires follow-up registers a pending entry;
//   - a request that matches a pending entry's cleanup request retires
//     that entry, unless the response is an API error;
//   - a final poll response reporting the expected completion count
//     retires the entry it polled for.
//
// The response is returned to the caller unchanged.
func (s *Session) Submit(ctx context.Context, req Request) (Response, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	awaitID := s.nextAwaitID
	s.nextAwaitID++
	s.awaiting[awaitID] = req
	s.mu.Unlock()

	resp, err := s.client.Submit(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.awaiting, awaitID)

	if err != nil {
		return nil, err
	}

	if fu, ok := resp.(FollowUpRequired); ok {
		s.pending = append(s.pending, pendingFollowUp{
			request:  req,
			response: fu,
			cleanup:  fu.FollowUpFailureCleanup(),
			jobID:    fu.FollowUpJobID(),
			expected: expectedResults(req),
		})
		s.logger.Debugw("follow-up registered",
			"job_id", string(fu.FollowUpJobID()),
			"path", req.Path(),
			"pending", len(s.pending),
		)
		return resp, nil
	}

	s.retireLocked(req, resp)
	return resp, nil
}

// retireLocked checks whether a just-completed request resolves a
// pending entry and removes the entry when so. Matching is by job ID
// carried on the request, never by object identity. Callers hold s.mu.
func (s *Session) retireLocked(req Request, resp Response) {
	jobID, ok := requestJobID(req)
	if !ok {
		return
	}
	_, isAPIError := IsRequestError(resp)

	for i, entry := range s.pending {
		if entry.jobID != jobID {
			continue
		}

		if matchesCleanup(entry, req) {
			if isAPIError {
				// Best effort: the entry stays, but cleanup is only
				// ever attempted once per entry at close.
				s.logger.Warnw("cleanup request failed, follow-up left pending",
					"job_id", string(jobID), "path", req.Path())
				return
			}
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			s.logger.Debugw("follow-up retired by cleanup",
				"job_id", string(jobID), "pending", len(s.pending))
			return
		}

		if pr, ok := resp.(ProgressReporting); ok &&
			pr.IsFinalFollowUp() && pr.IsJobComplete(entry.expected) {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			s.logger.Debugw("follow-up retired by completion",
				"job_id", string(jobID),
				"finished", pr.FinishedCount(),
				"pending", len(s.pending),
			)
			return
		}

		return
	}
}

// matchesCleanup reports whether req is one of the entry's recorded
// cleanup requests, compared by value (verb and resolved path).
func matchesCleanup(entry pendingFollowUp, req Request) bool {
	for _, cleanup := range entry.cleanup {
		if cleanup.HTTPMethod() == req.HTTPMethod() && cleanup.Path() == req.Path() {
			return true
		}
	}
	return false
}

// Close ends the session's unit of work and submits cleanup requests for
// every operation still pending. cause is the error (if any) that ended
// the scope; pass nil on normal completion and ctx.Err() on
// cancellation.
//
// Cleanup is attempted exactly once per entry, concurrently, through the
// normal Submit path so successful cleanups retire their own entries.
// Requests still in flight at close time are logged per request; that
// always indicates the caller abandoned the session while work was
// running.
//
// The returned error aggregates cleanup failures. When cause is a
// context cancellation and every pending operation was cleaned up,
// Close returns nil so the caller's cancellation stands undisturbed.
func (s *Session) Close(ctx context.Context, cause error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	for _, req := range s.awaiting {
		s.logger.Warnw("request still in flight at session close",
			"method", req.HTTPMethod(), "path", req.Path())
	}
	entries := make([]pendingFollowUp, len(s.pending))
	copy(entries, s.pending)
	s.mu.Unlock()

	cancelled := errors.Is(cause, context.Canceled)
	if cause != nil && !cancelled {
		s.logger.Errorw("session closing after error", "error", cause.Error())
	}

	var merr *multierror.Error
	for _, entry := range entries {
		if entry.cleanup == nil {
			// Nothing more can be done: the response type required
			// follow-up but declared no cleanup path.
			s.logger.Errorw("pending follow-up declares no cleanup request",
				"job_id", string(entry.jobID), "path", entry.request.Path())
			s.drop(entry.jobID)
			continue
		}
		if err := s.submitCleanups(ctx, entry); err != nil {
			merr = multierror.Append(merr, err)
		}
	}

	s.mu.Lock()
	for _, entry := range s.pending {
		s.logger.Errorw("follow-up not cleaned up, job may be orphaned server-side",
			"job_id", string(entry.jobID), "path", entry.request.Path())
	}
	unresolved := len(s.pending)
	s.pending = nil
	s.closed = true
	s.mu.Unlock()

	if merr != nil {
		return merr.ErrorOrNil()
	}
	if unresolved > 0 {
		return errors.New("horde session closed with unresolved follow-ups")
	}
	return nil
}

// submitCleanups issues one entry's cleanup requests concurrently
// through Submit, so each success retires its entry via the normal
// bookkeeping path.
func (s *Session) submitCleanups(ctx context.Context, entry pendingFollowUp) error {
	var (
		wg   sync.WaitGroup
		merr *multierror.Error
		emu  sync.Mutex
	)
	for _, cleanup := range entry.cleanup {
		wg.Add(1)
		go func(cleanup Request) {
			defer wg.Done()
			resp, err := s.Submit(ctx, cleanup)
			if err == nil {
				if reqErr, isErr := IsRequestError(resp); isErr {
					err = reqErr
				}
			}
			if err != nil {
				s.logger.Errorw("cleanup request failed",
					"job_id", string(entry.jobID),
					"method", cleanup.HTTPMethod(),
					"path", cleanup.Path(),
					"error", err.Error(),
				)
				emu.Lock()
				merr = multierror.Append(merr, err)
				emu.Unlock()
			}
		}(cleanup)
	}
	wg.Wait()
	return merr.ErrorOrNil()
}

// drop removes a pending entry by job ID.
func (s *Session) drop(jobID JobID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, entry := range s.pending {
		if entry.jobID == jobID {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}
