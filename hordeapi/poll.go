package hordeapi

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultPollInterval is the fixed wait between job status checks.
	// The interval is deliberately constant, no jitter or backoff: it
	// aligns with the server's rate limiting for the check endpoints.
	DefaultPollInterval = 4 * time.Second

	// DefaultPollTimeout matches the server's maximum job lifetime.
	// Jobs not finished by then are faulted server-side, so polling
	// longer cannot help.
	DefaultPollTimeout = 1270 * time.Second
)

// PollConfig configures AwaitJobCompletion.
type PollConfig struct {
	// Interval between status checks. Defaults to DefaultPollInterval.
	Interval time.Duration

	// Timeout bounds the whole wait. When it expires the best-available
	// (possibly partial) result is returned rather than an error.
	// Defaults to DefaultPollTimeout.
	Timeout time.Duration
}

// DefaultPollConfig returns the default polling configuration.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Interval: DefaultPollInterval,
		Timeout:  DefaultPollTimeout,
	}
}

// ErrJobNotPossible is returned when no connected worker can fulfil the
// job's requirements. The partial result response is still returned
// alongside it.
var ErrJobNotPossible = errors.New("job cannot be completed by the connected workers")

// AwaitJobCompletion polls a just-accepted asynchronous job until it
// completes, then fetches and returns its final (result-carrying)
// response.
//
// accepted is the response that registered the follow-up; its first
// follow-up request is used as the cheap repeating check and its last as
// the final fetch. expected is the number of results the job should
// produce.
//
// On timeout the final response is fetched once anyway and returned with
// whatever results exist: a partial result at deadline beats no result.
// Context cancellation propagates as an error; the session's Close then
// takes care of the still-pending job.
func (s *Session) AwaitJobCompletion(ctx context.Context, accepted FollowUpRequired, expected int, config PollConfig) (Response, error) {
	if config.Interval <= 0 {
		config.Interval = DefaultPollInterval
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultPollTimeout
	}
	if expected <= 0 {
		expected = 1
	}

	followUps := accepted.FollowUpRequests()
	if len(followUps) == 0 {
		return nil, fmt.Errorf("job %s: response declares no follow-up requests", accepted.FollowUpJobID())
	}
	check := followUps[0]
	final := followUps[len(followUps)-1]

	jobID := accepted.FollowUpJobID()
	deadline := time.Now().Add(config.Timeout)
	ticker := time.NewTicker(config.Interval)
	defer ticker.Stop()

	for {
		resp, err := s.Submit(ctx, check)
		if err != nil {
			return nil, err
		}
		if reqErr, ok := IsRequestError(resp); ok {
			return resp, fmt.Errorf("job %s: check failed: %w", jobID, reqErr)
		}

		pr, ok := resp.(ProgressReporting)
		if !ok {
			return nil, fmt.Errorf("job %s: check response does not report progress", jobID)
		}

		if !pr.IsJobPossible() {
			s.logger.Warnw("job cannot be completed by connected workers",
				"job_id", string(jobID))
			finalResp, finalErr := s.Submit(ctx, final)
			if finalErr != nil {
				return nil, finalErr
			}
			return finalResp, ErrJobNotPossible
		}

		if pr.IsJobComplete(expected) {
			return s.Submit(ctx, final)
		}

		if time.Now().After(deadline) {
			s.logger.Warnw("job polling timed out, returning partial results",
				"job_id", string(jobID),
				"finished", pr.FinishedCount(),
				"expected", expected,
			)
			return s.Submit(ctx, final)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
