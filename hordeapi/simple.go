package hordeapi

import (
	"context"
	"fmt"
	"time"

	"hordesdk/logging"
)

// MinSensibleTimeout is the shortest wait that gives a queued job any
// realistic chance to finish. Shorter timeouts are honored but warned
// about.
const MinSensibleTimeout = 20 * time.Second

// SimpleClient is the convenience layer for one-shot callers: each call
// opens a session, submits the job, polls it to completion and closes
// the session, so an interrupted call still cancels its job.
//
// Example:
//
//	simple := hordeapi.NewSimpleClient(hordeapi.DefaultClientConfig())
//	status, err := simple.ImageGenerate(ctx, &hordeapi.ImageGenerateAsyncRequest{
//		Prompt: "a painting of a horde of capypigs",
//	}, 5*time.Minute)
type SimpleClient struct {
	client *Client
	logger *logging.Logger
}

// NewSimpleClient creates a SimpleClient.
func NewSimpleClient(config ClientConfig) *SimpleClient {
	client := NewClient(config)
	return &SimpleClient{
		client: client,
		logger: client.logger,
	}
}

// Client returns the underlying low-level client.
func (sc *SimpleClient) Client() *Client {
	return sc.client
}

// clampTimeout bounds a caller-supplied timeout to what the server can
// honor. Jobs older than the server's maximum lifetime are faulted, so
// waiting longer is pointless.
func (sc *SimpleClient) clampTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultPollTimeout
	}
	if timeout > DefaultPollTimeout {
		sc.logger.Warnw("timeout exceeds the server's maximum job lifetime, clamping",
			"requested", timeout.String(), "clamped", DefaultPollTimeout.String())
		return DefaultPollTimeout
	}
	if timeout < MinSensibleTimeout {
		sc.logger.Warnw("timeout is very short, queued jobs are unlikely to finish in time",
			"requested", timeout.String())
	}
	return timeout
}

// ImageGenerate submits an image job and blocks until it completes, the
// timeout expires (partial results returned), or ctx is cancelled (the
// job is then cancelled server-side before returning).
func (sc *SimpleClient) ImageGenerate(ctx context.Context, req *ImageGenerateAsyncRequest, timeout time.Duration) (*ImageGenerateStatusResponse, error) {
	final, err := sc.runJob(ctx, req, req.ExpectedResultCount(), timeout)
	if err != nil {
		return nil, err
	}
	status, ok := final.(*ImageGenerateStatusResponse)
	if !ok {
		return nil, fmt.Errorf("image generate: unexpected final response type %T", final)
	}
	return status, nil
}

// TextGenerate submits a text job and blocks until it completes, with
// the same timeout and cancellation behavior as ImageGenerate.
func (sc *SimpleClient) TextGenerate(ctx context.Context, req *TextGenerateAsyncRequest, timeout time.Duration) (*TextGenerateStatusResponse, error) {
	final, err := sc.runJob(ctx, req, req.ExpectedResultCount(), timeout)
	if err != nil {
		return nil, err
	}
	status, ok := final.(*TextGenerateStatusResponse)
	if !ok {
		return nil, fmt.Errorf("text generate: unexpected final response type %T", final)
	}
	return status, nil
}

// Alchemy submits an alchemy job and blocks until it completes, with the
// same timeout and cancellation behavior as ImageGenerate.
func (sc *SimpleClient) Alchemy(ctx context.Context, req *AlchemyAsyncRequest, timeout time.Duration) (*AlchemyStatusResponse, error) {
	final, err := sc.runJob(ctx, req, req.ExpectedResultCount(), timeout)
	if err != nil {
		return nil, err
	}
	status, ok := final.(*AlchemyStatusResponse)
	if !ok {
		return nil, fmt.Errorf("alchemy: unexpected final response type %T", final)
	}
	return status, nil
}

// runJob is the shared submit-poll-close path behind the one-shot
// helpers.
func (sc *SimpleClient) runJob(ctx context.Context, req Request, expected int, timeout time.Duration) (Response, error) {
	timeout = sc.clampTimeout(timeout)

	session := NewSession(sc.client)
	resp, err := session.Submit(ctx, req)
	if err != nil {
		closeErr := session.Close(context.WithoutCancel(ctx), err)
		if closeErr != nil {
			sc.logger.Errorw("session close failed", "error", closeErr.Error())
		}
		return nil, err
	}
	if reqErr, ok := IsRequestError(resp); ok {
		if closeErr := session.Close(context.WithoutCancel(ctx), nil); closeErr != nil {
			sc.logger.Errorw("session close failed", "error", closeErr.Error())
		}
		return nil, reqErr
	}

	accepted, ok := resp.(FollowUpRequired)
	if !ok {
		if closeErr := session.Close(context.WithoutCancel(ctx), nil); closeErr != nil {
			sc.logger.Errorw("session close failed", "error", closeErr.Error())
		}
		return nil, fmt.Errorf("%s %s: response does not start an asynchronous job", req.HTTPMethod(), req.Path())
	}

	final, pollErr := session.AwaitJobCompletion(ctx, accepted, expected, PollConfig{Timeout: timeout})

	// Close with a non-cancellable context so an interrupted caller
	// still gets its job cancelled server-side.
	closeErr := session.Close(context.WithoutCancel(ctx), pollErr)
	if pollErr != nil {
		return final, pollErr
	}
	return final, closeErr
}
