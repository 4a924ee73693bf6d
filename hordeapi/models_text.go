package hordeapi

import "net/http"

// TextGenerationParams are the sampler parameters for a text generation
// job (KoboldAI-compatible naming).
type TextGenerationParams struct {
	MaxContextLength int      `json:"max_context_length,omitempty"`
	MaxLength        int      `json:"max_length,omitempty"`
	Temperature      float64  `json:"temperature,omitempty"`
	TopP             float64  `json:"top_p,omitempty"`
	TopK             int      `json:"top_k,omitempty"`
	RepPen           float64  `json:"rep_pen,omitempty"`
	StopSequence     []string `json:"stop_sequence,omitempty"`
	N                int      `json:"n,omitempty"`
}

// TextGenerateAsyncRequest starts an asynchronous text generation job.
type TextGenerateAsyncRequest struct {
	Prompt         string                `json:"prompt"`
	Params         *TextGenerationParams `json:"params,omitempty"`
	Models         []string              `json:"models,omitempty"`
	TrustedWorkers bool                  `json:"trusted_workers,omitempty"`
	SlowWorkers    bool                  `json:"slow_workers,omitempty"`
}

func (r *TextGenerateAsyncRequest) HTTPMethod() string    { return http.MethodPost }
func (r *TextGenerateAsyncRequest) Path() string          { return pathTextGenerateAsync }
func (r *TextGenerateAsyncRequest) NewResponse() Response { return &TextGenerateAsyncResponse{} }
func (r *TextGenerateAsyncRequest) RequestBody() any      { return r }
func (r *TextGenerateAsyncRequest) RequiresAPIKey() bool  { return true }

// ExpectedResultCount returns the batch size requested via params.n.
func (r *TextGenerateAsyncRequest) ExpectedResultCount() int {
	if r.Params != nil && r.Params.N > 0 {
		return r.Params.N
	}
	return 1
}

// TextGenerateAsyncResponse acknowledges an accepted text job.
//
// Text jobs have no counters-only check endpoint: the status endpoint
// serves both as the repeating poll and the final fetch.
type TextGenerateAsyncResponse struct {
	ID      JobID   `json:"id"`
	Kudos   float64 `json:"kudos"`
	Message string  `json:"message,omitempty"`
}

func (r *TextGenerateAsyncResponse) FollowUpJobID() JobID { return r.ID }

func (r *TextGenerateAsyncResponse) FollowUpRequests() []Request {
	return []Request{&TextGenerateStatusRequest{ID: r.ID}}
}

func (r *TextGenerateAsyncResponse) FollowUpFailureCleanup() []Request {
	return []Request{&DeleteTextGenerateRequest{ID: r.ID}}
}

// TextGenerateStatusRequest fetches a text job's status and results.
type TextGenerateStatusRequest struct {
	ID JobID `json:"-"`
}

func (r *TextGenerateStatusRequest) HTTPMethod() string    { return http.MethodGet }
func (r *TextGenerateStatusRequest) Path() string          { return jobPath(pathTextGenerateStatus, r.ID) }
func (r *TextGenerateStatusRequest) NewResponse() Response { return &TextGenerateStatusResponse{} }
func (r *TextGenerateStatusRequest) JobID() JobID          { return r.ID }

// GeneratedText is one finished text completion within a job.
type GeneratedText struct {
	Text       string `json:"text"`
	Seed       int    `json:"seed"`
	WorkerID   string `json:"worker_id"`
	WorkerName string `json:"worker_name"`
	Model      string `json:"model"`

	// State is one of ok, censored, faulted.
	State string `json:"state"`
}

// TextGenerateStatusResponse is the full text job status with results.
type TextGenerateStatusResponse struct {
	JobProgress

	Generations []GeneratedText `json:"generations"`
}

func (r *TextGenerateStatusResponse) IsFinalFollowUp() bool { return true }

// DeleteTextGenerateRequest cancels a text job; the cleanup request for
// unresolved text jobs.
type DeleteTextGenerateRequest struct {
	ID JobID `json:"-"`
}

func (r *DeleteTextGenerateRequest) HTTPMethod() string    { return http.MethodDelete }
func (r *DeleteTextGenerateRequest) Path() string          { return jobPath(pathTextGenerateStatus, r.ID) }
func (r *DeleteTextGenerateRequest) NewResponse() Response { return &TextGenerateStatusResponse{} }
func (r *DeleteTextGenerateRequest) JobID() JobID          { return r.ID }
