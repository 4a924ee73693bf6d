package hordeapi

import "net/http"

// ImageGenerationParams are the sampler parameters for an image
// generation job. Zero-valued fields are omitted and take server
// defaults.
type ImageGenerationParams struct {
	SamplerName       string   `json:"sampler_name,omitempty"`
	CfgScale          float64  `json:"cfg_scale,omitempty"`
	DenoisingStrength float64  `json:"denoising_strength,omitempty"`
	Seed              string   `json:"seed,omitempty"`
	Height            int      `json:"height,omitempty"`
	Width             int      `json:"width,omitempty"`
	Steps             int      `json:"steps,omitempty"`
	N                 int      `json:"n,omitempty"`
	PostProcessing    []string `json:"post_processing,omitempty"`
	Karras            bool     `json:"karras,omitempty"`
	HiresFix          bool     `json:"hires_fix,omitempty"`
	ClipSkip          int      `json:"clip_skip,omitempty"`
}

// ImageGenerateAsyncRequest starts an asynchronous image generation job.
type ImageGenerateAsyncRequest struct {
	Prompt           string                 `json:"prompt"`
	Params           *ImageGenerationParams `json:"params,omitempty"`
	NSFW             bool                   `json:"nsfw,omitempty"`
	TrustedWorkers   bool                   `json:"trusted_workers,omitempty"`
	CensorNSFW       bool                   `json:"censor_nsfw,omitempty"`
	Models           []string               `json:"models,omitempty"`
	SourceImage      string                 `json:"source_image,omitempty"`
	SourceProcessing string                 `json:"source_processing,omitempty"`
	R2               bool                   `json:"r2,omitempty"`
	Shared           bool                   `json:"shared,omitempty"`
	SlowWorkers      bool                   `json:"slow_workers,omitempty"`
}

func (r *ImageGenerateAsyncRequest) HTTPMethod() string    { return http.MethodPost }
func (r *ImageGenerateAsyncRequest) Path() string          { return pathImageGenerateAsync }
func (r *ImageGenerateAsyncRequest) NewResponse() Response { return &ImageGenerateAsyncResponse{} }
func (r *ImageGenerateAsyncRequest) RequestBody() any      { return r }
func (r *ImageGenerateAsyncRequest) RequiresAPIKey() bool  { return true }

// ExpectedResultCount returns the batch size requested via params.n.
func (r *ImageGenerateAsyncRequest) ExpectedResultCount() int {
	if r.Params != nil && r.Params.N > 0 {
		return r.Params.N
	}
	return 1
}

// ImageGenerateAsyncResponse acknowledges an accepted image job. The job
// is now queued server-side and must be polled to resolution or
// cancelled, which the response declares through its follow-up methods.
type ImageGenerateAsyncResponse struct {
	// ID is the job identifier for all follow-up requests.
	ID JobID `json:"id"`

	// Kudos is the cost charged for the job.
	Kudos float64 `json:"kudos"`

	// Message carries optional operator notices.
	Message string `json:"message,omitempty"`
}

func (r *ImageGenerateAsyncResponse) FollowUpJobID() JobID { return r.ID }

func (r *ImageGenerateAsyncResponse) FollowUpRequests() []Request {
	return []Request{
		&ImageGenerateCheckRequest{ID: r.ID},
		&ImageGenerateStatusRequest{ID: r.ID},
	}
}

func (r *ImageGenerateAsyncResponse) FollowUpFailureCleanup() []Request {
	return []Request{&DeleteImageGenerateRequest{ID: r.ID}}
}

// ImageGenerateCheckRequest polls an image job's counters. Cheap: not
// rate limited like the status endpoint, carries no results.
type ImageGenerateCheckRequest struct {
	ID JobID `json:"-"`
}

func (r *ImageGenerateCheckRequest) HTTPMethod() string    { return http.MethodGet }
func (r *ImageGenerateCheckRequest) Path() string          { return jobPath(pathImageGenerateCheck, r.ID) }
func (r *ImageGenerateCheckRequest) NewResponse() Response { return &ImageGenerateCheckResponse{} }
func (r *ImageGenerateCheckRequest) JobID() JobID          { return r.ID }

// ImageGenerateCheckResponse is the counters-only progress report.
type ImageGenerateCheckResponse struct {
	JobProgress
}

func (r *ImageGenerateCheckResponse) IsFinalFollowUp() bool { return false }

// ImageGenerateStatusRequest fetches an image job's full status,
// including any finished images.
type ImageGenerateStatusRequest struct {
	ID JobID `json:"-"`
}

func (r *ImageGenerateStatusRequest) HTTPMethod() string    { return http.MethodGet }
func (r *ImageGenerateStatusRequest) Path() string          { return jobPath(pathImageGenerateStatus, r.ID) }
func (r *ImageGenerateStatusRequest) NewResponse() Response { return &ImageGenerateStatusResponse{} }
func (r *ImageGenerateStatusRequest) JobID() JobID          { return r.ID }

// GeneratedImage is one finished image within a job.
type GeneratedImage struct {
	// ID is the individual generation's identifier.
	ID string `json:"id"`

	// Img is the image payload: a URL when the job used R2 delivery,
	// base64-encoded WebP otherwise.
	Img string `json:"img"`

	// Seed actually used for the generation.
	Seed string `json:"seed"`

	// Censored reports whether the image was replaced due to the
	// safety check.
	Censored bool `json:"censored"`

	WorkerID   string `json:"worker_id"`
	WorkerName string `json:"worker_name"`
	Model      string `json:"model"`

	// State is one of ok, censored, faulted.
	State string `json:"state"`
}

// ImageGenerateStatusResponse is the full job status with results. It is
// the terminal follow-up: once it reports completion the job is resolved.
type ImageGenerateStatusResponse struct {
	JobProgress

	Generations []GeneratedImage `json:"generations"`
	Shared      bool             `json:"shared"`
}

func (r *ImageGenerateStatusResponse) IsFinalFollowUp() bool { return true }

// DeleteImageGenerateRequest cancels an image job. It is the cleanup
// request for unresolved image jobs; the server refunds kudos for the
// unfinished portion.
type DeleteImageGenerateRequest struct {
	ID JobID `json:"-"`
}

func (r *DeleteImageGenerateRequest) HTTPMethod() string    { return http.MethodDelete }
func (r *DeleteImageGenerateRequest) Path() string          { return jobPath(pathImageGenerateStatus, r.ID) }
func (r *DeleteImageGenerateRequest) NewResponse() Response { return &ImageGenerateStatusResponse{} }
func (r *DeleteImageGenerateRequest) JobID() JobID          { return r.ID }
