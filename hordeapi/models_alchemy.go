package hordeapi

import "net/http"

// Alchemy form names: the transformations and interrogations an alchemy
// job can request.
const (
	AlchemyFormCaption       = "caption"
	AlchemyFormInterrogation = "interrogation"
	AlchemyFormNSFW          = "nsfw"
	AlchemyFormUpscaleESRGAN = "RealESRGAN_x4plus"
	AlchemyFormStripBG       = "strip_background"
)

// AlchemyForm requests one transformation of the source image.
type AlchemyForm struct {
	Name string `json:"name"`
}

// AlchemyAsyncRequest starts an asynchronous alchemy job: one or more
// forms applied to a single source image.
type AlchemyAsyncRequest struct {
	Forms       []AlchemyForm `json:"forms"`
	SourceImage string        `json:"source_image"`
	SlowWorkers bool          `json:"slow_workers,omitempty"`
}

func (r *AlchemyAsyncRequest) HTTPMethod() string    { return http.MethodPost }
func (r *AlchemyAsyncRequest) Path() string          { return pathAlchemyAsync }
func (r *AlchemyAsyncRequest) NewResponse() Response { return &AlchemyAsyncResponse{} }
func (r *AlchemyAsyncRequest) RequestBody() any      { return r }
func (r *AlchemyAsyncRequest) RequiresAPIKey() bool  { return true }

// ExpectedResultCount returns the number of forms requested.
func (r *AlchemyAsyncRequest) ExpectedResultCount() int {
	return len(r.Forms)
}

// AlchemyAsyncResponse acknowledges an accepted alchemy job.
type AlchemyAsyncResponse struct {
	ID      JobID  `json:"id"`
	Message string `json:"message,omitempty"`
}

func (r *AlchemyAsyncResponse) FollowUpJobID() JobID { return r.ID }

func (r *AlchemyAsyncResponse) FollowUpRequests() []Request {
	return []Request{&AlchemyStatusRequest{ID: r.ID}}
}

func (r *AlchemyAsyncResponse) FollowUpFailureCleanup() []Request {
	return []Request{&DeleteAlchemyRequest{ID: r.ID}}
}

// AlchemyStatusRequest fetches an alchemy job's status and form results.
type AlchemyStatusRequest struct {
	ID JobID `json:"-"`
}

func (r *AlchemyStatusRequest) HTTPMethod() string    { return http.MethodGet }
func (r *AlchemyStatusRequest) Path() string          { return jobPath(pathAlchemyStatus, r.ID) }
func (r *AlchemyStatusRequest) NewResponse() Response { return &AlchemyStatusResponse{} }
func (r *AlchemyStatusRequest) JobID() JobID          { return r.ID }

// AlchemyFormResult is one completed form. Result keys depend on the
// form: caption text, an upscaled image URL, NSFW booleans.
type AlchemyFormResult struct {
	Form string `json:"form"`

	// State is one of waiting, processing, done, faulted.
	State string `json:"state"`

	Result map[string]any `json:"result,omitempty"`
}

// AlchemyStatusResponse is an alchemy job's status. Unlike generation
// jobs it reports a single state string plus per-form states.
type AlchemyStatusResponse struct {
	// State is one of waiting, processing, partial, done, faulted.
	State string `json:"state"`

	Forms []AlchemyFormResult `json:"forms"`
}

// FinishedCount returns the number of forms in the done state.
func (r *AlchemyStatusResponse) FinishedCount() int {
	finished := 0
	for _, form := range r.Forms {
		if form.State == "done" {
			finished++
		}
	}
	return finished
}

// IsJobComplete reports whether the whole job is done.
func (r *AlchemyStatusResponse) IsJobComplete(expected int) bool {
	if r.State == "done" {
		return true
	}
	return expected > 0 && r.FinishedCount() >= expected
}

// IsJobPossible reports whether the job can still complete.
func (r *AlchemyStatusResponse) IsJobPossible() bool {
	return r.State != "faulted"
}

func (r *AlchemyStatusResponse) IsFinalFollowUp() bool { return true }

// DeleteAlchemyRequest cancels an alchemy job; the cleanup request for
// unresolved alchemy jobs.
type DeleteAlchemyRequest struct {
	ID JobID `json:"-"`
}

func (r *DeleteAlchemyRequest) HTTPMethod() string    { return http.MethodDelete }
func (r *DeleteAlchemyRequest) Path() string          { return jobPath(pathAlchemyStatus, r.ID) }
func (r *DeleteAlchemyRequest) NewResponse() Response { return &AlchemyStatusResponse{} }
func (r *DeleteAlchemyRequest) JobID() JobID          { return r.ID }
