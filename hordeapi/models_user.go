package hordeapi

import "net/http"

// FindUserRequest looks up the user that owns the API key the client is
// configured with.
type FindUserRequest struct{}

func (r *FindUserRequest) HTTPMethod() string    { return http.MethodGet }
func (r *FindUserRequest) Path() string          { return pathFindUser }
func (r *FindUserRequest) NewResponse() Response { return &UserDetails{} }
func (r *FindUserRequest) RequiresAPIKey() bool  { return true }

// UserKudosDetails breaks down how a user's kudos were earned.
type UserKudosDetails struct {
	Accumulated float64 `json:"accumulated"`
	Gifted      float64 `json:"gifted"`
	Received    float64 `json:"received"`
	Recurring   float64 `json:"recurring"`
	Awarded     float64 `json:"awarded"`
}

// UserDetails describes a horde user account.
type UserDetails struct {
	// Username includes the numeric ID suffix, e.g. "alice#12345".
	Username string `json:"username"`

	ID           int               `json:"id"`
	Kudos        float64           `json:"kudos"`
	KudosDetails *UserKudosDetails `json:"kudos_details,omitempty"`

	WorkerCount   int                   `json:"worker_count"`
	WorkerIDs     []string              `json:"worker_ids,omitempty"`
	Trusted       bool                  `json:"trusted"`
	Moderator     bool                  `json:"moderator"`
	Pseudonymous  bool                  `json:"pseudonymous"`
	AccountAge    int                   `json:"account_age"`
	Usage         *UsageDetails         `json:"usage,omitempty"`
	Contributions *ContributionsDetails `json:"contributions,omitempty"`
}

// UsageDetails summarizes what a user has consumed.
type UsageDetails struct {
	Megapixelsteps float64 `json:"megapixelsteps"`
	Requests       int     `json:"requests"`
}

// ContributionsDetails summarizes what a user's workers have produced.
type ContributionsDetails struct {
	Megapixelsteps float64 `json:"megapixelsteps"`
	Fulfillments   int     `json:"fulfillments"`
}

// HeartbeatRequest checks that the API is up. Unauthenticated.
type HeartbeatRequest struct{}

func (r *HeartbeatRequest) HTTPMethod() string    { return http.MethodGet }
func (r *HeartbeatRequest) Path() string          { return pathHeartbeat }
func (r *HeartbeatRequest) NewResponse() Response { return &HeartbeatResponse{} }

// HeartbeatResponse is the API liveness acknowledgement.
type HeartbeatResponse struct {
	Message string `json:"message,omitempty"`
	Version string `json:"version,omitempty"`
}
