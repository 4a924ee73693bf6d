package hordeapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// ListWorkersRequest fetches all workers currently attached to the
// horde, optionally filtered by type (image or text).
type ListWorkersRequest struct {
	// Type filters to "image" or "text" workers. Empty returns all.
	Type string
}

func (r *ListWorkersRequest) HTTPMethod() string    { return http.MethodGet }
func (r *ListWorkersRequest) Path() string          { return pathWorkers }
func (r *ListWorkersRequest) NewResponse() Response { return &ListWorkersResponse{} }

func (r *ListWorkersRequest) QueryParams() url.Values {
	query := url.Values{}
	if r.Type != "" {
		query.Set("type", r.Type)
	}
	return query
}

// WorkerDetails describes one worker attached to the horde.
type WorkerDetails struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Online bool   `json:"online"`

	RequestsFulfilled int     `json:"requests_fulfilled"`
	KudosRewards      float64 `json:"kudos_rewards"`
	Uptime            int     `json:"uptime"`

	MaintenanceMode bool     `json:"maintenance_mode"`
	Paused          bool     `json:"paused"`
	NSFW            bool     `json:"nsfw"`
	Trusted         bool     `json:"trusted"`
	Models          []string `json:"models,omitempty"`

	MaxPixels        int `json:"max_pixels,omitempty"`
	MaxLength        int `json:"max_length,omitempty"`
	MaxContextLength int `json:"max_context_length,omitempty"`
}

// ListWorkersResponse is the worker list. The API returns a bare JSON
// array, so the type carries a custom decode target.
type ListWorkersResponse struct {
	Workers []WorkerDetails
}

func (r *ListWorkersResponse) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &r.Workers)
}

// ModifyWorkerRequest changes a worker's flags. Requires the API key of
// the worker's owner (or a moderator). The common use is toggling
// maintenance mode before taking a worker down.
type ModifyWorkerRequest struct {
	WorkerID string `json:"-"`

	Maintenance *bool  `json:"maintenance,omitempty"`
	Paused      *bool  `json:"paused,omitempty"`
	Info        string `json:"info,omitempty"`
	Name        string `json:"name,omitempty"`
}

func (r *ModifyWorkerRequest) HTTPMethod() string    { return http.MethodPut }
func (r *ModifyWorkerRequest) Path() string          { return fmt.Sprintf(pathWorkerSingle, r.WorkerID) }
func (r *ModifyWorkerRequest) NewResponse() Response { return &ModifyWorkerResponse{} }
func (r *ModifyWorkerRequest) RequestBody() any      { return r }
func (r *ModifyWorkerRequest) RequiresAPIKey() bool  { return true }

// ModifyWorkerResponse echoes the fields that changed.
type ModifyWorkerResponse struct {
	Maintenance bool   `json:"maintenance"`
	Paused      bool   `json:"paused"`
	Info        string `json:"info,omitempty"`
	Name        string `json:"name,omitempty"`
}

// KudosTransferRequest gifts kudos to another user.
type KudosTransferRequest struct {
	// Username is the recipient, including the numeric suffix.
	Username string `json:"username"`

	Amount float64 `json:"amount"`
}

func (r *KudosTransferRequest) HTTPMethod() string    { return http.MethodPost }
func (r *KudosTransferRequest) Path() string          { return pathKudosTransfer }
func (r *KudosTransferRequest) NewResponse() Response { return &KudosTransferResponse{} }
func (r *KudosTransferRequest) RequestBody() any      { return r }
func (r *KudosTransferRequest) RequiresAPIKey() bool  { return true }

// KudosTransferResponse confirms the transferred amount.
type KudosTransferResponse struct {
	Transferred float64 `json:"transferred"`
}

// ListModelsRequest fetches the models currently served by the horde.
type ListModelsRequest struct {
	// Type filters to "image" or "text" models. Empty returns all.
	Type string
}

func (r *ListModelsRequest) HTTPMethod() string    { return http.MethodGet }
func (r *ListModelsRequest) Path() string          { return pathModels }
func (r *ListModelsRequest) NewResponse() Response { return &ListModelsResponse{} }

func (r *ListModelsRequest) QueryParams() url.Values {
	query := url.Values{}
	if r.Type != "" {
		query.Set("type", r.Type)
	}
	return query
}

// ActiveModel is one model currently served, with queue depth.
type ActiveModel struct {
	Name        string  `json:"name"`
	Count       int     `json:"count"`
	Performance float64 `json:"performance"`
	Queued      float64 `json:"queued"`
	Jobs        float64 `json:"jobs"`
	ETA         int     `json:"eta"`
	Type        string  `json:"type"`
}

// ListModelsResponse is the active model list (bare JSON array).
type ListModelsResponse struct {
	Models []ActiveModel
}

func (r *ListModelsResponse) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &r.Models)
}
