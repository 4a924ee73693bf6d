// Package hordeapi is the HTTP client layer for the AI Horde API.
// This file contains the endpoint path atoms shared by every request type.
//
// Paths are relative to the API base URL and use the v2 API. Path
// parameters are substituted by each request's Path method.
package hordeapi

import "fmt"

// AIHordeBaseURL is the default production API base URL.
const AIHordeBaseURL = "https://aihorde.net/api"

// AnonymousAPIKey is the shared key for unauthenticated access. Requests
// made with it have the lowest queue priority.
const AnonymousAPIKey = "0000000000"

// ClientAgentHeader identifies this library to the API. Operators are
// asked to send a stable agent string so abusive clients can be blocked
// without affecting others.
const ClientAgentHeader = "Client-Agent"

// APIKeyHeader carries the caller's API key.
const APIKeyHeader = "apikey"

// Endpoint paths, relative to the base URL.
const (
	pathImageGenerateAsync  = "/v2/generate/async"
	pathImageGenerateCheck  = "/v2/generate/check/%s"
	pathImageGenerateStatus = "/v2/generate/status/%s"

	pathTextGenerateAsync  = "/v2/generate/text/async"
	pathTextGenerateStatus = "/v2/generate/text/status/%s"

	pathAlchemyAsync  = "/v2/interrogate/async"
	pathAlchemyStatus = "/v2/interrogate/status/%s"

	pathFindUser      = "/v2/find_user"
	pathWorkers       = "/v2/workers"
	pathWorkerSingle  = "/v2/workers/%s"
	pathKudosTransfer = "/v2/kudos/transfer"
	pathModels        = "/v2/status/models"
	pathHeartbeat     = "/v2/status/heartbeat"
)

func jobPath(template string, id JobID) string {
	return fmt.Sprintf(template, string(id))
}
