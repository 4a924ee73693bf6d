package hordeapi

import "net/url"

// JobID identifies an asynchronous job on the server. The server issues
// it in the response that accepts the job; every follow-up request for
// the job carries it. It is the correlation key the session bookkeeping
// matches on.
type JobID string

// Request is the contract every typed API request satisfies: enough for
// the client to build the HTTP call without knowing the endpoint.
type Request interface {
	// HTTPMethod returns the verb: GET, POST, PUT, PATCH or DELETE.
	HTTPMethod() string

	// Path returns the endpoint path with path parameters already
	// substituted, relative to the API base URL.
	Path() string

	// NewResponse returns a zero value of the request's success
	// response type for the client to decode into.
	NewResponse() Response
}

// Response is a parsed API response: either a request's declared success
// type or *RequestError.
type Response interface{}

// BodyCarrier is implemented by requests that send a JSON body. The
// returned value is marshaled as-is; requests without a body (GET,
// DELETE) simply don't implement this.
type BodyCarrier interface {
	RequestBody() any
}

// QueryCarrier is implemented by requests with query string parameters.
type QueryCarrier interface {
	QueryParams() url.Values
}

// Authenticated is implemented by requests that require an API key
// header. Requests that don't implement it are sent without the key.
type Authenticated interface {
	RequiresAPIKey() bool
}

// JobScoped is implemented by requests that operate on one asynchronous
// job. The session bookkeeping uses the job ID to match a cleanup or
// status request back to the pending entry it resolves.
type JobScoped interface {
	JobID() JobID
}

// FollowUpRequired is implemented by responses that leave an operation
// open on the server: the caller must poll and eventually finalize it.
// The session records such responses and, if they are never resolved
// before the session closes, submits the cleanup requests.
type FollowUpRequired interface {
	// FollowUpJobID returns the job the server allocated.
	FollowUpJobID() JobID

	// FollowUpRequests returns the polling requests to check on the
	// job, cheapest first.
	FollowUpRequests() []Request

	// FollowUpFailureCleanup returns the requests that cancel or
	// finalize the job if the caller never resolves it normally. Nil
	// means the response type declares no cleanup path.
	FollowUpFailureCleanup() []Request
}

// ProgressReporting is implemented by responses that report on a
// polled job's progress.
type ProgressReporting interface {
	// FinishedCount returns how many of the job's results are done.
	FinishedCount() int

	// IsJobComplete reports whether the job has produced the expected
	// number of results.
	IsJobComplete(expected int) bool

	// IsJobPossible reports whether the job can still be completed by
	// the connected worker pool. False means no worker can pick it up.
	IsJobPossible() bool

	// IsFinalFollowUp reports whether this response type is the
	// terminal poll: the one that carries the actual results rather
	// than just counters.
	IsFinalFollowUp() bool
}

// ResultExpecting is implemented by requests that know how many results
// the job they start should produce. The session uses it to decide when
// a polled job counts as complete. Requests without it expect one.
type ResultExpecting interface {
	ExpectedResultCount() int
}

func expectedResults(req Request) int {
	if re, ok := req.(ResultExpecting); ok {
		if n := re.ExpectedResultCount(); n > 0 {
			return n
		}
	}
	return 1
}

func requestJobID(req Request) (JobID, bool) {
	js, ok := req.(JobScoped)
	if !ok {
		return "", false
	}
	id := js.JobID()
	return id, id != ""
}
