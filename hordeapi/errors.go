package hordeapi

import "fmt"

// RequestError is the uniform error payload the API returns for any
// failed request: a human-readable message plus a short machine-readable
// reason code.
//
// A RequestError travels through the normal response return path as a
// value, not as a Go error: the caller decides whether a failed request
// is fatal. It still implements error for callers that want to bubble it
// up directly.
type RequestError struct {
	// Message is the human-readable explanation from the server.
	Message string `json:"message"`

	// RC is the reason code, such as "MissingPrompt" or
	// "InvalidAPIKey". Empty for older endpoints that predate codes.
	RC string `json:"rc,omitempty"`

	// StatusCode is the HTTP status the payload arrived with. Not part
	// of the wire format.
	StatusCode int `json:"-"`
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.RC != "" {
		return fmt.Sprintf("horde api error %d (%s): %s", e.StatusCode, e.RC, e.Message)
	}
	return fmt.Sprintf("horde api error %d: %s", e.StatusCode, e.Message)
}

// IsRequestError reports whether a response value is the API's error
// payload, returning it typed when so.
func IsRequestError(resp Response) (*RequestError, bool) {
	reqErr, ok := resp.(*RequestError)
	return reqErr, ok
}
