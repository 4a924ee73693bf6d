package hordeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"hordesdk/logging"
)

// ClientConfig contains configuration for the Client.
type ClientConfig struct {
	// BaseURL is the API base URL. Defaults to AIHordeBaseURL.
	BaseURL string

	// APIKey authenticates requests that need it. Defaults to
	// AnonymousAPIKey (lowest queue priority).
	APIKey string

	// ClientAgent is sent on every request so server operators can
	// identify the client. Format: name:version:contact.
	ClientAgent string

	// HTTPClient is the underlying transport. Defaults to a client
	// with a 60 second timeout.
	HTTPClient *http.Client

	// Logger for request diagnostics. Defaults to a nop logger.
	Logger *logging.Logger
}

// DefaultClientConfig returns a ClientConfig with sensible defaults:
// the production API, anonymous access, and a 60 second HTTP timeout.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:     AIHordeBaseURL,
		APIKey:      AnonymousAPIKey,
		ClientAgent: DefaultClientAgent,
		HTTPClient:  &http.Client{Timeout: 60 * time.Second},
	}
}

// DefaultClientAgent is the agent string sent when the caller does not
// set one.
const DefaultClientAgent = "hordesdk:" + Version + ":unknown"

// Version is the library version reported in the default client agent.
const Version = "1.0.0"

// Client is the low-level API client: one typed request in, one typed
// response out. It performs no follow-up bookkeeping; use Session for
// workloads that start asynchronous jobs.
//
// All methods are safe for concurrent use.
//
// Example:
//
//	client := hordeapi.NewClient(hordeapi.DefaultClientConfig())
//	resp, err := client.Submit(ctx, &hordeapi.FindUserRequest{})
type Client struct {
	baseURL     string
	apiKey      string
	clientAgent string
	httpClient  *http.Client
	logger      *logging.Logger
}

// NewClient creates a Client. Zero-value config fields fall back to the
// defaults from DefaultClientConfig.
func NewClient(config ClientConfig) *Client {
	defaults := DefaultClientConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.APIKey == "" {
		config.APIKey = defaults.APIKey
	}
	if config.ClientAgent == "" {
		config.ClientAgent = defaults.ClientAgent
	}
	if config.HTTPClient == nil {
		config.HTTPClient = defaults.HTTPClient
	}
	if config.Logger == nil {
		config.Logger = logging.NewNopLogger()
	}

	return &Client{
		baseURL:     config.BaseURL,
		apiKey:      config.APIKey,
		clientAgent: config.ClientAgent,
		httpClient:  config.HTTPClient,
		logger:      config.Logger,
	}
}

// BaseURL returns the API base URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Submit performs one request and parses the response.
//
// The returned Response is either the request's declared success type or
// *RequestError when the server rejected the request; in the latter case
// the Go error is still nil. A non-nil error means the request never
// produced a parseable API response (transport failure, cancelled
// context, undecodable body).
func (c *Client) Submit(ctx context.Context, req Request) (Response, error) {
	httpReq, err := c.buildHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.HTTPMethod(), req.Path(), err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: reading response: %w", req.HTTPMethod(), req.Path(), err)
	}

	c.logger.Debugw("api request complete",
		"method", req.HTTPMethod(),
		"path", req.Path(),
		"status", httpResp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return parseResponse(req, httpResp.StatusCode, body)
}

func (c *Client) buildHTTPRequest(ctx context.Context, req Request) (*http.Request, error) {
	endpoint := c.baseURL + req.Path()
	if qc, ok := req.(QueryCarrier); ok {
		if query := qc.QueryParams(); len(query) > 0 {
			endpoint += "?" + query.Encode()
		}
	}

	var bodyReader io.Reader
	if bc, ok := req.(BodyCarrier); ok {
		payload, err := json.Marshal(bc.RequestBody())
		if err != nil {
			return nil, fmt.Errorf("%s %s: encoding body: %w", req.HTTPMethod(), req.Path(), err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.HTTPMethod(), endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.HTTPMethod(), req.Path(), err)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(ClientAgentHeader, c.clientAgent)
	if bodyReader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if auth, ok := req.(Authenticated); ok && auth.RequiresAPIKey() {
		httpReq.Header.Set(APIKeyHeader, c.apiKey)
	}

	return httpReq, nil
}

// parseResponse decodes a success payload into the request's declared
// response type, or a failure payload into *RequestError.
func parseResponse(req Request, statusCode int, body []byte) (Response, error) {
	if statusCode >= 400 {
		reqErr := &RequestError{StatusCode: statusCode}
		if err := json.Unmarshal(body, reqErr); err != nil || reqErr.Message == "" {
			reqErr.Message = string(body)
		}
		return reqErr, nil
	}

	resp := req.NewResponse()
	if resp == nil {
		return nil, nil
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, resp); err != nil {
			return nil, fmt.Errorf("%s %s: decoding response: %w", req.HTTPMethod(), req.Path(), err)
		}
	}
	return resp, nil
}
