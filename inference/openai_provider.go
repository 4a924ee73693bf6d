package inference

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// DefaultInferenceURL is the conventional local endpoint exposed by
// KoboldCPP, Aphrodite, and similar OpenAI-compatible servers.
const DefaultInferenceURL = "http://localhost:5001/v1"

// OpenAIProvider implements Provider against any OpenAI-compatible
// chat completions endpoint.
//
// Thread Safety: OpenAIProvider is safe for concurrent use.
// The underlying client handles connection pooling.
type OpenAIProvider struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// OpenAIProviderConfig holds configuration for the OpenAI-compatible provider.
type OpenAIProviderConfig struct {
	// BaseURL is the API endpoint (default: http://localhost:5001/v1)
	BaseURL string

	// APIKey authenticates against the endpoint. Local servers usually
	// ignore it; hosted ones require it.
	APIKey string

	// Model is the model to request (required)
	Model string

	// MaxTokens caps the completion length (default: 512)
	MaxTokens int

	// Timeout for inference calls (default: 120 seconds)
	Timeout time.Duration

	// HTTPClient overrides the HTTP client for API calls (optional)
	HTTPClient *http.Client
}

// DefaultOpenAIProviderConfig returns sensible defaults for a local
// inference server.
func DefaultOpenAIProviderConfig() OpenAIProviderConfig {
	return OpenAIProviderConfig{
		BaseURL:   DefaultInferenceURL,
		MaxTokens: 512,
		Timeout:   120 * time.Second,
	}
}

// NewOpenAIProvider creates a provider for an OpenAI-compatible endpoint.
//
// Returns an error if no model is configured; local servers do not
// reliably report a default.
//
// Example:
//
//	cfg := DefaultOpenAIProviderConfig()
//	cfg.Model = "koboldcpp/llama3"
//	provider, err := NewOpenAIProvider(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	text, err := provider.Complete(ctx, "Write a haiku about queues.")
func NewOpenAIProvider(config OpenAIProviderConfig) (*OpenAIProvider, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("inference: model is required")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultInferenceURL
	}

	// go-openai requires a token string even when the server ignores it
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = "not-needed"
	}

	clientConfig := openai.DefaultConfig(apiKey)
	clientConfig.BaseURL = baseURL
	if config.HTTPClient != nil {
		clientConfig.HTTPClient = config.HTTPClient
	} else {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		clientConfig.HTTPClient = &http.Client{Timeout: timeout}
	}

	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}

	return &OpenAIProvider{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     config.Model,
		maxTokens: maxTokens,
	}, nil
}

// Complete produces a completion for the given prompt via the chat
// completions endpoint.
func (p *OpenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("inference: prompt cannot be empty")
	}

	response, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("inference: completion failed: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("inference: endpoint returned no choices")
	}
	if response.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("inference: endpoint returned empty completion")
	}

	return response.Choices[0].Message.Content, nil
}

// Model returns the configured model name.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// Ensure OpenAIProvider implements Provider interface at compile time.
var _ Provider = (*OpenAIProvider)(nil)
