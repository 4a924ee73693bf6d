package core

import (
	"net/url"
	"strings"
	"time"
)

// AnonymousAPIKey is the shared key for unauthenticated horde access.
const AnonymousAPIKey = "0000000000"

// Config holds all environment-driven configuration. The bridge worker's
// YAML file layers on top of this for worker-specific settings.
type Config struct {
	// Horde API
	HordeURL    string
	HordeAPIKey string
	ClientAgent string

	// Local inference backend (OpenAI-compatible server)
	InferenceURL    string
	InferenceAPIKey string
	InferenceModel  string

	// Audit store; empty disables auditing
	AuditDBPath string

	// Polling
	PollInterval time.Duration
	JobTimeout   time.Duration

	// Logging
	LogFile string
	DevMode bool
}

// LoadConfig reads configuration from the environment. Call
// godotenv.Load first if a .env file should participate.
//
// Every value has a usable default: a default-constructed worker talks
// to the production horde anonymously and runs inference against a
// local KoboldCPP-style server on port 5001.
func LoadConfig() (*Config, error) {
	config := &Config{
		HordeURL:    GetEnvOrDefault("AI_HORDE_URL", "https://aihorde.net/api"),
		HordeAPIKey: GetEnvOrDefault("HORDE_API_KEY", AnonymousAPIKey),
		ClientAgent: GetEnvOrDefault("HORDE_CLIENT_AGENT", ""),

		InferenceURL:    GetEnvOrDefault("INFERENCE_URL", "http://localhost:5001/v1"),
		InferenceAPIKey: GetEnvOrDefault("INFERENCE_API_KEY", ""),
		InferenceModel:  GetEnvOrDefault("INFERENCE_MODEL", ""),

		AuditDBPath: GetEnvOrDefault("HORDE_AUDIT_DB", "horde_audit.db"),

		PollInterval: ParseDurationEnv("HORDE_POLL_INTERVAL_SECONDS", 4),
		JobTimeout:   ParseDurationEnv("HORDE_JOB_TIMEOUT_SECONDS", 1270),

		LogFile: GetEnvOrDefault("HORDE_LOG_FILE", "horde_worker.log"),
		DevMode: ParseBoolEnv("DEV_MODE", false),
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

func validateConfig(config *Config) error {
	parsed, err := url.Parse(config.HordeURL)
	if err != nil {
		return ErrInvalidHordeURL(config.HordeURL, err.Error())
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrInvalidHordeURL(config.HordeURL, "scheme must be http or https")
	}
	if parsed.Host == "" {
		return ErrInvalidHordeURL(config.HordeURL, "missing host")
	}

	if strings.TrimSpace(config.HordeAPIKey) == "" {
		return ErrMissingAPIKey("horde")
	}

	if config.PollInterval <= 0 {
		config.PollInterval = 4 * time.Second
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = 1270 * time.Second
	}
	return nil
}

// IsAnonymous reports whether the worker runs with the anonymous key.
func (c *Config) IsAnonymous() bool {
	return c.HordeAPIKey == AnonymousAPIKey
}
