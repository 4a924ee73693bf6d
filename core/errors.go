package core

import "fmt"

// ConfigError is a configuration error with an actionable instruction,
// surfaced at startup before the worker touches the network.
type ConfigError struct {
	Code    string // error code for programmatic handling
	Message string // human-readable error message
	Action  string // actionable instruction for resolution
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors.
const (
	ErrCodeEnvFileMissing   = "ENV_FILE_MISSING"
	ErrCodeInvalidHordeURL  = "INVALID_HORDE_URL"
	ErrCodeMissingAPIKey    = "MISSING_API_KEY"
	ErrCodeHordeUnreachable = "HORDE_UNREACHABLE"
	ErrCodeInvalidAuditDB   = "INVALID_AUDIT_DB"
	ErrCodeMissingConfig    = "MISSING_CONFIG"
)

// ErrEnvFileMissing returns an error for a missing .env file.
func ErrEnvFileMissing(path string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeEnvFileMissing,
		Message: fmt.Sprintf("Configuration file not found: %s", path),
		Action:  "Copy example.env to .env and configure the required values",
	}
}

// ErrInvalidHordeURL returns an error for a malformed API base URL.
func ErrInvalidHordeURL(url string, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidHordeURL,
		Message: fmt.Sprintf("Invalid AI_HORDE_URL '%s': %s", url, reason),
		Action:  "Set AI_HORDE_URL to a valid URL (e.g., https://aihorde.net/api)",
	}
}

// ErrMissingAPIKey returns an error for missing credentials. service is
// "horde" or "inference".
func ErrMissingAPIKey(service string) *ConfigError {
	var action string
	switch service {
	case "horde":
		action = "Set HORDE_API_KEY in your .env file (register at https://aihorde.net/register), or leave it unset for anonymous access"
	case "inference":
		action = "Set INFERENCE_API_KEY in your .env file if your local backend requires one"
	default:
		action = fmt.Sprintf("Set the required API key for %s in your .env file", service)
	}
	return &ConfigError{
		Code:    ErrCodeMissingAPIKey,
		Message: fmt.Sprintf("Missing authentication credentials for %s", service),
		Action:  action,
	}
}

// ErrHordeUnreachable returns an error when the API cannot be reached
// during startup validation.
func ErrHordeUnreachable(url string, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeHordeUnreachable,
		Message: fmt.Sprintf("Cannot connect to the horde at %s: %s", url, reason),
		Action:  "Check that AI_HORDE_URL is correct and your network allows outbound HTTPS",
	}
}

// ErrInvalidAuditDB returns an error when the audit store path cannot be
// opened.
func ErrInvalidAuditDB(path string, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidAuditDB,
		Message: fmt.Sprintf("Cannot open audit database at %s: %s", path, reason),
		Action:  "Set HORDE_AUDIT_DB to a writable path or remove it to disable auditing",
	}
}
