package logging

import (
	"regexp"
	"strings"
)

// RedactedPlaceholder is the string used to replace sensitive data
const RedactedPlaceholder = "[REDACTED]"

// sensitivePatterns contains compiled regex patterns for detecting sensitive
// data. Compiled once at package initialization.
//
// Horde API keys are 22-character url-safe base64 strings sent in the
// `apikey` header. Shared keys look the same. The anonymous key
// ("0000000000") is deliberately not matched - it carries no privilege.
var sensitivePatterns = []*regexp.Regexp{
	// apikey header assignments: apikey=..., apikey: ...
	regexp.MustCompile(`(?i)(apikey\s*[:=]\s*[a-zA-Z0-9_-]{10,})`),
	regexp.MustCompile(`(?i)(api_key\s*[:=]\s*[^\s,;]{8,})`),

	// Shared key identifiers passed as query/body values
	regexp.MustCompile(`(?i)(sharedkey\s*[:=]\s*[a-zA-Z0-9_-]{10,})`),

	// Bearer tokens (proxied horde deployments sometimes front with OAuth)
	regexp.MustCompile(`(?i)(bearer\s+[a-zA-Z0-9._-]{20,})`),

	// OpenAI-style keys used by local inference backends (sk-..., sk-proj-...)
	regexp.MustCompile(`(?i)(sk-[a-zA-Z0-9_-]{20,})`),

	// Generic secret patterns
	regexp.MustCompile(`(?i)(password\s*[:=]\s*[^\s,;]{8,})`),
	regexp.MustCompile(`(?i)(secret\s*[:=]\s*[^\s,;]{8,})`),
	regexp.MustCompile(`(?i)(token\s*[:=]\s*[^\s,;]{8,})`),
}

// sensitiveFieldNames are field/env var name fragments that indicate
// sensitive data regardless of the value.
var sensitiveFieldNames = []string{
	"HORDE_API_KEY",
	"AI_HORDE_API_KEY",
	"SHARED_KEY",
	"INFERENCE_API_KEY",
	"PASSWORD",
	"SECRET",
	"TOKEN",
	"API_KEY",
	"APIKEY",
}

// RedactSensitiveData scans a string value and redacts any detected
// sensitive data. This is a pure function.
//
// Example:
//
//	input := "submitting with apikey=aGVsbG8gd29ybGQhISEh"
//	output := RedactSensitiveData(input)
//	// output: "submitting with [REDACTED]"
func RedactSensitiveData(value string) string {
	if value == "" {
		return value
	}

	result := value
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, RedactedPlaceholder)
	}
	return result
}

// RedactField redacts a field value if the field name indicates sensitive
// data, and otherwise scans the value itself.
//
// Example:
//
//	RedactField("HORDE_API_KEY", "aGVsbG8...")  // "[REDACTED]"
//	RedactField("worker_name", "my-worker")     // "my-worker"
func RedactField(fieldName, fieldValue string) string {
	upperName := strings.ToUpper(fieldName)

	for _, fragment := range sensitiveFieldNames {
		if strings.Contains(upperName, fragment) {
			return RedactedPlaceholder
		}
	}

	return RedactSensitiveData(fieldValue)
}

// IsSensitiveField returns true if the field name indicates sensitive data.
// Only the name is checked, not the value.
func IsSensitiveField(fieldName string) bool {
	upperName := strings.ToUpper(fieldName)

	for _, fragment := range sensitiveFieldNames {
		if strings.Contains(upperName, fragment) {
			return true
		}
	}
	return false
}

// ContainsSensitiveData returns true if the value matches any sensitive
// data pattern.
func ContainsSensitiveData(value string) bool {
	if value == "" {
		return false
	}

	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}
