package core

// Version is the worker version, set at build time via ldflags:
//
//	go build -ldflags "-X hordesdk/core.Version=$(git describe --tags --always)" .
//
// Defaults to "dev" when not injected.
var Version = "dev"

// BuildTime is the build timestamp, set via
// -X hordesdk/core.BuildTime=...; defaults to "unknown".
var BuildTime = "unknown"

// GitCommit is the short commit hash, set via
// -X hordesdk/core.GitCommit=...; defaults to "unknown".
var GitCommit = "unknown"

// VersionInfo returns a formatted version string, e.g.
// "v1.0.0 (built 2026-08-29T10:30:00Z, commit abc1234)".
func VersionInfo() string {
	return Version + " (built " + BuildTime + ", commit " + GitCommit + ")"
}

// ClientAgent returns the Client-Agent string sent to the horde:
// name:version:contact per the API's operator guidance.
func ClientAgent() string {
	return "hordesdk-go:" + Version + ":github.com/hordesdk"
}
