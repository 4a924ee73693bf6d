// Package inference provides local text inference used to serve the
// generating phase of text jobs: an OpenAI-compatible provider for
// KoboldCPP/Aphrodite-style servers, and a downloader for fetching
// source images referenced by alchemy jobs.
package inference

import "context"

// Provider is the interface for text inference backends.
// Each backend (OpenAI-compatible local server, hosted API) implements
// this interface so the worker loop can swap inference engines.
type Provider interface {
	// Complete produces a completion for the given prompt.
	//
	// The context can be used for cancellation and timeout control.
	Complete(ctx context.Context, prompt string) (string, error)

	// Model returns the model name the provider serves.
	Model() string
}
