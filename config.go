// Package main runs the horde bridge worker: it reads a job file,
// drives each job through the generation state machine against the
// horde API, and records the outcome in the local audit store.
package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// JobSpec describes one generation job from the job file.
type JobSpec struct {
	// Name labels the job in logs and output files
	Name string `yaml:"name"`

	// Kind is the generation kind: image, text, or alchemy
	Kind string `yaml:"kind"`

	// Prompt is the generation prompt (image and text kinds)
	Prompt string `yaml:"prompt"`

	// Models restricts which models may serve the job
	Models []string `yaml:"models,omitempty"`

	// Image parameters
	Width  int `yaml:"width,omitempty"`
	Height int `yaml:"height,omitempty"`
	Steps  int `yaml:"steps,omitempty"`
	N      int `yaml:"n,omitempty"`

	// MaxTokens caps text completions
	MaxTokens int `yaml:"max_tokens,omitempty"`

	// LocalInference serves a text job from the local inference
	// endpoint instead of the horde
	LocalInference bool `yaml:"local_inference,omitempty"`

	// Alchemy parameters
	SourceImageURL string   `yaml:"source_image_url,omitempty"`
	Forms          []string `yaml:"forms,omitempty"`
}

// WorkerConfig is the job file schema.
type WorkerConfig struct {
	// OutputDir receives generated results
	OutputDir string `yaml:"output_dir"`

	// RetentionDays bounds how long audit records are kept; 0 disables cleanup
	RetentionDays int `yaml:"retention_days"`

	// Jobs run in order
	Jobs []JobSpec `yaml:"jobs"`
}

// DefaultWorkerConfig returns the config used when no job file exists.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		OutputDir:     "output",
		RetentionDays: 30,
	}
}

// LoadWorkerConfig reads and validates a YAML job file.
func LoadWorkerConfig(path string) (WorkerConfig, error) {
	config := DefaultWorkerConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("failed to read job file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse job file %s: %w", path, err)
	}

	if config.OutputDir == "" {
		config.OutputDir = "output"
	}

	for i, job := range config.Jobs {
		if err := validateJobSpec(job); err != nil {
			return config, fmt.Errorf("job %d (%s): %w", i, job.Name, err)
		}
	}

	return config, nil
}

func validateJobSpec(job JobSpec) error {
	switch job.Kind {
	case "image", "text":
		if job.Prompt == "" {
			return fmt.Errorf("prompt is required for %s jobs", job.Kind)
		}
	case "alchemy":
		if job.SourceImageURL == "" {
			return fmt.Errorf("source_image_url is required for alchemy jobs")
		}
		if len(job.Forms) == 0 {
			return fmt.Errorf("at least one form is required for alchemy jobs")
		}
	case "":
		return fmt.Errorf("kind is required")
	default:
		return fmt.Errorf("unknown kind %q", job.Kind)
	}
	return nil
}
