package core

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
)

// StepStatus represents the status of a validation step.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepPassed
	StepFailed
	StepWarning
	StepSkipped
)

// String returns the string representation of a step status.
func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepRunning:
		return "running"
	case StepPassed:
		return "passed"
	case StepFailed:
		return "failed"
	case StepWarning:
		return "warning"
	case StepSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// StepOutcome is what a validation step reports back.
type StepOutcome struct {
	Status  StepStatus
	Message string
	Error   error
}

// Pass returns a passing outcome with an optional message.
func Pass(message string) StepOutcome {
	return StepOutcome{Status: StepPassed, Message: message}
}

// Warn returns a warning outcome. Warnings do not fail the suite.
func Warn(message string) StepOutcome {
	return StepOutcome{Status: StepWarning, Message: message}
}

// Fail returns a failing outcome.
func Fail(message string, err error) StepOutcome {
	return StepOutcome{Status: StepFailed, Message: message, Error: err}
}

// Skip returns a skipped outcome.
func Skip(message string) StepOutcome {
	return StepOutcome{Status: StepSkipped, Message: message}
}

// StepFunc performs one validation check.
type StepFunc func() StepOutcome

// ValidationStep records a single step and its result.
type ValidationStep struct {
	Name    string
	Status  StepStatus
	Message string
	Error   error
	Latency time.Duration
}

// SuiteResult represents the complete result of a validation run.
type SuiteResult struct {
	Steps       []ValidationStep
	TotalSteps  int
	PassedSteps int
	FailedSteps int
	Warnings    int
	Duration    time.Duration
	Success     bool
}

type namedStep struct {
	name string
	fn   StepFunc
}

// ValidationSuite runs startup checks in order and prints a colored
// progress report. Checks are registered with AddStep and executed by
// Validate.
type ValidationSuite struct {
	steps        []namedStep
	output       io.Writer
	showProgress bool
}

// NewValidationSuite creates an empty suite writing to stdout.
func NewValidationSuite() *ValidationSuite {
	return &ValidationSuite{
		output:       os.Stdout,
		showProgress: true,
	}
}

// WithOutput redirects the progress report.
func (s *ValidationSuite) WithOutput(w io.Writer) *ValidationSuite {
	s.output = w
	return s
}

// WithShowProgress toggles the progress report.
func (s *ValidationSuite) WithShowProgress(show bool) *ValidationSuite {
	s.showProgress = show
	return s
}

// AddStep registers a named validation check. Steps run in
// registration order.
func (s *ValidationSuite) AddStep(name string, fn StepFunc) *ValidationSuite {
	s.steps = append(s.steps, namedStep{name: name, fn: fn})
	return s
}

// Validate runs all registered steps and returns the aggregate result.
// Failed steps do not stop the run; every check reports.
func (s *ValidationSuite) Validate() SuiteResult {
	start := time.Now()
	result := SuiteResult{TotalSteps: len(s.steps)}

	if s.showProgress {
		header := color.New(color.FgCyan, color.Bold)
		header.Fprintln(s.output, "Startup validation")
	}

	for _, step := range s.steps {
		stepStart := time.Now()
		outcome := step.fn()
		latency := time.Since(stepStart)

		record := ValidationStep{
			Name:    step.name,
			Status:  outcome.Status,
			Message: outcome.Message,
			Error:   outcome.Error,
			Latency: latency,
		}
		result.Steps = append(result.Steps, record)

		switch outcome.Status {
		case StepPassed:
			result.PassedSteps++
		case StepFailed:
			result.FailedSteps++
		case StepWarning:
			result.Warnings++
		}

		if s.showProgress {
			s.printStep(record)
		}
	}

	result.Duration = time.Since(start)
	result.Success = result.FailedSteps == 0

	if s.showProgress {
		s.printSummary(result)
	}

	return result
}

func (s *ValidationSuite) printStep(step ValidationStep) {
	var mark string
	var clr *color.Color

	switch step.Status {
	case StepPassed:
		mark = "✓"
		clr = color.New(color.FgGreen)
	case StepFailed:
		mark = "✗"
		clr = color.New(color.FgRed)
	case StepWarning:
		mark = "!"
		clr = color.New(color.FgYellow)
	case StepSkipped:
		mark = "-"
		clr = color.New(color.FgHiBlack)
	default:
		mark = "?"
		clr = color.New(color.FgWhite)
	}

	clr.Fprintf(s.output, "  %s %s", mark, step.Name)
	if step.Message != "" {
		color.New(color.FgHiBlack).Fprintf(s.output, "  %s", step.Message)
	}
	if step.Error != nil {
		color.New(color.FgRed).Fprintf(s.output, "  %v", step.Error)
	}
	fmt.Fprintln(s.output)
}

func (s *ValidationSuite) printSummary(result SuiteResult) {
	if result.Success {
		color.New(color.FgGreen, color.Bold).Fprint(s.output, "Validation passed ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d/%d checks in %v)\n",
			result.PassedSteps, result.TotalSteps, result.Duration.Round(time.Millisecond))
	} else {
		color.New(color.FgRed, color.Bold).Fprint(s.output, "Validation failed ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d passed, %d failed)\n",
			result.PassedSteps, result.FailedSteps)
	}
}
