// Package logging provides structured logging for the Horde SDK.
// This file contains molecule-level helpers that turn common generation
// and job attributes into ready-to-use zap.Field values.
package logging

import (
	"time"

	"go.uber.org/zap"
)

// GenerationFields creates zap fields identifying a single generation.
//
// Example:
//
//	logger.Info("state transition", logging.GenerationFields(genID, "generating")...)
func GenerationFields(generationID, state string) []zap.Field {
	return []zap.Field{
		zap.String("generation_id", generationID),
		zap.String("state", state),
	}
}

// JobFields creates zap fields identifying a remote horde job.
//
// Example:
//
//	logger.Info("job accepted", logging.JobFields(jobID, kudos)...)
func JobFields(jobID string, kudos float64) []zap.Field {
	return []zap.Field{
		zap.String("job_id", jobID),
		zap.Float64("kudos", kudos),
	}
}

// TransitionFields creates zap fields describing a state machine transition.
//
// Example:
//
//	logger.Debug("transition", logging.TransitionFields(genID, from, to)...)
func TransitionFields(generationID, from, to string) []zap.Field {
	return []zap.Field{
		zap.String("generation_id", generationID),
		zap.String("from", from),
		zap.String("to", to),
	}
}

// PollFields creates zap fields describing one round of job polling.
//
// Example:
//
//	logger.Debug("checked job", logging.PollFields(jobID, finished, expected, waitTime)...)
func PollFields(jobID string, finished, expected int, waitTime time.Duration) []zap.Field {
	return []zap.Field{
		zap.String("job_id", jobID),
		zap.Int("finished", finished),
		zap.Int("expected", expected),
		zap.Duration("wait_time", waitTime),
	}
}

// TimingFields creates zap fields for a timed operation.
//
// Example:
//
//	start := time.Now()
//	// ... generate ...
//	logger.Info("generation complete", logging.TimingFields(start, time.Now())...)
func TimingFields(startTime, endTime time.Time) []zap.Field {
	return []zap.Field{
		zap.Time("start_time", startTime),
		zap.Time("end_time", endTime),
		zap.Duration("duration", endTime.Sub(startTime)),
	}
}
