package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"hordesdk/core"
	"hordesdk/db"
	"hordesdk/hordeapi"
	"hordesdk/inference"
	"hordesdk/logging"
	"hordesdk/shutdown"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/kardianos/service"
	"go.uber.org/zap"
)

func main() {
	if handled, code := HandleServiceCommand(os.Args[1:]); handled {
		os.Exit(code)
	}

	if !service.Interactive() {
		os.Exit(RunAsService())
	}

	os.Exit(runWorker(context.Background()))
}

// runWorker is the whole worker lifecycle: configuration, validation,
// the job loop, and graceful shutdown. Returns the process exit code.
func runWorker(parent context.Context) int {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Use fmt here since logger isn't initialized yet
		fmt.Printf("Note: no .env file loaded: %v\n", err)
	}

	config, err := core.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return core.ExitCodeError
	}
	if config.ClientAgent == "" {
		config.ClientAgent = core.ClientAgent()
	}

	logger, err := logging.NewLogger(config.DevMode, config.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return core.ExitCodeError
	}
	defer logger.Sync()

	color.New(color.FgCyan, color.Bold).Printf("%s %s\n", serviceDisplayName, core.VersionInfo())

	jobsPath := core.GetEnvOrDefault("HORDE_JOBS_FILE", "jobs.yaml")
	workerConfig, jobsErr := LoadWorkerConfig(jobsPath)

	client := hordeapi.NewClient(hordeapi.ClientConfig{
		BaseURL:     config.HordeURL,
		APIKey:      config.HordeAPIKey,
		ClientAgent: config.ClientAgent,
		Logger:      logger,
	})

	if code := runStartupValidation(config, client, jobsPath, jobsErr, len(workerConfig.Jobs)); code != core.ExitCodeSuccess {
		return code
	}

	logger.Infow("configuration loaded",
		"horde_url", config.HordeURL,
		"anonymous", config.IsAnonymous(),
		"poll_interval", config.PollInterval.String(),
		"job_timeout", config.JobTimeout.String(),
		"jobs", len(workerConfig.Jobs),
		"audit_db", config.AuditDBPath,
		"dev_mode", config.DevMode,
	)

	manager := shutdown.NewManager(logger, 60*time.Second)

	// Audit store is optional; an empty path disables it
	var repo *db.Repository
	if config.AuditDBPath != "" {
		store, err := db.NewDatabase(config.AuditDBPath)
		if err != nil {
			logger.Error("failed to open audit store", zap.Error(err))
			return core.ExitCodeError
		}

		var writer *db.AsyncWriter
		repo, writer = db.NewAsyncRepository(store, db.DefaultAsyncWriterConfig())

		manager.Register("audit-writer", 20, func(ctx context.Context) error {
			return writer.Stop()
		})
		manager.Register("audit-db", 25, func(ctx context.Context) error {
			return store.Close()
		})

		if workerConfig.RetentionDays > 0 {
			result, err := store.CleanupWithContext(parent, workerConfig.RetentionDays)
			if err != nil {
				logger.Warnw("audit retention cleanup failed", "error", err.Error())
			} else if result.TotalDeleted > 0 {
				logger.Infow("audit retention cleanup",
					"deleted", result.TotalDeleted, "duration", result.Duration.String())
			}
		}
	}

	var provider inference.Provider
	if config.InferenceModel != "" {
		providerConfig := inference.DefaultOpenAIProviderConfig()
		providerConfig.BaseURL = config.InferenceURL
		providerConfig.APIKey = config.InferenceAPIKey
		providerConfig.Model = config.InferenceModel

		provider, err = inference.NewOpenAIProvider(providerConfig)
		if err != nil {
			logger.Error("failed to configure inference provider", zap.Error(err))
			return core.ExitCodeError
		}
	}

	loop, err := NewWorkerLoop(WorkerLoopConfig{
		Config:   config,
		Jobs:     workerConfig,
		Client:   client,
		Provider: provider,
		Repo:     repo,
		Tracker:  manager.Tracker(),
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to build worker loop", zap.Error(err))
		return core.ExitCodeError
	}

	manager.Start()
	go func() {
		if err := loop.Run(manager.Context()); err != nil && manager.Context().Err() == nil {
			logger.Error("worker loop finished with errors", zap.Error(err))
		}
		manager.Trigger()
	}()

	// Shut down when the loop finishes, a signal arrives, or the
	// service manager cancels us
	select {
	case <-manager.Context().Done():
	case <-parent.Done():
		manager.Trigger()
		<-manager.Context().Done()
	}

	code := manager.Shutdown()
	logger.Infow("worker stopped", "exit_code", code, "exit", core.ExitCodeName(code))
	return code
}

// runStartupValidation checks the environment before any job runs:
// the job file parses, the horde answers, and (when configured) the
// audit directory is writable.
func runStartupValidation(config *core.Config, client *hordeapi.Client, jobsPath string, jobsErr error, jobCount int) int {
	suite := core.NewValidationSuite()

	suite.AddStep("job file", func() core.StepOutcome {
		if jobsErr != nil {
			if errors.Is(jobsErr, os.ErrNotExist) {
				return core.Warn(fmt.Sprintf("%s not found, nothing to run", jobsPath))
			}
			return core.Fail(jobsPath, jobsErr)
		}
		return core.Pass(fmt.Sprintf("%d jobs from %s", jobCount, jobsPath))
	})

	suite.AddStep("horde api", func() core.StepOutcome {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		resp, err := client.Submit(ctx, &hordeapi.HeartbeatRequest{})
		if err != nil {
			return core.Fail(config.HordeURL, core.ErrHordeUnreachable(config.HordeURL, err.Error()))
		}
		if reqErr, ok := hordeapi.IsRequestError(resp); ok {
			return core.Fail(config.HordeURL, reqErr)
		}
		return core.Pass(config.HordeURL)
	})

	suite.AddStep("api key", func() core.StepOutcome {
		if config.IsAnonymous() {
			return core.Warn("anonymous key, jobs get lowest queue priority")
		}
		return core.Pass("")
	})

	suite.AddStep("audit store", func() core.StepOutcome {
		if config.AuditDBPath == "" {
			return core.Skip("auditing disabled")
		}
		return core.Pass(config.AuditDBPath)
	})

	suite.AddStep("inference endpoint", func() core.StepOutcome {
		if config.InferenceModel == "" {
			return core.Skip("no local inference model configured")
		}
		return core.Pass(fmt.Sprintf("%s (%s)", config.InferenceURL, config.InferenceModel))
	})

	result := suite.Validate()
	if !result.Success {
		return core.ExitCodeError
	}
	return core.ExitCodeSuccess
}
