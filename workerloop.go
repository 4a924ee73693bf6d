package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"hordesdk/core"
	"hordesdk/db"
	"hordesdk/generation"
	"hordesdk/hordeapi"
	"hordesdk/inference"
	"hordesdk/logging"
	"hordesdk/postprocess"
	"hordesdk/shutdown"
)

// WorkerLoop runs the job file: each job becomes a generation tracked
// by the state machine, submitted to the horde (or the local inference
// endpoint) inside its own session, post-processed, written to the
// output directory, and recorded in the audit store.
type WorkerLoop struct {
	config     *core.Config
	jobs       WorkerConfig
	client     *hordeapi.Client
	provider   inference.Provider
	downloader *inference.Downloader
	processor  *postprocess.Processor
	repo       *db.Repository
	tracker    *shutdown.GenerationTracker
	logger     *logging.Logger
	poll       hordeapi.PollConfig
}

// WorkerLoopConfig holds the worker loop's collaborators. Client,
// config, and logger are required; the rest are optional and disable
// the matching feature when nil.
type WorkerLoopConfig struct {
	Config   *core.Config
	Jobs     WorkerConfig
	Client   *hordeapi.Client
	Provider inference.Provider
	Repo     *db.Repository
	Tracker  *shutdown.GenerationTracker
	Logger   *logging.Logger
}

// NewWorkerLoop creates a worker loop.
func NewWorkerLoop(config WorkerLoopConfig) (*WorkerLoop, error) {
	if config.Config == nil {
		return nil, fmt.Errorf("worker loop requires a config")
	}
	if config.Client == nil {
		return nil, fmt.Errorf("worker loop requires a horde client")
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	poll := hordeapi.DefaultPollConfig()
	if config.Config.PollInterval > 0 {
		poll.Interval = config.Config.PollInterval
	}
	if config.Config.JobTimeout > 0 {
		poll.Timeout = config.Config.JobTimeout
	}

	return &WorkerLoop{
		config:     config.Config,
		jobs:       config.Jobs,
		client:     config.Client,
		provider:   config.Provider,
		downloader: inference.NewDownloader(inference.DefaultDownloaderConfig()),
		processor:  postprocess.NewProcessor(postprocess.DefaultProcessorConfig()),
		repo:       config.Repo,
		tracker:    config.Tracker,
		logger:     logger.Named("worker"),
		poll:       poll,
	}, nil
}

// Run executes all jobs in order, stopping when ctx is cancelled.
// Individual job failures are recorded and logged but do not stop the
// remaining jobs.
func (w *WorkerLoop) Run(ctx context.Context) error {
	if len(w.jobs.Jobs) == 0 {
		w.logger.Warnw("job file contains no jobs, nothing to do")
		return nil
	}

	if err := os.MkdirAll(w.jobs.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var failed int
	for i, spec := range w.jobs.Jobs {
		select {
		case <-ctx.Done():
			w.logger.Infow("run cancelled, skipping remaining jobs",
				"completed", i, "remaining", len(w.jobs.Jobs)-i)
			return ctx.Err()
		default:
		}

		w.logger.Infow("starting job", "job", spec.Name, "kind", spec.Kind)
		if err := w.runJob(ctx, spec); err != nil {
			failed++
			w.logger.Errorw("job failed", "job", spec.Name, "error", err.Error())
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(w.jobs.Jobs))
	}
	return nil
}

func (w *WorkerLoop) runJob(ctx context.Context, spec JobSpec) error {
	if w.tracker != nil {
		if !w.tracker.Begin() {
			return fmt.Errorf("worker is draining, job not started")
		}
		defer w.tracker.Finish()
	}

	switch spec.Kind {
	case "image":
		return w.runImageJob(ctx, spec)
	case "text":
		return w.runTextJob(ctx, spec)
	case "alchemy":
		return w.runAlchemyJob(ctx, spec)
	default:
		return fmt.Errorf("unknown job kind %q", spec.Kind)
	}
}

// runImageJob drives an image generation: remote generation on the
// horde, local post-processing, a safety pass over the censor flags,
// and submission to the output directory.
func (w *WorkerLoop) runImageJob(ctx context.Context, spec JobSpec) error {
	n := spec.N
	if n <= 0 {
		n = 1
	}

	gen, err := generation.NewImageGeneration(
		generation.WithBatchSize(n),
		generation.WithLogger(w.logger),
	)
	if err != nil {
		return err
	}
	started := time.Now()

	session := hordeapi.NewSession(w.client)
	defer w.closeSession(ctx, session)

	req := &hordeapi.ImageGenerateAsyncRequest{
		Prompt: spec.Prompt,
		Models: spec.Models,
		Params: &hordeapi.ImageGenerationParams{
			Width:  spec.Width,
			Height: spec.Height,
			Steps:  spec.Steps,
			N:      n,
		},
	}

	if err := gen.OnGenerating(); err != nil {
		return err
	}

	accepted, kudos, jobID, err := submitAsync(w, ctx, session, gen, req)
	if err != nil {
		return failGeneration(w, ctx, gen, spec, started, jobID, "job submission failed", err)
	}

	final, err := session.AwaitJobCompletion(ctx, accepted, n, w.poll)
	if err != nil {
		return failGeneration(w, ctx, gen, spec, started, jobID, "job did not complete", err)
	}
	status := final.(*hordeapi.ImageGenerateStatusResponse)

	results, censored, fetchErr := w.collectImageResults(ctx, status)
	if fetchErr != nil {
		return failGeneration(w, ctx, gen, spec, started, jobID, "failed to fetch results", fetchErr)
	}
	if err := gen.SetWorkResults(results); err != nil {
		return err
	}
	if err := gen.OnGenerationWorkComplete(); err != nil {
		return err
	}

	// Local post-processing pass
	if err := gen.OnPostProcessing(); err != nil {
		return err
	}
	processed := make([]*postprocess.ProcessResult, 0, len(results))
	for _, result := range results {
		proc, err := w.processor.Process(result.Image)
		if err != nil {
			return failGeneration(w, ctx, gen, spec, started, jobID, "post-processing failed", err)
		}
		processed = append(processed, proc)
	}
	if err := gen.OnPostProcessingComplete(); err != nil {
		return err
	}

	// Safety pass over the server-side censor flags
	if err := gen.OnSafetyChecking(); err != nil {
		return err
	}
	if err := gen.OnSafetyCheckComplete(censored, false); err != nil {
		return err
	}

	if err := gen.OnSubmitting(); err != nil {
		return err
	}
	for i, proc := range processed {
		name := fmt.Sprintf("%s-%d.%s", jobName(spec, gen.ID().String()), i, proc.Format)
		if err := os.WriteFile(filepath.Join(w.jobs.OutputDir, name), proc.Data, 0644); err != nil {
			return failGeneration(w, ctx, gen, spec, started, jobID, "failed to write output", err)
		}
	}
	if err := gen.OnSubmitComplete(); err != nil {
		return err
	}

	w.recordOutcome(ctx, gen.ID().String(), string(jobID), spec, gen.Progress(),
		gen.FailureCount(), "", kudos+status.Kudos, len(results), started, gen.History(), modelOf(status))
	w.logger.Infow("image job complete",
		"job", spec.Name, "results", len(results), "kudos", kudos+status.Kudos)
	return nil
}

// runTextJob drives a text generation, either on the horde or against
// the local inference endpoint.
func (w *WorkerLoop) runTextJob(ctx context.Context, spec JobSpec) error {
	gen, err := generation.NewTextGeneration(generation.WithLogger(w.logger))
	if err != nil {
		return err
	}
	started := time.Now()

	if spec.LocalInference {
		return w.runLocalTextJob(ctx, spec, gen, started)
	}

	session := hordeapi.NewSession(w.client)
	defer w.closeSession(ctx, session)

	req := &hordeapi.TextGenerateAsyncRequest{
		Prompt: spec.Prompt,
		Models: spec.Models,
	}
	if spec.MaxTokens > 0 {
		req.Params = &hordeapi.TextGenerationParams{MaxLength: spec.MaxTokens}
	}

	if err := gen.OnGenerating(); err != nil {
		return err
	}

	accepted, kudos, jobID, err := submitAsync(w, ctx, session, gen, req)
	if err != nil {
		return failGeneration(w, ctx, gen, spec, started, jobID, "job submission failed", err)
	}

	final, err := session.AwaitJobCompletion(ctx, accepted, req.ExpectedResultCount(), w.poll)
	if err != nil {
		return failGeneration(w, ctx, gen, spec, started, jobID, "job did not complete", err)
	}
	status := final.(*hordeapi.TextGenerateStatusResponse)

	results := make([]generation.TextResult, 0, len(status.Generations))
	var model string
	for _, g := range status.Generations {
		results = append(results, generation.TextResult{Text: g.Text})
		model = g.Model
	}
	if err := gen.SetWorkResults(results); err != nil {
		return err
	}
	if err := gen.OnGenerationWorkComplete(); err != nil {
		return err
	}

	if err := w.submitTextResults(gen, spec, results); err != nil {
		return failGeneration(w, ctx, gen, spec, started, jobID, "failed to write output", err)
	}

	w.recordOutcome(ctx, gen.ID().String(), string(jobID), spec, gen.Progress(),
		gen.FailureCount(), "", kudos+status.Kudos, len(results), started, gen.History(), model)
	w.logger.Infow("text job complete", "job", spec.Name, "results", len(results))
	return nil
}

// runLocalTextJob serves a text job from the local inference endpoint.
// No session is involved; the whole lifecycle is local.
func (w *WorkerLoop) runLocalTextJob(ctx context.Context, spec JobSpec, gen *generation.TextGeneration, started time.Time) error {
	if w.provider == nil {
		return fmt.Errorf("local inference requested but no provider configured")
	}

	// Model load happens on the inference server's side on first use
	if err := gen.OnPreloading(); err != nil {
		return err
	}
	if err := gen.OnPreloadingComplete(); err != nil {
		return err
	}
	if err := gen.OnGenerating(); err != nil {
		return err
	}

	text, err := w.provider.Complete(ctx, spec.Prompt)
	if err != nil {
		return failGeneration(w, ctx, gen, spec, started, "", "local inference failed", err)
	}

	results := []generation.TextResult{{Text: text}}
	if err := gen.SetWorkResults(results); err != nil {
		return err
	}
	if err := gen.OnGenerationWorkComplete(); err != nil {
		return err
	}

	if err := w.submitTextResults(gen, spec, results); err != nil {
		return failGeneration(w, ctx, gen, spec, started, "", "failed to write output", err)
	}

	w.recordOutcome(ctx, gen.ID().String(), "", spec, gen.Progress(),
		gen.FailureCount(), "", 0, 1, started, gen.History(), w.provider.Model())
	w.logger.Infow("local text job complete", "job", spec.Name, "model", w.provider.Model())
	return nil
}

// runAlchemyJob drives an alchemy job: fetch the source image, run the
// requested forms on the horde, and write the outputs.
func (w *WorkerLoop) runAlchemyJob(ctx context.Context, spec JobSpec) error {
	gen, err := generation.NewAlchemyGeneration(
		generation.WithBatchSize(len(spec.Forms)),
		generation.WithLogger(w.logger),
	)
	if err != nil {
		return err
	}
	started := time.Now()

	source, err := w.downloader.Download(ctx, spec.SourceImageURL)
	if err != nil {
		return failGeneration(w, ctx, gen, spec, started, "", "failed to fetch source image", err)
	}

	session := hordeapi.NewSession(w.client)
	defer w.closeSession(ctx, session)

	forms := make([]hordeapi.AlchemyForm, 0, len(spec.Forms))
	for _, form := range spec.Forms {
		forms = append(forms, hordeapi.AlchemyForm{Name: form})
	}
	req := &hordeapi.AlchemyAsyncRequest{
		Forms:       forms,
		SourceImage: base64.StdEncoding.EncodeToString(source.Data),
	}

	// Alchemy is pure post-processing work, no generation phase
	if err := gen.OnPostProcessing(); err != nil {
		return err
	}

	accepted, _, jobID, err := submitAsync(w, ctx, session, gen, req)
	if err != nil {
		return failGeneration(w, ctx, gen, spec, started, jobID, "job submission failed", err)
	}

	final, err := session.AwaitJobCompletion(ctx, accepted, len(spec.Forms), w.poll)
	if err != nil {
		return failGeneration(w, ctx, gen, spec, started, jobID, "job did not complete", err)
	}
	status := final.(*hordeapi.AlchemyStatusResponse)

	results, err := w.collectAlchemyResults(ctx, status)
	if err != nil {
		return failGeneration(w, ctx, gen, spec, started, jobID, "failed to fetch results", err)
	}
	if err := gen.SetWorkResults(results); err != nil {
		return err
	}
	if err := gen.OnPostProcessingComplete(); err != nil {
		return err
	}

	if err := gen.OnSubmitting(); err != nil {
		return err
	}
	for i, result := range results {
		base := fmt.Sprintf("%s-%d", jobName(spec, gen.ID().String()), i)
		if result.Image != nil {
			if err := os.WriteFile(filepath.Join(w.jobs.OutputDir, base+".webp"), result.Image, 0644); err != nil {
				return failGeneration(w, ctx, gen, spec, started, jobID, "failed to write output", err)
			}
		}
		if result.Caption != "" {
			if err := os.WriteFile(filepath.Join(w.jobs.OutputDir, base+".txt"), []byte(result.Caption), 0644); err != nil {
				return failGeneration(w, ctx, gen, spec, started, jobID, "failed to write output", err)
			}
		}
	}
	if err := gen.OnSubmitComplete(); err != nil {
		return err
	}

	w.recordOutcome(ctx, gen.ID().String(), string(jobID), spec, gen.Progress(),
		gen.FailureCount(), "", 0, len(results), started, gen.History(), "")
	w.logger.Infow("alchemy job complete", "job", spec.Name, "forms", len(results))
	return nil
}

// submitAsync submits an async request through the session, retrying
// transient failures via the generation's error round trip: each failure
// records an error, then steps back into the state that failed. The
// per-state error limit refuses the step once the budget is spent, which
// bounds the loop.
func submitAsync[T any](
	w *WorkerLoop,
	ctx context.Context,
	session *hordeapi.Session,
	gen *generation.SingleGeneration[T],
	req hordeapi.Request,
) (hordeapi.FollowUpRequired, float64, hordeapi.JobID, error) {
	for {
		resp, err := session.Submit(ctx, req)
		if err == nil {
			if reqErr, ok := hordeapi.IsRequestError(resp); ok {
				// API rejections do not improve on retry
				return nil, 0, "", reqErr
			}
			accepted, ok := resp.(hordeapi.FollowUpRequired)
			if !ok {
				return nil, 0, "", fmt.Errorf("unexpected response type %T", resp)
			}
			var kudos float64
			switch ack := resp.(type) {
			case *hordeapi.ImageGenerateAsyncResponse:
				kudos = ack.Kudos
			case *hordeapi.TextGenerateAsyncResponse:
				kudos = ack.Kudos
			}
			return accepted, kudos, accepted.FollowUpJobID(), nil
		}

		if ctx.Err() != nil {
			return nil, 0, "", err
		}

		retryState := gen.Progress()
		if stepErr := gen.OnError("job submission failed", err); stepErr != nil {
			return nil, 0, "", err
		}
		if stepErr := gen.Step(retryState); stepErr != nil {
			// Error budget for the state is spent; stop retrying
			return nil, 0, "", err
		}
		w.logger.Warnw("submission failed, retrying",
			"error", err.Error(), "failures", gen.FailureCount())
		select {
		case <-ctx.Done():
			return nil, 0, "", ctx.Err()
		case <-time.After(w.poll.Interval):
		}
	}
}

// collectImageResults converts finished generations into result
// payloads, downloading R2-delivered images.
func (w *WorkerLoop) collectImageResults(ctx context.Context, status *hordeapi.ImageGenerateStatusResponse) ([]generation.ImageResult, bool, error) {
	results := make([]generation.ImageResult, 0, len(status.Generations))
	censored := false

	for _, g := range status.Generations {
		if g.Censored {
			censored = true
		}

		var data []byte
		if strings.HasPrefix(g.Img, "http://") || strings.HasPrefix(g.Img, "https://") {
			downloaded, err := w.downloader.Download(ctx, g.Img)
			if err != nil {
				return nil, censored, err
			}
			data = downloaded.Data
		} else {
			decoded, err := base64.StdEncoding.DecodeString(g.Img)
			if err != nil {
				return nil, censored, fmt.Errorf("failed to decode image payload: %w", err)
			}
			data = decoded
		}

		seed, _ := strconv.ParseInt(g.Seed, 10, 64)
		results = append(results, generation.ImageResult{Image: data, Seed: seed})
	}

	return results, censored, nil
}

// collectAlchemyResults converts finished forms into result payloads.
func (w *WorkerLoop) collectAlchemyResults(ctx context.Context, status *hordeapi.AlchemyStatusResponse) ([]generation.AlchemyResult, error) {
	results := make([]generation.AlchemyResult, 0, len(status.Forms))

	for _, form := range status.Forms {
		if form.State != "done" {
			continue
		}

		var result generation.AlchemyResult
		if caption, ok := form.Result["caption"].(string); ok {
			result.Caption = caption
		}
		if interrogation, ok := form.Result["interrogation"].(string); ok {
			result.Caption = interrogation
		}
		if imgURL, ok := form.Result[form.Form].(string); ok && strings.HasPrefix(imgURL, "http") {
			downloaded, err := w.downloader.Download(ctx, imgURL)
			if err != nil {
				return nil, err
			}
			result.Image = downloaded.Data
		}
		results = append(results, result)
	}

	return results, nil
}

// submitTextResults writes text outputs to the output directory,
// walking the submit phase of the state machine.
func (w *WorkerLoop) submitTextResults(gen *generation.TextGeneration, spec JobSpec, results []generation.TextResult) error {
	if err := gen.OnSubmitting(); err != nil {
		return err
	}
	for i, result := range results {
		name := fmt.Sprintf("%s-%d.txt", jobName(spec, gen.ID().String()), i)
		if err := os.WriteFile(filepath.Join(w.jobs.OutputDir, name), []byte(result.Text), 0644); err != nil {
			return err
		}
	}
	return gen.OnSubmitComplete()
}

// failGeneration walks a generation to reported_failed and records the
// outcome. Returns the original cause. A free function because Go
// methods cannot take type parameters.
func failGeneration[T any](
	w *WorkerLoop,
	ctx context.Context,
	gen *generation.SingleGeneration[T],
	spec JobSpec,
	started time.Time,
	jobID hordeapi.JobID,
	message string,
	cause error,
) error {
	if !gen.Progress().IsTerminal() {
		if gen.Progress() != generation.ProgressError {
			// Best effort: the state machine may refuse if the failure
			// happened mid-bookkeeping
			_ = gen.OnError(message, cause)
		}
		_ = gen.OnAbort(message, cause)
		_ = gen.Step(generation.ProgressReportedFailed)
	}

	w.recordOutcome(ctx, gen.ID().String(), string(jobID), spec, gen.Progress(),
		gen.FailureCount(), cause.Error(), 0, 0, started, gen.History(), "")
	return fmt.Errorf("%s: %w", message, cause)
}

// recordOutcome writes the audit record and per-transition events.
// Auditing is best effort; failures are logged, never propagated.
func (w *WorkerLoop) recordOutcome(
	ctx context.Context,
	generationID, jobID string,
	spec JobSpec,
	finalState generation.Progress,
	failureCount int,
	errorDetail string,
	kudos float64,
	resultCount int,
	started time.Time,
	history []generation.ProgressEntry,
	model string,
) {
	if w.repo == nil {
		return
	}

	_, err := w.repo.InsertGeneration(ctx, db.GenerationRecord{
		GenerationID: generationID,
		JobID:        jobID,
		Kind:         spec.Kind,
		Model:        model,
		FinalState:   string(finalState),
		FailureCount: failureCount,
		ErrorDetail:  errorDetail,
		Kudos:        kudos,
		ResultCount:  resultCount,
		DurationMS:   int(time.Since(started).Milliseconds()),
	})
	if err != nil {
		w.logger.Warnw("failed to record generation", "error", err.Error())
	}

	for _, entry := range history {
		if _, err := w.repo.InsertGenerationEvent(ctx, db.GenerationEvent{
			GenerationID: generationID,
			State:        string(entry.State),
		}); err != nil {
			w.logger.Warnw("failed to record generation event", "error", err.Error())
			break
		}
	}
}

// closeSession closes a job session, cancelling any still-pending
// follow-ups server-side even when the run context is gone.
func (w *WorkerLoop) closeSession(ctx context.Context, session *hordeapi.Session) {
	if err := session.Close(context.WithoutCancel(ctx), ctx.Err()); err != nil {
		w.logger.Warnw("session cleanup incomplete", "error", err.Error())
	}
}

// modelOf returns the model that served the first generation, if any.
func modelOf(status *hordeapi.ImageGenerateStatusResponse) string {
	if len(status.Generations) > 0 {
		return status.Generations[0].Model
	}
	return ""
}

// jobName builds a filesystem-safe base name for output files.
func jobName(spec JobSpec, generationID string) string {
	name := spec.Name
	if name == "" {
		name = generationID
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, name)
}
