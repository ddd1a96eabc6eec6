package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"clipscribe/internal/core/domain"
	"clipscribe/internal/core/ports"
	"clipscribe/internal/logging"
	"clipscribe/internal/metrics"
	"clipscribe/internal/tracing"
	"clipscribe/internal/workspace"
)

// Config tunes a pipeline run.
type Config struct {
	BrowserProfile    string
	DownloadTimeout   time.Duration
	ExtractTimeout    time.Duration
	TranscribeTimeout time.Duration
	// MaxConcurrentRuns caps runs executing at once. 0 disables the cap.
	MaxConcurrentRuns int
}

// Orchestrator coordinates the download, extract, transcribe workflow.
type Orchestrator struct {
	cfg         Config
	namer       *workspace.Namer
	fetcher     ports.VideoFetcher
	extractor   ports.AudioExtractor
	transcriber *Transcriber
	metrics     *metrics.Pipeline
	tracer      trace.Tracer
	logger      zerolog.Logger
	validate    *validator.Validate
	slots       *semaphore.Weighted
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(
	cfg Config,
	namer *workspace.Namer,
	fetcher ports.VideoFetcher,
	extractor ports.AudioExtractor,
	transcriber *Transcriber,
	m *metrics.Pipeline,
	logger zerolog.Logger,
) *Orchestrator {
	o := &Orchestrator{
		cfg:         cfg,
		namer:       namer,
		fetcher:     fetcher,
		extractor:   extractor,
		transcriber: transcriber,
		metrics:     m,
		tracer:      tracing.Tracer(),
		logger:      logging.WithComponent(logger, "orchestrator"),
		validate:    validator.New(),
	}
	if o.metrics == nil {
		o.metrics = metrics.NewPipeline(nil)
	}
	if cfg.MaxConcurrentRuns > 0 {
		o.slots = semaphore.NewWeighted(int64(cfg.MaxConcurrentRuns))
	}
	return o
}

// WithTracer replaces the global tracer.
func (o *Orchestrator) WithTracer(t trace.Tracer) *Orchestrator {
	o.tracer = t
	return o
}

// EngineName reports the loaded speech engine.
func (o *Orchestrator) EngineName() string { return o.transcriber.EngineName() }

// Process runs the whole pipeline for one URL. On success the transcription
// text is non-empty; on failure the error is a *domain.PipelineError. Every
// artifact of the run is removed before Process returns.
func (o *Orchestrator) Process(ctx context.Context, req domain.SourceRequest) (domain.Transcription, error) {
	started := time.Now()
	req.URL = strings.TrimSpace(req.URL)

	if perr := o.checkRequest(req); perr != nil {
		o.logger.Warn().Err(perr.Cause).Str("url", req.URL).Msg("rejected request")
		o.metrics.RecordFailure(string(perr.Stage), string(perr.Kind))
		o.metrics.RecordRun(false)
		return domain.Transcription{}, perr
	}

	if o.slots != nil {
		if err := o.slots.Acquire(ctx, 1); err != nil {
			perr := domain.NewPipelineError(domain.KindBusy, domain.StageValidate, "server busy, retry later", err)
			o.logger.Warn().Err(err).Str("url", req.URL).Msg("no run slot available")
			o.metrics.RecordFailure(string(perr.Stage), string(perr.Kind))
			o.metrics.RecordRun(false)
			return domain.Transcription{}, perr
		}
		defer o.slots.Release(1)
	}
	o.metrics.RunsInFlight.Inc()
	defer o.metrics.RunsInFlight.Dec()

	platform := req.Platform()
	ctx, span := o.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("source.platform", platform),
	))
	defer span.End()

	var run domain.PipelineRun
	_ = o.stage(ctx, domain.StageNaming, 0, func(context.Context) error {
		run = o.namer.NewRun()
		return nil
	})
	span.SetAttributes(attribute.String("run.token", run.Token))
	log := o.logger.With().Str(logging.FieldRun, run.Token).Str("platform", platform).Logger()

	state := &runState{current: domain.StateStart, log: log}
	state.advance(domain.StateNamingComputed)
	log.Info().Str("url", req.URL).Msg("starting run")

	// execute may move VideoPath to the downloaded container's extension,
	// so cleanup reads the run at exit time.
	defer func() { o.cleanup(ctx, run, log) }()

	text, perr := o.execute(ctx, &run, req, state, log)
	if perr != nil {
		state.fail(perr)
		span.RecordError(perr)
		span.SetStatus(codes.Error, string(perr.Kind))
		o.metrics.RecordRun(false)
		return domain.Transcription{}, perr
	}

	state.advance(domain.StateResponded)
	o.metrics.RecordRun(true)
	result := domain.Transcription{
		Text:     text,
		RunToken: run.Token,
		Platform: platform,
		Duration: time.Since(started),
	}
	log.Info().Dur("duration", result.Duration).Int("chars", len(text)).Msg("run completed")
	return result, nil
}

func (o *Orchestrator) execute(ctx context.Context, run *domain.PipelineRun, req domain.SourceRequest, state *runState, log zerolog.Logger) (string, *domain.PipelineError) {
	// Download
	var found string
	err := o.stage(ctx, domain.StageDownload, o.cfg.DownloadTimeout, func(ctx context.Context) error {
		var ferr error
		found, ferr = o.fetcher.Fetch(ctx, ports.FetchRequest{
			URL:            req.URL,
			MetadataPath:   run.MetadataPath,
			StagingDir:     run.StagingDir,
			BrowserProfile: o.cfg.BrowserProfile,
		})
		return ferr
	})
	if err != nil {
		if errors.Is(err, ports.ErrNoVideo) {
			return "", o.fail(log, domain.KindArtifactNotFound, domain.StageDownload, "no video file found after download", err)
		}
		return "", o.fail(log, domain.KindAcquisitionFailed, domain.StageDownload, "video download failed", err)
	}
	state.advance(domain.StateDownloaded)

	// Rename
	*run = run.WithVideoExt(filepath.Ext(found))
	err = o.stage(ctx, domain.StageRename, 0, func(context.Context) error {
		return os.Rename(found, run.VideoPath)
	})
	if err != nil {
		return "", o.fail(log, domain.KindAcquisitionFailed, domain.StageRename, "downloaded video could not be claimed", err)
	}
	state.advance(domain.StateRenamed)

	// Extract
	err = o.stage(ctx, domain.StageExtract, o.cfg.ExtractTimeout, func(ctx context.Context) error {
		return o.extractor.Extract(ctx, run.VideoPath, run.AudioPath)
	})
	if err != nil {
		return "", o.fail(log, domain.KindExtractionFailed, domain.StageExtract, "audio extraction failed", err)
	}
	state.advance(domain.StateAudioExtracted)

	// Transcribe
	var text string
	err = o.stage(ctx, domain.StageTranscribe, o.cfg.TranscribeTimeout, func(ctx context.Context) error {
		var ok bool
		if text, ok = o.transcriber.Transcribe(ctx, run.AudioPath); !ok {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errNoText
		}
		return nil
	})
	if err != nil {
		return "", o.fail(log, domain.KindTranscriptionFailed, domain.StageTranscribe, "transcription failed", err)
	}
	state.advance(domain.StateTranscribed)

	if werr := os.WriteFile(run.TranscriptPath, []byte(text), 0o644); werr != nil {
		log.Warn().Err(werr).Str("path", run.TranscriptPath).Msg("failed to write transcript file")
	}
	return text, nil
}

var errNoText = errors.New("engine returned no text")

// stage runs fn under the stage's deadline and span and records its duration.
func (o *Orchestrator) stage(ctx context.Context, stage domain.Stage, timeout time.Duration, fn func(context.Context) error) error {
	ctx, span := o.tracer.Start(ctx, "pipeline."+string(stage))
	defer span.End()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(ctx)
	o.metrics.RecordStage(string(stage), time.Since(start))

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// fail converts a stage error into the run's single PipelineError and logs
// the cause.
func (o *Orchestrator) fail(log zerolog.Logger, kind domain.ErrorKind, stage domain.Stage, message string, cause error) *domain.PipelineError {
	perr := domain.NewPipelineError(kind, stage, message, cause)

	var exitErr *ports.ExitError
	if errors.As(cause, &exitErr) {
		perr.WithDetail("tool", exitErr.Tool).WithDetail("exit_code", exitErr.ExitCode)
		if exitErr.Output != "" {
			perr.WithDetail("stderr", exitErr.Output)
		}
	}
	if errors.Is(cause, context.DeadlineExceeded) {
		perr.WithDetail("timed_out", true)
	}

	log.Error().Err(cause).
		Str(logging.FieldStage, string(stage)).
		Str("kind", string(kind)).
		Fields(perr.Details).
		Msg(message)
	o.metrics.RecordFailure(string(stage), string(kind))
	return perr
}

// cleanup removes every artifact the run may have produced. Missing paths
// are fine; other failures are logged and never change the run's outcome.
func (o *Orchestrator) cleanup(ctx context.Context, run domain.PipelineRun, log zerolog.Logger) {
	_, span := o.tracer.Start(ctx, "pipeline."+string(domain.StageCleanup))
	defer span.End()

	start := time.Now()
	errs := workspace.RemoveAll(run.Artifacts())
	o.metrics.RecordStage(string(domain.StageCleanup), time.Since(start))

	for _, err := range errs {
		log.Warn().Err(err).Msg("failed to remove artifact")
	}
	o.metrics.RecordCleanupErrors(len(errs))
	if len(errs) > 0 {
		span.SetStatus(codes.Error, "cleanup incomplete")
	}
}

// checkRequest rejects empty and malformed input before any naming or I/O.
func (o *Orchestrator) checkRequest(req domain.SourceRequest) *domain.PipelineError {
	if req.URL == "" {
		return domain.NewPipelineError(domain.KindInvalidInput, domain.StageValidate, "no URL provided", domain.ErrInvalidInput)
	}
	if err := o.validate.Struct(req); err != nil {
		return domain.NewPipelineError(domain.KindInvalidInput, domain.StageValidate, "URL is not valid", err)
	}
	u, err := url.Parse(req.URL)
	if err != nil {
		return domain.NewPipelineError(domain.KindInvalidInput, domain.StageValidate, "URL is not valid", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.NewPipelineError(domain.KindInvalidInput, domain.StageValidate, "URL must be an absolute http(s) link",
			fmt.Errorf("unsupported url %q", req.URL))
	}
	return nil
}

// runState tracks a run's position in the state machine.
type runState struct {
	current domain.RunState
	log     zerolog.Logger
}

func (s *runState) advance(to domain.RunState) {
	if next, ok := s.current.Next(); !ok || next != to {
		s.log.Error().Str("from", string(s.current)).Str("to", string(to)).Msg("illegal state transition")
	}
	s.log.Debug().Str("from", string(s.current)).Str("to", string(to)).Msg("state transition")
	s.current = to
}

func (s *runState) fail(perr *domain.PipelineError) {
	s.log.Debug().Str("from", string(s.current)).Str("to", string(domain.StateFailed)).Str("kind", string(perr.Kind)).Msg("state transition")
	s.current = domain.StateFailed
}
