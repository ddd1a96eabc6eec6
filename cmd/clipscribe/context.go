package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"clipscribe/internal/adapters/ffmpeg"
	"clipscribe/internal/adapters/httpfetch"
	"clipscribe/internal/adapters/video"
	"clipscribe/internal/adapters/whisper"
	"clipscribe/internal/adapters/ytdlp"
	"clipscribe/internal/config"
	"clipscribe/internal/logging"
	"clipscribe/internal/metrics"
	"clipscribe/internal/process"
	"clipscribe/internal/service"
	"clipscribe/internal/tracing"
	"clipscribe/internal/workspace"
)

const serviceName = "clipscribe"

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag, logLevelFlag: logLevelFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && *c.logLevelFlag != "" {
			cfg.Log.Level = strings.ToLower(*c.logLevelFlag)
			if err := cfg.Validate(); err != nil {
				c.configErr = err
				return
			}
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// app is everything a command needs to run the pipeline.
type app struct {
	cfg          *config.Config
	logger       zerolog.Logger
	orchestrator *service.Orchestrator
	registry     *prometheus.Registry
	shutdown     tracing.ShutdownFunc
}

// buildApp loads config, sets up logging and tracing, creates the storage
// directories and loads the speech engine once.
func (c *commandContext) buildApp(ctx context.Context) (*app, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.Log).With().Str("service", serviceName).Logger()

	shutdown, err := tracing.Setup(ctx, cfg.Tracing, serviceName, version)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	layout := workspace.Layout{
		MetadataDir: cfg.Storage.MetadataDir,
		AudioDir:    cfg.Storage.AudioDir,
		WorkDir:     cfg.Storage.WorkDir,
	}
	if err := layout.Ensure(); err != nil {
		return nil, fmt.Errorf("prepare storage: %w", err)
	}

	engine, err := whisper.Load(ctx, whisper.Config{
		Backend:  cfg.Transcription.Backend,
		Binary:   cfg.Transcription.Binary,
		Model:    cfg.Transcription.Model,
		Language: cfg.Transcription.Language,
		URL:      cfg.Transcription.URL,
		FP16:     cfg.Transcription.FP16,
	})
	if err != nil {
		return nil, fmt.Errorf("load speech engine: %w", err)
	}
	logger.Info().Str("engine", engine.Name()).Msg("speech engine loaded")

	runner := process.ExecRunner{}
	fetcher := video.NewRouter(
		httpfetch.NewHTTPDownloader(nil),
		ytdlp.NewYtDlpDownloader(ytdlp.Config{
			Binary:         cfg.Downloader.Binary,
			Format:         cfg.Downloader.Format,
			BrowserProfile: cfg.Downloader.BrowserProfile,
		}, runner),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	orch := service.NewOrchestrator(
		service.Config{
			BrowserProfile:    cfg.Downloader.BrowserProfile,
			DownloadTimeout:   cfg.Stages.DownloadTimeout,
			ExtractTimeout:    cfg.Stages.ExtractTimeout,
			TranscribeTimeout: cfg.Stages.TranscribeTimeout,
			MaxConcurrentRuns: cfg.Pipeline.MaxConcurrentRuns,
		},
		workspace.NewNamer(layout),
		fetcher,
		ffmpeg.NewExtractor(cfg.Extractor.Binary, runner),
		service.NewTranscriber(engine, logger),
		metrics.NewPipeline(registry),
		logger,
	)

	return &app{
		cfg:          cfg,
		logger:       logger,
		orchestrator: orch,
		registry:     registry,
		shutdown:     shutdown,
	}, nil
}
