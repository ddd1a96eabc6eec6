package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"clipscribe/internal/config"
)

// Field names shared across components.
const (
	FieldComponent = "component"
	FieldRun       = "run"
	FieldRequestID = "request_id"
	FieldStage     = "stage"
)

// New builds the process logger. Console output goes to stderr; when a file is
// configured, JSON lines are also written to a rotating file.
func New(cfg config.LogConfig) zerolog.Logger {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter is New with an explicit primary writer.
func NewWithWriter(cfg config.LogConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	primary := out
	if strings.ToLower(cfg.Format) != "json" {
		primary = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	writer := primary
	if cfg.File != "" {
		writer = zerolog.MultiLevelWriter(primary, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}

	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// WithComponent returns a child logger tagged with a component name.
func WithComponent(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str(FieldComponent, name).Logger()
}
