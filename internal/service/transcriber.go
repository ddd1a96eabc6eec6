package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"clipscribe/internal/core/ports"
	"clipscribe/internal/logging"
)

// Transcriber wraps the loaded speech engine and turns every failure into an
// absence signal.
type Transcriber struct {
	engine ports.SpeechEngine
	logger zerolog.Logger
}

// NewTranscriber creates a Transcriber around an engine loaded at startup.
func NewTranscriber(engine ports.SpeechEngine, logger zerolog.Logger) *Transcriber {
	return &Transcriber{
		engine: engine,
		logger: logging.WithComponent(logger, "transcriber").With().Str("engine", engine.Name()).Logger(),
	}
}

// EngineName identifies the engine for health reporting.
func (t *Transcriber) EngineName() string { return t.engine.Name() }

// Transcribe returns the trimmed text and true, or "" and false when the
// engine failed, panicked or heard nothing. The cause is logged here.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (text string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error().Interface("panic", r).Str("audio", audioPath).Msg("speech engine panicked")
			text, ok = "", false
		}
	}()

	raw, err := t.engine.Transcribe(ctx, audioPath)
	if err != nil {
		t.logger.Error().Err(err).Str("audio", audioPath).Msg("transcription failed")
		return "", false
	}
	text = strings.TrimSpace(raw)
	if text == "" {
		t.logger.Warn().Str("audio", audioPath).Msg("transcription produced no text")
		return "", false
	}
	return text, true
}
