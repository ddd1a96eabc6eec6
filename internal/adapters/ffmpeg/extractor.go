package ffmpeg

import (
	"context"
	"fmt"
	"os"

	"clipscribe/internal/core/ports"
	"clipscribe/internal/process"
)

const DefaultBinary = "ffmpeg"

// Extractor demuxes the audio track of a video into an MP3 file.
type Extractor struct {
	binary string
	runner process.Runner
}

// NewExtractor creates an Extractor. Empty binary means ffmpeg from PATH.
func NewExtractor(binary string, runner process.Runner) *Extractor {
	if binary == "" {
		binary = DefaultBinary
	}
	if runner == nil {
		runner = process.ExecRunner{}
	}
	return &Extractor{binary: binary, runner: runner}
}

// Extract writes the best-quality audio of videoPath to audioPath and blocks
// until ffmpeg exits.
func (e *Extractor) Extract(ctx context.Context, videoPath, audioPath string) error {
	result, err := e.runner.Run(ctx, process.Command{
		Binary: e.binary,
		Args:   Args(videoPath, audioPath),
	})
	if err != nil {
		exitErr := &ports.ExitError{Tool: "ffmpeg", ExitCode: -1, Err: err}
		if result != nil {
			exitErr.ExitCode = result.ExitCode
			exitErr.Output = result.StderrTail()
		}
		return exitErr
	}

	info, err := os.Stat(audioPath)
	if err != nil {
		return fmt.Errorf("ffmpeg: output missing: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("ffmpeg: output %s is empty", audioPath)
	}
	return nil
}

// Args builds the ffmpeg argument list: overwrite, drop video, keep audio
// streams only, variable bitrate quality 0.
func Args(videoPath, audioPath string) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", videoPath,
		"-vn", "-map", "a",
		"-q:a", "0",
		audioPath,
	}
}
