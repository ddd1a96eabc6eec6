package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"clipscribe/internal/core/ports"
	"clipscribe/internal/process"
)

// CLIEngine runs the openai-whisper command for every request, so each run
// pays the model load. Only the binary check and the model choice happen once,
// in Load. Use the http backend to keep one model resident.
type CLIEngine struct {
	cfg    Config
	runner process.Runner
}

// NewCLIEngine creates a CLIEngine.
func NewCLIEngine(cfg Config, runner process.Runner) *CLIEngine {
	cfg.applyDefaults()
	if runner == nil {
		runner = process.ExecRunner{}
	}
	return &CLIEngine{cfg: cfg, runner: runner}
}

func (e *CLIEngine) Name() string { return "whisper-cli/" + e.cfg.Model }

// Transcribe writes whisper's JSON output into a private directory next to
// the audio file, reads the text and removes the directory.
func (e *CLIEngine) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if audioPath == "" {
		return "", fmt.Errorf("whisper: audio path required")
	}
	outputDir, err := os.MkdirTemp(filepath.Dir(audioPath), "whisper_")
	if err != nil {
		return "", fmt.Errorf("whisper: create output dir: %w", err)
	}
	defer os.RemoveAll(outputDir)

	result, err := e.runner.Run(ctx, process.Command{
		Binary: e.cfg.Binary,
		Args:   e.buildArgs(audioPath, outputDir),
	})
	if err != nil {
		exitErr := &ports.ExitError{Tool: "whisper", ExitCode: -1, Err: err}
		if result != nil {
			exitErr.ExitCode = result.ExitCode
			exitErr.Output = result.StderrTail()
		}
		return "", exitErr
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	return loadTranscriptText(filepath.Join(outputDir, base+".json"))
}

func (e *CLIEngine) buildArgs(audioPath, outputDir string) []string {
	args := []string{
		audioPath,
		"--model", e.cfg.Model,
		"--fp16", fp16Flag(e.cfg.FP16),
		"--output_format", "json",
		"--output_dir", outputDir,
		"--verbose", "False",
	}
	if e.cfg.Language != "" {
		args = append(args, "--language", e.cfg.Language)
	}
	return args
}

type transcriptFile struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

func loadTranscriptText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("whisper: read output: %w", err)
	}
	var payload transcriptFile
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("whisper: decode output: %w", err)
	}
	return payload.Text, nil
}
