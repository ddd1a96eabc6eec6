package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"clipscribe/internal/adapters/video"
	"clipscribe/internal/core/ports"
	"clipscribe/internal/process"
	"clipscribe/internal/workspace"
)

const (
	DefaultBinary = "yt-dlp"
	DefaultFormat = "b[ext=mp4]/b"

	// outputName is the file stem inside the run's staging dir.
	outputName = "download"
)

// Config captures runtime settings for yt-dlp.
type Config struct {
	Binary string
	// Format is the yt-dlp format selector.
	Format string
	// BrowserProfile is used when a request does not name one.
	BrowserProfile string
}

// YtDlpDownloader uses the local yt-dlp binary to fetch a video and its
// metadata record.
type YtDlpDownloader struct {
	cfg    Config
	runner process.Runner
}

// NewYtDlpDownloader creates a new downloader.
func NewYtDlpDownloader(cfg Config, runner process.Runner) *YtDlpDownloader {
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	if cfg.Format == "" {
		cfg.Format = DefaultFormat
	}
	if runner == nil {
		runner = process.ExecRunner{}
	}
	return &YtDlpDownloader{cfg: cfg, runner: runner}
}

func (d *YtDlpDownloader) Name() string { return "yt-dlp" }

// Fetch downloads req.URL into req.StagingDir and writes the info JSON to
// req.MetadataPath. The video path comes from yt-dlp's own report; when that
// is missing the staging dir is scanned.
func (d *YtDlpDownloader) Fetch(ctx context.Context, req ports.FetchRequest) (string, error) {
	if req.URL == "" {
		return "", fmt.Errorf("yt-dlp: url is required")
	}
	if req.StagingDir == "" {
		return "", fmt.Errorf("yt-dlp: staging dir is required")
	}
	if err := os.MkdirAll(req.StagingDir, 0o755); err != nil {
		return "", fmt.Errorf("yt-dlp: create staging dir: %w", err)
	}

	result, err := d.runner.Run(ctx, process.Command{
		Binary: d.cfg.Binary,
		Args:   d.buildArgs(req),
	})
	if err != nil {
		exitErr := &ports.ExitError{Tool: d.Name(), ExitCode: -1, Err: err}
		if result != nil {
			exitErr.ExitCode = result.ExitCode
			exitErr.Output = result.StderrTail()
		}
		return "", exitErr
	}

	if path := reportedPath(result.Stdout, req.StagingDir); path != "" {
		return path, nil
	}
	path, err := video.FindFirst(req.StagingDir)
	if err != nil {
		if errors.Is(err, ports.ErrNoVideo) {
			return "", err
		}
		return "", fmt.Errorf("yt-dlp: %w", err)
	}
	return path, nil
}

func (d *YtDlpDownloader) buildArgs(req ports.FetchRequest) []string {
	args := []string{
		"--no-playlist",
		"--no-progress",
		"--no-warnings",
		"--no-simulate",
	}

	profile := req.BrowserProfile
	if profile == "" {
		profile = d.cfg.BrowserProfile
	}
	if profile != "" {
		args = append(args, "--cookies-from-browser", profile)
	}

	args = append(args,
		"-f", d.cfg.Format,
		"--remux-video", "mp4",
		"-o", filepath.Join(req.StagingDir, outputName+".%(ext)s"),
		"--print", "after_move:filepath",
	)
	if req.MetadataPath != "" {
		args = append(args,
			"--write-info-json",
			"-o", "infojson:"+workspace.MetadataTemplate(req.MetadataPath),
		)
	}
	return append(args, "--", req.URL)
}

// reportedPath picks the last line yt-dlp printed, provided it names an
// existing video inside the staging dir.
func reportedPath(stdout []byte, stagingDir string) string {
	lines := strings.Split(strings.TrimSpace(string(stdout)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if !video.HasVideoExt(line) || !within(stagingDir, line) {
			return ""
		}
		if info, err := os.Stat(line); err != nil || info.IsDir() {
			return ""
		}
		return line
	}
	return ""
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}
