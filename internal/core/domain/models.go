package domain

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// PipelineRun holds the run token and every artifact path derived from it.
type PipelineRun struct {
	Token          string    `json:"token"`
	StartedAt      time.Time `json:"started_at"`
	MetadataPath   string    `json:"metadata_path"`
	VideoPath      string    `json:"video_path"`
	AudioPath      string    `json:"audio_path"`
	TranscriptPath string    `json:"transcript_path"`
	StagingDir     string    `json:"staging_dir"` // downloader output, scoped to this run
}

// Artifacts returns every path the run may create, in cleanup order.
func (r PipelineRun) Artifacts() []string {
	return []string{
		r.VideoPath,
		r.AudioPath,
		r.TranscriptPath,
		r.MetadataPath,
		r.StagingDir,
	}
}

// WithVideoExt returns a copy of r whose VideoPath carries ext, so the
// renamed video keeps the container the downloader produced. An empty ext
// leaves the path unchanged.
func (r PipelineRun) WithVideoExt(ext string) PipelineRun {
	ext = strings.ToLower(ext)
	if ext == "" || r.VideoPath == "" {
		return r
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	r.VideoPath = strings.TrimSuffix(r.VideoPath, filepath.Ext(r.VideoPath)) + ext
	return r
}

// SourceRequest is the single input of a run.
type SourceRequest struct {
	URL string `json:"source_url" validate:"required,url"`
}

// Platform reports which social network the URL points at.
func (r SourceRequest) Platform() string {
	return DetectPlatform(r.URL)
}

// Transcription is the successful outcome of a run. Text is never empty.
type Transcription struct {
	Text     string        `json:"transcription"`
	RunToken string        `json:"-"`
	Platform string        `json:"-"`
	Duration time.Duration `json:"-"`
}

// Platform names used in logs and metric labels.
const (
	PlatformTikTok    = "tiktok"
	PlatformYouTube   = "youtube"
	PlatformInstagram = "instagram"
	PlatformUnknown   = "unknown"
)

// DetectPlatform classifies a source URL by host.
func DetectPlatform(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return PlatformUnknown
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case hostIs(host, "tiktok.com"):
		return PlatformTikTok
	case hostIs(host, "youtube.com"), hostIs(host, "youtu.be"):
		return PlatformYouTube
	case hostIs(host, "instagram.com"):
		return PlatformInstagram
	default:
		return PlatformUnknown
	}
}

func hostIs(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}
