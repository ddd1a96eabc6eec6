package ports

import (
	"context"
)

// FetchRequest describes one video download.
type FetchRequest struct {
	URL            string
	MetadataPath   string // where the downloader writes its metadata record
	StagingDir     string // run-scoped directory the video is written into
	BrowserProfile string // browser whose session cookies authenticate the download
}

// VideoFetcher defines the contract for acquiring a video and its metadata.
type VideoFetcher interface {
	// Name identifies the backend in logs.
	Name() string

	// Fetch downloads the video into req.StagingDir and returns the path of
	// the downloaded file. The file name is chosen by the backend.
	// Returns ErrNoVideo when the download reported success but produced no
	// recognisable video file.
	Fetch(ctx context.Context, req FetchRequest) (string, error)
}

// AudioExtractor defines the contract for demuxing audio out of a video.
type AudioExtractor interface {
	// Extract writes an audio-only file at audioPath and blocks until done.
	Extract(ctx context.Context, videoPath, audioPath string) error
}

// SpeechEngine defines the contract for a loaded speech-to-text engine.
// Implementations are constructed once and are safe for concurrent use.
type SpeechEngine interface {
	Name() string

	// Transcribe returns the recognised text of the audio file.
	Transcribe(ctx context.Context, audioPath string) (string, error)
}
