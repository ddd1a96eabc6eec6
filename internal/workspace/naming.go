package workspace

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"clipscribe/internal/core/domain"
)

// TimestampLayout renders the second-resolution part of a run token.
const TimestampLayout = "20060102_150405"

const metadataExt = ".info.json"

// Namer derives run tokens and artifact paths.
type Namer struct {
	layout Layout
	now    func() time.Time
	suffix func() string
}

// NewNamer creates a Namer rooted at layout using the wall clock.
func NewNamer(layout Layout) *Namer {
	return &Namer{
		layout: layout,
		now:    time.Now,
		suffix: randomSuffix,
	}
}

// WithClock replaces the clock (for tests).
func (n *Namer) WithClock(now func() time.Time) *Namer {
	n.now = now
	return n
}

// WithSuffix replaces the token suffix source (for tests).
func (n *Namer) WithSuffix(suffix func() string) *Namer {
	n.suffix = suffix
	return n
}

// NewRun computes a fresh token and the run's artifact paths. It touches
// nothing on disk.
func (n *Namer) NewRun() domain.PipelineRun {
	started := n.now()
	token := started.Format(TimestampLayout)
	// Second resolution alone collides for runs started in the same second.
	if s := n.suffix(); s != "" {
		token += "_" + s
	}

	return domain.PipelineRun{
		Token:          token,
		StartedAt:      started,
		MetadataPath:   filepath.Join(n.layout.MetadataDir, "video_metadata_"+token+metadataExt),
		VideoPath:      filepath.Join(n.layout.WorkDir, "video_"+token+".mp4"),
		AudioPath:      filepath.Join(n.layout.AudioDir, "audio_"+token+".mp3"),
		TranscriptPath: filepath.Join(n.layout.AudioDir, "transcription_"+token+".txt"),
		StagingDir:     filepath.Join(n.layout.WorkDir, "staging_"+token),
	}
}

// MetadataTemplate strips the extension yt-dlp appends to info-json output.
func MetadataTemplate(metadataPath string) string {
	return strings.TrimSuffix(metadataPath, metadataExt)
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
