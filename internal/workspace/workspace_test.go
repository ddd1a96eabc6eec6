package workspace

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
}

func TestNewRunPaths(t *testing.T) {
	layout := Layout{MetadataDir: "metadata", AudioDir: "mp3", WorkDir: "work"}
	run := NewNamer(layout).
		WithClock(fixedClock).
		WithSuffix(func() string { return "deadbeef" }).
		NewRun()

	assert.Equal(t, "20250314_092653_deadbeef", run.Token)
	assert.Equal(t, filepath.Join("metadata", "video_metadata_20250314_092653_deadbeef.info.json"), run.MetadataPath)
	assert.Equal(t, filepath.Join("work", "video_20250314_092653_deadbeef.mp4"), run.VideoPath)
	assert.Equal(t, filepath.Join("mp3", "audio_20250314_092653_deadbeef.mp3"), run.AudioPath)
	assert.Equal(t, filepath.Join("mp3", "transcription_20250314_092653_deadbeef.txt"), run.TranscriptPath)
	assert.Equal(t, filepath.Join("work", "staging_20250314_092653_deadbeef"), run.StagingDir)
	assert.Equal(t, fixedClock(), run.StartedAt)

	for _, p := range run.Artifacts() {
		assert.Contains(t, p, run.Token)
	}
}

func TestNewRunSameSecondNeverCollides(t *testing.T) {
	namer := NewNamer(Layout{MetadataDir: "m", AudioDir: "a", WorkDir: "w"}).WithClock(fixedClock)

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		run := namer.NewRun()
		for _, p := range run.Artifacts() {
			require.False(t, seen[p], "path %s reused", p)
			seen[p] = true
		}
	}
}

func TestTokenFormat(t *testing.T) {
	run := NewNamer(Layout{}).WithClock(fixedClock).NewRun()
	assert.Regexp(t, regexp.MustCompile(`^\d{8}_\d{6}_[0-9a-f]{8}$`), run.Token)
}

func TestNewRunHasNoSideEffects(t *testing.T) {
	dir := t.TempDir()
	layout := Layout{
		MetadataDir: filepath.Join(dir, "metadata"),
		AudioDir:    filepath.Join(dir, "mp3"),
		WorkDir:     dir,
	}
	NewNamer(layout).NewRun()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMetadataTemplate(t *testing.T) {
	assert.Equal(t, "metadata/video_metadata_x", MetadataTemplate("metadata/video_metadata_x.info.json"))
	assert.Equal(t, "plain.csv", MetadataTemplate("plain.csv"))
}

func TestLayoutEnsureIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	layout := Layout{
		MetadataDir: filepath.Join(dir, "metadata"),
		AudioDir:    filepath.Join(dir, "mp3"),
		WorkDir:     filepath.Join(dir, "work"),
	}
	require.NoError(t, layout.Ensure())
	require.NoError(t, layout.Ensure())

	for _, d := range []string{layout.MetadataDir, layout.AudioDir, layout.WorkDir} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestRemoveAllToleratesMissingPaths(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.mp3")
	sub := filepath.Join(dir, "staging")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "download.mp4"), []byte("x"), 0o644))

	errs := RemoveAll([]string{file, sub, filepath.Join(dir, "never-created.txt"), ""})
	assert.Empty(t, errs)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemoveAllReportsFailures(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	dir := t.TempDir()
	locked := filepath.Join(dir, "locked")
	require.NoError(t, os.MkdirAll(locked, 0o755))
	victim := filepath.Join(locked, "video.mp4")
	require.NoError(t, os.WriteFile(victim, []byte("x"), 0o644))
	require.NoError(t, os.Chmod(locked, 0o555))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	errs := RemoveAll([]string{victim})
	require.Len(t, errs, 1)
	assert.True(t, strings.Contains(errs[0].Error(), "video.mp4"))
}
