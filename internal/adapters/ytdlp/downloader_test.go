package ytdlp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipscribe/internal/core/ports"
	"clipscribe/internal/process"
)

func fakeRunner(fn func(cmd process.Command) (*process.Result, error)) process.Runner {
	return process.RunnerFunc(func(_ context.Context, cmd process.Command) (*process.Result, error) {
		return fn(cmd)
	})
}

func newRequest(t *testing.T) ports.FetchRequest {
	t.Helper()
	dir := t.TempDir()
	return ports.FetchRequest{
		URL:          "https://www.tiktok.com/@user/video/123",
		MetadataPath: filepath.Join(dir, "metadata", "video_metadata_tok.info.json"),
		StagingDir:   filepath.Join(dir, "staging_tok"),
	}
}

func TestFetchUsesReportedPath(t *testing.T) {
	req := newRequest(t)
	var captured process.Command
	d := NewYtDlpDownloader(Config{BrowserProfile: "chrome"}, fakeRunner(func(cmd process.Command) (*process.Result, error) {
		captured = cmd
		out := filepath.Join(req.StagingDir, "download.mp4")
		require.NoError(t, os.WriteFile(out, []byte("video"), 0o644))
		return &process.Result{Stdout: []byte(out + "\n")}, nil
	}))

	path, err := d.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(req.StagingDir, "download.mp4"), path)

	assert.Equal(t, DefaultBinary, captured.Binary)
	args := captured.Args
	assert.Subset(t, args, []string{"--cookies-from-browser", "chrome", "--write-info-json", "--no-playlist"})
	assert.Contains(t, args, "infojson:"+filepath.Join(filepath.Dir(req.MetadataPath), "video_metadata_tok"))
	assert.Contains(t, args, filepath.Join(req.StagingDir, "download.%(ext)s"))
	assert.Equal(t, req.URL, args[len(args)-1])
	assert.Equal(t, "--", args[len(args)-2])
}

func TestFetchRequestProfileOverridesDefault(t *testing.T) {
	req := newRequest(t)
	req.BrowserProfile = "firefox"
	var captured process.Command
	d := NewYtDlpDownloader(Config{BrowserProfile: "chrome"}, fakeRunner(func(cmd process.Command) (*process.Result, error) {
		captured = cmd
		require.NoError(t, os.WriteFile(filepath.Join(req.StagingDir, "download.webm"), []byte("v"), 0o644))
		return &process.Result{}, nil
	}))

	_, err := d.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, captured.Args, "firefox")
	assert.NotContains(t, captured.Args, "chrome")
}

func TestFetchFallsBackToStagingScan(t *testing.T) {
	req := newRequest(t)
	d := NewYtDlpDownloader(Config{}, fakeRunner(func(process.Command) (*process.Result, error) {
		require.NoError(t, os.WriteFile(filepath.Join(req.StagingDir, "download.webm"), []byte("v"), 0o644))
		return &process.Result{Stdout: []byte("/somewhere/else/file.mp4\n")}, nil
	}))

	path, err := d.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(req.StagingDir, "download.webm"), path)
}

func TestFetchNoVideoProduced(t *testing.T) {
	req := newRequest(t)
	d := NewYtDlpDownloader(Config{}, fakeRunner(func(process.Command) (*process.Result, error) {
		return &process.Result{}, nil
	}))

	_, err := d.Fetch(context.Background(), req)
	assert.ErrorIs(t, err, ports.ErrNoVideo)
}

func TestFetchDownloaderFailure(t *testing.T) {
	req := newRequest(t)
	boom := errors.New("process: exit code 1")
	d := NewYtDlpDownloader(Config{}, fakeRunner(func(process.Command) (*process.Result, error) {
		return &process.Result{ExitCode: 1, Stderr: []byte("ERROR: Unsupported URL\n")}, boom
	}))

	_, err := d.Fetch(context.Background(), req)
	require.Error(t, err)

	var exitErr *ports.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.ExitCode)
	assert.Equal(t, "ERROR: Unsupported URL", exitErr.Output)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ports.ErrNoVideo)
}

func TestFetchRequiresURL(t *testing.T) {
	d := NewYtDlpDownloader(Config{}, fakeRunner(func(process.Command) (*process.Result, error) {
		t.Fatal("runner must not be called")
		return nil, nil
	}))
	_, err := d.Fetch(context.Background(), ports.FetchRequest{StagingDir: t.TempDir()})
	assert.Error(t, err)
}
