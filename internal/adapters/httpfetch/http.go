package httpfetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"clipscribe/internal/adapters/video"
	"clipscribe/internal/core/ports"
)

const outputName = "download"

// Record is the metadata written next to a direct download.
type Record struct {
	URL           string    `json:"url"`
	StatusCode    int       `json:"status_code"`
	ContentType   string    `json:"content_type,omitempty"`
	ContentLength int64     `json:"content_length"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// HTTPDownloader fetches direct media links over plain HTTP.
type HTTPDownloader struct {
	client *http.Client
	now    func() time.Time
}

// NewHTTPDownloader creates a new HTTPDownloader. A nil client gets a default
// one; the caller's context bounds each transfer.
func NewHTTPDownloader(client *http.Client) *HTTPDownloader {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPDownloader{client: client, now: time.Now}
}

func (d *HTTPDownloader) Name() string { return "http" }

// Fetch streams req.URL into req.StagingDir and records the response headers
// at req.MetadataPath.
func (d *HTTPDownloader) Fetch(ctx context.Context, req ports.FetchRequest) (string, error) {
	if req.StagingDir == "" {
		return "", fmt.Errorf("http: staging dir is required")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to download video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := os.MkdirAll(req.StagingDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create staging dir: %w", err)
	}
	dest := filepath.Join(req.StagingDir, outputName+extensionOf(req.URL))
	written, err := writeFile(dest, resp.Body)
	if err != nil {
		return "", err
	}
	if written == 0 {
		_ = os.Remove(dest)
		return "", ports.ErrNoVideo
	}

	if req.MetadataPath != "" {
		rec := Record{
			URL:           req.URL,
			StatusCode:    resp.StatusCode,
			ContentType:   resp.Header.Get("Content-Type"),
			ContentLength: written,
			FetchedAt:     d.now().UTC(),
		}
		if err := writeRecord(req.MetadataPath, rec); err != nil {
			return "", err
		}
	}
	return dest, nil
}

func writeFile(dest string, body io.Reader) (int64, error) {
	file, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("failed to create video file %s: %w", dest, err)
	}
	return copyAndClose(file, body)
}

// copyAndClose streams body into dst and closes it. A failed Close is a
// failed write: the data may never have reached disk.
func copyAndClose(dst io.WriteCloser, body io.Reader) (int64, error) {
	n, err := io.Copy(dst, body)
	closeErr := dst.Close()
	if err != nil {
		return n, fmt.Errorf("failed to write video file: %w", err)
	}
	if closeErr != nil {
		return n, fmt.Errorf("failed to close video file: %w", closeErr)
	}
	return n, nil
}

func writeRecord(dest string, rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create metadata dir: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}
	return nil
}

// extensionOf keeps the container extension of the URL path, defaulting to
// .mp4.
func extensionOf(rawURL string) string {
	p := rawURL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	ext := strings.ToLower(path.Ext(p))
	if video.HasVideoExt(ext) {
		return ext
	}
	return ".mp4"
}
