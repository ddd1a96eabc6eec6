package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// HTTPEngine sends audio to a faster-whisper sidecar, which keeps the model
// resident between requests.
type HTTPEngine struct {
	cfg    Config
	client *http.Client
}

// NewHTTPEngine creates an HTTPEngine. Request deadlines come from the
// caller's context.
func NewHTTPEngine(cfg Config, client *http.Client) *HTTPEngine {
	cfg.applyDefaults()
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPEngine{cfg: cfg, client: client}
}

func (e *HTTPEngine) Name() string { return "whisper-http/" + e.cfg.Model }

// Health checks that the sidecar answers on /health.
func (e *HTTPEngine) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.cfg.URL+"/health", nil)
	if err != nil {
		return fmt.Errorf("whisper: create health request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("whisper: sidecar unreachable: %w", err)
	}
	defer resp.Body.Close()
	if !healthy(resp) {
		return fmt.Errorf("whisper: sidecar unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}

// Transcribe uploads the audio file and returns the recognised text.
func (e *HTTPEngine) Transcribe(ctx context.Context, audioPath string) (string, error) {
	audioData, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("read audio file: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("audio", filepath.Base(audioPath))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audioData); err != nil {
		return "", fmt.Errorf("write audio data: %w", err)
	}
	_ = writer.WriteField("model", e.cfg.Model)
	_ = writer.WriteField("fp16", strconv.FormatBool(e.cfg.FP16))
	if e.cfg.Language != "" {
		_ = writer.WriteField("language", e.cfg.Language)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.URL+"/transcribe", &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("whisper error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result transcriptFile
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode whisper response: %w", err)
	}
	return result.Text, nil
}
