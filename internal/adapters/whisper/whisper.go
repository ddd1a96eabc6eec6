// Package whisper provides the speech engines behind the transcription stage:
// the openai-whisper command line and a faster-whisper HTTP sidecar.
package whisper

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"clipscribe/internal/core/ports"
	"clipscribe/internal/process"
)

const (
	BackendCLI  = "cli"
	BackendHTTP = "http"

	DefaultBinary = "whisper"
	DefaultModel  = "base"
	DefaultURL    = "http://localhost:8387"

	defaultHealthTimeout = 5 * time.Second
)

// Config selects and configures an engine.
type Config struct {
	Backend  string
	Binary   string
	Model    string
	Language string
	URL      string
	// FP16 enables half precision. Off by default so the engine runs on CPUs.
	FP16 bool
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendCLI
	}
	if c.Binary == "" {
		c.Binary = DefaultBinary
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.URL == "" {
		c.URL = DefaultURL
	}
}

// Load builds the configured engine and checks that it can serve requests.
// It is called once at startup; the returned engine is shared by all runs.
func Load(ctx context.Context, cfg Config) (ports.SpeechEngine, error) {
	cfg.applyDefaults()
	switch strings.ToLower(cfg.Backend) {
	case BackendCLI:
		if _, err := exec.LookPath(cfg.Binary); err != nil {
			return nil, fmt.Errorf("whisper: binary %q not found: %w", cfg.Binary, err)
		}
		return NewCLIEngine(cfg, process.ExecRunner{}), nil
	case BackendHTTP:
		engine := NewHTTPEngine(cfg, nil)
		hctx, cancel := context.WithTimeout(ctx, defaultHealthTimeout)
		defer cancel()
		if err := engine.Health(hctx); err != nil {
			return nil, err
		}
		return engine, nil
	default:
		return nil, fmt.Errorf("whisper: unknown backend %q", cfg.Backend)
	}
}

func fp16Flag(enabled bool) string {
	if enabled {
		return "True"
	}
	return "False"
}

// healthy reports whether resp is a 2xx.
func healthy(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
