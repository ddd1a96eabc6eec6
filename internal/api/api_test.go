package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipscribe/internal/core/domain"
	"clipscribe/internal/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubPipeline struct {
	got    []string
	result domain.Transcription
	err    error
	panic  bool
}

func (s *stubPipeline) Process(_ context.Context, req domain.SourceRequest) (domain.Transcription, error) {
	if s.panic {
		panic("boom")
	}
	s.got = append(s.got, req.URL)
	return s.result, s.err
}

func (s *stubPipeline) EngineName() string { return "stub" }

func newTestRouter(p Pipeline, opts Options) *gin.Engine {
	return NewRouter(NewHandler(p, zerolog.Nop()), opts)
}

func postForm(r http.Handler, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/process", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestProcessSuccess(t *testing.T) {
	p := &stubPipeline{result: domain.Transcription{Text: "hello world"}}
	r := newTestRouter(p, Options{})

	w := postForm(r, url.Values{FieldSourceURL: {"https://example.com/video/123"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"transcription": "hello world"}, decode(t, w))
	assert.Equal(t, []string{"https://example.com/video/123"}, p.got)
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
}

func TestProcessLegacyFieldAndJSON(t *testing.T) {
	p := &stubPipeline{result: domain.Transcription{Text: "ok"}}
	r := newTestRouter(p, Options{})

	w := postForm(r, url.Values{FieldLegacyURL: {"https://www.tiktok.com/@u/video/1"}})
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/process", strings.NewReader(`{"sourceUrl":"https://youtu.be/x"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []string{"https://www.tiktok.com/@u/video/1", "https://youtu.be/x"}, p.got)
}

func TestProcessErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid", domain.NewPipelineError(domain.KindInvalidInput, domain.StageValidate, "no URL provided", nil), 400, "INVALID_INPUT"},
		{"busy", domain.NewPipelineError(domain.KindBusy, domain.StageValidate, "server busy, retry later", nil), 503, "BUSY"},
		{"extraction", domain.NewPipelineError(domain.KindExtractionFailed, domain.StageExtract, "audio extraction failed",
			errors.New("ffmpeg: exit status 1: /secret/path/video.mp4: Invalid data")), 500, "EXTRACTION_FAILED"},
		{"unclassified", errors.New("raw internal detail"), 500, "INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&stubPipeline{err: tt.err}, Options{})
			w := postForm(r, url.Values{FieldSourceURL: {"https://example.com/v"}})
			assert.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.code, body["code"])
			assert.NotEmpty(t, body["error"])
			assert.NotContains(t, w.Body.String(), "/secret/path")
			assert.NotContains(t, w.Body.String(), "raw internal detail")
		})
	}
}

func TestRecovery(t *testing.T) {
	r := newTestRouter(&stubPipeline{panic: true}, Options{})
	w := postForm(r, url.Values{FieldSourceURL: {"https://example.com/v"}})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL", decode(t, w)["code"])
}

func TestRateLimit(t *testing.T) {
	r := newTestRouter(&stubPipeline{result: domain.Transcription{Text: "x"}}, Options{RateLimitPerMinute: 2})

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, postForm(r, url.Values{FieldSourceURL: {"https://example.com/v"}}).Code)
	}
	w := postForm(r, url.Values{FieldSourceURL: {"https://example.com/v"}})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", decode(t, w)["code"])
}

func TestHealthIndexAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "clipscribe_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	r := newTestRouter(&stubPipeline{}, Options{Gatherer: reg})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"status": "ok", "engine": "stub"}, decode(t, w))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "clipscribe", decode(t, w)["service"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "clipscribe_test_total 1")
}

func TestRequestIDIsPropagated(t *testing.T) {
	r := newTestRouter(&stubPipeline{}, Options{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))
}

func TestRequestLoggerRecordsRequestID(t *testing.T) {
	var buf strings.Builder
	h := NewHandler(&stubPipeline{result: domain.Transcription{Text: "hi"}}, zerolog.New(&buf))
	r := NewRouter(h, Options{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(buf.String()), &entry))
	assert.Equal(t, "req-42", entry[logging.FieldRequestID])
	assert.Equal(t, "/", entry["path"])
}
