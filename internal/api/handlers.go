package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"clipscribe/internal/core/domain"
	"clipscribe/internal/logging"
)

// Form fields accepted by POST /process. The second is the legacy name.
const (
	FieldSourceURL = "sourceUrl"
	FieldLegacyURL = "tiktok_url"
)

// Pipeline is the part of the orchestrator the HTTP layer needs.
type Pipeline interface {
	Process(ctx context.Context, req domain.SourceRequest) (domain.Transcription, error)
	EngineName() string
}

// Handler serves the pipeline over HTTP.
type Handler struct {
	pipeline Pipeline
	logger   zerolog.Logger
}

// NewHandler creates a Handler.
func NewHandler(pipeline Pipeline, logger zerolog.Logger) *Handler {
	return &Handler{pipeline: pipeline, logger: logger}
}

type processBody struct {
	SourceURL string `json:"sourceUrl"`
	LegacyURL string `json:"tiktok_url"`
}

// Process handles POST /process.
func (h *Handler) Process(c *gin.Context) {
	req := domain.SourceRequest{URL: sourceURL(c)}

	result, err := h.pipeline.Process(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transcription": result.Text})
}

// sourceURL reads the URL from a JSON body or from form fields.
func sourceURL(c *gin.Context) string {
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var body processBody
		if err := c.ShouldBindJSON(&body); err != nil {
			return ""
		}
		if body.SourceURL != "" {
			return body.SourceURL
		}
		return body.LegacyURL
	}
	if v := c.PostForm(FieldSourceURL); v != "" {
		return v
	}
	return c.PostForm(FieldLegacyURL)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	if perr, ok := domain.AsPipelineError(err); ok {
		c.JSON(perr.HTTPStatus(), perr.ToResponse())
		return
	}
	h.logger.Error().Err(err).Str(logging.FieldRequestID, c.GetString(ctxRequestID)).Msg("unclassified pipeline error")
	c.JSON(http.StatusInternalServerError, domain.ErrorResponse{Error: "internal server error", Code: "INTERNAL"})
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "engine": h.pipeline.EngineName()})
}

// Index handles GET / with a short description of the API.
func (h *Handler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "clipscribe",
		"endpoints": gin.H{
			"POST /process": "form field " + FieldSourceURL + " (or " + FieldLegacyURL + "): video page URL to transcribe",
			"GET /health":   "liveness and loaded engine",
			"GET /metrics":  "Prometheus metrics",
		},
	})
}

// Options configures the router.
type Options struct {
	RateLimitPerMinute int
	Gatherer           prometheus.Gatherer
}

// NewRouter wires middleware and routes onto a gin engine.
func NewRouter(h *Handler, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Recovery(h.logger), RequestLogger(h.logger))

	r.GET("/", h.Index)
	r.GET("/health", h.Health)
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	r.POST("/process", RateLimit(opts.RateLimitPerMinute), h.Process)
	return r
}
