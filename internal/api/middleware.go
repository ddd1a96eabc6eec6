package api

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"clipscribe/internal/core/domain"
	"clipscribe/internal/logging"
)

const (
	HeaderRequestID = "X-Request-Id"
	ctxRequestID    = logging.FieldRequestID
)

// RequestID injects a unique X-Request-Id header into every request/response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(ctxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// Recovery turns a handler panic into a structured 500 and logs the stack.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().
					Str("error", fmt.Sprintf("%v", err)).
					Str("stack", string(debug.Stack())).
					Str("path", c.Request.URL.Path).
					Str(logging.FieldRequestID, c.GetString(ctxRequestID)).
					Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, domain.ErrorResponse{
					Error: "internal server error",
					Code:  "INTERNAL",
				})
			}
		}()
		c.Next()
	}
}

// RequestLogger logs every request except health and metrics probes.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isProbe(c.Request.URL.Path) {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		var event *zerolog.Event
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		default:
			event = log.Info()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client", c.ClientIP()).
			Str(logging.FieldRequestID, c.GetString(ctxRequestID)).
			Msg("request")
	}
}

func isProbe(path string) bool {
	return path == "/health" || path == "/metrics"
}

// RateLimit applies a per-client token bucket. perMinute <= 0 disables it.
func RateLimit(perMinute int) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiters := newClientLimiters(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	return func(c *gin.Context) {
		if !limiters.get(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, domain.ErrorResponse{
				Error: "rate limit exceeded",
				Code:  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}

// maxTrackedClients bounds the limiter map; idle entries are swept past it.
const maxTrackedClients = 4096

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type clientLimiters struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
}

func newClientLimiters(limit rate.Limit, burst int) *clientLimiters {
	return &clientLimiters{clients: make(map[string]*clientLimiter), limit: limit, burst: burst}
}

func (l *clientLimiters) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if cl, ok := l.clients[key]; ok {
		cl.lastSeen = now
		return cl.limiter
	}
	if len(l.clients) >= maxTrackedClients {
		for k, cl := range l.clients {
			if now.Sub(cl.lastSeen) > time.Minute {
				delete(l.clients, k)
			}
		}
	}
	cl := &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst), lastSeen: now}
	l.clients[key] = cl
	return cl.limiter
}
