// Package api exposes the swap's public operations over HTTP.
//
// Callers identify with an HS256 bearer token whose subject is their
// principal. Requests without a token run as the anonymous caller, which is
// never privileged.
package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/roach88/tokenswap/internal/swap"
)

// HealthChecker reports whether a dependency is usable. *store.Store
// implements it.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Config configures the router.
type Config struct {
	// JWTSecret verifies bearer tokens.
	JWTSecret []byte

	// Health is consulted by GET /health when set.
	Health HealthChecker
}

// NewRouter builds the HTTP handler for svc.
func NewRouter(svc *swap.Service, cfg Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), logRequests())

	h := &handler{svc: svc, health: cfg.Health}
	r.GET("/health", h.healthCheck)

	v1 := r.Group("/v1", Identify(cfg.JWTSecret))
	v1.GET("/accounts/:owner", h.getAccount)
	v1.POST("/convert", h.convert)
	v1.POST("/burn", h.burn)
	v1.GET("/settings", h.getSettings)
	v1.PUT("/settings", h.setSettings)
	v1.GET("/canisters", h.getServiceIDs)
	v1.PUT("/canisters", h.setServiceIDs)
	return r
}

const requestIDHeader = "X-Request-ID"

// requestID propagates or assigns a correlation id.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"request_id", c.GetString(requestIDHeader),
			"caller", CallerFrom(c).String(),
		)
	}
}
