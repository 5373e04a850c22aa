// Package httpapi wires the ops HTTP transport (Gin) to the read-side
// services, middleware, and route handlers. The ops server is optional and
// read-only: it exposes health, Prometheus metrics and a JSON view of the
// check-in board.
//
// Middleware order:
//  1. OpenTelemetry
//  2. RequestID → Logger → Recovery
//  3. Metrics (and /metrics)
//  4. Rate limiter (health and metrics exempt)
//  5. CORS, gzip, security headers
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/hordalan/checkin-bot/internal/config"
	"github.com/hordalan/checkin-bot/internal/http/handlers"
	"github.com/hordalan/checkin-bot/internal/http/middleware"
	"github.com/hordalan/checkin-bot/internal/services"
)

// APIBasePath prefixes the JSON endpoints.
const APIBasePath = "/api/v1"

// RegisterRoutes attaches middleware and endpoints to r.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rl := middleware.NewRateLimiter(cfg.Ops.RateRPS, cfg.Ops.RateBurst, "/health", "/metrics")
	r.Use(rl.Handler())

	r.Use(corsFor(cfg.Ops.CORSAllowedOrigins))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Ops.EnableHSTS,
		NoStore:    true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	var pinger handlers.Pinger
	if sqlDB, err := db.DB(); err == nil {
		pinger = sqlDB
	}
	h := handlers.New(&services.BoardService{DB: db}, pinger)

	r.GET("/health", h.Health)

	api := r.Group(APIBasePath)
	{
		api.GET("/board", h.Board)
		api.GET("/users", h.ListUsers)
	}
}

// corsFor allows every origin when none are configured. Only safe methods
// are served, so credentials are never allowed.
func corsFor(origins []string) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Accept", "If-None-Match", middleware.HeaderRequestID},
		ExposeHeaders:    []string{middleware.HeaderRequestID, "ETag", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
	}
	return cors.New(cc)
}

// NewServer builds the ops http.Server around r.
func NewServer(addr string, r http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
