// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, authentication, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/ledgerlab/go-lessons-backend/internal/config"
	"github.com/ledgerlab/go-lessons-backend/internal/domain"
	"github.com/ledgerlab/go-lessons-backend/internal/http/handlers"
	"github.com/ledgerlab/go-lessons-backend/internal/http/middleware"
	"github.com/ledgerlab/go-lessons-backend/internal/repo"
	"github.com/ledgerlab/go-lessons-backend/internal/services"
)

// lessonRepoShim adapts the repository free functions to the
// services.LessonRepo interface expected by the LessonService. This keeps
// services decoupled from the concrete repo package while reusing the
// existing functions.
type lessonRepoShim struct{}

// CreateLesson proxies repo.CreateLesson.
func (lessonRepoShim) CreateLesson(ctx context.Context, db *gorm.DB, slug, title, unit, description string) (*domain.Lesson, error) {
	return repo.CreateLesson(ctx, db, slug, title, unit, description)
}

// GetLesson proxies repo.GetLesson.
func (lessonRepoShim) GetLesson(ctx context.Context, db *gorm.DB, id string) (*domain.Lesson, error) {
	return repo.GetLesson(ctx, db, id)
}

// GetLessonBySlug proxies repo.GetLessonBySlug.
func (lessonRepoShim) GetLessonBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Lesson, error) {
	return repo.GetLessonBySlug(ctx, db, slug)
}

// CountLessons proxies repo.CountLessons (pagination support).
func (lessonRepoShim) CountLessons(ctx context.Context, db *gorm.DB, search string) (int64, error) {
	return repo.CountLessons(ctx, db, search)
}

// ListLessonsPage proxies repo.ListLessonsPage (pagination support).
func (lessonRepoShim) ListLessonsPage(ctx context.Context, db *gorm.DB, search string, offset, limit int) ([]domain.Lesson, error) {
	return repo.ListLessonsPage(ctx, db, search, offset, limit)
}

// ListPhases proxies repo.ListPhases.
func (lessonRepoShim) ListPhases(ctx context.Context, db *gorm.DB, lessonID string) ([]domain.Phase, error) {
	return repo.ListPhases(ctx, db, lessonID)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), authentication and
// rate limiting, CORS and security headers, health and metrics endpoints, and
// then mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter + gzip
//  6. Metrics
//  7. Authentication (before rate limiting so keys can be per-user)
//  8. Rate limiter (per user/IP)
//  9. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction (X-User-ID is masked by default)
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB) and response compression
	r.Use(limitBody(1 << 20))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Bearer-token authentication
	r.Use(middleware.Auth(middleware.AuthOptions{
		Secret:   cfg.Auth.Secret,
		Required: cfg.Auth.Required,
	}))

	// 8) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "X-Idempotent-Replay", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "X-Idempotent-Replay", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// API docs
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db
	lessonSvc := services.NewLessonService(db, lessonRepoShim{})
	accessSvc := &services.AccessService{DB: db}
	progressSvc := &services.ProgressService{DB: db, Access: accessSvc}
	fbSvc := &services.FeedbackService{DB: db}
	h := handlers.New(lessonSvc, progressSvc, accessSvc, fbSvc)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Lessons
		api.POST("/lessons", h.CreateLesson)
		api.GET("/lessons", h.ListLessons)
		api.GET("/lessons/:id", h.GetLesson)

		// Progress
		api.POST("/phases/complete", h.CompletePhase)
		api.GET("/lessons/:id/progress", h.GetLessonProgress)
		api.PUT("/lessons/:id/phases/:n/state", h.MarkPhase)
		api.GET("/lessons/:id/phases/:n/access", h.CheckPhaseAccess)
		api.GET("/lessons/:id/stats", h.GetLessonStats)

		// Feedback
		api.POST("/phases/:id/feedback", h.LeaveFeedback)
		api.GET("/phases/:id/feedback", h.ListPhaseFeedback)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group(prefix)
	}
	return r.Group(prefix)
}
