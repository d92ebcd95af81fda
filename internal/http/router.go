// Package httpapi wires the HTTP transport (Gin) to the registry services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, authentication, logging/redaction, panic
// recovery, metrics, CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → auth → logging → recovery)
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

	_ "github.com/tbourn/libchain-registry/docs"
	"github.com/tbourn/libchain-registry/internal/config"
	"github.com/tbourn/libchain-registry/internal/http/handlers"
	"github.com/tbourn/libchain-registry/internal/http/middleware"
)

var (
	allowMethods  = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	allowHeaders  = []string{"Origin", "Content-Type", "Accept", "Authorization", "Range", middleware.HeaderUserID, middleware.HeaderIdempotencyKey}
	exposeHeaders = []string{"X-Request-ID", "Content-Length", "Content-Range", "Accept-Ranges", "ETag", "Location", "Idempotency-Replayed"}
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), authentication,
// idempotency and rate limiting, CORS and security headers, health and
// metrics endpoints, and then mounts the versioned API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Authenticate: resolve the principal (logs and limits key on it)
//  4. RedactingLogger: structured logs with PII scrubbing
//  5. Recovery: capture panics after logger
//  6. Body size limiter (uploads carry their own cap)
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per principal/IP, bypass on replay)
//  10. CORS, security headers and gzip (streams and uploads excluded)
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	base := basePath(cfg.APIBasePath)

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Resolve the caller
	auth := middleware.AuthOptions{Mode: cfg.Auth.Mode}
	if deps.Sessions != nil {
		auth.Sessions = deps.Sessions
	}
	r.Use(middleware.Authenticate(auth))

	// 4) Structured logging, redacted unless disabled for local debugging
	if cfg.LogRedact {
		r.Use(middleware.RedactingLogger(middleware.RedactOptions{
			MaskHeaders: []string{"X-API-Key", "Pinata-Api-Key"},
		}))
	} else {
		r.Use(middleware.Logger())
	}

	// 5) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 6) Global body size limit
	r.Use(limitBody(cfg.MaxBodyBytes, base+"/uploads"))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, principal string, contentID uint64, key string, _ time.Time) (bool, error) {
			if deps.Registry == nil {
				return false, nil
			}
			return deps.Registry.KnownIdempotencyKey(ctx, principal, contentID, key), nil
		},
	))

	// 9) Token-bucket rate limiter per principal/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByPrincipalOrIP())
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     allowMethods,
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
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
			AllowMethods:     allowMethods,
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:    cfg.Security.EnableHSTS,
		HSTSMaxAge:    cfg.Security.HSTSMaxAge,
		NoStore:       false,
		EnablePolicy:  true,
		ExposeHeaders: []string{"ETag", "Idempotency-Replayed"},
	}))

	// Byte streams are already compressed media; Range offsets must not shift.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{
		base + "/stream/",
		base + "/uploads",
		"/metrics",
	})))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(deps.options(cfg))

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Wallet login
		api.POST("/auth/challenge", h.IssueChallenge)
		api.POST("/auth/verify", h.VerifyChallenge)

		// Discovery and public views
		api.GET("/contents", h.ListContents)
		api.GET("/contents/:id", h.GetContent)
		api.GET("/contents/:id/access-check", h.CheckAccess)

		// Token-authenticated byte stream
		api.GET("/stream/:token", h.Stream)
	}

	authed := api.Group("", middleware.RequirePrincipal())
	{
		// Uploads and registration
		authed.POST("/uploads", h.UploadFile)
		authed.POST("/contents", h.RegisterContent)

		// Creator controls
		authed.PATCH("/contents/:id/status", h.ToggleContentStatus)
		authed.DELETE("/contents/:id", h.DeleteContent)

		// Purchase and gated access
		authed.POST("/contents/:id/purchase", h.PurchaseContent)
		authed.GET("/contents/:id/hash", h.GetContentHash)
		authed.GET("/contents/:id/access", h.GrantAccess)
		authed.GET("/contents/:id/sales", h.ListSales)

		// Per-principal views
		authed.GET("/me/uploads", h.ListUploads)
		authed.GET("/me/library", h.ListLibrary)
		authed.GET("/me/dashboard", h.GetDashboard)

		// Moderation
		authed.PUT("/admin/contents/:id/moderation", h.SetModeration)
	}
}

// limitBody returns a Gin middleware that caps the request body size to
// maxBytes using http.MaxBytesReader. Routes whose pattern is listed in
// exempt are skipped; they enforce their own cap. Requests exceeding the
// cap will cause downstream body reads to error.
func limitBody(maxBytes int64, exempt ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(exempt))
	for _, p := range exempt {
		skip[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := skip[c.FullPath()]; !ok {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
