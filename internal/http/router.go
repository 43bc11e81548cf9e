// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - One authorization gate for the whole /admin surface
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

	"github.com/tbourn/go-fortune-backend/internal/config"
	"github.com/tbourn/go-fortune-backend/internal/guest"
	"github.com/tbourn/go-fortune-backend/internal/http/handlers"
	"github.com/tbourn/go-fortune-backend/internal/http/middleware"
	"github.com/tbourn/go-fortune-backend/internal/llm"
	"github.com/tbourn/go-fortune-backend/internal/persona"
	"github.com/tbourn/go-fortune-backend/internal/repo"
	"github.com/tbourn/go-fortune-backend/internal/services"
	"github.com/tbourn/go-fortune-backend/internal/token"
)

// Deps carries the externally constructed dependencies the router wires into
// handlers. GuestStore and Completer are interfaces so main can pick the
// Redis-backed store or a different completion client without touching the
// transport layer.
type Deps struct {
	DB         *gorm.DB
	GuestStore guest.Store
	Completer  llm.Completer
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. gzip response compression
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per user/IP, bypass on replay)
//  10. CORS and Security headers
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	db := deps.DB

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-Session-ID", // session ids are credentials here
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Response compression
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, sessionID, characterID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, sessionID, characterID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 9) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyBySessionOrIP())
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
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Session-ID", "X-Character-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
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
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Session-ID", "X-Character-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: true,
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

	// Swagger UI (opt-in)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db
	personas := persona.DefaultRegistry()
	userSvc := services.NewUserService(db)
	histSvc := services.NewConversationService(db, personas, cfg.HistoryCap)
	chatSvc := services.NewChatService(db, personas, deps.Completer, cfg.HistoryCap, cfg.LLM.HistoryTurns)
	guests := guest.NewManager(deps.GuestStore, personas, cfg.Guest.BufferCap, cfg.Guest.MessageLimit)
	tokens := token.NewCodec(cfg.TokenSecret, cfg.TokenTTL)

	h := handlers.New(userSvc, histSvc, chatSvc, guests, personas, tokens, cfg.CookieTTL, cfg.IdempotencyTTL, db)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Identity
		api.POST("/auth/register", h.Register)
		api.POST("/auth/create-guest", h.CreateGuest)
		api.POST("/auth/login", h.Login)
		api.POST("/auth/reset-passphrase", h.ResetPassphrase)
		api.POST("/auth/update-deity", h.UpdateDeity)

		// Conversations
		api.POST("/conversation", h.AppendConversation)
		api.GET("/conversation", h.GetConversation)
		api.GET("/last-conversations", h.LastConversations)

		// Persona chat
		api.POST("/chat", h.Chat)
		api.GET("/personas", h.ListPersonas)

		// Guest state
		api.POST("/guest/message", h.GuestMessage)
		api.GET("/guest/state", h.GuestState)

		// Admin (single bearer gate + optional IP allow-list)
		admin := api.Group("/admin")
		admin.Use(middleware.AdminAuth(cfg.AdminToken, adminIPLookup(db)))
		{
			admin.GET("/users", h.AdminListUsers)
			admin.PATCH("/users/:id", h.AdminUpdateUser)
			admin.DELETE("/users/:id", h.AdminDeleteUser)
			admin.GET("/stats", h.AdminStats)

			admin.GET("/conversations", h.AdminListConversations)
			admin.DELETE("/conversations", h.AdminDeleteConversations)

			admin.GET("/ips", h.AdminListIPs)
			admin.POST("/ips", h.AdminCreateIP)
			admin.PATCH("/ips/:id", h.AdminUpdateIP)
			admin.DELETE("/ips/:id", h.AdminDeleteIP)
		}
	}
}

// adminIPLookup consults the allow-list table; the list is enforced only when
// it has active entries.
func adminIPLookup(db *gorm.DB) middleware.AdminIPLookup {
	return func(ctx context.Context, ip string) (allowed, enforce bool, err error) {
		n, err := repo.CountActiveAdminIPs(ctx, db)
		if err != nil {
			return false, false, err
		}
		if n == 0 {
			return false, false, nil
		}
		ok, err := repo.AdminIPAllowed(ctx, db, ip)
		if err != nil {
			return false, true, err
		}
		return ok, true, nil
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
		return r.Group("")
	}
	return r.Group(prefix)
}
