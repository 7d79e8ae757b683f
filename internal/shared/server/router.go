package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	googleauth "legaldoc-backend/internal/auth"
	"legaldoc-backend/internal/documents"
	"legaldoc-backend/internal/enrichment"
	"legaldoc-backend/internal/services/health"
	"legaldoc-backend/internal/shared/config"
	"legaldoc-backend/internal/shared/metrics"
	"legaldoc-backend/internal/shared/server/middleware"
	"legaldoc-backend/internal/shared/server/respond"
	"legaldoc-backend/internal/users"
)

const (
	rateGroupAuth = "AUTH"
	rateGroupAI   = "AI"
)

// RouterDeps carries the handlers mounted by NewRouter. Nil handlers are skipped.
type RouterDeps struct {
	Config          config.Config
	Verifier        middleware.TokenVerifier
	Health          *health.Service
	DocumentHandler *documents.Handler
	AIHandler       *enrichment.Handler
	UserHandler     *users.Handler
	GoogleAuth      *googleauth.GoogleService
	// Limiter is shared by every rate-limited group; nil builds a fresh one.
	Limiter *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigins),
	)

	limiter := deps.Limiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(nil)
	}

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService(nil)
	}
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		body, ok := healthSvc.Status(c.Request.Context())
		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, body)
	})

	public := api.Group("")
	public.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Rules:        map[string]middleware.RateLimitRule{rateGroupAuth: middleware.PerWindow(100, 15*time.Minute)},
		DefaultGroup: rateGroupAuth,
		Limiter:      limiter,
	}))
	if deps.UserHandler != nil {
		deps.UserHandler.RegisterPublicRoutes(public)
	}
	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(public)
	}

	protected := api.Group("")
	protected.Use(
		middleware.Auth(deps.Verifier),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:    map[string]middleware.RateLimitRule{rateGroupAI: middleware.PerWindow(60, time.Minute)},
			GroupFor: aiRateGroup,
			Limiter:  limiter,
		}),
	)
	if deps.UserHandler != nil {
		deps.UserHandler.RegisterRoutes(protected)
	}
	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterRoutes(protected)
	}
	if deps.AIHandler != nil {
		deps.AIHandler.RegisterRoutes(protected)
	}

	return r
}

// aiRateGroup throttles only the routes that call the model on demand.
func aiRateGroup(c *gin.Context) string {
	if strings.HasPrefix(c.FullPath(), "/api/ai/") {
		return rateGroupAI
	}
	return ""
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
