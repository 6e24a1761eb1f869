package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/safedrive/phone-verify/internal/infra/config"
	"github.com/safedrive/phone-verify/internal/transport/http/handlers"
	"github.com/safedrive/phone-verify/internal/transport/http/middleware"
	"github.com/safedrive/phone-verify/internal/usecase"
)

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config        *config.AppConfig
	Logger        *zap.Logger
	RateLimiter   *middleware.RateLimiter
	Verifications *usecase.VerificationService
	Database      DatabaseChecker
	Cache         CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))

	healthOptions := make([]handlers.HealthOption, 0, 2)

	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}

	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		verificationGroup := api.Group("/verification")

		verificationHandler := handlers.NewVerificationHandler(deps.Verifications)
		verificationHandler.RegisterRoutes(verificationGroup, buildVerificationMiddlewares(deps)...)
	}

	return r
}

// buildVerificationMiddlewares guards the verification endpoints with an
// IP-scoped sliding-window limit on top of the per-phone budgets enforced
// inside the service.
func buildVerificationMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	policy := deps.Config.RateLimit.Confirm
	if policy.MaxAttempts <= 0 || policy.Window <= 0 {
		return nil
	}

	rule := middleware.RateLimitRule{
		Name:       "verification_ip",
		Limit:      policy.MaxAttempts * 4,
		Window:     policy.Window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
