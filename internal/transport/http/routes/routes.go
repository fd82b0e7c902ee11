package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Skillial/CSSECDV-Case-Study/internal/core/domain"
	"github.com/Skillial/CSSECDV-Case-Study/internal/infra/config"
	"github.com/Skillial/CSSECDV-Case-Study/internal/transport/http/handlers"
	"github.com/Skillial/CSSECDV-Case-Study/internal/transport/http/middleware"
	"github.com/Skillial/CSSECDV-Case-Study/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth         *usecase.AuthService
	Sessions     *usecase.SessionService
	Access       *usecase.AccessService
	Registration *usecase.RegistrationService
	Recovery     *usecase.RecoveryService
	Profile      *usecase.ProfileService
	Audit        *usecase.AuditService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Cookie      *middleware.SessionCookie
	Metrics     *middleware.HTTPMetrics
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
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
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}
	r.Use(middleware.ResolveSession(deps.Services.Sessions, deps.Cookie))

	checks := map[string]handlers.ReadinessCheck{}
	if deps.Database != nil {
		checks["database"] = deps.Database.Ping
	}
	if deps.Cache != nil {
		checks["redis"] = deps.Cache.HealthCheck
	}
	healthHandler := handlers.NewHealthHandler(checks)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authHandler := handlers.NewAuthHandler(deps.Services.Auth, deps.Services.Sessions, deps.Cookie, deps.Logger)
	registrationHandler := handlers.NewRegistrationHandler(deps.Services.Registration)
	recoveryHandler := handlers.NewRecoveryHandler(deps.Services.Recovery)
	maxUploadBytes := int64(deps.Config.Security.MaxProfileImageMB) << 20
	profileHandler := handlers.NewProfileHandler(deps.Services.Profile, deps.Services.Recovery, maxUploadBytes)
	adminHandler := handlers.NewAdminHandler(deps.Services.Registration, deps.Services.Audit, deps.Config.Security.AuditListPageLimit)

	access := deps.Services.Access

	loginLimit := rateLimitRule(deps, "auth_login_ip", deps.Config.RateLimit.LoginMaxAttempts)
	registerLimit := rateLimitRule(deps, "register_ip", deps.Config.RateLimit.RegisterMaxAttempts)
	recoveryLimit := rateLimitRule(deps, "recovery_ip", deps.Config.RateLimit.RecoveryMaxAttempts)

	r.POST("/login", chain(loginLimit, middleware.RequireUnauthenticated(access), authHandler.Login)...)
	r.POST("/register", chain(registerLimit, middleware.RequireUnauthenticated(access), registrationHandler.Register)...)
	r.POST("/logout", middleware.RequireAuthenticated(access), authHandler.Logout)
	r.GET("/session/report", middleware.RequireAuthenticated(access), authHandler.LastLoginReport)

	recovery := r.Group("/recovery")
	recovery.Use(middleware.RequireUnauthenticated(access))
	if recoveryLimit != nil {
		recovery.Use(recoveryLimit)
	}
	recovery.POST("/verify", recoveryHandler.Verify)
	recovery.POST("/reset", recoveryHandler.Reset)

	profile := r.Group("/profile")
	profile.Use(middleware.RequireAuthenticated(access))
	profile.PUT("/address", profileHandler.UpdateAddress)
	profile.POST("/password", profileHandler.ChangePassword)
	profile.POST("/security-question", profileHandler.SetSecurityQuestion)
	profile.PUT("/picture", profileHandler.UploadPicture)
	profile.GET("/picture", profileHandler.Picture)

	manager := r.Group("/manager")
	manager.Use(middleware.RequireRole(access, domain.RoleManager))
	manager.GET("/categories", profileHandler.Categories)

	admin := r.Group("/admin")
	admin.Use(middleware.RequireRole(access, domain.RoleAdmin))
	admin.POST("/accounts", adminHandler.ProvisionAccount)
	admin.GET("/accounts", adminHandler.ListAccounts)
	admin.PUT("/accounts/:id/categories", adminHandler.AssignCategories)
	admin.GET("/audit-log", adminHandler.ListAuditLog)

	return r
}

func rateLimitRule(deps Dependencies, name string, limit int) gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	return deps.RateLimiter.RateLimit(middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	})
}

func chain(handlersAndMiddleware ...gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(handlersAndMiddleware))
	for _, h := range handlersAndMiddleware {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}
