package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/securecookie"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Skillial/CSSECDV-Case-Study/internal/core/port"
	"github.com/Skillial/CSSECDV-Case-Study/internal/infra/config"
	"github.com/Skillial/CSSECDV-Case-Study/internal/infra/database"
	kafkainfra "github.com/Skillial/CSSECDV-Case-Study/internal/infra/kafka"
	"github.com/Skillial/CSSECDV-Case-Study/internal/infra/logger"
	redisinfra "github.com/Skillial/CSSECDV-Case-Study/internal/infra/redis"
	"github.com/Skillial/CSSECDV-Case-Study/internal/infra/security"
	"github.com/Skillial/CSSECDV-Case-Study/internal/infra/telemetry"
	postgresrepo "github.com/Skillial/CSSECDV-Case-Study/internal/repository/postgres"
	redisrepo "github.com/Skillial/CSSECDV-Case-Study/internal/repository/redis"
	"github.com/Skillial/CSSECDV-Case-Study/internal/transport/http/middleware"
	"github.com/Skillial/CSSECDV-Case-Study/internal/transport/http/routes"
	"github.com/Skillial/CSSECDV-Case-Study/internal/usecase"
)

type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
	tracer *telemetry.TracerProvider
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	if _, err := telemetry.Attach(ctx, cfg); err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	tracer, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Warn("tracing disabled", zap.Error(err))
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	accounts := postgresrepo.NewAccountRepository(pool)
	questions := postgresrepo.NewSecurityQuestionRepository(pool)
	auditRepo := postgresrepo.NewAuditRepository(pool)

	sessionStore := redisrepo.NewSessionRepository(redisClient.Client(), cfg.Redis.SessionPrefix)
	recoveryTokens := redisrepo.NewRecoveryTokenRepository(redisClient.Client(), cfg.Redis.RecoveryPrefix)

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: "occasio:rate-limit",
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(kafkaProducer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	hasher := security.NewBcryptHasherWithCost(cfg.Security.BcryptCost)
	validator := security.PasswordValidatorWithStrength(cfg.Security.MinStrengthScore)

	auditService := usecase.NewAuditService(auditRepo, eventPublisher, log)
	sessionService := usecase.NewSessionService(sessionStore, cfg.Session.TTL, log)
	accessService := usecase.NewAccessService(auditService, log)

	authService := usecase.NewAuthService(accounts, sessionService, auditService, eventPublisher, hasher, log)
	authService.WithLockoutPolicy(cfg.Security.LockoutThreshold, cfg.Security.LockoutDuration)

	recoveryService := usecase.NewRecoveryService(accounts, questions, recoveryTokens, auditService, eventPublisher, hasher, validator, log)
	recoveryService.WithHistoryLimit(cfg.Security.PasswordHistory)
	recoveryService.WithMinPasswordAge(cfg.Security.MinPasswordAge)
	recoveryService.WithTokenTTL(cfg.Session.RecoveryTokenTTL)

	registrationService := usecase.NewRegistrationService(accounts, auditService, hasher, validator, log)

	profileService := usecase.NewProfileService(accounts, auditService, log)
	if cfg.Security.MaxProfileImageMB > 0 {
		profileService.WithMaxImageBytes(int64(cfg.Security.MaxProfileImageMB) << 20)
	}

	cookie := middleware.NewSessionCookie(
		cfg.Session.CookieName,
		cfg.Session.CookieDomain,
		cfg.Session.CookieSecure,
		cookieKey(cfg.Session.CookieHashKey, 64),
		cookieKey(cfg.Session.CookieBlockKey, 32),
		cfg.Session.TTL,
	)

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		log.Warn("http metrics disabled", zap.Error(err))
	}

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Cookie:      cookie,
		Metrics:     metrics,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Auth:         authService,
			Sessions:     sessionService,
			Access:       accessService,
			Registration: registrationService,
			Recovery:     recoveryService,
			Profile:      profileService,
			Audit:        auditService,
		},
	})

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
		tracer: tracer,
	}, nil
}

// cookieKey derives a fixed-length key from configuration, generating an
// ephemeral one when unset. Ephemeral keys invalidate cookies on restart.
func cookieKey(configured string, length int) []byte {
	if configured != "" {
		return []byte(configured)
	}
	return securecookie.GenerateRandomKey(length)
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.tracer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = a.tracer.Shutdown(shutdownCtx)
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting account service",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
