package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/safedrive/phone-verify/internal/core/port"
	"github.com/safedrive/phone-verify/internal/infra/config"
	"github.com/safedrive/phone-verify/internal/infra/database"
	kafkainfra "github.com/safedrive/phone-verify/internal/infra/kafka"
	"github.com/safedrive/phone-verify/internal/infra/logger"
	redisinfra "github.com/safedrive/phone-verify/internal/infra/redis"
	"github.com/safedrive/phone-verify/internal/infra/security"
	"github.com/safedrive/phone-verify/internal/infra/sms"
	"github.com/safedrive/phone-verify/internal/infra/telemetry"
	postgresrepo "github.com/safedrive/phone-verify/internal/repository/postgres"
	redisrepo "github.com/safedrive/phone-verify/internal/repository/redis"
	"github.com/safedrive/phone-verify/internal/transport/http/middleware"
	"github.com/safedrive/phone-verify/internal/transport/http/routes"
	"github.com/safedrive/phone-verify/internal/usecase"
)

type Application struct {
	cfg           *config.AppConfig
	engine        *gin.Engine
	logger        *zap.Logger
	pool          *pgxpool.Pool
	redis         *redisinfra.Client
	verifications *usecase.VerificationService
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics, err := telemetry.Attach(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
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

	repos := postgresrepo.NewRepositories(pool)

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

	smsSender, err := sms.NewTextLKSender(cfg.SMS, log)
	if err != nil {
		_ = redisClient.Close()
		pool.Close()
		return nil, fmt.Errorf("init sms sender: %w", err)
	}

	proofIssuer, err := security.NewProofIssuer(cfg.Proof.Secret, cfg.Proof.Issuer, cfg.Proof.TTL)
	if err != nil {
		_ = redisClient.Close()
		pool.Close()
		return nil, fmt.Errorf("init proof issuer: %w", err)
	}

	rateLimitWindow := cfg.RateLimit.Request.Window
	if cfg.RateLimit.Confirm.Window > rateLimitWindow {
		rateLimitWindow = cfg.RateLimit.Confirm.Window
	}
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Hour
	}

	keyPrefix := cfg.Redis.RateLimitPrefix
	if keyPrefix == "" {
		keyPrefix = "verify:rate-limit"
	}

	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: keyPrefix,
		TTL:       rateLimitWindow * 2,
	})

	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	verificationService := usecase.NewVerificationService(
		cfg,
		repos.Verifications,
		repos.Identities,
		smsSender,
		rateLimitStore,
		eventPublisher,
		proofIssuer,
		metrics,
		log,
	)

	engine := routes.Register(routes.Dependencies{
		Config:        cfg,
		Logger:        log,
		RateLimiter:   rateLimiter,
		Verifications: verificationService,
		Database:      pool,
		Cache:         redisClient,
	})

	return &Application{
		cfg:           cfg,
		engine:        engine,
		logger:        log,
		pool:          pool,
		redis:         redisClient,
		verifications: verificationService,
	}, nil
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

	sweepDone := make(chan struct{})
	go a.runExpirySweep(ctx, sweepDone)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting phone verification API",
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
		<-sweepDone
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

// runExpirySweep periodically removes expired verification records.
func (a *Application) runExpirySweep(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	interval := a.cfg.Sweep.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
			deleted, err := a.verifications.RunExpirySweep(sweepCtx)
			cancel()

			if err != nil {
				a.logger.Warn("expiry sweep failed", zap.Int("deleted", deleted), zap.Error(err))
			}
		}
	}
}
