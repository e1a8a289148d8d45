package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/sppt/server/internal/auth"
	"github.com/sppt/server/internal/config"
	"github.com/sppt/server/internal/db"
	httphandler "github.com/sppt/server/internal/http"
	"github.com/sppt/server/internal/http/handlers"
	"github.com/sppt/server/internal/logging"
	"github.com/sppt/server/internal/middleware"
	"github.com/sppt/server/internal/model"
	"github.com/sppt/server/internal/queue"
	"github.com/sppt/server/internal/repo"
	"github.com/sppt/server/internal/service"
)

func main() {
	// Load .env from CWD or server/ so it works from repo root or server/ (env vars override)
	_ = godotenv.Load(".env")
	_ = godotenv.Load("server/.env")

	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("info", true)
		bootLog.Fatal().Err(err).Msg("load configuration")
	}
	log := logging.New(cfg.LogLevel, cfg.DevMode)

	ctx := context.Background()

	database, err := db.Open(ctx, cfg.DatabaseURL, db.DefaultPool, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer database.Close()

	if err := db.Migrate(database, log); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}

	// Repositories
	staffRepo := repo.NewStaffRepo(database)
	businessRepo := repo.NewBusinessRepo(database)
	clientRepo := repo.NewClientRepo(database)
	membershipRepo := repo.NewMembershipRepo(database)
	codeRepo := repo.NewVerificationRepo(database)

	// Sessions
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	tokens := auth.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL)
	staffSessions := auth.NewSessions(
		model.KindStaff,
		auth.NewStaffPrincipals(staffRepo),
		repo.NewStaffRefreshRepo(database),
		hasher,
		tokens,
		auth.SessionOptions{RefreshTTL: cfg.StaffRefreshTTL, Logger: log},
	)
	clientSessions := auth.NewSessions(
		model.KindClient,
		auth.NewClientPrincipals(clientRepo),
		repo.NewClientRefreshRepo(database),
		hasher,
		tokens,
		auth.SessionOptions{RefreshTTL: cfg.ClientRefreshTTL, Logger: log},
	)

	// Verification codes go to RabbitMQ when a broker is configured
	var sender service.CodeSender = service.NewLogSender(log)
	if cfg.RabbitMQURL != "" {
		pub := queue.NewPublisher(cfg.RabbitMQURL, log)
		defer pub.Close()
		sender = service.NewAMQPSender(pub)
		log.Info().Msg("verification codes published to rabbitmq")
	}

	// Services
	staffService := service.NewStaffService(staffRepo, staffSessions, hasher, log)
	businessService := service.NewBusinessService(businessRepo, log)
	clientService := service.NewClientService(clientRepo, membershipRepo, businessRepo, clientSessions, hasher, log)
	verificationService := service.NewVerificationService(clientRepo, codeRepo, sender, service.VerificationOptions{
		TTL:    cfg.VerificationCodeTTL,
		Pepper: cfg.JWTSecret,
	}, log)

	attempts, stopAttempts := newAttemptLimiter(ctx, cfg, log)
	defer stopAttempts()

	router, err := httphandler.NewRouter(httphandler.RouterConfig{
		Log:           log,
		DevMode:       cfg.DevMode,
		RateLimitIP:   cfg.RateLimitIP,
		Attempts:      attempts,
		Tokens:        tokens,
		Staff:         staffRepo,
		Clients:       clientRepo,
		Health:        handlers.NewHealthHandler(database),
		Auth:          handlers.NewAuthHandler(staffSessions, staffService, attempts, log),
		Users:         handlers.NewUsersHandler(staffService, log),
		Business:      handlers.NewBusinessHandler(businessService, log),
		ClientsAPI:    handlers.NewClientsHandler(clientSessions, clientService, attempts, log),
		Notifications: handlers.NewNotificationsHandler(verificationService, attempts, log),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build router")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	log.Info().Msg("server exited")
}

// newAttemptLimiter shares attempt counts across instances through Redis when
// REDIS_ADDR is set, and falls back to a per-process window otherwise.
func newAttemptLimiter(ctx context.Context, cfg *config.Config, log zerolog.Logger) (middleware.Limiter, func()) {
	if cfg.RedisAddr != "" {
		rdb, err := middleware.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err == nil {
			log.Info().Str("addr", cfg.RedisAddr).Msg("attempt limiter backed by redis")
			l := middleware.NewRedisLimiter(rdb, "sppt:attempts", cfg.LoginAttemptWindow, cfg.LoginAttemptsPerWindow)
			return l, func() { _ = rdb.Close() }
		}
		log.Warn().Err(err).Msg("redis unavailable, using in-memory attempt limiter")
	}
	l := middleware.NewMemoryLimiter(cfg.LoginAttemptWindow, cfg.LoginAttemptsPerWindow)
	return l, l.Stop
}
