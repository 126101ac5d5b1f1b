package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"membership-api/internal/config"
	"membership-api/internal/db"
	"membership-api/internal/email"
	apihttp "membership-api/internal/http"
	"membership-api/internal/notify"
	"membership-api/internal/repository"
	"membership-api/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if cfg.AutoMigrate {
		if err := migrateUp(cfg.DatabaseURL); err != nil {
			logger.Fatal("auto migrate", zap.Error(err))
		}
		logger.Info("migrations applied")
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	userRepo := repository.NewPgUserRepository(pool)
	messageRepo := repository.NewPgSystemMessageRepository(pool)

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	var (
		throttle    service.RequestThrottle
		tokenStore  service.RefreshTokenStore
		userCache   service.UserCache
		redisClient *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			throttle = service.NewRedisRequestThrottle(redisClient, cfg.ResetRequestWindow, cfg.ResetRequestMax)
			tokenStore = service.NewRedisRefreshTokenStore(redisClient)
			userCache = service.NewRedisUserCache(redisClient, cfg.UserCacheTTL)
		}
		cancel()
	}
	if throttle == nil {
		throttle = service.NewMemoryRequestThrottle(cfg.ResetRequestWindow, cfg.ResetRequestMax)
	}
	if userCache == nil {
		userCache = service.NewMemoryUserCache(cfg.UserCacheTTL)
	}

	jwtSvc := service.NewJWTServiceWithStore(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
		tokenStore,
	)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}

	deliverer := notify.NewDeliverer(logger, emailSender, messageRepo, cfg.NotifyMaxRetries)
	dispatcher := notify.NewDispatcher(logger, deliverer, cfg.NotifyWorkers, cfg.NotifyQueueSize)

	hasher := service.NewBcryptHasher(cfg.BcryptCost)
	userSvc := service.NewUserService(logger, userRepo, messageRepo, hasher, userCache, cfg.PasswordMinLength)
	passwordSvc := service.NewPasswordService(logger, userRepo, hasher, dispatcher, userCache, throttle, service.PasswordPolicy{
		MinLength: cfg.PasswordMinLength,
		ResetTTL:  cfg.ResetTokenTTL,
		ChangeTTL: cfg.ChangeTokenTTL,
		BaseURL:   cfg.AppBaseURL,
	})

	userHandler := apihttp.NewUserHandler(logger, userSvc, jwtSvc)
	passwordHandler := apihttp.NewPasswordHandler(logger, passwordSvc)
	router := apihttp.NewRouter(logger, userHandler, passwordHandler, passwordSvc, jwtSvc, func(ctx context.Context) error {
		return db.Ping(ctx, pool)
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("notification queue not drained", zap.Error(err))
	}
}

func migrateUp(databaseURL string) error {
	m, err := db.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up()
}
