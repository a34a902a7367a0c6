package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"candidash/internal/config"
	"candidash/internal/db"
	"candidash/internal/email"
	apihttp "candidash/internal/http"
	"candidash/internal/repository"
	"candidash/internal/scheduler"
	"candidash/internal/service"
	"candidash/internal/storage"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Coste bcrypt de los codigos de recuperacion.
const recoveryCodeBcryptCost = 10

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
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

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	userRepo := repository.NewPgUserRepository(pool)
	pendingRepo := repository.NewPgPendingUserRepository(pool)
	codeRepo := repository.NewPgVerificationCodeRepository(pool)
	jobTrackRepo := repository.NewPgJobTrackRepository(pool)
	reminderRepo := repository.NewPgReminderRepository(pool)

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	limits := apihttp.RateLimits{
		Login:    service.NewMemoryRateLimiter(time.Minute, 5),
		Register: service.NewMemoryRateLimiter(time.Minute, 3),
		Verify:   service.NewMemoryRateLimiter(time.Minute, 5),
		Resend:   service.NewMemoryRateLimiter(time.Minute, 3),
	}
	resetLimiter := service.NewMemoryRateLimiter(time.Hour, 3)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()

		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory rate limits", zap.Error(err))
		} else {
			limits = apihttp.RateLimits{
				Login:    service.NewRedisRateLimiter(redisClient, "login", time.Minute, 5),
				Register: service.NewRedisRateLimiter(redisClient, "register", time.Minute, 3),
				Verify:   service.NewRedisRateLimiter(redisClient, "verify", time.Minute, 5),
				Resend:   service.NewRedisRateLimiter(redisClient, "resend", time.Minute, 3),
			}
			resetLimiter = service.NewRedisRateLimiter(redisClient, "reset", time.Hour, 3)
		}
		cancel()
	}

	cipher, err := service.NewSecretCipher(cfg.TOTPEncryptionKey)
	if err != nil {
		logger.Fatal("totp encryption key", zap.Error(err))
	}
	objectStore, err := storage.NewS3Store(ctx, storage.S3Config{
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	})
	if err != nil {
		logger.Fatal("s3 init", zap.Error(err))
	}

	hasher := service.NewPasswordHasher(cfg.BcryptCost)
	jwtSvc := service.NewJWTService(cfg.JWTSecret)
	totpSvc := service.NewTOTPService(cipher, service.NewPasswordHasher(recoveryCodeBcryptCost), cfg.TOTPIssuer)
	pendingSvc := service.NewPendingUserService(userRepo, pendingRepo, hasher)
	verificationSvc := service.NewVerificationService(codeRepo, emailSender)
	authSvc := service.NewAuthService(logger, userRepo, hasher, jwtSvc, totpSvc, pendingSvc, verificationSvc)
	userSvc := service.NewUserService(logger, userRepo, hasher, emailSender, resetLimiter, cfg.FrontendURL)
	jobTrackSvc := service.NewJobTrackService(logger, jobTrackRepo)
	documentSvc := service.NewDocumentService(logger, jobTrackSvc, jobTrackRepo, objectStore, service.DocumentBuckets{
		CV: cfg.S3BucketCV,
		LM: cfg.S3BucketLM,
	})
	reminderSvc := service.NewReminderService(logger, reminderRepo, jobTrackSvc, emailSender)

	authHandler := apihttp.NewAuthHandler(logger, authSvc, apihttp.CookieConfig{Secure: cfg.IsProduction()})
	router := apihttp.NewRouter(logger, jwtSvc, limits, apihttp.Handlers{
		Auth:      authHandler,
		TOTP:      apihttp.NewTOTPHandler(logger, authSvc, authHandler),
		Users:     apihttp.NewUserHandler(logger, userSvc),
		JobTracks: apihttp.NewJobTrackHandler(logger, jobTrackSvc),
		Documents: apihttp.NewDocumentHandler(logger, documentSvc),
		Reminders: apihttp.NewReminderHandler(logger, reminderSvc),
	})

	jobs := scheduler.New(
		scheduler.NewReminderWorker(reminderSvc, cfg.ReminderInterval, logger),
		scheduler.NewCleanupWorker(pendingSvc, verificationSvc, cfg.CleanupInterval, logger),
	)
	jobs.Start(ctx)
	defer jobs.Stop()

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
}
