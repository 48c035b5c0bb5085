package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"timeoff-manager/internal/config"
	"timeoff-manager/internal/db"
	"timeoff-manager/internal/email"
	apihttp "timeoff-manager/internal/http"
	"timeoff-manager/internal/realtime"
	"timeoff-manager/internal/repository"
	"timeoff-manager/internal/service"
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

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := db.Ping(pingCtx, pool); err != nil {
		logger.Warn("db ping failed", zap.Error(err))
	}
	cancel()

	userRepo := repository.NewPgUserRepository(pool)
	leaveRepo := repository.NewPgLeaveRequestRepository(pool)

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
		confirmations service.ConfirmationTokenStore
		loginLimiter  service.LoginLimiter
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()

		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory stores", zap.Error(err))
		} else {
			confirmations = service.NewRedisConfirmationTokenStore(redisClient)
			loginLimiter = service.NewRedisLoginLimiter(redisClient, logger)
		}
		cancel()
	}

	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}
	jwtSvc := service.NewJWTService(cfg.JWTSecret)
	sessionSvc := service.NewSessionService(jwtSvc, userRepo)
	userSvc := service.NewUserService(logger, userRepo, jwtSvc, confirmations, emailSender, loginLimiter, service.UserServiceOptions{
		AccessTTL:     time.Duration(cfg.JWTAccessTTLMinutes) * time.Minute,
		PublicBaseURL: cfg.PublicBaseURL,
	})

	registry := realtime.NewRegistry(logger, sessionSvc, realtime.Options{})
	leaveSvc := service.NewLeaveRequestService(logger, leaveRepo, userRepo, registry)

	handlers := apihttp.Handlers{
		User:  apihttp.NewUserHandler(logger, userSvc),
		Leave: apihttp.NewLeaveRequestHandler(logger, leaveSvc),
		WS:    apihttp.NewWSHandler(logger, registry, cfg.CORSAllowedOrigins),
	}
	if google := service.NewGoogleOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL); google != nil {
		handlers.Google = apihttp.NewGoogleHandler(logger, google, userSvc, cfg.FrontendURL)
	} else {
		logger.Warn("google oauth not configured")
	}
	router := apihttp.NewRouter(logger, sessionSvc, cfg.CORSAllowedOrigins, handlers)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		return server.ListenAndServe()
	})
	g.Go(func() error {
		logger.Info("starting metrics server", zap.String("addr", cfg.MetricsAddr))
		return metricsServer.ListenAndServe()
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down")
		registry.CloseAll("Server shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Join(server.Shutdown(shutdownCtx), metricsServer.Shutdown(shutdownCtx))
	})

	if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", zap.Error(err))
	}
}
