package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"luka-points/config"
	httpHandler "luka-points/internal/adapter/http/handler"
	"luka-points/internal/adapter/storage/localstore"
	pgStorage "luka-points/internal/adapter/storage/postgres"
	redisStorage "luka-points/internal/adapter/storage/redis"
	"luka-points/internal/adapter/storage/remote"
	"luka-points/internal/core/ports"
	"luka-points/internal/service"
	"luka-points/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("backend", cfg.Transfer.Backend).
		Int("port", cfg.Server.Port).
		Msg("Starting Luka Points")

	ctx := context.Background()

	// Initialize PostgreSQL pool. Accounts and auth always live here;
	// transfer.backend only selects where balances are kept.
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// Initialize repositories
	accountRepo := pgStorage.NewAccountRepo(pool)
	transferRepo := pgStorage.NewTransferRepo(pool)
	transactor := pgStorage.NewTransactor(pool)
	pgStore := pgStorage.NewStore(accountRepo, transferRepo, transactor, log)

	healthCheckers := []ports.HealthChecker{pgStorage.NewHealthCheck(pool)}

	// Select the balance backend for the transfer flow.
	var (
		balanceStore ports.BalanceStore
		transferLog  ports.TransferLog
	)
	switch cfg.Transfer.Backend {
	case "remote":
		client := remote.NewClient(remote.Config{
			BaseURL: cfg.Remote.BaseURL,
			Token:   cfg.Remote.Token,
			Timeout: cfg.Remote.Timeout,
		}, log)
		balanceStore, transferLog = client, client
		healthCheckers = append(healthCheckers, client)
	case "local":
		store, err := localstore.Open(cfg.LocalStore.Path)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.LocalStore.Path).Msg("Failed to open local store")
		}
		defer store.Close()
		balanceStore, transferLog = store, store
	default:
		balanceStore, transferLog = pgStore, pgStore
	}

	// Initialize Redis for rate limiting. Throttling is best-effort, so
	// a missing Redis degrades rather than aborts.
	var rateLimitStore *redisStorage.RateLimitStore
	if rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log); err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, rate limiting disabled")
	} else {
		defer rdb.Close()
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	}

	// Initialize core services
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	authSvc := service.NewAuthService(accountRepo, hashSvc, tokenSvc, cfg.Points.StartingBalance)
	transferSvc := service.NewTransferService(
		balanceStore,
		transferLog,
		service.TransferMode(cfg.Transfer.Mode),
		log,
	)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		TransferSvc:    transferSvc,
		BalanceStore:   balanceStore,
		TransferLog:    transferLog,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: healthCheckers,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
