package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"ride-settlement/config"
	httpHandler "ride-settlement/internal/adapter/http/handler"
	pgStorage "ride-settlement/internal/adapter/storage/postgres"
	redisStorage "ride-settlement/internal/adapter/storage/redis"
	"ride-settlement/internal/core/ports"
	"ride-settlement/internal/observability"
	"ride-settlement/internal/service"
	"ride-settlement/internal/worker"
	"ride-settlement/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load(os.Getenv("SETTLE_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)
	observability.Init()

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting ride settlement service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// Repositories
	walletRepo := pgStorage.NewWalletRepo(pool)
	movementRepo := pgStorage.NewMovementRepo(pool)
	txRepo := pgStorage.NewMoneyTransactionRepo(pool)
	recordRepo := pgStorage.NewCashCollectionRepo(pool)
	pointRepo := pgStorage.NewCollectionPointRepo(pool)
	orderRepo := pgStorage.NewOrderRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	transactor := pgStorage.NewTransactor(pool, cfg.Database.LockTimeout)

	confirmationCache := redisStorage.NewIdempotencyCache(rdb)

	commission, err := service.NewPercentageCommission(cfg.Settlement.CommissionRate, cfg.Settlement.CommissionMinimum)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid commission configuration")
	}

	topupSvc := service.NewTopupService(
		walletRepo, movementRepo, txRepo, recordRepo, pointRepo,
		confirmationCache, transactor, cfg.Settlement.IdempotencyTTL,
		logger.Component(log, "topup"),
	)
	orderSvc := service.NewOrderService(
		orderRepo, walletRepo, movementRepo, txRepo, commission,
		confirmationCache, transactor, cfg.Settlement.IdempotencyTTL,
		logger.Component(log, "order"),
	)
	walletSvc := service.NewWalletService(walletRepo, movementRepo, logger.Component(log, "wallet"))
	reconSvc := service.NewReconciliationService(walletRepo, movementRepo, cfg.Settlement.ReconciliationBatch, logger.Component(log, "reconciliation"))
	auditSvc := service.NewAuditService(auditRepo, logger.Component(log, "audit"))

	var tokenSvc ports.TokenService
	if cfg.JWT.Secret != "" {
		tokenSvc = service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	} else {
		log.Warn().Msg("JWT secret not configured, operator auth disabled")
	}

	var rateLimitStore *redisStorage.RateLimitStore
	if cfg.RateLimit.Enabled {
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
	}

	if cfg.Settlement.ReconciliationInterval > 0 {
		stopWorker := worker.NewReconciliationWorker(reconSvc, logger.Component(log, "reconciliation_worker")).
			WithInterval(cfg.Settlement.ReconciliationInterval).
			Run(ctx)
		defer stopWorker()
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		TopupSvc:          topupSvc,
		OrderSvc:          orderSvc,
		WalletSvc:         walletSvc,
		ReconciliationSvc: reconSvc,
		TokenSvc:          tokenSvc,
		RateLimitStore:    rateLimitStore,
		HealthCheckers:    []ports.HealthChecker{pgStorage.NewHealthCheck(pool), redisStorage.NewHealthCheck(rdb)},
		AuditSvc:          auditSvc,
		Logger:            log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
