package handler

import (
	"ride-settlement/internal/adapter/http/middleware"
	redisStore "ride-settlement/internal/adapter/storage/redis"
	"ride-settlement/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	TopupSvc          ports.TopupService
	OrderSvc          ports.OrderService
	WalletSvc         ports.WalletService
	ReconciliationSvc ports.ReconciliationService
	TokenSvc          ports.TokenService         // nil = auth disabled
	RateLimitStore    *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers    []ports.HealthChecker
	AuditSvc          ports.AuditService // nil = audit logging disabled
	Logger            zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.MaxBodySize(1 << 20))

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rules[group], deps.Logger)
	}

	v1 := r.Group("/api/v1")
	if deps.TokenSvc != nil {
		v1.Use(middleware.JWTAuth(deps.TokenSvc, deps.Logger))
	}
	// Audit runs after auth so the actor is known.
	if deps.AuditSvc != nil {
		v1.Use(middleware.AuditLog(deps.AuditSvc))
	}

	walletHandler := NewWalletHandler(deps.WalletSvc, deps.ReconciliationSvc)
	topupHandler := NewTopupHandler(deps.TopupSvc)
	orderHandler := NewOrderHandler(deps.OrderSvc)

	balances := v1.Group("/drivers-balance")
	{
		balances.POST("/:driverId/wallet", rl(middleware.GroupWallets), walletHandler.OpenWallet)
		balances.GET("/:driverId", rl(middleware.GroupReads), walletHandler.GetBalance)
		balances.GET("/:driverId/movements", rl(middleware.GroupReads), walletHandler.ListMovements)
		balances.GET("/:driverId/reconciliation", rl(middleware.GroupReads), walletHandler.Reconcile)
		balances.POST("/:driverId/topups", rl(middleware.GroupTopups), topupHandler.CreatePending)
		balances.POST("/topups/:ccrId/confirm", rl(middleware.GroupConfirmations), topupHandler.Confirm)
		balances.POST("/topups/:ccrId/fail", rl(middleware.GroupConfirmations), topupHandler.Fail)
	}

	orders := v1.Group("/orders")
	{
		orders.POST("/trips/:tripId", rl(middleware.GroupOrders), orderHandler.CreateOnTripClosure)
		orders.PATCH("/:orderId/confirm-cash", rl(middleware.GroupConfirmations), orderHandler.ConfirmCash)
		orders.GET("/:orderId", rl(middleware.GroupReads), orderHandler.Get)
		orders.PATCH("/:orderId", rl(middleware.GroupOrders), middleware.RequireRole(middleware.RoleAdmin), orderHandler.Update)
		orders.DELETE("/:orderId", rl(middleware.GroupOrders), middleware.RequireRole(middleware.RoleAdmin), orderHandler.Delete)
	}

	return r
}
