package handler

import (
	"luka-points/internal/adapter/http/middleware"
	redisStore "luka-points/internal/adapter/storage/redis"
	"luka-points/internal/core/domain"
	"luka-points/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	TransferSvc    ports.TransferService
	BalanceStore   ports.BalanceStore
	TransferLog    ports.TransferLog
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies the active backends)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	accountHandler := NewAccountHandler(deps.BalanceStore)
	accounts := v1.Group("/accounts", jwtAuth)
	{
		accounts.GET("/balance", rl("accounts"), accountHandler.GetBalance)
		accounts.GET("/exists/:ref", rl("accounts"), accountHandler.Exists)
		accounts.PUT("/balance", rl("accounts"),
			middleware.RequireRole(domain.RoleAdmin), accountHandler.SetBalance)
	}

	transferHandler := NewTransferHandler(deps.TransferSvc, deps.TransferLog)
	transfers := v1.Group("/transfers", jwtAuth)
	{
		transfers.POST("", rl("transfers"), transferHandler.Create)
		transfers.POST("/records", rl("transfers"), transferHandler.AppendRecord)
		transfers.GET("/account/:ref", rl("accounts"), transferHandler.History)
		transfers.GET("/:id", rl("accounts"), transferHandler.Get)
	}

	return r
}
