package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"moneta/internal/config"
	"moneta/internal/database"
	"moneta/internal/handlers"
	"moneta/internal/logger"
	"moneta/internal/middleware"
	"moneta/internal/prices"
	"moneta/internal/services"
	"moneta/internal/validator"
)

// @title           Moneta API
// @version         1.0
// @description     Moneta is a self-hosted personal finance application with an investment account valuation and ledger engine.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(appConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	// Run migrations
	if err := dbManager.Migrate(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Register custom binding validators
	validator.Register()

	// Initialize services
	db := dbManager.DB()
	userService := services.NewUserService(db)
	accountService := services.NewAccountService(db)
	transactionService := services.NewTransactionService(db, accountService)
	priceService := prices.NewService(appConfig)
	investmentService := services.NewInvestmentService(db, priceService)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService)
	accountHandler := handlers.NewAccountHandler(accountService, transactionService)
	investmentHandler := handlers.NewInvestmentHandler(investmentService)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 group
	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	protected.GET("/auth/me", authHandler.Me)

	// Generic account routes
	accounts := protected.Group("/accounts")
	accounts.GET("", accountHandler.GetAccounts)
	accounts.GET("/:id", accountHandler.GetAccount)
	accounts.GET("/:id/transactions", accountHandler.GetAccountTransactions)

	// Investment account routes
	investmentAccounts := protected.Group("/investment-accounts")
	investmentAccounts.POST("", investmentHandler.CreateAccount)
	investmentAccounts.GET("", investmentHandler.GetAccounts)
	investmentAccounts.GET("/:id", investmentHandler.GetAccount)
	investmentAccounts.DELETE("/:id", investmentHandler.DeleteAccount)
	investmentAccounts.GET("/:id/balance", investmentHandler.GetBalance)
	investmentAccounts.GET("/:id/ledger", investmentHandler.GetLedger)
	investmentAccounts.POST("/:id/trades", investmentHandler.CreateTrade)
	investmentAccounts.GET("/:id/trades", investmentHandler.GetTrades)
	investmentAccounts.POST("/:id/valuations", investmentHandler.RecordValuation)
	investmentAccounts.POST("/:id/recompute", investmentHandler.Recompute)

	// Trade routes addressed by trade ID
	trades := protected.Group("/investment-trades")
	trades.PUT("/:tradeID", investmentHandler.UpdateTrade)
	trades.DELETE("/:tradeID", investmentHandler.DeleteTrade)

	// Bulk refresh for the authenticated user
	protected.POST("/investments/refresh", investmentHandler.Refresh)

	// Start the server
	addr := ":" + appConfig.Port
	logger.Get().Infof("Starting server on %s", addr)
	return router.Run(addr)
}
