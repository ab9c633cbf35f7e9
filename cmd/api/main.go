package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"geumjjoki/internal/clock"
	"geumjjoki/internal/config"
	"geumjjoki/internal/database"
	"geumjjoki/internal/events"
	"geumjjoki/internal/handlers"
	"geumjjoki/internal/logger"
	"geumjjoki/internal/middleware"
	"geumjjoki/internal/services"
	"geumjjoki/internal/telemetry"
	"geumjjoki/internal/validator"

	_ "geumjjoki/internal/docs" // Import swagger docs
)

// @title           Geumjjoki API
// @version         1.0
// @description     Geumjjoki turns spending less into a game: join a challenge, keep a category's spending under target and earn points.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey AdminKey
// @in header
// @name X-API-Key

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "geumjjoki-api", appConfig.OTelEndpoint, appConfig.OTelEnabled)
	if err != nil {
		log.Warnw("tracing disabled", "error", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warnw("failed to flush traces", "error", err)
		}
	}()

	dbManager, err := database.NewManager(appConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	publisher := newPublisher(appConfig)
	defer publisher.Close()

	validator.Register()

	db := dbManager.DB()
	clk := clock.New(appConfig.Location())
	locks := services.NewUserLocks()

	auditService := services.NewAuditService(db)
	categoryService := services.NewCategoryService(db)
	attributionService := services.NewAttributionService(db, clk, locks)
	expenseService := services.NewExpenseService(db, clk, attributionService, locks)
	challengeService := services.NewChallengeService(db, clk, attributionService, publisher, locks)
	profileService := services.NewProfileService(db)
	userChallengeService := services.NewUserChallengeService(db, clk, profileService, publisher, locks)
	rewardService := services.NewRewardService(db, clk, profileService, publisher)

	router := newRouter(appConfig, routes{
		category:      handlers.NewCategoryHandler(categoryService),
		expense:       handlers.NewExpenseHandler(expenseService, auditService, clk),
		challenge:     handlers.NewChallengeHandler(challengeService, auditService),
		userChallenge: handlers.NewUserChallengeHandler(userChallengeService),
		profile:       handlers.NewProfileHandler(profileService),
		reward:        handlers.NewRewardHandler(rewardService, auditService),
		admin:         handlers.NewAdminHandler(userChallengeService, attributionService),
	})

	srv := &http.Server{Addr: ":" + appConfig.Port, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting Geumjjoki server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), appConfig.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newPublisher dials the broker when AMQP_URL is set. Without a broker the
// server runs with events dropped.
func newPublisher(cfg *config.Config) events.Publisher {
	if cfg.AMQPURL == "" {
		return events.Nop{}
	}
	publisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		logger.Get().Warnw("event publishing disabled", "error", err)
		return events.Nop{}
	}
	return publisher
}

type routes struct {
	category      *handlers.CategoryHandler
	expense       *handlers.ExpenseHandler
	challenge     *handlers.ChallengeHandler
	userChallenge *handlers.UserChallengeHandler
	profile       *handlers.ProfileHandler
	reward        *handlers.RewardHandler
	admin         *handlers.AdminHandler
}

func newRouter(cfg *config.Config, h routes) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.Tracing())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Catalog administration
	admin := v1.Group("/admin")
	admin.Use(middleware.AdminAuthMiddleware(cfg.AdminAPIKey))
	admin.POST("/categories", h.category.CreateCategory)
	admin.PUT("/categories/:id", h.category.UpdateCategory)
	admin.DELETE("/categories/:id", h.category.DeleteCategory)
	admin.POST("/challenges", h.challenge.CreateChallenge)
	admin.POST("/rewards", h.reward.CreateReward)
	admin.POST("/settle", h.admin.SettleDue)
	admin.POST("/users/:id/reattribute", h.admin.Reattribute)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	categories := protected.Group("/categories")
	categories.GET("", h.category.GetRootCategories)
	categories.GET("/:id", h.category.GetCategory)

	challenges := protected.Group("/challenges")
	challenges.GET("", h.challenge.GetChallenges)
	challenges.GET("/:id", h.challenge.GetChallenge)
	challenges.GET("/:id/status", h.challenge.GetChallengeStatus)
	challenges.POST("/:id/join", h.challenge.JoinChallenge)

	myChallenges := protected.Group("/my-challenges")
	myChallenges.GET("", h.userChallenge.GetMyChallenges)
	myChallenges.GET("/:id", h.userChallenge.GetMyChallenge)
	myChallenges.GET("/:id/status", h.userChallenge.GetMyChallengeStatus)

	expenses := protected.Group("/expenses")
	expenses.POST("", h.expense.CreateExpense)
	expenses.GET("", h.expense.GetExpenses)
	expenses.GET("/summary", h.expense.GetMonthlySummary)
	expenses.GET("/:id", h.expense.GetExpense)
	expenses.PUT("/:id", h.expense.UpdateExpense)
	expenses.DELETE("/:id", h.expense.DeleteExpense)

	profile := protected.Group("/profile")
	profile.GET("", h.profile.GetProfile)
	profile.GET("/points", h.profile.GetPointHistory)

	rewards := protected.Group("/rewards")
	rewards.GET("", h.reward.GetRewards)
	rewards.GET("/redemptions", h.reward.GetRedemptions)
	rewards.POST("/:id/redeem", h.reward.RedeemReward)

	return router
}
