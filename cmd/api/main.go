package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	_ "github.com/joho/godotenv/autoload"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/creditiq/creditiq-api/docs" // Swagger docs
	"github.com/creditiq/creditiq-api/internal/config"
	"github.com/creditiq/creditiq-api/internal/database"
	"github.com/creditiq/creditiq-api/internal/handlers"
	"github.com/creditiq/creditiq-api/internal/jobs"
	"github.com/creditiq/creditiq-api/internal/middleware"
	"github.com/creditiq/creditiq-api/internal/repository"
	"github.com/creditiq/creditiq-api/internal/services"
	"github.com/creditiq/creditiq-api/internal/storage"
	"github.com/creditiq/creditiq-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// @title CreditIQ API
// @version 1.0
// @description REST API for the CreditIQ loan underwriting platform

// @contact.name API Support
// @contact.email support@creditiq.app

// @host localhost:8080
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Setup(cfg.Environment)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 0.2,
			Environment:      cfg.Environment,
		}); err != nil {
			logger.Error("Sentry initialization failed", "error", err)
		} else {
			logger.Info("Sentry initialized")
		}
	}

	if cfg.ResendAPIKey == "" || cfg.FromEmail == "" {
		logger.Warn("Resend email disabled: RESEND_API_KEY or FROM_EMAIL not set")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to database")

	if err := database.Migrate(db); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	archive, err := storage.NewLocalStorage(cfg.StoragePath)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	logger.Info("Initialized local storage")

	repos := repository.NewRepositories(db)

	worker := jobs.NewWorker(cfg.WorkerCount)
	logger.Info("Started background worker", "goroutines", cfg.WorkerCount)

	svcs := services.NewServices(repos, worker, archive, cfg)

	scheduleJobs(worker, svcs)

	h := handlers.NewHandlers(svcs)

	router := setupRouter(h, cfg)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	worker.Shutdown()
	logger.Info("Background worker stopped")

	if cfg.SentryDSN != "" {
		sentry.Flush(5 * time.Second)
	}

	logger.Info("Server exited gracefully")
}

func setupRouter(h *handlers.Handlers, cfg *config.Config) *gin.Engine {
	router := gin.New()

	if cfg.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// Redirect root to swagger
	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := router.Group("/api/v1")
	{
		// Health check (public)
		v1.GET("/health", h.Health.Index)

		// Authentication (public)
		auth := v1.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
		}

		// Protected routes (requires authentication)
		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTSecret))
		{
			protected.POST("/auth/logout", h.Auth.Logout)
			protected.GET("/auth/me", h.Auth.Me)

			// Admin-only routes
			admin := protected.Group("")
			admin.Use(middleware.RequireAdmin())
			{
				admin.GET("/users", h.User.Index)
				admin.PATCH("/users/:id", h.User.Update)

				admin.GET("/loans/stats", h.Loan.GetStats)

				admin.GET("/audits", h.Audit.Index)
				admin.GET("/audits/:entity_type/:entity_id", h.Audit.ByEntity)

				admin.GET("/reports/loans/csv", h.Report.LoansCSV)
				admin.GET("/reports/loans/xlsx", h.Report.LoansXLSX)
				admin.GET("/reports/loans/:id/pdf", h.Report.LoanPDF)
				admin.GET("/reports/audit/csv", h.Report.AuditCSV)
				admin.GET("/reports/stats", h.Report.Stats)
				admin.GET("/reports/stats/export", h.Report.StatsExport)

				admin.GET("/model-versions", h.ModelVersion.Index)
				admin.GET("/jobs/status", h.Job.Status)
			}

			// User profile (admin or the user themselves)
			protected.GET("/users/:id", middleware.RequireAdminOrOwner(), h.User.Show)
			protected.POST("/users/me/password", h.User.ChangePassword)

			// Loan applications (owner-scoped; admin sees all)
			loans := protected.Group("/loans")
			{
				loans.GET("", h.Loan.Index)
				loans.POST("", h.Loan.Create)
				loans.GET("/:id", h.Loan.Show)
				loans.PATCH("/:id", h.Loan.Update)
				loans.POST("/:id/submit", h.Loan.Submit)
				loans.GET("/:id/decisions", h.Loan.Decisions)
			}

			// User-scoped reports
			protected.GET("/reports/my-applications/csv", h.Report.MyApplicationsCSV)

			// Notifications
			// Static route first so "read-all" is not matched as :id
			notifications := protected.Group("/notifications")
			{
				notifications.GET("", h.Notification.Index)
				notifications.POST("/read-all", h.Notification.MarkAllAsRead)
				notifications.POST("/:id/read", h.Notification.MarkAsRead)
				notifications.DELETE("/:id", h.Notification.Delete)
			}
		}
	}

	return router
}

func scheduleJobs(worker *jobs.Worker, svcs *services.Services) {
	// Log scorer liveness so outages show up before users hit them
	worker.ScheduleEveryImmediate(5*time.Minute, func(ctx context.Context) error {
		if !svcs.ML.CheckHealth(ctx) {
			logger.Warn("[Job] Scoring service is unhealthy")
		}
		return nil
	})

	// Remind owners of drafts untouched for three days
	worker.ScheduleEvery(24*time.Hour, func(ctx context.Context) error {
		logger.Info("[Job] Sending stale draft reminders...")
		return svcs.Loan.RemindStaleDrafts(ctx, 72*time.Hour)
	})

	logger.Info("Scheduled recurring jobs")
}
