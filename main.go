package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/saisiddhant-g/ayurnxt-backend/internal/audit"
	"github.com/saisiddhant-g/ayurnxt-backend/internal/azure"
	"github.com/saisiddhant-g/ayurnxt-backend/internal/config"
	"github.com/saisiddhant-g/ayurnxt-backend/internal/handler"
	"github.com/saisiddhant-g/ayurnxt-backend/internal/middleware"
	"github.com/saisiddhant-g/ayurnxt-backend/internal/pdf"
	"github.com/saisiddhant-g/ayurnxt-backend/internal/protocol"
	"github.com/saisiddhant-g/ayurnxt-backend/internal/repository"
	"github.com/saisiddhant-g/ayurnxt-backend/internal/security"
	"github.com/saisiddhant-g/ayurnxt-backend/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize Zap logger
	var logger *zap.Logger
	if cfg.Server.Environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting AyurNxt backend",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.Float64("duration_scale", cfg.Therapy.DurationScale),
	)

	// Initialize database connection pool with pgx
	ctx := context.Background()
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to parse database config", zap.Error(err))
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.Database.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.Database.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal("Failed to create database pool", zap.Error(err))
	}
	defer pool.Close()

	// Verify database connection
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}
	logger.Info("Database connection established")

	// Blob storage holds the generated report PDFs
	blobClient, err := azure.NewBlobStorageClient(
		cfg.Azure.Storage.AccountName,
		cfg.Azure.Storage.AccountKey,
		cfg.Azure.Storage.ReportContainer,
		logger,
	)
	if err != nil {
		logger.Fatal("Failed to initialize blob storage client", zap.Error(err))
	}

	// AI guidance is optional; reports render without it when unconfigured
	var advice service.AdviceGenerator
	if cfg.OpenAIEnabled() {
		openAIClient, err := azure.NewOpenAIClient(
			cfg.Azure.OpenAI.Endpoint,
			cfg.Azure.OpenAI.APIKey,
			cfg.Azure.OpenAI.Deployment,
			logger,
		)
		if err != nil {
			logger.Fatal("Failed to initialize Azure OpenAI client", zap.Error(err))
		}
		advice = openAIClient
		logger.Info("Azure OpenAI guidance enabled",
			zap.String("deployment", cfg.Azure.OpenAI.Deployment),
		)
	} else {
		logger.Info("Azure OpenAI not configured, reports render without guidance")
	}

	// Protocol core
	clock := protocol.SystemClock()
	catalog := protocol.NewCatalog()

	// Repositories
	sessionRepo := repository.NewSessionRepository(pool, logger)

	// Audit trail
	auditLogger := audit.NewLogger(pool, logger)

	// Services
	orchestrator := service.NewSessionOrchestrator(
		sessionRepo,
		catalog,
		clock,
		cfg.Therapy.DurationScale,
		logger,
	)
	complianceService := service.NewComplianceService(sessionRepo, catalog, clock, advice, logger)
	privacyService := service.NewPrivacyService(sessionRepo, orchestrator, blobClient, auditLogger, logger)
	pdfGenerator := pdf.NewPDFGenerator(logger)

	// Optional encryption at rest for report blobs
	var encryptor *security.Encryptor
	if key := cfg.ReportEncryptionKey(); key != nil {
		encryptor, err = security.NewEncryptor(key)
		if err != nil {
			logger.Fatal("Failed to initialize report encryptor", zap.Error(err))
		}
		logger.Info("Report encryption at rest enabled")
	}

	reportService := service.NewReportService(
		sessionRepo,
		catalog,
		blobClient,
		pdfGenerator,
		advice,
		encryptor,
		logger,
	)

	// Handlers
	healthHandler := handler.NewHealthHandler(pool, logger)
	sessionHandler := handler.NewSessionHandler(orchestrator, auditLogger, logger)
	protocolHandler := handler.NewProtocolHandler(catalog, logger)
	complianceHandler := handler.NewComplianceHandler(complianceService, logger)
	reportHandler := handler.NewReportHandler(reportService, logger)
	privacyHandler := handler.NewPrivacyHandler(privacyService, logger)
	preferencesHandler := handler.NewPreferencesHandler(sessionRepo, logger)

	// Initialize Gin router
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// Recovery middleware with panic logging
	r.Use(middleware.RecoveryMiddleware(logger))

	// CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// Request ID middleware
	r.Use(middleware.RequestIDMiddleware())

	// Request logging middleware
	r.Use(middleware.RequestLoggingMiddleware(logger))

	// Error logging middleware
	r.Use(middleware.ErrorLoggingMiddleware(logger))

	// Slow query logging middleware
	r.Use(middleware.SlowQueryLoggingMiddleware(logger, 1*time.Second))

	registerRoutes(r,
		healthHandler,
		sessionHandler,
		protocolHandler,
		complianceHandler,
		reportHandler,
		privacyHandler,
		preferencesHandler,
	)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited gracefully")
}

// registerRoutes wires every endpoint onto the router.
func registerRoutes(
	r *gin.Engine,
	health *handler.HealthHandler,
	session *handler.SessionHandler,
	protocols *handler.ProtocolHandler,
	compliance *handler.ComplianceHandler,
	reports *handler.ReportHandler,
	privacy *handler.PrivacyHandler,
	preferences *handler.PreferencesHandler,
) {
	r.GET("/health", health.GetHealth)

	api := r.Group("/api/v1")

	catalogGroup := api.Group("/protocols")
	{
		catalogGroup.GET("/modes", protocols.GetModes)
		catalogGroup.GET("/conditions", protocols.GetConditions)
		catalogGroup.GET("/conditions/:category", protocols.GetCondition)
	}

	therapy := api.Group("/therapy")
	{
		therapy.POST("/scan/begin", session.PostScanBegin)
		therapy.POST("/scan/complete", session.PostScanComplete)
		therapy.POST("/setup", session.PostSetup)
		therapy.POST("/start", session.PostStart)
		therapy.POST("/tick", session.PostTick)
		therapy.POST("/sensation", session.PostSensation)
		therapy.POST("/acknowledge-end", session.PostAcknowledgeEnd)
		therapy.POST("/pain-log", session.PostPainLog)
		therapy.POST("/new-session", session.PostNewSession)
		therapy.POST("/idle", session.PostIdle)
		therapy.GET("/status/:userId", session.GetStatus)
	}

	complianceGroup := api.Group("/compliance")
	{
		complianceGroup.GET("/:userId/overview", compliance.GetOverview)
		complianceGroup.GET("/:userId/metrics", compliance.GetMetrics)
		complianceGroup.GET("/:userId/history", compliance.GetHistory)
		complianceGroup.GET("/:userId/history/export", compliance.ExportHistory)
	}

	reportGroup := api.Group("/reports")
	{
		reportGroup.POST("/generate", reports.PostGenerate)
		reportGroup.GET("/:userId", reports.GetReports)
		reportGroup.GET("/:userId/:reportId/download", reports.GetDownload)
	}

	users := api.Group("/users")
	{
		users.DELETE("/:userId/data", privacy.DeleteUserData)
		users.GET("/:userId/export", privacy.ExportUserData)
		users.GET("/:userId/preferences", preferences.GetPreferences)
		users.PUT("/:userId/preferences", preferences.PutPreferences)
	}
}
