package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pagforte/payment-gateway/internal/adapter"
	"github.com/pagforte/payment-gateway/internal/di"
	"github.com/pagforte/payment-gateway/internal/domain"
	"github.com/pagforte/payment-gateway/internal/metrics"
	"github.com/pagforte/payment-gateway/internal/repository"
	"github.com/pagforte/payment-gateway/internal/service"
	"github.com/pagforte/payment-gateway/internal/worker"
	"github.com/pagforte/payment-gateway/pkg/config"
	"github.com/pagforte/payment-gateway/pkg/database"
	"github.com/pagforte/payment-gateway/pkg/kafka"
	"github.com/pagforte/payment-gateway/pkg/logger"
	"github.com/pagforte/payment-gateway/pkg/middleware"
	pkgredis "github.com/pagforte/payment-gateway/pkg/redis"
	"github.com/pagforte/payment-gateway/pkg/telemetry"
)

func main() {
	// Optimize Go runtime for high concurrency
	runtime.GOMAXPROCS(runtime.NumCPU())

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logLevel := "info"
	if cfg.App.Debug {
		logLevel = "debug"
	}
	logCfg := &logger.Config{
		Level:       logLevel,
		ServiceName: "payment-gateway",
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting Payment Gateway...")

	ctx := context.Background()

	// Initialize OpenTelemetry
	if cfg.OTel.Enabled {
		if _, err := telemetry.Init(ctx, &telemetry.Config{
			Enabled:        true,
			ServiceName:    cfg.OTel.ServiceName,
			ServiceVersion: cfg.App.Version,
			Environment:    cfg.App.Environment,
			CollectorAddr:  cfg.OTel.CollectorAddr,
		}); err != nil {
			appLog.Warn("Telemetry init failed", zap.Error(err))
		} else {
			defer telemetry.Shutdown(ctx)
		}
	}
	if err := metrics.Init(); err != nil {
		appLog.Warn("Metrics init failed", zap.Error(err))
	}

	// Initialize database connection
	var db *database.PostgresDB
	dbCfg := &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MaxIdleConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  5 * time.Second,
		MaxRetries:      3,
		RetryInterval:   time.Second,
		EnableTracing:   cfg.OTel.Enabled,
		ServiceName:     cfg.OTel.ServiceName,
	}
	db, err = database.NewPostgres(ctx, dbCfg)
	if err != nil {
		appLog.Warn("Database connection failed", zap.Error(err))
	} else {
		defer db.Close()
		appLog.Info("Database connected")
	}

	// Initialize Redis connection
	var redisClient *pkgredis.Client
	redisCfg := &pkgredis.Config{
		Host:          cfg.Redis.Host,
		Port:          cfg.Redis.Port,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		PoolSize:      cfg.Redis.PoolSize,
		MinIdleConns:  cfg.Redis.MinIdleConns,
		DialTimeout:   cfg.Redis.DialTimeout,
		ReadTimeout:   cfg.Redis.ReadTimeout,
		WriteTimeout:  cfg.Redis.WriteTimeout,
		MaxRetries:    3,
		RetryInterval: 100 * time.Millisecond,
	}
	redisClient, err = pkgredis.NewClient(ctx, redisCfg)
	if err != nil {
		appLog.Warn("Redis connection failed", zap.Error(err))
	} else {
		defer redisClient.Close()
		appLog.Info("Redis connected")
	}

	// Initialize Kafka producer for the delivery DLQ
	var producer *kafka.Producer
	producer, err = kafka.NewProducer(ctx, &kafka.ProducerConfig{
		Brokers:  cfg.Kafka.Brokers,
		ClientID: cfg.Kafka.ClientID,
	})
	if err != nil {
		appLog.Warn("Kafka connection failed, DLQ disabled", zap.Error(err))
		producer = nil
	} else {
		defer producer.Close()
		appLog.Info("Kafka producer connected")
	}

	// Initialize repositories
	var (
		transactionRepo repository.TransactionRepository
		merchantRepo    repository.MerchantRepository
		webhookRepo     repository.WebhookRepository
	)
	if db != nil {
		transactionRepo = repository.NewPostgresTransactionRepository(db)
		merchantRepo = repository.NewPostgresMerchantRepository(db)
		webhookRepo = repository.NewPostgresWebhookRepository(db)
		appLog.Info("Using PostgreSQL repositories")
	} else {
		transactionRepo = repository.NewMemoryTransactionRepository()
		merchantRepo = repository.NewMemoryMerchantRepository()
		webhookRepo = repository.NewMemoryWebhookRepository()
		appLog.Warn("Using in-memory repositories (data will not persist)")
	}

	// Build dependency injection container
	container := di.NewContainer(&di.ContainerConfig{
		DB:              db,
		Redis:           redisClient,
		KafkaProducer:   producer,
		TransactionRepo: transactionRepo,
		MerchantRepo:    merchantRepo,
		WebhookRepo:     webhookRepo,
		ServiceConfig: &service.PaymentServiceConfig{
			Currency:     cfg.Gateway.Currency,
			MaxFailovers: cfg.Gateway.MaxFailovers,
		},
		HealthCheckInterval: cfg.Gateway.HealthCheckInterval,
		RebalanceInterval:   cfg.Gateway.RebalanceInterval,
		SweepBatchSize:      cfg.Webhook.SweepBatchSize,
		WebhookRetention:    cfg.Webhook.Retention,
		DLQSource:           cfg.App.Name,
	})

	if err := seedProcessors(container, appLog); err != nil {
		appLog.Fatal("Failed to seed processors", zap.Error(err))
	}

	// Background loops keeping routing state fresh. The processor registry
	// is process-local, so health, priority and daily-volume maintenance
	// must run inside the API process.
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	go container.HealthMonitor.Start(workerCtx)
	go container.Rebalancer.Start(workerCtx)

	resetWorker := worker.NewResetWorker(container.Ledger)
	if err := resetWorker.Start(workerCtx); err != nil {
		appLog.Fatal("Failed to start reset worker", zap.Error(err))
	}
	defer resetWorker.Stop()

	// Setup Gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.OTel.Enabled {
		router.Use(telemetry.TracingMiddleware(cfg.OTel.ServiceName))
	}

	// Health check endpoints
	router.GET("/health", container.HealthHandler.Health)
	router.GET("/ready", container.HealthHandler.Ready)

	// API routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/status", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"version": cfg.App.Version,
				"service": "payment-gateway",
			})
		})

		auth := middleware.MerchantAuth(&middleware.AuthConfig{
			Secret: cfg.JWT.Secret,
			Issuer: cfg.JWT.Issuer,
		})

		var idempotencyConfig *middleware.IdempotencyConfig
		if redisClient != nil {
			idempotencyConfig = middleware.DefaultIdempotencyConfig(redisClient.Client())
			idempotencyConfig.SkipPaths = []string{"/health", "/ready"}
		}

		transactions := v1.Group("/transactions", auth)
		{
			if idempotencyConfig != nil {
				transactions.POST("", middleware.IdempotencyMiddleware(idempotencyConfig), container.PaymentHandler.AuthorizePayment)
				transactions.POST("/:id/capture", middleware.IdempotencyMiddleware(idempotencyConfig), container.PaymentHandler.CaptureTransaction)
				transactions.POST("/:id/void", middleware.IdempotencyMiddleware(idempotencyConfig), container.PaymentHandler.VoidTransaction)
			} else {
				transactions.POST("", container.PaymentHandler.AuthorizePayment)
				transactions.POST("/:id/capture", container.PaymentHandler.CaptureTransaction)
				transactions.POST("/:id/void", container.PaymentHandler.VoidTransaction)
			}

			transactions.GET("", container.PaymentHandler.GetMerchantTransactions)
			transactions.GET("/:id", container.PaymentHandler.GetTransaction)
			transactions.GET("/:id/notifications", container.NotificationHandler.GetTransactionNotifications)
		}

		notifications := v1.Group("/notifications", auth)
		{
			notifications.POST("/:id/redeliver", container.NotificationHandler.RedeliverNotification)
		}

		// Operational endpoints for the processor roster
		processors := v1.Group("/processors", auth)
		{
			processors.GET("", container.ProcessorHandler.ListProcessors)
			processors.GET("/:code", container.ProcessorHandler.GetProcessor)
			processors.PATCH("/:code/state", container.ProcessorHandler.UpdateProcessorState)
		}
	}

	// Create HTTP server
	port := getEnvInt("PORT", cfg.Server.Port)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	// Start server in goroutine
	go func() {
		appLog.Info("Payment Gateway listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	stopWorkers()

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Fatal("Server forced to shutdown", zap.Error(err))
	}

	appLog.Info("Server exited gracefully")
}

// seedProcessors registers the processor roster and their adapters. Stripe
// backs the international card rail when a key is configured; the domestic
// acquirers run against the mock adapter until their connectors ship.
func seedProcessors(c *di.Container, appLog *logger.Logger) error {
	successRate := getEnvFloat("MOCK_ADAPTER_SUCCESS_RATE", 0.97)
	delayMs := getEnvInt("MOCK_ADAPTER_DELAY_MS", 120)
	mockCfg := &adapter.MockAdapterConfig{SuccessRate: successRate, DelayMs: delayMs}

	roster := []*domain.Processor{
		{
			Code:           "cielo",
			Name:           "Cielo",
			Kind:           domain.ProcessorKindAcquirer,
			OperatingState: domain.OperatingStateEnabled,
			HealthState:    domain.HealthStateUp,
			Priority:       10,
			Weight:         100,
			Capabilities:   domain.Capabilities{Capture: true, Void: true, Refund: true, MaxInstallments: 12},
			DailyCeiling:   500_000_000,
		},
		{
			Code:           "rede",
			Name:           "Rede",
			Kind:           domain.ProcessorKindAcquirer,
			OperatingState: domain.OperatingStateEnabled,
			HealthState:    domain.HealthStateUp,
			Priority:       20,
			Weight:         80,
			Capabilities:   domain.Capabilities{Capture: true, Void: true, Refund: true, MaxInstallments: 12},
			DailyCeiling:   300_000_000,
		},
		{
			Code:           "getnet",
			Name:           "Getnet",
			Kind:           domain.ProcessorKindSubacquirer,
			OperatingState: domain.OperatingStateEnabled,
			HealthState:    domain.HealthStateUp,
			Priority:       30,
			Weight:         60,
			Capabilities:   domain.Capabilities{Capture: true, Void: true, MaxInstallments: 6},
			DailyCeiling:   200_000_000,
		},
	}

	for _, p := range roster {
		if err := c.Processors.Register(p); err != nil {
			return err
		}
		if err := c.Adapters.Register(adapter.NewMockAdapter(p.Code, mockCfg)); err != nil {
			return err
		}
	}

	if stripeKey := os.Getenv("STRIPE_SECRET_KEY"); stripeKey != "" {
		stripeAdapter, err := adapter.NewStripeAdapter("stripe", &adapter.StripeAdapterConfig{
			SecretKey:   stripeKey,
			Environment: getEnv("STRIPE_ENVIRONMENT", "test"),
		})
		if err != nil {
			return err
		}
		if err := c.Processors.Register(&domain.Processor{
			Code:           "stripe",
			Name:           "Stripe",
			Kind:           domain.ProcessorKindFacilitator,
			OperatingState: domain.OperatingStateEnabled,
			HealthState:    domain.HealthStateUp,
			Priority:       40,
			Weight:         40,
			Capabilities:   domain.Capabilities{Capture: true, Void: true, Refund: true, MaxInstallments: 1},
		}); err != nil {
			return err
		}
		if err := c.Adapters.Register(stripeAdapter); err != nil {
			return err
		}
		appLog.Info("Stripe adapter registered")
	}

	appLog.Info("Processor roster seeded", zap.Int("processors", len(c.Processors.List())), zap.Float64("mock_success_rate", successRate))
	return nil
}

// getEnv returns environment variable or default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns environment variable as int or default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}

// getEnvFloat returns environment variable as float64 or default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.ParseFloat(value, 64); err == nil {
			return result
		}
	}
	return defaultValue
}
