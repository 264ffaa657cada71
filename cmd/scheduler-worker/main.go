package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pagforte/payment-gateway/internal/repository"
	"github.com/pagforte/payment-gateway/internal/webhook"
	"github.com/pagforte/payment-gateway/internal/worker"
	"github.com/pagforte/payment-gateway/pkg/config"
	"github.com/pagforte/payment-gateway/pkg/database"
	"github.com/pagforte/payment-gateway/pkg/kafka"
	"github.com/pagforte/payment-gateway/pkg/logger"
	pkgredis "github.com/pagforte/payment-gateway/pkg/redis"
	"github.com/pagforte/payment-gateway/pkg/retry"
)

func main() {
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
		ServiceName: "scheduler-worker",
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting Delivery Scheduler Worker...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The sweeps run off the delivery tables, so the worker cannot start
	// without a database.
	dbCfg := &database.PostgresConfig{
		Host:          cfg.Database.Host,
		Port:          cfg.Database.Port,
		User:          cfg.Database.User,
		Password:      cfg.Database.Password,
		Database:      cfg.Database.DBName,
		SSLMode:       cfg.Database.SSLMode,
		MaxConns:      10,
		MinConns:      2,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
	}
	db, err := database.NewPostgres(ctx, dbCfg)
	if err != nil {
		appLog.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	appLog.Info("Database connected")

	// Redis backs the dispatch locks; without it deliveries still go out,
	// just without cross-process dedup
	var redisClient *pkgredis.Client
	redisCfg := &pkgredis.Config{
		Host:          cfg.Redis.Host,
		Port:          cfg.Redis.Port,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		PoolSize:      20,
		MinIdleConns:  5,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
	}
	redisClient, err = pkgredis.NewClient(ctx, redisCfg)
	if err != nil {
		appLog.Warn("Redis connection failed, dispatch locks disabled", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
		appLog.Info("Redis connected")
	}

	// Kafka carries exhausted deliveries to the DLQ topic
	var dlq retry.DLQPublisher = retry.NewNoOpDLQPublisher()
	producer, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
		Brokers:  cfg.Kafka.Brokers,
		ClientID: "scheduler-worker",
	})
	if err != nil {
		appLog.Warn("Kafka connection failed, DLQ disabled", zap.Error(err))
	} else {
		defer producer.Close()
		dlqCfg := retry.DefaultDLQConfig()
		dlqCfg.Source = "scheduler-worker"
		dlq = retry.NewKafkaDLQPublisher(&retry.KafkaProducerAdapter{Producer: producer}, dlqCfg)
		appLog.Info("Kafka producer connected")
	}

	// Initialize repositories
	webhookRepo := repository.NewPostgresWebhookRepository(db)
	merchantRepo := repository.NewPostgresMerchantRepository(db)

	// Build the delivery pipeline
	dispatcher := webhook.NewDispatcher(webhookRepo, merchantRepo, redisClient, dlq, appLog)
	scheduler := webhook.NewScheduler(webhookRepo, dispatcher, cfg.Webhook.SweepBatchSize, cfg.Webhook.Retention, appLog)

	deliveryWorker := worker.NewDeliveryWorker(scheduler, &worker.DeliveryWorkerConfig{
		PendingInterval: cfg.Webhook.PendingSweepInterval,
		FailedInterval:  cfg.Webhook.FailedSweepInterval,
		PurgeInterval:   cfg.Webhook.PurgeInterval,
	})
	if err := deliveryWorker.Start(ctx); err != nil {
		appLog.Fatal("Failed to start delivery worker", zap.Error(err))
	}

	appLog.Info("Delivery Scheduler Worker started successfully",
		zap.Duration("pending_interval", cfg.Webhook.PendingSweepInterval),
		zap.Duration("failed_interval", cfg.Webhook.FailedSweepInterval),
		zap.Duration("purge_interval", cfg.Webhook.PurgeInterval),
	)

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("Shutting down worker...")
	cancel()
	deliveryWorker.Stop()

	appLog.Info("Worker exited gracefully")
}
