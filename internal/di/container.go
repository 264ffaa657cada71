package di

import (
	"time"

	"github.com/pagforte/payment-gateway/internal/capacity"
	"github.com/pagforte/payment-gateway/internal/handler"
	"github.com/pagforte/payment-gateway/internal/health"
	"github.com/pagforte/payment-gateway/internal/rebalance"
	"github.com/pagforte/payment-gateway/internal/registry"
	"github.com/pagforte/payment-gateway/internal/repository"
	"github.com/pagforte/payment-gateway/internal/routing"
	"github.com/pagforte/payment-gateway/internal/service"
	"github.com/pagforte/payment-gateway/internal/webhook"
	"github.com/pagforte/payment-gateway/pkg/database"
	"github.com/pagforte/payment-gateway/pkg/kafka"
	"github.com/pagforte/payment-gateway/pkg/logger"
	"github.com/pagforte/payment-gateway/pkg/redis"
	"github.com/pagforte/payment-gateway/pkg/retry"
)

// Container holds all dependencies for the payment gateway
type Container struct {
	// Infrastructure
	DB            *database.PostgresDB
	Redis         *redis.Client
	KafkaProducer *kafka.Producer

	// Repositories
	TransactionRepo repository.TransactionRepository
	MerchantRepo    repository.MerchantRepository
	WebhookRepo     repository.WebhookRepository

	// Registries
	Processors *registry.ProcessorRegistry
	Adapters   *registry.AdapterRegistry

	// Routing & capacity
	Engine        *routing.Engine
	Ledger        *capacity.Ledger
	HealthMonitor *health.Monitor
	Rebalancer    *rebalance.Rebalancer

	// Webhook delivery
	Composer   *webhook.Composer
	Dispatcher *webhook.Dispatcher
	Scheduler  *webhook.Scheduler

	// Services
	PaymentService service.PaymentService

	// Handlers
	HealthHandler       *handler.HealthHandler
	PaymentHandler      *handler.PaymentHandler
	ProcessorHandler    *handler.ProcessorHandler
	NotificationHandler *handler.NotificationHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	DB            *database.PostgresDB
	Redis         *redis.Client
	KafkaProducer *kafka.Producer

	TransactionRepo repository.TransactionRepository
	MerchantRepo    repository.MerchantRepository
	WebhookRepo     repository.WebhookRepository

	ServiceConfig *service.PaymentServiceConfig

	HealthCheckInterval time.Duration
	RebalanceInterval   time.Duration

	SweepBatchSize   int
	WebhookRetention time.Duration

	// DLQSource names this service on dead-lettered delivery records
	DLQSource string
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	log := logger.Get()

	c := &Container{
		DB:              cfg.DB,
		Redis:           cfg.Redis,
		KafkaProducer:   cfg.KafkaProducer,
		TransactionRepo: cfg.TransactionRepo,
		MerchantRepo:    cfg.MerchantRepo,
		WebhookRepo:     cfg.WebhookRepo,
	}

	c.Processors = registry.NewProcessorRegistry()
	c.Adapters = registry.NewAdapterRegistry()

	c.Ledger = capacity.NewLedger(c.Processors, c.MerchantRepo, log)
	c.Engine = routing.NewEngine(c.Processors, log)
	c.HealthMonitor = health.NewMonitor(c.Processors, c.Ledger, cfg.HealthCheckInterval, log)
	c.Rebalancer = rebalance.NewRebalancer(c.Processors, cfg.RebalanceInterval, log)

	// Notifications land in the DLQ topic once their attempts are exhausted;
	// without Kafka the dispatcher just marks them exhausted
	var dlq retry.DLQPublisher = retry.NewNoOpDLQPublisher()
	if cfg.KafkaProducer != nil {
		source := cfg.DLQSource
		if source == "" {
			source = "payment-gateway"
		}
		dlqCfg := retry.DefaultDLQConfig()
		dlqCfg.Source = source
		dlq = retry.NewKafkaDLQPublisher(&retry.KafkaProducerAdapter{Producer: cfg.KafkaProducer}, dlqCfg)
	}

	c.Composer = webhook.NewComposer(c.MerchantRepo, c.WebhookRepo, log)
	c.Dispatcher = webhook.NewDispatcher(c.WebhookRepo, c.MerchantRepo, c.Redis, dlq, log)
	c.Scheduler = webhook.NewScheduler(c.WebhookRepo, c.Dispatcher, cfg.SweepBatchSize, cfg.WebhookRetention, log)

	c.PaymentService = service.NewPaymentService(
		c.TransactionRepo,
		c.MerchantRepo,
		c.Processors,
		c.Adapters,
		c.Engine,
		c.Ledger,
		c.Composer,
		cfg.ServiceConfig,
		log,
	)

	c.HealthHandler = handler.NewHealthHandler(c.DB, c.Redis)
	c.PaymentHandler = handler.NewPaymentHandler(c.PaymentService)
	c.ProcessorHandler = handler.NewProcessorHandler(c.Processors)
	c.NotificationHandler = handler.NewNotificationHandler(c.WebhookRepo, c.Dispatcher)

	return c
}
