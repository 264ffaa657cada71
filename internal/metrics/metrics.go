package metrics

import (
	"context"
	"sync"

	"github.com/pagforte/payment-gateway/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// Routing counters
	RoutingDecisions       *telemetry.Counter
	Failovers              *telemetry.Counter
	NoProcessorAvailable   *telemetry.Counter

	// Transaction counters
	TransactionsAuthorized *telemetry.Counter
	TransactionsDenied     *telemetry.Counter
	TransactionsCaptured   *telemetry.Counter
	TransactionsVoided     *telemetry.Counter
	TransactionsFailed     *telemetry.Counter

	// Webhook delivery counters
	WebhooksComposed  *telemetry.Counter
	WebhooksDelivered *telemetry.Counter
	WebhooksRetried   *telemetry.Counter
	WebhooksExhausted *telemetry.Counter

	// Histograms
	RoutingScore    *telemetry.Histogram
	AdapterLatency  *telemetry.Histogram
	DeliveryLatency *telemetry.Histogram
	RequestDuration *telemetry.Histogram

	// Gauges
	PendingNotifications *telemetry.UpDownCounter

	initOnce sync.Once
	initErr  error
)

// Init initializes all gateway metrics
func Init() error {
	initOnce.Do(func() {
		initErr = initMetrics()
	})
	return initErr
}

func initMetrics() error {
	var err error

	// Routing counters
	RoutingDecisions, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "gateway_routing_decisions_total",
		Description: "Total number of routing decisions",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	Failovers, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "gateway_failovers_total",
		Description: "Total number of fallback selections after a failed attempt",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	NoProcessorAvailable, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "gateway_no_processor_available_total",
		Description: "Total number of requests declined for lack of an eligible processor",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	// Transaction counters
	TransactionsAuthorized, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "gateway_transactions_authorized_total",
		Description: "Total number of authorized transactions",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	TransactionsDenied, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "gateway_transactions_denied_total",
		Description: "Total number of transactions denied by a processor",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	TransactionsCaptured, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "gateway_transactions_captured_total",
		Description: "Total number of captured transactions",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	TransactionsVoided, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "gateway_transactions_voided_total",
		Description: "Total number of voided transactions",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	TransactionsFailed, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "gateway_transactions_failed_total",
		Description: "Total number of transactions failed after exhausting fallbacks",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	// Webhook delivery counters
	WebhooksComposed, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "gateway_webhooks_composed_total",
		Description: "Total number of webhook notifications composed",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	WebhooksDelivered, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "gateway_webhooks_delivered_total",
		Description: "Total number of webhook notifications delivered",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	WebhooksRetried, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "gateway_webhooks_retried_total",
		Description: "Total number of webhook delivery retries scheduled",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	WebhooksExhausted, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "gateway_webhooks_exhausted_total",
		Description: "Total number of webhook notifications that exhausted all attempts",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	// Histograms
	RoutingScore, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "gateway_routing_score",
		Description: "Composite score of the selected processor",
		Unit:        "1",
	}, []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100})
	if err != nil {
		return err
	}

	AdapterLatency, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "gateway_adapter_duration_seconds",
		Description: "Duration of processor adapter calls",
		Unit:        "s",
	}, []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}) // 50ms to 30s
	if err != nil {
		return err
	}

	DeliveryLatency, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "gateway_webhook_delivery_seconds",
		Description: "Duration of outbound webhook calls",
		Unit:        "s",
	}, []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30})
	if err != nil {
		return err
	}

	// Request duration histogram for latency tracking (p50, p90, p99)
	RequestDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "gateway_request_duration_seconds",
		Description: "HTTP request duration in seconds",
		Unit:        "s",
	}, []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}) // 5ms to 10s
	if err != nil {
		return err
	}

	// Up-down counter for current state
	PendingNotifications, err = telemetry.NewUpDownCounter(telemetry.MetricOpts{
		Name:        "gateway_webhooks_pending",
		Description: "Current number of undelivered webhook notifications",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	return nil
}

// RecordRoutingDecision records a routing decision and the winner's score
func RecordRoutingDecision(ctx context.Context, processor string, candidates int, score float64) {
	if RoutingDecisions != nil {
		RoutingDecisions.Inc(ctx,
			attribute.String("processor", processor),
			attribute.Int("candidates", candidates),
		)
	}
	if RoutingScore != nil {
		RoutingScore.Record(ctx, score,
			attribute.String("processor", processor),
		)
	}
}

// RecordFailover records a fallback selection after a failed attempt
func RecordFailover(ctx context.Context, failedProcessor, fallbackProcessor string) {
	if Failovers != nil {
		Failovers.Inc(ctx,
			attribute.String("failed_processor", failedProcessor),
			attribute.String("fallback_processor", fallbackProcessor),
		)
	}
}

// RecordNoProcessorAvailable records a hard decline for lack of candidates
func RecordNoProcessorAvailable(ctx context.Context) {
	if NoProcessorAvailable != nil {
		NoProcessorAvailable.Inc(ctx)
	}
}

// RecordTransaction records a transaction outcome by final status
func RecordTransaction(ctx context.Context, processor, status string) {
	var counter *telemetry.Counter
	switch status {
	case "authorized":
		counter = TransactionsAuthorized
	case "denied":
		counter = TransactionsDenied
	case "captured":
		counter = TransactionsCaptured
	case "voided":
		counter = TransactionsVoided
	case "failed":
		counter = TransactionsFailed
	}
	if counter != nil {
		counter.Inc(ctx,
			attribute.String("processor", processor),
		)
	}
}

// RecordAdapterCall records the duration of a processor adapter call
func RecordAdapterCall(ctx context.Context, processor, operation string, durationSeconds float64) {
	if AdapterLatency != nil {
		AdapterLatency.Record(ctx, durationSeconds,
			attribute.String("processor", processor),
			attribute.String("operation", operation),
		)
	}
}

// RecordWebhookComposed records a composed notification
func RecordWebhookComposed(ctx context.Context, event string) {
	if WebhooksComposed != nil {
		WebhooksComposed.Inc(ctx,
			attribute.String("event", event),
		)
	}
	if PendingNotifications != nil {
		PendingNotifications.Inc(ctx)
	}
}

// RecordWebhookDelivered records a successful delivery
func RecordWebhookDelivered(ctx context.Context, event string, durationSeconds float64) {
	if WebhooksDelivered != nil {
		WebhooksDelivered.Inc(ctx,
			attribute.String("event", event),
		)
	}
	if DeliveryLatency != nil {
		DeliveryLatency.Record(ctx, durationSeconds,
			attribute.String("event", event),
		)
	}
	if PendingNotifications != nil {
		PendingNotifications.Dec(ctx)
	}
}

// RecordWebhookRetried records a scheduled delivery retry
func RecordWebhookRetried(ctx context.Context, event string, attempt int) {
	if WebhooksRetried != nil {
		WebhooksRetried.Inc(ctx,
			attribute.String("event", event),
			attribute.Int("attempt", attempt),
		)
	}
}

// RecordWebhookExhausted records a terminally failed notification
func RecordWebhookExhausted(ctx context.Context, event string) {
	if WebhooksExhausted != nil {
		WebhooksExhausted.Inc(ctx,
			attribute.String("event", event),
		)
	}
	if PendingNotifications != nil {
		PendingNotifications.Dec(ctx)
	}
}

// RecordRequestDuration records HTTP request duration
func RecordRequestDuration(ctx context.Context, operation string, durationSeconds float64) {
	if RequestDuration != nil {
		RequestDuration.Record(ctx, durationSeconds,
			attribute.String("operation", operation),
		)
	}
}
