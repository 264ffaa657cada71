package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// ProducerConfig contains Kafka producer configuration
type ProducerConfig struct {
	// Brokers is the list of seed broker addresses
	Brokers []string
	// ClientID identifies this producer to the brokers
	ClientID string
	// MaxRetries is the number of times a record send is retried
	MaxRetries int
	// RetryInterval is the backoff between record retries
	RetryInterval time.Duration
}

// Producer wraps a franz-go client for producing messages
type Producer struct {
	client *kgo.Client
	config *ProducerConfig
}

// NewProducer creates a Kafka producer and verifies broker connectivity
func NewProducer(ctx context.Context, cfg *ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = time.Second
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.RecordRetries(cfg.MaxRetries),
		kgo.RetryBackoffFn(func(tries int) time.Duration {
			return cfg.RetryInterval * time.Duration(tries)
		}),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Kafka: %w", err)
	}

	return &Producer{
		client: client,
		config: cfg,
	}, nil
}

// Produce sends a raw message and waits for the broker acknowledgement
func (p *Producer) Produce(ctx context.Context, topic, key string, value []byte, headers map[string]string) error {
	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	}
	for k, v := range headers {
		record.Headers = append(record.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce to topic %s: %w", topic, err)
	}
	return nil
}

// ProduceJSON marshals data to JSON and sends it
func (p *Producer) ProduceJSON(ctx context.Context, topic, key string, data interface{}, headers map[string]string) error {
	value, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal message for topic %s: %w", topic, err)
	}
	if headers == nil {
		headers = map[string]string{}
	}
	if _, ok := headers["content_type"]; !ok {
		headers["content_type"] = "application/json"
	}
	return p.Produce(ctx, topic, key, value, headers)
}

// HealthCheck pings the brokers
func (p *Producer) HealthCheck(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close flushes pending records and closes the client
func (p *Producer) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.client.Flush(ctx)
	p.client.Close()
}
