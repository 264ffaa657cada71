package adapter

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pagforte/payment-gateway/internal/domain"
)

// MockAdapter implements Adapter for testing and load testing
type MockAdapter struct {
	config         *MockAdapterConfig
	code           string
	authorizations sync.Map
	mu             sync.RWMutex
}

// MockAdapterConfig holds configuration for the mock adapter
type MockAdapterConfig struct {
	// SuccessRate is the probability of a successful operation (0.0 to 1.0)
	SuccessRate float64

	// DelayMs is the simulated processing delay in milliseconds
	DelayMs int

	// DeclineReasons is a list of possible decline reasons
	DeclineReasons []string
}

// DefaultMockAdapterConfig returns default configuration
func DefaultMockAdapterConfig() *MockAdapterConfig {
	return &MockAdapterConfig{
		SuccessRate: 0.95,
		DelayMs:     100,
		DeclineReasons: []string{
			"insufficient_funds",
			"card_declined",
			"expired_card",
			"processing_error",
			"fraud_suspected",
		},
	}
}

// NewMockAdapter creates a mock adapter answering for the given processor code
func NewMockAdapter(code string, config *MockAdapterConfig) *MockAdapter {
	if config == nil {
		config = DefaultMockAdapterConfig()
	}
	if config.SuccessRate < 0 {
		config.SuccessRate = 0
	}
	if config.SuccessRate > 1 {
		config.SuccessRate = 1
	}
	return &MockAdapter{
		config: config,
		code:   code,
	}
}

// Code returns the processor code this adapter answers for
func (a *MockAdapter) Code() string {
	return a.code
}

// SetSuccessRate updates the success rate (for testing)
func (a *MockAdapter) SetSuccessRate(rate float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	a.config.SuccessRate = rate
}

func (a *MockAdapter) successRate() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config.SuccessRate
}

func (a *MockAdapter) simulateDelay(ctx context.Context) error {
	if a.config.DelayMs <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(a.config.DelayMs) * time.Millisecond):
		return nil
	}
}

// Authorize simulates a payment authorization
func (a *MockAdapter) Authorize(ctx context.Context, proc *domain.Processor, req *AuthorizeRequest) (*PaymentResult, error) {
	if req == nil {
		return nil, fmt.Errorf("authorize request is required")
	}

	start := time.Now()
	if err := a.simulateDelay(ctx); err != nil {
		return nil, err
	}

	ref := fmt.Sprintf("%s_%s", a.code, uuid.New().String()[:12])
	result := &PaymentResult{
		ProcessorReference: ref,
		LatencyMs:          time.Since(start).Milliseconds(),
	}

	if rand.Float64() < a.successRate() {
		result.Success = true
		result.Status = domain.TransactionStatusAuthorized
		result.AuthorizationCode = fmt.Sprintf("%06d", rand.Intn(1000000))
		a.authorizations.Store(ref, req.Amount)
	} else {
		result.Success = false
		result.Status = domain.TransactionStatusDenied
		idx := rand.Intn(len(a.config.DeclineReasons))
		result.ErrorCode = a.config.DeclineReasons[idx]
		result.ErrorMessage = a.config.DeclineReasons[idx]
	}

	return result, nil
}

// Capture simulates a capture of a previously authorized payment
func (a *MockAdapter) Capture(ctx context.Context, proc *domain.Processor, req *CaptureRequest) (*PaymentResult, error) {
	if req == nil {
		return nil, fmt.Errorf("capture request is required")
	}

	start := time.Now()
	if err := a.simulateDelay(ctx); err != nil {
		return nil, err
	}

	if _, ok := a.authorizations.Load(req.ProcessorReference); !ok {
		return &PaymentResult{
			Success:      false,
			Status:       domain.TransactionStatusFailed,
			ErrorCode:    "authorization_not_found",
			ErrorMessage: fmt.Sprintf("no authorization for reference %s", req.ProcessorReference),
			LatencyMs:    time.Since(start).Milliseconds(),
		}, nil
	}

	return &PaymentResult{
		Success:            true,
		Status:             domain.TransactionStatusCaptured,
		ProcessorReference: req.ProcessorReference,
		LatencyMs:          time.Since(start).Milliseconds(),
	}, nil
}

// Void simulates a cancellation of a previously authorized payment
func (a *MockAdapter) Void(ctx context.Context, proc *domain.Processor, req *VoidRequest) (*PaymentResult, error) {
	if req == nil {
		return nil, fmt.Errorf("void request is required")
	}

	start := time.Now()
	if err := a.simulateDelay(ctx); err != nil {
		return nil, err
	}

	a.authorizations.Delete(req.ProcessorReference)

	return &PaymentResult{
		Success:            true,
		Status:             domain.TransactionStatusVoided,
		ProcessorReference: req.ProcessorReference,
		LatencyMs:          time.Since(start).Milliseconds(),
	}, nil
}

// HealthCheck always reports healthy for the mock adapter
func (a *MockAdapter) HealthCheck(ctx context.Context, proc *domain.Processor) bool {
	return true
}
