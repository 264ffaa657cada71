package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/balance"
	"github.com/stripe/stripe-go/v82/paymentintent"

	"github.com/pagforte/payment-gateway/internal/domain"
)

// StripeAdapter implements Adapter on top of the Stripe API. It is the one
// real integration shipped with the gateway; other processors plug in
// through the same interface.
type StripeAdapter struct {
	config *StripeAdapterConfig
	code   string
}

// StripeAdapterConfig holds configuration for the Stripe adapter
type StripeAdapterConfig struct {
	SecretKey   string
	Environment string // "test" or "live"
}

// NewStripeAdapter creates a new Stripe adapter answering for the given
// processor code
func NewStripeAdapter(code string, config *StripeAdapterConfig) (*StripeAdapter, error) {
	if config == nil {
		return nil, fmt.Errorf("stripe config is required")
	}
	if config.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}

	// Set Stripe API key globally
	stripe.Key = config.SecretKey

	return &StripeAdapter{
		config: config,
		code:   code,
	}, nil
}

// Code returns the processor code this adapter answers for
func (a *StripeAdapter) Code() string {
	return a.code
}

// Authorize creates a manual-capture PaymentIntent so the amount is held
// until Capture or Void
func (a *StripeAdapter) Authorize(ctx context.Context, proc *domain.Processor, req *AuthorizeRequest) (*PaymentResult, error) {
	if req == nil {
		return nil, fmt.Errorf("authorize request is required")
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.Amount),
		Currency:      stripe.String(req.Currency),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{"transaction_id": req.TransactionID},
	}
	for k, v := range req.Metadata {
		params.Metadata[k] = v
	}
	if req.CardToken != "" {
		params.PaymentMethod = stripe.String(req.CardToken)
		params.Confirm = stripe.Bool(true)
	}

	start := time.Now()
	pi, err := paymentintent.New(params)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return &PaymentResult{
			Success:      false,
			Status:       domain.TransactionStatusDenied,
			ErrorCode:    "stripe_error",
			ErrorMessage: err.Error(),
			LatencyMs:    latency,
		}, nil
	}

	result := &PaymentResult{
		ProcessorReference: pi.ID,
		LatencyMs:          latency,
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusRequiresCapture, stripe.PaymentIntentStatusSucceeded:
		result.Success = true
		result.Status = domain.TransactionStatusAuthorized
		result.AuthorizationCode = pi.ID
	case stripe.PaymentIntentStatusCanceled:
		result.Success = false
		result.Status = domain.TransactionStatusDenied
		result.ErrorCode = "canceled"
		result.ErrorMessage = "payment intent canceled"
	default:
		result.Success = false
		result.Status = domain.TransactionStatusDenied
		result.ErrorCode = string(pi.Status)
		result.ErrorMessage = fmt.Sprintf("payment requires further action: %s", pi.Status)
	}

	return result, nil
}

// Capture captures a previously authorized PaymentIntent
func (a *StripeAdapter) Capture(ctx context.Context, proc *domain.Processor, req *CaptureRequest) (*PaymentResult, error) {
	if req == nil {
		return nil, fmt.Errorf("capture request is required")
	}

	params := &stripe.PaymentIntentCaptureParams{
		AmountToCapture: stripe.Int64(req.Amount),
	}

	start := time.Now()
	pi, err := paymentintent.Capture(req.ProcessorReference, params)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return &PaymentResult{
			Success:      false,
			Status:       domain.TransactionStatusFailed,
			ErrorCode:    "stripe_error",
			ErrorMessage: err.Error(),
			LatencyMs:    latency,
		}, nil
	}

	return &PaymentResult{
		Success:            pi.Status == stripe.PaymentIntentStatusSucceeded,
		Status:             domain.TransactionStatusCaptured,
		ProcessorReference: pi.ID,
		LatencyMs:          latency,
	}, nil
}

// Void cancels a previously authorized PaymentIntent
func (a *StripeAdapter) Void(ctx context.Context, proc *domain.Processor, req *VoidRequest) (*PaymentResult, error) {
	if req == nil {
		return nil, fmt.Errorf("void request is required")
	}

	start := time.Now()
	pi, err := paymentintent.Cancel(req.ProcessorReference, nil)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return &PaymentResult{
			Success:      false,
			Status:       domain.TransactionStatusFailed,
			ErrorCode:    "stripe_error",
			ErrorMessage: err.Error(),
			LatencyMs:    latency,
		}, nil
	}

	return &PaymentResult{
		Success:            pi.Status == stripe.PaymentIntentStatusCanceled,
		Status:             domain.TransactionStatusVoided,
		ProcessorReference: pi.ID,
		LatencyMs:          latency,
	}, nil
}

// HealthCheck verifies the API credentials by fetching the account balance
func (a *StripeAdapter) HealthCheck(ctx context.Context, proc *domain.Processor) bool {
	_, err := balance.Get(nil)
	return err == nil
}
