package adapter

import (
	"context"

	"github.com/pagforte/payment-gateway/internal/domain"
)

// AuthorizeRequest carries the data an adapter needs to authorize a payment
type AuthorizeRequest struct {
	TransactionID string            `json:"transaction_id"`
	MerchantID    string            `json:"merchant_id"`
	Amount        int64             `json:"amount"` // currency minor units
	Currency      string            `json:"currency"`
	Installments  int               `json:"installments"`
	CardToken     string            `json:"card_token,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// CaptureRequest captures a previously authorized payment
type CaptureRequest struct {
	TransactionID      string `json:"transaction_id"`
	ProcessorReference string `json:"processor_reference"`
	Amount             int64  `json:"amount"`
}

// VoidRequest cancels a previously authorized payment
type VoidRequest struct {
	TransactionID      string `json:"transaction_id"`
	ProcessorReference string `json:"processor_reference"`
}

// PaymentResult is the uniform outcome of any adapter operation
type PaymentResult struct {
	Success            bool                     `json:"success"`
	Status             domain.TransactionStatus `json:"status"`
	ProcessorReference string                   `json:"processor_reference,omitempty"`
	AuthorizationCode  string                   `json:"authorization_code,omitempty"`
	ErrorCode          string                   `json:"error_code,omitempty"`
	ErrorMessage       string                   `json:"error_message,omitempty"`
	LatencyMs          int64                    `json:"latency_ms"`
}

// Adapter is the uniform contract every processor integration satisfies.
// The routing engine never talks to a processor except through this
// interface; which implementation handles a request is decided per call
// by the selector.
type Adapter interface {
	Authorize(ctx context.Context, proc *domain.Processor, req *AuthorizeRequest) (*PaymentResult, error)
	Capture(ctx context.Context, proc *domain.Processor, req *CaptureRequest) (*PaymentResult, error)
	Void(ctx context.Context, proc *domain.Processor, req *VoidRequest) (*PaymentResult, error)
	HealthCheck(ctx context.Context, proc *domain.Processor) bool
	Code() string
}
