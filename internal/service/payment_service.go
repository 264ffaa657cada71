package service

import (
	"context"

	"github.com/pagforte/payment-gateway/internal/domain"
)

// AuthorizePaymentRequest carries the fields needed to authorize a payment
type AuthorizePaymentRequest struct {
	MerchantID   string
	Amount       int64
	Currency     string
	Installments int

	// CardToken references the tokenized card in the external vault
	CardToken    string
	CardBrand    string
	CardLastFour string

	Customer domain.Customer
	Metadata map[string]string
}

// PaymentServiceConfig holds payment service configuration
type PaymentServiceConfig struct {
	// Currency is the default currency for requests that omit one
	Currency string
	// MaxFailovers bounds how many fallback processors are tried after
	// the first processor fails
	MaxFailovers int
}

// PaymentService defines the payment gateway operations
type PaymentService interface {
	// Authorize routes a new payment to the best processor and authorizes
	// it, failing over when the processor errors out
	Authorize(ctx context.Context, req *AuthorizePaymentRequest) (*domain.Transaction, error)

	// Capture captures a previously authorized transaction
	Capture(ctx context.Context, transactionID string) (*domain.Transaction, error)

	// Void cancels a previously authorized transaction
	Void(ctx context.Context, transactionID string) (*domain.Transaction, error)

	// GetTransaction retrieves a transaction by ID
	GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error)

	// GetMerchantTransactions retrieves a merchant's transactions, newest first
	GetMerchantTransactions(ctx context.Context, merchantID string, limit, offset int) ([]*domain.Transaction, error)
}
