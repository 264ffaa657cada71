package repository

import (
	"context"

	"github.com/pagforte/payment-gateway/internal/domain"
)

// TransactionRepository defines the interface for transaction data access
type TransactionRepository interface {
	// Create creates a new transaction record
	Create(ctx context.Context, tx *domain.Transaction) error

	// GetByID retrieves a transaction by its ID
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)

	// GetByMerchantID retrieves transactions for a merchant, newest first
	GetByMerchantID(ctx context.Context, merchantID string, limit, offset int) ([]*domain.Transaction, error)

	// Update updates an existing transaction
	Update(ctx context.Context, tx *domain.Transaction) error
}
