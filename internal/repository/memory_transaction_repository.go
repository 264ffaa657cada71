package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/pagforte/payment-gateway/internal/domain"
)

// MemoryTransactionRepository implements TransactionRepository using
// in-memory storage. This is useful for testing and development.
type MemoryTransactionRepository struct {
	transactions map[string]*domain.Transaction
	byMerchant   map[string][]string // merchantID -> []transactionID
	mu           sync.RWMutex
}

// NewMemoryTransactionRepository creates a new in-memory transaction repository
func NewMemoryTransactionRepository() *MemoryTransactionRepository {
	return &MemoryTransactionRepository{
		transactions: make(map[string]*domain.Transaction),
		byMerchant:   make(map[string][]string),
	}
}

// Create creates a new transaction record
func (r *MemoryTransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.transactions[tx.ID]; exists {
		return domain.ErrTransactionExists
	}

	// Clone to avoid external modifications
	t := *tx
	r.transactions[tx.ID] = &t
	r.byMerchant[tx.MerchantID] = append(r.byMerchant[tx.MerchantID], tx.ID)

	return nil
}

// GetByID retrieves a transaction by its ID
func (r *MemoryTransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tx, exists := r.transactions[id]
	if !exists {
		return nil, domain.ErrTransactionNotFound
	}

	t := *tx
	return &t, nil
}

// GetByMerchantID retrieves transactions for a merchant, newest first
func (r *MemoryTransactionRepository) GetByMerchantID(ctx context.Context, merchantID string, limit, offset int) ([]*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids, exists := r.byMerchant[merchantID]
	if !exists {
		return []*domain.Transaction{}, nil
	}

	all := make([]*domain.Transaction, 0, len(ids))
	for _, id := range ids {
		if tx, ok := r.transactions[id]; ok {
			t := *tx
			all = append(all, &t)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	start := offset
	if start >= len(all) {
		return []*domain.Transaction{}, nil
	}
	end := start + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}

	return all[start:end], nil
}

// Update updates an existing transaction
func (r *MemoryTransactionRepository) Update(ctx context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.transactions[tx.ID]; !exists {
		return domain.ErrTransactionNotFound
	}

	t := *tx
	r.transactions[tx.ID] = &t

	return nil
}

// Clear clears all data (for testing)
func (r *MemoryTransactionRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.transactions = make(map[string]*domain.Transaction)
	r.byMerchant = make(map[string][]string)
}

// Count returns the total number of transactions (for testing)
func (r *MemoryTransactionRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.transactions)
}
