package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pagforte/payment-gateway/internal/domain"
	"github.com/pagforte/payment-gateway/pkg/database"
)

// PostgreSQL error code for unique violation
const pgUniqueViolationCode = "23505"

// PostgresTransactionRepository implements TransactionRepository using PostgreSQL
type PostgresTransactionRepository struct {
	db *database.PostgresDB
}

// NewPostgresTransactionRepository creates a new PostgreSQL transaction repository
func NewPostgresTransactionRepository(db *database.PostgresDB) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{db: db}
}

// nullString returns nil if string is empty, otherwise returns pointer to string
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Create creates a new transaction record
func (r *PostgresTransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, merchant_id, amount, currency, installments, status,
			processor_code, processor_reference, authorization_code,
			card_brand, card_last_four, customer,
			error_code, error_message,
			created_at, authorized_at, captured_at, voided_at, failed_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20
		)`

	customerJSON, err := json.Marshal(tx.Customer)
	if err != nil {
		return fmt.Errorf("failed to marshal customer: %w", err)
	}

	_, err = r.db.Pool().Exec(ctx, query,
		tx.ID,
		tx.MerchantID,
		tx.Amount,
		tx.Currency,
		tx.Installments,
		string(tx.Status),
		nullString(tx.ProcessorCode),
		nullString(tx.ProcessorReference),
		nullString(tx.AuthorizationCode),
		nullString(tx.CardBrand),
		nullString(tx.CardLastFour),
		customerJSON,
		nullString(tx.ErrorCode),
		nullString(tx.ErrorMessage),
		tx.CreatedAt,
		tx.AuthorizedAt,
		tx.CapturedAt,
		tx.VoidedAt,
		tx.FailedAt,
		tx.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			return domain.ErrTransactionExists
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

// transactionColumns defines the columns to select for transaction queries
const transactionColumns = `
	id, merchant_id, amount, currency, installments, status,
	processor_code, processor_reference, authorization_code,
	card_brand, card_last_four, customer,
	error_code, error_message,
	created_at, authorized_at, captured_at, voided_at, failed_at, updated_at
`

// GetByID retrieves a transaction by its ID
func (r *PostgresTransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return scanTransaction(r.db.Pool().QueryRow(ctx, query, id))
}

// GetByMerchantID retrieves transactions for a merchant, newest first
func (r *PostgresTransactionRepository) GetByMerchantID(ctx context.Context, merchantID string, limit, offset int) ([]*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE merchant_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.db.Pool().Query(ctx, query, merchantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return transactions, nil
}

// Update updates an existing transaction
func (r *PostgresTransactionRepository) Update(ctx context.Context, tx *domain.Transaction) error {
	query := `
		UPDATE transactions
		SET status = $2,
		    processor_code = $3,
		    processor_reference = $4,
		    authorization_code = $5,
		    card_brand = $6,
		    card_last_four = $7,
		    customer = $8,
		    error_code = $9,
		    error_message = $10,
		    authorized_at = $11,
		    captured_at = $12,
		    voided_at = $13,
		    failed_at = $14,
		    updated_at = $15
		WHERE id = $1`

	customerJSON, err := json.Marshal(tx.Customer)
	if err != nil {
		return fmt.Errorf("failed to marshal customer: %w", err)
	}

	result, err := r.db.Pool().Exec(ctx, query,
		tx.ID,
		string(tx.Status),
		nullString(tx.ProcessorCode),
		nullString(tx.ProcessorReference),
		nullString(tx.AuthorizationCode),
		nullString(tx.CardBrand),
		nullString(tx.CardLastFour),
		customerJSON,
		nullString(tx.ErrorCode),
		nullString(tx.ErrorMessage),
		tx.AuthorizedAt,
		tx.CapturedAt,
		tx.VoidedAt,
		tx.FailedAt,
		tx.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}

	return nil
}

// scanTransaction scans a single transaction from a row
func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var tx domain.Transaction
	var status string
	var customerJSON []byte
	var processorCode, processorRef, authCode *string
	var cardBrand, cardLastFour *string
	var errorCode, errorMessage *string

	err := row.Scan(
		&tx.ID,
		&tx.MerchantID,
		&tx.Amount,
		&tx.Currency,
		&tx.Installments,
		&status,
		&processorCode,
		&processorRef,
		&authCode,
		&cardBrand,
		&cardLastFour,
		&customerJSON,
		&errorCode,
		&errorMessage,
		&tx.CreatedAt,
		&tx.AuthorizedAt,
		&tx.CapturedAt,
		&tx.VoidedAt,
		&tx.FailedAt,
		&tx.UpdatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.Status = domain.TransactionStatus(status)

	// Handle nullable string fields
	if processorCode != nil {
		tx.ProcessorCode = *processorCode
	}
	if processorRef != nil {
		tx.ProcessorReference = *processorRef
	}
	if authCode != nil {
		tx.AuthorizationCode = *authCode
	}
	if cardBrand != nil {
		tx.CardBrand = *cardBrand
	}
	if cardLastFour != nil {
		tx.CardLastFour = *cardLastFour
	}
	if errorCode != nil {
		tx.ErrorCode = *errorCode
	}
	if errorMessage != nil {
		tx.ErrorMessage = *errorMessage
	}

	if len(customerJSON) > 0 {
		if err := json.Unmarshal(customerJSON, &tx.Customer); err != nil {
			return nil, fmt.Errorf("failed to unmarshal customer: %w", err)
		}
	}

	return &tx, nil
}
