package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pagforte/payment-gateway/internal/adapter"
	"github.com/pagforte/payment-gateway/internal/capacity"
	"github.com/pagforte/payment-gateway/internal/domain"
	"github.com/pagforte/payment-gateway/internal/metrics"
	"github.com/pagforte/payment-gateway/internal/registry"
	"github.com/pagforte/payment-gateway/internal/repository"
	"github.com/pagforte/payment-gateway/internal/routing"
	"github.com/pagforte/payment-gateway/internal/webhook"
	"github.com/pagforte/payment-gateway/pkg/logger"
)

// paymentServiceImpl implements PaymentService
type paymentServiceImpl struct {
	transactions repository.TransactionRepository
	merchants    repository.MerchantRepository
	processors   *registry.ProcessorRegistry
	adapters     *registry.AdapterRegistry
	engine       *routing.Engine
	ledger       *capacity.Ledger
	composer     *webhook.Composer
	config       *PaymentServiceConfig
	log          *logger.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	transactions repository.TransactionRepository,
	merchants repository.MerchantRepository,
	processors *registry.ProcessorRegistry,
	adapters *registry.AdapterRegistry,
	engine *routing.Engine,
	ledger *capacity.Ledger,
	composer *webhook.Composer,
	config *PaymentServiceConfig,
	log *logger.Logger,
) PaymentService {
	if config == nil {
		config = &PaymentServiceConfig{
			Currency:     "BRL",
			MaxFailovers: 1,
		}
	}

	return &paymentServiceImpl{
		transactions: transactions,
		merchants:    merchants,
		processors:   processors,
		adapters:     adapters,
		engine:       engine,
		ledger:       ledger,
		composer:     composer,
		config:       config,
		log:          log,
	}
}

// Authorize routes a new payment to the best processor and authorizes it.
// When the selected processor errors out, the request fails over to the
// best remaining candidate up to MaxFailovers times. A processor decline
// is final and never failed over.
func (s *paymentServiceImpl) Authorize(ctx context.Context, req *AuthorizePaymentRequest) (*domain.Transaction, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}

	merchant, err := s.merchants.GetByID(ctx, req.MerchantID)
	if err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = s.config.Currency
	}

	tx, err := domain.NewTransaction(req.MerchantID, req.Amount, currency, req.Installments)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	tx.SetCardInfo(req.CardBrand, req.CardLastFour)
	tx.Customer = req.Customer

	if err := s.transactions.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}

	if !s.ledger.ReserveMerchant(merchant, tx.Amount) {
		return s.failTransaction(ctx, tx, "MONTHLY_CEILING_EXCEEDED", "merchant monthly volume ceiling exceeded"), nil
	}

	processor, err := s.engine.SelectProcessor(ctx, merchant, tx.Amount)
	if err != nil {
		s.failTransaction(ctx, tx, "NO_PROCESSOR_AVAILABLE", "no eligible processor for this request")
		return tx, err
	}

	return s.authorizeWithFailover(ctx, merchant, tx, processor, req.CardToken, req.Metadata)
}

// authorizeWithFailover runs the authorize attempt loop
func (s *paymentServiceImpl) authorizeWithFailover(ctx context.Context, merchant *domain.Merchant, tx *domain.Transaction, processor *domain.Processor, cardToken string, metadata map[string]string) (*domain.Transaction, error) {
	var lastErr error

	for attempt := 0; attempt <= s.config.MaxFailovers; attempt++ {
		result, callErr := s.tryProcessor(ctx, tx, processor, cardToken, metadata)

		if callErr == nil && result.Success {
			if err := tx.Authorize(processor.Code, result.ProcessorReference, result.AuthorizationCode); err != nil {
				return nil, err
			}
			if err := s.ledger.RecordMerchantVolume(ctx, merchant.ID, tx.Amount); err != nil {
				s.log.Warn("failed to record merchant volume",
					zap.String("merchant_id", merchant.ID),
					zap.Error(err),
				)
			}
			if err := s.transactions.Update(ctx, tx); err != nil {
				return nil, fmt.Errorf("failed to persist authorized transaction: %w", err)
			}
			metrics.RecordTransaction(ctx, processor.Code, string(tx.Status))
			s.notify(ctx, tx)
			return tx, nil
		}

		if callErr == nil {
			// Processor reached and answered: this is a decline, terminal
			// by definition, never failed over
			if err := tx.Deny(processor.Code, result.ErrorCode, result.ErrorMessage); err != nil {
				return nil, err
			}
			if err := s.transactions.Update(ctx, tx); err != nil {
				return nil, fmt.Errorf("failed to persist denied transaction: %w", err)
			}
			metrics.RecordTransaction(ctx, processor.Code, string(tx.Status))
			s.notify(ctx, tx)
			return tx, nil
		}

		lastErr = callErr
		s.log.Warn("processor attempt failed",
			zap.String("transaction_id", tx.ID),
			zap.String("processor", processor.Code),
			zap.Int("attempt", attempt+1),
			zap.Error(callErr),
		)

		if attempt == s.config.MaxFailovers {
			break
		}

		fallback, err := s.engine.SelectFallback(ctx, merchant, processor.Code, tx.Amount)
		if err != nil {
			return nil, err
		}
		if fallback == nil {
			break
		}
		processor = fallback
	}

	errMsg := "all processors failed"
	if lastErr != nil {
		errMsg = lastErr.Error()
	}
	metrics.RecordTransaction(ctx, processor.Code, string(domain.TransactionStatusFailed))
	return s.failTransaction(ctx, tx, "GATEWAY_ERROR", errMsg), nil
}

// tryProcessor runs one authorize call against a single processor and
// folds the outcome into the capacity ledger
func (s *paymentServiceImpl) tryProcessor(ctx context.Context, tx *domain.Transaction, processor *domain.Processor, cardToken string, metadata map[string]string) (*adapter.PaymentResult, error) {
	admitted, err := s.ledger.Reserve(processor.Code, tx.Amount)
	if err != nil {
		return nil, err
	}
	if !admitted {
		return nil, domain.ErrDailyCeilingExceeded
	}

	procAdapter, err := s.adapters.Lookup(processor.Code)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, callErr := procAdapter.Authorize(ctx, processor, &adapter.AuthorizeRequest{
		TransactionID: tx.ID,
		MerchantID:    tx.MerchantID,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		Installments:  tx.Installments,
		CardToken:     cardToken,
		Metadata:      metadata,
	})
	elapsed := time.Since(start)
	metrics.RecordAdapterCall(ctx, processor.Code, "authorize", elapsed.Seconds())

	latencyMs := elapsed.Milliseconds()
	if result != nil && result.LatencyMs > 0 {
		latencyMs = result.LatencyMs
	}

	success := callErr == nil && result != nil && result.Success
	volume := int64(0)
	if success {
		volume = tx.Amount
	}
	if recErr := s.ledger.RecordOutcome(ctx, processor.Code, success, volume, latencyMs); recErr != nil {
		s.log.Warn("failed to record processor outcome",
			zap.String("processor", processor.Code),
			zap.Error(recErr),
		)
	}

	if callErr != nil {
		return nil, callErr
	}
	return result, nil
}

// Capture captures a previously authorized transaction
func (s *paymentServiceImpl) Capture(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	tx, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	processor, err := s.processors.Lookup(tx.ProcessorCode)
	if err != nil {
		return nil, err
	}
	if !processor.Capabilities.Capture {
		return nil, domain.ErrCaptureNotSupported
	}

	procAdapter, err := s.adapters.Lookup(tx.ProcessorCode)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := procAdapter.Capture(ctx, processor, &adapter.CaptureRequest{
		TransactionID:      tx.ID,
		ProcessorReference: tx.ProcessorReference,
		Amount:             tx.Amount,
	})
	metrics.RecordAdapterCall(ctx, processor.Code, "capture", time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to capture transaction: %w", err)
	}
	if !result.Success {
		return nil, fmt.Errorf("processor refused capture: %s", result.ErrorMessage)
	}

	if err := tx.Capture(); err != nil {
		return nil, err
	}
	if err := s.transactions.Update(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to persist captured transaction: %w", err)
	}
	metrics.RecordTransaction(ctx, processor.Code, string(tx.Status))
	s.notify(ctx, tx)

	return tx, nil
}

// Void cancels a previously authorized transaction
func (s *paymentServiceImpl) Void(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	tx, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	processor, err := s.processors.Lookup(tx.ProcessorCode)
	if err != nil {
		return nil, err
	}
	if !processor.Capabilities.Void {
		return nil, domain.ErrVoidNotSupported
	}

	procAdapter, err := s.adapters.Lookup(tx.ProcessorCode)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := procAdapter.Void(ctx, processor, &adapter.VoidRequest{
		TransactionID:      tx.ID,
		ProcessorReference: tx.ProcessorReference,
	})
	metrics.RecordAdapterCall(ctx, processor.Code, "void", time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to void transaction: %w", err)
	}
	if !result.Success {
		return nil, fmt.Errorf("processor refused void: %s", result.ErrorMessage)
	}

	if err := tx.Void(); err != nil {
		return nil, err
	}
	if err := s.transactions.Update(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to persist voided transaction: %w", err)
	}
	metrics.RecordTransaction(ctx, processor.Code, string(tx.Status))
	s.notify(ctx, tx)

	return tx, nil
}

// GetTransaction retrieves a transaction by ID
func (s *paymentServiceImpl) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return s.transactions.GetByID(ctx, transactionID)
}

// GetMerchantTransactions retrieves a merchant's transactions, newest first
func (s *paymentServiceImpl) GetMerchantTransactions(ctx context.Context, merchantID string, limit, offset int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.transactions.GetByMerchantID(ctx, merchantID, limit, offset)
}

// failTransaction marks the transaction failed, persists it and emits the
// status webhook. Persistence errors are logged, not propagated; the
// caller already has a failure to surface.
func (s *paymentServiceImpl) failTransaction(ctx context.Context, tx *domain.Transaction, errorCode, errorMessage string) *domain.Transaction {
	if err := tx.Fail(errorCode, errorMessage); err != nil {
		s.log.Error("failed to mark transaction failed",
			zap.String("transaction_id", tx.ID),
			zap.Error(err),
		)
		return tx
	}
	if err := s.transactions.Update(ctx, tx); err != nil {
		s.log.Error("failed to persist failed transaction",
			zap.String("transaction_id", tx.ID),
			zap.Error(err),
		)
	}
	s.notify(ctx, tx)
	return tx
}

// notify enqueues the status webhook for the transaction. Composition
// failures never fail the payment operation.
func (s *paymentServiceImpl) notify(ctx context.Context, tx *domain.Transaction) {
	if s.composer == nil {
		return
	}
	if _, err := s.composer.Compose(ctx, tx, webhook.EventForStatus(tx.Status)); err != nil {
		s.log.Error("failed to compose webhook notification",
			zap.String("transaction_id", tx.ID),
			zap.String("status", string(tx.Status)),
			zap.Error(err),
		)
	}
}
