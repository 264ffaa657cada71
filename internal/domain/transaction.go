package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TransactionStatus represents the status of a payment transaction
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusAuthorized TransactionStatus = "authorized"
	TransactionStatusCaptured   TransactionStatus = "captured"
	TransactionStatusVoided     TransactionStatus = "voided"
	TransactionStatusDenied     TransactionStatus = "denied"
	TransactionStatusFailed     TransactionStatus = "failed"
	TransactionStatusExpired    TransactionStatus = "expired"
)

// IsFinal reports whether the status admits no further transitions
func (s TransactionStatus) IsFinal() bool {
	switch s {
	case TransactionStatusCaptured, TransactionStatusVoided,
		TransactionStatusDenied, TransactionStatusFailed, TransactionStatusExpired:
		return true
	}
	return false
}

// Customer carries the optional customer snapshot attached to a transaction
type Customer struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Document string `json:"document,omitempty"`
}

// Transaction represents a payment transaction routed through a processor.
// Card data is limited to brand and last four digits; the full PAN lives in
// the external tokenization vault and never enters this system.
type Transaction struct {
	ID           string            `json:"id"`
	MerchantID   string            `json:"merchant_id"`
	Amount       int64             `json:"amount"` // currency minor units
	Currency     string            `json:"currency"`
	Installments int               `json:"installments"`
	Status       TransactionStatus `json:"status"`

	ProcessorCode      string `json:"processor_code,omitempty"`
	ProcessorReference string `json:"processor_reference,omitempty"`
	AuthorizationCode  string `json:"authorization_code,omitempty"`

	CardBrand    string   `json:"card_brand,omitempty"`
	CardLastFour string   `json:"card_last_four,omitempty"`
	Customer     Customer `json:"customer,omitempty"`

	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt    time.Time  `json:"created_at"`
	AuthorizedAt *time.Time `json:"authorized_at,omitempty"`
	CapturedAt   *time.Time `json:"captured_at,omitempty"`
	VoidedAt     *time.Time `json:"voided_at,omitempty"`
	FailedAt     *time.Time `json:"failed_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewTransaction creates a new pending transaction
func NewTransaction(merchantID string, amount int64, currency string, installments int) (*Transaction, error) {
	if merchantID == "" {
		return nil, errors.New("merchant_id is required")
	}
	if amount <= 0 {
		return nil, errors.New("amount must be positive")
	}
	if currency == "" {
		currency = "BRL"
	}
	if installments <= 0 {
		installments = 1
	}

	now := time.Now().UTC()
	return &Transaction{
		ID:           uuid.New().String(),
		MerchantID:   merchantID,
		Amount:       amount,
		Currency:     currency,
		Installments: installments,
		Status:       TransactionStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsFinal returns true if the transaction is in a final state
func (t *Transaction) IsFinal() bool {
	return t.Status.IsFinal()
}

// Authorize marks the transaction as authorized by the given processor
func (t *Transaction) Authorize(processorCode, processorRef, authCode string) error {
	if t.Status != TransactionStatusPending {
		return errors.New("transaction must be pending to authorize")
	}
	now := time.Now().UTC()
	t.Status = TransactionStatusAuthorized
	t.ProcessorCode = processorCode
	t.ProcessorReference = processorRef
	t.AuthorizationCode = authCode
	t.AuthorizedAt = &now
	t.UpdatedAt = now
	return nil
}

// Capture marks the transaction as captured
func (t *Transaction) Capture() error {
	if t.Status != TransactionStatusAuthorized {
		return errors.New("transaction must be authorized to capture")
	}
	now := time.Now().UTC()
	t.Status = TransactionStatusCaptured
	t.CapturedAt = &now
	t.UpdatedAt = now
	return nil
}

// Void marks the transaction as voided
func (t *Transaction) Void() error {
	if t.Status != TransactionStatusAuthorized {
		return errors.New("transaction must be authorized to void")
	}
	now := time.Now().UTC()
	t.Status = TransactionStatusVoided
	t.VoidedAt = &now
	t.UpdatedAt = now
	return nil
}

// Deny marks the transaction as denied by the processor
func (t *Transaction) Deny(processorCode, errorCode, errorMessage string) error {
	if t.Status != TransactionStatusPending {
		return errors.New("transaction must be pending to deny")
	}
	now := time.Now().UTC()
	t.Status = TransactionStatusDenied
	t.ProcessorCode = processorCode
	t.ErrorCode = errorCode
	t.ErrorMessage = errorMessage
	t.FailedAt = &now
	t.UpdatedAt = now
	return nil
}

// Fail marks the transaction as failed (gateway-level error, fallbacks exhausted)
func (t *Transaction) Fail(errorCode, errorMessage string) error {
	if t.Status.IsFinal() {
		return ErrTransactionFinal
	}
	now := time.Now().UTC()
	t.Status = TransactionStatusFailed
	t.ErrorCode = errorCode
	t.ErrorMessage = errorMessage
	t.FailedAt = &now
	t.UpdatedAt = now
	return nil
}

// Expire marks a stale authorization as expired
func (t *Transaction) Expire() error {
	if t.Status != TransactionStatusAuthorized && t.Status != TransactionStatusPending {
		return errors.New("only pending or authorized transactions can expire")
	}
	now := time.Now().UTC()
	t.Status = TransactionStatusExpired
	t.UpdatedAt = now
	return nil
}

// SetCardInfo sets the masked card information
func (t *Transaction) SetCardInfo(brand, lastFour string) {
	t.CardBrand = brand
	t.CardLastFour = lastFour
	t.UpdatedAt = time.Now().UTC()
}
