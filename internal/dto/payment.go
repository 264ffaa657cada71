package dto

import (
	"time"

	"github.com/pagforte/payment-gateway/internal/domain"
)

// Response is the envelope every endpoint returns
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorData  `json:"error,omitempty"`
}

// ErrorData carries a machine-readable error code and message
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewSuccessResponse wraps data in a success envelope
func NewSuccessResponse(data interface{}) *Response {
	return &Response{Success: true, Data: data}
}

// NewErrorResponse wraps an error code and message in an error envelope
func NewErrorResponse(code, message string) *Response {
	return &Response{Success: false, Error: &ErrorData{Code: code, Message: message}}
}

// CustomerRequest is the optional customer snapshot on an authorize request
type CustomerRequest struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Document string `json:"document,omitempty"`
}

// AuthorizePaymentRequest represents a request to authorize a payment.
// Amount is in currency minor units.
type AuthorizePaymentRequest struct {
	Amount       int64             `json:"amount" binding:"required,gt=0"`
	Currency     string            `json:"currency,omitempty"`
	Installments int               `json:"installments,omitempty"`
	CardToken    string            `json:"card_token" binding:"required"`
	CardBrand    string            `json:"card_brand,omitempty"`
	CardLastFour string            `json:"card_last_four,omitempty"`
	Customer     CustomerRequest   `json:"customer,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// TransactionResponse represents a transaction response
type TransactionResponse struct {
	ID                 string                   `json:"id"`
	MerchantID         string                   `json:"merchant_id"`
	Amount             int64                    `json:"amount"`
	Currency           string                   `json:"currency"`
	Installments       int                      `json:"installments"`
	Status             domain.TransactionStatus `json:"status"`
	ProcessorCode      string                   `json:"processor_code,omitempty"`
	ProcessorReference string                   `json:"processor_reference,omitempty"`
	AuthorizationCode  string                   `json:"authorization_code,omitempty"`
	CardBrand          string                   `json:"card_brand,omitempty"`
	CardLastFour       string                   `json:"card_last_four,omitempty"`
	ErrorCode          string                   `json:"error_code,omitempty"`
	ErrorMessage       string                   `json:"error_message,omitempty"`
	CreatedAt          time.Time                `json:"created_at"`
	AuthorizedAt       *time.Time               `json:"authorized_at,omitempty"`
	CapturedAt         *time.Time               `json:"captured_at,omitempty"`
	VoidedAt           *time.Time               `json:"voided_at,omitempty"`
	UpdatedAt          time.Time                `json:"updated_at"`
}

// FromTransaction converts a domain Transaction to TransactionResponse
func FromTransaction(t *domain.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:                 t.ID,
		MerchantID:         t.MerchantID,
		Amount:             t.Amount,
		Currency:           t.Currency,
		Installments:       t.Installments,
		Status:             t.Status,
		ProcessorCode:      t.ProcessorCode,
		ProcessorReference: t.ProcessorReference,
		AuthorizationCode:  t.AuthorizationCode,
		CardBrand:          t.CardBrand,
		CardLastFour:       t.CardLastFour,
		ErrorCode:          t.ErrorCode,
		ErrorMessage:       t.ErrorMessage,
		CreatedAt:          t.CreatedAt,
		AuthorizedAt:       t.AuthorizedAt,
		CapturedAt:         t.CapturedAt,
		VoidedAt:           t.VoidedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}

// TransactionListResponse represents a list of transactions
type TransactionListResponse struct {
	Transactions []*TransactionResponse `json:"transactions"`
	Total        int                    `json:"total"`
}

// ProcessorResponse represents a processor's routing state
type ProcessorResponse struct {
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	Kind           string  `json:"kind"`
	OperatingState string  `json:"operating_state"`
	HealthState    string  `json:"health_state"`
	Priority       int     `json:"priority"`
	SuccessRate    float64 `json:"success_rate"`
	AvgLatencyMs   float64 `json:"avg_latency_ms"`
	DailyCeiling   int64   `json:"daily_ceiling"`
	VolumeToday    int64   `json:"volume_today"`
	Score          float64 `json:"score"`
}

// FromProcessor converts a domain Processor to ProcessorResponse
func FromProcessor(p *domain.Processor, score float64) *ProcessorResponse {
	return &ProcessorResponse{
		Code:           p.Code,
		Name:           p.Name,
		Kind:           string(p.Kind),
		OperatingState: string(p.OperatingState),
		HealthState:    string(p.HealthState),
		Priority:       p.Priority,
		SuccessRate:    p.Stats.SuccessRate,
		AvgLatencyMs:   p.Stats.AvgLatencyMs,
		DailyCeiling:   p.DailyCeiling,
		VolumeToday:    p.VolumeToday,
		Score:          score,
	}
}

// ProcessorListResponse represents a list of processors
type ProcessorListResponse struct {
	Processors []*ProcessorResponse `json:"processors"`
	Total      int                  `json:"total"`
}

// UpdateProcessorStateRequest represents an administrative state change
type UpdateProcessorStateRequest struct {
	OperatingState string `json:"operating_state" binding:"required,oneof=enabled disabled maintenance"`
}

// NotificationResponse represents a webhook notification's delivery state
type NotificationResponse struct {
	ID             string     `json:"id"`
	TransactionID  string     `json:"transaction_id"`
	Event          string     `json:"event"`
	State          string     `json:"state"`
	Attempts       int        `json:"attempts"`
	MaxAttempts    int        `json:"max_attempts"`
	Exhausted      bool       `json:"exhausted"`
	LastStatusCode int        `json:"last_status_code,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	NextAttemptAt  *time.Time `json:"next_attempt_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	SucceededAt    *time.Time `json:"succeeded_at,omitempty"`
}

// FromNotification converts a domain WebhookNotification to NotificationResponse
func FromNotification(n *domain.WebhookNotification) *NotificationResponse {
	return &NotificationResponse{
		ID:             n.ID,
		TransactionID:  n.TransactionID,
		Event:          n.Event,
		State:          string(n.State),
		Attempts:       n.Attempts,
		MaxAttempts:    n.MaxAttempts,
		Exhausted:      n.Exhausted,
		LastStatusCode: n.LastStatusCode,
		LastError:      n.LastError,
		NextAttemptAt:  n.NextAttemptAt,
		CreatedAt:      n.CreatedAt,
		SucceededAt:    n.SucceededAt,
	}
}

// NotificationListResponse represents a list of webhook notifications
type NotificationListResponse struct {
	Notifications []*NotificationResponse `json:"notifications"`
	Total         int                     `json:"total"`
}
