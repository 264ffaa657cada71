package domain

import "errors"

// Common domain errors
var (
	ErrNoProcessorAvailable   = errors.New("no processor available for routing")
	ErrProcessorNotFound      = errors.New("processor not found")
	ErrProcessorDisabled      = errors.New("processor is disabled")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrTransactionExists      = errors.New("transaction already exists")
	ErrTransactionFinal       = errors.New("transaction is in a final state")
	ErrNotificationNotFound   = errors.New("webhook notification not found")
	ErrNotificationExists     = errors.New("webhook notification already exists")
	ErrNotificationTerminal   = errors.New("webhook notification is in a terminal state")
	ErrMerchantNotFound       = errors.New("merchant not found")
	ErrCaptureNotSupported    = errors.New("processor does not support capture")
	ErrVoidNotSupported       = errors.New("processor does not support void")
	ErrDailyCeilingExceeded   = errors.New("processor daily volume ceiling exceeded")
	ErrMonthlyCeilingExceeded = errors.New("merchant monthly volume ceiling exceeded")
)
