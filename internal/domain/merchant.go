package domain

import (
	"time"
)

// DefaultWebhookTimeout bounds the outbound callback HTTP call
const DefaultWebhookTimeout = 30 * time.Second

// Merchant holds the per-merchant configuration the gateway consumes.
// Issuance of API keys and signing secrets happens in the merchant
// onboarding service; this is a read-mostly projection.
type Merchant struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Webhook configuration. An empty CallbackURL disables notifications
	// for this merchant; an empty WebhookSecret sends them unsigned.
	CallbackURL    string        `json:"callback_url,omitempty"`
	WebhookSecret  string        `json:"-"`
	WebhookTimeout time.Duration `json:"webhook_timeout"`

	// Monthly volume ceiling in currency minor units (0 = unlimited)
	MonthlyCeiling   int64 `json:"monthly_ceiling"`
	VolumeThisMonth  int64 `json:"volume_this_month"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WebhookTimeoutOrDefault returns the configured timeout, defaulting to 30s
func (m *Merchant) WebhookTimeoutOrDefault() time.Duration {
	if m.WebhookTimeout <= 0 {
		return DefaultWebhookTimeout
	}
	return m.WebhookTimeout
}

// HasMonthlyCapacityFor reports whether amount fits under the monthly ceiling
func (m *Merchant) HasMonthlyCapacityFor(amount int64) bool {
	if m.MonthlyCeiling <= 0 {
		return true
	}
	return m.VolumeThisMonth+amount <= m.MonthlyCeiling
}
