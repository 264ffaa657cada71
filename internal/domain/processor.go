package domain

import (
	"time"
)

// ProcessorKind represents the integration kind of a processor
type ProcessorKind string

const (
	ProcessorKindAcquirer    ProcessorKind = "acquirer"
	ProcessorKindSubacquirer ProcessorKind = "subacquirer"
	ProcessorKindFacilitator ProcessorKind = "facilitator"
	ProcessorKindWallet      ProcessorKind = "wallet"
)

// OperatingState is the administrative state of a processor
type OperatingState string

const (
	OperatingStateEnabled     OperatingState = "enabled"
	OperatingStateDisabled    OperatingState = "disabled"
	OperatingStateMaintenance OperatingState = "maintenance"
)

// HealthState is the observed state of a processor, derived from rolling stats
type HealthState string

const (
	HealthStateUp   HealthState = "up"
	HealthStateDown HealthState = "down"
	// HealthStateDegraded is accepted from operators and external state
	// sources; the health monitor itself only emits up, down and unknown
	HealthStateDegraded HealthState = "degraded"
	HealthStateUnknown  HealthState = "unknown"
)

// Capabilities describes which operations a processor supports
type Capabilities struct {
	Capture         bool `json:"capture"`
	Void            bool `json:"void"`
	Refund          bool `json:"refund"`
	MaxInstallments int  `json:"max_installments"`
}

// ProcessorStats holds the rolling performance counters for a processor.
// Updated only through the capacity ledger's RecordOutcome.
type ProcessorStats struct {
	TotalCount   int64   `json:"total_count"`
	SuccessCount int64   `json:"success_count"`
	SuccessRate  float64 `json:"success_rate"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// Processor represents an external payment-processing endpoint
type Processor struct {
	Code           string         `json:"code"`
	Name           string         `json:"name"`
	Kind           ProcessorKind  `json:"kind"`
	OperatingState OperatingState `json:"operating_state"`
	HealthState    HealthState    `json:"health_state"`

	// Routing inputs. Lower priority is preferred (1 = best).
	Priority     int          `json:"priority"`
	Weight       int          `json:"weight"`
	Capabilities Capabilities `json:"capabilities"`

	Stats ProcessorStats `json:"stats"`

	// Capacity, in currency minor units
	DailyCeiling int64 `json:"daily_ceiling"`
	VolumeToday  int64 `json:"volume_today"`

	// Timing and retry configuration for adapter calls
	ConnectTimeout time.Duration `json:"connect_timeout"`
	ReadTimeout    time.Duration `json:"read_timeout"`
	MaxAttempts    int           `json:"max_attempts"`
	RetryInterval  time.Duration `json:"retry_interval"`

	LastHealthCheckAt time.Time `json:"last_health_check_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// IsEligible reports whether the processor can be considered for routing.
// Unknown health is treated as down: a processor we cannot evaluate is
// excluded until the monitor succeeds.
func (p *Processor) IsEligible() bool {
	return p.OperatingState == OperatingStateEnabled &&
		p.HealthState != HealthStateDown &&
		p.HealthState != HealthStateUnknown
}

// HasCapacityFor reports whether amount fits under the daily ceiling.
// This is an admission check, not a reservation; a concurrent pair of
// authorizations may overshoot the ceiling by one transaction.
func (p *Processor) HasCapacityFor(amount int64) bool {
	if p.DailyCeiling <= 0 {
		return true
	}
	return p.VolumeToday+amount <= p.DailyCeiling
}

// CeilingUsedPercent returns how much of the daily ceiling is consumed (0-100)
func (p *Processor) CeilingUsedPercent() float64 {
	if p.DailyCeiling <= 0 {
		return 0
	}
	pct := float64(p.VolumeToday) / float64(p.DailyCeiling) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// SetHealthState updates the observed health state
func (p *Processor) SetHealthState(state HealthState) {
	p.HealthState = state
	p.LastHealthCheckAt = time.Now().UTC()
	p.UpdatedAt = p.LastHealthCheckAt
}

// AdjustPriority moves the static priority by delta, clamped to [1, 100]
func (p *Processor) AdjustPriority(delta int) {
	p.Priority += delta
	if p.Priority < 1 {
		p.Priority = 1
	}
	if p.Priority > 100 {
		p.Priority = 100
	}
	p.UpdatedAt = time.Now().UTC()
}
