package routing

import (
	"github.com/pagforte/payment-gateway/internal/domain"
)

// Score term weights. The composite score is normalized to 0-100.
const (
	successWeight  = 40.0
	latencyWeight  = 30.0
	priorityWeight = 20.0
	headroomWeight = 10.0

	// latencyScaleMs is the latency at which the latency term reaches zero
	latencyScaleMs = 5000.0
)

// Score computes the composite routing score for a processor:
// success rate (40), latency penalty reaching zero at 5000ms (30),
// static priority (20, priority 1 scores highest) and daily ceiling
// headroom (10).
func Score(p *domain.Processor) float64 {
	successTerm := p.Stats.SuccessRate / 100 * successWeight

	latencyTerm := latencyWeight - (p.Stats.AvgLatencyMs/1000)*(latencyWeight/(latencyScaleMs/1000))
	if latencyTerm < 0 {
		latencyTerm = 0
	}

	priorityTerm := float64(100-p.Priority) / 100 * priorityWeight

	headroomTerm := (100 - p.CeilingUsedPercent()) / 100 * headroomWeight

	return successTerm + latencyTerm + priorityTerm + headroomTerm
}

// Better reports whether candidate a outranks candidate b: higher score
// first, ties broken by lower static priority, then by processor code so
// selection is deterministic.
func Better(a, b *domain.Processor) bool {
	sa, sb := Score(a), Score(b)
	if sa != sb {
		return sa > sb
	}
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.Code < b.Code
}
