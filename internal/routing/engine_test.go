package routing

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/pagforte/payment-gateway/internal/domain"
	"github.com/pagforte/payment-gateway/internal/registry"
	"github.com/pagforte/payment-gateway/pkg/logger"
)

func processor(code string, priority int, rate, latency float64) *domain.Processor {
	return &domain.Processor{
		Code:           code,
		Name:           code,
		OperatingState: domain.OperatingStateEnabled,
		HealthState:    domain.HealthStateUp,
		Priority:       priority,
		Stats: domain.ProcessorStats{
			SuccessRate:  rate,
			AvgLatencyMs: latency,
		},
	}
}

func newEngine(t *testing.T, procs ...*domain.Processor) (*Engine, *registry.ProcessorRegistry) {
	t.Helper()
	reg := registry.NewProcessorRegistry()
	for _, p := range procs {
		if err := reg.Register(p); err != nil {
			t.Fatalf("register %s: %v", p.Code, err)
		}
	}
	return NewEngine(reg, logger.Get()), reg
}

func TestScorePerfectProcessor(t *testing.T) {
	p := processor("cielo", 1, 100, 0)
	got := Score(p)

	// 40 (success) + 30 (latency) + 19.8 (priority 1) + 10 (headroom)
	want := 40.0 + 30.0 + 19.8 + 10.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Score = %v, want %v", got, want)
	}
}

func TestScoreTermBreakdown(t *testing.T) {
	p := processor("rede", 50, 90, 2000)
	p.DailyCeiling = 1000
	p.VolumeToday = 500

	// success 90/100*40 = 36; latency 30 - 2*6 = 18; priority (100-50)/100*20 = 10;
	// headroom (100-50)/100*10 = 5
	want := 36.0 + 18.0 + 10.0 + 5.0
	got := Score(p)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Score = %v, want %v", got, want)
	}
}

func TestScoreLatencyTermFloorsAtZero(t *testing.T) {
	slow := processor("lento", 50, 90, 9000)
	fast := processor("lento2", 50, 90, 5000)
	if Score(slow) != Score(fast) {
		t.Errorf("latency term should floor at zero past 5000ms: %v vs %v", Score(slow), Score(fast))
	}
}

func TestBetterTieBreaksByPriorityThenCode(t *testing.T) {
	a := processor("abc", 5, 95, 1000)
	b := processor("xyz", 10, 95, 1000)
	// Same success and latency; a has better priority, which also raises
	// its score, so a wins
	if !Better(a, b) {
		t.Error("expected lower priority to win")
	}

	c := processor("aaa", 5, 95, 1000)
	d := processor("bbb", 5, 95, 1000)
	if !Better(c, d) {
		t.Error("expected code order to break exact ties")
	}
	if Better(d, c) {
		t.Error("tie break must be asymmetric")
	}
}

func TestSelectProcessorPicksHighestScore(t *testing.T) {
	// A: 98% at 2000ms, priority 10; B: 92% at 500ms, priority 10
	a := processor("procA", 10, 98, 2000)
	b := processor("procB", 10, 92, 500)
	e, _ := newEngine(t, a, b)

	// A: 39.2 + 18 + 18 + 10 = 85.2; B: 36.8 + 27 + 18 + 10 = 91.8
	winner, err := e.SelectProcessor(context.Background(), &domain.Merchant{ID: "mer_1"}, 1000)
	if err != nil {
		t.Fatalf("SelectProcessor: %v", err)
	}
	if winner.Code != "procB" {
		t.Errorf("winner = %s, want procB (lower latency outweighs success edge)", winner.Code)
	}
}

func TestSelectProcessorSkipsIneligible(t *testing.T) {
	down := processor("down", 1, 99, 100)
	down.HealthState = domain.HealthStateDown
	disabled := processor("off", 1, 99, 100)
	disabled.OperatingState = domain.OperatingStateDisabled
	unknown := processor("new", 1, 99, 100)
	unknown.HealthState = domain.HealthStateUnknown
	ok := processor("ok", 50, 80, 3000)
	e, _ := newEngine(t, down, disabled, unknown, ok)

	winner, err := e.SelectProcessor(context.Background(), &domain.Merchant{ID: "mer_1"}, 1000)
	if err != nil {
		t.Fatalf("SelectProcessor: %v", err)
	}
	if winner.Code != "ok" {
		t.Errorf("winner = %s, want ok", winner.Code)
	}
}

func TestSelectProcessorSkipsFullDailyCeiling(t *testing.T) {
	full := processor("cheio", 1, 99, 100)
	full.DailyCeiling = 1000
	full.VolumeToday = 999
	spare := processor("vazio", 50, 80, 3000)
	e, _ := newEngine(t, full, spare)

	winner, err := e.SelectProcessor(context.Background(), &domain.Merchant{ID: "mer_1"}, 500)
	if err != nil {
		t.Fatalf("SelectProcessor: %v", err)
	}
	if winner.Code != "vazio" {
		t.Errorf("winner = %s, want vazio", winner.Code)
	}
}

func TestSelectProcessorNoCandidates(t *testing.T) {
	down := processor("down", 1, 99, 100)
	down.HealthState = domain.HealthStateDown
	e, _ := newEngine(t, down)

	_, err := e.SelectProcessor(context.Background(), &domain.Merchant{ID: "mer_1"}, 1000)
	if !errors.Is(err, domain.ErrNoProcessorAvailable) {
		t.Errorf("err = %v, want ErrNoProcessorAvailable", err)
	}
}

func TestSelectFallbackExcludesFailedProcessor(t *testing.T) {
	a := processor("procA", 10, 98, 300)
	b := processor("procB", 20, 97, 300)
	e, _ := newEngine(t, a, b)

	fb, err := e.SelectFallback(context.Background(), &domain.Merchant{ID: "mer_1"}, "procA", 1000)
	if err != nil {
		t.Fatalf("SelectFallback: %v", err)
	}
	if fb == nil || fb.Code != "procB" {
		t.Errorf("fallback = %v, want procB", fb)
	}
}

func TestSelectFallbackPrefersStableCandidates(t *testing.T) {
	// best scores higher overall but sits below the 95% stability bar
	best := processor("rapido", 1, 94, 100)
	stable := processor("firme", 60, 96, 4000)
	failed := processor("caiu", 10, 99, 100)
	e, _ := newEngine(t, best, stable, failed)

	fb, err := e.SelectFallback(context.Background(), &domain.Merchant{ID: "mer_1"}, "caiu", 1000)
	if err != nil {
		t.Fatalf("SelectFallback: %v", err)
	}
	if fb == nil || fb.Code != "firme" {
		t.Errorf("fallback = %v, want firme (stability preferred over raw score)", fb)
	}
}

func TestSelectFallbackFallsBackToScoreWhenNoneStable(t *testing.T) {
	a := processor("procA", 10, 90, 500)
	failed := processor("caiu", 10, 99, 100)
	e, _ := newEngine(t, a, failed)

	fb, err := e.SelectFallback(context.Background(), &domain.Merchant{ID: "mer_1"}, "caiu", 1000)
	if err != nil {
		t.Fatalf("SelectFallback: %v", err)
	}
	if fb == nil || fb.Code != "procA" {
		t.Errorf("fallback = %v, want procA", fb)
	}
}

func TestSelectFallbackReturnsNilWhenExhausted(t *testing.T) {
	only := processor("unico", 10, 99, 100)
	e, _ := newEngine(t, only)

	fb, err := e.SelectFallback(context.Background(), &domain.Merchant{ID: "mer_1"}, "unico", 1000)
	if err != nil {
		t.Fatalf("SelectFallback: %v", err)
	}
	if fb != nil {
		t.Errorf("fallback = %v, want nil", fb)
	}
}
