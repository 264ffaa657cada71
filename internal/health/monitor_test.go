package health

import (
	"context"
	"testing"
	"time"

	"github.com/pagforte/payment-gateway/internal/capacity"
	"github.com/pagforte/payment-gateway/internal/domain"
	"github.com/pagforte/payment-gateway/internal/registry"
	"github.com/pagforte/payment-gateway/pkg/logger"
)

func newTestMonitor(t *testing.T, procs ...*domain.Processor) (*Monitor, *registry.ProcessorRegistry) {
	t.Helper()
	reg := registry.NewProcessorRegistry()
	for _, p := range procs {
		reg.Register(p)
	}
	ledger := capacity.NewLedger(reg, nil, logger.Get())
	return NewMonitor(reg, ledger, time.Minute, logger.Get()), reg
}

func testProcessor(code string, rate, latency float64) *domain.Processor {
	return &domain.Processor{
		Code:           code,
		Name:           code,
		OperatingState: domain.OperatingStateEnabled,
		HealthState:    domain.HealthStateUnknown,
		Priority:       10,
		Stats: domain.ProcessorStats{
			TotalCount:   100,
			SuccessCount: int64(rate),
			SuccessRate:  rate,
			AvgLatencyMs: latency,
		},
	}
}

func TestCheckAllMarksHealthyProcessorUp(t *testing.T) {
	m, reg := newTestMonitor(t, testProcessor("cielo", 99.0, 200))

	m.CheckAll(context.Background())

	p, err := reg.Lookup("cielo")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if p.HealthState != domain.HealthStateUp {
		t.Errorf("expected up, got %s", p.HealthState)
	}
	if p.LastHealthCheckAt.IsZero() {
		t.Error("expected last health check timestamp to be stamped")
	}
}

func TestCheckAllMarksLowSuccessRateDown(t *testing.T) {
	m, reg := newTestMonitor(t, testProcessor("rede", 85.0, 200))

	m.CheckAll(context.Background())

	p, _ := reg.Lookup("rede")
	if p.HealthState != domain.HealthStateDown {
		t.Errorf("expected down at 85%% success rate, got %s", p.HealthState)
	}
}

func TestCheckAllMarksHighLatencyDown(t *testing.T) {
	m, reg := newTestMonitor(t, testProcessor("getnet", 99.0, 6000))

	m.CheckAll(context.Background())

	p, _ := reg.Lookup("getnet")
	if p.HealthState != domain.HealthStateDown {
		t.Errorf("expected down at 6000ms latency, got %s", p.HealthState)
	}
}

func TestCheckAllBoundaryValuesAreHealthy(t *testing.T) {
	// Exactly at the thresholds still counts as healthy
	m, reg := newTestMonitor(t, testProcessor("stone", MinSuccessRate, MaxAvgLatencyMs))

	m.CheckAll(context.Background())

	p, _ := reg.Lookup("stone")
	if p.HealthState != domain.HealthStateUp {
		t.Errorf("expected up at boundary thresholds, got %s", p.HealthState)
	}
}

func TestCheckAllStaleCheckMarksDown(t *testing.T) {
	proc := testProcessor("cielo", 99.0, 200)
	proc.LastHealthCheckAt = time.Now().Add(-10 * time.Minute)
	m, reg := newTestMonitor(t, proc)

	m.CheckAll(context.Background())

	p, _ := reg.Lookup("cielo")
	if p.HealthState != domain.HealthStateDown {
		t.Errorf("expected down with stale last check, got %s", p.HealthState)
	}
}

func TestCheckAllKeepsFreshProcessorUp(t *testing.T) {
	// A processor straight out of startup seeding has carried no traffic,
	// so its zero stats must not read as a 0% success rate.
	proc := testProcessor("cielo", 0, 0)
	proc.Stats = domain.ProcessorStats{}
	proc.HealthState = domain.HealthStateUp
	m, reg := newTestMonitor(t, proc)

	m.CheckAll(context.Background())

	p, _ := reg.Lookup("cielo")
	if p.HealthState != domain.HealthStateUp {
		t.Errorf("expected untrafficked processor to stay up, got %s", p.HealthState)
	}
	if p.LastHealthCheckAt.IsZero() {
		t.Error("expected last health check timestamp to be stamped")
	}
}

func TestCheckAllKeepsFreshProcessorUpAcrossQuietTicks(t *testing.T) {
	// Repeated ticks with no traffic must not trip the stale-check rule
	proc := testProcessor("rede", 0, 0)
	proc.Stats = domain.ProcessorStats{}
	proc.HealthState = domain.HealthStateUp
	m, reg := newTestMonitor(t, proc)

	for i := 0; i < 3; i++ {
		m.CheckAll(context.Background())
	}

	p, _ := reg.Lookup("rede")
	if p.HealthState != domain.HealthStateUp {
		t.Errorf("expected quiet processor to stay up, got %s", p.HealthState)
	}
}

func TestCheckAllRecoversDownProcessor(t *testing.T) {
	proc := testProcessor("rede", 99.0, 200)
	proc.HealthState = domain.HealthStateDown
	m, reg := newTestMonitor(t, proc)

	m.CheckAll(context.Background())

	p, _ := reg.Lookup("rede")
	if p.HealthState != domain.HealthStateUp {
		t.Errorf("expected immediate recovery to up, got %s", p.HealthState)
	}
}
