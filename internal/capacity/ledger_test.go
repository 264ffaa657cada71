package capacity

import (
	"context"
	"math"
	"testing"

	"github.com/pagforte/payment-gateway/internal/domain"
	"github.com/pagforte/payment-gateway/internal/registry"
	"github.com/pagforte/payment-gateway/pkg/logger"
)

func newLedger(t *testing.T, procs ...*domain.Processor) (*Ledger, *registry.ProcessorRegistry) {
	t.Helper()
	reg := registry.NewProcessorRegistry()
	for _, p := range procs {
		if err := reg.Register(p); err != nil {
			t.Fatalf("register %s: %v", p.Code, err)
		}
	}
	return NewLedger(reg, nil, logger.Get()), reg
}

func TestReserveChecksDailyCeiling(t *testing.T) {
	p := &domain.Processor{Code: "cielo", DailyCeiling: 10000, VolumeToday: 9000}
	l, _ := newLedger(t, p)

	ok, err := l.Reserve("cielo", 1000)
	if err != nil || !ok {
		t.Errorf("Reserve(1000) = %v, %v; want admitted", ok, err)
	}

	ok, err = l.Reserve("cielo", 1001)
	if err != nil || ok {
		t.Errorf("Reserve(1001) = %v, %v; want refused", ok, err)
	}
}

func TestReserveUnlimitedWhenNoCeiling(t *testing.T) {
	l, _ := newLedger(t, &domain.Processor{Code: "cielo"})

	ok, err := l.Reserve("cielo", 1<<40)
	if err != nil || !ok {
		t.Errorf("Reserve with no ceiling = %v, %v; want admitted", ok, err)
	}
}

func TestReserveUnknownProcessor(t *testing.T) {
	l, _ := newLedger(t)

	if _, err := l.Reserve("fantasma", 100); err == nil {
		t.Error("expected error for unknown processor")
	}
}

func TestRecordOutcomeExactSuccessRate(t *testing.T) {
	l, reg := newLedger(t, &domain.Processor{Code: "cielo"})
	ctx := context.Background()

	outcomes := []bool{true, true, false, true, false, true, true}
	for _, success := range outcomes {
		if err := l.RecordOutcome(ctx, "cielo", success, 100, 200); err != nil {
			t.Fatalf("RecordOutcome: %v", err)
		}
	}

	p, _ := reg.Lookup("cielo")
	if p.Stats.TotalCount != 7 || p.Stats.SuccessCount != 5 {
		t.Errorf("counts = %d/%d, want 5/7", p.Stats.SuccessCount, p.Stats.TotalCount)
	}
	want := 5.0 / 7.0 * 100
	if math.Abs(p.Stats.SuccessRate-want) > 1e-9 {
		t.Errorf("SuccessRate = %v, want %v", p.Stats.SuccessRate, want)
	}
}

func TestRecordOutcomeTwoPointLatencyAverage(t *testing.T) {
	l, reg := newLedger(t, &domain.Processor{Code: "cielo"})
	ctx := context.Background()

	// First sample seeds the average
	_ = l.RecordOutcome(ctx, "cielo", true, 0, 400)
	p, _ := reg.Lookup("cielo")
	if p.Stats.AvgLatencyMs != 400 {
		t.Fatalf("first sample avg = %v, want 400", p.Stats.AvgLatencyMs)
	}

	// Each later sample averages with the running value
	_ = l.RecordOutcome(ctx, "cielo", true, 0, 200)
	p, _ = reg.Lookup("cielo")
	if p.Stats.AvgLatencyMs != 300 {
		t.Errorf("avg after 200 = %v, want 300", p.Stats.AvgLatencyMs)
	}

	_ = l.RecordOutcome(ctx, "cielo", true, 0, 100)
	p, _ = reg.Lookup("cielo")
	if p.Stats.AvgLatencyMs != 200 {
		t.Errorf("avg after 100 = %v, want 200", p.Stats.AvgLatencyMs)
	}
}

func TestRecordOutcomeAccumulatesDailyVolume(t *testing.T) {
	l, reg := newLedger(t, &domain.Processor{Code: "cielo"})
	ctx := context.Background()

	_ = l.RecordOutcome(ctx, "cielo", true, 5000, 100)
	_ = l.RecordOutcome(ctx, "cielo", true, 2500, 100)

	p, _ := reg.Lookup("cielo")
	if p.VolumeToday != 7500 {
		t.Errorf("VolumeToday = %d, want 7500", p.VolumeToday)
	}
}

func TestResetDailyVolumesPreservesCounters(t *testing.T) {
	l, reg := newLedger(t,
		&domain.Processor{Code: "cielo"},
		&domain.Processor{Code: "rede"},
	)
	ctx := context.Background()

	_ = l.RecordOutcome(ctx, "cielo", true, 5000, 100)
	_ = l.RecordOutcome(ctx, "rede", false, 3000, 100)

	l.ResetDailyVolumes(ctx)

	cielo, _ := reg.Lookup("cielo")
	if cielo.VolumeToday != 0 {
		t.Errorf("cielo VolumeToday = %d, want 0", cielo.VolumeToday)
	}
	if cielo.Stats.TotalCount != 1 || cielo.Stats.SuccessCount != 1 {
		t.Error("daily reset must not touch performance counters")
	}
	rede, _ := reg.Lookup("rede")
	if rede.VolumeToday != 0 {
		t.Errorf("rede VolumeToday = %d, want 0", rede.VolumeToday)
	}
	if rede.Stats.TotalCount != 1 {
		t.Error("daily reset must not touch performance counters")
	}
}

func TestStatsSnapshot(t *testing.T) {
	l, _ := newLedger(t, &domain.Processor{Code: "cielo"})
	ctx := context.Background()

	_ = l.RecordOutcome(ctx, "cielo", true, 100, 250)

	stats, err := l.Stats("cielo")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalCount != 1 || stats.AvgLatencyMs != 250 {
		t.Errorf("stats = %+v", stats)
	}
}
