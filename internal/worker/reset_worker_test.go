package worker

import (
	"context"
	"testing"
	"time"

	"github.com/pagforte/payment-gateway/internal/capacity"
	"github.com/pagforte/payment-gateway/internal/domain"
	"github.com/pagforte/payment-gateway/internal/registry"
	"github.com/pagforte/payment-gateway/pkg/logger"
)

func TestNextMidnight(t *testing.T) {
	now := time.Date(2026, 3, 15, 13, 45, 12, 0, time.UTC)
	got := nextMidnight(now)
	want := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("nextMidnight = %v, want %v", got, want)
	}

	// Last day of the month rolls over correctly
	now = time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC)
	got = nextMidnight(now)
	want = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("nextMidnight at month end = %v, want %v", got, want)
	}
}

func TestResetAtZeroesDailyVolume(t *testing.T) {
	reg := registry.NewProcessorRegistry()
	p := &domain.Processor{
		Code:           "cielo",
		Name:           "Cielo",
		Kind:           domain.ProcessorKindAcquirer,
		OperatingState: domain.OperatingStateEnabled,
		HealthState:    domain.HealthStateUp,
		Priority:       10,
		DailyCeiling:   100000,
		VolumeToday:    42000,
	}
	if err := reg.Register(p); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ledger := capacity.NewLedger(reg, nil, logger.Get())
	w := NewResetWorker(ledger)

	// Mid-month reset touches daily volume only
	w.resetAt(context.Background(), time.Date(2026, 3, 16, 0, 0, 1, 0, time.UTC))

	got, err := reg.Lookup("cielo")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.VolumeToday != 0 {
		t.Errorf("VolumeToday = %d, want 0", got.VolumeToday)
	}

	daily, monthly := w.LastResets()
	if daily.IsZero() {
		t.Error("daily reset time not recorded")
	}
	if !monthly.IsZero() {
		t.Error("monthly reset must not run mid-month")
	}
}
