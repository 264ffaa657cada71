package rebalance

import (
	"context"
	"testing"
	"time"

	"github.com/pagforte/payment-gateway/internal/domain"
	"github.com/pagforte/payment-gateway/internal/registry"
	"github.com/pagforte/payment-gateway/pkg/logger"
)

func statsWith(rate, latency float64) domain.ProcessorStats {
	return domain.ProcessorStats{SuccessRate: rate, AvgLatencyMs: latency}
}

func TestDelta(t *testing.T) {
	tests := []struct {
		name    string
		rate    float64
		latency float64
		want    int
	}{
		{"strong performer moves down five", 99.0, 500, -5},
		{"good performer moves down one", 96.0, 1500, -1},
		{"low success rate moves up five", 85.0, 500, +5},
		{"high latency moves up five", 96.0, 3500, +5},
		{"middle ground holds", 93.0, 1500, 0},
		{"strong rate but slow is not strong", 99.0, 1500, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Delta(statsWith(tt.rate, tt.latency)); got != tt.want {
				t.Errorf("Delta(%v%%, %vms) = %d, want %d", tt.rate, tt.latency, got, tt.want)
			}
		})
	}
}

func TestRebalanceAllAdjustsPriorities(t *testing.T) {
	reg := registry.NewProcessorRegistry()
	reg.Register(&domain.Processor{Code: "cielo", Priority: 10, Stats: statsWith(99.0, 500)})
	reg.Register(&domain.Processor{Code: "rede", Priority: 10, Stats: statsWith(85.0, 500)})
	reg.Register(&domain.Processor{Code: "getnet", Priority: 10, Stats: statsWith(93.0, 1500)})

	r := NewRebalancer(reg, time.Hour, logger.Get())
	r.RebalanceAll(context.Background())

	cielo, _ := reg.Lookup("cielo")
	if cielo.Priority != 5 {
		t.Errorf("cielo priority = %d, want 5", cielo.Priority)
	}
	rede, _ := reg.Lookup("rede")
	if rede.Priority != 15 {
		t.Errorf("rede priority = %d, want 15", rede.Priority)
	}
	getnet, _ := reg.Lookup("getnet")
	if getnet.Priority != 10 {
		t.Errorf("getnet priority = %d, want 10", getnet.Priority)
	}
}

func TestRebalanceAllClampsAtBounds(t *testing.T) {
	reg := registry.NewProcessorRegistry()
	reg.Register(&domain.Processor{Code: "top", Priority: 3, Stats: statsWith(99.0, 500)})
	reg.Register(&domain.Processor{Code: "bottom", Priority: 98, Stats: statsWith(50.0, 8000)})

	r := NewRebalancer(reg, time.Hour, logger.Get())
	r.RebalanceAll(context.Background())

	top, _ := reg.Lookup("top")
	if top.Priority != 1 {
		t.Errorf("top priority = %d, want clamp at 1", top.Priority)
	}
	bottom, _ := reg.Lookup("bottom")
	if bottom.Priority != 100 {
		t.Errorf("bottom priority = %d, want clamp at 100", bottom.Priority)
	}
}
