package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pagforte/payment-gateway/internal/adapter"
	"github.com/pagforte/payment-gateway/internal/domain"
)

// ProcessorRegistry holds the set of configured processors, keyed by code.
// It is built at startup and mutated at runtime only by the health monitor,
// capacity ledger and rebalancer, all of which go through Update.
type ProcessorRegistry struct {
	processors map[string]*domain.Processor
	mu         sync.RWMutex
}

// NewProcessorRegistry creates an empty processor registry
func NewProcessorRegistry() *ProcessorRegistry {
	return &ProcessorRegistry{
		processors: make(map[string]*domain.Processor),
	}
}

// Register adds or replaces a processor
func (r *ProcessorRegistry) Register(p *domain.Processor) error {
	if p == nil || p.Code == "" {
		return fmt.Errorf("processor code is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.processors[p.Code] = &cp
	return nil
}

// Lookup returns the processor with the given code
func (r *ProcessorRegistry) Lookup(code string) (*domain.Processor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.processors[code]
	if !ok {
		return nil, domain.ErrProcessorNotFound
	}
	cp := *p
	return &cp, nil
}

// List returns all processors, sorted by code for determinism
func (r *ProcessorRegistry) List() []*domain.Processor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Processor, 0, len(r.processors))
	for _, p := range r.processors {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Update applies fn to the stored processor under the registry lock.
// This is the single synchronized write path for processor state.
func (r *ProcessorRegistry) Update(code string, fn func(*domain.Processor)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.processors[code]
	if !ok {
		return domain.ErrProcessorNotFound
	}
	fn(p)
	return nil
}

// AdapterRegistry maps processor codes to their adapter implementations.
// It is populated from a static list at startup; an unknown code is a
// wiring error at boot, never a runtime discovery problem.
type AdapterRegistry struct {
	adapters map[string]adapter.Adapter
	mu       sync.RWMutex
}

// NewAdapterRegistry creates an empty adapter registry
func NewAdapterRegistry() *AdapterRegistry {
	return &AdapterRegistry{
		adapters: make(map[string]adapter.Adapter),
	}
}

// Register binds an adapter to its processor code
func (r *AdapterRegistry) Register(a adapter.Adapter) error {
	if a == nil || a.Code() == "" {
		return fmt.Errorf("adapter code is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[a.Code()]; exists {
		return fmt.Errorf("adapter already registered for code %q", a.Code())
	}
	r.adapters[a.Code()] = a
	return nil
}

// Lookup returns the adapter for the given processor code
func (r *AdapterRegistry) Lookup(code string) (adapter.Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[code]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for processor %q", code)
	}
	return a, nil
}
