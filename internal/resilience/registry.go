package resilience

import (
	"context"
	"sync"
)

// Registry maps a string name (typically a provider or extractor tag) to a
// lazily-created CircuitBreaker, shared across every outbound call site
// per spec.md §4.1 ("A registry maps a string name to a breaker with a
// default preset").
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	factory  func(name string) *BreakerConfig
}

// NewRegistry builds a Registry. factory produces the BreakerConfig for a
// name the first time it's requested; pass nil to use StandardBreakerPreset
// for every name.
func NewRegistry(factory func(name string) *BreakerConfig) *Registry {
	if factory == nil {
		factory = func(name string) *BreakerConfig { return StandardBreakerPreset(name) }
	}
	return &Registry{breakers: make(map[string]*CircuitBreaker), factory: factory}
}

// Get returns the breaker for name, creating it on first access.
func (r *Registry) Get(name string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[name]; ok {
		return cb
	}
	cb := NewCircuitBreaker(r.factory(name))
	r.breakers[name] = cb
	return cb
}

// ResetAll resets every breaker currently held by the registry; used by
// test teardown per spec.md §9 ("explicit initialize/clear/reset entry
// points so tests can rebuild them between cases").
func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cb := range r.breakers {
		cb.Reset()
	}
}

// RetryWithBreaker composes Retry over a CircuitBreaker-protected call:
// the breaker is checked, then fn runs, then the breaker records the
// outcome, all inside each retry attempt. Because CircuitOpen is a
// non-retryable FrameworkError, an open breaker terminates the retry loop
// on its very first attempt (spec.md §9).
func RetryWithBreaker(ctx context.Context, cfg *RetryConfig, cb *CircuitBreaker, fn func() error) error {
	return Retry(ctx, cfg, func() error {
		return cb.Execute(fn)
	})
}
