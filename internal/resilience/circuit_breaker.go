package resilience

import (
	"sync"
	"time"

	"github.com/RBarbieri13/decant/internal/core"
)

// State is one of the three circuit breaker states from spec.md §4.1.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures the three transition thresholds named in
// spec.md §4.1.
type BreakerConfig struct {
	Name             string
	FailureThreshold int           // consecutive failures to trip open
	ResetTimeout     time.Duration // time in open before a probe is allowed
	HalfOpenRequests int           // consecutive successes in half-open to close
	Logger           core.Logger
}

// SensitivePreset trips fast and probes cautiously; good for flaky
// third-party site APIs.
func SensitivePreset(name string) *BreakerConfig {
	return &BreakerConfig{Name: name, FailureThreshold: 5, ResetTimeout: 30 * time.Second, HalfOpenRequests: 2}
}

// StandardBreakerPreset is the default used by most outbound integrations.
func StandardBreakerPreset(name string) *BreakerConfig {
	return &BreakerConfig{Name: name, FailureThreshold: 10, ResetTimeout: 60 * time.Second, HalfOpenRequests: 3}
}

// TolerantPreset is forgiving, for calls expected to have a noisy baseline.
func TolerantPreset(name string) *BreakerConfig {
	return &BreakerConfig{Name: name, FailureThreshold: 20, ResetTimeout: 120 * time.Second, HalfOpenRequests: 5}
}

// CircuitBreaker implements the three-state breaker from spec.md §4.1:
// closed -> open on consecutiveFailures >= FailureThreshold; open ->
// half-open after ResetTimeout, scheduled by a timer at the moment of
// opening and also checked lazily on the next call; half-open -> closed on
// consecutiveSuccesses >= HalfOpenRequests; half-open -> open on any single
// failure.
type CircuitBreaker struct {
	cfg *BreakerConfig

	mu                  sync.Mutex
	state               State
	stateChangedAt      time.Time
	consecutiveFailures int
	consecutiveSuccess  int
	halfOpenInFlight    int
	totalRequests       uint64
	timer               *time.Timer
}

// NewCircuitBreaker builds a breaker from cfg, applying StandardBreakerPreset
// defaults for any zero fields.
func NewCircuitBreaker(cfg *BreakerConfig) *CircuitBreaker {
	if cfg == nil {
		cfg = StandardBreakerPreset("default")
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 10
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 60 * time.Second
	}
	if cfg.HalfOpenRequests <= 0 {
		cfg.HalfOpenRequests = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = core.NoOpLogger{}
	}
	return &CircuitBreaker{cfg: cfg, state: StateClosed, stateChangedAt: time.Now()}
}

// CanExecute reports whether a call may proceed right now, taking a lazy
// open->half-open transition if ResetTimeout has elapsed. Every call
// (allowed or not) increments totalRequests, per spec.md §4.1.
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.totalRequests++

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(cb.stateChangedAt) >= cb.cfg.ResetTimeout {
			cb.transitionLocked(StateHalfOpen)
			cb.halfOpenInFlight++
			return true
		}
		return false
	case StateHalfOpen:
		if cb.halfOpenInFlight < cb.cfg.HalfOpenRequests {
			cb.halfOpenInFlight++
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess zeros consecutiveFailures and, in half-open, advances
// toward closing the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures = 0
	switch cb.state {
	case StateHalfOpen:
		cb.consecutiveSuccess++
		cb.halfOpenInFlight--
		if cb.halfOpenInFlight < 0 {
			cb.halfOpenInFlight = 0
		}
		if cb.consecutiveSuccess >= cb.cfg.HalfOpenRequests {
			cb.transitionLocked(StateClosed)
		}
	case StateClosed:
		// nothing further to do
	}
}

// RecordFailure zeros consecutiveSuccesses and opens the circuit, either
// immediately (half-open: any single failure reopens) or once
// FailureThreshold is reached (closed).
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveSuccess = 0
	switch cb.state {
	case StateHalfOpen:
		cb.halfOpenInFlight--
		if cb.halfOpenInFlight < 0 {
			cb.halfOpenInFlight = 0
		}
		cb.transitionLocked(StateOpen)
	case StateClosed:
		cb.consecutiveFailures++
		if cb.consecutiveFailures >= cb.cfg.FailureThreshold {
			cb.transitionLocked(StateOpen)
		}
	}
}

// transitionLocked must be called with cb.mu held.
func (cb *CircuitBreaker) transitionLocked(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.stateChangedAt = time.Now()

	if cb.timer != nil {
		cb.timer.Stop()
		cb.timer = nil
	}

	switch to {
	case StateOpen:
		cb.consecutiveFailures = 0
		timeout := cb.cfg.ResetTimeout
		cb.timer = time.AfterFunc(timeout, func() {
			cb.mu.Lock()
			defer cb.mu.Unlock()
			if cb.state == StateOpen && time.Since(cb.stateChangedAt) >= timeout {
				cb.transitionLocked(StateHalfOpen)
			}
		})
	case StateHalfOpen:
		cb.halfOpenInFlight = 0
		cb.consecutiveSuccess = 0
	case StateClosed:
		cb.consecutiveFailures = 0
		cb.consecutiveSuccess = 0
	}

	cb.cfg.Logger.Info("circuit breaker state changed", map[string]interface{}{
		"name": cb.cfg.Name, "from": from.String(), "to": to.String(),
	})
}

// Reset returns the breaker to closed and cancels any pending timer.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.timer != nil {
		cb.timer.Stop()
		cb.timer = nil
	}
	cb.state = StateClosed
	cb.stateChangedAt = time.Now()
	cb.consecutiveFailures = 0
	cb.consecutiveSuccess = 0
	cb.halfOpenInFlight = 0
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// TotalRequests returns the lifetime count of CanExecute calls.
func (cb *CircuitBreaker) TotalRequests() uint64 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.totalRequests
}

// Execute runs fn under the breaker's protection: if the breaker denies
// execution it returns core.ErrCircuitOpen (wrapped) without invoking fn;
// otherwise it runs fn and records the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.CanExecute() {
		return core.NewError("resilience.CircuitBreaker.Execute", core.KindCircuitOpen,
			"circuit '"+cb.cfg.Name+"' is open", core.ErrCircuitOpen)
	}
	err := fn()
	if err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}
