package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_GetCreatesBreakerOnFirstAccess(t *testing.T) {
	r := NewRegistry(nil)

	cb := r.Get("openai")

	require.NotNil(t, cb)
	assert.Equal(t, "openai", cb.cfg.Name)
}

func TestRegistry_GetReturnsSameBreakerForSameName(t *testing.T) {
	r := NewRegistry(nil)

	first := r.Get("openai")
	second := r.Get("openai")

	assert.Same(t, first, second)
}

func TestRegistry_GetUsesFactoryPerName(t *testing.T) {
	r := NewRegistry(func(name string) *BreakerConfig {
		return &BreakerConfig{Name: name, FailureThreshold: 1, ResetTimeout: time.Hour, HalfOpenRequests: 1}
	})

	cb := r.Get("github")

	assert.Equal(t, 1, cb.cfg.FailureThreshold)
}

func TestRegistry_ResetAllResetsEveryBreaker(t *testing.T) {
	r := NewRegistry(func(name string) *BreakerConfig {
		return &BreakerConfig{Name: name, FailureThreshold: 1, ResetTimeout: time.Hour, HalfOpenRequests: 1}
	})
	cb := r.Get("youtube")
	cb.CanExecute()
	cb.RecordFailure()
	require.Equal(t, StateOpen, cb.State())

	r.ResetAll()

	assert.Equal(t, StateClosed, cb.State())
}

func TestRetryWithBreaker_OpenBreakerShortCircuitsFirstAttempt(t *testing.T) {
	cb := NewCircuitBreaker(&BreakerConfig{Name: "t", FailureThreshold: 1, ResetTimeout: time.Hour, HalfOpenRequests: 1})
	cb.CanExecute()
	cb.RecordFailure()
	require.Equal(t, StateOpen, cb.State())

	calls := 0
	err := RetryWithBreaker(context.Background(), fastRetryConfig(5), cb, func() error {
		calls++
		return nil
	})

	require.Error(t, err)
	assert.Equal(t, 0, calls)
}

func TestRetryWithBreaker_RetriesTransientFailureThenSucceeds(t *testing.T) {
	cb := NewCircuitBreaker(&BreakerConfig{Name: "t", FailureThreshold: 10, ResetTimeout: time.Hour, HalfOpenRequests: 1})

	calls := 0
	err := RetryWithBreaker(context.Background(), fastRetryConfig(3), cb, func() error {
		calls++
		if calls < 2 {
			return &retryableErr{msg: "transient", retryable: true}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, StateClosed, cb.State())
}

func TestRetryWithBreaker_PropagatesFinalErrorAfterExhaustion(t *testing.T) {
	cb := NewCircuitBreaker(&BreakerConfig{Name: "t", FailureThreshold: 10, ResetTimeout: time.Hour, HalfOpenRequests: 1})
	want := errors.New("boom")

	err := RetryWithBreaker(context.Background(), fastRetryConfig(2), cb, func() error {
		return &retryableErr{msg: want.Error(), retryable: true}
	})

	require.Error(t, err)
}
