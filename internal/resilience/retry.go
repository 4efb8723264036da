// Package resilience provides the retry-with-backoff and circuit-breaker
// primitives shared by every outbound call in the import pipeline
// (extractors, the LLM provider), following the composition rule from
// spec.md §9: the breaker wraps the raw call, retry wraps the
// breaker-protected call, so an open breaker always short-circuits the
// retry loop on its first attempt.
package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/RBarbieri13/decant/internal/core"
)

// RetryableError lets a caller's error type declare whether it should be
// retried without decant having to know about the concrete error type.
type RetryableError interface {
	error
	Retryable() bool
}

// HTTPStatusError lets a caller's error type carry the HTTP status code
// and Retry-After header value, if any, that produced it.
type HTTPStatusError interface {
	error
	StatusCode() int
	RetryAfter() string // raw header value, seconds or HTTP-date; "" if absent
}

// RetryConfig configures one Retry invocation.
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	JitterFactor    float64 // 0 disables jitter
	JitterEnabled   bool
	// RetrySubstrings additionally marks an error retryable if its message
	// contains any of these (case-sensitive), e.g. for RATE_LIMIT preset.
	RetrySubstrings []string
	OnRetry         func(attempt int, err error, delay time.Duration)
}

var retryableStatusCodes = map[int]bool{
	http.StatusRequestTimeout:     true,
	http.StatusTooManyRequests:    true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
}

var retryableNetworkIndicators = []string{
	"ECONNRESET", "ETIMEDOUT", "ENOTFOUND", "ECONNREFUSED",
	"EHOSTUNREACH", "ENETUNREACH", "socket hang up",
}

// FastPreset retries quickly with a short cap, for latency-sensitive calls.
func FastPreset() *RetryConfig {
	return &RetryConfig{MaxAttempts: 2, InitialDelay: 50 * time.Millisecond, MaxDelay: 500 * time.Millisecond, BackoffFactor: 2, JitterEnabled: true, JitterFactor: 0.2}
}

// StandardPreset is the default used by most outbound calls.
func StandardPreset() *RetryConfig {
	return &RetryConfig{MaxAttempts: 3, InitialDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second, BackoffFactor: 2, JitterEnabled: true, JitterFactor: 0.2}
}

// PatientPreset allows more attempts with a longer cap, for batch/background work.
func PatientPreset() *RetryConfig {
	return &RetryConfig{MaxAttempts: 5, InitialDelay: 500 * time.Millisecond, MaxDelay: 30 * time.Second, BackoffFactor: 2, JitterEnabled: true, JitterFactor: 0.3}
}

// RateLimitPreset forces retry on rate-limit indicators in addition to the
// standard retryable statuses; used by the LLM provider (spec.md §4.4).
func RateLimitPreset() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 4, InitialDelay: 1 * time.Second, MaxDelay: 20 * time.Second, BackoffFactor: 2,
		JitterEnabled: true, JitterFactor: 0.25,
		RetrySubstrings: []string{"429", "Too Many Requests", "Rate limit"},
	}
}

// isRetryable decides whether err should be retried, per spec.md §4.1:
// a recognized retryable HTTP status, a recognized network error
// indicator, or a caller-supplied substring match.
func isRetryable(err error, substrings []string) bool {
	if err == nil {
		return false
	}

	var fe *core.FrameworkError
	if errors.As(err, &fe) && fe.Kind == core.KindCircuitOpen {
		return false
	}

	var re RetryableError
	if errors.As(err, &re) {
		return re.Retryable()
	}

	var hse HTTPStatusError
	if errors.As(err, &hse) {
		if retryableStatusCodes[hse.StatusCode()] {
			return true
		}
	}

	msg := err.Error()
	for _, ind := range retryableNetworkIndicators {
		if strings.Contains(msg, ind) {
			return true
		}
	}
	for _, s := range substrings {
		if s != "" && strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// retryAfterDelay extracts a Retry-After hint from err, if any, as a duration.
func retryAfterDelay(err error) (time.Duration, bool) {
	var hse HTTPStatusError
	if !errors.As(err, &hse) {
		return 0, false
	}
	raw := hse.RetryAfter()
	if raw == "" {
		return 0, false
	}
	if secs, convErr := strconv.Atoi(strings.TrimSpace(raw)); convErr == nil {
		return time.Duration(secs) * time.Second, true
	}
	if t, convErr := http.ParseTime(raw); convErr == nil {
		d := time.Until(t)
		if d > 0 {
			return d, true
		}
	}
	return 0, false
}

// Retry runs fn up to cfg.MaxAttempts times, honoring exponential backoff
// with jitter and Retry-After hints exactly as spec.md §4.1 describes. A
// non-retryable error is returned immediately; exhausting attempts
// returns the last error wrapped in core.ErrMaxRetries.
func Retry(ctx context.Context, cfg *RetryConfig, fn func() error) error {
	if cfg == nil {
		cfg = StandardPreset()
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err, cfg.RetrySubstrings) {
			return err
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		delay := computeDelay(cfg, attempt)
		if hinted, ok := retryAfterDelay(err); ok && hinted > delay {
			delay = hinted
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return core.NewError("resilience.Retry", core.KindInternal, "max retry attempts exceeded", errors.Join(core.ErrMaxRetries, lastErr))
}

func computeDelay(cfg *RetryConfig, attempt int) time.Duration {
	base := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffFactor, float64(attempt))
	if max := float64(cfg.MaxDelay); max > 0 && base > max {
		base = max
	}
	delay := time.Duration(base)
	if cfg.JitterEnabled && cfg.JitterFactor > 0 {
		jitter := base * cfg.JitterFactor * rand.Float64()
		delay += time.Duration(jitter)
	}
	return delay
}
