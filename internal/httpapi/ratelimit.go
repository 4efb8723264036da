package httpapi

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/RBarbieri13/decant/internal/core"
)

// scopeLimiter rate-limits one named scope (global/import/settings) using
// a per-process token bucket; spec.md §6/§5 name the three scopes and
// their per-minute budgets.
type scopeLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
}

func newScopeLimiter(perMinute int) *scopeLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	r := rate.Limit(float64(perMinute) / 60.0)
	return &scopeLimiter{limiter: rate.NewLimiter(r, perMinute)}
}

func (s *scopeLimiter) allow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limiter.Allow()
}

// rateLimit wraps next, rejecting the (max+1)-th request in the scope's
// current window with 429 and a Retry-After header (spec.md §6).
func rateLimit(limiter *scopeLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.allow() {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{
				Error: "rate limit exceeded", Code: string(core.KindRateLimitExceeded), RetryAfter: "60",
			})
			return
		}
		next(w, r)
	}
}
