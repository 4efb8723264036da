package extract

import (
	"net/http"

	"github.com/RBarbieri13/decant/internal/core"
	"github.com/RBarbieri13/decant/internal/resilience"
)

// BreakerTransport wraps an http.RoundTripper so every outbound request
// checks a circuit breaker before RoundTrip and records the outcome
// after, grounded on the teacher's decorator-style transport
// (ui/circuit_breaker_transport.go wraps a Transport capability around a
// core.CircuitBreaker the same way).
type BreakerTransport struct {
	Next    http.RoundTripper
	Breaker *resilience.CircuitBreaker
}

// NewBreakerTransport builds a BreakerTransport; next defaults to
// http.DefaultTransport if nil.
func NewBreakerTransport(next http.RoundTripper, breaker *resilience.CircuitBreaker) *BreakerTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &BreakerTransport{Next: next, Breaker: breaker}
}

// RoundTrip denies the request immediately with core.ErrCircuitOpen when
// the breaker is open, otherwise forwards it and records the outcome.
// A 5xx response counts as a failure for breaker purposes; any other
// status counts as a success.
func (t *BreakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.Breaker.CanExecute() {
		return nil, core.NewError("extract.BreakerTransport.RoundTrip", core.KindCircuitOpen,
			"circuit open for outbound request to "+req.URL.Host, core.ErrCircuitOpen)
	}

	resp, err := t.Next.RoundTrip(req)
	if err != nil {
		t.Breaker.RecordFailure()
		return nil, err
	}
	if resp.StatusCode >= 500 {
		t.Breaker.RecordFailure()
	} else {
		t.Breaker.RecordSuccess()
	}
	return resp, nil
}
