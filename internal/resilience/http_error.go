package resilience

import "fmt"

// StatusError wraps an HTTP response that produced a non-2xx status,
// carrying enough information for Retry to decide retryability and honor
// a Retry-After hint (spec.md §4.1).
type StatusError struct {
	Status       int
	RetryAfterHdr string
	Body         string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.Status, e.Body)
}

func (e *StatusError) StatusCode() int      { return e.Status }
func (e *StatusError) RetryAfter() string   { return e.RetryAfterHdr }

// NewStatusError builds a StatusError from a response status, Retry-After
// header value (may be empty), and a short body snippet for diagnostics.
func NewStatusError(status int, retryAfter, body string) *StatusError {
	return &StatusError{Status: status, RetryAfterHdr: retryAfter, Body: body}
}
