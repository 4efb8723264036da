package resilience

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStatusError_FieldsAndError(t *testing.T) {
	e := NewStatusError(503, "5", "service unavailable")

	assert.Equal(t, 503, e.StatusCode())
	assert.Equal(t, "5", e.RetryAfter())
	assert.Equal(t, "http status 503: service unavailable", e.Error())
}

func TestStatusError_SatisfiesHTTPStatusErrorInterface(t *testing.T) {
	var e error = NewStatusError(429, "", "")
	hse, ok := e.(HTTPStatusError)
	assert.True(t, ok)
	assert.Equal(t, 429, hse.StatusCode())
}
