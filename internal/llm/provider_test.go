package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RBarbieri13/decant/internal/core"
)

func TestValidateAgainstSchema_MissingRequiredField(t *testing.T) {
	schema := map[string]interface{}{
		"required": []interface{}{"segment", "category"},
	}
	err := validateAgainstSchema(map[string]interface{}{"segment": "E"}, schema)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "category")
}

func TestValidateAgainstSchema_WrongType(t *testing.T) {
	schema := map[string]interface{}{
		"required": []interface{}{"confidence"},
		"properties": map[string]interface{}{
			"confidence": map[string]interface{}{"type": "number"},
		},
	}
	err := validateAgainstSchema(map[string]interface{}{"confidence": "not-a-number"}, schema)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "confidence")
}

func TestValidateAgainstSchema_ValidPasses(t *testing.T) {
	schema := map[string]interface{}{
		"required": []interface{}{"segment", "confidence", "tags"},
		"properties": map[string]interface{}{
			"segment":    map[string]interface{}{"type": "string"},
			"confidence": map[string]interface{}{"type": "number"},
			"tags":       map[string]interface{}{"type": "array"},
		},
	}
	decoded := map[string]interface{}{
		"segment":    "E",
		"confidence": 0.8,
		"tags":       []interface{}{"a", "b"},
	}
	assert.NoError(t, validateAgainstSchema(decoded, schema))
}

func TestValidateAgainstSchema_IgnoresUnknownPropertyTypes(t *testing.T) {
	schema := map[string]interface{}{
		"required": []interface{}{"extra"},
	}
	assert.NoError(t, validateAgainstSchema(map[string]interface{}{"extra": 123}, schema))
}

func TestTypeMatches(t *testing.T) {
	cases := []struct {
		val      interface{}
		wantType string
		matches  bool
	}{
		{"a string", "string", true},
		{42.0, "string", false},
		{42.0, "number", true},
		{42.0, "integer", true},
		{true, "boolean", true},
		{"x", "boolean", false},
		{[]interface{}{1, 2}, "array", true},
		{map[string]interface{}{"a": 1}, "object", true},
		{"anything", "unknown-type", true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.matches, typeMatches(tc.val, tc.wantType), "typeMatches(%v, %q)", tc.val, tc.wantType)
	}
}

func TestWithDefaults_FillsZeroValues(t *testing.T) {
	opts := withDefaults(Options{})
	assert.Equal(t, "gpt-4o-mini", opts.Model)
	assert.Equal(t, float32(0.3), opts.Temperature)
	assert.Equal(t, 2000, opts.MaxTokens)
}

func TestWithDefaults_PreservesExplicitValues(t *testing.T) {
	opts := withDefaults(Options{Model: "gpt-4o", Temperature: 0.9, MaxTokens: 500})
	assert.Equal(t, "gpt-4o", opts.Model)
	assert.Equal(t, float32(0.9), opts.Temperature)
	assert.Equal(t, 500, opts.MaxTokens)
}

func TestComplete_MissingAPIKeyFails(t *testing.T) {
	p := NewOpenAIProvider("", nil, nil)
	p.apiKey = ""
	_, err := p.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Options{})
	require.Error(t, err)
	assert.Equal(t, core.KindAPIKeyMissing, core.KindOf(err))
}

func TestComplete_ReturnsContentOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"hello there"}}],"model":"gpt-4o-mini","usage":{"prompt_tokens":10,"completion_tokens":2,"total_tokens":12}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", nil, nil)
	p.baseURL = srv.URL

	result, err := p.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "hello there", result.Content)
	assert.Equal(t, 12, result.Usage.TotalTokens)
}

func TestComplete_UnauthorizedMapsToInvalidAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("bad-key", nil, nil)
	p.baseURL = srv.URL

	_, err := p.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Options{})
	require.Error(t, err)
	assert.Equal(t, core.KindInvalidAPIKey, core.KindOf(err))
}

func TestCompleteWithSchema_MalformedJSONFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"not json"}}],"model":"gpt-4o-mini"}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", nil, nil)
	p.baseURL = srv.URL

	_, err := p.CompleteWithSchema(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, map[string]interface{}{}, Options{})
	require.Error(t, err)
	assert.Equal(t, core.KindLLMParseError, core.KindOf(err))
}

func TestCompleteWithSchema_SchemaMismatchFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"segment\":\"E\"}"}}],"model":"gpt-4o-mini"}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", nil, nil)
	p.baseURL = srv.URL

	schema := map[string]interface{}{"required": []interface{}{"segment", "category"}}
	_, err := p.CompleteWithSchema(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, schema, Options{})
	require.Error(t, err)
	assert.Equal(t, core.KindLLMSchemaError, core.KindOf(err))
}
