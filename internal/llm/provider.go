package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/RBarbieri13/decant/internal/core"
	"github.com/RBarbieri13/decant/internal/resilience"
)

// OpenAIProvider implements Provider against an OpenAI-compatible chat
// completions endpoint (the same shape used for Gemini-compatible
// OpenAI-mode gateways), grounded on the teacher's ai.OpenAIClient:
// a similar constructor (NewOpenAIProvider(apiKey, breaker, logger)), same
// timeout-bound http.Client, same JSON request/response marshaling,
// extended here to the two-operation Provider contract (spec.md §4.4).
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	logger     core.Logger
}

// NewOpenAIProvider builds an OpenAIProvider. apiKey falls back to
// OPENAI_API_KEY when empty. breaker may be nil to run unprotected
// (tests); production call sites should pass resilience.Registry.Get("llm").
func NewOpenAIProvider(apiKey string, breaker *resilience.CircuitBreaker, logger core.Logger) *OpenAIProvider {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &OpenAIProvider{
		apiKey:     apiKey,
		baseURL:    "https://api.openai.com/v1",
		httpClient: &http.Client{Timeout: 30 * time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		breaker:    breaker,
		logger:     logger,
	}
}

func withDefaults(opts Options) Options {
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.3
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 2000
	}
	return opts
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (p *OpenAIProvider) chat(ctx context.Context, messages []Message, opts Options, jsonMode bool) (*chatCompletionResponse, error) {
	if p.apiKey == "" {
		return nil, core.NewError("llm.OpenAIProvider.chat", core.KindAPIKeyMissing, "llm api key not configured", nil)
	}
	opts = withDefaults(opts)

	wire := make([]map[string]string, 0, len(messages))
	for _, m := range messages {
		wire = append(wire, map[string]string{"role": string(m.Role), "content": m.Content})
	}

	reqBody := map[string]interface{}{
		"model":       opts.Model,
		"messages":    wire,
		"temperature": opts.Temperature,
		"max_tokens":  opts.MaxTokens,
	}
	if jsonMode {
		reqBody["response_format"] = map[string]string{"type": "json_object"}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, core.NewError("llm.OpenAIProvider.chat", core.KindInternal, "failed to marshal request", err)
	}

	var result chatCompletionResponse
	fn := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+p.apiKey)

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return core.NewError("llm.OpenAIProvider.chat", core.KindInvalidAPIKey, "invalid llm api key", nil)
		case resp.StatusCode == http.StatusTooManyRequests:
			return core.NewRecoverableError("llm.OpenAIProvider.chat", core.KindRateLimitExceeded, "llm rate limit exceeded", nil)
		case resp.StatusCode >= 500:
			return resilience.NewStatusError(resp.StatusCode, resp.Header.Get("Retry-After"), string(respBody))
		case resp.StatusCode != http.StatusOK:
			return core.NewRecoverableError("llm.OpenAIProvider.chat", core.KindInternal, fmt.Sprintf("llm api error (status %d): %s", resp.StatusCode, string(respBody)), nil)
		}

		return json.Unmarshal(respBody, &result)
	}

	cfg := resilience.RateLimitPreset()
	var callErr error
	if p.breaker != nil {
		callErr = resilience.RetryWithBreaker(ctx, cfg, p.breaker, fn)
	} else {
		callErr = resilience.Retry(ctx, cfg, fn)
	}
	if callErr != nil {
		return nil, callErr
	}
	return &result, nil
}

// Complete implements Provider.
func (p *OpenAIProvider) Complete(ctx context.Context, messages []Message, opts Options) (*CompletionResult, error) {
	resp, err := p.chat(ctx, messages, opts, false)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, core.NewError("llm.OpenAIProvider.Complete", core.KindLLMEmptyResponse, "llm returned no content", nil)
	}
	return &CompletionResult{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// CompleteWithSchema implements Provider. Validation is a minimal
// structural check (every schema-declared required key is present and
// type-compatible) rather than a full JSON Schema implementation, since
// none of the reference repos in this build's dependency pack carry a
// JSON Schema validation library — see DESIGN.md.
func (p *OpenAIProvider) CompleteWithSchema(ctx context.Context, messages []Message, schema map[string]interface{}, opts Options) (*SchemaResult, error) {
	augmented := append([]Message{}, messages...)
	augmented = append(augmented, Message{
		Role:    RoleSystem,
		Content: "Respond with a single JSON object only, matching the required fields. No prose, no markdown fences.",
	})

	resp, err := p.chat(ctx, augmented, opts, true)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, core.NewError("llm.OpenAIProvider.CompleteWithSchema", core.KindLLMEmptyResponse, "llm returned no content", nil)
	}
	raw := resp.Choices[0].Message.Content

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, core.NewError("llm.OpenAIProvider.CompleteWithSchema", core.KindLLMParseError, "llm response is not valid JSON", err)
	}
	if err := validateAgainstSchema(decoded, schema); err != nil {
		return nil, core.NewError("llm.OpenAIProvider.CompleteWithSchema", core.KindLLMSchemaError, err.Error(), nil)
	}

	return &SchemaResult{
		RawJSON: raw,
		RawText: raw,
		Model:   resp.Model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// validateAgainstSchema checks that every name in schema["required"] is
// present in decoded and, when schema["properties"][name]["type"] names a
// JSON primitive type, that the decoded value matches it.
func validateAgainstSchema(decoded map[string]interface{}, schema map[string]interface{}) error {
	required, _ := schema["required"].([]interface{})
	properties, _ := schema["properties"].(map[string]interface{})

	for _, r := range required {
		name, ok := r.(string)
		if !ok {
			continue
		}
		val, present := decoded[name]
		if !present {
			return fmt.Errorf("missing required field %q", name)
		}
		if properties == nil {
			continue
		}
		propSchema, ok := properties[name].(map[string]interface{})
		if !ok {
			continue
		}
		wantType, _ := propSchema["type"].(string)
		if wantType == "" {
			continue
		}
		if !typeMatches(val, wantType) {
			return fmt.Errorf("field %q has wrong type, want %s", name, wantType)
		}
	}
	return nil
}

func typeMatches(val interface{}, wantType string) bool {
	switch wantType {
	case "string":
		_, ok := val.(string)
		return ok
	case "number", "integer":
		_, ok := val.(float64)
		return ok
	case "boolean":
		_, ok := val.(bool)
		return ok
	case "array":
		_, ok := val.([]interface{})
		return ok
	case "object":
		_, ok := val.(map[string]interface{})
		return ok
	default:
		return true
	}
}
