// Package llm implements the chat-completion provider contract used by
// the classifier and the extractor factory's post-enhancement step
// (spec.md §4.4): a plain completion and a schema-validated JSON
// completion, both wrapped in retry and a named circuit breaker.
package llm

import "context"

// Role names a chat message's author.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one turn in a chat completion request.
type Message struct {
	Role    Role
	Content string
}

// Options configures one completion call. Temperature defaults to 0.3
// and MaxTokens to 2000 when zero (spec.md §4.4).
type Options struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// Usage reports token accounting for a completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionResult is the return value of Complete.
type CompletionResult struct {
	Content string
	Model   string
	Usage   Usage
}

// SchemaResult is the return value of CompleteWithSchema: RawJSON holds
// the JSON text (the caller unmarshals it into its own typed destination),
// RawText is the provider's original text, and Usage and Model report
// token accounting.
type SchemaResult struct {
	RawJSON string
	RawText string
	Usage   Usage
	Model   string
}

// Provider is the capability every LLM backend implements.
type Provider interface {
	// Complete returns the model's free-text response. Fails with
	// core.KindLLMEmptyResponse if no content is returned.
	Complete(ctx context.Context, messages []Message, opts Options) (*CompletionResult, error)

	// CompleteWithSchema requests JSON-mode output validated against
	// schema (a JSON Schema document). Fails with core.KindLLMParseError
	// on malformed JSON, core.KindLLMSchemaError if schema validation
	// fails.
	CompleteWithSchema(ctx context.Context, messages []Message, schema map[string]interface{}, opts Options) (*SchemaResult, error)
}
