package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RBarbieri13/decant/internal/llm"
)

type fakeProvider struct {
	schemaResult *llm.SchemaResult
	schemaErr    error
	lastMessages []llm.Message
}

func (f *fakeProvider) Complete(ctx context.Context, messages []llm.Message, opts llm.Options) (*llm.CompletionResult, error) {
	return nil, errors.New("not used in these tests")
}

func (f *fakeProvider) CompleteWithSchema(ctx context.Context, messages []llm.Message, schema map[string]interface{}, opts llm.Options) (*llm.SchemaResult, error) {
	f.lastMessages = messages
	return f.schemaResult, f.schemaErr
}

func TestClassify_NilProviderFallsBack(t *testing.T) {
	c := NewClassifier(nil, nil)
	result := c.Classify(context.Background(), Input{Title: "x"})

	require.NotNil(t, result)
	assert.Equal(t, FallbackSegment, result.Segment)
	assert.Equal(t, FallbackCategory, result.Category)
	assert.Equal(t, FallbackContentType, result.ContentType)
	assert.Equal(t, FallbackConfidence, result.Confidence)
}

func TestClassify_ProviderErrorFallsBack(t *testing.T) {
	c := NewClassifier(&fakeProvider{schemaErr: errors.New("boom")}, nil)
	result := c.Classify(context.Background(), Input{Title: "x"})

	assert.Equal(t, FallbackSegment, result.Segment)
}

func TestClassify_MalformedJSONFallsBack(t *testing.T) {
	c := NewClassifier(&fakeProvider{schemaResult: &llm.SchemaResult{RawJSON: "not json"}}, nil)
	result := c.Classify(context.Background(), Input{Title: "x"})

	assert.Equal(t, FallbackSegment, result.Segment)
}

func TestClassify_MissingRequiredFieldFallsBack(t *testing.T) {
	c := NewClassifier(&fakeProvider{schemaResult: &llm.SchemaResult{RawJSON: `{"segment":"E","category":""}`}}, nil)
	result := c.Classify(context.Background(), Input{Title: "x"})

	assert.Equal(t, FallbackCategory, result.Category)
}

func TestClassify_ValidResponseParsed(t *testing.T) {
	raw := `{"segment":"E","category":"tools","contentType":"article","organization":"Acme",
		"confidence":0.9,"keyConcepts":["a","b","c","d","e","f"],"summary":"a summary"}`
	c := NewClassifier(&fakeProvider{schemaResult: &llm.SchemaResult{RawJSON: raw}}, nil)
	result := c.Classify(context.Background(), Input{Title: "x"})

	assert.Equal(t, "E", result.Segment)
	assert.Equal(t, "tools", result.Category)
	assert.Equal(t, "article", result.ContentType)
	assert.Equal(t, "Acme", result.Organization)
	assert.Equal(t, 0.9, result.Confidence)
	assert.Len(t, result.KeyConcepts, 5, "keyConcepts truncated to 5")
	assert.Equal(t, "a summary", result.Summary)
}

func TestClassify_OutOfRangeConfidenceResetsToFallback(t *testing.T) {
	raw := `{"segment":"E","category":"tools","contentType":"article","confidence":1.5}`
	c := NewClassifier(&fakeProvider{schemaResult: &llm.SchemaResult{RawJSON: raw}}, nil)
	result := c.Classify(context.Background(), Input{Title: "x"})

	assert.Equal(t, FallbackConfidence, result.Confidence)
}

func TestClassify_TruncatesLongContentBeforePrompting(t *testing.T) {
	long := make([]byte, maxContentChars+500)
	for i := range long {
		long[i] = 'a'
	}
	provider := &fakeProvider{schemaResult: &llm.SchemaResult{
		RawJSON: `{"segment":"E","category":"tools","contentType":"article","confidence":0.5}`,
	}}
	c := NewClassifier(provider, nil)
	result := c.Classify(context.Background(), Input{Title: "x", Content: string(long)})

	require.NotNil(t, result)
	assert.Equal(t, "E", result.Segment)

	require.Len(t, provider.lastMessages, 2)
	prompt := provider.lastMessages[1].Content
	assert.Contains(t, prompt, string(long[:maxContentChars]))
	assert.NotContains(t, prompt, string(long[:maxContentChars+1]), "content beyond maxContentChars must not reach the prompt")
}
