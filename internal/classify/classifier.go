package classify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/RBarbieri13/decant/internal/core"
	"github.com/RBarbieri13/decant/internal/llm"
)

// Classifier asks an llm.Provider to classify extracted content into the
// closed taxonomy described by spec.md §4.5, falling back to
// Uncategorized/Inbox/other on any LLM failure or invalid field.
type Classifier struct {
	provider llm.Provider
	logger   core.Logger
}

func NewClassifier(provider llm.Provider, logger core.Logger) *Classifier {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &Classifier{provider: provider, logger: logger}
}

var classificationSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"segment":      map[string]interface{}{"type": "string"},
		"category":     map[string]interface{}{"type": "string"},
		"contentType":  map[string]interface{}{"type": "string"},
		"organization": map[string]interface{}{"type": "string"},
		"confidence":   map[string]interface{}{"type": "number"},
		"keyConcepts":  map[string]interface{}{"type": "array"},
		"summary":      map[string]interface{}{"type": "string"},
	},
	"required": []interface{}{"segment", "category", "contentType", "confidence"},
}

// Classify prompts the LLM with in's title/URL/truncated content and
// returns a validated Classification. Any failure (missing provider, LLM
// error, malformed/invalid response) degrades to the fallback taxonomy
// entry with confidence 0.3, never an error (spec.md §4.5, §4.7 step 5).
func (c *Classifier) Classify(ctx context.Context, in Input) *Classification {
	if c.provider == nil {
		return fallback()
	}

	content := in.Content
	if len(content) > maxContentChars {
		content = content[:maxContentChars]
	}

	prompt := fmt.Sprintf(
		"Classify the following content into a taxonomy.\nTitle: %s\nURL: %s\nContent: %s\n\n"+
			"Return JSON with: segment (single uppercase letter code), category (short mnemonic), "+
			"contentType (single lowercase letter code), organization (free text or empty), "+
			"confidence (0-1), keyConcepts (up to 5 strings), summary (1-2 sentences).",
		in.Title, in.URL, content,
	)

	result, err := c.provider.CompleteWithSchema(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: "You are a precise content classifier for a personal knowledge base."},
		{Role: llm.RoleUser, Content: prompt},
	}, classificationSchema, llm.Options{})
	if err != nil {
		c.logger.Warn("classification fell back to defaults", map[string]interface{}{"error": err.Error()})
		return fallback()
	}

	var parsed struct {
		Segment      string   `json:"segment"`
		Category     string   `json:"category"`
		ContentType  string   `json:"contentType"`
		Organization string   `json:"organization"`
		Confidence   float64  `json:"confidence"`
		KeyConcepts  []string `json:"keyConcepts"`
		Summary      string   `json:"summary"`
	}
	if err := json.Unmarshal([]byte(result.RawJSON), &parsed); err != nil {
		c.logger.Warn("classification response unparsable, using fallback", map[string]interface{}{"error": err.Error()})
		return fallback()
	}

	if parsed.Segment == "" || parsed.Category == "" || parsed.ContentType == "" {
		return fallback()
	}
	if parsed.Confidence < 0 || parsed.Confidence > 1 {
		parsed.Confidence = FallbackConfidence
	}
	if len(parsed.KeyConcepts) > 5 {
		parsed.KeyConcepts = parsed.KeyConcepts[:5]
	}

	return &Classification{
		Segment:      parsed.Segment,
		Category:     parsed.Category,
		ContentType:  parsed.ContentType,
		Organization: parsed.Organization,
		Confidence:   parsed.Confidence,
		KeyConcepts:  parsed.KeyConcepts,
		Summary:      parsed.Summary,
	}
}

func fallback() *Classification {
	return &Classification{
		Segment:     FallbackSegment,
		Category:    FallbackCategory,
		ContentType: FallbackContentType,
		Confidence:  FallbackConfidence,
	}
}
