// Package classify implements LLM-driven classification of extracted
// content into a closed taxonomy (segment/category/content type), plus
// the differentiator service that produces a hierarchy code's unique
// tail (spec.md §4.5).
package classify

// Classification is the LLM's (or fallback) judgment about a piece of
// extracted content.
type Classification struct {
	Segment      string   `json:"segment"`
	Category     string   `json:"category"`
	ContentType  string   `json:"contentType"`
	Organization string   `json:"organization"`
	Confidence   float64  `json:"confidence"`
	KeyConcepts  []string `json:"keyConcepts"`
	Summary      string   `json:"summary"`
}

// FallbackSegment, FallbackCategory, and FallbackContentType are used
// when the LLM fails or returns invalid fields (spec.md §4.5).
const (
	FallbackSegment     = "Uncategorized"
	FallbackCategory    = "Inbox"
	FallbackContentType = "other"
	FallbackConfidence  = 0.3
)

// Input bundles what the classifier needs to prompt the LLM.
type Input struct {
	Title   string
	URL     string
	Content string
}

// maxContentChars truncates Input.Content before it reaches the LLM
// (spec.md §4.7 step 5: "truncated to ~4000 characters").
const maxContentChars = 4000

// HierarchyCodes is the pair of dotted codes produced by AssignCodes.
type HierarchyCodes struct {
	FunctionCode     string
	OrganizationCode string
}

// Sibling is the minimal view of an existing node the differentiator
// needs to detect collisions at a shared prefix.
type Sibling struct {
	NodeID string
	Fields map[string]string // brand, version, variant, creator, date, unique_id -> normalized value
}
