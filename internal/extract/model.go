// Package extract implements the per-content-type extractor framework:
// a factory picks an Extractor by URL shape, each Extractor fetches and
// normalizes content for its content type, falling back to minimal
// metadata when a native API is unavailable or exhausted (spec.md §4.3).
package extract

import (
	"context"
	"time"
)

// ContentType tags which Extractor variant handles a URL.
type ContentType string

const (
	ContentYouTube  ContentType = "youtube"
	ContentGitHub   ContentType = "github"
	ContentTwitter  ContentType = "twitter"
	ContentArticle  ContentType = "article"
	ContentPodcast  ContentType = "podcast"
	ContentPaper    ContentType = "paper"
	ContentTweet    ContentType = "tweet"
	ContentImage    ContentType = "image"
	ContentTool     ContentType = "tool"
	ContentWebsite  ContentType = "website"
)

// ExtractionMethod names how a result's data was produced.
type ExtractionMethod string

const (
	MethodAPIPremium  ExtractionMethod = "api_premium"
	MethodAPIStandard ExtractionMethod = "api_standard"
	MethodScraping    ExtractionMethod = "scraping"
	MethodFallback    ExtractionMethod = "fallback"
)

// Metadata describes how an extraction was produced, regardless of outcome.
type Metadata struct {
	ExtractionMethod  ExtractionMethod `json:"extractionMethod"`
	APIUsed           string           `json:"apiUsed,omitempty"`
	Confidence        float64          `json:"confidence"`
	Timestamp         time.Time        `json:"timestamp"`
	Cost              float64          `json:"cost"`
	ProcessingTimeMs   int64            `json:"processingTimeMs"`
}

// Result is the tagged outcome of one extraction (spec.md §4.3).
type Result struct {
	Success     bool                   `json:"success"`
	ContentType ContentType            `json:"contentType"`
	Data        map[string]interface{} `json:"data,omitempty"`
	Metadata    Metadata               `json:"metadata"`
	Err         error                  `json:"-"`
	Recoverable bool                   `json:"recoverable,omitempty"`
}

// Options configures one extraction call.
type Options struct {
	APIKeys map[string]string
	Timeout time.Duration
}

// Extractor is the capability every content-type variant implements.
type Extractor interface {
	ContentType() ContentType
	RequiresAPIKey() bool
	CanHandle(url string) bool
	Extract(ctx context.Context, url string, opts Options) (*Result, error)
}
