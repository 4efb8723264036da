package extract

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/RBarbieri13/decant/internal/core"
)

// Factory keeps a map contentType -> extractor populated at construction
// time, grounded on the teacher's capability-registration style
// (core.BaseTool.RegisterCapability / ai's provider registry), generalized
// to decant's URL-shape dispatch (spec.md §4.3).
type Factory struct {
	mu         sync.RWMutex
	extractors map[ContentType]Extractor
	article    Extractor
	logger     core.Logger
}

// NewFactory builds a Factory with no extractors registered; call Register
// for each variant, including the article fallback.
func NewFactory(logger core.Logger) *Factory {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &Factory{extractors: make(map[ContentType]Extractor), logger: logger}
}

// Register adds e to the factory's map, keyed by its ContentType().
// Registering ContentArticle also sets it as the universal fallback.
func (f *Factory) Register(e Extractor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extractors[e.ContentType()] = e
	if e.ContentType() == ContentArticle {
		f.article = e
	}
}

// DetectContentType classifies url by host matching: youtube, github,
// twitter/x; everything else falls back to "article" (spec.md §4.3).
func DetectContentType(rawURL string) ContentType {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ContentArticle
	}
	host := strings.ToLower(u.Hostname())

	switch {
	case strings.Contains(host, "youtube.com"), host == "youtu.be":
		return ContentYouTube
	case strings.Contains(host, "github.com"):
		return ContentGitHub
	case strings.Contains(host, "twitter.com"), host == "x.com", strings.HasSuffix(host, ".x.com"):
		return ContentTwitter
	default:
		return ContentArticle
	}
}

// GetExtractor returns the extractor whose content type matches url (via
// DetectContentType) if it claims the URL via CanHandle, else the article
// extractor (spec.md §4.3).
func (f *Factory) GetExtractor(rawURL string) Extractor {
	f.mu.RLock()
	defer f.mu.RUnlock()

	ct := DetectContentType(rawURL)
	if e, ok := f.extractors[ct]; ok && e.CanHandle(rawURL) {
		return e
	}
	return f.article
}

// Extract dispatches rawURL to the appropriate extractor.
func (f *Factory) Extract(ctx context.Context, rawURL string, opts Options) (*Result, error) {
	e := f.GetExtractor(rawURL)
	if e == nil {
		return nil, core.NewError("extract.Factory.Extract", core.KindUnsupportedContent, "no extractor available for "+rawURL, nil)
	}
	return e.Extract(ctx, rawURL, opts)
}

// ExtractBatch fans out with a fixed concurrency of 5, producing a map
// URL -> result. Per-URL errors never abort the batch (spec.md §4.3).
func (f *Factory) ExtractBatch(ctx context.Context, urls []string, opts Options) map[string]*Result {
	const concurrency = 5
	out := make(map[string]*Result, len(urls))
	var mu sync.Mutex
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, u := range urls {
		u := u
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := f.Extract(ctx, u, opts)
			if err != nil {
				result = &Result{
					Success:     false,
					Metadata:    Metadata{ExtractionMethod: MethodFallback},
					Err:         err,
					Recoverable: core.IsRecoverable(err),
				}
			}
			mu.Lock()
			out[u] = result
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}
