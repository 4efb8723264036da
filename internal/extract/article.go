package extract

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var titleTagRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
var metaDescRe = regexp.MustCompile(`(?is)<meta[^>]+name=["']description["'][^>]+content=["'](.*?)["']`)
var tagStripRe = regexp.MustCompile(`(?is)<[^>]+>`)

// ArticleExtractor is the generic HTML-scrape fallback: it never requires
// an API key and CanHandle always returns true so it can serve as the
// factory's universal fallback (spec.md §4.3).
type ArticleExtractor struct {
	HTTPClient *http.Client
	contentType ContentType
}

// NewArticleExtractor builds an ArticleExtractor using client for fetches,
// or http.DefaultClient if nil. ct lets the supplemental variants
// (podcast, paper, tweet, image, tool, website) reuse this scrape path
// under their own content-type tag (SPEC_FULL.md §4.3).
func NewArticleExtractor(client *http.Client, ct ContentType) *ArticleExtractor {
	if client == nil {
		client = http.DefaultClient
	}
	if ct == "" {
		ct = ContentArticle
	}
	return &ArticleExtractor{HTTPClient: client, contentType: ct}
}

func (e *ArticleExtractor) ContentType() ContentType { return e.contentType }
func (e *ArticleExtractor) RequiresAPIKey() bool      { return false }
func (e *ArticleExtractor) CanHandle(string) bool     { return true }

// Extract fetches the page and scrapes its <title> and meta description.
// A fetch failure yields a fallback result with confidence 0.3 rather than
// aborting, matching every other extractor's "API absent or exhausted"
// contract (spec.md §4.3).
func (e *ArticleExtractor) Extract(ctx context.Context, rawURL string, opts Options) (*Result, error) {
	start := time.Now()

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fallbackResult(e.contentType, rawURL, start), nil
	}
	req.Header.Set("User-Agent", "decant-extractor/1.0")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return fallbackResult(e.contentType, rawURL, start), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fallbackResult(e.contentType, rawURL, start), nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return fallbackResult(e.contentType, rawURL, start), nil
	}

	html := string(body)
	title := firstMatch(titleTagRe, html)
	description := firstMatch(metaDescRe, html)

	u, _ := url.Parse(rawURL)
	domain := ""
	if u != nil {
		domain = u.Hostname()
	}

	return &Result{
		Success:     true,
		ContentType: e.contentType,
		Data: map[string]interface{}{
			"title":       decodeEntities(title),
			"description": decodeEntities(description),
			"domain":      domain,
		},
		Metadata: Metadata{
			ExtractionMethod: MethodScraping,
			Confidence:       0.6,
			Timestamp:        time.Now().UTC(),
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		},
	}, nil
}

func fallbackResult(ct ContentType, rawURL string, start time.Time) *Result {
	u, _ := url.Parse(rawURL)
	domain := ""
	if u != nil {
		domain = u.Hostname()
	}
	return &Result{
		Success:     true,
		ContentType: ct,
		Data:        map[string]interface{}{"domain": domain},
		Metadata: Metadata{
			ExtractionMethod: MethodFallback,
			Confidence:       0.3,
			Timestamp:        time.Now().UTC(),
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		},
	}
}

func firstMatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(tagStripRe.ReplaceAllString(m[1], ""))
}

func decodeEntities(s string) string {
	replacer := strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'")
	return replacer.Replace(s)
}
