package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/RBarbieri13/decant/internal/core"
	"github.com/RBarbieri13/decant/internal/resilience"
)

var tweetIDRe = regexp.MustCompile(`/status(?:es)?/(\d+)`)

// TwitterExtractor uses the X/Twitter API v2 tweets lookup endpoint; a
// bearer token is required, so RequiresAPIKey is true (spec.md §4.3).
type TwitterExtractor struct {
	HTTPClient *http.Client
	Breaker    *resilience.CircuitBreaker
	fallback   *ArticleExtractor
}

func NewTwitterExtractor(client *http.Client, breaker *resilience.CircuitBreaker) *TwitterExtractor {
	if client == nil {
		client = http.DefaultClient
	}
	return &TwitterExtractor{HTTPClient: client, Breaker: breaker, fallback: NewArticleExtractor(client, ContentTwitter)}
}

func (e *TwitterExtractor) ContentType() ContentType { return ContentTwitter }
func (e *TwitterExtractor) RequiresAPIKey() bool      { return true }

func (e *TwitterExtractor) CanHandle(rawURL string) bool {
	return tweetIDFromURL(rawURL) != ""
}

func tweetIDFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if !strings.Contains(host, "twitter.com") && host != "x.com" && !strings.HasSuffix(host, ".x.com") {
		return ""
	}
	m := tweetIDRe.FindStringSubmatch(u.Path)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

type twitterTweetResponse struct {
	Data struct {
		ID            string `json:"id"`
		Text          string `json:"text"`
		AuthorID      string `json:"author_id"`
		PublicMetrics struct {
			LikeCount   int `json:"like_count"`
			RetweetCount int `json:"retweet_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}

// Extract calls GET /2/tweets/{id}; the key is taken from opts.APIKeys["twitter"].
// Absent key degrades to the article scrape fallback (spec.md §4.3).
func (e *TwitterExtractor) Extract(ctx context.Context, rawURL string, opts Options) (*Result, error) {
	start := time.Now()
	tweetID := tweetIDFromURL(rawURL)
	token := opts.APIKeys["twitter"]
	if token == "" {
		return e.fallback.Extract(ctx, rawURL, opts)
	}

	endpoint := "https://api.twitter.com/2/tweets/" + tweetID + "?tweet.fields=public_metrics,author_id"

	var payload twitterTweetResponse
	callErr := e.callAPI(ctx, endpoint, token, &payload)
	if callErr != nil {
		kind := core.KindOf(callErr)
		if kind == core.KindInvalidAPIKey || kind == core.KindContentNotFound {
			return nil, callErr
		}
		return fallbackResult(ContentTwitter, rawURL, start), nil
	}

	return &Result{
		Success:     true,
		ContentType: ContentTwitter,
		Data: map[string]interface{}{
			"tweetId":  payload.Data.ID,
			"text":     payload.Data.Text,
			"authorId": payload.Data.AuthorID,
			"likes":    payload.Data.PublicMetrics.LikeCount,
			"retweets": payload.Data.PublicMetrics.RetweetCount,
		},
		Metadata: Metadata{
			ExtractionMethod: MethodAPIStandard,
			APIUsed:          "twitter_api_v2",
			Confidence:       1.0,
			Timestamp:        time.Now().UTC(),
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		},
	}, nil
}

func (e *TwitterExtractor) callAPI(ctx context.Context, endpoint, token string, out interface{}) error {
	fn := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := e.HTTPClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return core.NewError("extract.TwitterExtractor.callAPI", core.KindInvalidAPIKey, "invalid twitter bearer token", nil)
		case resp.StatusCode == http.StatusNotFound:
			return core.NewError("extract.TwitterExtractor.callAPI", core.KindContentNotFound, "tweet not found", nil)
		case resp.StatusCode == http.StatusTooManyRequests:
			return core.NewRecoverableError("extract.TwitterExtractor.callAPI", core.KindRateLimitExceeded, "twitter api rate limit exceeded", nil)
		case resp.StatusCode >= 500:
			return resilience.NewStatusError(resp.StatusCode, resp.Header.Get("Retry-After"), "twitter api server error")
		case resp.StatusCode != http.StatusOK:
			return core.NewRecoverableError("extract.TwitterExtractor.callAPI", core.KindFetchFailed, "unexpected twitter api status", nil)
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}

	if e.Breaker != nil {
		return resilience.RetryWithBreaker(ctx, resilience.StandardPreset(), e.Breaker, fn)
	}
	return resilience.Retry(ctx, resilience.StandardPreset(), fn)
}
