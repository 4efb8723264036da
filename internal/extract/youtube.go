package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/RBarbieri13/decant/internal/core"
	"github.com/RBarbieri13/decant/internal/resilience"
)

// YouTubeExtractor uses the YouTube Data API v3 videos.list endpoint when
// an API key is configured, falling back to minimal metadata otherwise
// (spec.md §4.3).
type YouTubeExtractor struct {
	HTTPClient *http.Client
	Breaker    *resilience.CircuitBreaker
	fallback   *ArticleExtractor
}

// NewYouTubeExtractor builds a YouTubeExtractor; breaker may be nil to run
// unprotected (tests).
func NewYouTubeExtractor(client *http.Client, breaker *resilience.CircuitBreaker) *YouTubeExtractor {
	if client == nil {
		client = http.DefaultClient
	}
	return &YouTubeExtractor{HTTPClient: client, Breaker: breaker, fallback: NewArticleExtractor(client, ContentYouTube)}
}

func (e *YouTubeExtractor) ContentType() ContentType { return ContentYouTube }
func (e *YouTubeExtractor) RequiresAPIKey() bool      { return true }

func (e *YouTubeExtractor) CanHandle(rawURL string) bool {
	return videoIDFromYouTubeURL(rawURL) != ""
}

func videoIDFromYouTubeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "youtu.be" {
		return strings.Trim(u.Path, "/")
	}
	if strings.Contains(host, "youtube.com") {
		if v := u.Query().Get("v"); v != "" {
			return v
		}
		if strings.HasPrefix(u.Path, "/shorts/") {
			return strings.TrimPrefix(u.Path, "/shorts/")
		}
	}
	return ""
}

// Extract attempts the native API under retry; on success records
// extractionMethod=api_standard and confidence 1.0. On 401/404/403 it
// maps to the corresponding non-recoverable/recoverable error kinds. If
// the key is absent the extractor falls back to minimal metadata
// (spec.md §4.3).
func (e *YouTubeExtractor) Extract(ctx context.Context, rawURL string, opts Options) (*Result, error) {
	start := time.Now()
	videoID := videoIDFromYouTubeURL(rawURL)
	apiKey := opts.APIKeys["youtube"]
	if apiKey == "" {
		return fallbackResult(ContentYouTube, rawURL, start), nil
	}

	endpoint := fmt.Sprintf("https://www.googleapis.com/youtube/v3/videos?part=snippet&id=%s&key=%s", url.QueryEscape(videoID), url.QueryEscape(apiKey))

	var payload youtubeVideosResponse
	callErr := e.callAPI(ctx, endpoint, &payload)
	if callErr != nil {
		// Only the two hard-stop kinds propagate; everything else (rate
		// limit, network/server error, retries exhausted) degrades to the
		// fallback payload so classification can still proceed (spec.md §4.3).
		kind := core.KindOf(callErr)
		if kind == core.KindInvalidAPIKey || kind == core.KindContentNotFound {
			return nil, callErr
		}
		return fallbackResult(ContentYouTube, rawURL, start), nil
	}

	if len(payload.Items) == 0 {
		return nil, core.NewError("extract.YouTubeExtractor.Extract", core.KindContentNotFound, "video not found: "+videoID, nil)
	}
	snippet := payload.Items[0].Snippet

	return &Result{
		Success:     true,
		ContentType: ContentYouTube,
		Data: map[string]interface{}{
			"videoId":     videoID,
			"title":       snippet.Title,
			"description": snippet.Description,
			"channel":     snippet.ChannelTitle,
		},
		Metadata: Metadata{
			ExtractionMethod: MethodAPIStandard,
			APIUsed:          "youtube_data_v3",
			Confidence:       1.0,
			Timestamp:        time.Now().UTC(),
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		},
	}, nil
}

type youtubeVideosResponse struct {
	Items []struct {
		Snippet struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelTitle string `json:"channelTitle"`
		} `json:"snippet"`
	} `json:"items"`
}

// callAPI performs the breaker-protected, retryable GET and decodes JSON
// into out, translating HTTP status codes into the error kinds named by
// spec.md §4.3.
func (e *YouTubeExtractor) callAPI(ctx context.Context, endpoint string, out interface{}) error {
	fn := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		resp, err := e.HTTPClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return core.NewError("extract.YouTubeExtractor.callAPI", core.KindInvalidAPIKey, "invalid youtube api key", nil)
		case resp.StatusCode == http.StatusNotFound:
			return core.NewError("extract.YouTubeExtractor.callAPI", core.KindContentNotFound, "youtube resource not found", nil)
		case resp.StatusCode == http.StatusForbidden:
			return core.NewRecoverableError("extract.YouTubeExtractor.callAPI", core.KindRateLimitExceeded, "youtube api rate limit exceeded", nil)
		case resp.StatusCode >= 500:
			return resilience.NewStatusError(resp.StatusCode, resp.Header.Get("Retry-After"), "youtube api server error")
		case resp.StatusCode != http.StatusOK:
			return core.NewRecoverableError("extract.YouTubeExtractor.callAPI", core.KindFetchFailed, "unexpected youtube api status", nil)
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}

	if e.Breaker != nil {
		return resilience.RetryWithBreaker(ctx, resilience.StandardPreset(), e.Breaker, fn)
	}
	return resilience.Retry(ctx, resilience.StandardPreset(), fn)
}
