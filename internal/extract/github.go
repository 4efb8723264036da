package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/RBarbieri13/decant/internal/core"
	"github.com/RBarbieri13/decant/internal/resilience"
)

// GitHubExtractor uses the GitHub REST API repos endpoint; an API token is
// optional (raises the unauthenticated rate limit) but not required, so
// RequiresAPIKey is false while the API is still preferred over scraping
// (spec.md §4.3).
type GitHubExtractor struct {
	HTTPClient *http.Client
	Breaker    *resilience.CircuitBreaker
}

func NewGitHubExtractor(client *http.Client, breaker *resilience.CircuitBreaker) *GitHubExtractor {
	if client == nil {
		client = http.DefaultClient
	}
	return &GitHubExtractor{HTTPClient: client, Breaker: breaker}
}

func (e *GitHubExtractor) ContentType() ContentType { return ContentGitHub }
func (e *GitHubExtractor) RequiresAPIKey() bool      { return false }

func (e *GitHubExtractor) CanHandle(rawURL string) bool {
	owner, repo := ownerRepoFromGitHubURL(rawURL)
	return owner != "" && repo != ""
}

func ownerRepoFromGitHubURL(rawURL string) (owner, repo string) {
	u, err := url.Parse(rawURL)
	if err != nil || !strings.Contains(strings.ToLower(u.Hostname()), "github.com") {
		return "", ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return "", ""
	}
	return parts[0], parts[1]
}

type githubRepoResponse struct {
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	Language    string `json:"language"`
	Stars       int    `json:"stargazers_count"`
	Owner       struct {
		Login string `json:"login"`
	} `json:"owner"`
}

// Extract fetches GET /repos/{owner}/{repo}; on success records
// extractionMethod=api_standard, confidence 1.0 (spec.md §4.3).
func (e *GitHubExtractor) Extract(ctx context.Context, rawURL string, opts Options) (*Result, error) {
	start := time.Now()
	owner, repo := ownerRepoFromGitHubURL(rawURL)
	endpoint := "https://api.github.com/repos/" + owner + "/" + repo

	var payload githubRepoResponse
	callErr := e.callAPI(ctx, endpoint, opts.APIKeys["github"], &payload)
	if callErr != nil {
		kind := core.KindOf(callErr)
		if kind == core.KindInvalidAPIKey || kind == core.KindContentNotFound {
			return nil, callErr
		}
		return fallbackResult(ContentGitHub, rawURL, start), nil
	}

	return &Result{
		Success:     true,
		ContentType: ContentGitHub,
		Data: map[string]interface{}{
			"fullName":    payload.FullName,
			"description": payload.Description,
			"language":    payload.Language,
			"stars":       payload.Stars,
			"owner":       payload.Owner.Login,
		},
		Metadata: Metadata{
			ExtractionMethod: MethodAPIStandard,
			APIUsed:          "github_rest_v3",
			Confidence:       1.0,
			Timestamp:        time.Now().UTC(),
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		},
	}, nil
}

func (e *GitHubExtractor) callAPI(ctx context.Context, endpoint, token string, out interface{}) error {
	fn := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := e.HTTPClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return core.NewError("extract.GitHubExtractor.callAPI", core.KindInvalidAPIKey, "invalid github token", nil)
		case resp.StatusCode == http.StatusNotFound:
			return core.NewError("extract.GitHubExtractor.callAPI", core.KindContentNotFound, "repository not found", nil)
		case resp.StatusCode == http.StatusForbidden:
			return core.NewRecoverableError("extract.GitHubExtractor.callAPI", core.KindRateLimitExceeded, "github api rate limit exceeded", nil)
		case resp.StatusCode >= 500:
			return resilience.NewStatusError(resp.StatusCode, resp.Header.Get("Retry-After"), "github api server error")
		case resp.StatusCode != http.StatusOK:
			return core.NewRecoverableError("extract.GitHubExtractor.callAPI", core.KindFetchFailed, "unexpected github api status", nil)
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}

	if e.Breaker != nil {
		return resilience.RetryWithBreaker(ctx, resilience.StandardPreset(), e.Breaker, fn)
	}
	return resilience.Retry(ctx, resilience.StandardPreset(), fn)
}
