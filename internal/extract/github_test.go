package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOwnerRepoFromGitHubURL(t *testing.T) {
	cases := []struct {
		url       string
		owner     string
		repo      string
	}{
		{"https://github.com/owner/repo", "owner", "repo"},
		{"https://github.com/owner/repo/tree/main", "owner", "repo"},
		{"https://gitlab.com/owner/repo", "", ""},
		{"not a url", "", ""},
		{"https://github.com/owner", "", ""},
	}
	for _, tc := range cases {
		owner, repo := ownerRepoFromGitHubURL(tc.url)
		assert.Equal(t, tc.owner, owner, tc.url)
		assert.Equal(t, tc.repo, repo, tc.url)
	}
}

func TestGitHubExtractor_CanHandle(t *testing.T) {
	e := NewGitHubExtractor(nil, nil)
	assert.True(t, e.CanHandle("https://github.com/owner/repo"))
	assert.False(t, e.CanHandle("https://example.com/owner/repo"))
	assert.Equal(t, ContentGitHub, e.ContentType())
	assert.False(t, e.RequiresAPIKey())
}
