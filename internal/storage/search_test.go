package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchNodes_LikeMatchAcrossTextFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateNode(ctx, CreateNodeInput{Title: "Kubernetes Operators", URL: "https://example.com/k8s"})
	require.NoError(t, err)
	_, err = s.CreateNode(ctx, CreateNodeInput{Title: "Something Else", URL: "https://example.com/other", ShortDescription: "about kubernetes"})
	require.NoError(t, err)
	_, err = s.CreateNode(ctx, CreateNodeInput{Title: "Unrelated", URL: "https://example.com/unrelated"})
	require.NoError(t, err)

	results, err := s.SearchNodes(ctx, "kubernetes", Pagination{})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchNodesAdvanced_EmptyQueryListsAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateNode(ctx, CreateNodeInput{Title: "One", URL: "https://example.com/adv1", Segment: "E", Category: "tools"})
	require.NoError(t, err)
	_, err = s.CreateNode(ctx, CreateNodeInput{Title: "Two", URL: "https://example.com/adv2", Segment: "P", Category: "articles"})
	require.NoError(t, err)

	resp, err := s.SearchNodesAdvanced(ctx, "", SearchFilters{}, Pagination{})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
	assert.Equal(t, int64(2), resp.Total)
	assert.Equal(t, int64(1), resp.Facets.Segments["E"])
	assert.Equal(t, int64(1), resp.Facets.Segments["P"])
}

func TestSearchNodesAdvanced_FiltersBySegment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateNode(ctx, CreateNodeInput{Title: "One", URL: "https://example.com/seg1", Segment: "E"})
	require.NoError(t, err)
	_, err = s.CreateNode(ctx, CreateNodeInput{Title: "Two", URL: "https://example.com/seg2", Segment: "P"})
	require.NoError(t, err)

	resp, err := s.SearchNodesAdvanced(ctx, "", SearchFilters{Segments: []string{"E"}}, Pagination{})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "One", resp.Results[0].Node.Title)
}

func TestSearchNodesAdvanced_FTSMatchesIndexedText(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateNode(ctx, CreateNodeInput{Title: "Distributed Tracing with OpenTelemetry", URL: "https://example.com/otel"})
	require.NoError(t, err)
	_, err = s.CreateNode(ctx, CreateNodeInput{Title: "Gardening Tips", URL: "https://example.com/garden"})
	require.NoError(t, err)

	resp, err := s.SearchNodesAdvanced(ctx, "tracing", SearchFilters{}, Pagination{})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Distributed Tracing with OpenTelemetry", resp.Results[0].Node.Title)
}

func TestSearchNodesAdvanced_PaginationLimitsResults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.CreateNode(ctx, CreateNodeInput{Title: "Page item", URL: "https://example.com/page" + string(rune('a'+i))})
		require.NoError(t, err)
	}

	resp, err := s.SearchNodesAdvanced(ctx, "", SearchFilters{}, Pagination{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
	assert.Equal(t, int64(5), resp.Total)
}

func TestSearchNodesAdvanced_FacetsReflectQueryAndFilterTogether(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateNode(ctx, CreateNodeInput{Title: "Learning Transformers", URL: "https://example.com/q1", Segment: "A"})
	require.NoError(t, err)
	_, err = s.CreateNode(ctx, CreateNodeInput{Title: "Learning Watercolors", URL: "https://example.com/q2", Segment: "A"})
	require.NoError(t, err)
	// Same segment as the matches above, but doesn't match the query text —
	// must not be counted in facets.segments.A or Total.
	_, err = s.CreateNode(ctx, CreateNodeInput{Title: "Cooking Basics", URL: "https://example.com/q3", Segment: "A"})
	require.NoError(t, err)
	// Matches the query text, but filtered out by segment.
	_, err = s.CreateNode(ctx, CreateNodeInput{Title: "Learning Guitar", URL: "https://example.com/q4", Segment: "E"})
	require.NoError(t, err)

	resp, err := s.SearchNodesAdvanced(ctx, "learning", SearchFilters{Segments: []string{"A"}}, Pagination{})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
	assert.Equal(t, int64(2), resp.Total)
	assert.Equal(t, int64(2), resp.Facets.Segments["A"])
	assert.NotContains(t, resp.Facets.Segments, "E")
}

func TestCountSearchResults_UnclampedByFacetCap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateNode(ctx, CreateNodeInput{Title: "Counted", URL: "https://example.com/count"})
	require.NoError(t, err)

	total, err := s.CountSearchResults(ctx, "", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestMatchedFields_ReportsCaseInsensitiveHits(t *testing.T) {
	n := &Node{Title: "Hello World", ShortDescription: "a greeting"}
	fields := matchedFields(n, "HELLO")
	assert.Equal(t, []string{"title"}, fields)
}

func TestSnippetFor_PrefersShortDescription(t *testing.T) {
	n := &Node{ShortDescription: "short", PhraseDescription: "phrase", AISummary: "summary"}
	assert.Equal(t, "short", snippetFor(n))

	empty := &Node{AISummary: "only summary"}
	assert.Equal(t, "only summary", snippetFor(empty))
}
