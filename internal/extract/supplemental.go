package extract

import "net/http"

// The podcast, paper, tweet (non-API), image, tool, and website content
// types have no dedicated native API in this build; each reuses
// ArticleExtractor's scrape path under its own ContentType tag so search
// facets and classification still see the correct type (SPEC_FULL.md §4.3).

func NewPodcastExtractor(client *http.Client) *ArticleExtractor {
	return NewArticleExtractor(client, ContentPodcast)
}

func NewPaperExtractor(client *http.Client) *ArticleExtractor {
	return NewArticleExtractor(client, ContentPaper)
}

func NewTweetExtractor(client *http.Client) *ArticleExtractor {
	return NewArticleExtractor(client, ContentTweet)
}

func NewImageExtractor(client *http.Client) *ArticleExtractor {
	return NewArticleExtractor(client, ContentImage)
}

func NewToolExtractor(client *http.Client) *ArticleExtractor {
	return NewArticleExtractor(client, ContentTool)
}

func NewWebsiteExtractor(client *http.Client) *ArticleExtractor {
	return NewArticleExtractor(client, ContentWebsite)
}
