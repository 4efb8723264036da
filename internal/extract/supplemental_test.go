package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSupplementalExtractors_TagTheirOwnContentType(t *testing.T) {
	assert.Equal(t, ContentPodcast, NewPodcastExtractor(nil).ContentType())
	assert.Equal(t, ContentPaper, NewPaperExtractor(nil).ContentType())
	assert.Equal(t, ContentTweet, NewTweetExtractor(nil).ContentType())
	assert.Equal(t, ContentImage, NewImageExtractor(nil).ContentType())
	assert.Equal(t, ContentTool, NewToolExtractor(nil).ContentType())
	assert.Equal(t, ContentWebsite, NewWebsiteExtractor(nil).ContentType())
}
