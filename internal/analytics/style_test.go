package analytics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ibeckermayer/threadpulse/internal/types"
)

func TestAnalyzeStylesEmpty(t *testing.T) {
	rep := AnalyzeStyles(nil, time.UTC)
	assert.Zero(t, rep.TotalPosts)
	assert.Empty(t, rep.MediaBreakdown)
	assert.NotNil(t, rep.TopAuthors)
	assert.Zero(t, rep.ReplyRate)
}

func TestAnalyzeStyles(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	posts := []types.SearchPost{
		{Username: "carol", Text: strings.Repeat("a", 50), Timestamp: at, IsReply: true},
		{Username: "carol", Text: strings.Repeat("b", 51), MediaType: "IMAGE", Timestamp: at},
		{Username: "dave", Text: strings.Repeat("c", 301), MediaType: "IMAGE", IsQuotePost: true},
		{Username: "erin", MediaType: "VIDEO"},
	}

	rep := AnalyzeStyles(posts, tokyo)
	assert.Equal(t, 4, rep.TotalPosts)
	assert.Equal(t, map[string]int{"TEXT": 1, "IMAGE": 2, "VIDEO": 1}, rep.MediaBreakdown)
	assert.Equal(t, 134, rep.AvgTextLength, "posts without text are not averaged")
	assert.Equal(t, LengthBuckets{Short: 1, Medium: 1, VeryLong: 1}, rep.LengthBuckets)
	assert.Equal(t, 2, rep.HourDistribution[21])
	assert.Equal(t, []AuthorCount{{"carol", 2}, {"dave", 1}, {"erin", 1}}, rep.TopAuthors)
	assert.Equal(t, 25, rep.ReplyRate)
	assert.Equal(t, 25, rep.QuoteRate)
}

func TestAnalyzeStylesCapsAuthors(t *testing.T) {
	var posts []types.SearchPost
	for i := 0; i < 12; i++ {
		posts = append(posts, types.SearchPost{Username: string(rune('a' + i)), Text: "x"})
	}
	assert.Len(t, AnalyzeStyles(posts, time.UTC).TopAuthors, maxTopAuthors)
}

func TestMatchKeyword(t *testing.T) {
	posts := []types.Post{
		{PostID: "1", Text: "Morning COFFEE", EngagementRate: 2},
		{PostID: "2", Text: "tea time", TopicTag: "Coffee"},
		{PostID: "3", Text: "coffee again", EngagementRate: 9},
		{PostID: "4", Text: "nothing here"},
	}

	got := MatchKeyword(posts, "coffee")
	ids := make([]string, len(got))
	for i, p := range got {
		ids[i] = p.PostID
	}
	assert.Equal(t, []string{"3", "1", "2"}, ids)
}
