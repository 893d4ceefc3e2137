package analytics

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ibeckermayer/threadpulse/internal/types"
)

const maxTopAuthors = 10

// LengthBuckets counts posts by text length: up to 50, 150, 300 runes, and beyond
type LengthBuckets struct {
	Short    int `json:"short"`
	Medium   int `json:"medium"`
	Long     int `json:"long"`
	VeryLong int `json:"verylong"`
}

// AuthorCount is how often one author appears in a result set
type AuthorCount struct {
	Username string `json:"username"`
	Count    int    `json:"count"`
}

// StyleReport describes how the posts of a search result are written
type StyleReport struct {
	TotalPosts       int            `json:"totalPosts"`
	MediaBreakdown   map[string]int `json:"mediaBreakdown"`
	AvgTextLength    int            `json:"avgTextLength"`
	LengthBuckets    LengthBuckets  `json:"textLengthBuckets"`
	HourDistribution [24]int        `json:"hourDistribution"`
	TopAuthors       []AuthorCount  `json:"topAuthors"`
	ReplyRate        int            `json:"replyRate"`
	QuoteRate        int            `json:"quoteRate"`
}

// AnalyzeStyles summarizes media, length, posting hours in loc and authors
// of searched posts. Posts without text are left out of the length figures.
func AnalyzeStyles(posts []types.SearchPost, loc *time.Location) StyleReport {
	rep := StyleReport{
		TotalPosts:     len(posts),
		MediaBreakdown: map[string]int{},
		TopAuthors:     []AuthorCount{},
	}
	if len(posts) == 0 {
		return rep
	}

	var chars, withText, replies, quotes int
	authors := map[string]int{}
	for _, p := range posts {
		mediaType := p.MediaType
		if mediaType == "" {
			mediaType = types.MediaTypeText
		}
		rep.MediaBreakdown[mediaType]++

		if p.Text != "" {
			n := utf8.RuneCountInString(p.Text)
			chars += n
			withText++
			switch {
			case n <= 50:
				rep.LengthBuckets.Short++
			case n <= 150:
				rep.LengthBuckets.Medium++
			case n <= 300:
				rep.LengthBuckets.Long++
			default:
				rep.LengthBuckets.VeryLong++
			}
		}
		if !p.Timestamp.IsZero() {
			rep.HourDistribution[p.Timestamp.In(loc).Hour()]++
		}
		if p.Username != "" {
			authors[p.Username]++
		}
		if p.IsReply {
			replies++
		}
		if p.IsQuotePost {
			quotes++
		}
	}

	if withText > 0 {
		rep.AvgTextLength = int(math.Floor(float64(chars)/float64(withText) + 0.5))
	}
	for name, n := range authors {
		rep.TopAuthors = append(rep.TopAuthors, AuthorCount{Username: name, Count: n})
	}
	sort.Slice(rep.TopAuthors, func(i, j int) bool {
		a, b := rep.TopAuthors[i], rep.TopAuthors[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Username < b.Username
	})
	if len(rep.TopAuthors) > maxTopAuthors {
		rep.TopAuthors = rep.TopAuthors[:maxTopAuthors]
	}
	rep.ReplyRate = percent(replies, len(posts))
	rep.QuoteRate = percent(quotes, len(posts))
	return rep
}

// MatchKeyword returns the posts whose text or topic tag contains keyword,
// case-insensitively, best engagement rate first
func MatchKeyword(posts []types.Post, keyword string) []types.Post {
	kw := strings.ToLower(keyword)
	var out []types.Post
	for _, p := range posts {
		if strings.Contains(strings.ToLower(p.Text), kw) || strings.Contains(strings.ToLower(p.TopicTag), kw) {
			out = append(out, p)
		}
	}
	SortByRate(out)
	return out
}
