package analytics

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ibeckermayer/threadpulse/internal/types"
)

// MediaMarker is the placeholder left in post text where an attachment was
const MediaMarker = "[media]"

var (
	hashtagPattern = regexp.MustCompile(`#\S+`)
	mediaPattern   = regexp.MustCompile(`(?i)https?://\S+\.(jpe?g|png|gif|webp|heic|mp4|mov)\b`)
)

const maxGroupSize = 10

// Features are the text traits compared between high and low performers
type Features struct {
	Length       int
	HookLength   int
	HashtagCount int
	HasHashtag   bool
	HasMedia     bool
	IsQuestion   bool
}

// ExtractFeatures derives the compared traits of one post
func ExtractFeatures(p types.Post) Features {
	tags := len(hashtagPattern.FindAllString(p.Text, -1))
	return Features{
		Length:       utf8.RuneCountInString(p.Text),
		HookLength:   hookLength(p.Text),
		HashtagCount: tags,
		HasHashtag:   tags > 0,
		HasMedia:     hasMedia(p),
		IsQuestion:   strings.ContainsAny(p.Text, "?？"),
	}
}

// hookLength counts the runes before the first sentence end or line break
func hookLength(text string) int {
	n := 0
	for _, r := range text {
		switch r {
		case '.', '!', '?', '。', '！', '？', '\n':
			return n
		}
		n++
	}
	return n
}

// hasMedia looks only at the text: a media URL or the attachment marker.
// MediaType is not consulted.
func hasMedia(p types.Post) bool {
	return strings.Contains(p.Text, MediaMarker) || mediaPattern.MatchString(p.Text)
}

// GroupStats summarizes one side of the contrast
type GroupStats struct {
	Count           int     `json:"count"`
	AvgER           float64 `json:"avgER"`
	AvgLength       float64 `json:"avgLength"`
	AvgHookLength   float64 `json:"avgHookLength"`
	AvgHashtagCount float64 `json:"avgHashtagCount"`
	HashtagRate     int     `json:"hashtagRate"`
	MediaRate       int     `json:"mediaRate"`
	QuestionRate    int     `json:"questionRate"`
	BestHour        int     `json:"bestHour"`
	BestWeekday     string  `json:"bestWeekday"`
}

// BuzzReport contrasts the top and bottom engagement groups of a window
type BuzzReport struct {
	HasData    bool         `json:"hasData"`
	WindowDays int          `json:"windowDays"`
	SampleSize int          `json:"sampleSize"`
	Top        *GroupStats  `json:"top,omitempty"`
	Bottom     *GroupStats  `json:"bottom,omitempty"`
	TopPosts   []types.Post `json:"topPosts,omitempty"`
}

// AnalyzeBuzz ranks posts by engagement rate and contrasts the first and last
// min(10, ceil(20%)) of them. With few posts the groups may overlap.
func AnalyzeBuzz(posts []types.Post, loc *time.Location) BuzzReport {
	n := len(posts)
	if n == 0 {
		return BuzzReport{HasData: false}
	}

	ranked := append([]types.Post(nil), posts...)
	SortByRate(ranked)

	size := min(maxGroupSize, int(math.Ceil(0.2*float64(n))))
	top := ranked[:size]
	bottom := ranked[n-size:]

	return BuzzReport{
		HasData:    true,
		SampleSize: n,
		Top:        groupStats(top, loc),
		Bottom:     groupStats(bottom, loc),
		TopPosts:   top,
	}
}

func groupStats(posts []types.Post, loc *time.Location) *GroupStats {
	g := &GroupStats{Count: len(posts)}
	var er, length, hook, tags float64
	var withTags, withMedia, questions int
	hours := make(map[int]int)
	days := make(map[string]int)
	bestHour, bestHourN := 0, 0
	bestDay, bestDayN := "", 0

	for _, p := range posts {
		f := ExtractFeatures(p)
		er += p.EngagementRate
		length += float64(f.Length)
		hook += float64(f.HookLength)
		tags += float64(f.HashtagCount)
		if f.HasHashtag {
			withTags++
		}
		if f.HasMedia {
			withMedia++
		}
		if f.IsQuestion {
			questions++
		}

		if p.Timestamp.IsZero() {
			continue
		}
		// Ties go to the value that reached the count first in ranking order.
		t := p.Timestamp.In(loc)
		hours[t.Hour()]++
		if hours[t.Hour()] > bestHourN {
			bestHour, bestHourN = t.Hour(), hours[t.Hour()]
		}
		day := Weekdays[t.Weekday()]
		days[day]++
		if days[day] > bestDayN {
			bestDay, bestDayN = day, days[day]
		}
	}

	count := float64(len(posts))
	g.AvgER = round(er/count, 1)
	g.AvgLength = round(length/count, 1)
	g.AvgHookLength = round(hook/count, 1)
	g.AvgHashtagCount = round(tags/count, 1)
	g.HashtagRate = percent(withTags, len(posts))
	g.MediaRate = percent(withMedia, len(posts))
	g.QuestionRate = percent(questions, len(posts))
	g.BestHour = bestHour
	g.BestWeekday = bestDay
	return g
}

func percent(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return int(math.Floor(float64(part)/float64(whole)*100 + 0.5))
}

// Buzz runs AnalyzeBuzz over an account's recent posts
type Buzz struct {
	posts       PostReader
	loc         *time.Location
	defaultDays int
	now         func() time.Time
}

// NewBuzz creates a buzz analyzer with a default lookback of defaultDays
func NewBuzz(posts PostReader, loc *time.Location, defaultDays int) *Buzz {
	if defaultDays <= 0 {
		defaultDays = 30
	}
	return &Buzz{posts: posts, loc: loc, defaultDays: defaultDays, now: time.Now}
}

// Analyze contrasts the account's posts from the last days days (default when 0)
func (b *Buzz) Analyze(ctx context.Context, acct types.Account, days int) (BuzzReport, error) {
	if days <= 0 {
		days = b.defaultDays
	}
	posts, err := b.posts.Posts(ctx, acct.AccountID)
	if err != nil {
		return BuzzReport{}, fmt.Errorf("failed to read posts: %w", err)
	}
	report := AnalyzeBuzz(Since(posts, b.now().AddDate(0, 0, -days)), b.loc)
	report.WindowDays = days
	return report, nil
}
