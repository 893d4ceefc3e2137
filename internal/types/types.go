package types

import (
	"errors"
	"time"
)

// ErrInvalidInput marks errors caused by a malformed request
var ErrInvalidInput = errors.New("invalid input")

// ErrNotFound marks lookups of records that do not exist
var ErrNotFound = errors.New("not found")

// Metrics holds the raw per-post counters reported by the insights endpoint
type Metrics struct {
	Views   int64 `json:"views"`
	Likes   int64 `json:"likes"`
	Replies int64 `json:"replies"`
	Reposts int64 `json:"reposts"`
	Quotes  int64 `json:"quotes"`
	Shares  int64 `json:"shares"`
}

// Interactions is the engagement numerator: likes, replies, reposts and quotes
func (m Metrics) Interactions() int64 {
	return m.Likes + m.Replies + m.Reposts + m.Quotes
}

// Add returns the element-wise sum of two metric sets
func (m Metrics) Add(o Metrics) Metrics {
	return Metrics{
		Views:   m.Views + o.Views,
		Likes:   m.Likes + o.Likes,
		Replies: m.Replies + o.Replies,
		Reposts: m.Reposts + o.Reposts,
		Quotes:  m.Quotes + o.Quotes,
		Shares:  m.Shares + o.Shares,
	}
}

// MediaTypeText is the media type of a post without attachments
const MediaTypeText = "TEXT"

// Post is a stored Threads post with its latest insight snapshot
type Post struct {
	PostID    string    `json:"post_id"`
	AccountID string    `json:"account_id"`
	Text      string    `json:"text"`
	MediaType string    `json:"media_type"`
	Timestamp time.Time `json:"timestamp"`
	Metrics
	EngagementRate float64   `json:"engagement_rate"`
	Permalink      string    `json:"permalink"`
	IsQuotePost    bool      `json:"is_quote_post"`
	TopicTag       string    `json:"topic_tag"`
	FetchedAt      time.Time `json:"fetched_at"`
}

// Account is a connected Threads account and its credentials
type Account struct {
	AccountID     string    `json:"account_id"`
	AccessToken   string    `json:"-"`
	UserID        string    `json:"user_id"`
	Username      string    `json:"username"`
	ProfilePicURL string    `json:"profile_pic_url"`
	TokenExpires  time.Time `json:"token_expires"`
	CreatedAt     time.Time `json:"created_at"`
}

// Authenticated reports whether the account can call the Threads API
func (a Account) Authenticated() bool {
	return a.AccessToken != "" && a.UserID != ""
}

// TimeSlotRow is one weekday row of the weekday x hour engagement matrix
type TimeSlotRow struct {
	AccountID string      `json:"account_id"`
	Weekday   string      `json:"weekday"`
	Hours     [24]float64 `json:"hours"`
}

// GrowthDetails carries the inputs behind a growth score
type GrowthDetails struct {
	FollowerGrowthPct float64 `json:"followerGrowthPct"`
	ThisWeekER        float64 `json:"thisWeekER"`
	PrevER            float64 `json:"prevER"`
	PostCount         int     `json:"postCount"`
	AICount           int     `json:"aiCount"`
}

// GrowthScore is the composite 0-100 score of one account on one day
type GrowthScore struct {
	Date      string        `json:"date"`
	AccountID string        `json:"account_id"`
	Total     int           `json:"score"`
	Follower  int           `json:"follower_score"`
	ERTrend   int           `json:"er_trend_score"`
	Frequency int           `json:"frequency_score"`
	AIUsage   int           `json:"ai_usage_score"`
	Details   GrowthDetails `json:"details"`
}

// FollowerSnapshot is the follower count of an account on one day
type FollowerSnapshot struct {
	Date        string  `json:"date"`
	AccountID   string  `json:"account_id"`
	Followers   int64   `json:"followers_count"`
	DailyChange int64   `json:"daily_change"`
	WeeklyPct   float64 `json:"weekly_pct"`
}

// UserInsight holds account-level totals for a date range
type UserInsight struct {
	AccountID string `json:"account_id"`
	Date      string `json:"date"`
	Metrics
	Clicks    int64     `json:"clicks"`
	Followers int64     `json:"followers_count"`
	FetchedAt time.Time `json:"fetched_at"`
}

// GenerationEntry records one piece of assistant-generated content
type GenerationEntry struct {
	ID              string    `json:"id"`
	GeneratedAt     time.Time `json:"generated_at"`
	AccountID       string    `json:"account_id"`
	Theme           string    `json:"theme"`
	Mode            string    `json:"mode"`
	PostText        string    `json:"post_text"`
	Reason          string    `json:"reason"`
	ExpectedER      string    `json:"expected_er"`
	BestTime        string    `json:"best_time"`
	MediaAdvice     string    `json:"media_advice"`
	AnalysisSummary string    `json:"analysis_summary"`
}

// CheckIn is the daily check-in record of an account
type CheckIn struct {
	Date             string `json:"date"`
	AccountID        string `json:"account_id"`
	Streak           int    `json:"streak"`
	Message          string `json:"message"`
	RecommendedTime  string `json:"recommended_time"`
	RecommendedTheme string `json:"recommended_theme"`
}

// Goal types
const (
	GoalFollowerIncrease = "follower_increase"
	GoalPostCount        = "post_count"
	GoalERTarget         = "er_target"
)

// Goal is a user-defined target tracked against live numbers
type Goal struct {
	ID         string    `json:"id"`
	AccountID  string    `json:"account_id"`
	Type       string    `json:"type"`
	Label      string    `json:"label"`
	Target     float64   `json:"target"`
	Current    float64   `json:"current"`
	Achieved   bool      `json:"achieved"`
	CreatedAt  time.Time `json:"created_at"`
	AchievedAt time.Time `json:"achieved_at,omitempty"`
}

// WeeklyReport summarizes one account over one week
type WeeklyReport struct {
	WeekStart       string    `json:"week_start"`
	WeekEnd         string    `json:"week_end"`
	AccountID       string    `json:"account_id"`
	FollowersStart  int64     `json:"followers_start"`
	FollowersEnd    int64     `json:"followers_end"`
	FollowersChange int64     `json:"followers_change"`
	Totals          Metrics   `json:"totals"`
	AvgER           float64   `json:"avg_er"`
	PostCount       int       `json:"post_count"`
	TopPosts        []Post    `json:"top_posts"`
	AISummary       string    `json:"ai_summary"`
	CreatedAt       time.Time `json:"created_at"`
}

// Draft statuses
const (
	DraftUnused = "unused"
	DraftUsed   = "used"
)

// Draft kinds
const (
	DraftSingle       = "single"
	DraftThreadParent = "thread_parent"
	DraftThreadReply  = "thread_reply"
)

// Draft is a saved post idea. Parts of one thread share a ThreadID and are
// ordered by ThreadOrder, starting at 0 for the parent.
type Draft struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	Text        string    `json:"text"`
	Kind        string    `json:"type"`
	Source      string    `json:"source"`
	Status      string    `json:"status"`
	ThreadID    string    `json:"thread_id,omitempty"`
	ThreadOrder int       `json:"thread_order"`
	CreatedAt   time.Time `json:"created_at"`
}

// SearchPost is a public post returned by keyword search
type SearchPost struct {
	PostID      string    `json:"post_id"`
	Username    string    `json:"username"`
	Text        string    `json:"text"`
	MediaType   string    `json:"media_type"`
	Permalink   string    `json:"permalink"`
	Timestamp   time.Time `json:"timestamp"`
	HasReplies  bool      `json:"has_replies"`
	IsQuotePost bool      `json:"is_quote_post"`
	IsReply     bool      `json:"is_reply"`
	TopicTag    string    `json:"topic_tag"`
	FetchedAt   time.Time `json:"fetched_at,omitempty"`
}

// SearchHistoryEntry is one remembered keyword search
type SearchHistoryEntry struct {
	AccountID   string    `json:"account_id"`
	Keyword     string    `json:"keyword"`
	SearchMode  string    `json:"search_mode"`
	ResultCount int       `json:"result_count"`
	SearchedAt  time.Time `json:"searched_at"`
}

// Competitor is another account the user watches
type Competitor struct {
	ID               string    `json:"id"`
	AccountID        string    `json:"account_id"`
	Username         string    `json:"username"`
	DisplayName      string    `json:"display_name"`
	Category         string    `json:"category"`
	Followers        int64     `json:"followers_count"`
	FollowersUpdated time.Time `json:"followers_updated,omitempty"`
	Memo             string    `json:"memo"`
	CreatedAt        time.Time `json:"created_at"`
}

// WatchPost is a competitor post recorded by hand
type WatchPost struct {
	ID                 string    `json:"id"`
	AccountID          string    `json:"account_id"`
	CompetitorUsername string    `json:"competitor_username"`
	PostURL            string    `json:"post_url"`
	PostText           string    `json:"post_text"`
	MediaType          string    `json:"media_type"`
	Likes              int64     `json:"likes"`
	Replies            int64     `json:"replies"`
	Reposts            int64     `json:"reposts"`
	PostDate           string    `json:"post_date"`
	Tags               []string  `json:"tags"`
	Memo               string    `json:"memo"`
	CreatedAt          time.Time `json:"created_at"`
}
