package store

// Table names
const (
	TablePosts         = "posts"
	TableAccounts      = "accounts"
	TableSettings      = "settings"
	TableTimeSlots     = "time_slots"
	TableUserInsights  = "user_insights"
	TableFollowers     = "followers"
	TableGrowthScores  = "growth_scores"
	TableGenerationLog = "generation_log"
	TableCheckIns      = "checkins"
	TableGoals         = "goals"
	TableWeeklyReports = "weekly_reports"
	TableDrafts        = "drafts"
	TableSearchResults = "keyword_results"
	TableSearchHistory = "search_history"
	TableCompetitors   = "competitors"
	TableWatchPosts    = "watch_posts"
)

// ColAccountID partitions every account-scoped table
const ColAccountID = "account_id"

const rowIndexColumn = "row_index"

// Table describes a named table and its header row
type Table struct {
	Name          string
	Headers       []string
	AccountScoped bool
}

var hourHeaders = func() []string {
	h := make([]string, 24)
	for i := range h {
		h[i] = hourColumn(i)
	}
	return h
}()

// Schema lists every table the application reads or writes
var Schema = []Table{
	{
		Name: TablePosts,
		Headers: []string{"post_id", ColAccountID, "text", "media_type", "timestamp",
			"views", "likes", "replies", "reposts", "quotes", "shares",
			"engagement_rate", "permalink", "is_quote_post", "topic_tag", "fetched_at"},
		AccountScoped: true,
	},
	{
		Name: TableAccounts,
		Headers: []string{ColAccountID, "access_token", "user_id", "username",
			"profile_pic_url", "token_expires", "created_at"},
	},
	{
		Name:    TableSettings,
		Headers: []string{"key", "value"},
	},
	{
		Name:          TableTimeSlots,
		Headers:       append([]string{ColAccountID, "weekday"}, hourHeaders...),
		AccountScoped: true,
	},
	{
		Name: TableUserInsights,
		Headers: []string{ColAccountID, "date", "views", "likes", "replies", "reposts",
			"quotes", "clicks", "followers_count", "fetched_at"},
		AccountScoped: true,
	},
	{
		Name:          TableFollowers,
		Headers:       []string{"date", ColAccountID, "followers_count", "daily_change", "weekly_pct"},
		AccountScoped: true,
	},
	{
		Name: TableGrowthScores,
		Headers: []string{"date", ColAccountID, "score", "follower_score", "er_trend_score",
			"frequency_score", "ai_usage_score", "details_json"},
		AccountScoped: true,
	},
	{
		Name: TableGenerationLog,
		Headers: []string{"id", "generated_at", ColAccountID, "theme", "mode", "post_text",
			"reason", "expected_er", "best_time", "media_advice", "analysis_summary"},
		AccountScoped: true,
	},
	{
		Name: TableCheckIns,
		Headers: []string{"date", ColAccountID, "streak", "message",
			"recommended_time", "recommended_theme"},
		AccountScoped: true,
	},
	{
		Name: TableGoals,
		Headers: []string{"id", ColAccountID, "type", "label", "target", "current",
			"achieved", "created_at", "achieved_at"},
		AccountScoped: true,
	},
	{
		Name: TableWeeklyReports,
		Headers: []string{"week_start", "week_end", ColAccountID, "followers_start",
			"followers_end", "followers_change", "total_views", "total_likes",
			"total_replies", "total_reposts", "total_quotes", "avg_er", "post_count",
			"top_posts_json", "ai_summary", "created_at"},
		AccountScoped: true,
	},
	{
		Name: TableDrafts,
		Headers: []string{"id", ColAccountID, "text", "type", "source", "status",
			"thread_id", "thread_order", "created_at"},
		AccountScoped: true,
	},
	{
		Name: TableSearchResults,
		Headers: []string{ColAccountID, "keyword", "search_mode", "search_type", "post_id",
			"username", "text", "media_type", "permalink", "timestamp", "has_replies",
			"is_quote_post", "is_reply", "topic_tag", "fetched_at"},
		AccountScoped: true,
	},
	{
		Name:          TableSearchHistory,
		Headers:       []string{ColAccountID, "keyword", "search_mode", "result_count", "searched_at"},
		AccountScoped: true,
	},
	{
		Name: TableCompetitors,
		Headers: []string{"id", ColAccountID, "username", "display_name", "category",
			"followers_count", "followers_updated", "memo", "created_at"},
		AccountScoped: true,
	},
	{
		Name: TableWatchPosts,
		Headers: []string{"id", ColAccountID, "competitor_username", "post_url", "post_text",
			"media_type", "likes", "replies", "reposts", "post_date", "tags", "memo", "created_at"},
		AccountScoped: true,
	},
}

// accountScopedTables lists tables whose rows belong to one account
func accountScopedTables() []string {
	var names []string
	for _, t := range Schema {
		if t.AccountScoped {
			names = append(names, t.Name)
		}
	}
	return names
}
