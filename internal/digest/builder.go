package digest

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/ibeckermayer/threadpulse/internal/types"
)

const maxTopPostText = 100

// Builder renders weekly reports as emails
type Builder struct {
	template *template.Template
}

// New creates a new digest builder
func New() (*Builder, error) {
	tmpl, err := template.New("digest").Funcs(template.FuncMap{"signed": signed}).Parse(defaultTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return &Builder{template: tmpl}, nil
}

// Digest is a rendered email ready for sending
type Digest struct {
	Subject   string
	HTMLBody  string
	PlainBody string
	CreatedAt time.Time
}

// ReportData is the template data structure
type ReportData struct {
	Title           string
	Username        string
	WeekStart       string
	WeekEnd         string
	PostCount       int
	AvgER           float64
	Views           int64
	Likes           int64
	Replies         int64
	Reposts         int64
	FollowersStart  int64
	FollowersEnd    int64
	FollowersChange int64
	TopPosts        []PostData
	AISummary       string
}

// PostData represents a post in the digest template
type PostData struct {
	Text      string
	ER        float64
	Views     int64
	Likes     int64
	Permalink string
}

// Build renders a weekly report for username
func (b *Builder) Build(rep types.WeeklyReport, username string) (*Digest, error) {
	if rep.WeekStart == "" {
		return nil, fmt.Errorf("report has no week")
	}

	data := ReportData{
		Title:           fmt.Sprintf("Weekly report: %s to %s", rep.WeekStart, rep.WeekEnd),
		Username:        username,
		WeekStart:       rep.WeekStart,
		WeekEnd:         rep.WeekEnd,
		PostCount:       rep.PostCount,
		AvgER:           rep.AvgER,
		Views:           rep.Totals.Views,
		Likes:           rep.Totals.Likes,
		Replies:         rep.Totals.Replies,
		Reposts:         rep.Totals.Reposts,
		FollowersStart:  rep.FollowersStart,
		FollowersEnd:    rep.FollowersEnd,
		FollowersChange: rep.FollowersChange,
		TopPosts:        make([]PostData, len(rep.TopPosts)),
		AISummary:       rep.AISummary,
	}
	for i, p := range rep.TopPosts {
		data.TopPosts[i] = PostData{
			Text:      truncate(p.Text, maxTopPostText),
			ER:        p.EngagementRate,
			Views:     p.Views,
			Likes:     p.Likes,
			Permalink: p.Permalink,
		}
	}

	var htmlBuf bytes.Buffer
	if err := b.template.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	subject := "Weekly report"
	if username != "" {
		subject += " - @" + username
	}
	return &Digest{
		Subject:   subject,
		HTMLBody:  htmlBuf.String(),
		PlainBody: buildPlainText(data),
		CreatedAt: time.Now(),
	}, nil
}

func signed(n int64) string {
	if n >= 0 {
		return fmt.Sprintf("+%d", n)
	}
	return fmt.Sprintf("%d", n)
}

// truncate cuts s to maxLen runes, marking the cut with an ellipsis
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-1]) + "…"
}

func buildPlainText(data ReportData) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s\n", data.Title)
	if data.Username != "" {
		fmt.Fprintf(&buf, "@%s\n", data.Username)
	}
	buf.WriteString("\n")
	fmt.Fprintf(&buf, "Posts: %d\n", data.PostCount)
	fmt.Fprintf(&buf, "Engagement rate: %.2f%%\n", data.AvgER)
	fmt.Fprintf(&buf, "Views: %d\n", data.Views)
	fmt.Fprintf(&buf, "Followers: %d -> %d (%s)\n\n", data.FollowersStart, data.FollowersEnd, signed(data.FollowersChange))

	if len(data.TopPosts) > 0 {
		buf.WriteString("Top posts:\n")
		for i, p := range data.TopPosts {
			fmt.Fprintf(&buf, "%d. ER %.2f%% / %s\n", i+1, p.ER, p.Text)
			if p.Permalink != "" {
				fmt.Fprintf(&buf, "   %s\n", p.Permalink)
			}
		}
		buf.WriteString("\n")
	}
	if data.AISummary != "" {
		fmt.Fprintf(&buf, "%s\n", data.AISummary)
	}
	return buf.String()
}

const defaultTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background: #f5f5f5; }
        .container { background: white; border-radius: 8px; padding: 20px; }
        h1 { color: #111; margin-bottom: 5px; }
        .date { color: #666; margin-bottom: 20px; }
        .stats td { padding: 4px 12px 4px 0; }
        .stats .value { font-weight: bold; }
        .post { border-bottom: 1px solid #eee; padding: 12px 0; }
        .post:last-child { border-bottom: none; }
        .content { margin: 6px 0; line-height: 1.4; }
        .metrics { color: #666; font-size: 13px; }
        .link { color: #0a66c2; text-decoration: none; }
        .summary { background: #f0f4f8; border-radius: 6px; padding: 12px; white-space: pre-wrap; }
        .footer { margin-top: 20px; padding-top: 15px; border-top: 1px solid #eee; color: #999; font-size: 12px; text-align: center; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <div class="date">{{if .Username}}@{{.Username}} · {{end}}{{.WeekStart}} to {{.WeekEnd}}</div>

        <table class="stats">
            <tr><td>Posts</td><td class="value">{{.PostCount}}</td></tr>
            <tr><td>Engagement rate</td><td class="value">{{printf "%.2f" .AvgER}}%</td></tr>
            <tr><td>Views</td><td class="value">{{.Views}}</td></tr>
            <tr><td>Likes · replies · reposts</td><td class="value">{{.Likes}} · {{.Replies}} · {{.Reposts}}</td></tr>
            <tr><td>Followers</td><td class="value">{{.FollowersStart}} → {{.FollowersEnd}} ({{signed .FollowersChange}})</td></tr>
        </table>

        {{if .TopPosts}}
        <h2>Top posts</h2>
        {{range .TopPosts}}
        <div class="post">
            <div class="content">{{.Text}}</div>
            <div class="metrics">ER {{printf "%.2f" .ER}}% · {{.Views}} views · {{.Likes}} likes</div>
            {{if .Permalink}}<a href="{{.Permalink}}" class="link">View on Threads →</a>{{end}}
        </div>
        {{end}}
        {{end}}

        {{if .AISummary}}
        <h2>Summary</h2>
        <div class="summary">{{.AISummary}}</div>
        {{end}}

        <div class="footer">
            Generated by threadpulse
        </div>
    </div>
</body>
</html>`
