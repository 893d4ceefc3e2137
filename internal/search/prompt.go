package search

import (
	"fmt"
	"strings"

	"github.com/ibeckermayer/threadpulse/internal/types"
)

func fallbackPrompt(keyword, username string, own []types.Post) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Analyze the keyword %q on Threads, a text-first social network.\n\n", keyword)
	if len(own) == 0 {
		fmt.Fprintf(&sb, "The user @%s has not posted about this keyword yet.\n", username)
		sb.WriteString("Cover these sections in Markdown:\n")
		sb.WriteString("## Trend overview\n## Three post ideas for a first post\n")
		sb.WriteString("## Related keywords and hashtags (5-10)\n## Content strategy\n## Posting times\n")
		return sb.String()
	}

	fmt.Fprintf(&sb, "User: @%s\nTheir past posts about this keyword:\n", username)
	for i, p := range own[:min(len(own), maxFallbackPosts)] {
		fmt.Fprintf(&sb, "%d. %q (views %d, likes %d, replies %d, reposts %d, ER %.1f%%)\n",
			i+1, truncateRunes(p.Text, 100), p.Views, p.Likes, p.Replies, p.Reposts, p.EngagementRate)
	}
	sb.WriteString("\nCover these sections in Markdown:\n")
	sb.WriteString("## Trend overview\n## What works and what to improve in the posts above\n")
	sb.WriteString("## Three post ideas likely to earn high engagement\n")
	sb.WriteString("## Related keywords and hashtags (5-10)\n## Posting times\n")
	return sb.String()
}

func trendPrompt(keyword string, posts []types.SearchPost) string {
	var sb strings.Builder
	sb.WriteString("You are a social media trend analyst.\n")
	shown := posts[:min(len(posts), maxTrendPosts)]
	fmt.Fprintf(&sb, "Below are Threads search results for %q (showing %d of %d).\n\n", keyword, len(shown), len(posts))
	for i, p := range shown {
		author := p.Username
		if author == "" {
			author = "unknown"
		}
		when := ""
		if !p.Timestamp.IsZero() {
			when = p.Timestamp.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(&sb, "%d. @%s (%s)\n%s\n\n", i+1, author, when, truncateRunes(p.Text, 300))
	}
	sb.WriteString("Analyze briefly, in Markdown:\n")
	sb.WriteString("1. Overall trend around the keyword\n")
	sb.WriteString("2. Main topics (3-5)\n")
	sb.WriteString("3. Sentiment: positive, negative or neutral\n")
	sb.WriteString("4. Notable accounts that appear often\n")
	sb.WriteString("5. About three angles that would work for a post on this topic\n")
	return sb.String()
}
