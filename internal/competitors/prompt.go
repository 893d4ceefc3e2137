package competitors

import (
	"fmt"
	"strings"

	"github.com/ibeckermayer/threadpulse/internal/analytics"
	"github.com/ibeckermayer/threadpulse/internal/types"
)

func stylePrompt(username string, posts []types.WatchPost) string {
	var sb strings.Builder
	sb.WriteString("You are a social media marketing analyst.\n")
	fmt.Fprintf(&sb, "Analyze the style of @%s on Threads from the %d recorded posts below.\n\n", username, len(posts))
	for i, p := range posts[:min(len(posts), maxStylePosts)] {
		fmt.Fprintf(&sb, "%d. [%s] likes=%d replies=%d reposts=%d | %s\n",
			i+1, p.MediaType, p.Likes, p.Replies, p.Reposts, truncateRunes(p.PostText, 150))
	}
	sb.WriteString("\nCover, in Markdown:\n")
	sb.WriteString("1. Writing patterns: sentence length, tone, emoji, line breaks\n")
	sb.WriteString("2. Content strategy: main themes and post categories\n")
	sb.WriteString("3. Engagement: traits of posts that do well and badly\n")
	sb.WriteString("4. Posting pattern, as far as the data shows\n")
	sb.WriteString("5. What to adopt from this account\n")
	sb.WriteString("6. Weak spots to differentiate against\n")
	return sb.String()
}

func vsSelfPrompt(target string, mine analytics.Summary, top []types.Post, theirs []types.WatchPost) string {
	var sb strings.Builder
	sb.WriteString("You are a social media growth consultant.\n")
	sb.WriteString("Compare the user with their competitors and write concrete suggestions.\n\n")

	fmt.Fprintf(&sb, "## The user (last %d days)\n", ownWindowDays)
	fmt.Fprintf(&sb, "- Posts: %d\n", mine.PostCount)
	fmt.Fprintf(&sb, "- Engagement rate: %.2f%%\n", mine.EngagementRate)
	fmt.Fprintf(&sb, "- Views: %d\n", mine.Totals.Views)
	fmt.Fprintf(&sb, "- Likes: %d\n\n", mine.Totals.Likes)

	fmt.Fprintf(&sb, "## The user's top %d posts\n", len(top))
	for i, p := range top {
		fmt.Fprintf(&sb, "%d. ER=%.2f%% | %s\n", i+1, p.EngagementRate, truncateRunes(p.Text, 100))
	}

	fmt.Fprintf(&sb, "\n## Recorded posts of %s (%d)\n", target, len(theirs))
	for i, p := range theirs[:min(len(theirs), maxComparePosts)] {
		fmt.Fprintf(&sb, "%d. [@%s] likes=%d replies=%d | %s\n",
			i+1, p.CompetitorUsername, p.Likes, p.Replies, truncateRunes(p.PostText, 120))
	}

	sb.WriteString("\nAnswer in Markdown:\n")
	sb.WriteString("1. Numbers: posting frequency and response gaps\n")
	sb.WriteString("2. Content: differences in voice, themes and structure\n")
	sb.WriteString("3. Competitor strengths worth adopting\n")
	sb.WriteString("4. The user's own strengths to keep\n")
	sb.WriteString("5. Five actions to start tomorrow\n")
	sb.WriteString("6. A one-week plan, day by day\n")
	return sb.String()
}

func buzzPrompt(posts []types.WatchPost) string {
	var sb strings.Builder
	sb.WriteString("You are an expert in viral content.\n")
	fmt.Fprintf(&sb, "Analyze the patterns of these %d high-performing Threads posts.\n\n", len(posts))
	for i, p := range posts {
		fmt.Fprintf(&sb, "%d. [@%s] likes=%d replies=%d reposts=%d\n   %s\n\n",
			i+1, p.CompetitorUsername, p.Likes, p.Replies, p.Reposts, truncateRunes(p.PostText, 200))
	}
	sb.WriteString("Answer in Markdown:\n")
	sb.WriteString("1. Shared patterns in structure, voice, length and tone\n")
	sb.WriteString("2. How the opening lines hook the reader\n")
	sb.WriteString("3. Like, reply and repost ratios\n")
	sb.WriteString("4. Three post templates built on these patterns\n")
	sb.WriteString("5. Timing, as far as the dates show\n")
	return sb.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
