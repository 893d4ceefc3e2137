package assistant

import (
	"fmt"
	"strings"
)

const draftRules = "Rules:\n" +
	"- Each post is at most 500 characters\n" +
	"- Write naturally, keep emoji to a minimum\n"

func normalPrompt(theme string, count int) string {
	var sb strings.Builder
	sb.WriteString("You are a post writer for Threads, a text-first social network.\n")
	fmt.Fprintf(&sb, "Write %d alternative posts about the theme %q.\n\n", count, theme)
	sb.WriteString(draftRules)
	sb.WriteString("- Favor a voice that invites likes and replies\n\n")
	sb.WriteString("Respond with a JSON array in this exact format:\n")
	sb.WriteString("```json\n")
	sb.WriteString(`[{"text": "post text", "reason": "what this post aims for"}]`)
	sb.WriteString("\n```\n")
	return sb.String()
}

func threadPrompt(theme string, count int) string {
	var sb strings.Builder
	sb.WriteString("You are a post writer for Threads, a text-first social network.\n")
	fmt.Fprintf(&sb, "Write %d alternative threads (a parent post plus 2-3 replies) about the theme %q.\n\n", count, theme)
	sb.WriteString(draftRules)
	sb.WriteString("- The parent post hooks the reader, the replies expand on it\n\n")
	sb.WriteString("Respond with a JSON array in this exact format:\n")
	sb.WriteString("```json\n")
	sb.WriteString(`[{"text": "parent post", "replies": ["reply 1", "reply 2"], "reason": "why this structure"}]`)
	sb.WriteString("\n```\n")
	return sb.String()
}

func analysisPrompt(theme string, count int, d analysisData) string {
	var sb strings.Builder
	sb.WriteString("You are a posting consultant for Threads.\n")
	sb.WriteString("Using the account analysis below, write posts likely to earn high engagement.\n\n")

	s := d.summary
	fmt.Fprintf(&sb, "## Account summary (last %d days)\n", analysisDays)
	fmt.Fprintf(&sb, "- Posts: %d\n", s.PostCount)
	fmt.Fprintf(&sb, "- Engagement rate: %.2f%%\n", s.EngagementRate)
	fmt.Fprintf(&sb, "- Views: %d\n", s.Totals.Views)
	fmt.Fprintf(&sb, "- Likes: %d\n", s.Totals.Likes)
	fmt.Fprintf(&sb, "- Replies: %d\n", s.Totals.Replies)
	fmt.Fprintf(&sb, "- Reposts: %d\n", s.Totals.Reposts)
	fmt.Fprintf(&sb, "- Shares: %d\n\n", s.Totals.Shares)

	if len(d.topPosts) > 0 {
		fmt.Fprintf(&sb, "## Top %d posts by engagement\n", len(d.topPosts))
		for i, p := range d.topPosts {
			fmt.Fprintf(&sb, "%d. %q\n", i+1, truncateRunes(p.Text, 150))
			fmt.Fprintf(&sb, "   ER: %.1f%% | views %d, likes %d, replies %d, reposts %d\n",
				p.EngagementRate, p.Views, p.Likes, p.Replies, p.Reposts)
			posted := "unknown"
			if !p.Timestamp.IsZero() {
				posted = p.Timestamp.Format("Mon 15:04 MST")
			}
			fmt.Fprintf(&sb, "   Media: %s | Posted: %s\n\n", p.MediaType, posted)
		}
	}

	if len(d.slots) > 0 {
		sb.WriteString("## Golden hours (top time slots by mean engagement rate)\n")
		for _, slot := range d.slots {
			fmt.Fprintf(&sb, "- %s %02d:00: %.1f%%\n", slot.Weekday, slot.Hour, slot.AvgER)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Request\n")
	fmt.Fprintf(&sb, "Theme: %q\n\n", theme)
	fmt.Fprintf(&sb, "Write %d posts that:\n", count)
	sb.WriteString("1. Borrow the voice, structure and tone of the top posts\n")
	sb.WriteString("2. Suit being published in the golden hours\n")
	sb.WriteString("3. Explain which analysis data each post is based on\n")
	sb.WriteString("4. Stay within 500 characters\n\n")
	sb.WriteString("Respond with a JSON array in this exact format:\n")
	sb.WriteString("```json\n")
	sb.WriteString(`[{"text": "post text", "reason": "basis in the data", "expectedER": "e.g. 5-7%", "bestTime": "e.g. Wednesday 20:00", "mediaAdvice": "image or media suggestion"}]`)
	sb.WriteString("\n```\n")
	return sb.String()
}

func refinePrompt(text, style, styleDesc, instruction string) string {
	var sb strings.Builder
	sb.WriteString("You are a writing expert for Threads, a text-first social network.\n\n")
	sb.WriteString("## Original post\n")
	sb.WriteString(text)
	sb.WriteString("\n\n## Edit\n")
	fmt.Fprintf(&sb, "Style: %s (%s)\n", style, styleDesc)
	if instruction != "" {
		fmt.Fprintf(&sb, "Additional instruction: %s\n", instruction)
	}
	sb.WriteString("\nRules:\n")
	sb.WriteString("- Produce 3 different variations\n")
	sb.WriteString("- Each variation is at most 500 characters\n")
	sb.WriteString("- Keep the point of the original post\n\n")
	sb.WriteString("Respond with a JSON array in this exact format:\n")
	sb.WriteString("```json\n")
	sb.WriteString(`[{"text": "edited text", "reason": "what changed and why"}]`)
	sb.WriteString("\n```\n")
	return sb.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
