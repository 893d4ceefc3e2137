package threads

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/ibeckermayer/threadpulse/internal/types"
)

const postFields = "id,media_type,text,timestamp,permalink,is_quote_post"

// timestampLayout is the offset form the Graph API uses, e.g. 2025-03-01T12:00:00+0000
const timestampLayout = "2006-01-02T15:04:05-0700"

// Post is a post as listed by the API, before insights are attached
type Post struct {
	ID          string
	MediaType   string
	Text        string
	Timestamp   time.Time
	Permalink   string
	IsQuotePost bool
}

type apiPost struct {
	ID          string `json:"id"`
	MediaType   string `json:"media_type"`
	Text        string `json:"text"`
	Timestamp   string `json:"timestamp"`
	Permalink   string `json:"permalink"`
	IsQuotePost bool   `json:"is_quote_post"`
}

type postsPage struct {
	Data   []apiPost `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// ListPosts walks the account's post list, following next cursors for at
// most PageLimit pages. Any failing page aborts the walk and nothing is returned.
func (c *Client) ListPosts(ctx context.Context, acct types.Account) ([]Post, error) {
	if !acct.Authenticated() {
		return nil, fmt.Errorf("account %s has no credentials", acct.AccountID)
	}

	pageSize := c.cfg.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	next := c.endpoint(acct.UserID+"/threads", url.Values{
		"fields":       {postFields},
		"limit":        {strconv.Itoa(pageSize)},
		"access_token": {acct.AccessToken},
	})

	var all []Post
	for page := 1; page <= c.cfg.PageLimit && next != ""; page++ {
		body, err := c.get(ctx, "posts", next)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch posts page %d: %w", page, err)
		}

		var p postsPage
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("failed to parse posts page %d: %w", page, err)
		}
		for _, ap := range p.Data {
			all = append(all, ap.toPost())
		}

		next = p.Paging.Next
		if next != "" && page < c.cfg.PageLimit {
			if err := c.sleep(ctx, c.cfg.PageDelay()); err != nil {
				return nil, err
			}
		}
	}

	c.log.WithField("account", acct.AccountID).Debugf("listed %d posts", len(all))
	return all, nil
}

func (ap apiPost) toPost() Post {
	return Post{
		ID:          ap.ID,
		MediaType:   ap.MediaType,
		Text:        ap.Text,
		Timestamp:   ParseTimestamp(ap.Timestamp),
		Permalink:   ap.Permalink,
		IsQuotePost: ap.IsQuotePost,
	}
}

// ParseTimestamp accepts the API's offset layout and RFC 3339.
// Unparseable input yields the zero time.
func ParseTimestamp(s string) time.Time {
	if t, err := time.Parse(timestampLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

// Profile is the authenticated user's profile
type Profile struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	ProfilePicURL string `json:"threads_profile_picture_url"`
}

// Me returns the profile that owns accessToken
func (c *Client) Me(ctx context.Context, accessToken string) (Profile, error) {
	body, err := c.get(ctx, "profile", c.endpoint("me", url.Values{
		"fields":       {"id,username,threads_profile_picture_url"},
		"access_token": {accessToken},
	}))
	if err != nil {
		return Profile{}, fmt.Errorf("failed to fetch profile: %w", err)
	}
	var p Profile
	if err := json.Unmarshal(body, &p); err != nil {
		return Profile{}, fmt.Errorf("failed to parse profile: %w", err)
	}
	return p, nil
}
