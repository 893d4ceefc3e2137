package threads

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ibeckermayer/threadpulse/internal/types"
)

const searchFields = "id,text,media_type,permalink,timestamp,username,has_replies,is_quote_post,is_reply,topic_tag"

// MinSearchSince is the earliest since timestamp keyword search accepts
const MinSearchSince = 1688540400

// Search types and modes
const (
	SearchTop     = "TOP"
	SearchRecent  = "RECENT"
	SearchKeyword = "KEYWORD"
	SearchTag     = "TAG"
)

// SearchQuery are the parameters of one keyword search. Zero values are omitted.
type SearchQuery struct {
	Query          string
	SearchType     string
	SearchMode     string
	MediaType      string
	Limit          int
	Since          int64
	Until          int64
	AuthorUsername string
}

// SearchPage is one page of keyword search results
type SearchPage struct {
	Posts   []types.SearchPost
	HasMore bool
}

type apiSearchPost struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	MediaType   string `json:"media_type"`
	Permalink   string `json:"permalink"`
	Timestamp   string `json:"timestamp"`
	Username    string `json:"username"`
	HasReplies  bool   `json:"has_replies"`
	IsQuotePost bool   `json:"is_quote_post"`
	IsReply     bool   `json:"is_reply"`
	TopicTag    string `json:"topic_tag"`
}

type searchResponse struct {
	Data   []apiSearchPost `json:"data"`
	Paging struct {
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
	} `json:"paging"`
}

// KeywordSearch searches public posts by keyword or topic tag
func (c *Client) KeywordSearch(ctx context.Context, acct types.Account, q SearchQuery) (SearchPage, error) {
	if !acct.Authenticated() {
		return SearchPage{}, fmt.Errorf("account %s has no credentials", acct.AccountID)
	}

	params := url.Values{
		"q":            {q.Query},
		"search_type":  {q.SearchType},
		"search_mode":  {q.SearchMode},
		"fields":       {searchFields},
		"limit":        {strconv.Itoa(q.Limit)},
		"access_token": {acct.AccessToken},
	}
	if q.MediaType != "" {
		params.Set("media_type", q.MediaType)
	}
	if q.Since >= MinSearchSince {
		params.Set("since", strconv.FormatInt(q.Since, 10))
	}
	if q.Until > 0 {
		params.Set("until", strconv.FormatInt(q.Until, 10))
	}
	if author := strings.TrimPrefix(q.AuthorUsername, "@"); author != "" {
		params.Set("author_username", author)
	}

	body, err := c.get(ctx, "keyword_search", c.endpoint("keyword_search", params))
	if err != nil {
		return SearchPage{}, fmt.Errorf("keyword search failed: %w", err)
	}
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return SearchPage{}, fmt.Errorf("failed to parse search results: %w", err)
	}

	page := SearchPage{
		Posts:   make([]types.SearchPost, 0, len(resp.Data)),
		HasMore: resp.Paging.Cursors.After != "",
	}
	for _, p := range resp.Data {
		mediaType := p.MediaType
		if mediaType == "" {
			mediaType = types.MediaTypeText
		}
		page.Posts = append(page.Posts, types.SearchPost{
			PostID:      p.ID,
			Username:    p.Username,
			Text:        p.Text,
			MediaType:   mediaType,
			Permalink:   p.Permalink,
			Timestamp:   ParseTimestamp(p.Timestamp),
			HasReplies:  p.HasReplies,
			IsQuotePost: p.IsQuotePost,
			IsReply:     p.IsReply,
			TopicTag:    p.TopicTag,
		})
	}
	c.log.WithField("account", acct.AccountID).Debugf("keyword search %q returned %d posts", q.Query, len(page.Posts))
	return page, nil
}
