// Package competitors tracks other accounts and hand-recorded posts of theirs,
// and compares them against the user's own performance.
package competitors

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ibeckermayer/threadpulse/internal/analytics"
	"github.com/ibeckermayer/threadpulse/internal/assistant/providers"
	"github.com/ibeckermayer/threadpulse/internal/store"
	"github.com/ibeckermayer/threadpulse/internal/types"
)

var (
	// ErrCompetitorNotFound is returned for an unknown competitor id
	ErrCompetitorNotFound = fmt.Errorf("competitor %w", types.ErrNotFound)
	// ErrWatchPostNotFound is returned for an unknown recorded post id
	ErrWatchPostNotFound = fmt.Errorf("watch post %w", types.ErrNotFound)
)

// Categories
const (
	CategoryPeer = "peer"
	CategoryAuto = "auto"
)

// BuzzTag marks recorded posts that went viral
const BuzzTag = "buzz"

const (
	maxStylePosts   = 30
	maxComparePosts = 20
	maxBuzzPosts    = 15
	ownTopPosts     = 5
	ownWindowDays   = 30
)

// Store is the persistence competitor tracking needs
type Store interface {
	analytics.PostReader
	Competitors(ctx context.Context, accountID string) ([]types.Competitor, error)
	SaveCompetitor(ctx context.Context, c types.Competitor) error
	DeleteCompetitor(ctx context.Context, accountID, id string) (int, error)
	WatchPosts(ctx context.Context, accountID string) ([]types.WatchPost, error)
	AppendWatchPost(ctx context.Context, p types.WatchPost) error
	DeleteWatchPost(ctx context.Context, accountID, id string) (int, error)
}

// Completer runs free-form prompts; the analyses need one
type Completer interface {
	Complete(ctx context.Context, prompt string, opts providers.Options) (string, error)
}

// AddRequest registers a competitor
type AddRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Category    string `json:"category"`
	Followers   int64  `json:"followersCount"`
	Memo        string `json:"memo"`
}

// UpdateRequest changes a competitor; nil fields are left alone
type UpdateRequest struct {
	DisplayName *string `json:"displayName"`
	Category    *string `json:"category"`
	Followers   *int64  `json:"followersCount"`
	Memo        *string `json:"memo"`
}

// Listed is a competitor with the number of posts recorded for it
type Listed struct {
	types.Competitor
	WatchCount int `json:"watchCount"`
}

// WatchRequest records a competitor post. An unknown competitor is registered
// on the fly.
type WatchRequest struct {
	CompetitorUsername string   `json:"competitorUsername"`
	PostURL            string   `json:"postUrl"`
	PostText           string   `json:"postText"`
	MediaType          string   `json:"mediaType"`
	Likes              int64    `json:"likes"`
	Replies            int64    `json:"replies"`
	Reposts            int64    `json:"reposts"`
	PostDate           string   `json:"postDate"`
	Tags               []string `json:"tags"`
	Memo               string   `json:"memo"`
}

// Analysis is a generated report over recorded posts
type Analysis struct {
	Target      string `json:"target"`
	PostCount   int    `json:"postCount"`
	MyPostCount int    `json:"myPostCount,omitempty"`
	Analysis    string `json:"analysis"`
}

// Watch manages competitors of each account
type Watch struct {
	store Store
	gen   Completer
	loc   *time.Location
	now   func() time.Time
}

// New creates a competitor watch; gen may be nil when the analyses are unused
func New(st Store, gen Completer, loc *time.Location) *Watch {
	return &Watch{store: st, gen: gen, loc: loc, now: time.Now}
}

// Add registers a competitor. Usernames are unique per account, ignoring case
// and a leading @.
func (w *Watch) Add(ctx context.Context, acct types.Account, req AddRequest) (types.Competitor, error) {
	username := cleanUsername(req.Username)
	if username == "" {
		return types.Competitor{}, fmt.Errorf("%w: username is required", types.ErrInvalidInput)
	}
	existing, err := w.store.Competitors(ctx, acct.AccountID)
	if err != nil {
		return types.Competitor{}, fmt.Errorf("failed to read competitors: %w", err)
	}
	if _, ok := findByUsername(existing, username); ok {
		return types.Competitor{}, fmt.Errorf("%w: @%s is already registered", types.ErrInvalidInput, username)
	}

	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = CategoryPeer
	}
	now := w.now()
	c := types.Competitor{
		ID:               "comp_" + uuid.NewString()[:8],
		AccountID:        acct.AccountID,
		Username:         username,
		DisplayName:      strings.TrimSpace(req.DisplayName),
		Category:         category,
		Followers:        max(req.Followers, 0),
		FollowersUpdated: now,
		Memo:             strings.TrimSpace(req.Memo),
		CreatedAt:        now,
	}
	if err := w.store.SaveCompetitor(ctx, c); err != nil {
		return types.Competitor{}, fmt.Errorf("failed to store competitor: %w", err)
	}
	return c, nil
}

// List returns the account's competitors with their recorded post counts
func (w *Watch) List(ctx context.Context, acct types.Account) ([]Listed, error) {
	comps, err := w.store.Competitors(ctx, acct.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to read competitors: %w", err)
	}
	posts, err := w.store.WatchPosts(ctx, acct.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to read watch posts: %w", err)
	}
	counts := map[string]int{}
	for _, p := range posts {
		counts[strings.ToLower(p.CompetitorUsername)]++
	}
	out := make([]Listed, 0, len(comps))
	for _, c := range comps {
		out = append(out, Listed{Competitor: c, WatchCount: counts[strings.ToLower(c.Username)]})
	}
	return out, nil
}

// Update changes a competitor. Setting followers also stamps FollowersUpdated.
func (w *Watch) Update(ctx context.Context, acct types.Account, id string, req UpdateRequest) (types.Competitor, error) {
	comps, err := w.store.Competitors(ctx, acct.AccountID)
	if err != nil {
		return types.Competitor{}, fmt.Errorf("failed to read competitors: %w", err)
	}
	for _, c := range comps {
		if c.ID != id {
			continue
		}
		if req.Followers != nil {
			c.Followers = max(*req.Followers, 0)
			c.FollowersUpdated = w.now()
		}
		if req.Category != nil {
			c.Category = strings.TrimSpace(*req.Category)
		}
		if req.Memo != nil {
			c.Memo = strings.TrimSpace(*req.Memo)
		}
		if req.DisplayName != nil {
			c.DisplayName = strings.TrimSpace(*req.DisplayName)
		}
		if err := w.store.SaveCompetitor(ctx, c); err != nil {
			return types.Competitor{}, fmt.Errorf("failed to store competitor: %w", err)
		}
		return c, nil
	}
	return types.Competitor{}, ErrCompetitorNotFound
}

// Delete removes a competitor; its recorded posts are kept
func (w *Watch) Delete(ctx context.Context, acct types.Account, id string) error {
	n, err := w.store.DeleteCompetitor(ctx, acct.AccountID, id)
	if err != nil {
		return fmt.Errorf("failed to delete competitor: %w", err)
	}
	if n == 0 {
		return ErrCompetitorNotFound
	}
	return nil
}

// SavePost records a competitor post
func (w *Watch) SavePost(ctx context.Context, acct types.Account, req WatchRequest) (types.WatchPost, error) {
	username := cleanUsername(req.CompetitorUsername)
	if username == "" {
		return types.WatchPost{}, fmt.Errorf("%w: competitor username is required", types.ErrInvalidInput)
	}
	text := strings.TrimSpace(req.PostText)
	if text == "" {
		return types.WatchPost{}, fmt.Errorf("%w: post text is required", types.ErrInvalidInput)
	}

	now := w.now()
	mediaType := strings.ToUpper(strings.TrimSpace(req.MediaType))
	if mediaType == "" {
		mediaType = types.MediaTypeText
	}
	postDate := strings.TrimSpace(req.PostDate)
	if postDate == "" {
		postDate = now.In(w.loc).Format(store.DateLayout)
	}
	p := types.WatchPost{
		ID:                 "watch_" + uuid.NewString()[:8],
		AccountID:          acct.AccountID,
		CompetitorUsername: username,
		PostURL:            strings.TrimSpace(req.PostURL),
		PostText:           text,
		MediaType:          mediaType,
		Likes:              max(req.Likes, 0),
		Replies:            max(req.Replies, 0),
		Reposts:            max(req.Reposts, 0),
		PostDate:           postDate,
		Tags:               cleanTags(req.Tags),
		Memo:               strings.TrimSpace(req.Memo),
		CreatedAt:          now,
	}
	if err := w.store.AppendWatchPost(ctx, p); err != nil {
		return types.WatchPost{}, fmt.Errorf("failed to store watch post: %w", err)
	}

	comps, err := w.store.Competitors(ctx, acct.AccountID)
	if err != nil {
		return types.WatchPost{}, fmt.Errorf("failed to read competitors: %w", err)
	}
	if _, ok := findByUsername(comps, username); !ok {
		if _, err := w.Add(ctx, acct, AddRequest{Username: username, Category: CategoryAuto}); err != nil {
			return types.WatchPost{}, err
		}
	}
	return p, nil
}

// Posts returns recorded posts newest first, optionally narrowed to one
// competitor and to posts with a tag containing tag
func (w *Watch) Posts(ctx context.Context, acct types.Account, username, tag string) ([]types.WatchPost, error) {
	all, err := w.store.WatchPosts(ctx, acct.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to read watch posts: %w", err)
	}
	username = strings.ToLower(cleanUsername(username))
	tag = strings.ToLower(strings.TrimSpace(tag))

	out := []types.WatchPost{}
	for _, p := range all {
		if username != "" && strings.ToLower(p.CompetitorUsername) != username {
			continue
		}
		if tag != "" && !hasTag(p.Tags, tag) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// DeletePost removes a recorded post
func (w *Watch) DeletePost(ctx context.Context, acct types.Account, id string) error {
	n, err := w.store.DeleteWatchPost(ctx, acct.AccountID, id)
	if err != nil {
		return fmt.Errorf("failed to delete watch post: %w", err)
	}
	if n == 0 {
		return ErrWatchPostNotFound
	}
	return nil
}

// AnalyzeStyle describes how one competitor writes from its recorded posts
func (w *Watch) AnalyzeStyle(ctx context.Context, acct types.Account, username string) (Analysis, error) {
	username = cleanUsername(username)
	if username == "" {
		return Analysis{}, fmt.Errorf("%w: competitor username is required", types.ErrInvalidInput)
	}
	posts, err := w.Posts(ctx, acct, username, "")
	if err != nil {
		return Analysis{}, err
	}
	if len(posts) == 0 {
		return Analysis{}, fmt.Errorf("%w: no recorded posts for @%s", types.ErrInvalidInput, username)
	}
	text, err := w.complete(ctx, stylePrompt(username, posts), 0.6)
	if err != nil {
		return Analysis{}, err
	}
	return Analysis{Target: "@" + username, PostCount: len(posts), Analysis: text}, nil
}

// AnalyzeVsSelf compares the account's last 30 days against recorded posts of
// one competitor, or of every competitor when username is empty
func (w *Watch) AnalyzeVsSelf(ctx context.Context, acct types.Account, username string) (Analysis, error) {
	username = cleanUsername(username)
	theirs, err := w.Posts(ctx, acct, username, "")
	if err != nil {
		return Analysis{}, err
	}
	if len(theirs) == 0 {
		return Analysis{}, fmt.Errorf("%w: no recorded competitor posts", types.ErrInvalidInput)
	}

	own, err := w.store.Posts(ctx, acct.AccountID)
	if err != nil {
		return Analysis{}, fmt.Errorf("failed to read posts: %w", err)
	}
	recent := analytics.Since(own, w.now().AddDate(0, 0, -ownWindowDays))
	if len(recent) == 0 {
		return Analysis{}, fmt.Errorf("%w: no recent posts of your own; refresh first", types.ErrInvalidInput)
	}
	top := append([]types.Post(nil), recent...)
	analytics.SortByRate(top)
	top = top[:min(len(top), ownTopPosts)]

	target := "all competitors"
	if username != "" {
		target = "@" + username
	}
	text, err := w.complete(ctx, vsSelfPrompt(target, analytics.Summarize(recent), top, theirs), 0.7)
	if err != nil {
		return Analysis{}, err
	}
	return Analysis{Target: target, PostCount: len(theirs), MyPostCount: len(recent), Analysis: text}, nil
}

// AnalyzeBuzz finds the patterns behind viral posts: those tagged buzz, or
// the most liked recorded posts when none are tagged
func (w *Watch) AnalyzeBuzz(ctx context.Context, acct types.Account) (Analysis, error) {
	posts, err := w.Posts(ctx, acct, "", BuzzTag)
	if err != nil {
		return Analysis{}, err
	}
	if len(posts) == 0 {
		all, err := w.Posts(ctx, acct, "", "")
		if err != nil {
			return Analysis{}, err
		}
		if len(all) == 0 {
			return Analysis{}, fmt.Errorf("%w: no recorded competitor posts", types.ErrInvalidInput)
		}
		sort.SliceStable(all, func(i, j int) bool { return all[i].Likes > all[j].Likes })
		posts = all[:min(len(all), maxBuzzPosts)]
	}
	text, err := w.complete(ctx, buzzPrompt(posts), 0.7)
	if err != nil {
		return Analysis{}, err
	}
	return Analysis{Target: "buzz", PostCount: len(posts), Analysis: text}, nil
}

func (w *Watch) complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	if w.gen == nil {
		return "", fmt.Errorf("%w: competitor analysis needs text generation", types.ErrInvalidInput)
	}
	text, err := w.gen.Complete(ctx, prompt, providers.Options{Temperature: temperature, MaxTokens: 8192})
	if err != nil {
		return "", fmt.Errorf("failed to generate analysis: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func cleanUsername(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "@")
}

func findByUsername(comps []types.Competitor, username string) (types.Competitor, bool) {
	for _, c := range comps {
		if strings.EqualFold(c.Username, username) {
			return c, true
		}
	}
	return types.Competitor{}, false
}

func cleanTags(tags []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range tags {
		t = strings.TrimPrefix(strings.TrimSpace(t), "#")
		if t == "" || seen[strings.ToLower(t)] || strings.Contains(t, ",") {
			continue
		}
		seen[strings.ToLower(t)] = true
		out = append(out, t)
	}
	return out
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if strings.Contains(strings.ToLower(t), want) {
			return true
		}
	}
	return false
}
