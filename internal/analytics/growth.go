package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ibeckermayer/threadpulse/internal/lock"
	"github.com/ibeckermayer/threadpulse/internal/store"
	"github.com/ibeckermayer/threadpulse/internal/types"
)

const (
	maxSubScore = 25
	// neutralFollowerScore applies when followers exist but no baseline does
	neutralFollowerScore = 12
)

// GrowthInputs is everything a growth score is computed from
type GrowthInputs struct {
	AccountID   string
	Now         time.Time
	Location    *time.Location
	Snapshots   []types.FollowerSnapshot
	Posts       []types.Post
	Generations []types.GenerationEntry
}

// ScoreGrowth computes the four 0-25 sub-scores and their sum for the
// trailing week ending at in.Now.
func ScoreGrowth(in GrowthInputs) types.GrowthScore {
	loc := in.Location
	if loc == nil {
		loc = time.Local
	}
	weekAgo := in.Now.AddDate(0, 0, -7)
	twoWeeksAgo := in.Now.AddDate(0, 0, -14)

	// Followers: first vs last snapshot inside the week
	var baseline, latest int64
	found := false
	for _, s := range sortedSnapshots(in.Snapshots) {
		d, err := time.ParseInLocation(store.DateLayout, s.Date, loc)
		if err != nil || d.Before(weekAgo) {
			continue
		}
		if !found {
			baseline = s.Followers
			found = true
		}
		latest = s.Followers
	}
	var followerPct float64
	var followerScore int
	switch {
	case baseline > 0:
		followerPct = float64(latest-baseline) / float64(baseline) * 100
		followerScore = clamp(roundInt((followerPct+2)/7*maxSubScore), 0, maxSubScore)
	case latest > 0:
		followerScore = neutralFollowerScore
	}

	// Engagement trend: this week against the week before
	var thisWeek, prevWeek []types.Post
	for _, p := range in.Posts {
		if p.Timestamp.IsZero() || p.Timestamp.After(in.Now) {
			continue
		}
		switch {
		case !p.Timestamp.Before(weekAgo):
			thisWeek = append(thisWeek, p)
		case !p.Timestamp.Before(twoWeeksAgo):
			prevWeek = append(prevWeek, p)
		}
	}
	thisER := Summarize(thisWeek).EngagementRate
	prevER := rawRate(prevWeek)
	var erScore int
	switch {
	case prevER > 0:
		erScore = clamp(roundInt((thisER-prevER+2)/4*maxSubScore), 0, maxSubScore)
	case thisER > 0:
		erScore = clamp(roundInt(thisER/6*maxSubScore), 0, maxSubScore)
	}

	// Frequency: seven posts a week earns the full score
	freqScore := clamp(roundInt(float64(len(thisWeek))/7*maxSubScore), 0, maxSubScore)

	// Assistant usage: untagged entries predate accounts and count for everyone
	aiCount := 0
	for _, g := range in.Generations {
		if g.GeneratedAt.Before(weekAgo) || g.GeneratedAt.After(in.Now) {
			continue
		}
		if g.AccountID == "" || g.AccountID == in.AccountID {
			aiCount++
		}
	}
	aiScore := clamp(roundInt(float64(aiCount)/10*maxSubScore), 0, maxSubScore)

	return types.GrowthScore{
		Date:      in.Now.In(loc).Format(store.DateLayout),
		AccountID: in.AccountID,
		Total:     followerScore + erScore + freqScore + aiScore,
		Follower:  followerScore,
		ERTrend:   erScore,
		Frequency: freqScore,
		AIUsage:   aiScore,
		Details: types.GrowthDetails{
			FollowerGrowthPct: round(followerPct, 2),
			ThisWeekER:        thisER,
			PrevER:            round(prevER, 2),
			PostCount:         len(thisWeek),
			AICount:           aiCount,
		},
	}
}

func roundInt(x float64) int {
	return int(math.Floor(x + 0.5))
}

func sortedSnapshots(in []types.FollowerSnapshot) []types.FollowerSnapshot {
	out := append([]types.FollowerSnapshot(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// GrowthStore is the persistence the growth calculator needs
type GrowthStore interface {
	PostReader
	FollowerSnapshots(ctx context.Context, accountID string) ([]types.FollowerSnapshot, error)
	Generations(ctx context.Context) ([]types.GenerationEntry, error)
	GrowthScores(ctx context.Context, accountID string) ([]types.GrowthScore, error)
	UpsertGrowthScore(ctx context.Context, g types.GrowthScore) error
}

// GrowthResult pairs a score with the one it is compared against
type GrowthResult struct {
	HasData  bool               `json:"hasData"`
	Current  *types.GrowthScore `json:"current,omitempty"`
	Previous *types.GrowthScore `json:"previous,omitempty"`
	Change   int                `json:"change"`
}

// Growth computes and stores daily growth scores
type Growth struct {
	store  GrowthStore
	locker lock.Locker
	loc    *time.Location
	now    func() time.Time
}

// NewGrowth creates a growth calculator dating scores in loc
func NewGrowth(st GrowthStore, locker lock.Locker, loc *time.Location) *Growth {
	return &Growth{store: st, locker: locker, loc: loc, now: time.Now}
}

// Calculate scores the account for today, upserts the record and compares it
// with the most recent record dated at least a week ago.
func (g *Growth) Calculate(ctx context.Context, acct types.Account) (GrowthResult, error) {
	id := acct.AccountID
	snapshots, err := g.store.FollowerSnapshots(ctx, id)
	if err != nil {
		return GrowthResult{}, fmt.Errorf("failed to read followers: %w", err)
	}
	posts, err := g.store.Posts(ctx, id)
	if err != nil {
		return GrowthResult{}, fmt.Errorf("failed to read posts: %w", err)
	}
	generations, err := g.store.Generations(ctx)
	if err != nil {
		return GrowthResult{}, fmt.Errorf("failed to read generation log: %w", err)
	}

	now := g.now()
	score := ScoreGrowth(GrowthInputs{
		AccountID:   id,
		Now:         now,
		Location:    g.loc,
		Snapshots:   snapshots,
		Posts:       posts,
		Generations: generations,
	})

	release, err := g.locker.Lock(ctx, lock.AccountKey(id))
	if err != nil {
		return GrowthResult{}, err
	}
	defer release()

	history, err := g.store.GrowthScores(ctx, id)
	if err != nil {
		return GrowthResult{}, fmt.Errorf("failed to read growth scores: %w", err)
	}
	if err := g.store.UpsertGrowthScore(ctx, score); err != nil {
		return GrowthResult{}, fmt.Errorf("failed to store growth score: %w", err)
	}

	result := GrowthResult{HasData: true, Current: &score}
	cutoff := now.In(g.loc).AddDate(0, 0, -7).Format(store.DateLayout)
	for _, h := range history {
		if h.Date > cutoff {
			continue
		}
		if result.Previous == nil || h.Date > result.Previous.Date {
			prev := h
			result.Previous = &prev
		}
	}
	if result.Previous != nil {
		result.Change = score.Total - result.Previous.Total
	}
	return result, nil
}

// Latest returns the newest stored score and the one before it
func (g *Growth) Latest(ctx context.Context, acct types.Account) (GrowthResult, error) {
	history, err := g.store.GrowthScores(ctx, acct.AccountID)
	if err != nil {
		return GrowthResult{}, fmt.Errorf("failed to read growth scores: %w", err)
	}
	if len(history) == 0 {
		return GrowthResult{HasData: false}, nil
	}
	sort.SliceStable(history, func(i, j int) bool { return history[i].Date > history[j].Date })

	result := GrowthResult{HasData: true, Current: &history[0]}
	if len(history) > 1 {
		result.Previous = &history[1]
		result.Change = history[0].Total - history[1].Total
	}
	return result, nil
}
