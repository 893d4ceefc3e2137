package retention

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ibeckermayer/threadpulse/internal/analytics"
	"github.com/ibeckermayer/threadpulse/internal/types"
)

// ErrGoalNotFound is returned when deleting an unknown goal
var ErrGoalNotFound = fmt.Errorf("goal %w", types.ErrNotFound)

const (
	postCountWindowDays = 30
	erWindowDays        = 7
)

// GoalStore is the persistence goal tracking needs
type GoalStore interface {
	analytics.PostReader
	Goals(ctx context.Context, accountID string) ([]types.Goal, error)
	SaveGoal(ctx context.Context, g types.Goal) error
	DeleteGoal(ctx context.Context, accountID, id string) error
	FollowerSnapshots(ctx context.Context, accountID string) ([]types.FollowerSnapshot, error)
}

// GoalRequest creates a goal; an empty Label gets a default for the type
type GoalRequest struct {
	Type   string  `json:"type"`
	Label  string  `json:"label"`
	Target float64 `json:"target"`
}

// GoalProgress is an open goal with its live progress
type GoalProgress struct {
	types.Goal
	Percentage   int  `json:"percentage"`
	JustAchieved bool `json:"justAchieved"`
}

// Goals tracks user-defined targets
type Goals struct {
	store GoalStore
	loc   *time.Location
	now   func() time.Time
}

// NewGoals creates a goal tracker dating goals in loc
func NewGoals(st GoalStore, loc *time.Location) *Goals {
	return &Goals{store: st, loc: loc, now: time.Now}
}

// Set creates a goal for the account
func (g *Goals) Set(ctx context.Context, acct types.Account, req GoalRequest) (types.Goal, error) {
	goalType := req.Type
	if goalType == "" {
		goalType = types.GoalFollowerIncrease
	}
	label := strings.TrimSpace(req.Label)
	switch goalType {
	case types.GoalFollowerIncrease:
		if label == "" {
			label = fmt.Sprintf("This month: +%g followers", req.Target)
		}
	case types.GoalPostCount:
		if label == "" {
			label = fmt.Sprintf("This month: %g posts", req.Target)
		}
	case types.GoalERTarget:
		if label == "" {
			label = fmt.Sprintf("Target ER: %g%%", req.Target)
		}
	default:
		return types.Goal{}, fmt.Errorf("%w: unknown goal type %q", types.ErrInvalidInput, req.Type)
	}
	if req.Target <= 0 {
		return types.Goal{}, fmt.Errorf("%w: goal target must be positive", types.ErrInvalidInput)
	}

	goal := types.Goal{
		ID:        "goal_" + uuid.NewString()[:8],
		AccountID: acct.AccountID,
		Type:      goalType,
		Label:     label,
		Target:    req.Target,
		CreatedAt: g.now(),
	}
	if err := g.store.SaveGoal(ctx, goal); err != nil {
		return types.Goal{}, fmt.Errorf("failed to store goal: %w", err)
	}
	return goal, nil
}

// List returns the open goals with refreshed progress. A goal reaching its
// target is reported once with JustAchieved and then stored as achieved.
func (g *Goals) List(ctx context.Context, acct types.Account) ([]GoalProgress, error) {
	goals, err := g.store.Goals(ctx, acct.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to read goals: %w", err)
	}

	posts, err := g.store.Posts(ctx, acct.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to read posts: %w", err)
	}
	snapshots, err := g.store.FollowerSnapshots(ctx, acct.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to read followers: %w", err)
	}

	now := g.now()
	out := make([]GoalProgress, 0, len(goals))
	for _, goal := range goals {
		if goal.Achieved {
			continue
		}
		switch goal.Type {
		case types.GoalFollowerIncrease:
			goal.Current = float64(followerGain(snapshots, localDate(goal.CreatedAt, g.loc)))
		case types.GoalPostCount:
			goal.Current = float64(len(analytics.Since(posts, now.AddDate(0, 0, -postCountWindowDays))))
		case types.GoalERTarget:
			rate := analytics.Summarize(analytics.Since(posts, now.AddDate(0, 0, -erWindowDays))).EngagementRate
			goal.Current = math.Floor(rate*10+0.5) / 10
		}

		p := GoalProgress{Goal: goal, Percentage: percentage(goal.Current, goal.Target)}
		if p.Percentage >= 100 {
			p.Achieved = true
			p.AchievedAt = now
			p.JustAchieved = true
		}
		if err := g.store.SaveGoal(ctx, p.Goal); err != nil {
			return nil, fmt.Errorf("failed to store goal progress: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

// Delete removes a goal of the account
func (g *Goals) Delete(ctx context.Context, acct types.Account, id string) error {
	goals, err := g.store.Goals(ctx, acct.AccountID)
	if err != nil {
		return fmt.Errorf("failed to read goals: %w", err)
	}
	for _, goal := range goals {
		if goal.ID == id {
			return g.store.DeleteGoal(ctx, acct.AccountID, id)
		}
	}
	return ErrGoalNotFound
}

// followerGain is the change between the first and last snapshot on or after since
func followerGain(snapshots []types.FollowerSnapshot, since string) int64 {
	sorted := append([]types.FollowerSnapshot(nil), snapshots...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	var start, latest int64
	found := false
	for _, s := range sorted {
		if s.Date < since {
			continue
		}
		if !found {
			start, found = s.Followers, true
		}
		latest = s.Followers
	}
	return latest - start
}

func percentage(current, target float64) int {
	if target <= 0 || current <= 0 {
		return 0
	}
	return min(100, int(math.Floor(current/target*100+0.5)))
}
