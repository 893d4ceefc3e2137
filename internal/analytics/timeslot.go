package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ibeckermayer/threadpulse/internal/lock"
	"github.com/ibeckermayer/threadpulse/internal/types"
)

// Weekdays names the matrix rows, indexed by time.Weekday
var Weekdays = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// PostReader reads an account's stored posts
type PostReader interface {
	Posts(ctx context.Context, accountID string) ([]types.Post, error)
}

// TimeSlotStore reads and replaces the stored matrix
type TimeSlotStore interface {
	TimeSlots(ctx context.Context, accountID string) ([]types.TimeSlotRow, error)
	ReplaceTimeSlots(ctx context.Context, accountID string, rows []types.TimeSlotRow) error
}

// Slot is one weekday and hour cell of the matrix
type Slot struct {
	Weekday string  `json:"weekday"`
	Hour    int     `json:"hour"`
	AvgER   float64 `json:"avgER"`
}

// TimeSlotResult is a dense weekday x hour matrix of mean engagement rates
type TimeSlotResult struct {
	HasData   bool                `json:"hasData"`
	PostCount int                 `json:"postCount,omitempty"`
	Rows      []types.TimeSlotRow `json:"rows,omitempty"`
	Best      []Slot              `json:"best,omitempty"`
}

// Matrix holds mean engagement rate per weekday and local hour
type Matrix [7][24]float64

// BuildMatrix averages post engagement rates by weekday and hour in loc.
// Posts without a timestamp are skipped; empty cells are 0.
func BuildMatrix(posts []types.Post, loc *time.Location) (Matrix, int) {
	var sums Matrix
	var counts [7][24]int
	n := 0
	for _, p := range posts {
		if p.Timestamp.IsZero() {
			continue
		}
		t := p.Timestamp.In(loc)
		sums[t.Weekday()][t.Hour()] += p.EngagementRate
		counts[t.Weekday()][t.Hour()]++
		n++
	}

	var out Matrix
	for d := range out {
		for h := range out[d] {
			if counts[d][h] > 0 {
				out[d][h] = round(sums[d][h]/float64(counts[d][h]), 2)
			}
		}
	}
	return out, n
}

// Rows converts the matrix to one stored row per weekday
func (m Matrix) Rows(accountID string) []types.TimeSlotRow {
	rows := make([]types.TimeSlotRow, len(Weekdays))
	for d, name := range Weekdays {
		rows[d] = types.TimeSlotRow{AccountID: accountID, Weekday: name, Hours: m[d]}
	}
	return rows
}

// TopSlots returns the n highest non-empty cells, best first
func TopSlots(rows []types.TimeSlotRow, n int) []Slot {
	var slots []Slot
	for _, r := range rows {
		for h, v := range r.Hours {
			if v > 0 {
				slots = append(slots, Slot{Weekday: r.Weekday, Hour: h, AvgER: v})
			}
		}
	}
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].AvgER > slots[j].AvgER })
	if len(slots) > n {
		slots = slots[:n]
	}
	return slots
}

// BestHour returns the hour with the highest mean rate on weekday
func BestHour(rows []types.TimeSlotRow, weekday string) (int, bool) {
	for _, r := range rows {
		if r.Weekday != weekday {
			continue
		}
		best, bestV := -1, 0.0
		for h, v := range r.Hours {
			if v > bestV {
				best, bestV = h, v
			}
		}
		return best, best >= 0
	}
	return 0, false
}

// TimeSlots computes and stores the weekday x hour matrix
type TimeSlots struct {
	posts        PostReader
	store        TimeSlotStore
	locker       lock.Locker
	loc          *time.Location
	lookbackDays int
	now          func() time.Time
}

// NewTimeSlots creates a TimeSlots aggregator bucketing hours in loc.
// lookbackDays of 0 uses every stored post.
func NewTimeSlots(posts PostReader, st TimeSlotStore, locker lock.Locker, loc *time.Location, lookbackDays int) *TimeSlots {
	return &TimeSlots{posts: posts, store: st, locker: locker, loc: loc, lookbackDays: lookbackDays, now: time.Now}
}

// Generate rebuilds the account's matrix and replaces the stored rows.
// With no qualifying posts nothing is written and HasData is false.
func (t *TimeSlots) Generate(ctx context.Context, acct types.Account) (TimeSlotResult, error) {
	posts, err := t.posts.Posts(ctx, acct.AccountID)
	if err != nil {
		return TimeSlotResult{}, fmt.Errorf("failed to read posts: %w", err)
	}
	if t.lookbackDays > 0 {
		posts = Since(posts, t.now().AddDate(0, 0, -t.lookbackDays))
	}

	matrix, n := BuildMatrix(posts, t.loc)
	if n == 0 {
		return TimeSlotResult{HasData: false}, nil
	}
	rows := matrix.Rows(acct.AccountID)

	release, err := t.locker.Lock(ctx, lock.AccountKey(acct.AccountID))
	if err != nil {
		return TimeSlotResult{}, err
	}
	defer release()

	if err := t.store.ReplaceTimeSlots(ctx, acct.AccountID, rows); err != nil {
		return TimeSlotResult{}, fmt.Errorf("failed to store time slots: %w", err)
	}
	return TimeSlotResult{HasData: true, PostCount: n, Rows: rows, Best: TopSlots(rows, 5)}, nil
}

// Load returns the stored matrix without recomputing it
func (t *TimeSlots) Load(ctx context.Context, acct types.Account) (TimeSlotResult, error) {
	rows, err := t.store.TimeSlots(ctx, acct.AccountID)
	if err != nil {
		return TimeSlotResult{}, fmt.Errorf("failed to read time slots: %w", err)
	}
	if len(rows) == 0 {
		return TimeSlotResult{HasData: false}, nil
	}
	return TimeSlotResult{HasData: true, Rows: rows, Best: TopSlots(rows, 5)}, nil
}
