package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/threadpulse/internal/config"
	"github.com/ibeckermayer/threadpulse/internal/logging"
)

func noop(ctx context.Context) error { return nil }

func TestSchedules(t *testing.T) {
	s, err := DailySchedule("23:30")
	require.NoError(t, err)
	assert.Equal(t, "30 23 * * *", s)

	_, err = DailySchedule("7am")
	assert.Error(t, err)

	s, err = IntervalSchedule(6)
	require.NoError(t, err)
	assert.Equal(t, "0 */6 * * *", s)

	_, err = IntervalSchedule(0)
	assert.Error(t, err)
	_, err = IntervalSchedule(24)
	assert.Error(t, err)
}

func TestRegisterFromConfig(t *testing.T) {
	s := New(time.UTC, logging.Discard())
	cfg := config.Default().Schedule

	require.NoError(t, s.Register(cfg, Jobs{Refresh: noop, Followers: noop, Growth: noop, Weekly: noop}))

	jobs := s.ListJobs()
	require.Len(t, jobs, 4)
	names := []string{jobs[0].Name, jobs[1].Name, jobs[2].Name, jobs[3].Name}
	assert.Equal(t, []string{JobFollowers, JobGrowth, JobRefresh, JobWeekly}, names)

	s.RemoveJob(JobWeekly)
	assert.Len(t, s.ListJobs(), 3)
}

func TestRegisterSkipsNilJobsAndDisabledSchedule(t *testing.T) {
	s := New(time.UTC, logging.Discard())
	cfg := config.Default().Schedule

	require.NoError(t, s.Register(cfg, Jobs{Refresh: noop}))
	assert.Len(t, s.ListJobs(), 1)

	disabled := New(time.UTC, logging.Discard())
	cfg.Enabled = false
	require.NoError(t, disabled.Register(cfg, Jobs{Refresh: noop, Weekly: noop}))
	assert.Empty(t, disabled.ListJobs())
}

func TestRegisterRejectsBadSchedule(t *testing.T) {
	s := New(time.UTC, logging.Discard())
	cfg := config.Default().Schedule
	cfg.WeeklyReport = "every monday"

	assert.Error(t, s.Register(cfg, Jobs{Weekly: noop}))
}

func TestAddJobRejectsDuplicates(t *testing.T) {
	s := New(time.UTC, logging.Discard())
	require.NoError(t, s.AddJob("x", "0 8 * * 1", noop))
	assert.Error(t, s.AddJob("x", "0 9 * * 1", noop))
}

func TestNextRunUsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	s := New(tokyo, logging.Discard())
	require.NoError(t, s.AddDailyJob(JobFollowers, "23:00", noop))

	s.Start()
	defer s.Stop()

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	next := jobs[0].NextRun.In(tokyo)
	assert.Equal(t, 23, next.Hour())
	assert.Equal(t, 0, next.Minute())
}

func TestRunNowReturnsJobError(t *testing.T) {
	s := New(time.UTC, logging.Discard())
	boom := errors.New("boom")

	err := s.RunNow(context.Background(), "fail", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestRunLogsFailures(t *testing.T) {
	s := New(time.UTC, logging.Discard())
	called := false
	s.run("fail", func(ctx context.Context) error {
		called = true
		return errors.New("boom")
	})
	assert.True(t, called)
}
