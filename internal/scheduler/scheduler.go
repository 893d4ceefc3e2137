package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ibeckermayer/threadpulse/internal/config"
	"github.com/ibeckermayer/threadpulse/internal/logging"
)

// Job names
const (
	JobRefresh   = "refresh"
	JobFollowers = "followers"
	JobGrowth    = "growth-score"
	JobWeekly    = "weekly-report"
)

// jobTimeout bounds a single run
const jobTimeout = 30 * time.Minute

// Job represents a scheduled task
type Job func(ctx context.Context) error

// Scheduler manages periodic tasks
type Scheduler struct {
	cron     *cron.Cron
	mu       sync.Mutex
	jobs     map[string]cron.EntryID
	timezone *time.Location
	log      logging.Logger
}

// New creates a new scheduler firing in loc
func New(loc *time.Location, logger logging.Logger) *Scheduler {
	log := logging.Component(logger, "scheduler")
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cron.PrintfLogger(log)),
		cron.WithChain(cron.Recover(cron.PrintfLogger(log))),
	)

	return &Scheduler{
		cron:     c,
		jobs:     make(map[string]cron.EntryID),
		timezone: loc,
		log:      log,
	}
}

// AddJob adds a job with a cron schedule
// schedule format: "0 7 * * *" (at 7:00 AM daily)
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s is already scheduled", name)
	}

	// a run still in progress when the next tick fires is skipped
	wrapped := cron.NewChain(cron.SkipIfStillRunning(cron.PrintfLogger(s.log))).
		Then(cron.FuncJob(func() { s.run(name, job) }))

	entryID, err := s.cron.AddJob(schedule, wrapped)
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.jobs[name] = entryID
	s.log.WithFields(logging.Fields{"job": name, "schedule": schedule}).Info("added job")

	return nil
}

func (s *Scheduler) run(name string, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	log := s.log.WithField("job", name)
	log.Info("starting job")
	start := time.Now()

	if err := job(ctx); err != nil {
		log.WithError(err).Error("job failed")
	} else {
		log.WithField("elapsed", time.Since(start).String()).Info("job completed")
	}
}

// IntervalSchedule is the cron schedule firing every intervalHours on the hour
func IntervalSchedule(intervalHours int) (string, error) {
	if intervalHours < 1 || intervalHours > 23 {
		return "", fmt.Errorf("interval must be between 1 and 23 hours, got %d", intervalHours)
	}
	return fmt.Sprintf("0 */%d * * *", intervalHours), nil
}

// DailySchedule is the cron schedule firing daily at timeStr
// timeStr format: "07:00" or "23:30"
func DailySchedule(timeStr string) (string, error) {
	t, err := time.Parse("15:04", timeStr)
	if err != nil {
		return "", fmt.Errorf("invalid time format %s: %w", timeStr, err)
	}
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()), nil
}

// AddIntervalJob adds a job running every intervalHours
func (s *Scheduler) AddIntervalJob(name string, intervalHours int, job Job) error {
	schedule, err := IntervalSchedule(intervalHours)
	if err != nil {
		return err
	}
	return s.AddJob(name, schedule, job)
}

// AddDailyJob adds a job at a specific local time
func (s *Scheduler) AddDailyJob(name, timeStr string, job Job) error {
	schedule, err := DailySchedule(timeStr)
	if err != nil {
		return err
	}
	return s.AddJob(name, schedule, job)
}

// RemoveJob removes a scheduled job
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.jobs[name]; ok {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
		s.log.WithField("job", name).Info("removed job")
	}
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	s.log.Info("starting scheduler")
	s.cron.Start()
}

// Stop halts the scheduler; the returned context is done once running jobs finish
func (s *Scheduler) Stop() context.Context {
	s.log.Info("stopping scheduler")
	return s.cron.Stop()
}

// RunNow immediately executes a job
func (s *Scheduler) RunNow(ctx context.Context, name string, job Job) error {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	s.log.WithField("job", name).Info("running job now")
	return job(ctx)
}

// ListJobs returns info about scheduled jobs ordered by name
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, entryID := range s.jobs {
		entry := s.cron.Entry(entryID)
		infos = append(infos, JobInfo{
			Name:    name,
			NextRun: entry.Next,
			LastRun: entry.Prev,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	return infos
}

// JobInfo contains information about a scheduled job
type JobInfo struct {
	Name    string    `json:"name"`
	NextRun time.Time `json:"nextRun"`
	LastRun time.Time `json:"lastRun"`
}

// Jobs are the recurring tasks of the engine. A nil field is not scheduled.
type Jobs struct {
	Refresh   Job
	Followers Job
	Growth    Job
	Weekly    Job
}

// Register schedules jobs according to cfg. Nothing is added when the
// schedule is disabled.
func (s *Scheduler) Register(cfg config.ScheduleConfig, jobs Jobs) error {
	if !cfg.Enabled {
		s.log.Info("schedule disabled")
		return nil
	}
	if jobs.Refresh != nil {
		if err := s.AddIntervalJob(JobRefresh, cfg.RefreshIntervalHours, jobs.Refresh); err != nil {
			return err
		}
	}
	if jobs.Followers != nil {
		if err := s.AddDailyJob(JobFollowers, cfg.FollowersTime, jobs.Followers); err != nil {
			return err
		}
	}
	if jobs.Growth != nil {
		if err := s.AddDailyJob(JobGrowth, cfg.GrowthScoreTime, jobs.Growth); err != nil {
			return err
		}
	}
	if jobs.Weekly != nil {
		if err := s.AddJob(JobWeekly, cfg.WeeklyReport, jobs.Weekly); err != nil {
			return err
		}
	}
	return nil
}
