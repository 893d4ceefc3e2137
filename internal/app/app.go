package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/ibeckermayer/threadpulse/internal/analytics"
	"github.com/ibeckermayer/threadpulse/internal/assistant"
	"github.com/ibeckermayer/threadpulse/internal/config"
	"github.com/ibeckermayer/threadpulse/internal/digest"
	"github.com/ibeckermayer/threadpulse/internal/drafts"
	"github.com/ibeckermayer/threadpulse/internal/lock"
	"github.com/ibeckermayer/threadpulse/internal/logging"
	"github.com/ibeckermayer/threadpulse/internal/metrics"
	"github.com/ibeckermayer/threadpulse/internal/notifier"
	"github.com/ibeckermayer/threadpulse/internal/retention"
	"github.com/ibeckermayer/threadpulse/internal/store"
	"github.com/ibeckermayer/threadpulse/internal/threads"
)

// App holds the application state.
type App struct {
	cfg      *config.Config
	loc      *time.Location
	log      logging.Logger
	store    *store.Store
	client   *threads.Client
	locker   lock.Locker
	redis    *redis.Client
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	refresher *analytics.Refresher
	timeSlots *analytics.TimeSlots
	buzz      *analytics.Buzz
	growth    *analytics.Growth
	followers *analytics.Followers
	reader    *analytics.Reader
	goals     *retention.Goals
	drafts    *drafts.Drafts
	digest    *digest.Builder
	notifier  *notifier.Notifier

	// mu guards the cached assistant, rebuilt when the stored API key changes
	mu        sync.Mutex
	assistant *assistant.Assistant
	llmKey    string

	now func() time.Time
}

// New opens the store and wires every component from cfg.
func New(cfg *config.Config, logger logging.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", cfg.Store.Path, err)
	}

	a := &App{
		cfg:      cfg,
		loc:      loc,
		log:      logging.Component(logger, "app"),
		store:    st,
		registry: prometheus.NewRegistry(),
		now:      time.Now,
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	if cfg.Lock.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.Lock.RedisAddr})
		a.locker = lock.NewRedis(a.redis, cfg.Lock.TTL(), logger)
		a.log.WithField("addr", cfg.Lock.RedisAddr).Info("using redis account locks")
	} else {
		a.locker = lock.NewLocal()
	}

	a.client = threads.NewClient(cfg.Threads, logger, a.metrics)
	a.refresher = analytics.NewRefresher(a.client, st, a.locker, cfg.Threads.MaxUpdateExisting, logger, a.metrics)
	a.timeSlots = analytics.NewTimeSlots(st, st, a.locker, loc, cfg.Analysis.TimeSlotLookbackDays)
	a.buzz = analytics.NewBuzz(st, loc, cfg.Analysis.BuzzLookbackDays)
	a.growth = analytics.NewGrowth(st, a.locker, loc)
	a.followers = analytics.NewFollowers(a.client, st, loc, logger)
	a.reader = analytics.NewReader(st)
	a.goals = retention.NewGoals(st, loc)
	a.drafts = drafts.New(st)

	if a.digest, err = digest.New(); err != nil {
		st.Close()
		return nil, err
	}
	if cfg.Email.EmailEnabled() {
		if a.notifier, err = notifier.NewFromConfig(cfg.Email, logger); err != nil {
			st.Close()
			return nil, err
		}
	}

	return a, nil
}

// Close releases the store and the redis connection
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}

// Config returns the configuration the app was built with
func (a *App) Config() *config.Config {
	return a.cfg
}

// Location is the timezone dates and hours are bucketed in
func (a *App) Location() *time.Location {
	return a.loc
}

// Gatherer exposes the app's metrics registry
func (a *App) Gatherer() prometheus.Gatherer {
	return a.registry
}

// Store exposes the underlying store
func (a *App) Store() *store.Store {
	return a.store
}

// Assistant returns the text-generation assistant, built from the API key in
// the settings table or, failing that, the config. assistant.ErrNotConfigured
// is returned when neither is set.
func (a *App) Assistant(ctx context.Context) (*assistant.Assistant, error) {
	key, err := a.store.Setting(ctx, store.SettingLLMAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.assistant != nil && a.llmKey == key {
		return a.assistant, nil
	}
	provider, err := assistant.NewProvider(a.cfg.LLM, key)
	if err != nil {
		return nil, err
	}
	a.assistant = assistant.New(provider, a.store, a.cfg.LLM, a.log)
	a.llmKey = key
	return a.assistant, nil
}

// completer returns the assistant as a retention.Completer, or nil when text
// generation is unavailable so that callers use their fallbacks.
func (a *App) completer(ctx context.Context) retention.Completer {
	asst, err := a.Assistant(ctx)
	if err != nil {
		if !errors.Is(err, assistant.ErrNotConfigured) {
			a.log.WithError(err).Warn("text generation unavailable")
		}
		return nil
	}
	return asst
}

// notifyAddress is the stored recipient, or the configured default
func (a *App) notifyAddress(ctx context.Context) string {
	addr, err := a.store.Setting(ctx, store.SettingNotifyEmail)
	if err != nil || addr == "" {
		return a.cfg.Email.ToAddr
	}
	return addr
}

func (a *App) checkIns(ctx context.Context) *retention.CheckIns {
	return retention.NewCheckIns(a.store, a.completer(ctx), a.locker, a.loc, a.log)
}

func (a *App) weekly(ctx context.Context) *retention.Weekly {
	var sender retention.DigestSender
	if a.notifier != nil {
		sender = a.notifier
	}
	return retention.NewWeekly(a.store, a.completer(ctx), a.digest, sender, a.locker, a.loc, a.log)
}
