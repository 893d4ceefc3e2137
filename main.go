package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ibeckermayer/threadpulse/internal/api"
	"github.com/ibeckermayer/threadpulse/internal/app"
	"github.com/ibeckermayer/threadpulse/internal/config"
	"github.com/ibeckermayer/threadpulse/internal/logging"
	"github.com/ibeckermayer/threadpulse/internal/scheduler"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config.toml (defaults to the user config dir)")
	flag.Parse()

	path := *configPath
	if path == "" {
		if p, err := config.ConfigPath(); err == nil {
			path = p
		}
	}

	cfg, err := config.LoadFromEnv(path)
	if err != nil {
		logging.New(config.Default().Logging).WithError(err).Fatal("failed to load config")
	}

	logger := logging.New(cfg.Logging)
	log := logger.WithField("component", "main")

	// First run: persist the defaults so there is a file to edit
	if path != "" {
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			if err := cfg.Save(path); err != nil {
				log.WithError(err).Warn("could not save default config")
			} else {
				log.WithField("path", path).Info("created default config")
			}
		}
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize")
	}
	defer a.Close()

	sched := scheduler.New(a.Location(), logger)
	if err := sched.Register(cfg.Schedule, a.Jobs()); err != nil {
		log.WithError(err).Fatal("failed to register scheduled jobs")
	}
	sched.Start()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.SetupRoutes(api.NewHandlers(a, logger), cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("threadpulse listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("server shutdown incomplete")
	}
	select {
	case <-sched.Stop().Done():
	case <-ctx.Done():
		log.Warn("scheduled jobs still running at exit")
	}
}
