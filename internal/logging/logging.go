package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/threadpulse/internal/config"
)

// Logger is the logger handed to every component
type Logger = logrus.FieldLogger

// Fields represents structured logging fields
type Fields = logrus.Fields

// New creates a logger from the logging config
func New(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

// Component returns a logger tagged with a component name
func Component(l Logger, name string) Logger {
	return l.WithField("component", name)
}

// Discard returns a logger that drops everything, for tests
func Discard() Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
