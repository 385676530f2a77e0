// Package logging builds the logrus logger shared by the services.
package logging

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tarigelamin1997/tradesense-sub005/internal/config"
)

// New creates a configured logger. Unknown levels fall back to info.
func New(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	return logger
}
