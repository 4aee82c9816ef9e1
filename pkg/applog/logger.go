// Package applog centralizes logger construction so the pool core and
// its demo service collaborator agree on level parsing and formatting.
package applog

import "github.com/sirupsen/logrus"

// New builds a *logrus.Logger from a level string ("debug", "info",
// "warn", "error"; invalid or empty falls back to info) and a format
// name ("json" or anything else for text).
func New(level, format string) *logrus.Logger {
	logger := logrus.New()

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}

// Noop returns a logger with all output discarded, for tests and for
// callers that don't supply one explicitly.
func Noop() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(discard{})
	return logger
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
