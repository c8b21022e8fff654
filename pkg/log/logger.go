package log

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Progress actions logged by the crawler, one line per action
const (
	ActionCrawl    = "crawl"
	ActionSkip     = "skip"
	ActionDownload = "download"
	ActionExists   = "exists"
	ActionError    = "error"
)

// NewLogger creates a logrus.Logger writing to w at the given level.
// An unparsable level falls back to info and is reported through the returned logger.
func NewLogger(levelStr string, w io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	logger.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		logger.Warnf("Invalid log level '%s', using 'info'. Error: %v", levelStr, err)
	} else {
		logger.SetLevel(level)
	}
	return logger
}

// Discard returns an entry that drops everything; used by tests and quiet subcommands
func Discard() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}
