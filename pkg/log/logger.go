package log

import (
	"io"

	"github.com/sirupsen/logrus"
)

// TimestampFormat is used by every text log line
const TimestampFormat = "15:04:05.000"

// NewLogger builds the application logger writing to out.
// An unknown level falls back to info and is reported through the returned error.
func NewLogger(level string, out io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: TimestampFormat})
	logger.SetLevel(logrus.InfoLevel)

	if level == "" {
		return logger, nil
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return logger, err
	}
	logger.SetLevel(parsed)
	return logger, nil
}

// Discard returns an entry that drops everything, for tests and library callers without a logger
func Discard() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}
