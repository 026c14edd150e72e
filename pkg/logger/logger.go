package logger

import (
	"os"

	"github.com/rollbar/rollbar-go"
	"github.com/sirupsen/logrus"
)

// New creates a new logger with the specified log level
func New(level string) *logrus.Logger {
	logger := logrus.New()

	// Set log level
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set formatter
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		ForceColors:   true,
	})

	// Set output
	logger.SetOutput(os.Stdout)

	return logger
}

// WithFields creates a logger entry with the specified fields
func WithFields(logger *logrus.Logger, fields logrus.Fields) *logrus.Entry {
	return logger.WithFields(fields)
}

// RollbarHook forwards error level entries to Rollbar
type RollbarHook struct {
	report func(level logrus.Level, err error, msg string, extras map[string]interface{})
}

// NewRollbarHook configures the global Rollbar client and returns a hook
// that reports through it.
func NewRollbarHook(token, environment string) *RollbarHook {
	rollbar.SetToken(token)
	rollbar.SetEnvironment(environment)
	return &RollbarHook{report: reportToRollbar}
}

func reportToRollbar(level logrus.Level, err error, msg string, extras map[string]interface{}) {
	severity := rollbar.ERR
	if level <= logrus.FatalLevel {
		severity = rollbar.CRIT
	}
	if err != nil {
		rollbar.ErrorWithExtras(severity, err, extras)
		return
	}
	rollbar.MessageWithExtras(severity, msg, extras)
}

// Levels implements logrus.Hook
func (h *RollbarHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel}
}

// Fire implements logrus.Hook
func (h *RollbarHook) Fire(entry *logrus.Entry) error {
	extras := make(map[string]interface{}, len(entry.Data)+1)
	var err error
	for k, v := range entry.Data {
		if k == logrus.ErrorKey {
			if e, ok := v.(error); ok {
				err = e
				continue
			}
		}
		extras[k] = v
	}
	extras["message"] = entry.Message
	h.report(entry.Level, err, entry.Message, extras)
	return nil
}

// Close flushes pending Rollbar reports
func (h *RollbarHook) Close() {
	rollbar.Wait()
}
