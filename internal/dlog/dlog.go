// dlog package is a thin wrapper around logrus shared by every dups package.
package dlog

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// logLevelEnvVar overrides the level passed on the command line or in the config.
const logLevelEnvVar = "DUPS_LOG_LEVEL"

// Global logger instance. Until InitializeDlogger runs it discards everything
// so library code and tests never need a nil check.
var Dlogger = newDiscardLogger()

func newDiscardLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

// InitializeDlogger initializes or resets the global logger (Dlogger) so it
// writes to logFile. Failing to open the log file is returned to the caller.
func InitializeDlogger(logFile string) error {
	logger := logrus.New()

	// #nosec G304
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", logFile, err)
	}

	logger.Out = file
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if lvl := os.Getenv(logLevelEnvVar); lvl != "" {
		if parsed, err := logrus.ParseLevel(lvl); err == nil {
			logger.SetLevel(parsed)
		}
	}

	Dlogger = logger
	return nil
}

// SetLevel changes the level of Dlogger. An invalid level leaves the current
// level untouched. The environment variable always wins when set.
func SetLevel(level string) error {
	if env := os.Getenv(logLevelEnvVar); env != "" {
		level = env
	}

	parsed, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	Dlogger.SetLevel(parsed)
	return nil
}
