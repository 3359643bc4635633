package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Setup configures the process-wide logger once at startup. When enabled is
// false all output is discarded; level accepts debug|info|warn|error and
// anything else means info.
func Setup(enabled bool, level string) {
	if !enabled {
		logrus.SetOutput(io.Discard)
		return
	}
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
}

// Component returns an entry tagged with the component name.
func Component(name string) *logrus.Entry {
	return logrus.WithField("comp", name)
}
