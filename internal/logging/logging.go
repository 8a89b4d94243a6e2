// Package logging wraps logrus with zenlogd's integer severity scale and
// ANSI-colored, timestamped output.
package logging

import (
	"github.com/sirupsen/logrus"
)

// Severity mirrors the operator-facing integer scale: 0=Error, 1=Warn,
// 2=Info, 3=Debug, and anything 4 or above is Trace. This mapping must be
// preserved exactly for operator compatibility with existing config files
// and signal-driven reload scripts.
func levelFor(severity int) logrus.Level {
	switch {
	case severity <= 0:
		return logrus.ErrorLevel
	case severity == 1:
		return logrus.WarnLevel
	case severity == 2:
		return logrus.InfoLevel
	case severity == 3:
		return logrus.DebugLevel
	default:
		return logrus.TraceLevel
	}
}

// NewLogger builds a logrus.Logger at the level corresponding to severity,
// with colored, timestamped text output.
func NewLogger(severity int) *logrus.Logger {
	l := logrus.New()
	l.SetLevel(levelFor(severity))
	l.SetFormatter(&logrus.TextFormatter{
		ForceColors:   true,
		FullTimestamp: true,
	})
	return l
}

// SetSeverity mutates logger's level in place, used by the severity-only
// reload path (SIGUSR2) which never touches the pipeline runtime.
func SetSeverity(logger *logrus.Logger, severity int) {
	logger.SetLevel(levelFor(severity))
}
