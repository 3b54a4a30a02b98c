// Package klog wraps logrus behind a small leveled Logger, so call sites
// read the way the teacher's own log.Infof/log.Debugf call sites do.
// WithField attaches structured fields; the thread core itself writes
// thread ids into its formatted messages (tid=N) rather than as fields.
package klog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is a thin façade over *logrus.Entry.
type Logger struct {
	entry *logrus.Entry
}

// New returns a Logger writing leveled text output to stderr, the teacher's
// default logrus configuration.
func New() *Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.DebugLevel)
	return &Logger{entry: logrus.NewEntry(l)}
}

// WithField returns a Logger with key=value attached to every subsequent
// call, the same fluent pattern the teacher's logging call sites use to
// scope a request or task id.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// Debugf logs at debug level: routine operation tracing.
func (l *Logger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }

// Infof logs at info level.
func (l *Logger) Infof(format string, args ...any) { l.entry.Infof(format, args...) }

// Warnf logs at warn level: a returned sentinel error, not a contract
// violation.
func (l *Logger) Warnf(format string, args ...any) { l.entry.Warnf(format, args...) }

// Panicf logs at panic level, then panics with the formatted message -- the
// logging counterpart of a fatal assertion (§7: contract violations are
// never recovered).
func (l *Logger) Panicf(format string, args ...any) { l.entry.Panicf(format, args...) }
