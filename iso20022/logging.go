package iso20022

import (
	"github.com/sirupsen/logrus"
)

// Logger is the structured-logging seam used for parse diagnostics. It
// is deliberately narrow: the core never uses it for control flow, only
// observability, so callers can plug in any backend without the core
// depending on one concrete logging library at the API boundary.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// NoopLogger discards everything. It is the default when ParseOptions
// does not set a Logger.
type NoopLogger struct{}

func (NoopLogger) Debugf(string, ...any) {}
func (NoopLogger) Infof(string, ...any)  {}
func (NoopLogger) Warnf(string, ...any)  {}
func (NoopLogger) Errorf(string, ...any) {}

// logrusLogger adapts *logrus.Logger to the Logger seam.
type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger builds a Logger backed by logrus, configured with the
// given level ("debug", "info", "warn", "error", ...) and format
// ("text" or "json"). An unrecognized level falls back to "info".
func NewLogrusLogger(level, format string) Logger {
	l := logrus.New()
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)
	if format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

func (l *logrusLogger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

// WithCorrelationID returns a Logger that tags every line with id.
func WithCorrelationID(l Logger, id string) Logger {
	if ll, ok := l.(*logrusLogger); ok {
		return &logrusLogger{entry: ll.entry.WithField("correlation_id", id)}
	}
	return l
}
