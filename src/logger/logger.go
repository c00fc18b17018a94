package logger

import (
	"io"
	"os"

	"ledger-socket/src/models"

	"github.com/sirupsen/logrus"
)

// -----------------------------------------------------------------------------

// base is shared by every named Logger so level and output are set once.
var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// -----------------------------------------------------------------------------

// Logger provides structured logging functionality
type Logger struct {
	name  string
	entry *logrus.Entry
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance. A non-nil config sets the shared
// log level from its LogLevel field.
func NewLogger(config *models.MConfig, name string) *Logger {
	if config != nil && config.LogLevel != "" {
		SetLevel(config.LogLevel)
	}
	return &Logger{
		name:  name,
		entry: base.WithField("component", name),
	}
}

// -----------------------------------------------------------------------------

// SetLevel accepts DEBUG, INFO, WARNING, ERROR (any case). Unknown values keep
// the current level.
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		base.Warnf("unknown log level %q, keeping %s", level, base.GetLevel())
		return
	}
	base.SetLevel(lvl)
}

// SetOutput redirects every Logger, mostly for tests.
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

// -----------------------------------------------------------------------------

// Name returns the component name the logger was created with.
func (l *Logger) Name() string {
	return l.name
}

// -----------------------------------------------------------------------------

// Debug logs diagnostic messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

// -----------------------------------------------------------------------------

// Warning logs recoverable problems
func (l *Logger) Warning(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	l.entry.Fatalf(format, args...)
}
