// Package logger provides context-aware structured logging using logrus.
// Commands attach an entry carrying operation fields to the context so that
// the scanner, the filesystem operations and the journal log consistently.
package logger

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	// G is a convenience alias for GetLogger
	G = GetLogger
	// L is the global logger entry used when no logger is found in context
	L = logrus.NewEntry(newLogger())
)

type (
	loggerKey struct{}
)

// Field names shared by every package that logs about skills
const (
	FieldSkill = "skill"
	FieldAgent = "agent"
	FieldPath  = "path"
	FieldOp    = "op"
)

// WithLogger attaches a logger entry to the given context, making it retrievable via GetLogger.
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	e := logger.WithContext(ctx)
	return context.WithValue(ctx, loggerKey{}, e)
}

// GetLogger retrieves the logger entry from the context. If no logger is found,
// it returns the global logger L with the context attached.
func GetLogger(ctx context.Context) *logrus.Entry {
	logger := ctx.Value(loggerKey{})

	if logger == nil {
		return L.WithContext(ctx)
	}

	return logger.(*logrus.Entry)
}

// WithOperation returns a context whose logger carries the operation and skill name
func WithOperation(ctx context.Context, op, skill string) context.Context {
	entry := G(ctx).WithField(FieldOp, op)
	if skill != "" {
		entry = entry.WithField(FieldSkill, skill)
	}
	return WithLogger(ctx, entry)
}

// Setup configures the global logger from the command line settings.
// Logs go to w so that command output on stdout stays machine readable.
func Setup(level, format string, w io.Writer) error {
	if err := SetLogLevel(level); err != nil {
		return errors.Wrapf(err, "invalid log level %q", level)
	}
	SetLogFormat(format)
	if w != nil {
		SetLogOutput(w)
	}
	return nil
}

func newLogger() *logrus.Logger {
	l := logrus.New()
	setLoggerFormat(l, "text")
	return l
}

func setLoggerFormat(logger *logrus.Logger, format string) {
	switch format {
	case "json":
		logger.Formatter = &logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "logLevel",
				logrus.FieldKeyMsg:   "message",
			},
			TimestampFormat: time.RFC3339Nano,
		}
	default:
		logger.Formatter = &logrus.TextFormatter{
			TimestampFormat: time.RFC3339Nano,
			FullTimestamp:   true,
		}
	}
}

// SetLogLevel sets the log level for the global logger
func SetLogLevel(level string) error {
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	L.Logger.SetLevel(logLevel)
	return nil
}

// SetLogFormat sets the log format for the global logger
func SetLogFormat(format string) {
	setLoggerFormat(L.Logger, format)
}

// SetLogOutput sets the output destination for the global logger
func SetLogOutput(w io.Writer) {
	L.Logger.SetOutput(w)
}
