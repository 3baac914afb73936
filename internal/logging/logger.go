// Package logging provides structured logging for the sync engine.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the global logger.
type Options struct {
	// Level is the minimum level to emit ("debug", "info", "warn", "error").
	Level string

	// File, when non-empty, sends output to a size-rotated log file instead
	// of stdout.
	File string

	// MaxSizeMB and MaxBackups configure rotation when File is set.
	MaxSizeMB  int
	MaxBackups int
}

var (
	global *logrus.Logger
	once   sync.Once
)

// Init initializes the global logger. Subsequent calls are no-ops.
func Init(opts Options) {
	once.Do(func() {
		global = build(opts)
	})
}

func build(opts Options) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05Z07:00"})

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	var out io.Writer = os.Stdout
	if opts.File != "" {
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 20
		}
		out = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSize,
			MaxBackups: opts.MaxBackups,
		}
	}
	l.SetOutput(out)

	return l
}

// Get returns the global logger instance.
func Get() *logrus.Logger {
	if global == nil {
		Init(Options{Level: "info"})
	}
	return global
}

// Debug logs a debug message with optional context.
func Debug(message string, context map[string]interface{}) {
	Get().WithFields(logrus.Fields(context)).Debug(message)
}

// Info logs an info message with optional context.
func Info(message string, context map[string]interface{}) {
	Get().WithFields(logrus.Fields(context)).Info(message)
}

// Warn logs a warning message with optional context.
func Warn(message string, context map[string]interface{}) {
	Get().WithFields(logrus.Fields(context)).Warn(message)
}

// Error logs an error message with optional context.
func Error(message string, err error, context map[string]interface{}) {
	entry := Get().WithFields(logrus.Fields(context))
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(message)
}
