package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"mse-pipeline/src/models"
)

// -----------------------------------------------------------------------------

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

// ParseLevel maps a config log_level string to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARNING", "WARN":
		return LevelWarning
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// -----------------------------------------------------------------------------

// Logger provides structured logging functionality
type Logger struct {
	name   string
	level  Level
	logger *log.Logger
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance. cfg may be nil, in which case INFO is used.
func NewLogger(cfg *models.MConfig, name string) *Logger {
	level := LevelInfo
	if cfg != nil {
		level = ParseLevel(cfg.LogLevel)
	}
	return &Logger{
		name:   name,
		level:  level,
		logger: log.New(os.Stdout, "", log.LstdFlags),
	}
}

// -----------------------------------------------------------------------------

// NewWriterLogger is used by tests to capture output.
func NewWriterLogger(w io.Writer, name string, level Level) *Logger {
	return &Logger{name: name, level: level, logger: log.New(w, "", 0)}
}

// -----------------------------------------------------------------------------

// Named returns a logger sharing this one's output and level under a new name.
func (l *Logger) Named(name string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{name: name, level: l.level, logger: l.logger}
}

// -----------------------------------------------------------------------------

func (l *Logger) printf(level Level, tag, format string, args ...interface{}) {
	if l == nil || level < l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] %s: %s", l.name, tag, msg)
}

// -----------------------------------------------------------------------------

// Debug logs diagnostic messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.printf(LevelDebug, "DEBUG", format, args...)
}

// -----------------------------------------------------------------------------

// Warning logs tolerated anomalies
func (l *Logger) Warning(format string, args ...interface{}) {
	l.printf(LevelWarning, "WARNING", format, args...)
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.printf(LevelInfo, "INFO", format, args...)
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.printf(LevelError, "ERROR", format, args...)
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] CRITICAL: %s", l.name, msg)
	os.Exit(1)
}
