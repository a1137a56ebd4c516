// internal/utils/logger.go
package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LoggerConfig controls where and how log lines are written.
type LoggerConfig struct {
	Level  string // debug, info, warn, error
	Format string // console or json
	Dir    string // optional; when set, logs are also appended to <Dir>/cinema.log
}

// Logger wraps zerolog with the field-map call style used across the services.
type Logger struct {
	mu   sync.RWMutex
	zl   zerolog.Logger
	file *os.File
}

var (
	globalLogger *Logger
	loggerOnce   sync.Once
)

// GetLogger returns the global logger instance
func GetLogger() *Logger {
	loggerOnce.Do(func() {
		globalLogger = &Logger{
			zl: zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
				With().Timestamp().Logger(),
		}
	})
	return globalLogger
}

// InitLogger reconfigures the global logger.
func InitLogger(cfg LoggerConfig) error {
	return GetLogger().Configure(cfg)
}

// NewLogger builds a standalone logger writing to w. Mostly useful in tests.
func NewLogger(w io.Writer) *Logger {
	return &Logger{zl: zerolog.New(w).With().Timestamp().Logger()}
}

// Configure swaps the underlying writer and level.
func (l *Logger) Configure(cfg LoggerConfig) error {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stderr
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	}

	var file *os.File
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err = os.OpenFile(filepath.Join(cfg.Dir, "cinema.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		out = zerolog.MultiLevelWriter(out, file)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
	}
	l.file = file
	l.zl = zerolog.New(out).Level(level).With().Timestamp().Logger()
	return nil
}

// Zerolog exposes the underlying logger for middleware that wants events directly.
func (l *Logger) Zerolog() zerolog.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.zl
}

// With returns a child logger carrying the given fields on every line.
func (l *Logger) With(fields map[string]interface{}) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &Logger{zl: l.zl.With().Fields(fields).Logger()}
}

func (l *Logger) event(level zerolog.Level) *zerolog.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.zl.WithLevel(level)
}

func (l *Logger) log(level zerolog.Level, message string, fields map[string]interface{}) {
	e := l.event(level)
	if e == nil {
		return
	}
	if len(fields) > 0 {
		e = e.Fields(fields)
	}
	e.Msg(message)
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields map[string]interface{}) {
	l.log(zerolog.DebugLevel, message, fields)
}

// Info logs an info message
func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.log(zerolog.InfoLevel, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields map[string]interface{}) {
	l.log(zerolog.WarnLevel, message, fields)
}

// Error logs an error message
func (l *Logger) Error(message string, fields map[string]interface{}) {
	l.log(zerolog.ErrorLevel, message, fields)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(zerolog.InfoLevel, fmt.Sprintf(format, args...), nil)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(zerolog.WarnLevel, fmt.Sprintf(format, args...), nil)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(zerolog.ErrorLevel, fmt.Sprintf(format, args...), nil)
}

// Fatalf logs a formatted message and exits
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.log(zerolog.FatalLevel, fmt.Sprintf(format, args...), nil)
	os.Exit(1)
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
