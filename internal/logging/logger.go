// Package logging provides structured logging with file and console output.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents logging levels
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// zerologLevel maps a LogLevel onto zerolog. Unknown values log everything.
func (l LogLevel) zerologLevel() zerolog.Level {
	switch LogLevel(strings.ToLower(string(l))) {
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.DebugLevel
	}
}

// LogEntry is a single record kept in the in-memory history.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Component string `json:"component"`
	Message   string `json:"message"`
	Data      string `json:"data,omitempty"`
}

// Logger wraps zerolog with optional file output and a bounded log history.
type Logger struct {
	zlog    zerolog.Logger
	level   zerolog.Level
	file    *os.File
	logPath string
	mu      sync.RWMutex
	history []LogEntry
	maxHist int
}

// Config holds logger configuration
type Config struct {
	LogDir     string   // Directory for log files; empty disables file output
	Level      LogLevel // Minimum log level (default: info)
	MaxHistory int      // Max entries to keep in memory (default: 500)
	Console    bool     // Also log to stderr
}

// DefaultConfig returns the logger defaults used by the commands.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		LogDir:     filepath.Join(home, ".physicam", "logs"),
		Level:      LevelInfo,
		MaxHistory: 500,
		Console:    true,
	}
}

// New creates a Logger writing to a dated file under cfg.LogDir and,
// if enabled, to a console writer on stderr.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var writers []io.Writer
	var file *os.File
	var logPath string

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		logPath = filepath.Join(cfg.LogDir, fmt.Sprintf("physicam_%s.log", time.Now().Format("2006-01-02")))

		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
		writers = append(writers, f)
	}

	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		})
	}

	logger := newLogger(io.MultiWriter(writers...), cfg.Level, cfg.MaxHistory)
	logger.file = file
	logger.logPath = logPath

	logger.Debug("logging", "Logger initialized", map[string]interface{}{
		"logFile": logPath,
		"level":   string(cfg.Level),
	})

	return logger, nil
}

// NewWithWriter creates a Logger that writes JSON lines to w.
func NewWithWriter(w io.Writer, level LogLevel) *Logger {
	return newLogger(w, level, 500)
}

// NewNop returns a Logger that discards output but still records history.
func NewNop() *Logger {
	return newLogger(io.Discard, LevelDebug, 500)
}

func newLogger(w io.Writer, level LogLevel, maxHist int) *Logger {
	if maxHist <= 0 {
		maxHist = 500
	}
	zl := level.zerologLevel()
	return &Logger{
		zlog:    zerolog.New(w).Level(zl).With().Timestamp().Str("app", "physicam").Logger(),
		level:   zl,
		history: make([]LogEntry, 0, 64),
		maxHist: maxHist,
	}
}

func (l *Logger) addToHistory(level zerolog.Level, component, msg, data string) {
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.history = append(l.history, LogEntry{
		Timestamp: time.Now().Format("15:04:05.000"),
		Level:     level.String(),
		Component: component,
		Message:   msg,
		Data:      data,
	})
	if len(l.history) > l.maxHist {
		l.history = l.history[len(l.history)-l.maxHist:]
	}
}

// GetHistory returns up to limit of the most recent entries, oldest first.
// A non-positive limit returns everything.
func (l *Logger) GetHistory(limit int) []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 || limit > len(l.history) {
		limit = len(l.history)
	}
	result := make([]LogEntry, limit)
	copy(result, l.history[len(l.history)-limit:])
	return result
}

// CountLevel returns how many history entries have the given level.
func (l *Logger) CountLevel(level LogLevel) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	want := level.zerologLevel().String()
	n := 0
	for _, e := range l.history {
		if e.Level == want {
			n++
		}
	}
	return n
}

// GetLogPath returns the current log file path, empty without file output.
func (l *Logger) GetLogPath() string {
	return l.logPath
}

// Close closes the log file
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// formatData renders data as sorted key=value pairs.
func formatData(data map[string]interface{}) string {
	if len(data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", k, data[k])
	}
	return b.String()
}

func (l *Logger) write(event *zerolog.Event, level zerolog.Level, component, msg string, data map[string]interface{}) {
	event = event.Str("component", component)
	for k, v := range data {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
	l.addToHistory(level, component, msg, formatData(data))
}

// Debug logs a debug message
func (l *Logger) Debug(component, msg string, data map[string]interface{}) {
	l.write(l.zlog.Debug(), zerolog.DebugLevel, component, msg, data)
}

// Info logs an info message
func (l *Logger) Info(component, msg string, data map[string]interface{}) {
	l.write(l.zlog.Info(), zerolog.InfoLevel, component, msg, data)
}

// Warn logs a warning message
func (l *Logger) Warn(component, msg string, data map[string]interface{}) {
	l.write(l.zlog.Warn(), zerolog.WarnLevel, component, msg, data)
}

// Error logs an error message
func (l *Logger) Error(component, msg string, err error, data map[string]interface{}) {
	event := l.zlog.Error()
	if err != nil {
		event = event.Err(err)
	}
	event = event.Str("component", component)
	for k, v := range data {
		event = event.Interface(k, v)
	}
	event.Msg(msg)

	d := formatData(data)
	if err != nil {
		if d != "" {
			d += ", "
		}
		d += "error=" + err.Error()
	}
	l.addToHistory(zerolog.ErrorLevel, component, msg, d)
}

// Component returns a zerolog.Logger with the component field set.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.zlog.With().Str("component", name).Logger()
}
