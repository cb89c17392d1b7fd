package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// Level orders log severities.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelCritical
)

var levelNames = map[string]Level{
	"DEBUG":    LevelDebug,
	"INFO":     LevelInfo,
	"WARNING":  LevelWarning,
	"WARN":     LevelWarning,
	"ERROR":    LevelError,
	"CRITICAL": LevelCritical,
}

// process-wide default, raised or lowered once at startup
var defaultLevel atomic.Int32

func init() {
	defaultLevel.Store(int32(LevelInfo))
}

// ParseLevel maps a config string to a Level, falling back to INFO.
func ParseLevel(s string) Level {
	if lvl, ok := levelNames[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return lvl
	}
	return LevelInfo
}

// SetLevel changes the level used by loggers created without a leveled config.
func SetLevel(s string) {
	defaultLevel.Store(int32(ParseLevel(s)))
}

type levelProvider interface {
	GetLogLevel() string
}

// -----------------------------------------------------------------------------

// Logger provides structured logging functionality
type Logger struct {
	name   string
	logger *log.Logger
	config interface{}
	level  *Level
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance
func NewLogger(config interface{}, name string) *Logger {
	l := &Logger{
		name:   name,
		logger: log.New(os.Stdout, "", log.LstdFlags),
		config: config,
	}
	if lp, ok := config.(levelProvider); ok && lp.GetLogLevel() != "" {
		lvl := ParseLevel(lp.GetLogLevel())
		l.level = &lvl
	}
	return l
}

// -----------------------------------------------------------------------------

// Named returns a child logger sharing level and output.
func (l *Logger) Named(name string) *Logger {
	if l == nil {
		return NewLogger(nil, name)
	}
	return &Logger{
		name:   l.name + "." + name,
		logger: l.logger,
		config: l.config,
		level:  l.level,
	}
}

// -----------------------------------------------------------------------------

// SetOutput redirects the logger, used by tests and the probe CLI.
func (l *Logger) SetOutput(w io.Writer) {
	l.logger.SetOutput(w)
}

// -----------------------------------------------------------------------------

func (l *Logger) enabled(lvl Level) bool {
	if l == nil {
		return false
	}
	threshold := Level(defaultLevel.Load())
	if l.level != nil {
		threshold = *l.level
	}
	return lvl >= threshold
}

// -----------------------------------------------------------------------------

// Debug logs verbose diagnostics
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.enabled(LevelDebug) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] DEBUG: %s", l.name, msg)
}

// -----------------------------------------------------------------------------

// Warning logs recoverable problems
func (l *Logger) Warning(format string, args ...interface{}) {
	if !l.enabled(LevelWarning) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] WARNING: %s", l.name, msg)
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	if !l.enabled(LevelInfo) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] INFO: %s", l.name, msg)
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	if !l.enabled(LevelError) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] ERROR: %s", l.name, msg)
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] CRITICAL: %s", l.name, msg)
	os.Exit(1)
}
