package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// levelTrace sits below slog's debug level.
const levelTrace = slog.Level(-8)

var simpleLogger = NewSimpleLogger(os.Stderr, LogLevelInfo)

type Logger interface {
	Trace(v ...interface{})
	Tracef(format string, v ...interface{})
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
}

type LogLevel int

const (
	LogLevelTrace LogLevel = iota
	LogLevelDebug
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelNone
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelTrace:
		return "trace"
	case LogLevelDebug:
		return "debug"
	case LogLevelInfo:
		return "info"
	case LogLevelWarn:
		return "warn"
	case LogLevelError:
		return "error"
	case LogLevelNone:
		return "none"
	}
	return fmt.Sprintf("LogLevel(%d)", int(l))
}

// ParseLevel maps a level name as accepted on the command line.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LogLevelTrace, nil
	case "debug":
		return LogLevelDebug, nil
	case "info", "":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	case "none", "off":
		return LogLevelNone, nil
	}
	return LogLevelNone, fmt.Errorf("unknown log level %q", s)
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelTrace:
		return levelTrace
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn:
		return slog.LevelWarn
	}
	return slog.LevelError
}

type SimpleLogger struct {
	mu    sync.RWMutex
	level LogLevel
	out   *slog.Logger
}

var _ Logger = (*SimpleLogger)(nil)

func NewSimpleLogger(w io.Writer, level LogLevel) *SimpleLogger {
	sl := &SimpleLogger{level: level}
	sl.out = newSlog(w)
	return sl
}

func newSlog(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: levelTrace,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == levelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}))
}

func (sl *SimpleLogger) SetLevel(level LogLevel) {
	sl.mu.Lock()
	sl.level = level
	sl.mu.Unlock()
}

func (sl *SimpleLogger) SetOutput(w io.Writer) {
	sl.mu.Lock()
	sl.out = newSlog(w)
	sl.mu.Unlock()
}

func (sl *SimpleLogger) enabled(level LogLevel) (*slog.Logger, bool) {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	if sl.level == LogLevelNone || level < sl.level {
		return nil, false
	}
	return sl.out, true
}

func (sl *SimpleLogger) log(level LogLevel, msg string) {
	out, ok := sl.enabled(level)
	if !ok {
		return
	}
	out.Log(context.Background(), level.slogLevel(), msg)
}

func (sl *SimpleLogger) Trace(v ...interface{}) { sl.log(LogLevelTrace, sprint(v...)) }
func (sl *SimpleLogger) Tracef(format string, v ...interface{}) {
	sl.log(LogLevelTrace, fmt.Sprintf(format, v...))
}
func (sl *SimpleLogger) Debug(v ...interface{}) { sl.log(LogLevelDebug, sprint(v...)) }
func (sl *SimpleLogger) Debugf(format string, v ...interface{}) {
	sl.log(LogLevelDebug, fmt.Sprintf(format, v...))
}
func (sl *SimpleLogger) Info(v ...interface{}) { sl.log(LogLevelInfo, sprint(v...)) }
func (sl *SimpleLogger) Infof(format string, v ...interface{}) {
	sl.log(LogLevelInfo, fmt.Sprintf(format, v...))
}
func (sl *SimpleLogger) Warn(v ...interface{}) { sl.log(LogLevelWarn, sprint(v...)) }
func (sl *SimpleLogger) Warnf(format string, v ...interface{}) {
	sl.log(LogLevelWarn, fmt.Sprintf(format, v...))
}
func (sl *SimpleLogger) Error(v ...interface{}) { sl.log(LogLevelError, sprint(v...)) }
func (sl *SimpleLogger) Errorf(format string, v ...interface{}) {
	sl.log(LogLevelError, fmt.Sprintf(format, v...))
}

// sprint joins operands with spaces, like fmt.Println without the newline.
func sprint(v ...interface{}) string {
	s := fmt.Sprintln(v...)
	return strings.TrimSuffix(s, "\n")
}

func SetLogLevel(level LogLevel) { simpleLogger.SetLevel(level) }
func SetOutput(w io.Writer)      { simpleLogger.SetOutput(w) }

func Trace(v ...interface{}) {
	simpleLogger.Trace(v...)
}
func Tracef(format string, v ...interface{}) {
	simpleLogger.Tracef(format, v...)
}

func Debug(v ...interface{}) {
	simpleLogger.Debug(v...)
}
func Debugf(format string, v ...interface{}) {
	simpleLogger.Debugf(format, v...)
}

func Info(v ...interface{}) {
	simpleLogger.Info(v...)
}
func Infof(format string, v ...interface{}) {
	simpleLogger.Infof(format, v...)
}

func Warn(v ...interface{}) {
	simpleLogger.Warn(v...)
}
func Warnf(format string, v ...interface{}) {
	simpleLogger.Warnf(format, v...)
}

func Error(v ...interface{}) {
	simpleLogger.Error(v...)
}
func Errorf(format string, v ...interface{}) {
	simpleLogger.Errorf(format, v...)
}
