package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"
)

// Level represents the severity of a log message
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Entry is a single log record passed to the formatter
type Entry struct {
	Timestamp time.Time
	Level     Level
	Component string
	Message   string
	Err       error
	Fields    map[string]interface{}
}

// Formatter renders an entry for output
type Formatter interface {
	Format(entry *Entry) string
}

// TextFormatter renders entries as single human-readable lines
type TextFormatter struct{}

func (f *TextFormatter) Format(entry *Entry) string {
	msg := fmt.Sprintf("[%s] %s [%s] %s",
		entry.Timestamp.Format("2006-01-02 15:04:05.000"),
		entry.Level, entry.Component, entry.Message)

	if entry.Err != nil {
		msg += fmt.Sprintf(" | error=%v", entry.Err)
	}

	if len(entry.Fields) > 0 {
		keys := make([]string, 0, len(entry.Fields))
		for k := range entry.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		msg += " |"
		for _, k := range keys {
			msg += fmt.Sprintf(" %s=%v", k, entry.Fields[k])
		}
	}

	return msg + "\n"
}

// Logger provides leveled, component-tagged logging
type Logger struct {
	component string
	minLevel  Level
	outputs   []io.Writer
	formatter Formatter
	mu        sync.Mutex
}

var (
	defaultMu    sync.Mutex
	defaultLevel = LevelInfo
)

// SetDefaultLevel sets the minimum level for loggers created afterwards.
func SetDefaultLevel(level Level) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLevel = level
}

// New creates a logger for a specific component
func New(component string) *Logger {
	defaultMu.Lock()
	level := defaultLevel
	defaultMu.Unlock()

	return &Logger{
		component: component,
		minLevel:  level,
		outputs:   []io.Writer{os.Stdout},
		formatter: &TextFormatter{},
	}
}

// SetMinLevel sets the minimum level to output
func (l *Logger) SetMinLevel(level Level) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
	return l
}

// AddOutput adds an output writer
func (l *Logger) AddOutput(w io.Writer) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outputs = append(l.outputs, w)
	return l
}

// SetFormatter replaces the output formatter
func (l *Logger) SetFormatter(f Formatter) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.formatter = f
	return l
}

func (l *Logger) log(level Level, message string, err error, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.minLevel {
		return
	}

	formatted := l.formatter.Format(&Entry{
		Timestamp: time.Now(),
		Level:     level,
		Component: l.component,
		Message:   message,
		Err:       err,
		Fields:    fields,
	})

	for _, out := range l.outputs {
		out.Write([]byte(formatted))
	}
}

// Debug logs a debug message
func (l *Logger) Debug(message string) {
	l.log(LevelDebug, message, nil, nil)
}

// DebugWith logs a debug message with fields
func (l *Logger) DebugWith(message string, fields map[string]interface{}) {
	l.log(LevelDebug, message, nil, fields)
}

// Info logs an info message
func (l *Logger) Info(message string) {
	l.log(LevelInfo, message, nil, nil)
}

// InfoWith logs an info message with fields
func (l *Logger) InfoWith(message string, fields map[string]interface{}) {
	l.log(LevelInfo, message, nil, fields)
}

// Warn logs a warning
func (l *Logger) Warn(message string) {
	l.log(LevelWarn, message, nil, nil)
}

// WarnWith logs a warning with fields
func (l *Logger) WarnWith(message string, fields map[string]interface{}) {
	l.log(LevelWarn, message, nil, fields)
}

// Error logs an error message
func (l *Logger) Error(message string, err error) {
	l.log(LevelError, message, err, nil)
}

// ErrorWith logs an error message with fields
func (l *Logger) ErrorWith(message string, err error, fields map[string]interface{}) {
	l.log(LevelError, message, err, fields)
}
