// Package logging is the leveled logger shared by every docqa component.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/kataras/golog"
)

// Level represents logging severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelNone
)

// Logger is the logging surface used across the application.
type Logger interface {
	Debug(format string, v ...any)
	Info(format string, v ...any)
	Warn(format string, v ...any)
	Error(format string, v ...any)
}

// ParseLevel maps a config string onto a Level. Unknown values are an error.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "none", "disable", "off":
		return LevelNone, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelNone:
		return "disable"
	default:
		return fmt.Sprintf("unknown(%d)", int(l))
	}
}

// GologLogger implements Logger on top of kataras/golog.
type GologLogger struct {
	logger *golog.Logger
	level  Level
}

var _ Logger = (*GologLogger)(nil)

// New creates a golog-backed logger writing to out with the given level.
func New(out io.Writer, level Level) *GologLogger {
	g := golog.New()
	g.SetPrefix("[docqa] ")
	if out != nil {
		g.SetOutput(out)
	}
	l := &GologLogger{logger: g}
	l.SetLevel(level)
	return l
}

// SetLevel changes the minimum level that is written.
func (l *GologLogger) SetLevel(level Level) {
	l.level = level
	l.logger.SetLevel(level.String())
}

// GetLevel returns the current level.
func (l *GologLogger) GetLevel() Level { return l.level }

func (l *GologLogger) Debug(format string, v ...any) {
	if l.level <= LevelDebug {
		l.logger.Debugf(format, v...)
	}
}

func (l *GologLogger) Info(format string, v ...any) {
	if l.level <= LevelInfo {
		l.logger.Infof(format, v...)
	}
}

func (l *GologLogger) Warn(format string, v ...any) {
	if l.level <= LevelWarn {
		l.logger.Warnf(format, v...)
	}
}

func (l *GologLogger) Error(format string, v ...any) {
	if l.level <= LevelError {
		l.logger.Errorf(format, v...)
	}
}

// NoOp discards everything. Handy in tests.
type NoOp struct{}

func (NoOp) Debug(string, ...any) {}
func (NoOp) Info(string, ...any)  {}
func (NoOp) Warn(string, ...any)  {}
func (NoOp) Error(string, ...any) {}
