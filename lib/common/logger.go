// Package common provides logging and configuration utilities shared by the library and the cli
package common

import (
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"log"
	"os"
	"strings"
)

// LevelSilent disables all log output, including errors.
const LevelSilent = logger.CRITICAL - 1

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// dSyncLogger implements the ILogger interface with custom formatting
type dSyncLogger struct {
	name   string
	level  logger.LogLevel
	logger *log.Logger
}

func (l *dSyncLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *dSyncLogger) Debugf(format string, args ...interface{}) {
	if l.level >= logger.DEBUG {
		l.log("DEBUG", format, args...)
	}
}

func (l *dSyncLogger) Infof(format string, args ...interface{}) {
	if l.level >= logger.INFO {
		l.log("INFO", format, args...)
	}
}

func (l *dSyncLogger) Warningf(format string, args ...interface{}) {
	if l.level >= logger.WARNING {
		l.log("WARN", format, args...)
	}
}

func (l *dSyncLogger) Errorf(format string, args ...interface{}) {
	if l.level >= logger.ERROR {
		l.log("ERROR", format, args...)
	}
}

func (l *dSyncLogger) Panicf(format string, args ...interface{}) {
	if l.level >= logger.CRITICAL {
		l.log("PANIC", format, args...)
	}
	panic(fmt.Sprintf(format, args...))
}

// log formats and writes a log message. this internal helper is used by the public methods
func (l *dSyncLogger) log(levelStr string, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("%-5s | %-15s | %s", levelStr, l.name, message)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// NewLogger creates a logger for one component instance.
// Loggers are never registered globally, every listener or store owns its own
// logger and therefore its own level. If out is nil, os.Stdout is used.
func NewLogger(name string, level logger.LogLevel, out io.Writer) logger.ILogger {
	if out == nil {
		out = os.Stdout
	}
	return &dSyncLogger{
		name:   name,
		level:  level,
		logger: log.New(out, "", log.Ldate|log.Ltime),
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent", "off":
		return LevelSilent, nil
	case "debug":
		return logger.DEBUG, nil
	case "info":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return LevelSilent, fmt.Errorf("invalid log level: %s. must be one of silent, debug, info, warn, error", level)
	}
}

// LogLevelName returns the name of a log level as accepted by ParseLogLevel
func LogLevelName(level logger.LogLevel) string {
	switch {
	case level <= LevelSilent:
		return "silent"
	case level >= logger.DEBUG:
		return "debug"
	case level >= logger.INFO:
		return "info"
	case level >= logger.WARNING:
		return "warn"
	default:
		return "error"
	}
}
