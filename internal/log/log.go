// Package log provides centralized logging for ngmigrate using charmbracelet/log.
package log

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Logger is the global logger instance.
var Logger *log.Logger

func init() {
	Logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    false,
		ReportTimestamp: true,
		Prefix:          "ngmigrate",
		Level:           log.InfoLevel,
	})
}

// SetLevelName sets the logging level from its name ("debug", "info", ...).
// Unknown names leave the current level unchanged and return false.
func SetLevelName(name string) bool {
	level, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return false
	}
	Logger.SetLevel(level)
	return true
}

// SetOutput redirects log output. The TUI points this at a file so log
// lines do not tear the alternate screen.
func SetOutput(w io.Writer) {
	Logger.SetOutput(w)
}

// Debug logs a debug message.
func Debug(msg interface{}, keyvals ...interface{}) {
	Logger.Debug(msg, keyvals...)
}

// Info logs an info message.
func Info(msg interface{}, keyvals ...interface{}) {
	Logger.Info(msg, keyvals...)
}

// Warn logs a warning message.
func Warn(msg interface{}, keyvals ...interface{}) {
	Logger.Warn(msg, keyvals...)
}

// Error logs an error message.
func Error(msg interface{}, keyvals ...interface{}) {
	Logger.Error(msg, keyvals...)
}

// CloseError logs an error from a close operation if the error is not nil.
func CloseError(resource string, err error) {
	if err != nil {
		Logger.Warn("failed to close resource", "resource", resource, "error", err)
	}
}
