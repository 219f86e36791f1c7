// Package utils holds logging setup and terminal-safe string helpers.
package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// LoggerOptions configures InitLogger.
type LoggerOptions struct {
	Level           string
	Output          io.Writer
	Prefix          string
	ReportTimestamp bool
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = log.Default()
)

// InitLogger builds a charmbracelet logger. A nil Output writes to stderr.
func InitLogger(opts LoggerOptions) *log.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	return log.NewWithOptions(out, log.Options{
		Level:           parseLevel(opts.Level),
		Prefix:          opts.Prefix,
		ReportTimestamp: opts.ReportTimestamp,
		TimeFormat:      time.Kitchen,
	})
}

// InitDefaultLogger builds the CLI logger. TOOLGUARD_LOG_LEVEL overrides
// the default "info" level.
func InitDefaultLogger() *log.Logger {
	level := "info"
	if env := strings.TrimSpace(os.Getenv("TOOLGUARD_LOG_LEVEL")); env != "" {
		level = env
	}
	return InitLogger(LoggerOptions{Level: level, Prefix: "toolguard"})
}

// InitDaemonLogger builds the decision server logger, appending to
// ~/.toolguard/daemon.log.
func InitDaemonLogger() (*log.Logger, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolving home directory: %w", err)
	}
	dir := filepath.Join(home, ".toolguard")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "daemon.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening daemon log: %w", err)
	}

	level := "info"
	if env := strings.TrimSpace(os.Getenv("TOOLGUARD_LOG_LEVEL")); env != "" {
		level = env
	}
	return InitLogger(LoggerOptions{
		Level:           level,
		Output:          f,
		Prefix:          "toolguard-daemon",
		ReportTimestamp: true,
	}), nil
}

// GetDefaultLogger returns the process-wide logger.
func GetDefaultLogger() *log.Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefaultLogger replaces the process-wide logger. A nil logger is ignored.
func SetDefaultLogger(l *log.Logger) {
	if l == nil {
		return
	}
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

func parseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}
