// Package logging provides logging configuration with file rotation.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds log file configuration.
type Config struct {
	Path       string // Log file path
	MaxSizeMB  int    // Max size in MB before rotation
	MaxBackups int    // Number of old files to keep
	MaxAgeDays int    // Max age in days
	Compress   bool   // Compress old files
}

// DefaultConfig returns the rotation policy for daemon and engine logs.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		MaxSizeMB:  50,
		MaxBackups: 3,
		MaxAgeDays: 7,
		Compress:   true,
	}
}

// NewRotatingWriter creates a log writer with rotation support.
func NewRotatingWriter(cfg Config) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
}

// NewLogger creates an Info level structured logger that writes to w.
func NewLogger(w io.Writer) *slog.Logger {
	return NewLoggerWithLevel(w, slog.LevelInfo)
}

// NewLoggerWithLevel creates a structured logger that writes to w.
func NewLoggerWithLevel(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// Files are the rotating log files of a running daemon: its own log and the
// copy of the engine's diagnostic output.
type Files struct {
	Daemon io.WriteCloser
	Engine io.WriteCloser
}

// OpenFiles creates the log directories and rotating writers for the daemon
// and engine logs.
func OpenFiles(daemonPath, enginePath string) (*Files, error) {
	for _, p := range []string{daemonPath, enginePath} {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	return &Files{
		Daemon: NewRotatingWriter(DefaultConfig(daemonPath)),
		Engine: NewRotatingWriter(DefaultConfig(enginePath)),
	}, nil
}

// Close closes both writers.
func (f *Files) Close() error {
	return errors.Join(f.Daemon.Close(), f.Engine.Close())
}
