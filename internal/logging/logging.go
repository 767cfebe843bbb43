// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging is a small leveled wrapper around the standard logger.
//
// Messages follow the "EVENT | key=value" convention so they can be grepped
// by event name.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// Level represents the logging level.
type Level int32

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// String returns the lower-case level name.
func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	default:
		return fmt.Sprintf("level(%d)", int32(l))
	}
}

// ParseLevel converts a level name to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return LevelError, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "info", "":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	default:
		return LevelInfo, fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", s)
	}
}

var (
	level  atomic.Int32
	logger = log.New(os.Stderr, "", log.LstdFlags)
)

func init() {
	level.Store(int32(LevelInfo))
}

// SetLevel sets the global log level.
func SetLevel(l Level) {
	level.Store(int32(l))
}

// GetLevel returns the global log level.
func GetLevel() Level {
	return Level(level.Load())
}

// SetOutput redirects all log output.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// Logger returns the underlying standard logger.
func Logger() *log.Logger {
	return logger
}

// OpenFile appends log output to path and returns a closer for it.
func OpenFile(path string) (io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	SetOutput(f)
	return f, nil
}

func logf(l Level, tag, format string, args ...interface{}) {
	if GetLevel() < l {
		return
	}
	logger.Printf("["+tag+"] "+format, args...)
}

// Errorf logs at error level.
func Errorf(format string, args ...interface{}) {
	logf(LevelError, "ERROR", format, args...)
}

// Warnf logs at warn level.
func Warnf(format string, args ...interface{}) {
	logf(LevelWarn, "WARN", format, args...)
}

// Infof logs at info level.
func Infof(format string, args ...interface{}) {
	logf(LevelInfo, "INFO", format, args...)
}

// Debugf logs at debug level.
func Debugf(format string, args ...interface{}) {
	logf(LevelDebug, "DEBUG", format, args...)
}
