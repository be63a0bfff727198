// Package logging provides structured logging for the transient-search
// pipeline using slog, plus a rank-tagged, human-readable diagnostic line
// for operators scanning console output:
//
//	From process {rank} (ERROR) => ...
//	From process {rank} (WARNING) => ...
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	structuredLogger *slog.Logger
	loggerMu         sync.RWMutex
	initOnce         sync.Once
)

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok {
			if name, exists := levelNames[level]; exists {
				a.Value = slog.StringValue(name)
			}
		}
	}
	return a
}

// Init sets up the global JSON logger, rotated through lumberjack, and makes
// it the slog default; no console handler is installed (the stderr line
// comes from Tagged). logDir defaults to "logs" under the working
// directory when empty.
func Init(logDir string) {
	initOnce.Do(func() {
		if logDir == "" {
			logDir = "logs"
		}
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "logging: failed to create log directory: %v\n", err)
		}

		lj := &lumberjack.Logger{
			Filename:   logDir + "/drxsearch.log",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
		}

		handler := slog.NewJSONHandler(lj, &slog.HandlerOptions{
			Level:       slog.LevelInfo,
			ReplaceAttr: replaceAttr,
		})

		loggerMu.Lock()
		structuredLogger = slog.New(handler)
		loggerMu.Unlock()
		slog.SetDefault(structuredLogger)
	})
}

// Structured returns the process-wide structured logger, initializing a
// stderr-only fallback if Init was never called (useful in tests).
func Structured() *slog.Logger {
	loggerMu.RLock()
	logger := structuredLogger
	loggerMu.RUnlock()
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// ForRank returns a logger scoped to one worker rank, tagging every record
// with rank=N so JSON log lines can be filtered per worker.
func ForRank(rank int) *slog.Logger {
	return Structured().With("rank", rank)
}

// Tagged emits the rank-tagged diagnostic line to stderr, in addition to
// the structured record:
// "From process {rank} ({TYPE}) => {msg}".
func Tagged(rank int, msgType, msg string) {
	fmt.Fprintf(os.Stderr, "From process %d (%s) => %s\n", rank, msgType, msg)
}

// Info logs an informational rank-tagged message.
func Info(rank int, msg string, args ...any) {
	ForRank(rank).Info(msg, args...)
}

// Warning logs a non-fatal, rank-tagged WARNING: structured record plus
// the console diagnostic line.
func Warning(rank int, msg string, args ...any) {
	ForRank(rank).Warn(msg, args...)
	Tagged(rank, "WARNING", msg)
}

// Error logs a rank-tagged ERROR without aborting the process.
func Error(rank int, msg string, args ...any) {
	ForRank(rank).Error(msg, args...)
	Tagged(rank, "ERROR", msg)
}
