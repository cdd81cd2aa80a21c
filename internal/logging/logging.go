// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging provides structured key-value logging for the multiwan
// daemons, backed by zap.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger configuration.
type Config struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string
	// Console switches to the human-readable console encoder. The
	// default JSON encoding is what journald scrapers expect.
	Console bool
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	return Config{Level: "info"}
}

// Logger wraps a zap sugared logger with the key-value call shape used
// throughout the daemons.
type Logger struct {
	s *zap.SugaredLogger
}

// New creates a Logger from cfg. Invalid levels fall back to info.
func New(cfg Config) *Logger {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(cfg.Level); err != nil {
		lvl = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if cfg.Console {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), lvl)
	return &Logger{s: zap.New(core).Sugar()}
}

// With returns a child logger with the given key-value pairs attached.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{s: l.s.With(kv...)}
}

func (l *Logger) Debug(msg string, kv ...any) { l.s.Debugw(msg, kv...) }
func (l *Logger) Info(msg string, kv ...any)  { l.s.Infow(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...any)  { l.s.Warnw(msg, kv...) }
func (l *Logger) Error(msg string, kv ...any) { l.s.Errorw(msg, kv...) }

// Fatal logs the message and exits.
func (l *Logger) Fatal(msg string, kv ...any) { l.s.Fatalw(msg, kv...) }

// Sync flushes buffered log entries. Call on shutdown.
func (l *Logger) Sync() {
	_ = l.s.Sync()
}
