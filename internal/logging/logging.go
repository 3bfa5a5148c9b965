// Package logging constructs the process-wide structured logger.
//
// Grounded on kubilitics-ai's go.mod (zap + lumberjack are direct
// dependencies) and kubilitics-backend's internal/pkg/logger request
// correlation idea, rewritten with zap fields instead of hand-rolled JSON.
package logging

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// Options configures the process logger. LogFilePath empty means stderr only.
type Options struct {
	Level       string // debug | info | warn | error
	Format      string // json | console
	LogFilePath string
	MaxSizeMB   int
	MaxBackups  int
	MaxAgeDays  int
}

// New builds a *zap.Logger per Options. Construction happens once at the
// composition root; every consumer receives this instance explicitly
// (Design Notes §9: no package-level logging singleton).
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	_ = level.UnmarshalText([]byte(opts.Level))

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if opts.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	var sinks []zapcore.WriteSyncer
	sinks = append(sinks, zapcore.Lock(os.Stderr))
	if opts.LogFilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.LogFilePath,
			MaxSize:    firstNonZero(opts.MaxSizeMB, 100),
			MaxBackups: firstNonZero(opts.MaxBackups, 5),
			MaxAge:     firstNonZero(opts.MaxAgeDays, 28),
		}
		sinks = append(sinks, zapcore.AddSync(rotator))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), level)
	return zap.New(core, zap.AddCaller()), nil
}

func firstNonZero(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// WithRequestID returns a context carrying id for later retrieval by FromContext.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// FromContext extracts the request id set by WithRequestID, or "".
func FromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// ForRequest returns a child logger annotated with the request id in ctx.
func ForRequest(base *zap.Logger, ctx context.Context) *zap.Logger {
	if id := FromContext(ctx); id != "" {
		return base.With(zap.String("request_id", id))
	}
	return base
}
