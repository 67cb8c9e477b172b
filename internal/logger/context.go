package logger

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"go.uber.org/zap"
)

type ctxKey struct{}

// ContextWithLogger stores a logger in the context.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext extracts a logger from the context.
// Returns zap.NewNop() if no logger is found.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// WithRun tags logger with a fresh run_id and stores it in ctx.
func WithRun(ctx context.Context, logger *zap.Logger, command string) (context.Context, *zap.Logger) {
	l := logger.With(zap.String("run_id", NewRunID()), zap.String("command", command))
	return ContextWithLogger(ctx, l), l
}

// NewRunID returns a random 16-character hex id.
func NewRunID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
