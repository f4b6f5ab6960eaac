// Package requestctx carries per-request logging and trace metadata through context.
package requestctx

import (
	"context"

	"go.uber.org/zap"
)

type scopeKey struct{}

// scope is copied on every write so parent contexts never observe child values.
type scope struct {
	logger *zap.Logger
	trace  *TraceInfo
}

var noopLogger = zap.NewNop()

// TraceInfo is the Cloud Trace context parsed from the incoming request.
type TraceInfo struct {
	TraceID   string
	SpanID    string
	Sampled   bool
	ProjectID string
}

func current(ctx context.Context) scope {
	if ctx == nil {
		return scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

func with(ctx context.Context, update func(*scope)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	s := current(ctx)
	update(&s)
	return context.WithValue(ctx, scopeKey{}, s)
}

// WithLogger binds logger to ctx. A nil logger binds the no-op logger.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if logger == nil {
		logger = noopLogger
	}
	return with(ctx, func(s *scope) { s.logger = logger })
}

// Logger returns the request logger, or a no-op logger outside a request.
func Logger(ctx context.Context) *zap.Logger {
	if l := current(ctx).logger; l != nil {
		return l
	}
	return noopLogger
}

func NoopLogger() *zap.Logger { return noopLogger }

// WithTrace binds trace metadata to ctx.
func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	return with(ctx, func(s *scope) { s.trace = &info })
}

func Trace(ctx context.Context) (TraceInfo, bool) {
	t := current(ctx).trace
	if t == nil {
		return TraceInfo{}, false
	}
	return *t, true
}

// TraceID is empty when no trace header was received.
func TraceID(ctx context.Context) string {
	info, _ := Trace(ctx)
	return info.TraceID
}
