package observability

import (
	"context"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lumashop/api/internal/platform/requestctx"
)

// Cloud Logging severities keyed by zap level. DPanic and above all report as CRITICAL.
var severities = map[zapcore.Level]string{
	zapcore.DebugLevel: "DEBUG",
	zapcore.InfoLevel:  "INFO",
	zapcore.WarnLevel:  "WARNING",
	zapcore.ErrorLevel: "ERROR",
}

type loggerOptions struct {
	level string
	out   io.Writer
}

type LoggerOption func(*loggerOptions)

// WithLogLevel overrides LOG_LEVEL.
func WithLogLevel(level string) LoggerOption {
	return func(o *loggerOptions) { o.level = level }
}

func WithLogOutput(w io.Writer) LoggerOption {
	return func(o *loggerOptions) {
		if w != nil {
			o.out = w
		}
	}
}

// NewLogger writes one JSON object per line in the shape Cloud Logging parses from stdout.
// Unknown levels fall back to info.
func NewLogger(opts ...LoggerOption) (*zap.Logger, error) {
	o := loggerOptions{level: os.Getenv("LOG_LEVEL"), out: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}
	level, err := zapcore.ParseLevel(strings.TrimSpace(o.level))
	if err != nil || strings.TrimSpace(o.level) == "" {
		level = zapcore.InfoLevel
	}

	enc := zap.NewProductionEncoderConfig()
	enc.MessageKey = "message"
	enc.TimeKey = "timestamp"
	enc.LevelKey = "severity"
	enc.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	enc.EncodeLevel = func(l zapcore.Level, pae zapcore.PrimitiveArrayEncoder) {
		if s, ok := severities[l]; ok {
			pae.AppendString(s)
			return
		}
		pae.AppendString("CRITICAL")
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.Lock(zapcore.AddSync(o.out)), level)
	return zap.New(core, zap.AddCaller(), zap.ErrorOutput(zapcore.Lock(os.Stderr))), nil
}

func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return requestctx.WithLogger(ctx, logger)
}

// EventLogger adapts zap to the func(ctx, event, fields) hook services accept. A request
// scoped logger in ctx wins over fallback. Events ending in "_failed" log at warn.
func EventLogger(fallback *zap.Logger) func(context.Context, string, map[string]any) {
	if fallback == nil {
		fallback = zap.NewNop()
	}
	return func(ctx context.Context, event string, fields map[string]any) {
		logger := requestctx.Logger(ctx)
		if logger == requestctx.NoopLogger() {
			logger = fallback
		}
		zfields := []zap.Field{zap.String("event", event)}
		for _, key := range slices.Sorted(maps.Keys(fields)) {
			switch v := fields[key].(type) {
			case error:
				zfields = append(zfields, zap.NamedError(key, v))
			default:
				zfields = append(zfields, zap.Any(key, v))
			}
		}
		if strings.HasSuffix(event, "_failed") {
			logger.Warn(event, zfields...)
			return
		}
		logger.Info(event, zfields...)
	}
}
