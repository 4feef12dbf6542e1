package utils

import (
	"context"
	"log"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey string

const requestIDCtxKey ctxKey = "request_id"

var (
	logger   *zap.Logger
	loggerMu sync.Mutex
)

// InitLogger builds the process logger: JSON in production, console otherwise.
func InitLogger(production bool) *zap.Logger {
	var cfg zap.Config
	if production {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	l, err := cfg.Build()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	SetLogger(l)
	return l
}

// SetLogger replaces the process logger (tests use zap.NewNop or zaptest).
func SetLogger(l *zap.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = l
}

// Logger returns the process logger, falling back to a no-op logger.
func Logger() *zap.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

// WithRequestID stores the request id so service logs can be correlated.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDCtxKey, requestID)
}

func RequestIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDCtxKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes a standardized line with module/action/request_id.
// Avoid logging sensitive payload; message should be summarized.
func LogEvent(ctx context.Context, module, action, message string, fields ...zap.Field) {
	base := []zap.Field{
		zap.String("module", strings.ToLower(module)),
		zap.String("action", action),
	}
	if rid := RequestIDFrom(ctx); rid != "" {
		base = append(base, zap.String("request_id", rid))
	}
	Logger().Info(message, append(base, fields...)...)
}

// LogError is LogEvent at error level.
func LogError(ctx context.Context, module, action string, err error, fields ...zap.Field) {
	base := []zap.Field{
		zap.String("module", strings.ToLower(module)),
		zap.String("action", action),
		zap.Error(err),
	}
	if rid := RequestIDFrom(ctx); rid != "" {
		base = append(base, zap.String("request_id", rid))
	}
	Logger().Error(action+" failed", append(base, fields...)...)
}
