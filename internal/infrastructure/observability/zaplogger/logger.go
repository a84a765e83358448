package zaplogger

import (
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"go.uber.org/zap"
)

type logger struct{ z *zap.Logger }

// New adapts base to observability.Logger with fixed bound once. A nil base uses zap.L().
func New(base *zap.Logger, fixed ...observability.Field) observability.Logger {
	if base == nil {
		base = zap.L()
	}
	return &logger{z: base.With(zapFields(fixed)...)}
}

func (l *logger) With(fields ...observability.Field) observability.Logger {
	if len(fields) == 0 {
		return l
	}
	return &logger{z: l.z.With(zapFields(fields)...)}
}

func (l *logger) Debug(msg string, fields ...observability.Field) {
	l.z.Debug(msg, zapFields(fields)...)
}

func (l *logger) Info(msg string, fields ...observability.Field) {
	l.z.Info(msg, zapFields(fields)...)
}

func (l *logger) Warn(msg string, fields ...observability.Field) {
	l.z.Warn(msg, zapFields(fields)...)
}

func (l *logger) Error(msg string, fields ...observability.Field) {
	l.z.Error(msg, zapFields(fields)...)
}

// Sync flushes buffered entries.
func (l *logger) Sync() error { return l.z.Sync() }

func zapFields(fs []observability.Field) []zap.Field {
	if len(fs) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fs))
	for _, f := range fs {
		out = append(out, zapField(f))
	}
	return out
}

func zapField(f observability.Field) zap.Field {
	switch v := f.Value.(type) {
	case string:
		return zap.String(f.Key, v)
	case bool:
		return zap.Bool(f.Key, v)
	case int:
		return zap.Int(f.Key, v)
	case int64:
		return zap.Int64(f.Key, v)
	case float64:
		return zap.Float64(f.Key, v)
	case time.Duration:
		return zap.Duration(f.Key, v)
	case error:
		return zap.NamedError(f.Key, v)
	default:
		return zap.Any(f.Key, v)
	}
}
