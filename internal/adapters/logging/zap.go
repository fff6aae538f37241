package logging

import (
	"context"
	"fmt"
	"io"

	"github.com/felixgeelhaar/theatre/internal/ports"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts a *zap.Logger to ports.Logger. The level is held in a
// zap.AtomicLevel shared with every logger derived through With.
type ZapLogger struct {
	base  *zap.Logger
	level zap.AtomicLevel
}

// NewZapLogger builds a production JSON logger at level.
func NewZapLogger(level ports.Level) (*ZapLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(toZapLevel(level))
	cfg.Sampling = nil
	base, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build zap logger: %w", err)
	}
	return &ZapLogger{base: base, level: cfg.Level}, nil
}

// NewZapLoggerTo builds a JSON logger writing to w, without sampling.
func NewZapLoggerTo(w io.Writer, level ports.Level) *ZapLogger {
	atom := zap.NewAtomicLevelAt(toZapLevel(level))
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	core := zapcore.NewCore(enc, zapcore.AddSync(w), atom)
	return &ZapLogger{base: zap.New(core), level: atom}
}

// WrapZap adapts an existing zap logger, such as one built on zaptest/observer.
func WrapZap(base *zap.Logger, level ports.Level) *ZapLogger {
	return &ZapLogger{base: base, level: zap.NewAtomicLevelAt(toZapLevel(level))}
}

func (z *ZapLogger) Debug(_ context.Context, msg string, fields ...ports.Field) {
	z.log(zapcore.DebugLevel, msg, fields)
}

func (z *ZapLogger) Info(_ context.Context, msg string, fields ...ports.Field) {
	z.log(zapcore.InfoLevel, msg, fields)
}

func (z *ZapLogger) Warn(_ context.Context, msg string, fields ...ports.Field) {
	z.log(zapcore.WarnLevel, msg, fields)
}

func (z *ZapLogger) Error(_ context.Context, msg string, fields ...ports.Field) {
	z.log(zapcore.ErrorLevel, msg, fields)
}

// With returns a child logger carrying fields.
func (z *ZapLogger) With(fields ...ports.Field) ports.Logger {
	return &ZapLogger{base: z.base.With(zapFields(fields)...), level: z.level}
}

// Level returns the minimum log level.
func (z *ZapLogger) Level() ports.Level {
	return fromZapLevel(z.level.Level())
}

// SetLevel changes the level for this logger and all of its children.
func (z *ZapLogger) SetLevel(level ports.Level) {
	z.level.SetLevel(toZapLevel(level))
}

// Sync flushes buffered entries.
func (z *ZapLogger) Sync() error {
	return z.base.Sync()
}

func (z *ZapLogger) log(level zapcore.Level, msg string, fields []ports.Field) {
	if !z.level.Enabled(level) {
		return
	}
	if ce := z.base.Check(level, msg); ce != nil {
		ce.Write(zapFields(fields)...)
	}
}

func zapFields(fields []ports.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		switch v := f.Value.(type) {
		case fmt.Stringer:
			out = append(out, zap.Stringer(f.Key, v))
		default:
			out = append(out, zap.Any(f.Key, v))
		}
	}
	return out
}

func toZapLevel(level ports.Level) zapcore.Level {
	switch level {
	case ports.LevelDebug:
		return zapcore.DebugLevel
	case ports.LevelWarn:
		return zapcore.WarnLevel
	case ports.LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func fromZapLevel(level zapcore.Level) ports.Level {
	switch {
	case level <= zapcore.DebugLevel:
		return ports.LevelDebug
	case level == zapcore.InfoLevel:
		return ports.LevelInfo
	case level == zapcore.WarnLevel:
		return ports.LevelWarn
	default:
		return ports.LevelError
	}
}

var _ ports.Logger = (*ZapLogger)(nil)
