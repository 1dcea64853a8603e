package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"raffle/pkg/logging"
)

// Logger is the structured logger passed through the draw pipeline. The Ctx
// variants prepend the event, draw and request ids carried by ctx.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Sync() error

	DebugwCtx(ctx context.Context, msg string, keysAndValues ...interface{})
	InfowCtx(ctx context.Context, msg string, keysAndValues ...interface{})
	WarnwCtx(ctx context.Context, msg string, keysAndValues ...interface{})
	ErrorwCtx(ctx context.Context, msg string, keysAndValues ...interface{})
}

type zapLogger struct {
	*zap.SugaredLogger
	service string
}

// New builds a zap logger writing to stderr. format is "json" unless it is
// "console"; an unknown level means info.
func New(level, format string) (Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	encoding := "json"
	if format == "console" {
		encoding = "console"
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Encoding:         encoding,
		EncoderConfig:    encoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		Sampling:         &zap.SamplingConfig{Initial: 100, Thereafter: 100},
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &zapLogger{SugaredLogger: l.Sugar()}, nil
}

func encoderConfig() zapcore.EncoderConfig {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.MessageKey = "message"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeLevel = zapcore.LowercaseLevelEncoder
	return enc
}

// FromZap wraps an existing zap logger, e.g. an observer core in tests.
func FromZap(l *zap.Logger) Logger {
	return &zapLogger{SugaredLogger: l.Sugar()}
}

func NopLogger() Logger {
	return FromZap(zap.NewNop())
}

// WithService returns a logger that tags context-aware entries with
// service_name unless ctx already names a service. Loggers not built by this
// package are returned unchanged.
func WithService(log Logger, name string) Logger {
	zl, ok := log.(*zapLogger)
	if !ok {
		return log
	}
	return &zapLogger{SugaredLogger: zl.SugaredLogger, service: name}
}

func (l *zapLogger) DebugwCtx(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.Debugw(msg, l.withContext(ctx, keysAndValues)...)
}

func (l *zapLogger) InfowCtx(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.Infow(msg, l.withContext(ctx, keysAndValues)...)
}

func (l *zapLogger) WarnwCtx(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.Warnw(msg, l.withContext(ctx, keysAndValues)...)
}

func (l *zapLogger) ErrorwCtx(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.Errorw(msg, l.withContext(ctx, keysAndValues)...)
}

func (l *zapLogger) withContext(ctx context.Context, keysAndValues []interface{}) []interface{} {
	fields := logging.GetLogFields(ctx)
	if l.service != "" && logging.GetServiceName(ctx) == "" {
		fields = append(fields, "service_name", l.service)
	}
	return append(fields, keysAndValues...)
}
