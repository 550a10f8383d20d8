package logger

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rainbow-me/gateway-correlation/common/env"
)

const (
	StringJSONEncoderName = "string_json"
	MessageKey            = "message"
)

// Logger is the structured logger handed to every component. It is a thin wrapper so
// callers never depend on zap directly for anything but fields.
type Logger struct {
	z *zap.Logger
}

// NewLogger wraps z. A nil z yields a no-op logger.
func NewLogger(z *zap.Logger) *Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return &Logger{z: z}
}

// NoOp returns a logger that discards everything.
func NoOp() *Logger {
	return NewLogger(zap.NewNop())
}

var instance atomic.Pointer[Logger]

// Instance returns the process logger, building it from the environment on first use.
// Components should prefer a logger injected at construction; Instance is the fallback
// for code that only has a context.
func Instance() *Logger {
	if l := instance.Load(); l != nil {
		return l
	}
	z, err := InitLogger()
	if err != nil {
		z, _ = zap.NewProduction()
	}
	instance.CompareAndSwap(nil, NewLogger(z))
	return instance.Load()
}

// SetInstance replaces the process logger.
func SetInstance(l *Logger) {
	if l != nil {
		instance.Store(l)
	}
}

func (l *Logger) Zap() *zap.Logger { return l.z }

func (l *Logger) With(fields ...Field) *Logger {
	if len(fields) == 0 {
		return l
	}
	return &Logger{z: l.z.With(fields...)}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.z.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.z.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.z.Error(msg, fields...) }

func (l *Logger) Log(level Level, msg string, fields ...Field) {
	l.z.Log(zapcore.Level(level), msg, fields...)
}

// Enabled reports whether entries at level would be written.
func (l *Logger) Enabled(level Level) bool {
	return l.z.Core().Enabled(zapcore.Level(level))
}

func (l *Logger) Sync() error { return l.z.Sync() }

type stringJSONEncoder struct {
	zapcore.Encoder
}

// NewStringJSONEncoder returns an encoder that encodes the JSON log dict as a string
// so the log processing pipeline can correctly process logs with nested JSON.
func NewStringJSONEncoder(cfg zapcore.EncoderConfig) (zapcore.Encoder, error) {
	return &stringJSONEncoder{zapcore.NewJSONEncoder(cfg)}, nil
}

var registerEncoder = sync.OnceValue(func() error {
	return zap.RegisterEncoder(StringJSONEncoderName, NewStringJSONEncoder)
})

// InitLogger builds a zap logger configured for the current ENVIRONMENT.
func InitLogger(zapOpts ...zap.Option) (*zap.Logger, error) {
	currentEnv := os.Getenv(env.ApplicationEnvKey)
	if err := env.IsEnvironmentValid(currentEnv); err != nil {
		return nil, errors.Wrap(err, "invalid environment")
	}

	if err := registerEncoder(); err != nil {
		return nil, errors.Wrap(err, "failed to register string JSON encoder")
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:       "timestamp",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		FunctionKey:   zapcore.OmitKey,
		MessageKey:    MessageKey,
		StacktraceKey: "stacktrace",
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}

	var config zap.Config
	switch env.Environment(currentEnv) {
	case env.EnvironmentLocal:
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.MessageKey = MessageKey
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	case env.EnvironmentProduction:
		// debug lines (correlation found/generated) are dropped in production unless
		// the level is lowered through the returned config
		config = zap.NewProductionConfig()
		config.EncoderConfig = encoderConfig
		config.Encoding = StringJSONEncoderName
		config.Level.SetLevel(zap.InfoLevel)

	default:
		// JSON logs for Datadog ingestion
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig = encoderConfig
		config.Encoding = StringJSONEncoderName
	}

	options := append([]zap.Option{zap.AddStacktrace(zap.ErrorLevel)}, zapOpts...)

	z, err := config.Build(options...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize logger")
	}
	return z, nil
}
