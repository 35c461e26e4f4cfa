package logger

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu  sync.RWMutex
	Log = zap.NewNop()
)

func Init(level, format, outputPath string) error {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	var writeSyncer zapcore.WriteSyncer
	switch outputPath {
	case "stdout", "":
		writeSyncer = zapcore.AddSync(os.Stdout)
	case "stderr":
		writeSyncer = zapcore.AddSync(os.Stderr)
	default:
		file, err := os.OpenFile(outputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		writeSyncer = zapcore.AddSync(file)
	}

	core := zapcore.NewCore(encoder, writeSyncer, zapLevel)
	SetLogger(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel)))

	return nil
}

// SetLogger swaps the global logger; tests use it with zaptest or observer cores.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	Log = l
}

// GetLogger returns the global logger without the helper caller skip.
func GetLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return Log.WithOptions(zap.AddCallerSkip(-1))
}

// WithTrace returns a logger tagged with the request trace id and flow label.
func WithTrace(traceID, flow string) *zap.Logger {
	return GetLogger().With(zap.String("trace_id", traceID), zap.String("flow", flow))
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return Log
}

func Info(msg string, fields ...zap.Field) {
	current().Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	current().Error(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	current().Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	current().Warn(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	current().Fatal(msg, fields...)
}

func Sync() {
	_ = current().Sync()
}
