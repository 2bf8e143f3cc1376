package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Config holds logger configuration
type Config struct {
	Level   string // debug, info, warn, error
	Format  string // json, console
	Output  string // stdout, stderr, or file path
	Service string // added as the "service" field when set
}

// DefaultConfig returns a console logger at info level
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "console",
		Output: "stdout",
	}
}

// ProductionConfig returns a JSON logger at info level
func ProductionConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}
}

// New creates a zap logger. An output file that cannot be opened is an error.
func New(cfg Config) (*zap.Logger, error) {
	writer, err := createWriter(cfg.Output)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(createEncoder(cfg.Format), writer, ParseLevel(cfg.Level))
	logger := zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if cfg.Service != "" {
		logger = logger.With(zap.String("service", cfg.Service))
	}
	return logger, nil
}

// NewForEnvironment picks the production or development preset
func NewForEnvironment(env, service string) (*zap.Logger, error) {
	cfg := DefaultConfig()
	if env == "production" {
		cfg = ProductionConfig()
	}
	cfg.Service = service
	return New(cfg)
}

// ParseLevel converts a level name to a zapcore.Level, defaulting to info
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func createEncoder(format string) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout(timeLayout),
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if format == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(encoderConfig)
	}
	return zapcore.NewJSONEncoder(encoderConfig)
}

func createWriter(output string) (zapcore.WriteSyncer, error) {
	switch strings.ToLower(output) {
	case "", "stdout":
		return zapcore.AddSync(os.Stdout), nil
	case "stderr":
		return zapcore.AddSync(os.Stderr), nil
	}
	file, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", output, err)
	}
	return zapcore.AddSync(file), nil
}
