package logger

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const timeLayout = "2006-01-02 15:04:05"

// Config controls where log lines go.
type Config struct {
	// Directory receives one log file per day. Empty disables file output.
	Directory string
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string
	// RetentionDays is how many days of log files are kept. Defaults to 7.
	RetentionDays int
	// MaxSizeMB caps a single day's file before it is split. Defaults to 100.
	MaxSizeMB int
	// Console mirrors every line to ConsoleOutput.
	Console bool
	// ConsoleOutput defaults to stdout.
	ConsoleOutput io.Writer
}

// Logger wraps the zap logger with additional functionality
type Logger struct {
	*zap.Logger
	file *DailyFile
}

// NewLogger creates a console logger at info level.
func NewLogger() (*Logger, error) {
	return NewLoggerWithConfig(Config{Console: true})
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// NewLoggerWithConfig builds a logger writing plain text lines to the console and,
// when cfg.Directory is set, to a daily rotated file.
func NewLoggerWithConfig(cfg Config) (*Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}

		level = parsed
	}

	encoder := zapcore.NewConsoleEncoder(encoderConfig())

	var cores []zapcore.Core

	if cfg.Console {
		out := cfg.ConsoleOutput
		if out == nil {
			out = os.Stdout
		}

		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(out)), level))
	}

	var file *DailyFile

	if cfg.Directory != "" {
		var err error

		file, err = NewDailyFile(cfg.Directory, cfg.RetentionDays, cfg.MaxSizeMB)
		if err != nil {
			return nil, err
		}

		cores = append(cores, zapcore.NewCore(encoder, file, level))
	}

	if len(cores) == 0 {
		return &Logger{Logger: zap.NewNop(), file: nil}, nil
	}

	zapLogger := zap.New(
		zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.ErrorOutput(zapcore.AddSync(io.Discard)),
	)

	return &Logger{
		Logger: zapLogger,
		file:   file,
	}, nil
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	cfg.ConsoleSeparator = " - "

	return cfg
}

// With returns a child logger carrying the given fields and sharing the same outputs.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{
		Logger: l.Logger.With(fields...),
		file:   l.file,
	}
}

// File returns the daily file sink, or nil when file output is disabled.
func (l *Logger) File() *DailyFile {
	return l.file
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() error {
	if l.Logger != nil {
		return l.Logger.Sync()
	}

	return nil
}

// Close flushes and releases the log file. Failures are ignored so that shutting down
// never fails because of logging.
func (l *Logger) Close() {
	if l == nil {
		return
	}

	_ = l.Sync()

	if l.file != nil {
		_ = l.file.Close()
	}
}
