package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config configures the structured logger
type Config struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // json or text
	Output     string `yaml:"output"` // stdout, stderr or file
	Filename   string `yaml:"filename"`
	MaxSize    int    `yaml:"max_size"` // MB
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"` // days
	Compress   bool   `yaml:"compress"`
}

// Logger is a structured logger with field chaining
type Logger struct {
	entry *logrus.Entry
}

// New creates a structured logger from configuration
func New(cfg Config) (*Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(defaultString(cfg.Level, "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
		})
	default:
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	output, err := logOutput(cfg)
	if err != nil {
		return nil, err
	}
	logger.SetOutput(output)

	return &Logger{entry: logrus.NewEntry(logger)}, nil
}

// Nop returns a logger that discards everything, for tests
func Nop() *Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &Logger{entry: logrus.NewEntry(logger)}
}

func logOutput(cfg Config) (io.Writer, error) {
	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	case "file":
		filename := defaultString(cfg.Filename, "logs/cryptodata.log")
		if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		return &lumberjack.Logger{
			Filename:   filename,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}, nil
	default:
		return nil, fmt.Errorf("invalid log output: %q", cfg.Output)
	}
}

// WithField returns a logger with one extra field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// WithFields returns a logger with extra fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{entry: l.entry.WithFields(fields)}
}

// WithError returns a logger carrying the error as a field
func (l *Logger) WithError(err error) *Logger {
	return &Logger{entry: l.entry.WithError(err)}
}

// Debug logs at debug level
func (l *Logger) Debug(args ...interface{}) { l.entry.Debug(args...) }

// Debugf logs a formatted message at debug level
func (l *Logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }

// Info logs at info level
func (l *Logger) Info(args ...interface{}) { l.entry.Info(args...) }

// Infof logs a formatted message at info level
func (l *Logger) Infof(format string, args ...interface{}) { l.entry.Infof(format, args...) }

// Warn logs at warn level
func (l *Logger) Warn(args ...interface{}) { l.entry.Warn(args...) }

// Warnf logs a formatted message at warn level
func (l *Logger) Warnf(format string, args ...interface{}) { l.entry.Warnf(format, args...) }

// Error logs at error level
func (l *Logger) Error(args ...interface{}) { l.entry.Error(args...) }

// Errorf logs a formatted message at error level
func (l *Logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

// Fatal logs at fatal level and exits
func (l *Logger) Fatal(args ...interface{}) { l.entry.Fatal(args...) }

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
