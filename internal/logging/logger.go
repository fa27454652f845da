package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Config holds logger configuration
type Config struct {
	Verbose    bool
	OutputFile string // Progress log path (empty = stderr only)
	MaxSize    int64  // Max size in bytes before rotation (default: 10MB)
	MaxBackups int    // Number of old log files to keep (default: 3)
	JSONFormat bool
}

// Logger is a logrus logger that also owns the progress log file handle.
type Logger struct {
	*logrus.Logger
	config Config
	file   *os.File
}

// NewLogger creates a logger writing to stderr and, optionally, to a
// rotating progress log file.
func NewLogger(config Config) (*Logger, error) {
	if config.MaxSize == 0 {
		config.MaxSize = 10 * 1024 * 1024 // 10MB
	}
	if config.MaxBackups == 0 {
		config.MaxBackups = 3
	}

	l := &Logger{
		Logger: logrus.New(),
		config: config,
	}

	writers := []io.Writer{os.Stderr}

	if config.OutputFile != "" {
		dir := filepath.Dir(config.OutputFile)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}

		if err := rotateIfNeeded(config); err != nil {
			return nil, fmt.Errorf("failed to rotate logs: %w", err)
		}

		file, err := os.OpenFile(config.OutputFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", config.OutputFile, err)
		}
		l.file = file
		writers = append(writers, file)
	}

	l.SetOutput(io.MultiWriter(writers...))

	if config.Verbose {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}

	if config.JSONFormat {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return l, nil
}

// rotateIfNeeded shifts file -> file.1 -> file.2 ... when the current log is
// over MaxSize.
func rotateIfNeeded(config Config) error {
	info, err := os.Stat(config.OutputFile)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat log file: %w", err)
	}

	if info.Size() < config.MaxSize {
		return nil
	}

	for i := config.MaxBackups - 1; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", config.OutputFile, i)
		newPath := fmt.Sprintf("%s.%d", config.OutputFile, i+1)
		if _, err := os.Stat(oldPath); err == nil {
			os.Rename(oldPath, newPath)
		}
	}

	backupPath := fmt.Sprintf("%s.1", config.OutputFile)
	if err := os.Rename(config.OutputFile, backupPath); err != nil {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}

	return nil
}

// LogFile returns the progress log path, if any.
func (l *Logger) LogFile() string {
	return l.config.OutputFile
}

// Close closes the log file if one is open
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.SetOutput(os.Stderr)
	return err
}

// Discard returns a logger that drops everything. Used by tests and library
// callers that do not care about progress output.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
