// Package clilog builds the habitsync logger: a rotating file under the data
// directory, mirrored to stderr in debug mode.
package clilog

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logger configuration
type Config struct {
	Debug   bool
	DataDir string
	// Stderr receives the debug mirror. Defaults to os.Stderr.
	Stderr io.Writer
}

// Logger is a logger plus the file it writes to.
type Logger struct {
	*log.Logger
	file *lumberjack.Logger
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	return l.file.Close()
}

// New creates the logger. The file lives at <DataDir>/logs/habitsync.log.
func New(cfg Config) (*Logger, error) {
	logDir := filepath.Join(cfg.DataDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}

	fileWriter := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "habitsync.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	level := log.InfoLevel
	var writer io.Writer = fileWriter
	if cfg.Debug {
		level = log.DebugLevel
		stderr := cfg.Stderr
		if stderr == nil {
			stderr = os.Stderr
		}
		writer = io.MultiWriter(stderr, fileWriter)
	}

	return &Logger{
		Logger: log.NewWithOptions(writer, log.Options{
			ReportCaller:    cfg.Debug,
			ReportTimestamp: true,
			Level:           level,
			Prefix:          "habitsync",
		}),
		file: fileWriter,
	}, nil
}

// Discard returns a logger that writes nowhere.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
