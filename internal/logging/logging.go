// Package logging builds the slog loggers the container and its tooling
// write through. Output goes to stderr by default, or to a size-rotated
// file when configured.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Output destinations.
const (
	OutputStderr = "stderr"
	OutputFile   = "file"
)

// Formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config controls logger construction.
type Config struct {
	Level  string `yaml:"level" env:"VESSEL_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"VESSEL_LOG_FORMAT" env-default:"text"`
	Output string `yaml:"output" env:"VESSEL_LOG_OUTPUT" env-default:"stderr"`

	// File rotation settings, used when Output is "file".
	FilePath   string `yaml:"filePath" env:"VESSEL_LOG_FILE"`
	MaxSizeMB  int    `yaml:"maxSizeMB" env-default:"100"`
	MaxBackups int    `yaml:"maxBackups" env-default:"3"`
	MaxAgeDays int    `yaml:"maxAgeDays" env-default:"7"`
	Compress   bool   `yaml:"compress" env-default:"true"`
}

// New builds a logger from config. Unknown output modes fall back to
// stderr with a warning rather than dropping logs.
func New(config Config) *slog.Logger {
	var w io.Writer

	switch config.Output {
	case OutputFile:
		w = newRotatingWriter(config)
	case OutputStderr, "":
		w = os.Stderr
	default:
		_, _ = fmt.Fprintf(os.Stderr, "WARNING: unknown logging output %q, falling back to stderr\n", config.Output)
		w = os.Stderr
	}

	return NewWithWriter(config, w)
}

// NewWithWriter builds a logger writing to an explicit writer.
func NewWithWriter(config Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(config.Level)}

	var handler slog.Handler
	switch config.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// newRotatingWriter builds a lumberjack-backed writer, creating the log
// directory if needed. Misconfiguration falls back to stderr with a warning.
func newRotatingWriter(config Config) io.Writer {
	if config.FilePath == "" {
		_, _ = os.Stderr.WriteString("WARNING: logging output=file but filePath is empty, falling back to stderr\n")
		return os.Stderr
	}

	if dir := filepath.Dir(config.FilePath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "WARNING: cannot create log directory %q: %v, falling back to stderr\n", dir, err)
			return os.Stderr
		}
	}

	return &lumberjack.Logger{
		Filename:   config.FilePath,
		MaxSize:    config.MaxSizeMB,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAgeDays,
		Compress:   config.Compress,
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
