package logging

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config describes the desired logging configuration. Zero rotation
// settings fall back to 100 MB per file, 3 backups and 30 days.
type Config struct {
	Level          string
	Format         string
	FilePath       string
	FileMaxSizeMB  int
	FileMaxFiles   int
	FileMaxAgeDays int
}

// Manager owns the logger lifecycle.
type Manager struct {
	closer io.Closer // lumberjack writer, if any
}

// NewManager creates a Manager and returns it along with a ready-to-use
// logger writing to out (and to the log file, if configured).
func NewManager(cfg Config, out *os.File) (*Manager, *slog.Logger) {
	format := cfg.Format
	if format == "auto" || format == "" {
		format = detectFormat(out)
	}

	writer, closer := buildWriter(cfg, out)
	handler := buildHandler(writer, parseLevel(cfg.Level), format)

	return &Manager{closer: closer}, slog.New(handler)
}

// Close releases resources (e.g. the log file writer).
func (m *Manager) Close() error {
	if m.closer != nil {
		err := m.closer.Close()
		m.closer = nil
		return err
	}
	return nil
}

// parseLevel converts a string to slog.Level, defaulting to Info.
func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// detectFormat picks text for interactive terminals and JSON otherwise.
func detectFormat(out *os.File) string {
	if out != nil && term.IsTerminal(int(out.Fd())) { //nolint:gosec // G115: fd fits in int
		return "text"
	}
	return "json"
}

// buildWriter creates the io.Writer for log output. If a file path is
// configured, it returns a MultiWriter (out + lumberjack) and the
// lumberjack logger as the closer.
func buildWriter(cfg Config, out io.Writer) (io.Writer, io.Closer) {
	if cfg.FilePath == "" {
		return out, nil
	}

	maxSize := cfg.FileMaxSizeMB
	if maxSize <= 0 {
		maxSize = 100
	}
	maxFiles := cfg.FileMaxFiles
	if maxFiles <= 0 {
		maxFiles = 3
	}
	maxAge := cfg.FileMaxAgeDays
	if maxAge <= 0 {
		maxAge = 30
	}

	lj := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    maxSize,
		MaxBackups: maxFiles,
		MaxAge:     maxAge,
		Compress:   false,
	}

	return io.MultiWriter(out, lj), lj
}

// buildHandler creates a slog.Handler with the given writer, leveler, and format.
func buildHandler(w io.Writer, leveler slog.Leveler, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: leveler}
	if format == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// ValidLevel returns true if s is a recognized log level.
func ValidLevel(s string) bool {
	switch s {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// ValidFormat returns true if s is a recognized log format.
func ValidFormat(s string) bool {
	switch s {
	case "text", "json", "auto":
		return true
	}
	return false
}
