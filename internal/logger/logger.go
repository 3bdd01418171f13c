package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default logging configuration constants
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// DefaultFileName is used when only Dir is set.
const DefaultFileName = "chronicle.log"

// FileConfig describes the rotated log file.
// If Path is empty and Dir is set, the file is Dir/chronicle.log.
// Rotation parameters follow lumberjack semantics.
type FileConfig struct {
	Dir        string // base directory for logs
	Path       string // explicit file path overrides Dir
	MaxSizeMB  int    // megabytes before rotation (default 10)
	MaxBackups int    // number of backups to keep (default 3)
	MaxAgeDays int    // days to keep (default 7)
	Compress   bool   // Gzip rotated files
}

// SlogConfig configures the process wide slog logger.
type SlogConfig struct {
	Level      string // debug, info, warn, error (default info)
	Format     string // text or json (default text)
	Color      bool   // ANSI colored levels, text format only
	TimeStamps bool
	Source     bool // add source file:line
	// Stdout keeps console output when a file is configured.
	Stdout bool
	File   FileConfig
}

// FileWriter returns a rotating writer for the configured file, or nil when
// no file is configured.
func (c FileConfig) FileWriter() io.WriteCloser {
	path := c.Path
	if path == "" && c.Dir != "" {
		path = filepath.Join(c.Dir, DefaultFileName)
	}
	if path == "" {
		return nil
	}
	return &lj.Logger{
		Filename:   path,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

// ParseLevel maps a level name onto slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// NewSlogger builds a logger writing to w.
func (c SlogConfig) NewSlogger(w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level, AddSource: c.Source}
	if !c.TimeStamps {
		opts.ReplaceAttr = dropTime
	}
	switch strings.ToLower(c.Format) {
	case "", "text":
		if c.Color {
			return slog.New(NewColorTextHandler(w, opts, c.TimeStamps)), nil
		}
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", c.Format)
}

// Setup installs the configured logger as slog's default. The returned
// closer releases the log file, if any.
func Setup(c SlogConfig) (io.Closer, error) {
	var (
		w      io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)
	if fw := c.File.FileWriter(); fw != nil {
		w, closer = fw, fw
		if c.Stdout {
			w = io.MultiWriter(os.Stderr, fw)
		}
	}
	l, err := c.NewSlogger(w)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	slog.SetDefault(l)
	return closer, nil
}

func dropTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
