package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

func TestFileWriter_WithDirOnly(t *testing.T) {
	dir := t.TempDir()
	w := FileConfig{Dir: dir}.FileWriter()
	if w == nil {
		t.Fatalf("expected writer when Dir is set")
	}
	_, _ = w.Write([]byte("hello\n"))
	_ = w.Close()
	if _, err := os.Stat(filepath.Join(dir, DefaultFileName)); err != nil {
		t.Fatalf("log not created at derived path: %v", err)
	}
}

func TestFileWriter_ExplicitPathWins(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "explicit.log")
	w := FileConfig{Dir: filepath.Join(dir, "ignored"), Path: p}.FileWriter()
	_, _ = w.Write([]byte("x"))
	_ = w.Close()
	if _, err := os.Stat(p); err != nil {
		t.Fatalf("explicit path not created: %v", err)
	}
}

func TestFileWriter_DefaultsAndOverrides(t *testing.T) {
	if w := (FileConfig{}).FileWriter(); w != nil {
		t.Fatalf("expected nil writer when no Dir/Path set")
	}
	l, ok := FileConfig{Path: "x"}.FileWriter().(*lj.Logger)
	if !ok {
		t.Fatalf("writer is not lumberjack.Logger")
	}
	if l.MaxSize != 10 || l.MaxBackups != 3 || l.MaxAge != 7 || l.Compress {
		t.Fatalf("unexpected defaults: size=%d backups=%d age=%d", l.MaxSize, l.MaxBackups, l.MaxAge)
	}
	l = FileConfig{Path: "y", MaxSizeMB: 1, MaxBackups: 9, MaxAgeDays: 11, Compress: true}.FileWriter().(*lj.Logger)
	if l.MaxSize != 1 || l.MaxBackups != 9 || l.MaxAge != 11 || !l.Compress {
		t.Fatalf("unexpected overrides: size=%d backups=%d age=%d compress=%t", l.MaxSize, l.MaxBackups, l.MaxAge, l.Compress)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q)=%v,%v want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestNewSloggerFormats(t *testing.T) {
	var buf bytes.Buffer
	l, err := SlogConfig{Format: "json", Level: "debug"}.NewSlogger(&buf)
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	l.Debug("Ingestion finished", "job", "ingest-job-1")
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("not json: %q", buf.String())
	}
	if rec["msg"] != "Ingestion finished" || rec["job"] != "ingest-job-1" {
		t.Fatalf("unexpected record: %v", rec)
	}
	if _, ok := rec["time"]; ok {
		t.Fatalf("time must be dropped when TimeStamps is off")
	}

	buf.Reset()
	l, err = SlogConfig{Color: true, TimeStamps: true}.NewSlogger(&buf)
	if err != nil {
		t.Fatalf("color: %v", err)
	}
	l.Debug("hidden")
	l.Warn("careful")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug must be filtered at info level: %q", out)
	}
	if !strings.Contains(out, "[33mWARN") || !strings.Contains(out, "time=") {
		t.Fatalf("expected colored level and timestamp: %q", out)
	}

	if _, err := (SlogConfig{Format: "xml"}).NewSlogger(&buf); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestSetupWritesToFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	p := filepath.Join(t.TempDir(), "app.log")
	closer, err := Setup(SlogConfig{Format: "text", File: FileConfig{Path: p}})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	slog.Info("Store ready", "driver", "sqlite")
	_ = closer.Close()
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), "Store ready") || !strings.Contains(string(b), "driver=sqlite") {
		t.Fatalf("unexpected log content: %q", b)
	}

	if _, err := Setup(SlogConfig{Level: "nope"}); err == nil {
		t.Fatalf("expected error for bad level")
	}
}
