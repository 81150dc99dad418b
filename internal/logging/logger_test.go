package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv(EnvFormat, "")
	t.Setenv(EnvLevel, "")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv() error = %v", err)
	}
	if cfg.Format != "json" {
		t.Fatalf("Format = %q, want %q", cfg.Format, "json")
	}
	if cfg.Level != slog.LevelInfo {
		t.Fatalf("Level = %v, want %v", cfg.Level, slog.LevelInfo)
	}
}

func TestLoadConfigFromEnv_InvalidFormat(t *testing.T) {
	t.Setenv(EnvFormat, "xml")
	t.Setenv(EnvLevel, "")

	if _, err := LoadConfigFromEnv(); err == nil {
		t.Fatal("LoadConfigFromEnv() expected error for invalid format")
	}
}

func TestLoadConfigFromEnv_InvalidLevel(t *testing.T) {
	t.Setenv(EnvFormat, "")
	t.Setenv(EnvLevel, "loud")

	if _, err := LoadConfigFromEnv(); err == nil {
		t.Fatal("LoadConfigFromEnv() expected error for invalid level")
	}
}

func TestNewLogger_JSONIncludesAppAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Format: "json", Level: slog.LevelInfo}, &buf, "serve")
	logger.Info("hello")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if record["app"] != "patchbay" {
		t.Fatalf("app = %v, want patchbay", record["app"])
	}
	if record["command"] != "serve" {
		t.Fatalf("command = %v, want serve", record["command"])
	}
}

func TestNewLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Format: "text", Level: slog.LevelInfo}, &buf, "")
	logger.Info("hello")

	out := buf.String()
	if !strings.Contains(out, "app=patchbay") {
		t.Fatalf("text output missing app attribute: %q", out)
	}
	if !strings.Contains(out, "command=patchbay") {
		t.Fatalf("text output missing default command: %q", out)
	}
}

func TestNewLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Format: "json", Level: slog.LevelWarn}, &buf, "serve")
	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info record emitted below warn level: %q", buf.String())
	}
	logger.Warn("kept")
	if buf.Len() == 0 {
		t.Fatal("warn record missing")
	}
}
