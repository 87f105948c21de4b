package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLoggerWritesJSON(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelInfo)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	logger.Info("hive started", "agents", 3)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "hive.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log entry is not JSON: %v\n%s", err, data)
	}
	if entry["msg"] != "hive started" {
		t.Errorf("msg = %v, want 'hive started'", entry["msg"])
	}
	if entry["agents"] != float64(3) {
		t.Errorf("agents = %v, want 3", entry["agents"])
	}
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelWarn)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	logger.Debug("dropped")
	logger.Info("also dropped")
	logger.Warn("kept")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "hive.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}

	content := string(data)
	if strings.Contains(content, "dropped") {
		t.Errorf("log should not contain filtered messages:\n%s", content)
	}
	if !strings.Contains(content, "kept") {
		t.Errorf("log should contain WARN message:\n%s", content)
	}
}

func TestChildLoggerAttributes(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelDebug)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	child := logger.WithComponent("assign").WithAgent("agent-1").WithTask("task-2")
	child.Info("claimed")

	// Parent logger must be unaffected by child attributes.
	logger.Info("plain")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "hive.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(lines))
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal first line: %v", err)
	}
	if first["component"] != "assign" || first["agent_id"] != "agent-1" || first["task_id"] != "task-2" {
		t.Errorf("child attrs missing: %v", first)
	}

	var second map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("unmarshal second line: %v", err)
	}
	if _, ok := second["component"]; ok {
		t.Errorf("parent logger should not carry child attrs: %v", second)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"Warn", LevelWarn},
		{"ERROR", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	// Must not panic and Close must be a no-op.
	logger.Info("ignored")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close on NopLogger: %v", err)
	}
}
