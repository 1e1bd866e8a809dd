package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetup_Writer(t *testing.T) {
	t.Setenv(EnvLevel, "")
	var buf bytes.Buffer
	cleanup, err := Setup(Config{Writer: &buf})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	L().Debug("hidden")
	L().Info("fit.completed", "ok", true)
	if err := cleanup(); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	L().Info("after cleanup")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1:\n%s", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["msg"] != "fit.completed" || rec["ok"] != true {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestSetup_DebugFromEnv(t *testing.T) {
	t.Setenv(EnvLevel, "DEBUG")
	var buf bytes.Buffer
	cleanup, err := Setup(Config{Writer: &buf})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer cleanup()

	L().Debug("engine.request")
	if !strings.Contains(buf.String(), `"msg":"engine.request"`) {
		t.Errorf("debug record missing:\n%s", buf.String())
	}
}

func TestSetup_FileWinsOverWriter(t *testing.T) {
	t.Setenv(EnvLevel, "")
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "piday.log")
	cleanup, err := Setup(Config{File: path, Writer: &buf})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	L().Info("to file")
	if err := cleanup(); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}

	if buf.Len() != 0 {
		t.Errorf("writer should be unused when a file is set, got %s", buf.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"to file"`) {
		t.Errorf("log file missing record:\n%s", data)
	}
}
